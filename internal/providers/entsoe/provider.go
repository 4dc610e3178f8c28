package entsoe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kepler-ems/planner/internal/providers"
)

// Provider implements providers.TariffProvider against the ENTSO-E
// Transparency Platform, applying the same operator/delivery fee
// adjustment the teacher's getPriceForecast layers on top of the raw
// day-ahead spot price (scheduler/mpc.go).
type Provider struct {
	httpClient  *http.Client
	endpoint    string // pre-built query URL template, %s gets a UTCString range
	apiToken    string
	operatorFee float64 // SEK/kWh added to import price
	deliveryFee float64 // SEK/kWh added to import price
	vatMultiplier float64
	exportFeeFraction float64 // fraction of spot price deducted from export price
}

// NewProvider builds a Provider. endpoint must contain two %s verbs
// for the periodStart/periodEnd query parameters.
func NewProvider(httpClient *http.Client, endpoint, apiToken string, operatorFee, deliveryFee, vatMultiplier, exportFeeFraction float64) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		httpClient:        httpClient,
		endpoint:          endpoint,
		apiToken:          apiToken,
		operatorFee:       operatorFee,
		deliveryFee:       deliveryFee,
		vatMultiplier:     vatMultiplier,
		exportFeeFraction: exportFeeFraction,
	}
}

// Tariffs fetches the day-ahead document covering the requested slots
// and maps each slot to an adjusted import/export price.
func (p *Provider) Tariffs(ctx context.Context, slots []time.Time) ([]providers.TariffPoint, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	start := slots[0].Add(-time.Hour)
	end := slots[len(slots)-1].Add(2 * time.Hour)

	url := fmt.Sprintf(p.endpoint, utcParam(start), utcParam(end))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build entsoe request: %w", err)
	}
	if p.apiToken != "" {
		q := req.URL.Query()
		q.Set("securityToken", p.apiToken)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch entsoe prices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("entsoe returned %s: %s", resp.Status, body)
	}

	doc, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}

	out := make([]providers.TariffPoint, len(slots))
	for i, s := range slots {
		spot, ok := doc.PriceAt(s)
		if !ok {
			return nil, fmt.Errorf("no entsoe price for slot %s", s)
		}
		spotPerKWh := spot / 1000 * p.vatMultiplier
		out[i] = providers.TariffPoint{
			SlotStart:   s,
			ImportPrice: spotPerKWh + p.operatorFee + p.deliveryFee,
			ExportPrice: spotPerKWh * (1 - p.exportFeeFraction),
		}
	}
	return out, nil
}

func utcParam(t time.Time) string {
	return t.UTC().Format("200601021504")
}
