// Package meteo is a minimal client for the MET Norway Locationforecast
// API, condensed from the teacher's meteo package (client.go/types.go)
// down to the fields estimateSolarPowerFromWeather and
// estimateLoadForecast actually read: instant temperature and cloud
// cover, plus the weather symbol used for snow detection.
package meteo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the Locationforecast compact endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    "https://api.met.no/weatherapi/locationforecast/2.0/compact",
		userAgent:  userAgent,
	}
}

// Symbol is a MET Norway weather symbol code, e.g. "partlycloudy_day".
type Symbol string

// HasSnow reports whether the symbol denotes any form of falling snow,
// the condition under which the teacher zeroes out the PV estimate.
func (s Symbol) HasSnow() bool {
	return strings.Contains(strings.ToLower(string(s)), "snow")
}

// TimeStep is one instant in the forecast timeseries.
type TimeStep struct {
	Time    time.Time
	TempC   *float64
	CloudPct *float64
	Symbol  Symbol
}

// Forecast is the subset of the MET JSON response this repo consumes.
type Forecast struct {
	Steps []TimeStep
}

// rawResponse mirrors only the JSON paths Forecast needs.
type rawResponse struct {
	Properties struct {
		Timeseries []struct {
			Time time.Time `json:"time"`
			Data struct {
				Instant struct {
					Details struct {
						AirTemperature    *float64 `json:"air_temperature"`
						CloudAreaFraction *float64 `json:"cloud_area_fraction"`
					} `json:"details"`
				} `json:"instant"`
				Next1Hours struct {
					Summary struct {
						SymbolCode string `json:"symbol_code"`
					} `json:"summary"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// Get fetches the forecast timeseries for (lat, lon).
func (c *Client) Get(lat, lon float64) (*Forecast, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse meteo base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build meteo request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch meteo forecast: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meteo returned status %s", resp.Status)
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode meteo response: %w", err)
	}

	fc := &Forecast{Steps: make([]TimeStep, len(raw.Properties.Timeseries))}
	for i, ts := range raw.Properties.Timeseries {
		fc.Steps[i] = TimeStep{
			Time:     ts.Time,
			TempC:    ts.Data.Instant.Details.AirTemperature,
			CloudPct: ts.Data.Instant.Details.CloudAreaFraction,
			Symbol:   Symbol(ts.Data.Next1Hours.Summary.SymbolCode),
		}
	}
	return fc, nil
}

// ClosestStep returns the timeseries entry nearest to t.
func (f *Forecast) ClosestStep(t time.Time) (TimeStep, bool) {
	if len(f.Steps) == 0 {
		return TimeStep{}, false
	}
	best := f.Steps[0]
	bestDiff := t.Sub(best.Time).Abs()
	for _, s := range f.Steps[1:] {
		if d := t.Sub(s.Time).Abs(); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best, true
}
