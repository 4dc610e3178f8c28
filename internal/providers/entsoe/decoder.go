// Package entsoe decodes ENTSO-E Transparency Platform day-ahead price
// documents and adapts them into the providers.TariffProvider contract
// (spec §6). The document schema and position-lookup arithmetic is
// ported from the teacher's entsoe/energy_prices_decoder.go; the
// ISO-8601 duration parser there is replaced with a regex, which is
// shorter and easier to audit than the teacher's character-by-character
// hand parser for the same PnYnMnDTnHnMnS grammar.
package entsoe

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"
)

// Document is the root of a Publication_MarketDocument.
type Document struct {
	XMLName      xml.Name     `xml:"Publication_MarketDocument"`
	MRID         string       `xml:"mRID"`
	Type         string       `xml:"type"`
	TimeInterval TimeInterval `xml:"period.timeInterval"`
	TimeSeries   []TimeSeries `xml:"TimeSeries"`
}

// TimeInterval is a start/end pair using ENTSO-E's loosely-RFC3339 time strings.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

func (ti *TimeInterval) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}
	var err error
	if ti.Start, err = parseTime(aux.Start); err != nil {
		return fmt.Errorf("parsing interval start: %w", err)
	}
	if ti.End, err = parseTime(aux.End); err != nil {
		return fmt.Errorf("parsing interval end: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z", "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ENTSO-E time format: %q", s)
}

// TimeSeries is one price curve within the document.
type TimeSeries struct {
	MRID   string `xml:"mRID"`
	Period Period `xml:"Period"`
}

// Period carries the resolution and ordered price points for a curve.
type Period struct {
	TimeInterval TimeInterval
	Resolution   time.Duration
	Points       []Point
}

func (p *Period) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var aux struct {
		TimeInterval TimeInterval `xml:"timeInterval"`
		Resolution   string       `xml:"resolution"`
		Points       []Point      `xml:"Point"`
	}
	if err := d.DecodeElement(&aux, &start); err != nil {
		return err
	}
	p.TimeInterval = aux.TimeInterval
	p.Points = aux.Points
	var err error
	p.Resolution, err = parseISODuration(aux.Resolution)
	return err
}

// Point is one (position, price) sample; positions are 1-based slots
// of Resolution length from the containing Period's start.
type Point struct {
	Position    int     `xml:"position"`
	PriceAmount float64 `xml:"price.amount"`
}

var isoDurationRE = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:([\d.]+)S)?)?$`)

// parseISODuration handles the PnYnMnDTnHnMnS subset ENTSO-E actually
// emits (typically just PT60M or PT15M).
func parseISODuration(s string) (time.Duration, error) {
	m := isoDurationRE.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unrecognized ISO-8601 duration: %q", s)
	}
	var d time.Duration
	add := func(group string, unit time.Duration) {
		if group == "" {
			return
		}
		v, _ := strconv.ParseFloat(group, 64)
		d += time.Duration(v * float64(unit))
	}
	add(m[1], 365*24*time.Hour)
	add(m[2], 30*24*time.Hour)
	add(m[3], 24*time.Hour)
	add(m[4], time.Hour)
	add(m[5], time.Minute)
	add(m[6], time.Second)
	return d, nil
}

// Decode parses an ENTSO-E day-ahead price XML document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ENTSO-E document: %w", err)
	}
	return &doc, nil
}

// PriceAt returns the price covering instant t across all time series
// in the document, following the teacher's position-based lookup
// (energy_prices_decoder.go LookupPriceByTime/GetPriceByTime).
func (doc *Document) PriceAt(t time.Time) (float64, bool) {
	for _, ts := range doc.TimeSeries {
		if price, ok := ts.Period.priceAt(t); ok {
			return price, true
		}
	}
	return 0, false
}

func (p *Period) priceAt(t time.Time) (float64, bool) {
	pos := p.positionOf(t)
	if pos <= 0 {
		return 0, false
	}
	var lastBefore *Point
	for i := range p.Points {
		pt := &p.Points[i]
		if pt.Position == pos {
			return pt.PriceAmount, true
		}
		if pt.Position > pos && lastBefore != nil {
			return lastBefore.PriceAmount, true
		}
		lastBefore = pt
	}
	if lastBefore != nil {
		return lastBefore.PriceAmount, true
	}
	return 0, false
}

func (p *Period) positionOf(t time.Time) int {
	diff := t.Sub(p.TimeInterval.Start)
	if diff < 0 || !t.Before(p.TimeInterval.End) {
		return 0
	}
	return int(diff/p.Resolution) + 1
}
