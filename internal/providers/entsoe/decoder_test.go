package entsoe

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument>
  <mRID>doc-1</mRID>
  <type>A44</type>
  <period.timeInterval>
    <start>2026-01-10T00:00Z</start>
    <end>2026-01-11T00:00Z</end>
  </period.timeInterval>
  <TimeSeries>
    <mRID>1</mRID>
    <Period>
      <timeInterval>
        <start>2026-01-10T00:00Z</start>
        <end>2026-01-11T00:00Z</end>
      </timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>10.5</price.amount></Point>
      <Point><position>2</position><price.amount>12.0</price.amount></Point>
      <Point><position>5</position><price.amount>8.25</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

func TestDecode_ParsesDocumentStructure(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	require.Len(t, doc.TimeSeries, 1)

	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.True(t, doc.TimeInterval.Start.Equal(start))
	assert.Equal(t, time.Hour, doc.TimeSeries[0].Period.Resolution)
}

func TestPriceAt_ExactAndCarriedForwardPositions(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	price, ok := doc.PriceAt(base)
	require.True(t, ok)
	assert.Equal(t, 10.5, price)

	// Position 3 and 4 are missing from the document; ENTSO-E documents
	// carry the last published point forward until the next position.
	price, ok = doc.PriceAt(base.Add(3 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, 12.0, price)

	price, ok = doc.PriceAt(base.Add(4 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, 8.25, price)
}

func TestPriceAt_OutsideIntervalReturnsFalse(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	_, ok := doc.PriceAt(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT60M", time.Hour},
		{"PT15M", 15 * time.Minute},
		{"PT1H30M", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := parseISODuration(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseISODuration("garbage")
	assert.Error(t, err)
}
