package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrostress/models"
)

func TestParseGeometry(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "Polygon",
		"coordinates": [[[ -55.0, -12.0 ], [ -54.9, -12.0 ], [ -54.9, -11.9 ], [ -55.0, -11.9 ], [ -55.0, -12.0 ]]]
	}`)

	doc, centroid, err := parseGeometry(raw)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", doc["type"])
	require.Len(t, centroid, 2)
	assert.InDelta(t, -54.95, centroid[0], 1e-9) // lon
	assert.InDelta(t, -11.95, centroid[1], 1e-9) // lat
}

func TestParseGeometryRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not geojson", `{"hello": "world"}`},
		{"point", `{"type": "Point", "coordinates": [1, 2]}`},
		{"zero area", `{"type": "Polygon", "coordinates": [[[0,0],[0,0],[0,0],[0,0]]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseGeometry(json.RawMessage(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestMergeObservations(t *testing.T) {
	day1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	f := func(v float64) *float64 { return &v }

	existing := []models.DailyObservation{
		{Date: day1, NDVI: f(0.6), SoilHumidity: f(20)},
	}
	incoming := []models.DailyObservation{
		// Same day: LST fills in, NDVI overrides, humidity stays.
		{Date: day1.Add(9 * time.Hour), NDVI: f(0.62), LST: f(31)},
		// New day inserted before sorting.
		{Date: day2, NDVI: f(0.61)},
	}

	merged := mergeObservations(existing, incoming)
	require.Len(t, merged, 2)

	assert.Equal(t, day1, merged[0].Date)
	assert.Equal(t, 0.62, *merged[0].NDVI)
	assert.Equal(t, 31.0, *merged[0].LST)
	assert.Equal(t, 20.0, *merged[0].SoilHumidity)

	assert.Equal(t, day2, merged[1].Date)
	assert.Equal(t, 0.61, *merged[1].NDVI)
	assert.Nil(t, merged[1].SoilHumidity)
}

func TestMergeObservationsSortsByDate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	incoming := []models.DailyObservation{
		{Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), NDVI: f(0.3)},
		{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), NDVI: f(0.1)},
		{Date: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), NDVI: f(0.2)},
	}
	merged := mergeObservations(nil, incoming)
	require.Len(t, merged, 3)
	assert.True(t, merged[0].Date.Before(merged[1].Date))
	assert.True(t, merged[1].Date.Before(merged[2].Date))
}
