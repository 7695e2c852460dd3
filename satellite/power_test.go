package satellite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func powerPayload(days map[string][4]float64) []byte {
	params := map[string]map[string]float64{
		"T2M_MAX":           {},
		"T2M_MIN":           {},
		"ALLSKY_SFC_LW_DWN": {},
		"RH2M":              {},
	}
	for d, v := range days {
		params["T2M_MAX"][d] = v[0]
		params["T2M_MIN"][d] = v[1]
		params["ALLSKY_SFC_LW_DWN"][d] = v[2]
		params["RH2M"][d] = v[3]
	}
	body, _ := json.Marshal(map[string]any{
		"properties": map[string]any{"parameter": params},
	})
	return body
}

func TestFetchRangeDerivations(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		w.Write(powerPayload(map[string][4]float64{
			"20240610": {31.0, 17.0, 320.0, 60.0},
		}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	series, err := c.FetchRange(context.Background(), -12.3, -55.1, start, start)
	require.NoError(t, err)
	require.Len(t, series, 1)

	o := series[0]
	assert.Equal(t, start, o.Date)
	assert.Equal(t, 31.0, o.TMax)
	assert.Equal(t, 17.0, o.TMin)
	assert.InDelta(t, 32.0, o.LST, 1e-9)      // 320 / 10
	assert.InDelta(t, 20.0, o.SoilHumidity, 1e-9) // 60 / 3
	// lat -12.3 maps to 7.7, so ndvi = 0.6 + 7.7*0.02 - 0.2 = 0.554.
	assert.InDelta(t, 0.554, o.NDVI, 1e-9)
	assert.InDelta(t, 0.554*0.85, o.EVI, 1e-9)

	q := gotQuery.Load().(string)
	assert.Contains(t, q, "T2M_MAX%2CT2M_MIN%2CALLSKY_SFC_LW_DWN%2CRH2M")
	assert.Contains(t, q, "community=AG")
}

func TestFetchRangeClampsBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(powerPayload(map[string][4]float64{
			"20240610": {31.0, 17.0, 320.0, 200.0}, // absurd RH
		}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	series, err := c.FetchRange(context.Background(), 0, 0, start, start)
	require.NoError(t, err)
	assert.Equal(t, 35.0, series[0].SoilHumidity)
	// lat 0 gives the floor ndvi.
	assert.InDelta(t, 0.4, series[0].NDVI, 1e-9)
}

func TestLatestSkipsSentinelDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(powerPayload(map[string][4]float64{
			"20240609": {30.0, 16.0, 310.0, 57.0},
			"20240610": {-999, -999, -999, -999}, // publication lag
		}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	o, err := c.Latest(context.Background(), 10, 20, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), o.Date)
}

func TestLatestAllMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(powerPayload(map[string][4]float64{
			"20240610": {-999, -999, -999, -999},
		}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := c.Latest(context.Background(), 10, 20, now)
	var missing *MissingDataError
	require.ErrorAs(t, err, &missing)
}

func TestFetchRangeSkipsDaysAbsentFromAParameter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := map[string]map[string]float64{
			"T2M_MAX":           {"20240609": 30.0, "20240610": 31.0},
			"T2M_MIN":           {"20240609": 16.0, "20240610": 17.0},
			"ALLSKY_SFC_LW_DWN": {"20240609": 310.0, "20240610": 320.0},
			// RH2M never published the 10th; its zero value must not
			// become a soil humidity reading.
			"RH2M": {"20240609": 57.0},
		}
		body, _ := json.Marshal(map[string]any{
			"properties": map[string]any{"parameter": params},
		})
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	start := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	series, err := c.FetchRange(context.Background(), 10, 20, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, start, series[0].Date)
	assert.InDelta(t, 19.0, series[0].SoilHumidity, 1e-9) // 57 / 3
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write(powerPayload(map[string][4]float64{
			"20240610": {30.0, 16.0, 310.0, 57.0},
		}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetries(3, time.Millisecond))
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	series, err := c.FetchRange(context.Background(), 10, 20, start, start)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetries(2, time.Millisecond))
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchRange(context.Background(), 10, 20, start, start)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 attempts failed")
}
