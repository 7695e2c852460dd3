// Package satellite turns NASA POWER daily point data into field
// observations. POWER carries no vegetation indices, so NDVI and EVI are
// approximated from latitude the same way the trained pipeline did.
package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"agrostress/features"
)

const (
	defaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

	// missingSentinel is POWER's fill value for days it has no data for.
	missingSentinel = -999.0

	// lookbackDays is how far Latest searches for a usable day. POWER
	// publishes with a few days of lag.
	lookbackDays = 10
)

// MissingDataError reports that POWER returned only sentinel values for the
// requested day(s). The caller decides whether to retry later or fail.
type MissingDataError struct {
	Date  time.Time
	Param string
}

func (e *MissingDataError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("power: %s missing for %s", e.Param, e.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("power: no usable data through %s", e.Date.Format("2006-01-02"))
}

// Client fetches daily point data from the NASA POWER API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the POWER endpoint, mainly for tests.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithRetries sets how many attempts a fetch makes and the pause between
// them.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) { c.retries = n; c.backoff = backoff }
}

// NewClient builds a POWER client with production defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 25 * time.Second},
		retries:    3,
		backoff:    2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// powerResponse mirrors the slice of the POWER payload we consume.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// FetchRange returns one observation per day in [start, end] for the point.
// Days where POWER reports only sentinel values are skipped.
func (c *Client) FetchRange(ctx context.Context, lat, lon float64, start, end time.Time) (features.Series, error) {
	raw, err := c.fetch(ctx, lat, lon, start, end)
	if err != nil {
		return nil, err
	}

	tmax := raw.Properties.Parameter["T2M_MAX"]
	tmin := raw.Properties.Parameter["T2M_MIN"]
	lw := raw.Properties.Parameter["ALLSKY_SFC_LW_DWN"]
	rh := raw.Properties.Parameter["RH2M"]

	days := make([]string, 0, len(tmax))
	for d := range tmax {
		days = append(days, d)
	}
	sort.Strings(days)

	series := make(features.Series, 0, len(days))
	for _, d := range days {
		date, err := time.ParseInLocation("20060102", d, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("power: bad date key %q: %w", d, err)
		}
		// A day key absent from one of the parameter maps would read as a
		// zero value, which is not a sentinel; treat it as a missing day.
		tn, okTn := tmin[d]
		lwv, okLw := lw[d]
		rhv, okRh := rh[d]
		if !okTn || !okLw || !okRh {
			continue
		}
		o, err := observe(date, lat, tmax[d], tn, lwv, rhv)
		if err != nil {
			continue
		}
		series = append(series, o)
	}
	if len(series) == 0 {
		return nil, &MissingDataError{Date: end}
	}
	return series, nil
}

// Latest returns the most recent usable observation for the point, looking
// back a few days to absorb POWER's publication lag.
func (c *Client) Latest(ctx context.Context, lat, lon float64, now time.Time) (features.Observation, error) {
	end := now.UTC()
	series, err := c.FetchRange(ctx, lat, lon, end.AddDate(0, 0, -lookbackDays), end)
	if err != nil {
		return features.Observation{}, err
	}
	return series[len(series)-1], nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, start, end time.Time) (*powerResponse, error) {
	q := url.Values{}
	q.Set("parameters", "T2M_MAX,T2M_MIN,ALLSKY_SFC_LW_DWN,RH2M")
	q.Set("community", "AG")
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start", start.UTC().Format("20060102"))
	q.Set("end", end.UTC().Format("20060102"))
	q.Set("format", "JSON")
	reqURL := c.baseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("power: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("power call failed: %w", err)
			continue
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("power non-2xx: %s, body: %s", resp.Status, string(data))
			continue
		}

		var out powerResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("power: decode response: %w", err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("power: %d attempts failed: %w", c.retries, lastErr)
}

// observe derives one observation from the four POWER parameters. LST is
// approximated from downward longwave irradiance, soil humidity from
// relative humidity, and the vegetation indices from latitude.
func observe(date time.Time, lat, tmax, tmin, lw, rh float64) (features.Observation, error) {
	for _, p := range []struct {
		name string
		val  float64
	}{
		{"T2M_MAX", tmax}, {"T2M_MIN", tmin}, {"ALLSKY_SFC_LW_DWN", lw}, {"RH2M", rh},
	} {
		if p.val == missingSentinel {
			return features.Observation{}, &MissingDataError{Date: date, Param: p.name}
		}
	}
	lst := lw / 10
	if lst == 0 {
		return features.Observation{}, &MissingDataError{Date: date, Param: "ALLSKY_SFC_LW_DWN"}
	}

	ndvi := clamp(0.6+positiveMod(lat, 10)*0.02-0.2, 0.3, 0.85)
	return features.Observation{
		Date:         date,
		NDVI:         ndvi,
		EVI:          clamp(ndvi*0.85, 0.2, 0.7),
		LST:          lst,
		TMax:         tmax,
		TMin:         tmin,
		SoilHumidity: clamp(rh/3, 5, 35),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// positiveMod matches a modulo whose result always carries the divisor's
// sign, so southern-hemisphere latitudes map into [0, 10) as well.
func positiveMod(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}
