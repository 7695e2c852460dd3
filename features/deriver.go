package features

import (
	"github.com/montanaflynn/stats"
)

// WindowStats holds the rolling features for one window size at one row.
// Trends are nil for the first Window rows of a series: no observation
// exists exactly Window rows earlier, and the gap is never back-filled.
type WindowStats struct {
	Window        int      `json:"window"`
	NDVIMean      float64  `json:"ndvi_mean"`
	NDVITrend     *float64 `json:"ndvi_trend"`
	HumidityMean  float64  `json:"humidity_mean"`
	HumidityTrend *float64 `json:"humidity_trend"`
	LSTMax        float64  `json:"lst_max"`
	TMaxMean      float64  `json:"tmax_mean"`
}

// FeatureRow is one observation plus every derived feature. Rows are value
// types and never mutated after Derive returns them.
type FeatureRow struct {
	Observation

	ByWindow []WindowStats `json:"by_window"`

	EVINDVIRatio     float64 `json:"evi_ndvi_ratio"`
	TempAvg          float64 `json:"temp_avg"`
	ThermalAmplitude float64 `json:"thermal_amplitude"`
	DeficitScore     float64 `json:"deficit_score"`

	Month         int `json:"month"`
	DayOfYear     int `json:"day_of_year"`
	DaysFromStart int `json:"days_from_start"`
}

// Window returns the stats for the given window size.
func (r FeatureRow) Window(w int) (WindowStats, bool) {
	for _, ws := range r.ByWindow {
		if ws.Window == w {
			return ws, true
		}
	}
	return WindowStats{}, false
}

// Complete reports whether every trend feature of the row is present.
// Rows early in a series are incomplete by design, not by error.
func (r FeatureRow) Complete() bool {
	for _, ws := range r.ByWindow {
		if ws.NDVITrend == nil || ws.HumidityTrend == nil {
			return false
		}
	}
	return true
}

// Derive computes the full feature set for every row of the series. The
// input is sorted by date first; duplicate dates are surfaced as an error.
// Rolling aggregates use a trailing window that shrinks to whatever history
// exists, down to a single row, so the rolling mean at row 0 equals the raw
// value at row 0 for every window size.
func Derive(series Series, cfg Config) ([]FeatureRow, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	sorted, err := series.sortedCopy()
	if err != nil {
		return nil, err
	}

	n := len(sorted)
	ndvi := make([]float64, n)
	humidity := make([]float64, n)
	lst := make([]float64, n)
	tmax := make([]float64, n)
	for i, o := range sorted {
		ndvi[i] = o.NDVI
		humidity[i] = o.SoilHumidity
		lst[i] = o.LST
		tmax[i] = o.TMax
	}

	rows := make([]FeatureRow, n)
	start := sorted[0].Date
	for i, o := range sorted {
		row := pointwise(o, cfg)
		row.DaysFromStart = int(o.Date.Sub(start).Hours() / 24)

		row.ByWindow = make([]WindowStats, 0, len(cfg.Windows))
		for _, w := range cfg.Windows {
			ws := WindowStats{Window: w}
			lo := i - w + 1
			if lo < 0 {
				lo = 0
			}
			if ws.NDVIMean, err = stats.Mean(ndvi[lo : i+1]); err != nil {
				return nil, err
			}
			if ws.HumidityMean, err = stats.Mean(humidity[lo : i+1]); err != nil {
				return nil, err
			}
			if ws.LSTMax, err = stats.Max(lst[lo : i+1]); err != nil {
				return nil, err
			}
			if ws.TMaxMean, err = stats.Mean(tmax[lo : i+1]); err != nil {
				return nil, err
			}
			if i >= w {
				ws.NDVITrend = ptr(ndvi[i] - ndvi[i-w])
				ws.HumidityTrend = ptr(humidity[i] - humidity[i-w])
			}
			row.ByWindow = append(row.ByWindow, ws)
		}
		rows[i] = row
	}
	return rows, nil
}

// pointwise computes the features that need no look-back: ratio, averages,
// deficit score, and calendar fields.
func pointwise(o Observation, cfg Config) FeatureRow {
	return FeatureRow{
		Observation:      o,
		EVINDVIRatio:     o.EVI / (o.NDVI + cfg.RatioEpsilon),
		TempAvg:          (o.TMax + o.TMin) / 2,
		ThermalAmplitude: o.TMax - o.TMin,
		DeficitScore:     deficitScore(o, cfg),
		Month:            int(o.Date.UTC().Month()),
		DayOfYear:        o.Date.UTC().YearDay(),
	}
}

// deficitScore blends humidity, temperature, and vegetation deficits into a
// single [0,1] scalar. Each normalized term saturates at its clamp bounds:
// soil humidity above the saturation point or LST beyond base+range moves
// the score no further.
func deficitScore(o Observation, cfg Config) float64 {
	humidityNorm := clip(o.SoilHumidity/cfg.HumiditySaturation, 0, 1)
	thermalNorm := clip((o.LST-cfg.LSTBase)/cfg.LSTRange, 0, 1)
	score := cfg.DeficitHumidityWeight*(1-humidityNorm) +
		cfg.DeficitThermalWeight*thermalNorm +
		cfg.DeficitVigorWeight*(1-o.NDVI)
	return clip(score, 0, 1)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ptr(v float64) *float64 { return &v }
