package features

// Approximate rebuilds the training feature schema from a single observation
// with no series context. Rolling means and maxes take the observation's own
// current value, every trend is exactly zero ("no change known"), and the
// day offset from series start is zero. Pointwise features are computed the
// same way Derive computes them.
//
// Known limitation: trained models never saw zero trends paired with
// arbitrary raw values during training, so single-point predictions carry a
// systematic bias versus predictions made with real history.
func Approximate(o Observation, cfg Config) FeatureRow {
	o.Date = dateOnlyUTC(o.Date)
	row := pointwise(o, cfg)
	row.DaysFromStart = 0

	row.ByWindow = make([]WindowStats, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		row.ByWindow = append(row.ByWindow, WindowStats{
			Window:        w,
			NDVIMean:      o.NDVI,
			NDVITrend:     ptr(0),
			HumidityMean:  o.SoilHumidity,
			HumidityTrend: ptr(0),
			LSTMax:        o.LST,
			TMaxMean:      o.TMax,
		})
	}
	return row
}
