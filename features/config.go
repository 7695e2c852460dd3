package features

// Config collects the numeric constants of the deriver and labeler. The
// defaults reproduce the behavior of the trained production model; changing
// any of them changes feature values and therefore invalidates previously
// trained artifacts.
type Config struct {
	// Windows are the rolling-window sizes in days. Each window produces a
	// mean and a trend column per tracked signal plus an LST max column.
	Windows []int

	// RatioEpsilon is added to NDVI in the EVI/NDVI ratio denominator so the
	// ratio never divides by zero. It biases the ratio slightly downward
	// near NDVI = 0 and must stay fixed for numeric parity with trained
	// models.
	RatioEpsilon float64

	// Deficit score blend. Weights sum to 1.
	DeficitHumidityWeight float64 // weight of the humidity deficit term
	DeficitThermalWeight  float64 // weight of the temperature excess term
	DeficitVigorWeight    float64 // weight of the vegetation deficit term
	HumiditySaturation    float64 // soil humidity mapping to zero deficit
	LSTBase               float64 // LST at which the thermal term starts
	LSTRange              float64 // LST span over which the thermal term saturates

	// Labeling cuts applied on top of the per-table percentile thresholds.
	// Each trend cut names the window its rule reads; that window must be
	// among Windows or labeling fails.
	ModerateDeficitCut  float64 // deficit score above which moderate applies
	ModerateTrendWindow int     // window of the moderate NDVI trend rule
	ModerateTrendCut    float64 // NDVI trend below which moderate applies
	SevereTrendWindow   int     // window of the severe NDVI trend rule
	SevereTrendCut      float64 // NDVI trend below which severe applies
}

// DefaultConfig returns the production constants: 7/14-day windows, epsilon
// 0.001, deficit weights 0.5/0.3/0.2 with humidity saturating at 35 and the
// thermal term spanning 25–45 °C, moderate deficit cut 0.4, trend cuts
// −0.03 (7d) and −0.05 (14d).
func DefaultConfig() Config {
	return Config{
		Windows:               []int{7, 14},
		RatioEpsilon:          0.001,
		DeficitHumidityWeight: 0.5,
		DeficitThermalWeight:  0.3,
		DeficitVigorWeight:    0.2,
		HumiditySaturation:    35,
		LSTBase:               25,
		LSTRange:              20,
		ModerateDeficitCut:    0.4,
		ModerateTrendWindow:   7,
		ModerateTrendCut:      -0.03,
		SevereTrendWindow:     14,
		SevereTrendCut:        -0.05,
	}
}
