package features

import (
	"fmt"
	"slices"

	"github.com/montanaflynn/stats"
)

// StressLevel is the 3-level ordinal crop water-stress class.
type StressLevel int

const (
	LevelNone StressLevel = iota
	LevelModerate
	LevelSevere
)

// Tag returns the fixed textual tag for the level.
func (l StressLevel) Tag() string {
	switch l {
	case LevelModerate:
		return "moderate_stress"
	case LevelSevere:
		return "severe_stress"
	default:
		return "no_stress"
	}
}

// Thresholds is the Percentile Threshold Set of one training table. It is
// computed from the realized distribution of that table and never reused:
// two training runs over different data will, by design, classify identical
// raw values differently.
type Thresholds struct {
	HumidityP25 float64 `json:"humidity_p25"`
	HumidityP50 float64 `json:"humidity_p50"`
	NDVIP25     float64 `json:"ndvi_p25"`
	NDVIP50     float64 `json:"ndvi_p50"`
	LSTP75      float64 `json:"lst_p75"`
}

// LabeledRow is a feature row plus its assigned stress label.
type LabeledRow struct {
	FeatureRow
	Level StressLevel
	Tag   string
}

// InsufficientDiversityError reports a labeled table with fewer than two
// distinct classes. Training a classifier on such a table is meaningless,
// so the condition is surfaced before any model fitting can begin.
type InsufficientDiversityError struct {
	Classes int
	Rows    int
}

func (e *InsufficientDiversityError) Error() string {
	return fmt.Sprintf("insufficient label diversity: %d class(es) across %d rows", e.Classes, e.Rows)
}

// DropIncomplete filters out rows whose trend features are missing. Rows at
// the head of a series lack trends by design; they carry no labelable
// signal and must not reach threshold computation.
func DropIncomplete(rows []FeatureRow) []FeatureRow {
	out := make([]FeatureRow, 0, len(rows))
	for _, r := range rows {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// ComputeThresholds derives the Percentile Threshold Set from the table's
// own soil humidity, NDVI, and LST distributions.
func ComputeThresholds(rows []FeatureRow) (Thresholds, error) {
	if len(rows) == 0 {
		return Thresholds{}, ErrEmptySeries
	}
	humidity := make(stats.Float64Data, len(rows))
	ndvi := make(stats.Float64Data, len(rows))
	lst := make(stats.Float64Data, len(rows))
	for i, r := range rows {
		humidity[i] = r.SoilHumidity
		ndvi[i] = r.NDVI
		lst[i] = r.LST
	}

	var t Thresholds
	hq, err := stats.Quartile(humidity)
	if err != nil {
		return Thresholds{}, fmt.Errorf("humidity quartiles: %w", err)
	}
	nq, err := stats.Quartile(ndvi)
	if err != nil {
		return Thresholds{}, fmt.Errorf("ndvi quartiles: %w", err)
	}
	lq, err := stats.Quartile(lst)
	if err != nil {
		return Thresholds{}, fmt.Errorf("lst quartiles: %w", err)
	}
	t.HumidityP25 = hq.Q1
	t.HumidityP50 = hq.Q2
	t.NDVIP25 = nq.Q1
	t.NDVIP50 = nq.Q2
	t.LSTP75 = lq.Q3
	return t, nil
}

// Label assigns a stress level to every complete row of the table. Rows with
// missing trend features are rejected; callers run DropIncomplete first.
// Every row defaults to no stress, is promoted to moderate when any moderate
// rule matches, and to severe when any severe rule matches — severe always
// overrides moderate.
//
// The result includes the realized threshold set so callers can report which
// cut points produced the labels. If the labeled table ends up with fewer
// than two distinct classes the rows are returned together with an
// *InsufficientDiversityError; the table itself is still valid for
// inspection, just not for training.
func Label(rows []FeatureRow, cfg Config) ([]LabeledRow, Thresholds, error) {
	for _, w := range []int{cfg.ModerateTrendWindow, cfg.SevereTrendWindow} {
		if !slices.Contains(cfg.Windows, w) {
			return nil, Thresholds{}, fmt.Errorf("trend rule window %dd not among derived windows %v", w, cfg.Windows)
		}
	}
	for _, r := range rows {
		if !r.Complete() {
			return nil, Thresholds{}, &IncompleteRowError{Column: "trend"}
		}
	}
	t, err := ComputeThresholds(rows)
	if err != nil {
		return nil, Thresholds{}, err
	}

	labeled := make([]LabeledRow, len(rows))
	seen := map[StressLevel]bool{}
	for i, r := range rows {
		level := LevelNone
		if moderateStress(r, t, cfg) {
			level = LevelModerate
		}
		if severeStress(r, t, cfg) {
			level = LevelSevere
		}
		labeled[i] = LabeledRow{FeatureRow: r, Level: level, Tag: level.Tag()}
		seen[level] = true
	}

	if len(seen) < 2 {
		return labeled, t, &InsufficientDiversityError{Classes: len(seen), Rows: len(rows)}
	}
	return labeled, t, nil
}

// moderateStress checks the three moderate-stress rules. All of them gate on
// soil humidity below the table median.
func moderateStress(r FeatureRow, t Thresholds, cfg Config) bool {
	if r.SoilHumidity >= t.HumidityP50 {
		return false
	}
	if r.NDVI < t.NDVIP50 {
		return true
	}
	if r.DeficitScore > cfg.ModerateDeficitCut {
		return true
	}
	ws, ok := r.Window(cfg.ModerateTrendWindow)
	if ok && ws.NDVITrend != nil && *ws.NDVITrend < cfg.ModerateTrendCut {
		return true
	}
	return false
}

// severeStress checks the three severe-stress rules.
func severeStress(r FeatureRow, t Thresholds, cfg Config) bool {
	if r.SoilHumidity < t.HumidityP25 {
		return true
	}
	if r.NDVI < t.NDVIP25 && r.SoilHumidity < t.HumidityP50 {
		return true
	}
	ws, ok := r.Window(cfg.SevereTrendWindow)
	if ok && ws.NDVITrend != nil && r.LST > t.LSTP75 && *ws.NDVITrend < cfg.SevereTrendCut {
		return true
	}
	return false
}
