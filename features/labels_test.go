package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completeRow builds a feature row with both windows populated, the way rows
// look after Derive + DropIncomplete.
func completeRow(date time.Time, humidity, ndvi, lst, trend7, trend14 float64) FeatureRow {
	o := Observation{
		Date:         date,
		NDVI:         ndvi,
		EVI:          0.5,
		LST:          lst,
		TMax:         27,
		TMin:         14,
		SoilHumidity: humidity,
	}
	r := pointwise(o, DefaultConfig())
	r.ByWindow = []WindowStats{
		{Window: 7, NDVIMean: ndvi, NDVITrend: ptr(trend7), HumidityMean: humidity, HumidityTrend: ptr(0), LSTMax: lst, TMaxMean: 27},
		{Window: 14, NDVIMean: ndvi, NDVITrend: ptr(trend14), HumidityMean: humidity, HumidityTrend: ptr(0), LSTMax: lst, TMaxMean: 27},
	}
	return r
}

func TestComputeThresholds(t *testing.T) {
	t.Run("quartiles of the table's own distribution", func(t *testing.T) {
		humidity := []float64{5, 20, 20, 24, 26, 28, 30, 32}
		rows := make([]FeatureRow, len(humidity))
		for i, h := range humidity {
			rows[i] = completeRow(day(i), h, 0.7, 25, 0, 0)
		}
		th, err := ComputeThresholds(rows)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, th.HumidityP25, 1e-12)
		assert.InDelta(t, 25.0, th.HumidityP50, 1e-12)
		assert.InDelta(t, 0.7, th.NDVIP25, 1e-12)
		assert.InDelta(t, 0.7, th.NDVIP50, 1e-12)
		assert.InDelta(t, 25.0, th.LSTP75, 1e-12)
	})

	t.Run("empty table is rejected", func(t *testing.T) {
		_, err := ComputeThresholds(nil)
		require.ErrorIs(t, err, ErrEmptySeries)
	})
}

func TestLabel(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("severe overrides moderate, one row below P25", func(t *testing.T) {
		// Humidity quartiles of this table: P25 = 20, P50 = 25.
		// LST P75 = 35 and every trend is zero, so severe rule (c) never
		// fires and the only severe row is the single one below P25.
		rows := []FeatureRow{
			completeRow(day(0), 5, 0.7, 25, 0, 0),  // below P25 -> severe
			completeRow(day(1), 20, 0.7, 45, 0, 0), // hot and dry -> deficit > 0.4 -> moderate
			completeRow(day(2), 20, 0.7, 45, 0, 0), // same -> moderate
			completeRow(day(3), 24, 0.7, 25, 0, 0), // below P50 but no second condition -> none
			completeRow(day(4), 26, 0.7, 25, 0, 0),
			completeRow(day(5), 28, 0.7, 25, 0, 0),
			completeRow(day(6), 30, 0.7, 25, 0, 0),
			completeRow(day(7), 32, 0.7, 25, 0, 0),
		}

		labeled, th, err := Label(rows, cfg)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, th.HumidityP25, 1e-12)
		assert.InDelta(t, 25.0, th.HumidityP50, 1e-12)

		want := []StressLevel{LevelSevere, LevelModerate, LevelModerate, LevelNone, LevelNone, LevelNone, LevelNone, LevelNone}
		for i, lr := range labeled {
			assert.Equal(t, want[i], lr.Level, "row %d", i)
			assert.Equal(t, want[i].Tag(), lr.Tag, "row %d", i)
		}
	})

	t.Run("declining 7-day NDVI trend promotes to moderate", func(t *testing.T) {
		// Humidity P25 = 20 and P50 = 30, so nothing here is severe and
		// the falling trend only matters on the dry side of the median.
		rows := []FeatureRow{
			completeRow(day(0), 20, 0.7, 25, -0.05, 0), // dry with falling NDVI -> moderate
			completeRow(day(1), 30, 0.7, 25, -0.05, 0), // falling NDVI but wet -> none
			completeRow(day(2), 20, 0.7, 25, 0, 0),     // dry but stable -> none
			completeRow(day(3), 20, 0.7, 25, 0, 0),
			completeRow(day(4), 30, 0.7, 25, 0, 0),
			completeRow(day(5), 30, 0.7, 25, 0, 0),
			completeRow(day(6), 30, 0.7, 25, 0, 0),
			completeRow(day(7), 30, 0.7, 25, 0, 0),
		}
		labeled, th, err := Label(rows, cfg)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, th.HumidityP25, 1e-12)
		assert.InDelta(t, 30.0, th.HumidityP50, 1e-12)
		assert.Equal(t, LevelModerate, labeled[0].Level)
		assert.Equal(t, LevelNone, labeled[1].Level)
		assert.Equal(t, LevelNone, labeled[2].Level)
	})

	t.Run("hot rows with collapsing 14-day trend go severe", func(t *testing.T) {
		// Flat humidity keeps the moderate gate and severe rules (a)/(b)
		// quiet; only LST above P75 combined with the falling 14-day
		// trend can promote here.
		rows := []FeatureRow{
			completeRow(day(0), 30, 0.7, 48, 0, -0.10), // LST above P75 and trend14 < cut -> severe
			completeRow(day(1), 30, 0.7, 48, 0, 0),     // hot but stable -> none
			completeRow(day(2), 30, 0.7, 25, 0, -0.10), // falling but cool -> none
			completeRow(day(3), 30, 0.7, 25, 0, 0),
			completeRow(day(4), 30, 0.7, 25, 0, 0),
			completeRow(day(5), 30, 0.7, 25, 0, 0),
			completeRow(day(6), 30, 0.7, 25, 0, 0),
			completeRow(day(7), 30, 0.7, 25, 0, 0),
		}
		labeled, th, err := Label(rows, cfg)
		require.NoError(t, err)
		require.Less(t, th.LSTP75, 48.0)
		assert.Equal(t, LevelSevere, labeled[0].Level)
		assert.Equal(t, LevelNone, labeled[1].Level)
		assert.Equal(t, LevelNone, labeled[2].Level)
	})

	t.Run("labeling is table-relative, not absolute", func(t *testing.T) {
		shared := completeRow(day(0), 20, 0.7, 25, 0, 0)

		wetTable := []FeatureRow{shared}
		for i, h := range []float64{28, 28, 30, 30, 32, 32, 34} {
			wetTable = append(wetTable, completeRow(day(i+1), h, 0.7, 25, 0, 0))
		}
		dryTable := []FeatureRow{shared}
		for i, h := range []float64{5, 6, 7, 8, 9, 10, 11} {
			dryTable = append(dryTable, completeRow(day(i+1), h, 0.7, 25, 0, 0))
		}

		wetLabeled, _, err := Label(wetTable, cfg)
		require.NoError(t, err)
		dryLabeled, _, err := Label(dryTable, cfg)
		require.NoError(t, err)

		assert.Equal(t, LevelSevere, wetLabeled[0].Level, "20 is the driest row of the wet table")
		assert.Equal(t, LevelNone, dryLabeled[0].Level, "20 is the wettest row of the dry table")
	})

	t.Run("single-class table signals insufficient diversity", func(t *testing.T) {
		rows := make([]FeatureRow, 6)
		for i := range rows {
			rows[i] = completeRow(day(i), 30, 0.7, 20, 0, 0)
		}
		labeled, _, err := Label(rows, cfg)
		var diversity *InsufficientDiversityError
		require.ErrorAs(t, err, &diversity)
		assert.Equal(t, 1, diversity.Classes)
		assert.Len(t, labeled, 6, "rows are still returned for inspection")
	})

	t.Run("trend rule windows must be derived", func(t *testing.T) {
		// A trend cut pointing at a window outside cfg.Windows is a
		// misconfiguration, not a silently skipped rule.
		bad := cfg
		bad.Windows = []int{7}
		_, _, err := Label([]FeatureRow{completeRow(day(0), 10, 0.5, 30, 0, 0)}, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trend rule window 14d")
	})

	t.Run("trend rules follow the configured windows", func(t *testing.T) {
		alt := cfg
		alt.Windows = []int{7, 14, 30}
		alt.ModerateTrendWindow = 30
		rows := []FeatureRow{
			completeRow(day(0), 20, 0.7, 25, 0, 0),
			completeRow(day(1), 30, 0.7, 25, 0, 0),
			completeRow(day(2), 20, 0.7, 25, 0, 0),
			completeRow(day(3), 30, 0.7, 25, 0, 0),
			completeRow(day(4), 30, 0.7, 25, 0, 0),
			completeRow(day(5), 5, 0.7, 25, 0, 0), // keeps two classes present
		}
		for i := range rows {
			rows[i].ByWindow = append(rows[i].ByWindow, WindowStats{
				Window: 30, NDVIMean: 0.7, NDVITrend: ptr(0),
				HumidityMean: rows[i].SoilHumidity, HumidityTrend: ptr(0),
				LSTMax: 25, TMaxMean: 27,
			})
		}
		rows[0].ByWindow[2].NDVITrend = ptr(-0.05) // dry with falling 30d NDVI

		labeled, _, err := Label(rows, alt)
		require.NoError(t, err)
		assert.Equal(t, LevelModerate, labeled[0].Level)
		assert.Equal(t, LevelNone, labeled[2].Level, "stable 30d trend stays unlabeled")
	})

	t.Run("incomplete rows are rejected", func(t *testing.T) {
		r := completeRow(day(0), 10, 0.5, 30, 0, 0)
		r.ByWindow[1].NDVITrend = nil
		_, _, err := Label([]FeatureRow{r}, cfg)
		var incomplete *IncompleteRowError
		require.ErrorAs(t, err, &incomplete)
	})
}

func TestDropIncomplete(t *testing.T) {
	complete := completeRow(day(0), 10, 0.5, 30, 0, 0)
	partial := completeRow(day(1), 10, 0.5, 30, 0, 0)
	partial.ByWindow[0].HumidityTrend = nil

	out := DropIncomplete([]FeatureRow{partial, complete, partial})
	require.Len(t, out, 1)
	assert.Equal(t, day(0), out[0].Date)
}
