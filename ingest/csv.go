// Package ingest loads raw observation CSVs and writes labeled training
// tables. It is the only place the repo parses or emits CSV; everything past
// this boundary works with typed observations.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"agrostress/features"
)

// ErrNoRows is returned when a CSV contains a header but no data rows.
var ErrNoRows = errors.New("csv contains no data rows")

// MinRecommendedRows is the series length below which a load is flagged as
// too short for stable percentile thresholds.
const MinRecommendedRows = 100

// dateLayouts are the accepted date formats, ISO first, then day-first.
var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// nullFloat keeps an empty CSV cell distinguishable from a literal zero.
// gocsv allocates pointer fields even for empty cells, so nil checks on
// *float64 cannot detect a missing value; this type records validity itself.
type nullFloat struct {
	val   float64
	valid bool
}

func (n *nullFloat) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		n.valid = false
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	n.val, n.valid = v, true
	return nil
}

// rawRow mirrors one CSV line before validation.
type rawRow struct {
	Date         string    `csv:"date"`
	NDVI         nullFloat `csv:"ndvi"`
	EVI          nullFloat `csv:"evi"`
	LST          nullFloat `csv:"lst"`
	TMax         nullFloat `csv:"tmax"`
	TMin         nullFloat `csv:"tmin"`
	SoilHumidity nullFloat `csv:"soil_humidity"`
}

// Summary reports what a load accepted, dropped, and found suspicious.
// Warnings never block the pipeline; rejected rows do not reach the series.
type Summary struct {
	Rows     int
	Rejected int
	Warnings []string
}

func (s *Summary) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// ReadFile loads and validates an observation CSV from disk.
func ReadFile(path string) (features.Series, *Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	series, summary, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return series, summary, nil
}

// Read parses an observation CSV. Rows with missing cells or unparseable
// dates are rejected and counted; values outside physical ranges and series
// shorter than MinRecommendedRows produce warnings. Duplicate dates and an
// empty table are errors.
func Read(r io.Reader) (features.Series, *Summary, error) {
	var raw []*rawRow
	if err := gocsv.Unmarshal(r, &raw); err != nil {
		return nil, nil, fmt.Errorf("unmarshal csv: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil, ErrNoRows
	}

	summary := &Summary{}
	series := make(features.Series, 0, len(raw))
	seen := make(map[time.Time]bool, len(raw))
	for i, row := range raw {
		line := i + 2 // header is line 1
		o, err := row.observation()
		if err != nil {
			summary.Rejected++
			summary.warnf("line %d rejected: %v", line, err)
			continue
		}
		if seen[o.Date] {
			return nil, nil, &features.DuplicateDateError{Date: o.Date}
		}
		seen[o.Date] = true

		if o.NDVI < -1 || o.NDVI > 1 {
			summary.warnf("line %d: ndvi %.3f outside [-1, 1]", line, o.NDVI)
		}
		if o.EVI < 0 || o.EVI > 1 {
			summary.warnf("line %d: evi %.3f outside [0, 1]", line, o.EVI)
		}
		series = append(series, o)
	}

	if len(series) == 0 {
		return nil, nil, ErrNoRows
	}
	summary.Rows = len(series)
	if len(series) < MinRecommendedRows {
		summary.warnf("only %d rows; percentile thresholds are unstable below %d", len(series), MinRecommendedRows)
	}
	return series, summary, nil
}

// observation validates one raw line into a typed observation.
func (r *rawRow) observation() (features.Observation, error) {
	if r.Date == "" {
		return features.Observation{}, errors.New("missing date")
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return features.Observation{}, err
	}
	fields := []struct {
		name string
		val  nullFloat
	}{
		{"ndvi", r.NDVI}, {"evi", r.EVI}, {"lst", r.LST},
		{"tmax", r.TMax}, {"tmin", r.TMin}, {"soil_humidity", r.SoilHumidity},
	}
	for _, f := range fields {
		if !f.val.valid {
			return features.Observation{}, fmt.Errorf("missing %s", f.name)
		}
	}
	return features.Observation{
		Date:         date,
		NDVI:         r.NDVI.val,
		EVI:          r.EVI.val,
		LST:          r.LST.val,
		TMax:         r.TMax.val,
		TMin:         r.TMin.val,
		SoilHumidity: r.SoilHumidity.val,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
