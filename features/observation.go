package features

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrEmptySeries is returned when a deriver is invoked on a series with no
// observations. Callers are expected to reject empty input at the edge; this
// error exists so the failure stays explicit if they don't.
var ErrEmptySeries = errors.New("observation series is empty")

// DuplicateDateError reports two observations sharing the same calendar day.
// Duplicate dates are a data-quality problem the caller must resolve; the
// deriver never picks a winner silently.
type DuplicateDateError struct {
	Date time.Time
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("duplicate observation date %s", e.Date.Format("2006-01-02"))
}

// Observation is one calendar day of raw remote-sensing and weather values
// for a single field.
type Observation struct {
	Date         time.Time `csv:"date" json:"date"`
	NDVI         float64   `csv:"ndvi" json:"ndvi"`
	EVI          float64   `csv:"evi" json:"evi"`
	LST          float64   `csv:"lst" json:"lst"`
	TMax         float64   `csv:"tmax" json:"tmax"`
	TMin         float64   `csv:"tmin" json:"tmin"`
	SoilHumidity float64   `csv:"soil_humidity" json:"soil_humidity"`
}

// Series is a date-ordered sequence of observations for one location.
type Series []Observation

// sortedCopy returns the series sorted ascending by date, normalized to
// 00:00:00 UTC buckets, without mutating the input. Duplicate dates are
// returned as an error.
func (s Series) sortedCopy() (Series, error) {
	out := make(Series, len(s))
	copy(out, s)
	for i := range out {
		out[i].Date = dateOnlyUTC(out[i].Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return nil, &DuplicateDateError{Date: out[i].Date}
		}
	}
	return out, nil
}

// dateOnlyUTC normalizes a timestamp to 00:00:00 UTC (one bucket per day).
func dateOnlyUTC(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}
