package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"agrostress/features"
)

// TrainingRecord is one labeled row in the on-disk training-table layout.
// The csv tags are the model training contract; the Spanish names and their
// order must match what trained artifacts expect.
type TrainingRecord struct {
	Date string `csv:"date"`

	NDVI         float64 `csv:"ndvi"`
	EVI          float64 `csv:"evi"`
	LST          float64 `csv:"lst"`
	TMax         float64 `csv:"tmax"`
	TMin         float64 `csv:"tmin"`
	SoilHumidity float64 `csv:"soil_humidity"`

	NDVIMean7d      float64 `csv:"ndvi_promedio_7d"`
	NDVITrend7d     float64 `csv:"ndvi_tendencia_7d"`
	NDVIMean14d     float64 `csv:"ndvi_promedio_14d"`
	NDVITrend14d    float64 `csv:"ndvi_tendencia_14d"`
	HumidityMean7d  float64 `csv:"humedad_promedio_7d"`
	HumidityTrend7d float64 `csv:"humedad_tendencia_7d"`
	HumidityMean14d float64 `csv:"humedad_promedio_14d"`
	HumidityTrend14 float64 `csv:"humedad_tendencia_14d"`
	LSTMax7d        float64 `csv:"lst_max_7d"`
	LSTMax14d       float64 `csv:"lst_max_14d"`
	TMaxMean7d      float64 `csv:"tmax_promedio_7d"`
	TMaxMean14d     float64 `csv:"tmax_promedio_14d"`

	EVINDVIRatio     float64 `csv:"evi_ndvi_ratio"`
	TempAvg          float64 `csv:"temp_promedio"`
	ThermalAmplitude float64 `csv:"amplitud_termica"`
	DeficitScore     float64 `csv:"deficit_combinado"`

	Month         int `csv:"mes"`
	DayOfYear     int `csv:"dia_año"`
	DaysFromStart int `csv:"dias_desde_inicio"`

	StressLevel int    `csv:"stress_level"`
	StressLabel string `csv:"stress_label"`
}

// NewTrainingRecord flattens a labeled row into the on-disk layout. The row
// must carry complete 7- and 14-day windows.
func NewTrainingRecord(r features.LabeledRow) (TrainingRecord, error) {
	w7, ok := r.Window(7)
	if !ok || w7.NDVITrend == nil || w7.HumidityTrend == nil {
		return TrainingRecord{}, fmt.Errorf("row %s: 7-day window incomplete", r.Date.Format("2006-01-02"))
	}
	w14, ok := r.Window(14)
	if !ok || w14.NDVITrend == nil || w14.HumidityTrend == nil {
		return TrainingRecord{}, fmt.Errorf("row %s: 14-day window incomplete", r.Date.Format("2006-01-02"))
	}
	return TrainingRecord{
		Date:             r.Date.Format("2006-01-02"),
		NDVI:             r.NDVI,
		EVI:              r.EVI,
		LST:              r.LST,
		TMax:             r.TMax,
		TMin:             r.TMin,
		SoilHumidity:     r.SoilHumidity,
		NDVIMean7d:       w7.NDVIMean,
		NDVITrend7d:      *w7.NDVITrend,
		NDVIMean14d:      w14.NDVIMean,
		NDVITrend14d:     *w14.NDVITrend,
		HumidityMean7d:   w7.HumidityMean,
		HumidityTrend7d:  *w7.HumidityTrend,
		HumidityMean14d:  w14.HumidityMean,
		HumidityTrend14:  *w14.HumidityTrend,
		LSTMax7d:         w7.LSTMax,
		LSTMax14d:        w14.LSTMax,
		TMaxMean7d:       w7.TMaxMean,
		TMaxMean14d:      w14.TMaxMean,
		EVINDVIRatio:     r.EVINDVIRatio,
		TempAvg:          r.TempAvg,
		ThermalAmplitude: r.ThermalAmplitude,
		DeficitScore:     r.DeficitScore,
		Month:            r.Month,
		DayOfYear:        r.DayOfYear,
		DaysFromStart:    r.DaysFromStart,
		StressLevel:      int(r.Level),
		StressLabel:      r.Tag,
	}, nil
}

// WriteTrainingTable writes labeled rows as a training-table CSV.
func WriteTrainingTable(w io.Writer, rows []features.LabeledRow) error {
	records := make([]TrainingRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := NewTrainingRecord(r)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("marshal training table: %w", err)
	}
	return nil
}

// WriteTrainingFile writes the training table to disk, truncating any
// existing file.
func WriteTrainingFile(path string, rows []features.LabeledRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteTrainingTable(f, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
