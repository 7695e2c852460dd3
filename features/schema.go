package features

import (
	"fmt"
)

// Column name fragments. The Spanish names are the wire contract consumed by
// trained model artifacts and must never be renamed.
const (
	colNDVI         = "ndvi"
	colEVI          = "evi"
	colLST          = "lst"
	colTMax         = "tmax"
	colTMin         = "tmin"
	colSoilHumidity = "soil_humidity"

	colRatio         = "evi_ndvi_ratio"
	colTempAvg       = "temp_promedio"
	colAmplitude     = "amplitud_termica"
	colDeficit       = "deficit_combinado"
	colMonth         = "mes"
	colDayOfYear     = "dia_año"
	colDaysFromStart = "dias_desde_inicio"
)

// IncompleteRowError reports a vectorization attempt on a row whose trend
// features are still missing. Feeding such a row to a model would silently
// shift every remaining column, so it is a hard error.
type IncompleteRowError struct {
	Column string
}

func (e *IncompleteRowError) Error() string {
	return fmt.Sprintf("feature row is incomplete: %s has no value", e.Column)
}

// Columns returns the ordered feature-name list produced by Derive for the
// given configuration. With the default config this is the 25-column
// training schema; the order is a contract shared with trained artifacts.
func Columns(cfg Config) []string {
	cols := []string{colNDVI, colEVI, colLST, colTMax, colTMin, colSoilHumidity}
	for _, w := range cfg.Windows {
		cols = append(cols,
			fmt.Sprintf("ndvi_promedio_%dd", w),
			fmt.Sprintf("ndvi_tendencia_%dd", w),
		)
	}
	for _, w := range cfg.Windows {
		cols = append(cols,
			fmt.Sprintf("humedad_promedio_%dd", w),
			fmt.Sprintf("humedad_tendencia_%dd", w),
		)
	}
	for _, w := range cfg.Windows {
		cols = append(cols, fmt.Sprintf("lst_max_%dd", w))
	}
	for _, w := range cfg.Windows {
		cols = append(cols, fmt.Sprintf("tmax_promedio_%dd", w))
	}
	cols = append(cols, colRatio, colTempAvg, colAmplitude, colDeficit)
	cols = append(cols, colMonth, colDayOfYear, colDaysFromStart)
	return cols
}

// Vector flattens the row into the exact order Columns describes. Rows with
// missing trend features cannot be vectorized.
func (r FeatureRow) Vector(cfg Config) ([]float64, error) {
	vec := []float64{r.NDVI, r.EVI, r.LST, r.TMax, r.TMin, r.SoilHumidity}
	for _, w := range cfg.Windows {
		ws, ok := r.Window(w)
		if !ok {
			return nil, &IncompleteRowError{Column: fmt.Sprintf("ndvi_promedio_%dd", w)}
		}
		if ws.NDVITrend == nil {
			return nil, &IncompleteRowError{Column: fmt.Sprintf("ndvi_tendencia_%dd", w)}
		}
		vec = append(vec, ws.NDVIMean, *ws.NDVITrend)
	}
	for _, w := range cfg.Windows {
		ws, _ := r.Window(w)
		if ws.HumidityTrend == nil {
			return nil, &IncompleteRowError{Column: fmt.Sprintf("humedad_tendencia_%dd", w)}
		}
		vec = append(vec, ws.HumidityMean, *ws.HumidityTrend)
	}
	for _, w := range cfg.Windows {
		ws, _ := r.Window(w)
		vec = append(vec, ws.LSTMax)
	}
	for _, w := range cfg.Windows {
		ws, _ := r.Window(w)
		vec = append(vec, ws.TMaxMean)
	}
	vec = append(vec, r.EVINDVIRatio, r.TempAvg, r.ThermalAmplitude, r.DeficitScore)
	vec = append(vec, float64(r.Month), float64(r.DayOfYear), float64(r.DaysFromStart))
	return vec, nil
}
