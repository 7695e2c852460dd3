package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PredictionSource tells where the scored observation came from.
type PredictionSource string

const (
	SourceManual    PredictionSource = "manual"
	SourceSatellite PredictionSource = "satellite"
)

// Prediction mirrors documents in the "predictions" collection: one scored
// observation with the model verdict and the farmer-facing reading of it.
type Prediction struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"     json:"id"`
	OperationID string              `bson:"operation_id"      json:"operation_id"` // uuid
	OwnerID     primitive.ObjectID  `bson:"ownerId"           json:"ownerId"`
	FieldID     *primitive.ObjectID `bson:"fieldId,omitempty" json:"fieldId,omitempty"`
	Source      PredictionSource    `bson:"source"            json:"source"`
	CreatedAt   time.Time           `bson:"created_at"        json:"created_at"`

	// Input as scored.
	Date         time.Time `bson:"date"          json:"date"`
	NDVI         float64   `bson:"ndvi"          json:"ndvi"`
	EVI          float64   `bson:"evi"           json:"evi"`
	LST          float64   `bson:"lst"           json:"lst"`
	TMax         float64   `bson:"tmax"          json:"tmax"`
	TMin         float64   `bson:"tmin"          json:"tmin"`
	SoilHumidity float64   `bson:"soil_humidity" json:"soil_humidity"`

	// Model verdict.
	Level         int       `bson:"level"         json:"level"` // 0 | 1 | 2
	Tag           string    `bson:"tag"           json:"tag"`
	Probabilities []float64 `bson:"probabilities" json:"probabilities"`
	Confidence    float64   `bson:"confidence"    json:"confidence"`
	ModelID       string    `bson:"model_id"      json:"model_id"`

	// Farmer-facing reading.
	Alert          string            `bson:"alert"          json:"alert"` // green | yellow | red
	Recommendation string            `bson:"recommendation" json:"recommendation"`
	Metrics        PredictionMetrics `bson:"metrics"        json:"metrics"`
}

// PredictionMetrics is the snapshot of derived indicators shown alongside
// the verdict.
type PredictionMetrics struct {
	DeficitScore     float64 `bson:"deficit_combinado" json:"deficit_combinado"`
	EVINDVIRatio     float64 `bson:"evi_ndvi_ratio"    json:"evi_ndvi_ratio"`
	TempAvg          float64 `bson:"temp_promedio"     json:"temp_promedio"`
	ThermalAmplitude float64 `bson:"amplitud_termica"  json:"amplitud_termica"`
	HumidityState    string  `bson:"humidity_state"    json:"humidity_state"` // critical | low | adequate
	VigorState       string  `bson:"vigor_state"       json:"vigor_state"`    // low | moderate | healthy
}
