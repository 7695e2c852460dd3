package main

import (
	"encoding/json"
	"time"

	"agrostress/features"
	"agrostress/models"
)

// Request/response DTOs. Keep them minimal and explicit.

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token string `json:"token"`
}

type createFieldReq struct {
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`         // GeoJSON Polygon/MultiPolygon
	AreaHa   *float64        `json:"areaHa,omitempty"` // stored under meta.areaHa
	Notes    string          `json:"notes,omitempty"`
	Crop     string          `json:"crop,omitempty"`
}

// observationsReq carries daily rows to merge into a field's series.
type observationsReq struct {
	Observations []models.DailyObservation `json:"observations"`
}

// predictReq is one manual observation to score. The date defaults to now.
type predictReq struct {
	Date         *time.Time `json:"date,omitempty"`
	NDVI         float64    `json:"ndvi"`
	EVI          float64    `json:"evi"`
	LST          float64    `json:"lst"`
	TMax         float64    `json:"tmax"`
	TMin         float64    `json:"tmin"`
	SoilHumidity float64    `json:"soil_humidity"`

	FieldID string `json:"fieldId,omitempty"` // attach the prediction to a field
}

// analyzeReq asks for a satellite-driven prediction at a point or at a
// field's centroid.
type analyzeReq struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	FieldID string   `json:"fieldId,omitempty"`
}

// trainingTableResp is the derived, labeled series of one field.
type trainingTableResp struct {
	FieldID    string              `json:"fieldId"`
	Rows       []labeledRowResp    `json:"rows"`
	Thresholds features.Thresholds `json:"thresholds"`
	Columns    []string            `json:"columns"`
	Dropped    int                 `json:"dropped"` // incomplete head rows
}

type labeledRowResp struct {
	Date   time.Time `json:"date"`
	Vector []float64 `json:"vector"`
	Level  int       `json:"level"`
	Tag    string    `json:"tag"`
}

type healthResp struct {
	Status       string    `json:"status"`
	ModelID      string    `json:"model_id"`
	FeatureCount int       `json:"feature_count"`
	Timestamp    time.Time `json:"timestamp"`
}
