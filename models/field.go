package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field — a monitored plot with geometry and its stored observation series.
// Derived features are never persisted; they are recomputed on demand from
// the observations.
type Field struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID `bson:"ownerId"      json:"ownerId"`
	Name      string             `bson:"name"         json:"name"`
	Geometry  map[string]any     `bson:"geometry"     json:"geometry"` // GeoJSON Polygon/MultiPolygon
	Centroid  []float64          `bson:"centroid"     json:"centroid"` // [lon, lat]
	CreatedAt time.Time          `bson:"createdAt"    json:"createdAt"`

	// Farmer-facing metadata
	Meta *FieldMeta `bson:"meta,omitempty" json:"meta,omitempty"`

	// Daily observation series, one entry per UTC date, ascending.
	Observations []DailyObservation `bson:"observations,omitempty" json:"observations,omitempty"`
}

type FieldMeta struct {
	AreaHa *float64 `bson:"areaHa,omitempty" json:"areaHa,omitempty"` // area in hectares
	Notes  string   `bson:"notes,omitempty"  json:"notes,omitempty"`
	Crop   string   `bson:"crop,omitempty"   json:"crop,omitempty"` // wheat | corn | soybeans | etc.
}

// DailyObservation — one day of raw signals as stored on the field. Values
// are pointers so partial days can be merged without zeroing what a later
// ingest fills in.
type DailyObservation struct {
	Date         time.Time `bson:"date"                    json:"date"`
	NDVI         *float64  `bson:"ndvi,omitempty"          json:"ndvi,omitempty"`
	EVI          *float64  `bson:"evi,omitempty"           json:"evi,omitempty"`
	LST          *float64  `bson:"lst,omitempty"           json:"lst,omitempty"`
	TMax         *float64  `bson:"tmax,omitempty"          json:"tmax,omitempty"`
	TMin         *float64  `bson:"tmin,omitempty"          json:"tmin,omitempty"`
	SoilHumidity *float64  `bson:"soil_humidity,omitempty" json:"soil_humidity,omitempty"`
}

// Complete reports whether every signal of the day is present, which is the
// bar an observation must clear before it can enter feature derivation.
func (d DailyObservation) Complete() bool {
	return d.NDVI != nil && d.EVI != nil && d.LST != nil &&
		d.TMax != nil && d.TMin != nil && d.SoilHumidity != nil
}
