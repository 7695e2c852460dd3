package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrostress/features"
	"agrostress/models"
)

// parseGeometry validates a GeoJSON Polygon/MultiPolygon and returns it as a
// document plus its centroid as [lon, lat].
func parseGeometry(raw json.RawMessage) (map[string]any, []float64, error) {
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, nil, errors.New("invalid geometry json")
	}
	if geom.Type != "Polygon" && geom.Type != "MultiPolygon" {
		return nil, nil, errors.New("geometry.type must be Polygon or MultiPolygon")
	}
	centroid, area := planar.CentroidArea(geom.Coordinates)
	if area <= 0 {
		return nil, nil, errors.New("geometry has no area")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, errors.New("invalid geometry json")
	}
	return doc, []float64{centroid.X(), centroid.Y()}, nil
}

// handleCreateField inserts a new field after validating its geometry.
func (a *App) handleCreateField(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)

	var req createFieldReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Geometry) == 0 {
		http.Error(w, "name and geometry are required", http.StatusBadRequest)
		return
	}
	geom, centroid, err := parseGeometry(req.Geometry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f := models.Field{
		OwnerID:   uid,
		Name:      req.Name,
		Geometry:  geom,
		Centroid:  centroid,
		CreatedAt: a.clock.Now().UTC(),
	}
	if req.AreaHa != nil || req.Notes != "" || req.Crop != "" {
		f.Meta = &models.FieldMeta{AreaHa: req.AreaHa, Notes: req.Notes, Crop: req.Crop}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	res, err := a.fields.InsertOne(ctx, &f)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	f.ID = res.InsertedID.(primitive.ObjectID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(f)
}

// handleListFields returns the current user's fields, newest first.
func (a *App) handleListFields(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	cur, err := a.fields.Find(ctx, bson.M{"ownerId": uid}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer cur.Close(ctx)

	var out []models.Field
	if err := cur.All(ctx, &out); err != nil {
		http.Error(w, "decode error", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleGetField returns a single field by id (owned by the user).
func (a *App) handleGetField(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	f, ok := a.findField(w, r, uid)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(f)
}

// handleUpdateField updates name, geometry, and meta fields when provided.
func (a *App) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	var req createFieldReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	set := bson.M{}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if len(req.Geometry) > 0 {
		geom, centroid, err := parseGeometry(req.Geometry)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		set["geometry"] = geom
		set["centroid"] = centroid
	}
	if req.AreaHa != nil {
		set["meta.areaHa"] = req.AreaHa
	}
	if req.Notes != "" {
		set["meta.notes"] = req.Notes
	}
	if req.Crop != "" {
		set["meta.crop"] = req.Crop
	}
	if len(set) == 0 {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	res := a.fields.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "ownerId": uid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var out models.Field
	if err := res.Decode(&out); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleDeleteField removes a field by id.
func (a *App) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := a.fields.DeleteOne(ctx, bson.M{"_id": oid, "ownerId": uid})
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if res.DeletedCount == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(bson.M{"ok": true})
}

// handleMergeObservations upserts daily observations into the field's series
// keyed by UTC date. Incoming non-nil values override stored ones; days not
// mentioned stay untouched.
func (a *App) handleMergeObservations(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	var req observationsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.Observations) == 0 {
		http.Error(w, "observations are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	var existing struct {
		Observations []models.DailyObservation `bson:"observations"`
	}
	find := a.fields.FindOne(ctx,
		bson.M{"_id": oid, "ownerId": uid},
		options.FindOne().SetProjection(bson.M{"observations": 1}),
	)
	if err := find.Decode(&existing); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	merged := mergeObservations(existing.Observations, req.Observations)

	res := a.fields.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "ownerId": uid},
		bson.M{"$set": bson.M{"observations": merged}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var out models.Field
	if err := res.Decode(&out); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleTrainingTable derives and labels the field's stored series. Complete
// days feed the deriver; rows lacking trend history are dropped before
// threshold computation. A single-class result is a 422, not a 500: the data
// is valid, just not trainable.
func (a *App) handleTrainingTable(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)
	f, ok := a.findField(w, r, uid)
	if !ok {
		return
	}

	series := make(features.Series, 0, len(f.Observations))
	for _, d := range f.Observations {
		if !d.Complete() {
			continue
		}
		series = append(series, features.Observation{
			Date:         d.Date,
			NDVI:         *d.NDVI,
			EVI:          *d.EVI,
			LST:          *d.LST,
			TMax:         *d.TMax,
			TMin:         *d.TMin,
			SoilHumidity: *d.SoilHumidity,
		})
	}
	if len(series) == 0 {
		http.Error(w, "field has no complete observations", http.StatusUnprocessableEntity)
		return
	}

	rows, err := features.Derive(series, a.fcfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	complete := features.DropIncomplete(rows)
	if len(complete) == 0 {
		http.Error(w, "series too short for trend features", http.StatusUnprocessableEntity)
		return
	}

	labeled, thresholds, err := features.Label(complete, a.fcfg)
	if err != nil {
		var div *features.InsufficientDiversityError
		if errors.As(err, &div) {
			http.Error(w, div.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "labeling failed", http.StatusInternalServerError)
		return
	}

	resp := trainingTableResp{
		FieldID:    f.ID.Hex(),
		Thresholds: thresholds,
		Columns:    features.Columns(a.fcfg),
		Dropped:    len(rows) - len(complete),
		Rows:       make([]labeledRowResp, 0, len(labeled)),
	}
	for _, lr := range labeled {
		vec, err := lr.Vector(a.fcfg)
		if err != nil {
			http.Error(w, "vectorize failed", http.StatusInternalServerError)
			return
		}
		resp.Rows = append(resp.Rows, labeledRowResp{
			Date:   lr.Date,
			Vector: vec,
			Level:  int(lr.Level),
			Tag:    lr.Tag,
		})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// findField loads one of the user's fields by the route id, writing the
// error response itself when the lookup fails.
func (a *App) findField(w http.ResponseWriter, r *http.Request, uid primitive.ObjectID) (models.Field, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return models.Field{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var f models.Field
	if err := a.fields.FindOne(ctx, bson.M{"_id": oid, "ownerId": uid}).Decode(&f); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return models.Field{}, false
	}
	return f, true
}

// ---- helpers ----

// mergeObservations overlays incoming daily rows onto the stored series,
// one bucket per UTC date, ascending. Non-nil incoming values win.
func mergeObservations(existing, incoming []models.DailyObservation) []models.DailyObservation {
	byDay := make(map[string]models.DailyObservation, len(existing))
	for _, d := range existing {
		d.Date = dateOnlyUTC(d.Date)
		byDay[dateKeyUTC(d.Date)] = d
	}
	for _, in := range incoming {
		in.Date = dateOnlyUTC(in.Date)
		key := dateKeyUTC(in.Date)
		if curr, ok := byDay[key]; ok {
			byDay[key] = mergeDaily(curr, in)
		} else {
			byDay[key] = in
		}
	}

	merged := make([]models.DailyObservation, 0, len(byDay))
	for _, v := range byDay {
		merged = append(merged, v)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	return merged
}

// dateOnlyUTC normalizes a timestamp to 00:00:00 UTC (one bucket per day).
func dateOnlyUTC(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}

// dateKeyUTC formats a timestamp as "YYYY-MM-DD" in UTC to serve as a map key.
func dateKeyUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// mergeDaily overlays non-nil values from 'in' onto 'curr' (same date).
func mergeDaily(curr, in models.DailyObservation) models.DailyObservation {
	out := curr
	out.Date = in.Date // normalized already

	if in.NDVI != nil {
		out.NDVI = in.NDVI
	}
	if in.EVI != nil {
		out.EVI = in.EVI
	}
	if in.LST != nil {
		out.LST = in.LST
	}
	if in.TMax != nil {
		out.TMax = in.TMax
	}
	if in.TMin != nil {
		out.TMin = in.TMin
	}
	if in.SoilHumidity != nil {
		out.SoilHumidity = in.SoilHumidity
	}
	return out
}
