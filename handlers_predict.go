package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrostress/classifier"
	"agrostress/features"
	"agrostress/models"
	"agrostress/satellite"
)

// Farmer-facing cut points for the metric snapshot. These are display
// classifications, not model inputs.
const (
	humidityCritical = 12.0
	humidityLow      = 18.0
	ndviLow          = 0.5
	ndviModerate     = 0.65
)

// handlePredict scores one manually supplied observation. With no history
// available the feature schema is approximated from the single point, so the
// verdict is a snapshot, not a trend call.
func (a *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)

	var req predictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	date := a.clock.Now().UTC()
	if req.Date != nil {
		date = *req.Date
	}
	obs := features.Observation{
		Date:         date,
		NDVI:         req.NDVI,
		EVI:          req.EVI,
		LST:          req.LST,
		TMax:         req.TMax,
		TMin:         req.TMin,
		SoilHumidity: req.SoilHumidity,
	}

	var fieldID *primitive.ObjectID
	if req.FieldID != "" {
		oid, err := primitive.ObjectIDFromHex(req.FieldID)
		if err != nil {
			http.Error(w, "bad fieldId", http.StatusBadRequest)
			return
		}
		fieldID = &oid
	}

	pred, status, err := a.scoreObservation(r.Context(), uid, fieldID, obs, models.SourceManual)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	_ = json.NewEncoder(w).Encode(pred)
}

// handleAnalyze fetches the latest satellite observation for a point or a
// field centroid and scores it.
func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	uid := mustUserID(r)

	var req analyzeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	var lat, lon float64
	var fieldID *primitive.ObjectID
	switch {
	case req.Lat != nil && req.Lon != nil:
		lat, lon = *req.Lat, *req.Lon
	case req.FieldID != "":
		oid, err := primitive.ObjectIDFromHex(req.FieldID)
		if err != nil {
			http.Error(w, "bad fieldId", http.StatusBadRequest)
			return
		}
		f, ok := a.findFieldByID(r.Context(), w, uid, oid)
		if !ok {
			return
		}
		if len(f.Centroid) != 2 {
			http.Error(w, "field has no centroid", http.StatusUnprocessableEntity)
			return
		}
		lon, lat = f.Centroid[0], f.Centroid[1]
		fieldID = &oid
	default:
		http.Error(w, "lat/lon or fieldId is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	obs, err := a.power.Latest(ctx, lat, lon, a.clock.Now())
	if err != nil {
		providerFailures.Inc()
		var missing *satellite.MissingDataError
		if errors.As(err, &missing) {
			http.Error(w, missing.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, "satellite provider unavailable", http.StatusBadGateway)
		return
	}

	pred, status, err := a.scoreObservation(ctx, uid, fieldID, obs, models.SourceSatellite)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	_ = json.NewEncoder(w).Encode(pred)
}

// handleHealth reports whether the model artifact is loaded and scorable.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	art := a.model.Artifact()
	_ = json.NewEncoder(w).Encode(healthResp{
		Status:       "ok",
		ModelID:      art.ModelID,
		FeatureCount: len(art.Features),
		Timestamp:    a.clock.Now().UTC(),
	})
}

// scoreObservation runs the single-point approximation through the model and
// persists the verdict. The returned int is the HTTP status for the error
// path.
func (a *App) scoreObservation(ctx context.Context, uid primitive.ObjectID, fieldID *primitive.ObjectID, obs features.Observation, source models.PredictionSource) (*models.Prediction, int, error) {
	row := features.Approximate(obs, a.fcfg)

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	verdict, err := a.model.Predict(cctx, row, a.fcfg)
	if err != nil {
		var mismatch *classifier.SchemaMismatchError
		if errors.As(err, &mismatch) {
			return nil, http.StatusInternalServerError, err
		}
		return nil, http.StatusBadGateway, fmt.Errorf("model unavailable: %w", err)
	}
	predictionsTotal.WithLabelValues(verdict.Tag).Inc()

	pred := &models.Prediction{
		OperationID:    uuid.NewString(),
		OwnerID:        uid,
		FieldID:        fieldID,
		Source:         source,
		CreatedAt:      a.clock.Now().UTC(),
		Date:           row.Date,
		NDVI:           obs.NDVI,
		EVI:            obs.EVI,
		LST:            obs.LST,
		TMax:           obs.TMax,
		TMin:           obs.TMin,
		SoilHumidity:   obs.SoilHumidity,
		Level:          int(verdict.Level),
		Tag:            verdict.Tag,
		Probabilities:  verdict.Probabilities,
		Confidence:     verdict.Confidence(),
		ModelID:        a.model.Artifact().ModelID,
		Alert:          alertFor(verdict.Level),
		Recommendation: recommendationFor(verdict),
		Metrics: models.PredictionMetrics{
			DeficitScore:     row.DeficitScore,
			EVINDVIRatio:     row.EVINDVIRatio,
			TempAvg:          row.TempAvg,
			ThermalAmplitude: row.ThermalAmplitude,
			HumidityState:    humidityState(obs.SoilHumidity),
			VigorState:       vigorState(obs.NDVI),
		},
	}

	sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
	defer scancel()
	res, err := a.predictions.InsertOne(sctx, pred)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("db error")
	}
	pred.ID = res.InsertedID.(primitive.ObjectID)
	return pred, 0, nil
}

// findFieldByID is findField for handlers that already parsed the id.
func (a *App) findFieldByID(ctx context.Context, w http.ResponseWriter, uid, oid primitive.ObjectID) (models.Field, bool) {
	fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var f models.Field
	if err := a.fields.FindOne(fctx, bson.M{"_id": oid, "ownerId": uid}).Decode(&f); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return models.Field{}, false
	}
	return f, true
}

func alertFor(level features.StressLevel) string {
	switch level {
	case features.LevelSevere:
		return "red"
	case features.LevelModerate:
		return "yellow"
	default:
		return "green"
	}
}

// recommendationFor turns the verdict into an action. Moderate stress gets a
// tighter irrigation deadline when the severe probability is already
// climbing.
func recommendationFor(p *classifier.Prediction) string {
	switch p.Level {
	case features.LevelSevere:
		return "Irrigate immediately (25-30 mm), ideally 5-7am or 6-8pm"
	case features.LevelModerate:
		days := 5
		if p.Probabilities[int(features.LevelSevere)] > 0.3 {
			days = 3
		}
		return fmt.Sprintf("Schedule irrigation within %d days and monitor every 2 days", days)
	default:
		return "Conditions optimal, keep routine weekly monitoring"
	}
}

func humidityState(v float64) string {
	switch {
	case v < humidityCritical:
		return "critical"
	case v < humidityLow:
		return "low"
	default:
		return "adequate"
	}
}

func vigorState(ndvi float64) string {
	switch {
	case ndvi < ndviLow:
		return "low"
	case ndvi < ndviModerate:
		return "moderate"
	default:
		return "healthy"
	}
}
