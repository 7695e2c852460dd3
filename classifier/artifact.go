// Package classifier is the boundary to the trained stress model. The model
// itself lives in a sidecar service; this package owns the artifact metadata
// (feature schema and scaler) and the inference call.
package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"agrostress/features"
)

// SchemaMismatchError reports a disagreement between the artifact's feature
// schema and what this build derives. Feeding a mismatched vector to the
// model would score garbage, so the mismatch is always fatal.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "artifact schema mismatch: " + e.Reason
}

// Scaler holds the standardization parameters fitted at training time.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Artifact is the JSON metadata exported alongside a trained model. The
// feature list is the exact column order the model was fitted on.
type Artifact struct {
	ModelID    string              `json:"model_id"`
	Features   []string            `json:"features"`
	Scaler     Scaler              `json:"scaler"`
	Thresholds features.Thresholds `json:"thresholds"`
}

// LoadArtifact reads and validates artifact metadata from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if len(a.Features) == 0 {
		return &SchemaMismatchError{Reason: "artifact lists no features"}
	}
	if len(a.Scaler.Mean) != len(a.Features) {
		return &SchemaMismatchError{Reason: fmt.Sprintf(
			"scaler mean has %d values for %d features", len(a.Scaler.Mean), len(a.Features))}
	}
	if len(a.Scaler.Scale) != len(a.Features) {
		return &SchemaMismatchError{Reason: fmt.Sprintf(
			"scaler scale has %d values for %d features", len(a.Scaler.Scale), len(a.Features))}
	}
	for i, s := range a.Scaler.Scale {
		if s == 0 {
			return &SchemaMismatchError{Reason: fmt.Sprintf("scaler scale[%d] is zero", i)}
		}
	}
	return nil
}

// Vectorize flattens a feature row into the artifact's column order. The
// derived schema must match the artifact's exactly; a row missing trend
// values cannot be vectorized.
func (a *Artifact) Vectorize(row features.FeatureRow, cfg features.Config) ([]float64, error) {
	cols := features.Columns(cfg)
	if len(cols) != len(a.Features) {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf(
			"artifact expects %d features, deriver produces %d", len(a.Features), len(cols))}
	}
	for i, name := range a.Features {
		if cols[i] != name {
			return nil, &SchemaMismatchError{Reason: fmt.Sprintf(
				"feature %d is %q in artifact but %q in deriver", i, name, cols[i])}
		}
	}
	vec, err := row.Vector(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorize row: %w", err)
	}
	return vec, nil
}

// Standardize applies the fitted scaler to a raw feature vector.
func (a *Artifact) Standardize(vec []float64) ([]float64, error) {
	if len(vec) != len(a.Scaler.Mean) {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf(
			"vector has %d values, scaler expects %d", len(vec), len(a.Scaler.Mean))}
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v - a.Scaler.Mean[i]) / a.Scaler.Scale[i]
	}
	return out, nil
}
