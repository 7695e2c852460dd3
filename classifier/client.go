package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agrostress/features"
)

// InferRequest is the payload sent to the model server. The vector is
// already standardized; the model id lets the server reject stale clients.
type InferRequest struct {
	ModelID  string    `json:"model_id"`
	Features []float64 `json:"features"`
}

// InferResponse is the model server's verdict: the predicted level and one
// probability per class, indexed by level.
type InferResponse struct {
	Level         int       `json:"level"`
	Probabilities []float64 `json:"probabilities"`
}

// Client calls the model server over HTTP.
type Client struct {
	baseURL    string
	artifact   *Artifact
	httpClient *http.Client
}

// NewClient wraps the model server at baseURL with the given artifact.
func NewClient(baseURL string, artifact *Artifact) *Client {
	return &Client{
		baseURL:    baseURL,
		artifact:   artifact,
		httpClient: &http.Client{Timeout: 25 * time.Second},
	}
}

// Artifact exposes the loaded artifact metadata.
func (c *Client) Artifact() *Artifact { return c.artifact }

// Predict vectorizes, standardizes, and scores one feature row.
func (c *Client) Predict(ctx context.Context, row features.FeatureRow, cfg features.Config) (*Prediction, error) {
	vec, err := c.artifact.Vectorize(row, cfg)
	if err != nil {
		return nil, err
	}
	scaled, err := c.artifact.Standardize(vec)
	if err != nil {
		return nil, err
	}

	resp, err := c.infer(ctx, InferRequest{ModelID: c.artifact.ModelID, Features: scaled})
	if err != nil {
		return nil, err
	}
	if resp.Level < int(features.LevelNone) || resp.Level > int(features.LevelSevere) {
		return nil, fmt.Errorf("model returned unknown level %d", resp.Level)
	}
	if len(resp.Probabilities) != 3 {
		return nil, fmt.Errorf("model returned %d probabilities, want 3", len(resp.Probabilities))
	}

	level := features.StressLevel(resp.Level)
	return &Prediction{
		Level:         level,
		Tag:           level.Tag(),
		Probabilities: resp.Probabilities,
	}, nil
}

// Prediction is a scored stress level with per-class probabilities ordered
// no/moderate/severe.
type Prediction struct {
	Level         features.StressLevel `json:"level"`
	Tag           string               `json:"tag"`
	Probabilities []float64            `json:"probabilities"`
}

// Confidence is the probability assigned to the predicted class.
func (p *Prediction) Confidence() float64 {
	return p.Probabilities[int(p.Level)]
}

func (c *Client) infer(ctx context.Context, in InferRequest) (*InferResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal infer req: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model non-2xx: %s, body: %s", resp.Status, string(data))
	}

	var out InferResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode model resp: %w", err)
	}
	return &out, nil
}
