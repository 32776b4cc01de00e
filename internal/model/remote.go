package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Remote scores feature vectors against an external model service over
// HTTP. The service contract is a pair of JSON endpoints: POST /score
// returns the probability, POST /explain returns per-feature
// contributions. Sampling-based attribution stays server-side, so
// AttributeSampled is unsupported here.
type Remote struct {
	baseURL string
	client  *http.Client
}

var _ domain.Model = (*Remote)(nil)

type scoreRequest struct {
	Features []float64 `json:"features"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

type explainResponse struct {
	Contributions []float64 `json:"contributions"`
	Error         string    `json:"error,omitempty"`
}

// NewRemote builds a client for the scoring service at baseURL. A zero
// timeout falls back to 5s.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PredictProba scores a vector through the remote /score endpoint.
func (r *Remote) PredictProba(x []float64) (float64, error) {
	var resp scoreResponse
	if err := r.post("/score", scoreRequest{Features: x}, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("model service: %s", resp.Error)
	}
	if resp.Score < 0 || resp.Score > 1 {
		return 0, fmt.Errorf("model service: score %v out of [0,1]", resp.Score)
	}
	return resp.Score, nil
}

// AttributeExact requests per-feature contributions from the remote
// /explain endpoint.
func (r *Remote) AttributeExact(x []float64) ([]float64, error) {
	var resp explainResponse
	if err := r.post("/explain", scoreRequest{Features: x}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("model service: %s", resp.Error)
	}
	if len(resp.Contributions) != len(x) {
		return nil, fmt.Errorf("model service: %d contributions for %d features", len(resp.Contributions), len(x))
	}
	return resp.Contributions, nil
}

// AttributeSampled is handled by the service itself when it explains, so
// the client exposes no separate sampling path.
func (r *Remote) AttributeSampled(x []float64, background [][]float64) ([]float64, error) {
	return nil, domain.ErrAttributionUnsupported
}

// FeatureImportances is unavailable over the wire.
func (r *Remote) FeatureImportances() ([]float64, bool) {
	return nil, false
}

func (r *Remote) post(path string, req any, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal model request: %w", err)
	}
	resp, err := r.client.Post(r.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("model service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}
