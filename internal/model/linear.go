// Package model provides scoring/attribution adapters: a local logistic
// model loaded from a JSON artifact, and a client for a remote scoring
// service.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Artifact is the persisted form of a trained logistic model. Weights are
// aligned to the feature-map index order in force at training time; Means
// and Background carry the training-set feature means and a representative
// background sample for attribution.
type Artifact struct {
	Type       string      `json:"type"`
	Version    string      `json:"version,omitempty"`
	Weights    []float64   `json:"weights"`
	Bias       float64     `json:"bias"`
	Means      []float64   `json:"means,omitempty"`
	Background [][]float64 `json:"background,omitempty"`
}

// Linear is a logistic-regression scorer. Its linearity makes exact
// per-feature attribution cheap: the contribution of feature i is
// w_i * (x_i - mean_i).
type Linear struct {
	weights    []float64
	bias       float64
	means      []float64
	background [][]float64
}

var _ domain.Model = (*Linear)(nil)

// NewLinear builds a scorer from an artifact. Means default to zero when
// the artifact omits them.
func NewLinear(art Artifact) (*Linear, error) {
	if len(art.Weights) == 0 {
		return nil, fmt.Errorf("model artifact: no weights")
	}
	means := art.Means
	if len(means) == 0 {
		means = make([]float64, len(art.Weights))
	}
	if len(means) != len(art.Weights) {
		return nil, fmt.Errorf("model artifact: %d means for %d weights", len(means), len(art.Weights))
	}
	for i, row := range art.Background {
		if len(row) != len(art.Weights) {
			return nil, fmt.Errorf("model artifact: background row %d has %d values, want %d", i, len(row), len(art.Weights))
		}
	}
	return &Linear{
		weights:    art.Weights,
		bias:       art.Bias,
		means:      means,
		background: art.Background,
	}, nil
}

// LoadLinear reads a JSON model artifact from disk.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	return NewLinear(art)
}

// Dim returns the expected feature-vector length.
func (m *Linear) Dim() int { return len(m.weights) }

// Background returns the artifact's background sample, if any.
func (m *Linear) Background() [][]float64 { return m.background }

// PredictProba scores a feature vector through the logistic function.
func (m *Linear) PredictProba(x []float64) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("model: vector has %d features, want %d", len(x), len(m.weights))
	}
	z := m.bias
	for i, w := range m.weights {
		z += w * x[i]
	}
	return sigmoid(z), nil
}

// AttributeExact returns the closed-form per-feature contributions in
// log-odds space, centered on the training means.
func (m *Linear) AttributeExact(x []float64) ([]float64, error) {
	if len(x) != len(m.weights) {
		return nil, fmt.Errorf("model: vector has %d features, want %d", len(x), len(m.weights))
	}
	contrib := make([]float64, len(x))
	for i, w := range m.weights {
		contrib[i] = w * (x[i] - m.means[i])
	}
	return contrib, nil
}

// AttributeSampled estimates each feature's contribution by marginalizing
// it over the background sample: the drop in score when feature i is
// replaced, one at a time, by its background values.
func (m *Linear) AttributeSampled(x []float64, background [][]float64) ([]float64, error) {
	if len(background) == 0 {
		background = m.background
	}
	if len(background) == 0 {
		return nil, fmt.Errorf("model: no background sample for attribution")
	}
	if len(x) != len(m.weights) {
		return nil, fmt.Errorf("model: vector has %d features, want %d", len(x), len(m.weights))
	}

	base, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}

	contrib := make([]float64, len(x))
	probe := make([]float64, len(x))
	for i := range x {
		sum := 0.0
		n := 0
		for _, row := range background {
			if len(row) != len(x) {
				continue
			}
			copy(probe, x)
			probe[i] = row[i]
			p, err := m.PredictProba(probe)
			if err != nil {
				return nil, err
			}
			sum += p
			n++
		}
		if n == 0 {
			return nil, fmt.Errorf("model: background rows do not match vector length %d", len(x))
		}
		contrib[i] = base - sum/float64(n)
	}
	return contrib, nil
}

// FeatureImportances returns the absolute weights as a global importance
// ranking.
func (m *Linear) FeatureImportances() ([]float64, bool) {
	imp := make([]float64, len(m.weights))
	for i, w := range m.weights {
		imp[i] = math.Abs(w)
	}
	return imp, true
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
