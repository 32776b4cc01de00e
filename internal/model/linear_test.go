package model

import (
	"math"
	"testing"
)

func newTestLinear(t *testing.T) *Linear {
	t.Helper()
	m, err := NewLinear(Artifact{
		Type:    "linear",
		Weights: []float64{2.0, -1.0, 0.5},
		Bias:    -0.25,
		Means:   []float64{0.5, 1.0, 0.0},
		Background: [][]float64{
			{0, 0, 0},
			{1, 2, 0},
		},
	})
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	return m
}

func TestPredictProba(t *testing.T) {
	m := newTestLinear(t)

	// z = -0.25 + 2*1 - 1*0 + 0.5*2 = 2.75
	got, err := m.PredictProba([]float64{1, 0, 2})
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	want := 1.0 / (1.0 + math.Exp(-2.75))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("PredictProba = %v, want %v", got, want)
	}
	if got <= 0 || got >= 1 {
		t.Errorf("score %v outside (0,1)", got)
	}
}

func TestPredictProbaDimensionMismatch(t *testing.T) {
	m := newTestLinear(t)
	if _, err := m.PredictProba([]float64{1, 2}); err == nil {
		t.Error("PredictProba accepted short vector")
	}
}

func TestAttributeExact(t *testing.T) {
	m := newTestLinear(t)

	contrib, err := m.AttributeExact([]float64{1, 0, 2})
	if err != nil {
		t.Fatalf("AttributeExact: %v", err)
	}
	want := []float64{2.0 * (1 - 0.5), -1.0 * (0 - 1.0), 0.5 * (2 - 0)}
	for i := range want {
		if math.Abs(contrib[i]-want[i]) > 1e-12 {
			t.Errorf("contrib[%d] = %v, want %v", i, contrib[i], want[i])
		}
	}
}

func TestAttributeSampled(t *testing.T) {
	m := newTestLinear(t)
	x := []float64{1, 0, 2}

	contrib, err := m.AttributeSampled(x, nil)
	if err != nil {
		t.Fatalf("AttributeSampled: %v", err)
	}
	if len(contrib) != 3 {
		t.Fatalf("got %d contributions, want 3", len(contrib))
	}

	// Feature 0 has the largest positive weight and sits above both
	// background values, so marginalizing it must lower the score.
	if contrib[0] <= 0 {
		t.Errorf("contrib[0] = %v, want positive", contrib[0])
	}
	// Feature 2 matches one background row exactly and exceeds the other,
	// so its contribution is positive but smaller than feature 0's.
	if contrib[2] <= 0 || contrib[2] >= contrib[0] {
		t.Errorf("contrib[2] = %v, want in (0, %v)", contrib[2], contrib[0])
	}
}

func TestAttributeSampledNoBackground(t *testing.T) {
	m, err := NewLinear(Artifact{Weights: []float64{1}, Bias: 0})
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	if _, err := m.AttributeSampled([]float64{0.5}, nil); err == nil {
		t.Error("AttributeSampled succeeded without a background sample")
	}
}

func TestFeatureImportances(t *testing.T) {
	m := newTestLinear(t)
	imp, ok := m.FeatureImportances()
	if !ok {
		t.Fatal("FeatureImportances unavailable")
	}
	want := []float64{2.0, 1.0, 0.5}
	for i := range want {
		if imp[i] != want[i] {
			t.Errorf("importance[%d] = %v, want %v", i, imp[i], want[i])
		}
	}
}

func TestNewLinearValidation(t *testing.T) {
	if _, err := NewLinear(Artifact{}); err == nil {
		t.Error("accepted artifact without weights")
	}
	if _, err := NewLinear(Artifact{Weights: []float64{1, 2}, Means: []float64{0}}); err == nil {
		t.Error("accepted mismatched means")
	}
	if _, err := NewLinear(Artifact{Weights: []float64{1, 2}, Background: [][]float64{{1}}}); err == nil {
		t.Error("accepted mismatched background row")
	}
}
