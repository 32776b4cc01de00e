package domain

import (
	"errors"
)

// ErrAttributionUnsupported is returned by a model adapter when the requested
// attribution method is not available for that model type. The explanation
// chain treats it like any other backend failure and moves to the next
// method.
var ErrAttributionUnsupported = errors.New("attribution method not supported by model")

// Model is the external scoring/attribution model, treated as a black box.
// Implementations must be safe for concurrent use; all parameters are
// read-only after construction.
type Model interface {
	// PredictProba returns the maliciousness probability in [0,1] for a
	// feature vector.
	PredictProba(x []float64) (float64, error)

	// AttributeExact returns per-feature contributions using the model's
	// native, exact attribution when the model type supports one.
	AttributeExact(x []float64) ([]float64, error)

	// AttributeSampled estimates per-feature contributions by marginalizing
	// each feature over a representative background sample. Orders of
	// magnitude slower than AttributeExact; callers gate it behind the
	// policy's attribution budget.
	AttributeSampled(x []float64, background [][]float64) ([]float64, error)

	// FeatureImportances returns the model's global per-feature importance,
	// or false when the model exposes none. Not per-instance; last resort.
	FeatureImportances() ([]float64, bool)
}
