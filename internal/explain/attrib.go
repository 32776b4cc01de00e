// Package explain acquires per-feature attribution from a model and ranks
// it into a compact, human-readable explanation.
package explain

import (
	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Attribution method names recorded on explanation records.
const (
	MethodExact      = "exact"
	MethodSampled    = "sampled"
	MethodImportance = "importance"
)

// Attribute obtains a contribution array for one scored vector, falling
// through a fixed chain: exact model attribution, then sampling against the
// background set when the policy budget allows it, then global feature
// importances as a last resort. Each step's failure is absorbed; when all
// fail the explanation is empty and the caller reports score only.
func Attribute(m domain.Model, x []float64, background [][]float64, budget bool) ([]float64, string) {
	if m == nil {
		return nil, ""
	}

	if contrib, err := m.AttributeExact(x); err == nil && usable(contrib, len(x)) {
		return contrib, MethodExact
	}

	if budget {
		if contrib, err := m.AttributeSampled(x, background); err == nil && usable(contrib, len(x)) {
			return contrib, MethodSampled
		}
	}

	if imp, ok := m.FeatureImportances(); ok && usable(imp, len(x)) {
		return imp, MethodImportance
	}

	return nil, ""
}

// usable rejects empty or truncated contribution arrays. A longer array is
// tolerated; the ranker guards per-index.
func usable(contrib []float64, dim int) bool {
	return len(contrib) >= dim && dim > 0
}
