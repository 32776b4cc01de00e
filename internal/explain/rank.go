package explain

import (
	"math"
	"sort"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Rank orders an attribution array by descending absolute contribution and
// returns the top entries paired with their feature names and current
// values. Indices outside the current vector are dropped (a stale
// attribution computed against an older feature map must not panic or
// mislabel), as are features whose current value is exactly zero: a
// zero-valued feature is never informative, whatever its nominal
// attribution.
func Rank(names []string, vec []float64, contrib []float64, topK int) []domain.Contribution {
	if len(contrib) == 0 || topK <= 0 {
		return nil
	}

	dim := len(vec)
	if len(names) < dim {
		dim = len(names)
	}

	order := make([]int, 0, len(contrib))
	for i := range contrib {
		if i < dim {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(contrib[order[a]]) > math.Abs(contrib[order[b]])
	})

	out := make([]domain.Contribution, 0, topK)
	for _, i := range order {
		if vec[i] == 0 {
			continue
		}
		out = append(out, domain.Contribution{
			Feature:      names[i],
			Value:        vec[i],
			Contribution: contrib[i],
		})
		if len(out) == topK {
			break
		}
	}
	return out
}

// EffectiveTopK clamps the requested explanation size. When fewer features
// exist than the floor, all of them are shown; otherwise the result is at
// least the floor and at most the feature count. A caller-supplied override
// narrows the target but never widens it below the floor.
func EffectiveTopK(available, floor, target, override int) int {
	if available <= 0 {
		return 0
	}
	if available < floor {
		return available
	}

	k := target
	if k < floor {
		k = floor
	}
	if override > 0 && override < k {
		k = override
		if k < floor {
			k = floor
		}
	}
	if k > available {
		k = available
	}
	return k
}
