package domain

import (
	"fmt"
)

// PolicyConfig is the declarative triage policy document. It is loaded once
// at startup (or on explicit reload) and validated before use; a malformed
// document is a fatal configuration error, never silently defaulted.
type PolicyConfig struct {
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	Defaults PolicyDefaults `yaml:"defaults" json:"defaults"`

	// Sources maps a platform source ("network", "windows", "linux",
	// "openstack", "generic") to its band table. Unconfigured sources fall
	// back to Defaults.
	Sources map[string]SourcePolicy `yaml:"sources" json:"sources"`

	// Overrides are evaluated in configuration order; every matching rule
	// applies cumulatively.
	Overrides []OverrideRule `yaml:"overrides" json:"overrides"`

	Attribution AttributionConfig `yaml:"attribution" json:"attribution"`
}

// Thresholds are the severity cut points, required to be non-decreasing:
// info <= low <= medium <= high <= critical.
type Thresholds struct {
	Info     float64 `yaml:"info" json:"info"`
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// ForTag returns the threshold configured for a severity tag.
func (t Thresholds) ForTag(tag string) (float64, bool) {
	switch tag {
	case TagInfo:
		return t.Info, true
	case TagLow:
		return t.Low, true
	case TagMedium:
		return t.Medium, true
	case TagHigh:
		return t.High, true
	case TagCritical:
		return t.Critical, true
	}
	return 0, false
}

// PolicyDefaults hold the engine-wide fallbacks used when a source has no
// band table or no band matches.
type PolicyDefaults struct {
	DecisionThreshold float64 `yaml:"decision_threshold" json:"decision_threshold"`
	Tag               string  `yaml:"tag" json:"tag"`
	Action            string  `yaml:"action" json:"action"`
	Recommendation    string  `yaml:"recommendation" json:"recommendation"`
}

// SourcePolicy is the per-source band table.
type SourcePolicy struct {
	// DecisionThreshold overrides the engine-wide threshold when set.
	DecisionThreshold *float64 `yaml:"decision_threshold,omitempty" json:"decision_threshold,omitempty"`

	DefaultTag string `yaml:"default_tag,omitempty" json:"default_tag,omitempty"`

	Bands []Band `yaml:"bands" json:"bands"`
}

// Band maps a minimum score (inclusive) to a triage outcome. Bands are
// scanned in descending-minimum order; the first band whose minimum is at or
// below the score wins.
type Band struct {
	Min       float64 `yaml:"min" json:"min"`
	Tag       string  `yaml:"tag" json:"tag"`
	Action    string  `yaml:"action" json:"action"`
	Recommend string  `yaml:"recommend" json:"recommend"`
}

// OverrideRule conditionally adjusts the decision based on the canonical
// record. When is a predicate expression over `canon` (the canonical record)
// and `alert` (the raw alert); Reason supports #{dotted.path} interpolation
// against the raw alert.
type OverrideRule struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	When   string `yaml:"when" json:"when"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`

	// Bump is added to the model score before the upward-only recheck.
	Bump float64 `yaml:"bump,omitempty" json:"bump,omitempty"`

	Recommendations []string `yaml:"recommendations,omitempty" json:"recommendations,omitempty"`

	// EscalateTo raises the tag only; DowngradeTo is the single path that
	// may lower an already-chosen tag.
	EscalateTo  string `yaml:"escalate_to,omitempty" json:"escalate_to,omitempty"`
	DowngradeTo string `yaml:"downgrade_to,omitempty" json:"downgrade_to,omitempty"`
}

// AttributionConfig sets the attribution budget defaults.
type AttributionConfig struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// TopK is the target explanation size; TopKFloor is the minimum number
	// of features to surface when enough exist.
	TopK      int `yaml:"top_k" json:"top_k"`
	TopKFloor int `yaml:"top_k_floor" json:"top_k_floor"`
}

// Validate checks the policy document for structural errors. Validation runs
// at load time: non-monotonic thresholds or missing severity tags on bands
// are operator errors and never silently repaired.
func (p *PolicyConfig) Validate() error {
	t := p.Thresholds
	ordered := []struct {
		name string
		v    float64
	}{
		{TagInfo, t.Info},
		{TagLow, t.Low},
		{TagMedium, t.Medium},
		{TagHigh, t.High},
		{TagCritical, t.Critical},
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].v < ordered[i-1].v {
			return fmt.Errorf("thresholds not non-decreasing: %s (%.3f) < %s (%.3f)",
				ordered[i].name, ordered[i].v, ordered[i-1].name, ordered[i-1].v)
		}
	}

	for src, sp := range p.Sources {
		for i, b := range sp.Bands {
			if b.Tag == "" {
				return fmt.Errorf("source %q band %d: tag is required", src, i)
			}
			if TagRank(b.Tag) < 0 {
				return fmt.Errorf("source %q band %d: unknown tag %q", src, i, b.Tag)
			}
			if b.Min < 0 || b.Min > 1 {
				return fmt.Errorf("source %q band %d: min %.3f outside [0,1]", src, i, b.Min)
			}
		}
	}

	for i, ov := range p.Overrides {
		if ov.When == "" {
			return fmt.Errorf("override %d: when expression is required", i)
		}
		if ov.EscalateTo != "" && TagRank(ov.EscalateTo) < 0 {
			return fmt.Errorf("override %d: unknown escalate_to tag %q", i, ov.EscalateTo)
		}
		if ov.DowngradeTo != "" && TagRank(ov.DowngradeTo) < 0 {
			return fmt.Errorf("override %d: unknown downgrade_to tag %q", i, ov.DowngradeTo)
		}
	}

	if p.Attribution.TopK < 0 || p.Attribution.TopKFloor < 0 {
		return fmt.Errorf("attribution top_k values must be non-negative")
	}

	return nil
}

// DefaultPolicy returns the built-in policy used when no document is
// configured: usable thresholds, no source bands, no overrides.
func DefaultPolicy() *PolicyConfig {
	return &PolicyConfig{
		Thresholds: Thresholds{
			Info:     0.0,
			Low:      0.30,
			Medium:   0.50,
			High:     0.70,
			Critical: 0.85,
		},
		Defaults: PolicyDefaults{
			DecisionThreshold: 0.5,
			Tag:               TagLow,
			Action:            "Queue",
			Recommendation:    "Monitor traffic",
		},
		Attribution: AttributionConfig{
			Enabled:   true,
			MinScore:  0.2,
			TopK:      12,
			TopKFloor: 10,
		},
	}
}
