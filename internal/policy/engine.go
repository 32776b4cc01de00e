// Package policy provides the CEL-Go based triage policy engine: per-source
// severity bands, override rules and the attribution budget.
package policy

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Engine evaluates a loaded, validated policy. It is read-only after
// construction; concurrent Decide calls need no coordination.
type Engine struct {
	cfg       *domain.PolicyConfig
	sources   map[string]sourceBands
	overrides []compiledOverride
	logger    *slog.Logger
}

// sourceBands is a band table pre-sorted by descending minimum score.
type sourceBands struct {
	threshold  float64
	defaultTag string
	bands      []domain.Band
}

// compiledOverride holds a pre-compiled CEL predicate. A rule whose
// expression failed to compile keeps a nil program and never matches.
type compiledOverride struct {
	rule    domain.OverrideRule
	program cel.Program
}

// New validates the policy and compiles its override predicates. Structural
// policy errors are fatal; a malformed predicate only disables its rule and
// is logged for operator visibility.
func New(cfg *domain.PolicyConfig, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = domain.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	env, err := cel.NewEnv(
		cel.Variable("canon", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("alert", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	overrides := make([]compiledOverride, 0, len(cfg.Overrides))
	for _, rule := range cfg.Overrides {
		program, err := compilePredicate(env, rule.When)
		if err != nil {
			logger.Warn("override predicate disabled",
				"rule", rule.Name,
				"when", rule.When,
				"error", err)
			overrides = append(overrides, compiledOverride{rule: rule})
			continue
		}
		overrides = append(overrides, compiledOverride{rule: rule, program: program})
	}

	sources := make(map[string]sourceBands, len(cfg.Sources))
	for name, sp := range cfg.Sources {
		threshold := cfg.Defaults.DecisionThreshold
		if sp.DecisionThreshold != nil {
			threshold = *sp.DecisionThreshold
		}
		bands := make([]domain.Band, len(sp.Bands))
		copy(bands, sp.Bands)
		sort.SliceStable(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })
		sources[name] = sourceBands{
			threshold:  threshold,
			defaultTag: sp.DefaultTag,
			bands:      bands,
		}
	}

	return &Engine{
		cfg:       cfg,
		sources:   sources,
		overrides: overrides,
		logger:    logger,
	}, nil
}

func compilePredicate(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("predicate must return bool, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

// maxResponseItems bounds the reason and recommendation lists in the
// response; compactness only, never correctness.
const maxResponseItems = 6

// Decide maps a model score, the alert's platform source and its canonical
// record to a triage decision. The raw alert is used only for reason
// interpolation and override predicates; pass nil when unavailable. Decide
// always terminates and never fails: an empty or unconfigured policy falls
// back to the engine-wide defaults.
func (e *Engine) Decide(score float64, source string, rec domain.CanonicalRecord, alert domain.RawAlert) domain.Decision {
	src, configured := e.sources[source]
	threshold := e.cfg.Defaults.DecisionThreshold
	if configured {
		threshold = src.threshold
	}

	tag := e.cfg.Defaults.Tag
	if configured && src.defaultTag != "" {
		tag = src.defaultTag
	}
	action := e.cfg.Defaults.Action
	recommend := e.cfg.Defaults.Recommendation

	if configured {
		for _, band := range src.bands {
			if score >= band.Min {
				tag = band.Tag
				if band.Action != "" {
					action = band.Action
				}
				if band.Recommend != "" {
					recommend = band.Recommend
				}
				break
			}
		}
	}

	var (
		bump    float64
		reasons []string
		recs    []string
	)
	if recommend != "" {
		recs = append(recs, recommend)
	}

	if alert == nil {
		alert = domain.RawAlert{}
	}
	activation := map[string]any{
		"canon": map[string]any(rec),
		"alert": map[string]any(alert),
	}
	for _, ov := range e.overrides {
		if !e.matches(ov, activation) {
			continue
		}
		if ov.rule.Reason != "" {
			reasons = append(reasons, Interpolate(ov.rule.Reason, alert))
		}
		bump += ov.rule.Bump
		recs = append(recs, ov.rule.Recommendations...)
		if ov.rule.EscalateTo != "" && domain.TagRank(ov.rule.EscalateTo) > domain.TagRank(tag) {
			tag = ov.rule.EscalateTo
		}
		if ov.rule.DowngradeTo != "" {
			tag = ov.rule.DowngradeTo
		}
	}

	boosted := clamp01(score + bump)

	// Threshold recheck is upward only: a bump can raise severity but an
	// already-elevated tag is never lowered except by an explicit override.
	if boosted >= e.cfg.Thresholds.Critical {
		if domain.TagRank(domain.TagCritical) > domain.TagRank(tag) {
			tag = domain.TagCritical
		}
	} else if boosted >= e.cfg.Thresholds.High {
		if domain.TagRank(domain.TagHigh) > domain.TagRank(tag) {
			tag = domain.TagHigh
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, e.defaultReason(boosted, tag))
	}

	att := e.cfg.Attribution
	topK := att.TopK
	if att.TopKFloor > topK {
		topK = att.TopKFloor
	}

	return domain.Decision{
		Tag:             tag,
		Threshold:       threshold,
		BoostedScore:    boosted,
		Action:          action,
		Recommendations: truncate(dedupe(recs), maxResponseItems),
		Attribution:     att.Enabled && score >= att.MinScore,
		TopK:            topK,
		Reasons:         truncate(reasons, maxResponseItems),
	}
}

// matches evaluates one override predicate. Evaluation errors and non-bool
// results mean "does not match", logged but never fatal.
func (e *Engine) matches(ov compiledOverride, activation map[string]any) bool {
	if ov.program == nil {
		return false
	}
	out, _, err := ov.program.Eval(activation)
	if err != nil {
		e.logger.Warn("override predicate error",
			"rule", ov.rule.Name,
			"error", err)
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

func (e *Engine) defaultReason(boosted float64, tag string) string {
	if th, ok := e.cfg.Thresholds.ForTag(tag); ok {
		return fmt.Sprintf("Score %.2f >= %s threshold %.2f", boosted, tag, th)
	}
	return fmt.Sprintf("Score %.2f", boosted)
}

// Config returns the loaded policy document.
func (e *Engine) Config() *domain.PolicyConfig { return e.cfg }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
