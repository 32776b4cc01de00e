// Package triage composes the full explanation pipeline: canonicalize,
// extract features, score, decide, attribute and rank.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/dB-Digital-Fox/XAI/internal/canon"
	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/explain"
	"github.com/dB-Digital-Fox/XAI/internal/feature"
	"github.com/dB-Digital-Fox/XAI/internal/policy"
)

// EngineVersion is stamped on every explanation record.
const EngineVersion = "xai-1.0"

// TTLs for cached explanations and the per-source rate window.
const (
	explanationTTL = 5 * time.Minute
	rateWindow     = time.Minute
)

// Config wires a triage service. Model, Features and Policy are required;
// Repository, Cache and Bus are optional and disable their feature when
// nil.
type Config struct {
	Model    domain.Model
	Features *feature.Map
	Policy   *policy.Engine

	// Background is the representative sample used by sampling-based
	// attribution, usually carried in the model artifact.
	Background [][]float64

	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Logger     *slog.Logger
}

// Service runs the triage pipeline. Safe for concurrent use; the feature
// map and policy may be swapped at runtime via Reload.
type Service struct {
	model      domain.Model
	background [][]float64

	mu       sync.RWMutex
	features *feature.Map
	policy   *policy.Engine

	repo   domain.Repository
	cache  domain.Cache
	bus    domain.EventBus
	logger *slog.Logger
}

// New builds a triage service.
func New(cfg Config) (*Service, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("triage: model is required")
	}
	if cfg.Features == nil {
		cfg.Features = feature.Default()
	}
	if cfg.Policy == nil {
		eng, err := policy.New(domain.DefaultPolicy(), cfg.Logger)
		if err != nil {
			return nil, err
		}
		cfg.Policy = eng
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		model:      cfg.Model,
		features:   cfg.Features,
		policy:     cfg.Policy,
		background: cfg.Background,
		repo:       cfg.Repository,
		cache:      cfg.Cache,
		bus:        cfg.Bus,
		logger:     cfg.Logger,
	}, nil
}

// Request is one alert to triage.
type Request struct {
	TenantID string
	AlertID  string
	Alert    domain.RawAlert

	// TopK narrows the explanation size; zero means the policy's target.
	TopK int
}

// Explain runs the pipeline for one alert and returns the persisted
// explanation record. Alert data problems never fail the call: the worst
// case is a low-severity, score-only record. Only a model scoring failure
// is surfaced as an error.
func (s *Service) Explain(ctx context.Context, req Request) (*domain.ExplanationRecord, error) {
	start := time.Now()
	rawHash := HashAlert(req.Alert)

	// Identical alerts inside the TTL skip scoring and attribution, unless
	// the caller asks for a different explanation size.
	if s.cache != nil && req.TopK == 0 {
		if cached, err := s.cache.GetExplanation(ctx, req.TenantID, rawHash); err == nil && cached != nil {
			return cached, nil
		}
	}

	s.mu.RLock()
	features, pol := s.features, s.policy
	s.mu.RUnlock()

	canonStart := time.Now()
	rec := canon.Canonicalize(req.Alert)
	canonMs := time.Since(canonStart).Milliseconds()

	source := rec.Str("platform_source")
	vec := features.Extract(rec)
	names := features.Names()

	scoreStart := time.Now()
	score, err := s.model.PredictProba(vec)
	if err != nil {
		return nil, fmt.Errorf("score alert: %w", err)
	}
	scoreMs := time.Since(scoreStart).Milliseconds()

	decision := pol.Decide(score, source, rec, req.Alert)

	label := domain.LabelBenign
	if decision.BoostedScore >= decision.Threshold {
		label = domain.LabelMalicious
	}

	var (
		contrib []float64
		method  string
		attrMs  int64
	)
	if decision.Attribution {
		attrStart := time.Now()
		contrib, method = explain.Attribute(s.model, vec, s.background, true)
		attrMs = time.Since(attrStart).Milliseconds()
		if method == "" {
			s.logger.Warn("attribution unavailable, score-only explanation",
				"tenant_id", req.TenantID,
				"alert_id", req.AlertID)
		}
	}

	floor := pol.Config().Attribution.TopKFloor
	topK := explain.EffectiveTopK(len(names), floor, decision.TopK, req.TopK)
	top := explain.Rank(names, vec, contrib, topK)

	out := &domain.ExplanationRecord{
		ID:                uuid.New().String(),
		TenantID:          req.TenantID,
		AlertID:           req.AlertID,
		Source:            source,
		Score:             score,
		Label:             label,
		Decision:          decision,
		TopFeatures:       top,
		AttributionMethod: method,
		RawHash:           rawHash,
		Timestamp:         time.Now().UTC(),
		CreatedAt:         time.Now().UTC(),
		Metadata: domain.ExplanationMetadata{
			TraceID:       traceID(ctx),
			CanonMs:       canonMs,
			ScoreMs:       scoreMs,
			AttributionMs: attrMs,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}

	if s.cache != nil {
		if n, err := s.cache.IncrementCounter(ctx, req.TenantID, "source:"+source, rateWindow); err == nil {
			out.Metadata.SourceAlertCount = n
		}
		if err := s.cache.SetExplanation(ctx, req.TenantID, rawHash, out, explanationTTL); err != nil {
			s.logger.Warn("cache explanation failed", "error", err)
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveExplanation(ctx, req.TenantID, out); err != nil {
			s.logger.Error("persist explanation failed",
				"tenant_id", req.TenantID,
				"alert_id", req.AlertID,
				"error", err)
		}
	}

	s.publish(ctx, out)

	return out, nil
}

// FeatureNames exposes the active feature schema in vector index order.
func (s *Service) FeatureNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features.Names()
}

// Policy exposes the active policy engine.
func (s *Service) Policy() *policy.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Reload swaps the feature map and policy. Nil arguments keep the current
// document, so the two can be reloaded independently.
func (s *Service) Reload(features *feature.Map, pol *policy.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if features != nil {
		s.features = features
	}
	if pol != nil {
		s.policy = pol
	}
}

// publish emits the decision event, plus an escalation event for critical
// tags. Bus failures are logged, never fatal.
func (s *Service) publish(ctx context.Context, rec *domain.ExplanationRecord) {
	if s.bus == nil {
		return
	}
	payload, err := encodeRecord(rec)
	if err != nil {
		s.logger.Error("encode decision event failed", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, rec.TenantID, domain.TopicDecision, payload); err != nil {
		s.logger.Warn("publish decision failed", "error", err)
	}
	if rec.Decision.Tag == domain.TagCritical {
		if err := s.bus.Publish(ctx, rec.TenantID, domain.TopicAlertCritical, payload); err != nil {
			s.logger.Warn("publish critical escalation failed", "error", err)
		}
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
