package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/policy"
)

// scriptModel returns a fixed score and exact attribution.
type scriptModel struct {
	score    float64
	scoreErr error
	contrib  []float64
	calls    int
}

func (m *scriptModel) PredictProba(x []float64) (float64, error) {
	m.calls++
	return m.score, m.scoreErr
}
func (m *scriptModel) AttributeExact(x []float64) ([]float64, error) {
	if len(m.contrib) == 0 {
		return nil, errors.New("no attribution")
	}
	return m.contrib, nil
}
func (m *scriptModel) AttributeSampled(x []float64, bg [][]float64) ([]float64, error) {
	return nil, domain.ErrAttributionUnsupported
}
func (m *scriptModel) FeatureImportances() ([]float64, bool) { return nil, false }

// memCache is a minimal in-memory cache for pipeline tests.
type memCache struct {
	explanations map[string]*domain.ExplanationRecord
	counters     map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		explanations: map[string]*domain.ExplanationRecord{},
		counters:     map[string]int64{},
	}
}

func (c *memCache) Get(ctx context.Context, tenantID, key string) ([]byte, error) { return nil, nil }
func (c *memCache) Set(ctx context.Context, tenantID, key string, v []byte, ttl time.Duration) error {
	return nil
}
func (c *memCache) Delete(ctx context.Context, tenantID, key string) error { return nil }
func (c *memCache) GetExplanation(ctx context.Context, tenantID, rawHash string) (*domain.ExplanationRecord, error) {
	return c.explanations[tenantID+":"+rawHash], nil
}
func (c *memCache) SetExplanation(ctx context.Context, tenantID, rawHash string, rec *domain.ExplanationRecord, ttl time.Duration) error {
	c.explanations[tenantID+":"+rawHash] = rec
	return nil
}
func (c *memCache) IncrementCounter(ctx context.Context, tenantID, key string, w time.Duration) (int64, error) {
	c.counters[tenantID+":"+key]++
	return c.counters[tenantID+":"+key], nil
}
func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

// recordBus collects published topics.
type recordBus struct {
	topics []string
}

func (b *recordBus) Publish(ctx context.Context, tenantID, topic string, payload []byte) error {
	b.topics = append(b.topics, topic)
	return nil
}
func (b *recordBus) Subscribe(ctx context.Context, tenantID, topic string, h domain.MessageHandler) (domain.Subscription, error) {
	return nil, nil
}
func (b *recordBus) Ping(ctx context.Context) error { return nil }
func (b *recordBus) Close() error                   { return nil }

func rdpAlert() domain.RawAlert {
	return domain.RawAlert{
		"decoder": map[string]any{"name": "fortigate"},
		"rule":    map[string]any{"level": float64(14)},
		"data": map[string]any{
			"dstport":  "3389",
			"action":   "allow",
			"sentbyte": "900000",
			"service":  "RDP",
		},
	}
}

func newService(t *testing.T, m domain.Model, opts ...func(*Config)) *Service {
	t.Helper()
	cfg := Config{Model: m}
	for _, o := range opts {
		o(&cfg)
	}
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestExplainPipeline(t *testing.T) {
	contrib := make([]float64, 20)
	contrib[1] = 0.9 // severity_ord
	contrib[7] = 0.5 // dst_svc_sensitive
	m := &scriptModel{score: 0.9, contrib: contrib}

	svc := newService(t, m)
	rec, err := svc.Explain(context.Background(), Request{
		TenantID: "t1",
		AlertID:  "a1",
		Alert:    rdpAlert(),
	})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}

	if rec.Source != "network" {
		t.Errorf("source = %q, want network", rec.Source)
	}
	if rec.Label != domain.LabelMalicious {
		t.Errorf("label = %q, want malicious at score 0.9", rec.Label)
	}
	if rec.Decision.Tag != domain.TagCritical {
		t.Errorf("tag = %q, want critical", rec.Decision.Tag)
	}
	if rec.AttributionMethod != "exact" {
		t.Errorf("method = %q, want exact", rec.AttributionMethod)
	}
	if len(rec.TopFeatures) == 0 {
		t.Fatal("no ranked features")
	}
	if rec.TopFeatures[0].Feature != "severity_ord" {
		t.Errorf("top feature = %q, want severity_ord", rec.TopFeatures[0].Feature)
	}
	if rec.RawHash == "" || rec.ID == "" {
		t.Error("record missing hash or id")
	}
	if rec.Metadata.EngineVersion != EngineVersion {
		t.Errorf("engine version = %q", rec.Metadata.EngineVersion)
	}
}

func TestExplainScoreOnlyBelowBudget(t *testing.T) {
	m := &scriptModel{score: 0.1, contrib: []float64{1}}
	svc := newService(t, m)

	rec, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert()})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	// Score 0.1 is below the default attribution min score 0.2.
	if rec.AttributionMethod != "" || len(rec.TopFeatures) != 0 {
		t.Errorf("expected score-only record, got method %q features %v",
			rec.AttributionMethod, rec.TopFeatures)
	}
	if rec.Label != domain.LabelBenign {
		t.Errorf("label = %q, want benign", rec.Label)
	}
}

func TestExplainCacheHit(t *testing.T) {
	m := &scriptModel{score: 0.9, contrib: make([]float64, 20)}
	cache := newMemCache()
	svc := newService(t, m, func(c *Config) { c.Cache = cache })

	req := Request{TenantID: "t1", AlertID: "a1", Alert: rdpAlert()}
	first, err := svc.Explain(context.Background(), req)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	second, err := svc.Explain(context.Background(), req)
	if err != nil {
		t.Fatalf("Explain (cached): %v", err)
	}
	if m.calls != 1 {
		t.Errorf("model scored %d times, want 1 (cache hit)", m.calls)
	}
	if second.ID != first.ID {
		t.Errorf("cached record id %q != %q", second.ID, first.ID)
	}

	// A top-K override must bypass the cache: the cached record was ranked
	// with a different size.
	if _, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert(), TopK: 11}); err != nil {
		t.Fatalf("Explain (override): %v", err)
	}
	if m.calls != 2 {
		t.Errorf("model scored %d times, want 2 after override bypass", m.calls)
	}
}

func TestExplainPublishesCriticalEscalation(t *testing.T) {
	m := &scriptModel{score: 0.95, contrib: make([]float64, 20)}
	bus := &recordBus{}
	svc := newService(t, m, func(c *Config) { c.Bus = bus })

	if _, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert()}); err != nil {
		t.Fatalf("Explain: %v", err)
	}

	var decision, critical bool
	for _, topic := range bus.topics {
		switch topic {
		case domain.TopicDecision:
			decision = true
		case domain.TopicAlertCritical:
			critical = true
		}
	}
	if !decision || !critical {
		t.Errorf("published topics %v, want decision and critical escalation", bus.topics)
	}
}

func TestExplainTopKOverrideNarrows(t *testing.T) {
	contrib := make([]float64, 20)
	for i := range contrib {
		contrib[i] = float64(20 - i)
	}
	m := &scriptModel{score: 0.9, contrib: contrib}
	svc := newService(t, m)

	rec, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert(), TopK: 11})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(rec.TopFeatures) > 11 {
		t.Errorf("got %d features, override 11 ignored", len(rec.TopFeatures))
	}
}

func TestExplainScoringErrorSurfaces(t *testing.T) {
	m := &scriptModel{scoreErr: errors.New("model down")}
	svc := newService(t, m)
	if _, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert()}); err == nil {
		t.Error("scoring failure did not surface")
	}
}

func TestExplainMalformedAlertStillDecides(t *testing.T) {
	m := &scriptModel{score: 0.05}
	svc := newService(t, m)

	rec, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: domain.RawAlert{}})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if rec.Source != "generic" {
		t.Errorf("source = %q, want generic", rec.Source)
	}
	if rec.Decision.Tag == "" {
		t.Error("empty alert produced no decision")
	}
}

func TestHashAlertStable(t *testing.T) {
	a := domain.RawAlert{"b": 1, "a": map[string]any{"x": "y"}}
	b := domain.RawAlert{"a": map[string]any{"x": "y"}, "b": 1}
	if HashAlert(a) != HashAlert(b) {
		t.Error("field order changed the hash")
	}
	if HashAlert(a) == HashAlert(domain.RawAlert{"b": 2}) {
		t.Error("different alerts collided")
	}
}

// policy with a custom engine still drives the decision
func TestExplainUsesInjectedPolicy(t *testing.T) {
	cfg := domain.DefaultPolicy()
	cfg.Overrides = []domain.OverrideRule{
		{Name: "rdp", When: `canon.service_rdp == 1`, Reason: "RDP session", Bump: 0.3},
	}
	eng, err := policy.New(cfg, nil)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}

	m := &scriptModel{score: 0.6, contrib: make([]float64, 20)}
	svc := newService(t, m, func(c *Config) { c.Policy = eng })

	rec, err := svc.Explain(context.Background(), Request{TenantID: "t1", Alert: rdpAlert()})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if rec.Decision.Tag != domain.TagCritical {
		t.Errorf("tag = %q, want critical at boosted 0.9", rec.Decision.Tag)
	}
	if rec.Decision.Reasons[0] != "RDP session" {
		t.Errorf("reasons = %v", rec.Decision.Reasons)
	}
}
