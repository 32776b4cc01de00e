package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// memRepo implements only the feedback half of domain.Repository.
type memRepo struct {
	domain.Repository
	items []*domain.Feedback
}

func (r *memRepo) SaveFeedback(ctx context.Context, tenantID string, fb *domain.Feedback) error {
	copied := *fb
	r.items = append(r.items, &copied)
	return nil
}

func (r *memRepo) ListFeedbackSince(ctx context.Context, tenantID string, since time.Time) ([]*domain.Feedback, error) {
	var out []*domain.Feedback
	for _, fb := range r.items {
		if fb.TenantID == tenantID && !fb.CreatedAt.Before(since) {
			out = append(out, fb)
		}
	}
	return out, nil
}

func TestSubmit(t *testing.T) {
	repo := &memRepo{}
	mgr := NewManager(repo)
	ctx := context.Background()

	t.Run("StoresWithDefaults", func(t *testing.T) {
		fb := &domain.Feedback{AlertID: "alert-001", TrustScore: 4}
		if err := mgr.Submit(ctx, "tenant-001", fb); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if fb.TenantID != "tenant-001" {
			t.Errorf("expected tenant to be stamped, got %q", fb.TenantID)
		}
		if fb.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be stamped")
		}
	})

	t.Run("ClampsTrustScore", func(t *testing.T) {
		tests := []struct {
			in   int
			want int
		}{
			{-3, 1},
			{0, 1},
			{1, 1},
			{3, 3},
			{5, 5},
			{9, 5},
		}
		for _, tt := range tests {
			fb := &domain.Feedback{AlertID: "alert-002", TrustScore: tt.in}
			if err := mgr.Submit(ctx, "tenant-001", fb); err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
			if fb.TrustScore != tt.want {
				t.Errorf("trust %d clamped to %d, want %d", tt.in, fb.TrustScore, tt.want)
			}
		}
	})

	t.Run("Rejects", func(t *testing.T) {
		if err := mgr.Submit(ctx, "", &domain.Feedback{AlertID: "a"}); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if err := mgr.Submit(ctx, "tenant-001", &domain.Feedback{}); err == nil {
			t.Error("expected error for missing alertID")
		}
		if err := mgr.Submit(ctx, "tenant-001", nil); err == nil {
			t.Error("expected error for nil feedback")
		}
		if err := NewManager(nil).Submit(ctx, "tenant-001", &domain.Feedback{AlertID: "a"}); err == nil {
			t.Error("expected error without repository")
		}
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	repo := &memRepo{items: []*domain.Feedback{
		{AlertID: "a1", TenantID: "tenant-001", TrustScore: 5, Overridden: false, CreatedAt: now},
		{AlertID: "a2", TenantID: "tenant-001", TrustScore: 3, Overridden: true, CreatedAt: now},
		{AlertID: "a3", TenantID: "tenant-001", TrustScore: 4, Overridden: false, CreatedAt: now},
		{AlertID: "a4", TenantID: "tenant-001", TrustScore: 5, Overridden: false, CreatedAt: now.Add(-48 * time.Hour)},
		{AlertID: "a5", TenantID: "tenant-002", TrustScore: 1, Overridden: true, CreatedAt: now},
	}}
	mgr := NewManager(repo)

	t.Run("Aggregates", func(t *testing.T) {
		metrics, err := mgr.Metrics(ctx, "tenant-001", 0)
		if err != nil {
			t.Fatalf("Metrics failed: %v", err)
		}
		if metrics.TotalFeedback != 3 {
			t.Errorf("expected 3 items inside window, got %d", metrics.TotalFeedback)
		}
		if metrics.AvgTrust == nil || *metrics.AvgTrust != 4.0 {
			t.Errorf("expected avg trust 4.0, got %v", metrics.AvgTrust)
		}
		if metrics.OverrideRate == nil || *metrics.OverrideRate != 1.0/3.0 {
			t.Errorf("expected override rate 1/3, got %v", metrics.OverrideRate)
		}
	})

	t.Run("EmptyWindowNilAggregates", func(t *testing.T) {
		metrics, err := mgr.Metrics(ctx, "tenant-003", time.Hour)
		if err != nil {
			t.Fatalf("Metrics failed: %v", err)
		}
		if metrics.TotalFeedback != 0 {
			t.Errorf("expected 0 items, got %d", metrics.TotalFeedback)
		}
		if metrics.AvgTrust != nil || metrics.OverrideRate != nil {
			t.Error("expected nil aggregates with no feedback")
		}
	})
}
