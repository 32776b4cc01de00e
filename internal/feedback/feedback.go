// Package feedback records analyst trust signals on triage decisions.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// DefaultMetricsWindow bounds how far back Metrics aggregates when the
// caller does not say.
const DefaultMetricsWindow = 24 * time.Hour

// Manager validates and persists analyst feedback.
type Manager struct {
	repo domain.Repository
}

// NewManager creates a feedback manager backed by the given repository.
func NewManager(repo domain.Repository) *Manager {
	return &Manager{repo: repo}
}

// Submit stores one feedback item. The trust score is clamped to the 1..5
// scale rather than rejected, so a misconfigured console cannot lose the
// signal entirely.
func (m *Manager) Submit(ctx context.Context, tenantID string, fb *domain.Feedback) error {
	if m.repo == nil {
		return fmt.Errorf("feedback: no repository configured")
	}
	if tenantID == "" {
		return fmt.Errorf("feedback: tenantID is required")
	}
	if fb == nil || fb.AlertID == "" {
		return fmt.Errorf("feedback: alertID is required")
	}

	fb.TenantID = tenantID
	fb.TrustScore = clampTrust(fb.TrustScore)
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	return m.repo.SaveFeedback(ctx, tenantID, fb)
}

// Metrics aggregates feedback stored within the window. AvgTrust and
// OverrideRate are nil when no feedback exists, so callers can tell
// "no data" apart from a zero rate.
func (m *Manager) Metrics(ctx context.Context, tenantID string, window time.Duration) (*domain.FeedbackMetrics, error) {
	if m.repo == nil {
		return nil, fmt.Errorf("feedback: no repository configured")
	}
	if tenantID == "" {
		return nil, fmt.Errorf("feedback: tenantID is required")
	}
	if window <= 0 {
		window = DefaultMetricsWindow
	}

	items, err := m.repo.ListFeedbackSince(ctx, tenantID, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("feedback: list failed: %w", err)
	}

	metrics := &domain.FeedbackMetrics{
		TotalFeedback: int64(len(items)),
	}
	if len(items) == 0 {
		return metrics, nil
	}

	var trustSum float64
	var overridden int64
	for _, fb := range items {
		trustSum += float64(fb.TrustScore)
		if fb.Overridden {
			overridden++
		}
	}

	avg := trustSum / float64(len(items))
	rate := float64(overridden) / float64(len(items))
	metrics.AvgTrust = &avg
	metrics.OverrideRate = &rate

	return metrics, nil
}

func clampTrust(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}
