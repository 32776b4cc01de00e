// Package worker provides async alert processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/triage"
)

// Worker consumes ingested alerts from the EventBus and runs them through
// the triage pipeline.
type Worker struct {
	bus     domain.EventBus
	service *triage.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service *triage.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAlertIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAlertIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processAlert(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAlertIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAlert(ctx, msg.TenantID, msg)
}

// AlertMessage is the message payload for alert processing.
type AlertMessage struct {
	AlertID  string          `json:"alertId"`
	TenantID string          `json:"tenantId"`
	Alert    domain.RawAlert `json:"alert"`
}

// processAlert runs one ingested alert through the triage pipeline. The
// pipeline itself persists the record and publishes decision and critical
// events, so the worker only parses, delegates, and logs.
func (w *Worker) processAlert(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var alertMsg AlertMessage
	if err := json.Unmarshal(msg.Payload, &alertMsg); err != nil {
		slog.Error("failed to parse alert message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if alertMsg.TenantID != "" {
		tenantID = alertMsg.TenantID
	}

	slog.Debug("processing alert",
		"alert_id", alertMsg.AlertID,
		"tenant_id", tenantID,
	)

	rec, err := w.service.Explain(ctx, triage.Request{
		TenantID: tenantID,
		AlertID:  alertMsg.AlertID,
		Alert:    alertMsg.Alert,
	})
	if err != nil {
		slog.Error("alert triage failed",
			"alert_id", alertMsg.AlertID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	slog.Info("alert processed",
		"alert_id", rec.AlertID,
		"tenant_id", tenantID,
		"source", rec.Source,
		"tag", rec.Decision.Tag,
		"score", rec.Decision.BoostedScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
