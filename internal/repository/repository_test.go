package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "xai-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetExplanation", func(t *testing.T) {
		rec := &domain.ExplanationRecord{
			ID:      "expl-001",
			AlertID: "alert-001",
			Source:  "network",
			Score:   0.82,
			Label:   domain.LabelMalicious,
			Decision: domain.Decision{
				Tag:          domain.TagHigh,
				Threshold:    0.5,
				BoostedScore: 0.82,
				Action:       "Escalate",
				Reasons:      []string{"Score 0.82 >= high threshold 0.70"},
			},
			TopFeatures: []domain.Contribution{
				{Feature: "severity_ord", Value: 3, Contribution: 0.41},
			},
			AttributionMethod: "exact",
			RawHash:           "abc123",
			Timestamp:         time.Now().UTC(),
			CreatedAt:         time.Now().UTC(),
			Metadata:          domain.ExplanationMetadata{TraceID: "trace-001", EngineVersion: "xai-1.0"},
		}

		if err := repo.SaveExplanation(ctx, tenantID, rec); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}

		retrieved, err := repo.GetExplanation(ctx, tenantID, rec.ID)
		if err != nil {
			t.Fatalf("GetExplanation failed: %v", err)
		}

		if retrieved.ID != rec.ID {
			t.Errorf("expected ID %s, got %s", rec.ID, retrieved.ID)
		}
		if retrieved.Score != rec.Score {
			t.Errorf("expected Score %.2f, got %.2f", rec.Score, retrieved.Score)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.Decision.Tag != domain.TagHigh {
			t.Errorf("expected tag %s, got %s", domain.TagHigh, retrieved.Decision.Tag)
		}
		if len(retrieved.TopFeatures) != 1 || retrieved.TopFeatures[0].Feature != "severity_ord" {
			t.Errorf("top features not round-tripped: %+v", retrieved.TopFeatures)
		}
		if retrieved.Metadata.EngineVersion != "xai-1.0" {
			t.Errorf("expected engine version xai-1.0, got %s", retrieved.Metadata.EngineVersion)
		}
	})

	t.Run("GetExplanationByAlert", func(t *testing.T) {
		older := &domain.ExplanationRecord{
			ID:        "expl-002",
			AlertID:   "alert-002",
			Source:    "windows",
			Score:     0.20,
			Label:     domain.LabelBenign,
			RawHash:   "hash-old",
			Timestamp: time.Now().UTC(),
			CreatedAt: time.Now().UTC().Add(-time.Minute),
		}
		newer := &domain.ExplanationRecord{
			ID:        "expl-003",
			AlertID:   "alert-002",
			Source:    "windows",
			Score:     0.90,
			Label:     domain.LabelMalicious,
			RawHash:   "hash-new",
			Timestamp: time.Now().UTC(),
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SaveExplanation(ctx, tenantID, older); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}
		if err := repo.SaveExplanation(ctx, tenantID, newer); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}

		retrieved, err := repo.GetExplanationByAlert(ctx, tenantID, "alert-002")
		if err != nil {
			t.Fatalf("GetExplanationByAlert failed: %v", err)
		}
		if retrieved.ID != "expl-003" {
			t.Errorf("expected most recent record expl-003, got %s", retrieved.ID)
		}
	})

	t.Run("ListExplanationsSince", func(t *testing.T) {
		since := time.Now().Add(-1 * time.Hour)
		records, err := repo.ListExplanationsSince(ctx, tenantID, since, 10)
		if err != nil {
			t.Fatalf("ListExplanationsSince failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}

		limited, err := repo.ListExplanationsSince(ctx, tenantID, since, 1)
		if err != nil {
			t.Fatalf("ListExplanationsSince failed: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected limit of 1 record, got %d", len(limited))
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		_, err := repo.GetExplanation(ctx, otherTenant, "expl-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		rec := &domain.ExplanationRecord{ID: "expl-test"}

		err := repo.SaveExplanation(ctx, "", rec)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetExplanation(ctx, "", "expl-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		err = repo.SaveFeedback(ctx, "", &domain.Feedback{AlertID: "alert-001"})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("SaveAndListFeedback", func(t *testing.T) {
		fb := &domain.Feedback{
			AlertID:    "alert-001",
			TrustScore: 4,
			Overridden: true,
			DecisionMs: 4200,
			CreatedAt:  time.Now().UTC(),
		}

		if err := repo.SaveFeedback(ctx, tenantID, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}

		items, err := repo.ListFeedbackSince(ctx, tenantID, time.Now().Add(-1*time.Hour))
		if err != nil {
			t.Fatalf("ListFeedbackSince failed: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 feedback item, got %d", len(items))
		}
		if items[0].TrustScore != 4 {
			t.Errorf("expected TrustScore 4, got %d", items[0].TrustScore)
		}
		if !items[0].Overridden {
			t.Error("expected Overridden to round-trip as true")
		}
		if items[0].TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, items[0].TenantID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetExplanation(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetExplanationByAlert(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
