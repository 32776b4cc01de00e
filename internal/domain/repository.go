package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Explanation operations
	SaveExplanation(ctx context.Context, tenantID string, rec *ExplanationRecord) error
	GetExplanation(ctx context.Context, tenantID string, id string) (*ExplanationRecord, error)
	GetExplanationByAlert(ctx context.Context, tenantID string, alertID string) (*ExplanationRecord, error)
	ListExplanationsSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*ExplanationRecord, error)

	// Analyst feedback operations
	SaveFeedback(ctx context.Context, tenantID string, fb *Feedback) error
	ListFeedbackSince(ctx context.Context, tenantID string, since time.Time) ([]*Feedback, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
