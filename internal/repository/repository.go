// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveExplanation stores an explanation record with tenant isolation.
func (r *SQLRepository) SaveExplanation(ctx context.Context, tenantID string, rec *domain.ExplanationRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	decision, _ := json.Marshal(rec.Decision)
	topFeatures, _ := json.Marshal(rec.TopFeatures)
	metadata, _ := json.Marshal(rec.Metadata)

	query := `
		INSERT INTO explanations (
			id, tenant_id, alert_id, source, score, label,
			decision, top_features, attribution_method,
			raw_hash, timestamp, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.AlertID, rec.Source,
		rec.Score, rec.Label,
		string(decision), string(topFeatures), rec.AttributionMethod,
		rec.RawHash, rec.Timestamp, rec.CreatedAt,
		string(metadata),
	)
	return err
}

// GetExplanation retrieves an explanation by ID with tenant isolation.
func (r *SQLRepository) GetExplanation(ctx context.Context, tenantID string, id string) (*domain.ExplanationRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := explanationSelect + ` WHERE tenant_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id)
	return scanExplanation(row)
}

// GetExplanationByAlert retrieves the most recent explanation for an alert
// with tenant isolation.
func (r *SQLRepository) GetExplanationByAlert(ctx context.Context, tenantID string, alertID string) (*domain.ExplanationRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := explanationSelect + `
		WHERE tenant_id = ? AND alert_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, alertID)
	return scanExplanation(row)
}

// ListExplanationsSince retrieves explanations created after the given time,
// newest first, with tenant isolation.
func (r *SQLRepository) ListExplanationsSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*domain.ExplanationRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	query := explanationSelect + `
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ExplanationRecord
	for rows.Next() {
		rec, err := scanExplanation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveFeedback stores analyst feedback with tenant isolation.
func (r *SQLRepository) SaveFeedback(ctx context.Context, tenantID string, fb *domain.Feedback) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO feedback (
			id, tenant_id, alert_id, trust_score,
			overridden, decision_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	overridden := 0
	if fb.Overridden {
		overridden = 1
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		uuid.New().String(), tenantID, fb.AlertID,
		fb.TrustScore, overridden, fb.DecisionMs, fb.CreatedAt,
	)
	return err
}

// ListFeedbackSince retrieves feedback created after the given time with
// tenant isolation.
func (r *SQLRepository) ListFeedbackSince(ctx context.Context, tenantID string, since time.Time) ([]*domain.Feedback, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT alert_id, tenant_id, trust_score, overridden, decision_ms, created_at
		FROM feedback
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var overridden int
		if err := rows.Scan(
			&fb.AlertID, &fb.TenantID, &fb.TrustScore,
			&overridden, &fb.DecisionMs, &fb.CreatedAt,
		); err != nil {
			return nil, err
		}
		fb.Overridden = overridden != 0
		items = append(items, &fb)
	}
	return items, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const explanationSelect = `
	SELECT id, tenant_id, alert_id, source, score, label,
		   decision, top_features, attribution_method,
		   raw_hash, timestamp, created_at, metadata
	FROM explanations
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExplanation(row rowScanner) (*domain.ExplanationRecord, error) {
	var rec domain.ExplanationRecord
	var decision, topFeatures, metadata string

	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.AlertID, &rec.Source,
		&rec.Score, &rec.Label,
		&decision, &topFeatures, &rec.AttributionMethod,
		&rec.RawHash, &rec.Timestamp, &rec.CreatedAt,
		&metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if decision != "" {
		json.Unmarshal([]byte(decision), &rec.Decision)
	}
	if topFeatures != "" {
		json.Unmarshal([]byte(topFeatures), &rec.TopFeatures)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &rec.Metadata)
	}

	return &rec, nil
}

func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
