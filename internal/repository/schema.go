package repository

// Schema definitions for the XAI database.
// Compatible with both SQLite and PostgreSQL.

const schemaExplanations = `
CREATE TABLE IF NOT EXISTS explanations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    alert_id TEXT NOT NULL,
    source TEXT NOT NULL,
    score REAL NOT NULL,
    label TEXT NOT NULL,
    decision TEXT NOT NULL,
    top_features TEXT,
    attribution_method TEXT,
    raw_hash TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_explanations_tenant ON explanations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_explanations_alert ON explanations(tenant_id, alert_id);
CREATE INDEX IF NOT EXISTS idx_explanations_hash ON explanations(tenant_id, raw_hash);
CREATE INDEX IF NOT EXISTS idx_explanations_created ON explanations(tenant_id, created_at);
`

const schemaFeedback = `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    alert_id TEXT NOT NULL,
    trust_score INTEGER NOT NULL,
    overridden INTEGER NOT NULL,
    decision_ms REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_tenant ON feedback(tenant_id);
CREATE INDEX IF NOT EXISTS idx_feedback_alert ON feedback(tenant_id, alert_id);
CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(tenant_id, created_at);
`

// AllSchemas returns all schema definitions in creation order.
func AllSchemas() []string {
	return []string{
		schemaExplanations,
		schemaFeedback,
	}
}
