package repository

// Schema definitions for Kestrel.
// Compatible with both SQLite and PostgreSQL.

const schemaScreeningRuns = `
CREATE TABLE IF NOT EXISTS screening_runs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    total_transactions INTEGER NOT NULL,
    rule_alerts INTEGER NOT NULL,
    max_anomaly_score REAL NOT NULL,
    summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_screening_runs_tenant ON screening_runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screening_runs_started ON screening_runs(tenant_id, started_at);
`

const schemaHits = `
CREATE TABLE IF NOT EXISTS hits (
    run_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    txn_id TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    rule_description TEXT,
    matched_value TEXT,
    severity REAL,
    reason TEXT,
    PRIMARY KEY (run_id, tenant_id, position)
);

CREATE INDEX IF NOT EXISTS idx_hits_run ON hits(tenant_id, run_id);
CREATE INDEX IF NOT EXISTS idx_hits_txn ON hits(tenant_id, txn_id);
CREATE INDEX IF NOT EXISTS idx_hits_rule ON hits(tenant_id, rule_id);
`

const schemaRuleSpecs = `
CREATE TABLE IF NOT EXISTS rule_specs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    document TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_rule_specs_tenant ON rule_specs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_specs_enabled ON rule_specs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaScreeningRuns,
		schemaHits,
		schemaRuleSpecs,
	}
}
