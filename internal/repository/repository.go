// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
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

// SaveRun stores a screening run with tenant isolation.
func (r *SQLRepository) SaveRun(ctx context.Context, tenantID string, run *domain.ScreeningRun) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO screening_runs (
			id, tenant_id, started_at, duration_ms,
			total_transactions, rule_alerts, max_anomaly_score, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, tenantID, run.StartedAt, run.DurationMs,
		run.TotalTransactions, run.RuleAlerts, run.MaxAnomalyScore,
		string(run.Summary),
	)
	return err
}

// GetRun retrieves a screening run by ID with tenant isolation.
func (r *SQLRepository) GetRun(ctx context.Context, tenantID string, runID string) (*domain.ScreeningRun, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, started_at, duration_ms,
			   total_transactions, rule_alerts, max_anomaly_score, summary
		FROM screening_runs
		WHERE tenant_id = ? AND id = ?
	`

	var run domain.ScreeningRun
	var summary string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, runID).Scan(
		&run.ID, &run.TenantID, &run.StartedAt, &run.DurationMs,
		&run.TotalTransactions, &run.RuleAlerts, &run.MaxAnomalyScore,
		&summary,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if summary != "" {
		run.Summary = json.RawMessage(summary)
	}

	return &run, nil
}

// ListRuns retrieves the most recent screening runs for a tenant.
func (r *SQLRepository) ListRuns(ctx context.Context, tenantID string, limit int) ([]*domain.ScreeningRun, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, started_at, duration_ms,
			   total_transactions, rule_alerts, max_anomaly_score, summary
		FROM screening_runs
		WHERE tenant_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.ScreeningRun
	for rows.Next() {
		var run domain.ScreeningRun
		var summary string

		if err := rows.Scan(
			&run.ID, &run.TenantID, &run.StartedAt, &run.DurationMs,
			&run.TotalTransactions, &run.RuleAlerts, &run.MaxAnomalyScore,
			&summary,
		); err != nil {
			return nil, err
		}

		if summary != "" {
			run.Summary = json.RawMessage(summary)
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// SaveHits stores the hit rows of a run. Hits are append-only; the row
// position preserves the engine's output order.
func (r *SQLRepository) SaveHits(ctx context.Context, tenantID string, runID string, hits []domain.Hit) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO hits (
			run_id, tenant_id, position, txn_id, rule_id,
			rule_description, matched_value, severity, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, h := range hits {
		matched, err := json.Marshal(h.MatchedValue)
		if err != nil {
			return fmt.Errorf("failed to encode matched value: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, tenantID, i, h.TxnID, h.RuleID,
			h.RuleDescription, string(matched), h.Severity, h.Reason,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetHits retrieves the hit rows of a run in their original order.
func (r *SQLRepository) GetHits(ctx context.Context, tenantID string, runID string) ([]domain.Hit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT txn_id, rule_id, rule_description, matched_value, severity, reason
		FROM hits
		WHERE tenant_id = ? AND run_id = ?
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []domain.Hit{}
	for rows.Next() {
		var h domain.Hit
		var matched string

		if err := rows.Scan(
			&h.TxnID, &h.RuleID, &h.RuleDescription,
			&matched, &h.Severity, &h.Reason,
		); err != nil {
			return nil, err
		}

		if matched != "" {
			if err := json.Unmarshal([]byte(matched), &h.MatchedValue); err != nil {
				return nil, fmt.Errorf("failed to decode matched value: %w", err)
			}
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// SaveRuleSpec stores a rule configuration document with tenant isolation.
func (r *SQLRepository) SaveRuleSpec(ctx context.Context, tenantID string, spec *domain.StoredRuleSpec) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	document, err := json.Marshal(spec.Document)
	if err != nil {
		return fmt.Errorf("failed to encode rule document: %w", err)
	}

	enabled := 0
	if spec.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_specs (
			id, tenant_id, name, description, document, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			document = excluded.document,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		spec.ID, tenantID, spec.Name, spec.Description,
		string(document), enabled, now, now,
	)
	return err
}

// GetRuleSpec retrieves an enabled rule configuration with tenant isolation.
func (r *SQLRepository) GetRuleSpec(ctx context.Context, tenantID string, specID string) (*domain.StoredRuleSpec, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, document, enabled, created_at, updated_at
		FROM rule_specs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var spec domain.StoredRuleSpec
	var document string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, specID).Scan(
		&spec.ID, &spec.TenantID, &spec.Name, &spec.Description,
		&document, &enabled, &spec.CreatedAt, &spec.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	spec.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(document), &spec.Document); err != nil {
		return nil, fmt.Errorf("failed to parse rule document: %w", err)
	}

	return &spec, nil
}

// ListRuleSpecs retrieves all enabled rule configurations for a tenant.
func (r *SQLRepository) ListRuleSpecs(ctx context.Context, tenantID string) ([]*domain.StoredRuleSpec, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, document, enabled, created_at, updated_at
		FROM rule_specs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []*domain.StoredRuleSpec
	for rows.Next() {
		var spec domain.StoredRuleSpec
		var document string
		var enabled int

		if err := rows.Scan(
			&spec.ID, &spec.TenantID, &spec.Name, &spec.Description,
			&document, &enabled, &spec.CreatedAt, &spec.UpdatedAt,
		); err != nil {
			return nil, err
		}

		spec.Enabled = enabled == 1
		if err := json.Unmarshal([]byte(document), &spec.Document); err != nil {
			return nil, fmt.Errorf("failed to parse rule document for %s: %w", spec.ID, err)
		}
		specs = append(specs, &spec)
	}

	return specs, rows.Err()
}

// DeleteRuleSpec soft-deletes a rule configuration by setting enabled = 0.
func (r *SQLRepository) DeleteRuleSpec(ctx context.Context, tenantID string, specID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE rule_specs
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, specID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

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
