package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Screening run operations
	SaveRun(ctx context.Context, tenantID string, run *ScreeningRun) error
	GetRun(ctx context.Context, tenantID string, runID string) (*ScreeningRun, error)
	ListRuns(ctx context.Context, tenantID string, limit int) ([]*ScreeningRun, error)

	// Hit rows produced by a run
	SaveHits(ctx context.Context, tenantID string, runID string, hits []Hit) error
	GetHits(ctx context.Context, tenantID string, runID string) ([]Hit, error)

	// Stored rule configuration documents
	SaveRuleSpec(ctx context.Context, tenantID string, spec *StoredRuleSpec) error
	GetRuleSpec(ctx context.Context, tenantID string, specID string) (*StoredRuleSpec, error)
	ListRuleSpecs(ctx context.Context, tenantID string) ([]*StoredRuleSpec, error)
	DeleteRuleSpec(ctx context.Context, tenantID string, specID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}
