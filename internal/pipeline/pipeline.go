// Package pipeline composes rule evaluation, feature engineering,
// anomaly scoring and reporting into one screening run.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/merge"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-pipeline")

// Pipeline runs the full screening flow over a transaction table.
type Pipeline struct {
	engine           *rules.Engine
	summarizer       report.Summarizer
	anomalyThreshold float64
	feedbackPath     string
	logger           *slog.Logger
}

// New builds a pipeline from the application config.
func New(cfg domain.PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	engine, err := rules.NewEngine()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine:           engine,
		summarizer:       report.Summarizer{TopN: cfg.TopAnomalies},
		anomalyThreshold: cfg.AnomalyThreshold,
		feedbackPath:     cfg.FeedbackPath,
		logger:           logger,
	}, nil
}

// Result is the complete outcome of one screening run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	DurationMs int64
	Hits       []domain.Hit
	Enriched   []merge.Enriched
	Summary    *report.Summary
}

// Run screens the table against the rule configuration. The rule engine
// result is deterministic for a fixed input; the run ID and timings are
// the only varying parts.
func (p *Pipeline) Run(ctx context.Context, t *ledger.Table, rawConfig map[string]any) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	started := time.Now().UTC()
	runID := uuid.New().String()
	logger := p.logger.With("run_id", runID)

	hits, err := p.engine.Apply(ctx, t, rawConfig)
	if err != nil {
		logger.Error("rule evaluation failed", "error", err)
		return nil, err
	}

	vectors := features.Build(t)
	scores := anomaly.ScoreAll(vectors, p.anomalyThreshold)

	enriched, err := merge.Results(t, vectors, scores, hits)
	if err != nil {
		return nil, err
	}

	feedback, err := report.LoadFeedback(p.feedbackPath)
	if err != nil {
		logger.Warn("feedback load failed, continuing without it", "error", err)
		feedback = nil
	}

	summary := p.summarizer.Build(enriched, hits, feedback)

	result := &Result{
		RunID:      runID,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
		Hits:       hits,
		Enriched:   enriched,
		Summary:    summary,
	}

	logger.Info("screening run complete",
		"transactions", t.Len(),
		"hits", len(hits),
		"anomalies", summary.AnomaliesOverThreshold,
		"duration_ms", result.DurationMs)

	return result, nil
}

// ToRun converts a pipeline result into its persisted form.
func (r *Result) ToRun(tenantID string) (*domain.ScreeningRun, error) {
	raw, err := json.Marshal(r.Summary)
	if err != nil {
		return nil, err
	}
	return &domain.ScreeningRun{
		ID:                r.RunID,
		TenantID:          tenantID,
		StartedAt:         r.StartedAt,
		DurationMs:        r.DurationMs,
		TotalTransactions: r.Summary.TotalTransactions,
		RuleAlerts:        r.Summary.RuleAlerts,
		MaxAnomalyScore:   r.Summary.MaxAnomalyScore,
		Summary:           raw,
	}, nil
}
