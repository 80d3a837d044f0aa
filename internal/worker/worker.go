// Package worker provides async batch processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Worker screens ingested batches asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	pipeline *pipeline.Pipeline

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, p *pipeline.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		pipeline: p,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing batches for the given tenants.
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
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicBatchIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// BatchMessage is the message payload for batch screening.
type BatchMessage struct {
	TenantID     string           `json:"tenantId"`
	Transactions []map[string]any `json:"transactions"`
	Config       map[string]any   `json:"config,omitempty"`
}

// AlertMessage is published for every run that produced hits.
type AlertMessage struct {
	RunID      string       `json:"runId"`
	TenantID   string       `json:"tenantId"`
	RuleAlerts int          `json:"ruleAlerts"`
	Hits       []domain.Hit `json:"hits"`
}

// processBatch screens one ingested batch through the pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	var batch BatchMessage
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batch.TenantID != "" {
		tenantID = batch.TenantID
	}

	slog.Debug("processing batch",
		"tenant_id", tenantID,
		"transactions", len(batch.Transactions),
	)

	rows := make([]ledger.Row, len(batch.Transactions))
	for i, r := range batch.Transactions {
		rows[i] = ledger.Row(r)
	}

	result, err := w.pipeline.Run(ctx, ledger.FromRows(rows), batch.Config)
	if err != nil {
		slog.Error("batch screening failed",
			"tenant_id", tenantID,
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		run, err := result.ToRun(tenantID)
		if err != nil {
			return err
		}
		if err := w.repo.SaveRun(ctx, tenantID, run); err != nil {
			slog.Error("failed to save run",
				"run_id", result.RunID,
				"error", err,
			)
		}
		if err := w.repo.SaveHits(ctx, tenantID, result.RunID, result.Hits); err != nil {
			slog.Error("failed to save hits",
				"run_id", result.RunID,
				"error", err,
			)
		}
	}

	// Publish run completion
	summaryPayload, _ := json.Marshal(result.Summary)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicRunCompleted, summaryPayload); err != nil {
		slog.Error("failed to publish run completion",
			"run_id", result.RunID,
			"error", err,
		)
	}

	// If the run produced hits, publish an alert
	if len(result.Hits) > 0 {
		alertPayload, _ := json.Marshal(AlertMessage{
			RunID:      result.RunID,
			TenantID:   tenantID,
			RuleAlerts: len(result.Hits),
			Hits:       result.Hits,
		})
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, alertPayload); err != nil {
			slog.Error("failed to publish alert",
				"run_id", result.RunID,
				"error", err,
			)
		}
	}

	slog.Info("batch processed",
		"run_id", result.RunID,
		"tenant_id", tenantID,
		"transactions", result.Summary.TotalTransactions,
		"hits", len(result.Hits),
		"duration_ms", result.DurationMs,
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
