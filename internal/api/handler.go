package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// GlobalTenantID is used for rule specs that apply to all tenants.
const GlobalTenantID = "*"

// DefaultSpecID is the stored rule spec a screen request falls back to
// when the request body carries no inline config.
const DefaultSpecID = "default"

// ruleSpecCacheTTL bounds how long a stored spec may be served from cache.
const ruleSpecCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline *pipeline.Pipeline
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, p *pipeline.Pipeline, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		pipeline: p,
		version:  version,
	}
}

// ScreenRequest is the request body for POST /screen.
type ScreenRequest struct {
	Transactions []map[string]any `json:"transactions"`
	Config       map[string]any   `json:"config,omitempty"`
}

// ScreenResponse is the response for POST /screen.
type ScreenResponse struct {
	RunID    string          `json:"runId"`
	Summary  *report.Summary `json:"summary"`
	Hits     []domain.Hit    `json:"hits"`
	Metadata struct {
		TraceID    string `json:"traceId"`
		DurationMs int64  `json:"durationMs"`
		Version    string `json:"version"`
	} `json:"metadata"`
}

// Screen handles POST /screen: it runs the full screening pipeline over
// the submitted batch, persists the run, and publishes run/alert events.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must be a non-empty list",
		})
		return
	}

	// No inline config: fall back to the tenant's stored spec, then the
	// global one. A batch with neither runs the built-in detectors with
	// default thresholds.
	cfg := req.Config
	if cfg == nil {
		cfg = h.storedConfig(ctx, tenantID)
	}

	rows := make([]ledger.Row, len(req.Transactions))
	for i, txn := range req.Transactions {
		rows[i] = ledger.Row(txn)
	}
	table := ledger.FromRows(rows)

	result, err := h.pipeline.Run(ctx, table, cfg)
	if err != nil {
		status := http.StatusInternalServerError
		if isConfigError(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	h.persistRun(ctx, tenantID, result)
	h.publishRun(ctx, tenantID, result)

	resp := ScreenResponse{
		RunID:   result.RunID,
		Summary: result.Summary,
		Hits:    result.Hits,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.DurationMs = result.DurationMs
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// isConfigError reports whether the pipeline failure was caused by the
// caller's rule configuration or batch shape rather than the server.
func isConfigError(err error) bool {
	return errors.Is(err, domain.ErrConfig) ||
		errors.Is(err, domain.ErrMissingColumn) ||
		errors.Is(err, domain.ErrUnsupportedOperator) ||
		errors.Is(err, domain.ErrMalformedRules)
}

// storedConfig resolves the fallback rule spec document: cache, then the
// tenant's stored spec, then the global one. Misses are not fatal.
func (h *Handler) storedConfig(ctx context.Context, tenantID string) map[string]any {
	if h.cache != nil {
		if spec, err := h.cache.GetRuleSpec(ctx, tenantID, DefaultSpecID); err == nil && spec != nil {
			return spec.Document
		}
	}
	if h.repo == nil {
		return nil
	}
	for _, tenant := range []string{tenantID, GlobalTenantID} {
		spec, err := h.repo.GetRuleSpec(ctx, tenant, DefaultSpecID)
		if err != nil || spec == nil {
			continue
		}
		if h.cache != nil {
			if err := h.cache.SetRuleSpec(ctx, tenantID, spec, ruleSpecCacheTTL); err != nil {
				slog.Warn("failed to cache rule spec", "id", spec.ID, "error", err)
			}
		}
		return spec.Document
	}
	return nil
}

// persistRun saves the run and its hits. Persistence failures are logged
// but do not fail the request; the evaluation result is already computed.
func (h *Handler) persistRun(ctx context.Context, tenantID string, result *pipeline.Result) {
	if h.repo == nil {
		return
	}
	run, err := result.ToRun(tenantID)
	if err != nil {
		slog.Error("failed to encode run summary", "run_id", result.RunID, "error", err)
		return
	}
	if err := h.repo.SaveRun(ctx, tenantID, run); err != nil {
		slog.Error("failed to save run", "run_id", result.RunID, "error", err)
		return
	}
	if err := h.repo.SaveHits(ctx, tenantID, result.RunID, result.Hits); err != nil {
		slog.Error("failed to save hits", "run_id", result.RunID, "error", err)
	}
}

// publishRun emits the run-completed event, plus an alert event and a
// counter bump when the run produced hits.
func (h *Handler) publishRun(ctx context.Context, tenantID string, result *pipeline.Result) {
	if h.bus == nil {
		return
	}

	summaryPayload, err := json.Marshal(result.Summary)
	if err == nil {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicRunCompleted, summaryPayload); err != nil {
			slog.Error("failed to publish run completion", "run_id", result.RunID, "error", err)
		}
	}

	if len(result.Hits) == 0 {
		return
	}

	alertPayload, err := json.Marshal(map[string]any{
		"runId":    result.RunID,
		"tenantId": tenantID,
		"hits":     result.Hits,
	})
	if err == nil {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, alertPayload); err != nil {
			slog.Error("failed to publish alert", "run_id", result.RunID, "error", err)
		}
	}

	if h.cache != nil {
		if _, err := h.cache.IncrementCounter(ctx, tenantID, "alerts", time.Hour); err != nil {
			slog.Warn("failed to increment alert counter", "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetRun retrieves a screening run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetRun(ctx, tenantID, runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListRuns returns recent screening runs for the tenant.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunHits retrieves the hit rows a run produced, in engine order.
func (h *Handler) GetRunHits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// The run must exist; a run with no hits returns an empty list.
	if _, err := h.repo.GetRun(ctx, tenantID, runID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	hits, err := h.repo.GetHits(ctx, tenantID, runID)
	if err != nil {
		slog.Error("failed to get hits", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load hits",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":   runID,
		"hits":    hits,
		"columns": domain.HitColumns,
		"count":   len(hits),
	})
}

// CreateRuleSpecRequest is the request body for creating a rule spec.
type CreateRuleSpecRequest struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Document    map[string]any `json:"document"`
	Enabled     bool           `json:"enabled"`
	Global      bool           `json:"global,omitempty"`
}

// ListRuleSpecs returns the tenant's stored rule specs.
func (h *Handler) ListRuleSpecs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	specs, err := h.repo.ListRuleSpecs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rule specs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rule specs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rulespecs": specs,
		"count":     len(specs),
	})
}

// GetRuleSpec retrieves a stored rule spec by ID, cache first.
func (h *Handler) GetRuleSpec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	specID := chi.URLParam(r, "id")

	if specID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule spec id is required",
		})
		return
	}

	if h.cache != nil {
		if spec, err := h.cache.GetRuleSpec(ctx, tenantID, specID); err == nil && spec != nil {
			writeJSON(w, http.StatusOK, spec)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	spec, err := h.repo.GetRuleSpec(ctx, tenantID, specID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule spec not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetRuleSpec(ctx, tenantID, spec, ruleSpecCacheTTL); err != nil {
			slog.Warn("failed to cache rule spec", "id", specID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, spec)
}

// CreateRuleSpec stores a rule configuration document. The document is
// validated by parsing it with the evaluation-time parser before it is
// persisted, so a stored spec can never fail a later screen request.
func (h *Handler) CreateRuleSpec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleSpecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	if _, err := rules.ParseRuleSpec(req.Document); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule document: " + err.Error(),
		})
		return
	}

	if req.Global {
		tenantID = GlobalTenantID
	}

	spec := &domain.StoredRuleSpec{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Document:    req.Document,
		Enabled:     req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleSpec(ctx, tenantID, spec); err != nil {
			slog.Error("failed to save rule spec", "id", spec.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule spec",
			})
			return
		}
	}

	// Drop any stale cached copy; the next read repopulates it.
	if h.cache != nil {
		if err := h.cache.Delete(ctx, tenantID, "rulespec:"+spec.ID); err != nil {
			slog.Warn("failed to invalidate cached rule spec", "id", spec.ID, "error", err)
		}
	}

	slog.Info("rule spec created", "id", spec.ID, "name", spec.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rulespec": spec,
	})
}

// DeleteRuleSpec disables a stored rule spec.
func (h *Handler) DeleteRuleSpec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	specID := chi.URLParam(r, "id")

	if specID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule spec id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRuleSpec(ctx, tenantID, specID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule spec not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.Delete(ctx, tenantID, "rulespec:"+specID); err != nil {
			slog.Warn("failed to invalidate cached rule spec", "id", specID, "error", err)
		}
	}

	slog.Info("rule spec deleted", "id", specID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule spec deleted",
	})
}

// ReloadRuleSpecs refreshes the cache from the repository so evaluation
// picks up edits made directly against the database.
func (h *Handler) ReloadRuleSpecs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	specs, err := h.repo.ListRuleSpecs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rule specs for reload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rule specs",
		})
		return
	}

	if h.cache != nil {
		for _, spec := range specs {
			if err := h.cache.SetRuleSpec(ctx, tenantID, spec, ruleSpecCacheTTL); err != nil {
				slog.Warn("failed to cache rule spec", "id", spec.ID, "error", err)
			}
		}
	}

	slog.Info("rule specs reloaded", "tenant_id", tenantID, "count", len(specs))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rule specs reloaded",
		"count":   len(specs),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
