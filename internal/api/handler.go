package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/feature"
	"github.com/dB-Digital-Fox/XAI/internal/feedback"
	"github.com/dB-Digital-Fox/XAI/internal/policy"
	"github.com/dB-Digital-Fox/XAI/internal/triage"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service  *triage.Service
	feedback *feedback.Manager
	repo     domain.Repository
	cache    domain.Cache
	version  string

	// Document paths for POST /config/reload.
	featureMapPath string
	policyPath     string
}

// NewHandler creates a new API handler.
func NewHandler(service *triage.Service, fb *feedback.Manager, repo domain.Repository, cache domain.Cache, cfg *domain.Config, version string) *Handler {
	h := &Handler{
		service:  service,
		feedback: fb,
		repo:     repo,
		cache:    cache,
		version:  version,
	}
	if cfg != nil {
		h.featureMapPath = cfg.FeatureMapPath
		h.policyPath = cfg.PolicyPath
	}
	return h
}

// ExplainRequest is the request body for POST /explain.
type ExplainRequest struct {
	AlertID string          `json:"alertId,omitempty"`
	Alert   domain.RawAlert `json:"alert"`
	TopK    int             `json:"topK,omitempty"`
}

// ExplainResponse is the response for POST /explain.
type ExplainResponse struct {
	ExplanationID     string                     `json:"explanationId"`
	AlertID           string                     `json:"alertId"`
	Source            string                     `json:"source"`
	Score             float64                    `json:"score"`
	Label             string                     `json:"label"`
	Decision          domain.Decision            `json:"decision"`
	TopFeatures       []domain.Contribution      `json:"topFeatures,omitempty"`
	AttributionMethod string                     `json:"attributionMethod,omitempty"`
	Metadata          domain.ExplanationMetadata `json:"metadata"`
}

// Explain handles POST /explain requests.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Alert) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert is required",
		})
		return
	}
	if req.TopK < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "topK must not be negative",
		})
		return
	}

	alertID := req.AlertID
	if alertID == "" {
		alertID = uuid.New().String()
	}

	rec, err := h.service.Explain(ctx, triage.Request{
		TenantID: tenantID,
		AlertID:  alertID,
		Alert:    req.Alert,
		TopK:     req.TopK,
	})
	if err != nil {
		slog.Error("alert triage failed", "alert_id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, ExplainResponse{
		ExplanationID:     rec.ID,
		AlertID:           rec.AlertID,
		Source:            rec.Source,
		Score:             rec.Score,
		Label:             rec.Label,
		Decision:          rec.Decision,
		TopFeatures:       rec.TopFeatures,
		AttributionMethod: rec.AttributionMethod,
		Metadata:          rec.Metadata,
	})
}

// GetExplanation retrieves a stored explanation by ID.
func (h *Handler) GetExplanation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	explID := chi.URLParam(r, "id")

	if explID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "explanation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetExplanation(ctx, tenantID, explID)
	if err != nil {
		slog.Error("failed to get explanation", "id", explID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "explanation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListExplanations retrieves recent explanations, newest first.
// Query params: since (RFC3339, default last hour), limit (default 100).
func (h *Handler) ListExplanations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().Add(-time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	records, err := h.repo.ListExplanationsSince(ctx, tenantID, since, limit)
	if err != nil {
		slog.Error("failed to list explanations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list explanations",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"explanations": records,
		"count":        len(records),
	})
}

// FeedbackRequest is the request body for POST /feedback.
type FeedbackRequest struct {
	AlertID    string `json:"alertId"`
	TrustScore int    `json:"trustScore"`
	Overridden bool   `json:"overridden"`
	DecisionMs int64  `json:"decisionMs,omitempty"`
}

// SubmitFeedback handles POST /feedback requests.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.feedback == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "feedback not available",
		})
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.AlertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alertId is required",
		})
		return
	}

	fb := &domain.Feedback{
		AlertID:    req.AlertID,
		TrustScore: req.TrustScore,
		Overridden: req.Overridden,
		DecisionMs: req.DecisionMs,
	}

	if err := h.feedback.Submit(ctx, tenantID, fb); err != nil {
		slog.Error("failed to save feedback", "alert_id", req.AlertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save feedback",
		})
		return
	}

	writeJSON(w, http.StatusCreated, fb)
}

// Metrics handles GET /metrics requests, aggregating analyst feedback.
// Query param: window (Go duration, default 24h).
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.feedback == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "feedback not available",
		})
		return
	}

	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "window must be a positive duration",
			})
			return
		}
		window = parsed
	}

	metrics, err := h.feedback.Metrics(ctx, tenantID, window)
	if err != nil {
		slog.Error("failed to aggregate feedback", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to aggregate feedback",
		})
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// Features returns the active feature schema in vector index order.
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	names := h.service.FeatureNames()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": names,
		"count":    len(names),
	})
}

// ReloadConfig re-reads the feature map and policy documents and swaps them
// into the running service. A document that fails to load keeps its current
// version, so a bad edit can never break live traffic.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	var (
		features *feature.Map
		pol      *policy.Engine
		errs     []string
	)

	if h.featureMapPath != "" {
		fm, err := feature.Load(h.featureMapPath)
		if err != nil {
			slog.Error("failed to reload feature map", "path", h.featureMapPath, "error", err)
			errs = append(errs, "feature map: "+err.Error())
		} else {
			features = fm
		}
	}

	if h.policyPath != "" {
		cfg, err := policy.Load(h.policyPath)
		if err != nil {
			slog.Error("failed to reload policy", "path", h.policyPath, "error", err)
			errs = append(errs, "policy: "+err.Error())
		} else {
			eng, err := policy.New(cfg, slog.Default())
			if err != nil {
				slog.Error("failed to build policy engine", "error", err)
				errs = append(errs, "policy: "+err.Error())
			} else {
				pol = eng
			}
		}
	}

	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "reload failed, previous documents kept",
			"detail": errs,
		})
		return
	}

	h.service.Reload(features, pol)

	slog.Info("configuration reloaded",
		"feature_map", h.featureMapPath,
		"policy", h.policyPath,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "configuration reloaded",
		"features": len(h.service.FeatureNames()),
	})
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

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
