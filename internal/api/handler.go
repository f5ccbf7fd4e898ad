package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/engine"
	"github.com/openclaims/gavel/internal/extraction"
	"github.com/openclaims/gavel/internal/policy"
	"github.com/openclaims/gavel/internal/validate"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	ledger   domain.Ledger
	bus      domain.EventBus
	engine   *engine.Engine
	policies *policy.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, ledger domain.Ledger, bus domain.EventBus, eng *engine.Engine, policies *policy.Engine, version string) *Handler {
	return &Handler{
		repo:     repo,
		ledger:   ledger,
		bus:      bus,
		engine:   eng,
		policies: policies,
		version:  version,
	}
}

// EvaluateResponse is the response for POST /claims/evaluate.
type EvaluateResponse struct {
	DecisionID string             `json:"decisionId"`
	ClaimID    string             `json:"claimId"`
	Status     domain.ClaimStatus `json:"status"`
	Reasons    []string           `json:"reasons"`
	Confidence float64            `json:"confidence"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// intakeClaim decodes, normalizes, and validates a claim from a request
// body. Construction-level failures come back as an error for a 400; field
// format problems come back as messages. The decision pipeline never sees a
// malformed record.
func (h *Handler) intakeClaim(r *http.Request) (*domain.Claim, []string, error) {
	var claim domain.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON request body")
	}

	now := time.Now().UTC()
	claim.Normalize(now)

	if err := claim.Validate(now); err != nil {
		return nil, nil, err
	}

	errs := validate.All(map[string]any{
		"patientId":      claim.PatientID,
		"providerId":     claim.ProviderID,
		"totalAmount":    claim.TotalAmount,
		"diagnosisCodes": claim.DiagnosisCodes,
		"procedureCodes": claim.ProcedureCodes,
	})

	return &claim, errs, nil
}

// EvaluateClaim handles POST /claims/evaluate: synchronous adjudication.
func (h *Handler) EvaluateClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	actor := GetActor(ctx)
	traceID := GetTraceID(ctx)

	claim, fieldErrs, err := h.intakeClaim(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "claim failed field validation",
			"validationErrors": fieldErrs,
		})
		return
	}

	now := time.Now().UTC()
	fromStatus := claim.Status
	if claim.Status == domain.StatusDraft {
		claim.Transition(domain.StatusSubmitted, now)
	}

	decision := h.engine.Evaluate(ctx, claim)

	submittedStatus := claim.Status
	if err := claim.Transition(decision.Status, now); err != nil {
		slog.Error("decision produced an invalid transition",
			"claim_id", claim.ID,
			"from", submittedStatus,
			"to", decision.Status,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "claim evaluation failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, claim); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		}
		if err := h.repo.SaveDecision(ctx, decision); err != nil {
			slog.Error("failed to save decision", "claim_id", claim.ID, "error", err)
		}

		var entries []*domain.HistoryEntry
		if fromStatus == domain.StatusDraft {
			entries = append(entries, &domain.HistoryEntry{
				ID:         uuid.New().String(),
				ClaimID:    claim.ID,
				FromStatus: fromStatus,
				ToStatus:   submittedStatus,
				Reason:     "Claim submitted",
				Actor:      actor,
				CreatedAt:  now,
			})
		}
		entries = append(entries, &domain.HistoryEntry{
			ID:         uuid.New().String(),
			ClaimID:    claim.ID,
			FromStatus: submittedStatus,
			ToStatus:   decision.Status,
			Reason:     firstReason(decision.Reasons),
			Actor:      "engine",
			CreatedAt:  now,
		})
		for _, entry := range entries {
			if err := h.repo.AppendHistory(ctx, entry); err != nil {
				slog.Error("failed to append history", "claim_id", claim.ID, "error", err)
			}
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(decision)
		if err := h.bus.Publish(ctx, domain.TopicClaimDecision, payload); err != nil {
			slog.Error("failed to publish decision", "claim_id", claim.ID, "error", err)
		}
	}

	resp := EvaluateResponse{
		DecisionID: decision.ID,
		ClaimID:    claim.ID,
		Status:     decision.Status,
		Reasons:    decision.Reasons,
		Confidence: decision.Confidence,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// SubmitClaim handles POST /claims: accept a claim and queue it for
// asynchronous adjudication by the worker.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := GetActor(ctx)

	claim, fieldErrs, err := h.intakeClaim(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "claim failed field validation",
			"validationErrors": fieldErrs,
		})
		return
	}

	now := time.Now().UTC()
	fromStatus := claim.Status
	if claim.Status == domain.StatusDraft {
		claim.Transition(domain.StatusSubmitted, now)
	}

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, claim); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save claim",
			})
			return
		}
		if fromStatus == domain.StatusDraft {
			entry := &domain.HistoryEntry{
				ID:         uuid.New().String(),
				ClaimID:    claim.ID,
				FromStatus: fromStatus,
				ToStatus:   claim.Status,
				Reason:     "Claim submitted",
				Actor:      actor,
				CreatedAt:  now,
			}
			if err := h.repo.AppendHistory(ctx, entry); err != nil {
				slog.Error("failed to append history", "claim_id", claim.ID, "error", err)
			}
		}
	}

	payload, _ := json.Marshal(claim)
	if err := h.bus.Publish(ctx, domain.TopicClaimSubmitted, payload); err != nil {
		slog.Error("failed to publish claim", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue claim",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"claimId": claim.ID,
		"status":  string(claim.Status),
	})
}

// BatchRequest is the request body for POST /claims/batch.
type BatchRequest struct {
	Claims []*domain.Claim `json:"claims"`
}

// maxBatchSize caps how many claims one batch request may carry.
const maxBatchSize = 1000

// EvaluateBatch handles POST /claims/batch: adjudicate a set of claims in
// input order and return the aggregate summary.
func (h *Handler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims is required and must not be empty",
		})
		return
	}
	if len(req.Claims) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("batch size exceeds maximum of %d", maxBatchSize),
		})
		return
	}

	now := time.Now().UTC()
	for i, claim := range req.Claims {
		claim.Normalize(now)
		if err := claim.Validate(now); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("claim %d: %v", i, err),
			})
			return
		}
	}

	summary := h.engine.ProcessBatch(ctx, req.Claims)

	writeJSON(w, http.StatusOK, summary)
}

// ExtractedClaimResponse is the response for POST /claims/extracted.
type ExtractedClaimResponse struct {
	Claim            *domain.Claim `json:"claim"`
	ValidationErrors []string      `json:"validationErrors,omitempty"`
}

// CreateExtractedClaim handles POST /claims/extracted: build a draft claim
// from document-extraction output. Field-level validation failures are
// reported alongside the draft so a reviewer can correct them; the claim is
// not adjudicated here.
func (h *Handler) CreateExtractedClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var result domain.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	claim, fieldErrs, err := extraction.MapFields(&result, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, claim); err != nil {
			slog.Error("failed to save extracted claim", "claim_id", claim.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, ExtractedClaimResponse{
		Claim:            claim,
		ValidationErrors: fieldErrs,
	})
}

// GetClaim retrieves a claim by ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claim, err := h.repo.GetClaim(ctx, claimID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get claim", "id", claimID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// GetClaimExplanation renders the latest stored decision for a claim as a
// human-readable report. Rendering from the stored decision keeps this
// endpoint read-only; re-running the engine would record a spurious
// duplicate fingerprint.
func (h *Handler) GetClaimExplanation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	decision, err := h.repo.GetLatestDecision(ctx, claimID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get decision", "claim_id", claimID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no decision found for claim",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claimId":     claimID,
		"decisionId":  decision.ID,
		"explanation": engine.RenderExplanation(decision),
	})
}

// GetClaimHistory retrieves the audit trail for a claim.
func (h *Handler) GetClaimHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entries, err := h.repo.ListHistory(ctx, claimID)
	if err != nil {
		slog.Error("failed to list history", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claim history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claimId": claimID,
		"history": entries,
		"count":   len(entries),
	})
}

// ListPatientClaims retrieves a patient's claims with a service date inside
// the lookback window. The window defaults to one year; ?days=N overrides it.
func (h *Handler) ListPatientClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	days := 365
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "days must be a positive integer",
			})
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	claims, err := h.repo.ListClaimsByPatient(ctx, patientID, since)
	if err != nil {
		slog.Error("failed to list patient claims", "patient_id", patientID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list patient claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patientId": patientID,
		"claims":    claims,
		"count":     len(claims),
	})
}

// GetDecision retrieves a decision by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	decisionID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	decision, err := h.repo.GetDecision(ctx, decisionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get decision", "id", decisionID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// ListPolicies returns the policy rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /policies/reload.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	loaded := h.policies.Loaded()

	writeJSON(w, http.StatusOK, map[string]any{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy rule by ID.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule, err := h.repo.GetPolicyRule(ctx, ruleID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get policy rule", "id", ruleID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "policy rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreatePolicyRequest is the request body for creating a policy rule.
type CreatePolicyRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Reason      string `json:"reason"`
	Enabled     bool   `json:"enabled"`
}

// CreatePolicy creates a new policy rule, validates its CEL expression, and
// saves it to the database. Enabled rules are loaded into the engine
// immediately.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and reason are required",
		})
		return
	}

	rule := &domain.PolicyRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	if err := h.policies.Validate(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicyRule(ctx, rule); err != nil {
			slog.Error("failed to save policy rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy rule",
			})
			return
		}
	}

	if rule.Enabled {
		if err := h.policies.Load(rule); err != nil {
			slog.Error("failed to load policy rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("policy rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"policy": rule,
	})
}

// ReloadPolicies reloads all policy rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListPolicyRules(ctx)
	if err != nil {
		slog.Error("failed to list policy rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policy rules from database",
		})
		return
	}

	if err := h.policies.Reload(dbRules); err != nil {
		slog.Error("failed to reload policy rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policy rules: " + err.Error(),
		})
		return
	}

	slog.Info("policy rules reloaded from database", "count", h.policies.Count())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "policy rules reloaded successfully",
		"count":   h.policies.Count(),
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
	if h.ledger != nil {
		if err := h.ledger.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
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

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
