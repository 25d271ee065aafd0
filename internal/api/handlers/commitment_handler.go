package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/common/cache"
	"github.com/finproofs/receivable-zkp/internal/common/health"
	"github.com/finproofs/receivable-zkp/internal/orchestrator"
	"github.com/finproofs/receivable-zkp/internal/scheme"
	"github.com/finproofs/receivable-zkp/internal/service"
)

// ============================================================================
// HTTP Request/Response Models
// ============================================================================

// SubmissionRequest is the wire form of a commitment or proof request.
// Values stay raw here; the validator owns interpretation.
type SubmissionRequest struct {
	Scheme string                           `json:"scheme"`
	Fields map[string]SubmittedFieldPayload `json:"fields"`
}

type SubmittedFieldPayload struct {
	Value      interface{} `json:"value"`
	Visibility string      `json:"visibility"`
}

type ValidationErrorResponse struct {
	Success   bool                     `json:"success"`
	Kind      string                   `json:"kind"`
	Errors    []scheme.ValidationError `json:"errors"`
	RequestID string                   `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ============================================================================
// CommitmentHandler
// ============================================================================

type CommitmentHandler struct {
	commitments *service.CommitmentService
	proofs      *service.ProofService
	maxFields   int
	logger      *zap.Logger
}

func NewCommitmentHandler(
	commitments *service.CommitmentService,
	proofs *service.ProofService,
	maxFields int,
	logger *zap.Logger,
) *CommitmentHandler {
	return &CommitmentHandler{
		commitments: commitments,
		proofs:      proofs,
		maxFields:   maxFields,
		logger:      logger,
	}
}

// CreateCommitment handles POST /api/v1/commitments. The response carries
// the salt and full circuit input exactly once; the service retains neither.
func (h *CommitmentHandler) CreateCommitment(w http.ResponseWriter, r *http.Request) {
	requestID := h.getRequestID(r)

	req, err := h.decodeSubmission(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err, requestID)
		return
	}

	h.logger.Info("Received commitment request",
		zap.String("scheme", req.Scheme),
		zap.Int("num_fields", len(req.Fields)),
		zap.String("request_id", requestID),
	)

	result, err := h.commitments.Commit(req)
	if err != nil {
		h.respondPipelineError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

// GenerateProof handles POST /api/v1/proofs. Runs the whole pipeline
// synchronously: commit, invoke the toolchain, persist the job, respond.
func (h *CommitmentHandler) GenerateProof(w http.ResponseWriter, r *http.Request) {
	requestID := h.getRequestID(r)

	req, err := h.decodeSubmission(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err, requestID)
		return
	}

	h.logger.Info("Received proof request",
		zap.String("scheme", req.Scheme),
		zap.Int("num_fields", len(req.Fields)),
		zap.String("request_id", requestID),
	)

	result, err := h.proofs.Generate(r.Context(), req)
	if err != nil {
		h.respondPipelineError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// ListProofs handles GET /api/v1/proofs. Returns summaries only; the full
// proof payload comes from the single-job endpoint.
func (h *CommitmentHandler) ListProofs(w http.ResponseWriter, r *http.Request) {
	requestID := h.getRequestID(r)

	limit := DefaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, http.StatusBadRequest, "Invalid limit parameter", err, requestID)
			return
		}
		limit = parsed
	}
	if limit > MaxJobListLimit {
		limit = MaxJobListLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), JobQueryTimeout)
	defer cancel()

	summaries, err := h.proofs.ListRecent(ctx, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to list proof jobs", err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(summaries)
}

// GetProof handles GET /api/v1/proofs/{id}.
func (h *CommitmentHandler) GetProof(w http.ResponseWriter, r *http.Request) {
	requestID := h.getRequestID(r)
	jobID := mux.Vars(r)["id"]

	if _, err := uuid.Parse(jobID); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid proof job ID format", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), JobQueryTimeout)
	defer cancel()

	status, err := h.proofs.GetJob(ctx, jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Proof job not found", err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

// ============================================================================
// Helper Methods
// ============================================================================

// decodeSubmission parses the request body with UseNumber so numeric field
// values arrive as json.Number, never float64. Exactness matters: a face
// value that went through float64 could commit to the wrong integer.
func (h *CommitmentHandler) decodeSubmission(r *http.Request) (scheme.Request, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var payload SubmissionRequest
	if err := dec.Decode(&payload); err != nil {
		return scheme.Request{}, err
	}
	if h.maxFields > 0 && len(payload.Fields) > h.maxFields {
		return scheme.Request{}, fmt.Errorf("submission has %d fields, limit is %d", len(payload.Fields), h.maxFields)
	}

	req := scheme.Request{
		Scheme: payload.Scheme,
		Fields: make(map[string]scheme.SubmittedField, len(payload.Fields)),
	}
	for key, f := range payload.Fields {
		req.Fields[key] = scheme.SubmittedField{
			Value:      f.Value,
			Visibility: scheme.Visibility(f.Visibility),
		}
	}
	return req, nil
}

// respondPipelineError maps pipeline failures onto HTTP statuses. Validation
// errors are the caller's fault and carry the full per-field breakdown;
// toolchain failures are classified by the orchestrator.
func (h *CommitmentHandler) respondPipelineError(w http.ResponseWriter, err error, requestID string) {
	var verrs scheme.ValidationErrors
	if errors.As(err, &verrs) {
		h.logger.Info("Submission rejected",
			zap.String("kind", string(verrs.Kind())),
			zap.Int("num_errors", len(verrs)),
			zap.String("request_id", requestID),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", requestID)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
			Success:   false,
			Kind:      string(verrs.Kind()),
			Errors:    verrs,
			RequestID: requestID,
		})
		return
	}

	var oerr *orchestrator.Error
	if errors.As(err, &oerr) {
		status := http.StatusInternalServerError
		message := "Proof generation failed"
		switch oerr.Class {
		case orchestrator.ClassInputInvalid:
			status = http.StatusBadRequest
			message = "Invalid proof input"
		case orchestrator.ClassTimedOut:
			status = http.StatusGatewayTimeout
			message = "Proof generation timed out"
		case orchestrator.ClassArtifactMissing:
			message = "Proving circuit is not deployed"
		}
		h.respondError(w, status, message, err, requestID)
		return
	}

	h.respondError(w, http.StatusInternalServerError, "Internal error", err, requestID)
}

func (h *CommitmentHandler) respondError(
	w http.ResponseWriter,
	statusCode int,
	message string,
	err error,
	requestID string,
) {
	h.logger.Error(message,
		zap.Error(err),
		zap.Int("status_code", statusCode),
		zap.String("request_id", requestID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:   false,
		Error:     message,
		RequestID: requestID,
	})
}

func (h *CommitmentHandler) getRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.New().String()
}

// ============================================================================
// Health
// ============================================================================

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker    *health.Checker
	db         *sql.DB
	cacheLayer *cache.CacheLayer
	store      health.ArtifactStore
	circuits   []string
}

func NewHealthHandler(checker *health.Checker, db *sql.DB, cacheLayer *cache.CacheLayer, store health.ArtifactStore, circuits []string) *HealthHandler {
	return &HealthHandler{
		checker:    checker,
		db:         db,
		cacheLayer: cacheLayer,
		store:      store,
		circuits:   circuits,
	}
}

// Liveness reports that the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status": "healthy", "service": "zkp-service"}`))
}

// Readiness checks every critical dependency and returns 503 until all pass.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result := h.checker.CheckAll(ctx, h.db, h.cacheLayer, h.store, h.circuits)

	w.Header().Set("Content-Type", "application/json")
	if result.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
