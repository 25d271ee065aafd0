package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/common/cache"
	"github.com/finproofs/receivable-zkp/internal/orchestrator"
	"github.com/finproofs/receivable-zkp/internal/prover"
	"github.com/finproofs/receivable-zkp/internal/scheme"
	"github.com/finproofs/receivable-zkp/internal/storage/postgres"
)

// Terminal jobs are cached; failed jobs for a shorter window so operators
// see fixes take effect sooner.
const (
	completedJobCacheTTL = 1 * time.Hour
	failedJobCacheTTL    = 10 * time.Minute

	proofCachePrefix = "proof"
)

// ProofResult is the external payload for a completed proof. It carries only
// public data: the proof itself, the commitment, the disclosed signals, and
// PublicFields mapping each public key to its value in submitted form.
type ProofResult struct {
	Success        bool                  `json:"success"`
	JobID          string                `json:"jobId"`
	Circuit        string                `json:"circuitName"`
	Commitment     string                `json:"commitment"`
	PublicFields   map[string]string     `json:"publicFields"`
	DisclosedIDs   []string              `json:"disclosedFieldIds"`
	DisclosedVals  []string              `json:"disclosedValues"`
	Proof          *prover.ProofEnvelope `json:"proof"`
	PublicSignals  []string              `json:"publicSignals"`
	DurationMillis int64                 `json:"durationMs"`
}

// ProofService drives the end-to-end proof pipeline: commit, record a job,
// invoke the proving toolchain, persist the outcome.
type ProofService struct {
	commitments *CommitmentService
	orch        *orchestrator.Orchestrator
	jobs        postgres.JobRepository
	cacheLayer  *cache.CacheLayer
	logger      *zap.Logger
}

// NewProofService wires the proof pipeline.
func NewProofService(
	commitments *CommitmentService,
	orch *orchestrator.Orchestrator,
	jobs postgres.JobRepository,
	cacheLayer *cache.CacheLayer,
	logger *zap.Logger,
) *ProofService {
	return &ProofService{
		commitments: commitments,
		orch:        orch,
		jobs:        jobs,
		cacheLayer:  cacheLayer,
		logger:      logger,
	}
}

// Generate runs the whole pipeline for one submission. The salt is created,
// used, and discarded inside this call; only the commitment and public
// signals outlive it. Failures are recorded against the job row with their
// failure class before being returned.
func (s *ProofService) Generate(ctx context.Context, req scheme.Request) (*ProofResult, error) {
	// Identical submissions are deduplicated: the cached proof is as valid
	// as a fresh one and skips a full toolchain run.
	if cached, hit, err := s.cacheLayer.GetByRequestHash(ctx, proofCachePrefix, req); err == nil && hit {
		if result, ok := decodeCachedProofResult(cached); ok {
			s.logger.Info("Returning cached proof for identical submission",
				zap.String("job_id", result.JobID),
				zap.String("circuit", result.Circuit),
			)
			return result, nil
		}
	}

	committed, err := s.commitments.Commit(req)
	if err != nil {
		return nil, err
	}
	input := committed.CircuitInput

	job := &postgres.ProofJob{
		Scheme:     req.Scheme,
		Circuit:    input.Circuit,
		Commitment: committed.Commitment,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record proof job: %w", err)
	}
	if err := s.jobs.StartJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to start proof job: %w", err)
	}

	result, err := s.orch.GenerateProof(ctx, input)
	if err != nil {
		class := string(orchestrator.ClassOf(err))
		if failErr := s.jobs.FailJob(ctx, job.ID, class, err.Error()); failErr != nil {
			s.logger.Error("Failed to record job failure",
				zap.String("job_id", job.ID),
				zap.Error(failErr),
			)
		}
		s.logger.Warn("Proof generation failed",
			zap.String("job_id", job.ID),
			zap.String("failure_class", class),
			zap.Error(err),
		)
		return nil, err
	}

	proofData, err := json.Marshal(result.Envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof envelope: %w", err)
	}
	if err := s.jobs.CompleteJob(ctx, job.ID, proofData, result.PublicSignals, result.Duration.Milliseconds()); err != nil {
		s.logger.Error("Failed to record job completion",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
	if err := s.cacheLayer.InvalidateJobResult(ctx, job.ID); err != nil {
		s.logger.Debug("Cache invalidation failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	resp := &ProofResult{
		Success:        true,
		JobID:          job.ID,
		Circuit:        result.Circuit,
		Commitment:     committed.Commitment,
		PublicFields:   committed.PublicFields,
		DisclosedIDs:   input.DisclosedFieldIDs,
		DisclosedVals:  input.DisclosedValues,
		Proof:          result.Envelope,
		PublicSignals:  result.PublicSignals,
		DurationMillis: result.Duration.Milliseconds(),
	}

	if err := s.cacheLayer.SetByRequestHash(ctx, proofCachePrefix, req, resp, completedJobCacheTTL); err != nil {
		s.logger.Debug("Failed to cache proof by request hash", zap.String("job_id", job.ID), zap.Error(err))
	}

	return resp, nil
}

// JobStatus is the external view of a stored proof job.
type JobStatus struct {
	JobID         string                `json:"jobId"`
	Scheme        string                `json:"scheme"`
	Circuit       string                `json:"circuitName"`
	Commitment    string                `json:"commitment"`
	Status        string                `json:"status"`
	FailureClass  string                `json:"failureClass,omitempty"`
	Proof         *prover.ProofEnvelope `json:"proof,omitempty"`
	PublicSignals []string              `json:"publicSignals,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	DurationMs    int64                 `json:"durationMs,omitempty"`
}

// GetJob returns a stored proof job, consulting the cache first. Only
// terminal jobs are cached so pollers never see a stale status.
func (s *ProofService) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	if cached, hit, err := s.cacheLayer.GetJobResult(ctx, jobID); err == nil && hit {
		if status, ok := decodeCachedStatus(cached); ok {
			return status, nil
		}
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &JobStatus{
		JobID:         job.ID,
		Scheme:        job.Scheme,
		Circuit:       job.Circuit,
		Commitment:    job.Commitment,
		Status:        job.Status,
		FailureClass:  job.FailureClass,
		PublicSignals: job.PublicSignals,
		CreatedAt:     job.CreatedAt,
		DurationMs:    job.DurationMs,
	}
	if len(job.ProofData) > 0 {
		var envelope prover.ProofEnvelope
		if err := json.Unmarshal(job.ProofData, &envelope); err == nil {
			status.Proof = &envelope
		}
	}

	if job.Status == postgres.JobStatusCompleted || job.Status == postgres.JobStatusFailed {
		ttl := completedJobCacheTTL
		if job.Status == postgres.JobStatusFailed {
			ttl = failedJobCacheTTL
		}
		if err := s.cacheLayer.SetJobResult(ctx, jobID, status, ttl); err != nil {
			s.logger.Debug("Failed to cache job status", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	return status, nil
}

// JobSummary is one row of the recent-jobs listing. Proof data stays out of
// it; callers fetch a single job for the full payload.
type JobSummary struct {
	JobID      string    `json:"jobId"`
	Scheme     string    `json:"scheme"`
	Circuit    string    `json:"circuitName"`
	Commitment string    `json:"commitment"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListRecent returns the most recently created proof jobs, newest first.
func (s *ProofService) ListRecent(ctx context.Context, limit int) ([]JobSummary, error) {
	jobs, err := s.jobs.ListRecentJobs(ctx, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, JobSummary{
			JobID:      job.ID,
			Scheme:     job.Scheme,
			Circuit:    job.Circuit,
			Commitment: job.Commitment,
			Status:     job.Status,
			CreatedAt:  job.CreatedAt,
		})
	}
	return summaries, nil
}

// decodeCachedStatus converts a cache hit back into a JobStatus. Cache
// entries round-trip through JSON, so the value arrives as a generic map.
func decodeCachedStatus(v interface{}) (*JobStatus, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var status JobStatus
	if err := json.Unmarshal(raw, &status); err != nil || status.JobID == "" {
		return nil, false
	}
	return &status, true
}

// decodeCachedProofResult converts a request-hash cache hit back into a
// ProofResult, rejecting anything that does not look like a completed proof.
func decodeCachedProofResult(v interface{}) (*ProofResult, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var result ProofResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	if !result.Success || result.JobID == "" || result.Proof == nil {
		return nil, false
	}
	return &result, true
}
