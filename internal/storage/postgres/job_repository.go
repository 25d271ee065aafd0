// Implements database operations for proof job bookkeeping.
// Only public data is persisted here: commitments, disclosed signals, and
// proof envelopes. Salts and private field values never reach this layer.

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// ProofJob represents one proof generation request.
type ProofJob struct {
	ID            string
	Scheme        string
	Circuit       string
	Commitment    string
	Status        string
	FailureClass  string
	ErrorMessage  string
	ProofData     []byte
	PublicSignals []string
	CreatedAt     time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	DurationMs    int64
}

// JobRepository defines operations for proof job persistence
type JobRepository interface {
	CreateJob(ctx context.Context, job *ProofJob) error
	GetJob(ctx context.Context, jobID string) (*ProofJob, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*ProofJob, error)
	StartJob(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, proofData []byte, publicSignals []string, durationMs int64) error
	FailJob(ctx context.Context, jobID, failureClass, errorMessage string) error
}

// jobRepository is the PostgreSQL implementation
type jobRepository struct {
	db *sql.DB
}

// DatabaseConfig holds connection pool configuration
type DatabaseConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewJobRepository creates a repository instance
func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

// CreateJob inserts a new proof job
func (r *jobRepository) CreateJob(ctx context.Context, job *ProofJob) error {
	query := `
		INSERT INTO proof_jobs (
			id, scheme, circuit, commitment, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = time.Now()
	job.Status = JobStatusPending

	_, err := r.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Scheme,
		job.Circuit,
		job.Commitment,
		job.Status,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert proof job: %w", err)
	}

	return nil
}

// GetJob retrieves a specific proof job by ID
func (r *jobRepository) GetJob(ctx context.Context, jobID string) (*ProofJob, error) {
	query := `
		SELECT
			id, scheme, circuit, commitment, status, failure_class,
			error_message, proof_data, public_signals,
			created_at, started_at, completed_at, duration_ms
		FROM proof_jobs
		WHERE id = $1
	`

	job := &ProofJob{}
	var signalsJSON []byte
	var failureClass, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.Scheme,
		&job.Circuit,
		&job.Commitment,
		&job.Status,
		&failureClass,
		&errorMessage,
		&job.ProofData,
		&signalsJSON,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&durationMs,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proof job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proof job: %w", err)
	}

	if signalsJSON != nil {
		if err := json.Unmarshal(signalsJSON, &job.PublicSignals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal public_signals: %w", err)
		}
	}

	if failureClass.Valid {
		job.FailureClass = failureClass.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	if durationMs.Valid {
		job.DurationMs = durationMs.Int64
	}

	return job, nil
}

// ListRecentJobs retrieves the most recently created jobs
func (r *jobRepository) ListRecentJobs(ctx context.Context, limit int) ([]*ProofJob, error) {
	query := `
		SELECT id, scheme, circuit, commitment, status, created_at
		FROM proof_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*ProofJob, 0)

	for rows.Next() {
		job := &ProofJob{}
		if err := rows.Scan(&job.ID, &job.Scheme, &job.Circuit, &job.Commitment, &job.Status, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// StartJob transitions a job from pending to running
func (r *jobRepository) StartJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE proof_jobs
		SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, JobStatusRunning, time.Now(), jobID, JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job not found or not pending: %s", jobID)
	}

	return nil
}

// CompleteJob marks a job as completed with its proof artifacts
func (r *jobRepository) CompleteJob(ctx context.Context, jobID string, proofData []byte, publicSignals []string, durationMs int64) error {
	query := `
		UPDATE proof_jobs
		SET
			status = $1,
			proof_data = $2,
			public_signals = $3,
			duration_ms = $4,
			completed_at = $5
		WHERE id = $6 AND status = $7
	`

	signalsJSON, err := json.Marshal(publicSignals)
	if err != nil {
		return fmt.Errorf("failed to marshal public_signals: %w", err)
	}

	result, err := r.db.ExecContext(
		ctx,
		query,
		JobStatusCompleted,
		proofData,
		signalsJSON,
		durationMs,
		time.Now(),
		jobID,
		JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job not found or not running: %s", jobID)
	}

	return nil
}

// FailJob marks a job as failed with its failure class
func (r *jobRepository) FailJob(ctx context.Context, jobID, failureClass, errorMessage string) error {
	query := `
		UPDATE proof_jobs
		SET
			status = $1,
			failure_class = $2,
			error_message = $3,
			completed_at = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query, JobStatusFailed, failureClass, errorMessage, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}

	return nil
}

// ============================================================================
// Database Connection Helper
// ============================================================================

// ConnectPostgreSQL establishes a connection to PostgreSQL
func ConnectPostgreSQL(connString string, cfg *DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool (do it once here, not in main)
	if cfg != nil {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
