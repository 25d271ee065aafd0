// Package orchestrator is the process boundary to the proving toolchain. It
// hands a prepared circuit input to the zkp-prover binary in a per-request
// scratch directory and collects the proof artifacts or a classified failure.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/circuit"
	"github.com/finproofs/receivable-zkp/internal/prover"
)

// FailureClass separates failures the caller can fix from failures only an
// operator can fix. The distinction drives both the HTTP status and whether
// a retry can possibly help.
type FailureClass string

const (
	// ClassArtifactMissing: compiled circuit artifacts are not deployed.
	// Fatal until redeployment; retrying the request cannot help.
	ClassArtifactMissing FailureClass = "artifact_missing"
	// ClassInputInvalid: the input artifact is missing or malformed. A
	// caller error.
	ClassInputInvalid FailureClass = "input_invalid"
	// ClassExecutionFailed: the toolchain ran and failed (non-zero exit).
	// Typically a witness that does not satisfy the constraints.
	ClassExecutionFailed FailureClass = "execution_failed"
	// ClassTimedOut: the toolchain exceeded its time budget. Potentially
	// transient.
	ClassTimedOut FailureClass = "timed_out"
)

// Error carries the failure class plus internal detail. The detail is for
// logs only; external callers receive an opaque failure.
type Error struct {
	Class   FailureClass
	Circuit string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (circuit %s): %s", e.Class, e.Circuit, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ClassOf extracts the failure class from an error chain, defaulting to
// execution failure.
func ClassOf(err error) FailureClass {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Class
	}
	return ClassExecutionFailed
}

// Result is a successful proving run. The artifacts are read back into
// memory before the scratch directory is cleaned up.
type Result struct {
	Circuit       string
	Envelope      *prover.ProofEnvelope
	PublicSignals []string
	Duration      time.Duration
}

// Config holds the orchestrator's deployment knobs.
type Config struct {
	ProverBinary string        // path to the zkp-prover executable
	ArtifactsDir string        // compiled circuit artifacts
	WorkDir      string        // root for per-request scratch dirs ("" = os temp)
	Timeout      time.Duration // per-run budget for the subprocess
}

// Orchestrator invokes the proving toolchain. Stateless; safe for
// concurrent use, every run gets its own scratch directory.
type Orchestrator struct {
	cfg    Config
	store  *prover.Store
	logger *zap.Logger
}

// New creates an orchestrator.
func New(cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  prover.NewStore(cfg.ArtifactsDir),
		logger: logger,
	}
}

// GenerateProof runs the toolchain for one prepared input. Each invocation
// gets a unique scratch directory that is removed on every exit path:
// success, failure, and cancellation alike. Concurrent requests therefore
// never share artifact paths.
func (o *Orchestrator) GenerateProof(ctx context.Context, in *circuit.Input) (*Result, error) {
	start := time.Now()

	if err := in.Validate(); err != nil {
		return nil, &Error{Class: ClassInputInvalid, Circuit: in.Circuit, Detail: "input artifact failed validation", Err: err}
	}

	if !o.store.Exists(in.Circuit) {
		return nil, &Error{
			Class:   ClassArtifactMissing,
			Circuit: in.Circuit,
			Detail:  fmt.Sprintf("compiled artifacts not found in %s, run zkp-prover setup", o.cfg.ArtifactsDir),
		}
	}

	workDir, err := os.MkdirTemp(o.cfg.WorkDir, "proof-"+uuid.New().String()[:8]+"-")
	if err != nil {
		return nil, &Error{Class: ClassExecutionFailed, Circuit: in.Circuit, Detail: "failed to create scratch dir", Err: err}
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			o.logger.Warn("Failed to clean proof scratch dir",
				zap.String("dir", workDir),
				zap.Error(rmErr),
			)
		}
	}()

	inputPath := filepath.Join(workDir, "input.json")
	if err := in.WriteFile(inputPath); err != nil {
		return nil, &Error{Class: ClassInputInvalid, Circuit: in.Circuit, Detail: "failed to write input artifact", Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.cfg.ProverBinary,
		"prove",
		"-circuit", in.Circuit,
		"-artifacts", o.cfg.ArtifactsDir,
		"-input", inputPath,
		"-out", workDir,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	o.logger.Debug("Invoking proving toolchain",
		zap.String("circuit", in.Circuit),
		zap.String("work_dir", workDir),
	)

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{
				Class:   ClassTimedOut,
				Circuit: in.Circuit,
				Detail:  fmt.Sprintf("toolchain exceeded %s budget", o.cfg.Timeout),
				Err:     err,
			}
		}
		return nil, &Error{
			Class:   ClassExecutionFailed,
			Circuit: in.Circuit,
			Detail:  "toolchain exited with failure: " + stderrTail(&stderr),
			Err:     err,
		}
	}

	envelope, signals, err := prover.ReadProofFiles(
		filepath.Join(workDir, "proof.json"),
		filepath.Join(workDir, "public.json"),
	)
	if err != nil {
		return nil, &Error{Class: ClassExecutionFailed, Circuit: in.Circuit, Detail: "toolchain succeeded but artifacts are unreadable", Err: err}
	}

	duration := time.Since(start)
	o.logger.Info("Proof generated",
		zap.String("circuit", in.Circuit),
		zap.Duration("duration", duration),
	)

	return &Result{
		Circuit:       in.Circuit,
		Envelope:      envelope,
		PublicSignals: signals,
		Duration:      duration,
	}, nil
}

// stderrTail keeps log lines bounded; toolchain stack traces can be long.
func stderrTail(buf *bytes.Buffer) string {
	const max = 512
	s := strings.TrimSpace(buf.String())
	if len(s) > max {
		s = "…" + s[len(s)-max:]
	}
	return s
}
