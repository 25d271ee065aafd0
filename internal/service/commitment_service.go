// Package service wires the validation, commitment, and proving layers into
// the operations the HTTP surface exposes.
package service

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/catalog"
	"github.com/finproofs/receivable-zkp/internal/circuit"
	"github.com/finproofs/receivable-zkp/internal/commitment"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

// CommitmentMetadata summarizes a committed dataset without exposing values.
type CommitmentMetadata struct {
	Scheme       string   `json:"scheme"`
	TotalFields  int      `json:"totalFields"`
	PublicFields int      `json:"publicFields"`
	FieldKeys    []string `json:"fieldKeys"`
}

// CommitmentResult is the full response to a commitment request. The salt
// appears here exactly once: the caller must retain it, the service does not.
// PublicFields maps each public field key to its value in submitted form;
// private fields never appear in it.
type CommitmentResult struct {
	RequestID    string             `json:"requestId"`
	Commitment   string             `json:"commitment"`
	Salt         string             `json:"salt"`
	PublicFields map[string]string  `json:"publicFields"`
	CircuitInput *circuit.Input     `json:"circuitInput"`
	Metadata     CommitmentMetadata `json:"metadata"`
}

// CommitmentService runs the validate, encode, salt, commit, prepare pipeline.
type CommitmentService struct {
	validator *scheme.Validator
	logger    *zap.Logger
}

// NewCommitmentService creates the service over a validated registry.
func NewCommitmentService(validator *scheme.Validator, logger *zap.Logger) *CommitmentService {
	return &CommitmentService{validator: validator, logger: logger}
}

// Commit validates a submission and produces the commitment plus the circuit
// input the caller needs for a later proof. Validation failures come back as
// scheme.ValidationErrors; everything after validation failing indicates an
// internal fault, not a caller error.
func (s *CommitmentService) Commit(req scheme.Request) (*CommitmentResult, error) {
	fields, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	salt, err := commitment.NewSalt()
	if err != nil {
		return nil, err
	}

	com, err := commitment.Commit(fields, salt)
	if err != nil {
		return nil, err
	}

	input, err := circuit.PrepareInput(fields, salt, com)
	if err != nil {
		return nil, err
	}

	meta := CommitmentMetadata{
		Scheme:      req.Scheme,
		TotalFields: len(fields),
	}
	cat := s.validator.Catalog()
	publicFields := make(map[string]string)
	for _, f := range fields {
		meta.FieldKeys = append(meta.FieldKeys, f.Key)
		if f.Visibility != scheme.Public {
			continue
		}
		meta.PublicFields++
		spec, ok := cat.LookupID(f.FieldID)
		if !ok {
			return nil, fmt.Errorf("field %d passed validation but is not in the catalog", f.FieldID)
		}
		decoded, err := catalog.Decode(spec, f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public field %q: %w", f.Key, err)
		}
		publicFields[f.Key] = decoded
	}

	requestID := uuid.New().String()
	s.logger.Info("Commitment created",
		zap.String("request_id", requestID),
		zap.String("scheme", req.Scheme),
		zap.String("circuit", input.Circuit),
		zap.Int("total_fields", meta.TotalFields),
		zap.Int("public_fields", meta.PublicFields),
	)

	return &CommitmentResult{
		RequestID:    requestID,
		Commitment:   com.String(),
		Salt:         salt.String(),
		PublicFields: publicFields,
		CircuitInput: input,
		Metadata:     meta,
	}, nil
}
