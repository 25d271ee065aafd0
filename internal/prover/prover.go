// Package prover compiles, sets up, proves, and verifies the disclosure
// circuit. It backs the zkp-prover binary, which the service drives as an
// external toolchain; compiled artifacts live on disk keyed by circuit name.
package prover

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/finproofs/receivable-zkp/internal/circuit"
)

// ProofEnvelope is the proof.json layout: the groth16 proof in its gnark
// binary encoding, hex wrapped, plus enough metadata to pick the right
// verifying key later. Consumers treat it as opaque.
type ProofEnvelope struct {
	Circuit string `json:"circuit"`
	Curve   string `json:"curve"`
	Backend string `json:"backend"`
	Proof   string `json:"proof"`
}

type compiledCircuit struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Store manages compiled circuit artifacts in a directory. Loading is cached
// and safe for concurrent use: proving keys are large and reading them once
// per process is enough.
type Store struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*compiledCircuit
}

// NewStore creates a store over the given artifact directory.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*compiledCircuit),
	}
}

// Paths returns the artifact file paths for a circuit name.
func (s *Store) Paths(name string) (ccsPath, pkPath, vkPath string) {
	return filepath.Join(s.dir, name+".r1cs"),
		filepath.Join(s.dir, name+".pk"),
		filepath.Join(s.dir, name+".vk")
}

// Exists reports whether all three compiled artifacts are present.
func (s *Store) Exists(name string) bool {
	for _, p := range s.paths(name) {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (s *Store) paths(name string) []string {
	a, b, c := s.Paths(name)
	return []string{a, b, c}
}

// Setup compiles the shaped circuit, runs the groth16 setup, and writes the
// constraint system, proving key, and verifying key to the artifact
// directory. This is a deployment-time operation, not a request-time one.
func (s *Store) Setup(numFields, numDisclosed int) (string, error) {
	name := circuit.Name(numFields, numDisclosed)

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.New(numFields, numDisclosed))
	if err != nil {
		return "", fmt.Errorf("failed to compile %s: %w", name, err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return "", fmt.Errorf("failed to set up keys for %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	ccsPath, pkPath, vkPath := s.Paths(name)
	if err := writeArtifact(ccsPath, ccs); err != nil {
		return "", err
	}
	if err := writeArtifact(pkPath, pk); err != nil {
		return "", err
	}
	if err := writeArtifact(vkPath, vk); err != nil {
		return "", err
	}

	return name, nil
}

// load reads (or returns the cached) compiled artifacts for a circuit name.
func (s *Store) load(name string) (*compiledCircuit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}

	ccsPath, pkPath, vkPath := s.Paths(name)

	ccs := groth16.NewCS(ecc.BN254)
	if err := readArtifact(ccsPath, ccs); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(pkPath, pk); err != nil {
		return nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(vkPath, vk); err != nil {
		return nil, err
	}

	compiled := &compiledCircuit{ccs: ccs, pk: pk, vk: vk}
	s.cache[name] = compiled
	return compiled, nil
}

// Prove generates a groth16 proof for the given input artifact and returns
// the proof envelope and the public signals (decimal strings, in witness
// order: commitment, disclosed ids, disclosed values).
func (s *Store) Prove(in *circuit.Input) (*ProofEnvelope, []string, error) {
	compiled, err := s.load(in.Circuit)
	if err != nil {
		return nil, nil, err
	}

	assignment, err := in.Assignment()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid circuit input: %w", err)
	}

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build witness: %w", err)
	}

	proof, err := groth16.Prove(compiled.ccs, compiled.pk, fullWitness)
	if err != nil {
		return nil, nil, fmt.Errorf("proof generation failed: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to serialize proof: %w", err)
	}

	publicSignals := publicSignalsOf(in)

	return &ProofEnvelope{
		Circuit: in.Circuit,
		Curve:   ecc.BN254.String(),
		Backend: "groth16",
		Proof:   hex.EncodeToString(buf.Bytes()),
	}, publicSignals, nil
}

// Verify checks a proof envelope against public signals.
func (s *Store) Verify(envelope *ProofEnvelope, publicSignals []string) error {
	compiled, err := s.load(envelope.Circuit)
	if err != nil {
		return err
	}

	raw, err := hex.DecodeString(envelope.Proof)
	if err != nil {
		return fmt.Errorf("malformed proof encoding: %w", err)
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to deserialize proof: %w", err)
	}

	assignment, err := publicAssignment(envelope.Circuit, publicSignals)
	if err != nil {
		return err
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to build public witness: %w", err)
	}

	if err := groth16.Verify(proof, compiled.vk, publicWitness); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// publicSignalsOf flattens the public inputs in witness order.
func publicSignalsOf(in *circuit.Input) []string {
	out := make([]string, 0, 1+2*len(in.DisclosedFieldIDs))
	out = append(out, in.Commitment)
	out = append(out, in.DisclosedFieldIDs...)
	out = append(out, in.DisclosedValues...)
	return out
}

// publicAssignment rebuilds a public-only witness assignment from flattened
// signals.
func publicAssignment(name string, signals []string) (*circuit.DisclosureCircuit, error) {
	numFields, numDisclosed, err := circuit.ParseName(name)
	if err != nil {
		return nil, err
	}
	if len(signals) != 1+2*numDisclosed {
		return nil, fmt.Errorf("expected %d public signals for %s, got %d", 1+2*numDisclosed, name, len(signals))
	}

	c := circuit.New(numFields, numDisclosed)
	values := make([]*big.Int, len(signals))
	for i, s := range signals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("public signal %q is not a decimal integer", s)
		}
		values[i] = v
	}

	c.Commitment = values[0]
	for j := 0; j < numDisclosed; j++ {
		c.DisclosedIDs[j] = values[1+j]
		c.DisclosedValues[j] = values[1+numDisclosed+j]
	}
	return c, nil
}

// WriteProofFiles writes proof.json and public.json into outDir.
func WriteProofFiles(outDir string, envelope *ProofEnvelope, publicSignals []string) (proofPath, publicPath string, err error) {
	proofPath = filepath.Join(outDir, "proof.json")
	publicPath = filepath.Join(outDir, "public.json")

	proofJSON, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	publicJSON, err := json.MarshalIndent(publicSignals, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public signals: %w", err)
	}

	if err := os.WriteFile(proofPath, proofJSON, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write proof file: %w", err)
	}
	if err := os.WriteFile(publicPath, publicJSON, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write public signals file: %w", err)
	}
	return proofPath, publicPath, nil
}

// ReadProofFiles loads proof.json and public.json.
func ReadProofFiles(proofPath, publicPath string) (*ProofEnvelope, []string, error) {
	proofJSON, err := os.ReadFile(proofPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read proof file: %w", err)
	}
	var envelope ProofEnvelope
	if err := json.Unmarshal(proofJSON, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to parse proof file: %w", err)
	}

	publicJSON, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public signals file: %w", err)
	}
	var signals []string
	if err := json.Unmarshal(publicJSON, &signals); err != nil {
		return nil, nil, fmt.Errorf("failed to parse public signals file: %w", err)
	}

	return &envelope, signals, nil
}

func writeArtifact(path string, src io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer f.Close()
	if _, err := src.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}

func readArtifact(path string, dst io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer f.Close()
	if _, err := dst.ReadFrom(f); err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return nil
}
