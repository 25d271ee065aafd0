package orchestrator

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/circuit"
	"github.com/finproofs/receivable-zkp/internal/commitment"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

func validInput(t *testing.T) *circuit.Input {
	t.Helper()

	fields := []scheme.EncodedField{
		{Key: "currency_code", FieldID: 8, Value: big.NewInt(978), Visibility: scheme.Public},
		{Key: "invoice_number", FieldID: 12, Value: big.NewInt(42), Visibility: scheme.Private},
	}
	salt := big.NewInt(9001)
	com, err := commitment.Commit(fields, salt)
	require.NoError(t, err)

	in, err := circuit.PrepareInput(fields, salt, com)
	require.NoError(t, err)
	return in
}

// fakeArtifacts creates empty artifact files so the existence check passes
// without a real groth16 setup.
func fakeArtifacts(t *testing.T, dir, name string) {
	t.Helper()
	for _, ext := range []string{".r1cs", ".pk", ".vk"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+ext), nil, 0o644))
	}
}

// stubProver writes a shell script standing in for the zkp-prover binary.
func stubProver(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zkp-prover")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newTestOrchestrator(t *testing.T, binary, artifactsDir string, timeout time.Duration) *Orchestrator {
	t.Helper()
	return New(Config{
		ProverBinary: binary,
		ArtifactsDir: artifactsDir,
		WorkDir:      t.TempDir(),
		Timeout:      timeout,
	}, zap.NewNop())
}

func TestGenerateProofInputInvalid(t *testing.T) {
	o := newTestOrchestrator(t, "/bin/true", t.TempDir(), time.Second)

	in := validInput(t)
	in.PrivateValues = in.PrivateValues[:1]

	_, err := o.GenerateProof(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, ClassInputInvalid, ClassOf(err))
}

func TestGenerateProofArtifactMissing(t *testing.T) {
	o := newTestOrchestrator(t, "/bin/true", t.TempDir(), time.Second)

	_, err := o.GenerateProof(context.Background(), validInput(t))
	require.Error(t, err)
	assert.Equal(t, ClassArtifactMissing, ClassOf(err))
}

func TestGenerateProofExecutionFailed(t *testing.T) {
	in := validInput(t)
	artifactsDir := t.TempDir()
	fakeArtifacts(t, artifactsDir, in.Circuit)

	binary := stubProver(t, `echo "constraint system not satisfied" >&2; exit 1`)
	o := newTestOrchestrator(t, binary, artifactsDir, time.Second)

	_, err := o.GenerateProof(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, ClassExecutionFailed, ClassOf(err))
	assert.Contains(t, err.Error(), "constraint system not satisfied")
}

func TestGenerateProofTimedOut(t *testing.T) {
	in := validInput(t)
	artifactsDir := t.TempDir()
	fakeArtifacts(t, artifactsDir, in.Circuit)

	binary := stubProver(t, "sleep 10")
	o := newTestOrchestrator(t, binary, artifactsDir, 100*time.Millisecond)

	start := time.Now()
	_, err := o.GenerateProof(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, ClassTimedOut, ClassOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerateProofSuccess(t *testing.T) {
	in := validInput(t)
	artifactsDir := t.TempDir()
	fakeArtifacts(t, artifactsDir, in.Circuit)

	// The stub reads the -out directory from its arguments and emits the
	// two files a real run produces.
	binary := stubProver(t, `out="$9"
cat > "$out/proof.json" <<EOF
{"circuit":"`+in.Circuit+`","curve":"bn254","backend":"groth16","proof":"deadbeef"}
EOF
cat > "$out/public.json" <<EOF
["`+in.Commitment+`","8","978"]
EOF
`)
	o := newTestOrchestrator(t, binary, artifactsDir, 5*time.Second)

	result, err := o.GenerateProof(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Circuit, result.Circuit)
	assert.Equal(t, "deadbeef", result.Envelope.Proof)
	assert.Equal(t, []string{in.Commitment, "8", "978"}, result.PublicSignals)
	assert.Greater(t, result.Duration, time.Duration(0))
}

// Concurrent requests each get their own scratch dir; no run may see
// another run's output. The stub writes its out-dir name into the proof so
// cross-talk would show up as duplicate envelopes.
func TestGenerateProofConcurrent(t *testing.T) {
	in := validInput(t)
	artifactsDir := t.TempDir()
	fakeArtifacts(t, artifactsDir, in.Circuit)

	binary := stubProver(t, `out="$9"
cat > "$out/proof.json" <<EOF
{"circuit":"`+in.Circuit+`","curve":"bn254","backend":"groth16","proof":"$(basename "$out")"}
EOF
cat > "$out/public.json" <<EOF
["`+in.Commitment+`","8","978"]
EOF
`)
	o := newTestOrchestrator(t, binary, artifactsDir, 10*time.Second)

	const runs = 8
	results := make([]*Result, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := o.GenerateProof(context.Background(), validInput(t))
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, seen[r.Envelope.Proof], "two runs shared a scratch dir")
		seen[r.Envelope.Proof] = true
		assert.Equal(t, []string{in.Commitment, "8", "978"}, r.PublicSignals)
	}
}

func TestScratchDirCleanedUp(t *testing.T) {
	in := validInput(t)
	artifactsDir := t.TempDir()
	fakeArtifacts(t, artifactsDir, in.Circuit)

	workRoot := t.TempDir()
	binary := stubProver(t, "exit 1")
	o := New(Config{
		ProverBinary: binary,
		ArtifactsDir: artifactsDir,
		WorkDir:      workRoot,
		Timeout:      time.Second,
	}, zap.NewNop())

	_, err := o.GenerateProof(context.Background(), in)
	require.Error(t, err)

	entries, err := os.ReadDir(workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch dirs are removed on failure too")
}
