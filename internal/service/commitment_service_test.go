package service

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/catalog"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

func newTestCommitmentService(t *testing.T) *CommitmentService {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	registry := scheme.DefaultRegistry(cat)
	require.Empty(t, registry.Validate())
	return NewCommitmentService(scheme.NewValidator(registry), zap.NewNop())
}

func testRequest() scheme.Request {
	return scheme.Request{
		Scheme: "standard_receivable_v1",
		Fields: map[string]scheme.SubmittedField{
			"currency_code":    {Value: json.Number("978"), Visibility: scheme.Public},
			"due_date":         {Value: json.Number("1767225600"), Visibility: scheme.Public},
			"total_amount_due": {Value: "1210.00", Visibility: scheme.Public},
			"invoice_id":       {Value: "f47ac10b-58cc-4372-a567-0e02b2c3d479", Visibility: scheme.Private},
			"debtor_id":        {Value: "9b2e7c70-24f1-4c39-9a1d-3f82a15c6b08", Visibility: scheme.Private},
			"creditor_id":      {Value: "1c5a9e34-6d2b-4f7e-8a90-5b3c7d1e2f46", Visibility: scheme.Private},
			"taxable_amount":   {Value: "1000.00", Visibility: scheme.Private},
			"tax_amount":       {Value: "210.00", Visibility: scheme.Private},
		},
	}
}

func TestCommit(t *testing.T) {
	svc := newTestCommitmentService(t)

	result, err := svc.Commit(testRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, result.Commitment)
	assert.NotEmpty(t, result.Salt)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, 8, result.Metadata.TotalFields)
	assert.Equal(t, 3, result.Metadata.PublicFields)
	assert.Equal(t, "receivable_disclosure_8x3", result.CircuitInput.Circuit)
	assert.Equal(t, result.Commitment, result.CircuitInput.Commitment)
	assert.Equal(t, result.Salt, result.CircuitInput.Salt)
}

// The publicFields map carries submitted-form values for public fields only;
// nothing private leaks into it.
func TestCommitPublicFieldsMap(t *testing.T) {
	svc := newTestCommitmentService(t)

	result, err := svc.Commit(testRequest())
	require.NoError(t, err)

	require.Len(t, result.PublicFields, 3)
	assert.Equal(t, "978", result.PublicFields["currency_code"])
	assert.Equal(t, "1767225600", result.PublicFields["due_date"])
	assert.Equal(t, "1210.000000", result.PublicFields["total_amount_due"])

	_, leaked := result.PublicFields["invoice_id"]
	assert.False(t, leaked, "private fields must not appear in publicFields")
	_, leaked = result.PublicFields["taxable_amount"]
	assert.False(t, leaked)
}

func TestCommitValidationErrorsPassThrough(t *testing.T) {
	svc := newTestCommitmentService(t)

	req := testRequest()
	delete(req.Fields, "tax_amount")

	_, err := svc.Commit(req)
	var verrs scheme.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, scheme.KindMissingRequired, verrs.Kind())
}

// Identical submissions must never share a salt or a commitment: every call
// draws fresh randomness. Also serves as the race check for the shared
// validator and registry under concurrent load.
func TestCommitConcurrentSubmissionsAreIndependent(t *testing.T) {
	svc := newTestCommitmentService(t)

	const workers = 16
	results := make([]*CommitmentResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Commit(testRequest())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	salts := make(map[string]bool)
	commitments := make(map[string]bool)
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, salts[r.Salt], "salt reused across requests")
		assert.False(t, commitments[r.Commitment], "commitment collision")
		salts[r.Salt] = true
		commitments[r.Commitment] = true
	}
}
