package scheme

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finproofs/receivable-zkp/internal/catalog"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	registry := DefaultRegistry(cat)
	require.Empty(t, registry.Validate())
	return NewValidator(registry)
}

// validStandardRequest builds a complete standard_receivable_v1 submission.
func validStandardRequest() Request {
	return Request{
		Scheme: "standard_receivable_v1",
		Fields: map[string]SubmittedField{
			"currency_code":    {Value: json.Number("978"), Visibility: Public},
			"due_date":         {Value: json.Number("1767225600"), Visibility: Public},
			"total_amount_due": {Value: "1210.000000", Visibility: Public},
			"invoice_id":       {Value: "f47ac10b-58cc-4372-a567-0e02b2c3d479", Visibility: Private},
			"debtor_id":        {Value: "9b2e7c70-24f1-4c39-9a1d-3f82a15c6b08", Visibility: Private},
			"creditor_id":      {Value: "1c5a9e34-6d2b-4f7e-8a90-5b3c7d1e2f46", Visibility: Private},
			"taxable_amount":   {Value: "1000.00", Visibility: Private},
			"tax_amount":       {Value: "210.00", Visibility: Private},
		},
	}
}

func TestValidateAcceptsStandardSubmission(t *testing.T) {
	v := newTestValidator(t)

	fields, err := v.Validate(validStandardRequest())
	require.NoError(t, err)
	assert.Len(t, fields, 8)

	// Canonical order: ascending field id, regardless of map iteration.
	for i := 1; i < len(fields); i++ {
		assert.Greater(t, fields[i].FieldID, fields[i-1].FieldID)
	}

	// Visibility carried through from the scheme.
	byKey := make(map[string]EncodedField)
	for _, f := range fields {
		byKey[f.Key] = f
	}
	assert.Equal(t, Public, byKey["currency_code"].Visibility)
	assert.Equal(t, Private, byKey["taxable_amount"].Visibility)
	assert.Equal(t, "1000000000", byKey["taxable_amount"].Value.String())
}

func TestValidateOptionalFieldsMayBeOmitted(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	// face_value and document_hash are optional and absent.
	fields, err := v.Validate(req)
	require.NoError(t, err)
	assert.Len(t, fields, 8)

	req.Fields["face_value"] = SubmittedField{Value: "1210.00", Visibility: Private}
	fields, err = v.Validate(req)
	require.NoError(t, err)
	assert.Len(t, fields, 9)
}

func TestValidateUnknownScheme(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	req.Scheme = "no_such_scheme"

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindUnknownScheme, verrs.Kind())
}

func TestValidateUnknownField(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	req.Fields["no_such_field"] = SubmittedField{Value: "1", Visibility: Private}
	req.Fields["another_bad_one"] = SubmittedField{Value: "2", Visibility: Private}

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindUnknownField, verrs.Kind())
	assert.Len(t, verrs, 2, "failures within a step are aggregated")
}

func TestValidateFieldNotInScheme(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	// In the catalog, but standard_receivable_v1 does not use it.
	req.Fields["debtor_rating"] = SubmittedField{Value: json.Number("3"), Visibility: Private}

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindFieldNotInScheme, verrs.Kind())
}

func TestValidateMissingRequired(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	delete(req.Fields, "tax_amount")
	delete(req.Fields, "debtor_id")

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindMissingRequired, verrs.Kind())
	assert.Len(t, verrs, 2)
}

func TestValidateVisibilityMismatch(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	// Attempting to hide a field the scheme declares public.
	req.Fields["currency_code"] = SubmittedField{Value: json.Number("978"), Visibility: Private}

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindVisibilityMismatch, verrs.Kind())
}

func TestValidateEncodingFailure(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	req.Fields["taxable_amount"] = SubmittedField{Value: "12.3456789", Visibility: Private}
	req.Fields["invoice_id"] = SubmittedField{Value: "not-a-uuid", Visibility: Private}

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindEncodingFailed, verrs.Kind())
	assert.Len(t, verrs, 2)
}

func TestValidateStopsAtFirstFailingStep(t *testing.T) {
	v := newTestValidator(t)

	// Unknown field AND missing required field: only the earlier step's
	// kind is reported.
	req := validStandardRequest()
	delete(req.Fields, "tax_amount")
	req.Fields["no_such_field"] = SubmittedField{Value: "1", Visibility: Private}

	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindUnknownField, verrs.Kind())
}

func TestValidateInsuredScheme(t *testing.T) {
	v := newTestValidator(t)

	req := validStandardRequest()
	req.Scheme = "insured_receivable_v1"

	// is_insured is required and public in the insured scheme.
	_, err := v.Validate(req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, KindMissingRequired, verrs.Kind())

	req.Fields["is_insured"] = SubmittedField{Value: true, Visibility: Public}
	fields, err := v.Validate(req)
	require.NoError(t, err)
	assert.Len(t, fields, 9)
}
