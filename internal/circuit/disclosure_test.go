package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finproofs/receivable-zkp/internal/commitment"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

func TestNameRoundTrip(t *testing.T) {
	name := Name(10, 3)
	assert.Equal(t, "receivable_disclosure_10x3", name)

	n, d, err := ParseName(name)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 3, d)
}

func TestParseNameRejectsMalformed(t *testing.T) {
	for _, name := range []string{
		"receivable_disclosure_10",
		"receivable_disclosure_0x1",
		"receivable_disclosure_3x5", // more disclosed than fields
		"other_circuit_3x1",
		"",
	} {
		_, _, err := ParseName(name)
		assert.Error(t, err, "name %q", name)
	}
}

// buildAssignment commits to the given fields off-circuit and returns a
// witness disclosing the private positions listed in disclose, in order.
func buildAssignment(t *testing.T, fields []scheme.EncodedField, salt *big.Int, disclose []int) *DisclosureCircuit {
	t.Helper()

	com, err := commitment.Commit(fields, salt)
	require.NoError(t, err)

	c := New(len(fields), len(disclose))
	for i, f := range fields {
		c.FieldIDs[i] = new(big.Int).SetUint64(f.FieldID)
		c.Values[i] = f.Value
	}
	for j, idx := range disclose {
		c.DisclosedIDs[j] = new(big.Int).SetUint64(fields[idx].FieldID)
		c.DisclosedValues[j] = fields[idx].Value
	}
	c.Salt = salt
	c.Commitment = com
	return c
}

func circuitFields() []scheme.EncodedField {
	return []scheme.EncodedField{
		{Key: "currency_code", FieldID: 8, Value: big.NewInt(978), Visibility: scheme.Public},
		{Key: "due_date", FieldID: 10, Value: big.NewInt(1767225600), Visibility: scheme.Public},
		{Key: "invoice_number", FieldID: 12, Value: big.NewInt(42), Visibility: scheme.Private},
		{Key: "is_insured", FieldID: 13, Value: big.NewInt(1), Visibility: scheme.Private},
	}
}

func TestDisclosureCircuitValid(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()
	salt := big.NewInt(987654321)

	witness := buildAssignment(t, fields, salt, []int{0, 1})

	assertC.CheckCircuit(
		New(len(fields), 2),
		test.WithValidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}

func TestDisclosureOrderIndependent(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()
	salt := big.NewInt(555)

	// Disclosed pairs reference private positions 3 and 0, in that order:
	// membership must not depend on where a pair sits in the private list.
	witness := buildAssignment(t, fields, salt, []int{3, 0})

	assertC.CheckCircuit(
		New(len(fields), 2),
		test.WithValidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}

func TestDisclosureCircuitRejectsFalseDisclosure(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()
	salt := big.NewInt(777)

	// Claim a different currency than the one committed to.
	witness := buildAssignment(t, fields, salt, []int{0, 1})
	witness.DisclosedValues[0] = big.NewInt(840)

	assertC.CheckCircuit(
		New(len(fields), 2),
		test.WithInvalidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}

func TestDisclosureCircuitRejectsForeignID(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()
	salt := big.NewInt(778)

	// Disclose a field id that does not occur in the private list: the
	// exactly-one match constraint must fail.
	witness := buildAssignment(t, fields, salt, []int{0, 1})
	witness.DisclosedIDs[1] = big.NewInt(99)

	assertC.CheckCircuit(
		New(len(fields), 2),
		test.WithInvalidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}

func TestDisclosureCircuitRejectsWrongCommitment(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()
	salt := big.NewInt(779)

	witness := buildAssignment(t, fields, salt, []int{0})
	witness.Commitment = big.NewInt(1)

	assertC.CheckCircuit(
		New(len(fields), 1),
		test.WithInvalidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}

func TestDisclosureCircuitRejectsWrongSalt(t *testing.T) {
	assertC := test.NewAssert(t)

	fields := circuitFields()

	witness := buildAssignment(t, fields, big.NewInt(1000), []int{0})
	witness.Salt = big.NewInt(1001)

	assertC.CheckCircuit(
		New(len(fields), 1),
		test.WithInvalidAssignment(witness),
		test.WithCurves(ecc.BN254),
	)
}
