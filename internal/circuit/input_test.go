package circuit

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finproofs/receivable-zkp/internal/commitment"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

func preparedInput(t *testing.T) *Input {
	t.Helper()

	fields := circuitFields()
	salt := big.NewInt(424242)
	com, err := commitment.Commit(fields, salt)
	require.NoError(t, err)

	in, err := PrepareInput(fields, salt, com)
	require.NoError(t, err)
	return in
}

func TestPrepareInput(t *testing.T) {
	in := preparedInput(t)

	assert.Equal(t, "receivable_disclosure_4x2", in.Circuit)
	assert.Equal(t, []string{"8", "10", "12", "13"}, in.PrivateFieldIDs)
	assert.Equal(t, []string{"8", "10"}, in.DisclosedFieldIDs)
	assert.Equal(t, []string{"978", "1767225600"}, in.DisclosedValues)
	assert.Equal(t, "424242", in.Salt)
	require.NoError(t, in.Validate())
}

func TestPrepareInputRequiresPublicFields(t *testing.T) {
	fields := []scheme.EncodedField{
		{Key: "invoice_number", FieldID: 12, Value: big.NewInt(42), Visibility: scheme.Private},
	}
	salt := big.NewInt(1)
	com, err := commitment.Commit(fields, salt)
	require.NoError(t, err)

	_, err = PrepareInput(fields, salt, com)
	assert.Error(t, err, "a proof with no public pairs proves nothing")
}

func TestPrepareInputRequiresFields(t *testing.T) {
	_, err := PrepareInput(nil, big.NewInt(1), big.NewInt(2))
	assert.Error(t, err)
}

func TestInputValidateShapeMismatch(t *testing.T) {
	in := preparedInput(t)
	in.PrivateFieldIDs = in.PrivateFieldIDs[:2]
	assert.Error(t, in.Validate())

	in = preparedInput(t)
	in.DisclosedValues = append(in.DisclosedValues, "1")
	assert.Error(t, in.Validate())

	in = preparedInput(t)
	in.Salt = "not-a-number"
	assert.Error(t, in.Validate())

	in = preparedInput(t)
	in.Circuit = "receivable_disclosure_bogus"
	assert.Error(t, in.Validate())
}

func TestInputFileRoundTrip(t *testing.T) {
	in := preparedInput(t)
	path := filepath.Join(t.TempDir(), "input.json")

	require.NoError(t, in.WriteFile(path))

	loaded, err := ReadInputFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, loaded)
}

func TestInputAssignment(t *testing.T) {
	in := preparedInput(t)

	c, err := in.Assignment()
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumFields)
	assert.Equal(t, 2, c.NumDisclosed)
	assert.Equal(t, big.NewInt(424242), c.Salt)
	assert.Equal(t, big.NewInt(978), c.DisclosedValues[0])
}
