package catalog

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 16, cat.Len())

	spec, ok := cat.Lookup("face_value")
	require.True(t, ok)
	assert.Equal(t, uint64(4), spec.FieldID)
	assert.Equal(t, TypeFixedPoint6, spec.Type)
	assert.Equal(t, int64(DefaultFixedPointScale), spec.Scale)

	byID, ok := cat.LookupID(16)
	require.True(t, ok)
	assert.Equal(t, "document_hash", byID.Key)
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{
			name: "duplicate key",
			specs: []FieldSpec{
				{Key: "a", FieldID: 1, Type: TypeUnsigned64},
				{Key: "a", FieldID: 2, Type: TypeUnsigned64},
			},
		},
		{
			name: "duplicate field id",
			specs: []FieldSpec{
				{Key: "a", FieldID: 1, Type: TypeUnsigned64},
				{Key: "b", FieldID: 1, Type: TypeUnsigned64},
			},
		},
		{
			name:  "zero field id",
			specs: []FieldSpec{{Key: "a", FieldID: 0, Type: TypeUnsigned64}},
		},
		{
			name:  "unknown type",
			specs: []FieldSpec{{Key: "a", FieldID: 1, Type: "complex128"}},
		},
		{
			name:  "empty key",
			specs: []FieldSpec{{Key: "", FieldID: 1, Type: TypeUnsigned64}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.specs)
			assert.Error(t, err)
		})
	}
}

func TestEncodeFixedPoint(t *testing.T) {
	spec := FieldSpec{Key: "face_value", FieldID: 4, Type: TypeFixedPoint6, Scale: DefaultFixedPointScale}

	tests := []struct {
		raw  interface{}
		want int64
	}{
		{"123.456789", 123456789},
		{"10", 10_000_000},
		{"0.5", 500_000},
		{".25", 250_000},
		{"0.000001", 1},
		{json.Number("99.99"), 99_990_000},
		{int64(7), 7_000_000},
	}
	for _, tt := range tests {
		got, err := Encode(spec, tt.raw)
		require.NoError(t, err, "raw %v", tt.raw)
		assert.Equal(t, big.NewInt(tt.want), got, "raw %v", tt.raw)
	}
}

func TestEncodeFixedPointRejects(t *testing.T) {
	spec := FieldSpec{Key: "face_value", FieldID: 4, Type: TypeFixedPoint6, Scale: DefaultFixedPointScale}

	rejected := []interface{}{
		float64(123.456789), // binary float cannot represent amounts exactly
		float32(1.5),
		"-10.00",
		"1.2345678", // seven fractional digits
		"1e6",
		"",
		"abc",
		true,
	}
	for _, raw := range rejected {
		_, err := Encode(spec, raw)
		assert.Error(t, err, "raw %v", raw)
		var encErr *EncodingError
		assert.ErrorAs(t, err, &encErr, "raw %v", raw)
	}
}

func TestFixedPointRoundTrip(t *testing.T) {
	spec := FieldSpec{Key: "face_value", FieldID: 4, Type: TypeFixedPoint6, Scale: DefaultFixedPointScale}

	el, err := Encode(spec, "123.456789")
	require.NoError(t, err)
	s, err := Decode(spec, el)
	require.NoError(t, err)
	assert.Equal(t, "123.456789", s)

	el, err = Encode(spec, "10")
	require.NoError(t, err)
	s, err = Decode(spec, el)
	require.NoError(t, err)
	assert.Equal(t, "10.000000", s)
}

func TestEncodeUUID(t *testing.T) {
	spec := FieldSpec{Key: "invoice_id", FieldID: 1, Type: TypeUUID}

	const canonical = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	el, err := Encode(spec, canonical)
	require.NoError(t, err)

	s, err := Decode(spec, el)
	require.NoError(t, err)
	assert.Equal(t, canonical, s)

	_, err = Encode(spec, "F47AC10B-58CC-4372-A567-0E02B2C3D479")
	assert.Error(t, err, "upper-case form is not canonical")

	_, err = Encode(spec, "d9428888-122b-11e1-b85c-61cd3cbb3210")
	assert.Error(t, err, "version 1 uuid rejected")

	_, err = Encode(spec, "not-a-uuid")
	assert.Error(t, err)

	_, err = Encode(spec, 42)
	assert.Error(t, err)
}

func TestEncodeBytes32(t *testing.T) {
	spec := FieldSpec{Key: "document_hash", FieldID: 16, Type: TypeFixedBytes32}

	el, err := Encode(spec, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0xdeadbeef), el)

	// 32 bytes of 0xff exceeds the ~254-bit scalar field
	_, err = Encode(spec, "0x"+strings.Repeat("ff", 32))
	assert.Error(t, err)

	_, err = Encode(spec, "0xzz")
	assert.Error(t, err)

	_, err = Encode(spec, "")
	assert.Error(t, err)
}

func TestEncodeBoolean(t *testing.T) {
	spec := FieldSpec{Key: "is_insured", FieldID: 13, Type: TypeBoolean}

	one, err := Encode(spec, true)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), one)

	zero, err := Encode(spec, false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), zero)

	one, err = Encode(spec, json.Number("1"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), one)

	_, err = Encode(spec, json.Number("2"))
	assert.Error(t, err)
}

func TestEncodeUnsigned(t *testing.T) {
	spec := FieldSpec{Key: "invoice_number", FieldID: 12, Type: TypeUnsigned64}

	el, err := Encode(spec, json.Number("18446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).SetUint64(^uint64(0)), el)

	_, err = Encode(spec, json.Number("18446744073709551616"))
	assert.Error(t, err, "2^64 exceeds the 64-bit range")

	_, err = Encode(spec, json.Number("-1"))
	assert.Error(t, err)

	_, err = Encode(spec, float64(42))
	assert.Error(t, err, "float64 rejected even when integral")
}

func TestEncodeTimestamp(t *testing.T) {
	spec := FieldSpec{Key: "due_date", FieldID: 10, Type: TypeTimestamp}

	el, err := Encode(spec, json.Number("1735689600"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1735689600), el)
}
