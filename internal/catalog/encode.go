package catalog

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/google/uuid"
)

// fieldModulus is the BN254 scalar field order. Every encoded value must be
// strictly below it; a 128-bit uuid is always safe, but a caller-supplied
// 32-byte hex value can exceed it and must be rejected.
var fieldModulus = ecc.BN254.ScalarField()

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// EncodingError reports a raw value whose shape or format does not match the
// field's declared type. It is caller-correctable and is surfaced through the
// request validator.
type EncodingError struct {
	Key    string
	Type   FieldType
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("field %q (%s): %s", e.Key, e.Type, e.Reason)
}

func encodingErr(spec FieldSpec, format string, args ...interface{}) error {
	return &EncodingError{Key: spec.Key, Type: spec.Type, Reason: fmt.Sprintf(format, args...)}
}

// Encode converts a raw request value into a field element according to the
// spec's type. Raw values arrive from JSON decoded with UseNumber, so numbers
// are json.Number, never float64; a float64 is rejected outright because the
// binary representation cannot round-trip monetary amounts exactly.
func Encode(spec FieldSpec, raw interface{}) (*big.Int, error) {
	switch spec.Type {
	case TypeUnsigned64, TypeEnumCode, TypeTimestamp:
		return encodeUnsigned(spec, raw)
	case TypeBoolean:
		return encodeBoolean(spec, raw)
	case TypeFixedPoint6:
		return encodeFixedPoint(spec, raw)
	case TypeUUID:
		return encodeUUID(spec, raw)
	case TypeFixedBytes32:
		return encodeBytes32(spec, raw)
	default:
		return nil, encodingErr(spec, "no encoder for type")
	}
}

// Decode is the inverse of Encode: it renders a field element back into the
// canonical string representation for the field's type. Used by introspection
// and round-trip tests.
func Decode(spec FieldSpec, el *big.Int) (string, error) {
	if el == nil || el.Sign() < 0 {
		return "", encodingErr(spec, "nil or negative field element")
	}

	switch spec.Type {
	case TypeUnsigned64, TypeEnumCode, TypeTimestamp, TypeBoolean:
		return el.String(), nil

	case TypeFixedPoint6:
		scale := big.NewInt(spec.Scale)
		whole, frac := new(big.Int).DivMod(el, scale, new(big.Int))
		return fmt.Sprintf("%s.%0*d", whole.String(), fixedPointDigits(spec.Scale), frac), nil

	case TypeUUID:
		buf := make([]byte, 16)
		el.FillBytes(buf)
		u, err := uuid.FromBytes(buf)
		if err != nil {
			return "", encodingErr(spec, "field element is not a uuid: %v", err)
		}
		return u.String(), nil

	case TypeFixedBytes32:
		buf := make([]byte, 32)
		el.FillBytes(buf)
		return fmt.Sprintf("0x%x", buf), nil

	default:
		return "", encodingErr(spec, "no decoder for type")
	}
}

func encodeUnsigned(spec FieldSpec, raw interface{}) (*big.Int, error) {
	v, err := rawToInt(spec, raw)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, encodingErr(spec, "negative value %s not allowed", v)
	}
	if v.Cmp(maxUint64) > 0 {
		return nil, encodingErr(spec, "value %s exceeds 64-bit range", v)
	}
	return v, nil
}

func encodeBoolean(spec FieldSpec, raw interface{}) (*big.Int, error) {
	switch b := raw.(type) {
	case bool:
		if b {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	default:
		v, err := rawToInt(spec, raw)
		if err != nil {
			return nil, err
		}
		if !v.IsInt64() || (v.Int64() != 0 && v.Int64() != 1) {
			return nil, encodingErr(spec, "boolean must be 0 or 1, got %s", v)
		}
		return v, nil
	}
}

// encodeFixedPoint converts an exact decimal string into an integer scaled by
// spec.Scale. The fractional part is zero-padded to the scale's digit count;
// more fractional digits than the scale can hold are rejected rather than
// rounded. Floating-point input is rejected: the old float path silently lost
// precision on monetary amounts.
func encodeFixedPoint(spec FieldSpec, raw interface{}) (*big.Int, error) {
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case json.Number:
		text = v.String()
	case float64, float32:
		return nil, encodingErr(spec, "floating-point input not accepted, submit a decimal string")
	case int, int64, uint64:
		text = fmt.Sprintf("%d", v)
	default:
		return nil, encodingErr(spec, "expected decimal string, got %T", raw)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, encodingErr(spec, "empty amount")
	}
	if strings.HasPrefix(text, "-") {
		return nil, encodingErr(spec, "negative amount %q not allowed", text)
	}
	if strings.ContainsAny(text, "eE") {
		return nil, encodingErr(spec, "exponent notation not accepted in amount %q", text)
	}

	digits := fixedPointDigits(spec.Scale)
	whole, frac := text, ""
	if i := strings.IndexByte(text, '.'); i >= 0 {
		whole, frac = text[:i], text[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > digits {
		return nil, encodingErr(spec, "amount %q has more than %d fractional digits", text, digits)
	}
	frac += strings.Repeat("0", digits-len(frac))

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, encodingErr(spec, "malformed amount %q", text)
	}
	fracInt := big.NewInt(0)
	if frac != "" {
		if fracInt, ok = new(big.Int).SetString(frac, 10); !ok {
			return nil, encodingErr(spec, "malformed amount %q", text)
		}
	}

	out := new(big.Int).Mul(wholeInt, big.NewInt(spec.Scale))
	out.Add(out, fracInt)
	if out.Cmp(fieldModulus) >= 0 {
		return nil, encodingErr(spec, "scaled amount exceeds field modulus")
	}
	return out, nil
}

func encodeUUID(spec FieldSpec, raw interface{}) (*big.Int, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, encodingErr(spec, "expected uuid string, got %T", raw)
	}
	// Only the canonical 36-character hyphenated form is accepted; the braced
	// and urn: forms uuid.Parse tolerates are not part of the contract.
	if len(s) != 36 || strings.ToLower(s) != s {
		return nil, encodingErr(spec, "uuid %q is not in canonical lower-case form", s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, encodingErr(spec, "malformed uuid %q: %v", s, err)
	}
	if u.Version() != 4 {
		return nil, encodingErr(spec, "uuid %q is version %d, expected version 4", s, u.Version())
	}
	// 128-bit value, always below the field modulus.
	return new(big.Int).SetBytes(u[:]), nil
}

func encodeBytes32(spec FieldSpec, raw interface{}) (*big.Int, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, encodingErr(spec, "expected hex string, got %T", raw)
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" || len(s) > 64 {
		return nil, encodingErr(spec, "hex value must be 1-32 bytes")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, encodingErr(spec, "malformed hex value %q", s)
	}
	// A 32-byte value can exceed the ~254-bit scalar field, so unlike the
	// 128-bit uuid encoding this path must check the modulus explicitly.
	if v.Cmp(fieldModulus) >= 0 {
		return nil, encodingErr(spec, "value exceeds the scalar field modulus")
	}
	return v, nil
}

// rawToInt accepts integers, numeric strings, and pre-encoded big integers.
func rawToInt(spec FieldSpec, raw interface{}) (*big.Int, error) {
	switch v := raw.(type) {
	case json.Number:
		out, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, encodingErr(spec, "expected integer, got %q", v.String())
		}
		return out, nil
	case string:
		out, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok {
			return nil, encodingErr(spec, "expected numeric string, got %q", v)
		}
		return out, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case *big.Int:
		return new(big.Int).Set(v), nil
	case float64, float32:
		return nil, encodingErr(spec, "floating-point input not accepted for integer field")
	default:
		return nil, encodingErr(spec, "unsupported value type %T", raw)
	}
}

func fixedPointDigits(scale int64) int {
	digits := 0
	for scale > 1 {
		scale /= 10
		digits++
	}
	return digits
}
