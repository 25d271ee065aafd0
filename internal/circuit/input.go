package circuit

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/finproofs/receivable-zkp/internal/scheme"
)

// Input is the signal layout handed to the proving toolchain. All integers
// are decimal strings for interchange safety: the artifact crosses a process
// boundary and decimal strings survive every JSON implementation unchanged.
type Input struct {
	Circuit           string   `json:"circuit"`
	PrivateFieldIDs   []string `json:"privateFieldIds"`
	PrivateValues     []string `json:"privateValues"`
	Salt              string   `json:"salt"`
	Commitment        string   `json:"commitment"`
	DisclosedFieldIDs []string `json:"disclosedFieldIds"`
	DisclosedValues   []string `json:"disclosedValues"`
}

// PrepareInput serializes a validated, committed dataset into the circuit's
// signal layout. Fields must be in the validator's canonical order; the
// disclosed subset is exactly the public fields, in the same order.
func PrepareInput(fields []scheme.EncodedField, salt, commitment *big.Int) (*Input, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to prepare")
	}

	in := &Input{
		Salt:       salt.String(),
		Commitment: commitment.String(),
	}
	for _, f := range fields {
		in.PrivateFieldIDs = append(in.PrivateFieldIDs, fmt.Sprintf("%d", f.FieldID))
		in.PrivateValues = append(in.PrivateValues, f.Value.String())
		if f.Visibility == scheme.Public {
			in.DisclosedFieldIDs = append(in.DisclosedFieldIDs, fmt.Sprintf("%d", f.FieldID))
			in.DisclosedValues = append(in.DisclosedValues, f.Value.String())
		}
	}
	if len(in.DisclosedFieldIDs) == 0 {
		return nil, fmt.Errorf("scheme disclosed no fields, proof would have no public pairs")
	}

	in.Circuit = Name(len(in.PrivateFieldIDs), len(in.DisclosedFieldIDs))
	return in, nil
}

// Validate checks the artifact's shape against its declared circuit name.
func (in *Input) Validate() error {
	numFields, numDisclosed, err := ParseName(in.Circuit)
	if err != nil {
		return err
	}
	if len(in.PrivateFieldIDs) != numFields || len(in.PrivateValues) != numFields {
		return fmt.Errorf("private signal count does not match circuit %s", in.Circuit)
	}
	if len(in.DisclosedFieldIDs) != numDisclosed || len(in.DisclosedValues) != numDisclosed {
		return fmt.Errorf("disclosed signal count does not match circuit %s", in.Circuit)
	}
	if _, err := parseDecimal(in.Salt); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	if _, err := parseDecimal(in.Commitment); err != nil {
		return fmt.Errorf("commitment: %w", err)
	}
	for _, group := range [][]string{in.PrivateFieldIDs, in.PrivateValues, in.DisclosedFieldIDs, in.DisclosedValues} {
		for _, s := range group {
			if _, err := parseDecimal(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Assignment builds the witness assignment for the proving backend.
func (in *Input) Assignment() (*DisclosureCircuit, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	numFields, numDisclosed, _ := ParseName(in.Circuit)
	c := New(numFields, numDisclosed)

	for i := range in.PrivateFieldIDs {
		id, _ := parseDecimal(in.PrivateFieldIDs[i])
		value, _ := parseDecimal(in.PrivateValues[i])
		c.FieldIDs[i] = id
		c.Values[i] = value
	}
	for j := range in.DisclosedFieldIDs {
		id, _ := parseDecimal(in.DisclosedFieldIDs[j])
		value, _ := parseDecimal(in.DisclosedValues[j])
		c.DisclosedIDs[j] = id
		c.DisclosedValues[j] = value
	}

	salt, _ := parseDecimal(in.Salt)
	commitment, _ := parseDecimal(in.Commitment)
	c.Salt = salt
	c.Commitment = commitment

	return c, nil
}

// WriteFile persists the artifact with owner-only permissions: the private
// values and salt pass through it.
func (in *Input) WriteFile(path string) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal circuit input: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write circuit input: %w", err)
	}
	return nil
}

// ReadInputFile loads and shape-checks an input artifact.
func ReadInputFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read circuit input: %w", err)
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse circuit input: %w", err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

func parseDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative decimal integer", s)
	}
	return v, nil
}
