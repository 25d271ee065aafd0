// Package circuit defines the zero-knowledge constraint system that proves a
// commitment is consistent with a hidden receivable dataset and that every
// disclosed (fieldId, value) pair truly occurs somewhere in it.
package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/poseidon2"
)

// NamePrefix is the circuit family name. Compiled artifacts are keyed by
// shape because the constraint count depends on the number of private and
// disclosed signals.
const NamePrefix = "receivable_disclosure"

// Name returns the shape-scoped circuit name, e.g. receivable_disclosure_10x3.
func Name(numFields, numDisclosed int) string {
	return fmt.Sprintf("%s_%dx%d", NamePrefix, numFields, numDisclosed)
}

// ParseName recovers the shape from a circuit name produced by Name.
func ParseName(name string) (numFields, numDisclosed int, err error) {
	if _, err = fmt.Sscanf(name, NamePrefix+"_%dx%d", &numFields, &numDisclosed); err != nil {
		return 0, 0, fmt.Errorf("malformed circuit name %q: %w", name, err)
	}
	if numFields < 1 || numDisclosed < 1 || numDisclosed > numFields {
		return 0, 0, fmt.Errorf("circuit name %q has invalid shape %dx%d", name, numFields, numDisclosed)
	}
	return numFields, numDisclosed, nil
}

// DisclosureCircuit proves two properties about a private field list:
//
//  1. Commitment consistency: the two-level Poseidon2 hash of the private
//     (fieldId, value) pairs and the salt equals the public commitment.
//  2. Disclosure membership: every public (fieldId, value) pair occurs at
//     some position of the private list. The constraint is existence-style
//     and order-independent; it makes no assumption about where in the list
//     a disclosed field sits.
type DisclosureCircuit struct {
	// Private witness: the full encoded dataset and the salt.
	FieldIDs []frontend.Variable `gnark:",secret"`
	Values   []frontend.Variable `gnark:",secret"`
	Salt     frontend.Variable   `gnark:",secret"`

	// Public inputs.
	Commitment      frontend.Variable   `gnark:",public"`
	DisclosedIDs    []frontend.Variable `gnark:",public"`
	DisclosedValues []frontend.Variable `gnark:",public"`

	// Shape parameters, fixed at compile time.
	NumFields    int `gnark:"-"`
	NumDisclosed int `gnark:"-"`
}

// New allocates a circuit template for the given shape, ready for
// frontend.Compile or for use as a witness assignment skeleton.
func New(numFields, numDisclosed int) *DisclosureCircuit {
	return &DisclosureCircuit{
		FieldIDs:        make([]frontend.Variable, numFields),
		Values:          make([]frontend.Variable, numFields),
		DisclosedIDs:    make([]frontend.Variable, numDisclosed),
		DisclosedValues: make([]frontend.Variable, numDisclosed),
		NumFields:       numFields,
		NumDisclosed:    numDisclosed,
	}
}

// Define declares the constraints. There is no branching inside a circuit,
// so membership is expressed algebraically per (disclosed pair, private
// position) combination:
//
//   - ind = 1 exactly when the field identifiers match, else 0
//   - ind * (privateValue - disclosedValue) summed over all positions must
//     be zero: wherever identifiers match, the values match too
//   - ind summed over all positions must be exactly one: a matching
//     position exists, and field identifiers are unique so it is unique
func (c *DisclosureCircuit) Define(api frontend.API) error {
	// Level one: per-field leaves. A fresh hasher per leaf, the hasher is
	// stateful.
	leaves := make([]frontend.Variable, c.NumFields)
	for i := 0; i < c.NumFields; i++ {
		h, err := poseidon2.New(api)
		if err != nil {
			return err
		}
		h.Write(c.FieldIDs[i], c.Values[i])
		leaves[i] = h.Sum()
	}

	// Level two: aggregate over the ordered leaves with the salt last.
	agg, err := poseidon2.New(api)
	if err != nil {
		return err
	}
	agg.Write(leaves...)
	agg.Write(c.Salt)
	api.AssertIsEqual(agg.Sum(), c.Commitment)

	// Disclosure membership.
	for j := 0; j < c.NumDisclosed; j++ {
		mismatch := frontend.Variable(0)
		matches := frontend.Variable(0)
		for i := 0; i < c.NumFields; i++ {
			ind := api.IsZero(api.Sub(c.FieldIDs[i], c.DisclosedIDs[j]))
			diff := api.Sub(c.Values[i], c.DisclosedValues[j])
			mismatch = api.Add(mismatch, api.Mul(ind, diff))
			matches = api.Add(matches, ind)
		}
		api.AssertIsEqual(mismatch, 0)
		api.AssertIsEqual(matches, 1)
	}

	return nil
}
