// Package commitment binds an encoded receivable dataset and a fresh random
// salt into a single BN254 field element using a two-level Poseidon2 hash.
//
// The two levels matter: each (fieldId, value) pair is hashed into a leaf
// first, and the ordered leaves plus the salt are hashed into the commitment.
// The disclosure circuit checks set membership against the leaves, so a
// disclosed pair does not have to sit at a fixed position in the private
// list. A single flat hash over all values would not support that.
package commitment

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"

	"github.com/finproofs/receivable-zkp/internal/scheme"
)

// Modulus is the BN254 scalar field order all committed values live in.
var Modulus = ecc.BN254.ScalarField()

// NewSalt draws a salt uniformly from [0, r) of the scalar field using the
// operating system's CSPRNG. Sampling inside the field keeps the value the
// engine hashes identical to the value the circuit receives; a raw 256-bit
// integer would be silently reduced mod r in-circuit and the proof would not
// verify. Callers must generate a fresh salt per commitment and are solely
// responsible for retaining it: the service never stores salts, and a lost
// salt makes the private fields permanently unprovable.
func NewSalt() (*big.Int, error) {
	salt, err := rand.Int(rand.Reader, Modulus)
	if err != nil {
		return nil, fmt.Errorf("failed to draw salt: %w", err)
	}
	return salt, nil
}

// Commit computes the two-level Poseidon2 commitment over the encoded fields
// and salt. Fields must be sorted by ascending field id with no duplicates;
// the validator emits them in exactly that order. Identical (ids, values,
// salt) always produce an identical commitment.
func Commit(fields []scheme.EncodedField, salt *big.Int) (*big.Int, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("cannot commit to an empty field set")
	}
	if salt == nil || salt.Sign() < 0 || salt.Cmp(Modulus) >= 0 {
		return nil, fmt.Errorf("salt is not a canonical field element")
	}

	leaves := make([]*big.Int, len(fields))
	var prev uint64
	for i, f := range fields {
		if i > 0 && f.FieldID <= prev {
			return nil, fmt.Errorf("fields not in ascending id order at %q (id %d)", f.Key, f.FieldID)
		}
		prev = f.FieldID
		if f.Value == nil || f.Value.Sign() < 0 || f.Value.Cmp(Modulus) >= 0 {
			return nil, fmt.Errorf("field %q value is not a canonical field element", f.Key)
		}
		leaves[i] = FieldLeaf(f.FieldID, f.Value)
	}

	return aggregate(leaves, salt), nil
}

// FieldLeaf hashes a single (fieldId, value) pair. Exported so tests and the
// circuit input preparer can cross-check the per-field level independently.
func FieldLeaf(fieldID uint64, value *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	h.Write(elementBytes(new(big.Int).SetUint64(fieldID)))
	h.Write(elementBytes(value))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func aggregate(leaves []*big.Int, salt *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, leaf := range leaves {
		h.Write(elementBytes(leaf))
	}
	h.Write(elementBytes(salt))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// elementBytes renders a field element as the 32-byte big-endian chunk the
// hasher consumes. Matches the layout the in-circuit hasher sees.
func elementBytes(v *big.Int) []byte {
	buf := make([]byte, 32)
	v.FillBytes(buf)
	return buf
}
