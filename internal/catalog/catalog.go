// Package catalog defines the typed field catalog for receivable datasets.
// Every field a scheme can reference is declared here with a stable numeric
// identifier; the identifier is what the constraint circuit sees in place of
// the human key and must never change once published.
package catalog

import (
	"fmt"
	"sort"
)

// FieldType is the semantic type of a catalog field. It selects the
// value-to-field-element encoder in encode.go.
type FieldType string

const (
	TypeUnsigned64   FieldType = "unsigned64"
	TypeBoolean      FieldType = "boolean"
	TypeFixedPoint6  FieldType = "fixedPoint6"
	TypeTimestamp    FieldType = "timestamp"
	TypeFixedBytes32 FieldType = "fixedBytes32"
	TypeEnumCode     FieldType = "enumCode"
	TypeUUID         FieldType = "uuid"
)

// DefaultFixedPointScale is the scale applied to fixedPoint6 amounts:
// six decimal digits of precision, stored as value * 1e6.
const DefaultFixedPointScale = 1_000_000

// FieldSpec describes one field of the catalog.
type FieldSpec struct {
	Key         string    `json:"key"`
	FieldID     uint64    `json:"field_id"`
	Type        FieldType `json:"type"`
	Scale       int64     `json:"scale,omitempty"` // fixedPoint6 only
	Description string    `json:"description,omitempty"`
}

// Catalog is the immutable process-wide field registry. It is built once at
// startup and is safe for unsynchronized concurrent reads afterwards.
type Catalog struct {
	byKey map[string]FieldSpec
	byID  map[uint64]FieldSpec
	keys  []string
}

// New builds a catalog from the given specs, rejecting duplicate keys,
// duplicate field identifiers, unknown types, and zero identifiers.
func New(specs []FieldSpec) (*Catalog, error) {
	c := &Catalog{
		byKey: make(map[string]FieldSpec, len(specs)),
		byID:  make(map[uint64]FieldSpec, len(specs)),
		keys:  make([]string, 0, len(specs)),
	}

	for _, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("catalog: field with id %d has empty key", spec.FieldID)
		}
		if spec.FieldID == 0 {
			return nil, fmt.Errorf("catalog: field %q has zero field id", spec.Key)
		}
		if !validType(spec.Type) {
			return nil, fmt.Errorf("catalog: field %q has unknown type %q", spec.Key, spec.Type)
		}
		if _, dup := c.byKey[spec.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate field key %q", spec.Key)
		}
		if prev, dup := c.byID[spec.FieldID]; dup {
			return nil, fmt.Errorf("catalog: field id %d used by both %q and %q", spec.FieldID, prev.Key, spec.Key)
		}
		if spec.Type == TypeFixedPoint6 && spec.Scale == 0 {
			spec.Scale = DefaultFixedPointScale
		}

		c.byKey[spec.Key] = spec
		c.byID[spec.FieldID] = spec
		c.keys = append(c.keys, spec.Key)
	}

	sort.Strings(c.keys)
	return c, nil
}

// Lookup returns the spec for a field key.
func (c *Catalog) Lookup(key string) (FieldSpec, bool) {
	spec, ok := c.byKey[key]
	return spec, ok
}

// LookupID returns the spec for a numeric field identifier.
func (c *Catalog) LookupID(id uint64) (FieldSpec, bool) {
	spec, ok := c.byID[id]
	return spec, ok
}

// Keys returns all field keys in sorted order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Specs returns all field specs sorted by key.
func (c *Catalog) Specs() []FieldSpec {
	out := make([]FieldSpec, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.byKey[k])
	}
	return out
}

// Len returns the number of declared fields.
func (c *Catalog) Len() int {
	return len(c.byKey)
}

func validType(t FieldType) bool {
	switch t {
	case TypeUnsigned64, TypeBoolean, TypeFixedPoint6, TypeTimestamp,
		TypeFixedBytes32, TypeEnumCode, TypeUUID:
		return true
	}
	return false
}

// Default returns the built-in receivable field catalog.
//
// Field identifiers are part of the public protocol: clients and deployed
// circuits both depend on them, so entries may be added but existing ids must
// never be renumbered.
func Default() (*Catalog, error) {
	return New([]FieldSpec{
		{Key: "invoice_id", FieldID: 1, Type: TypeUUID, Description: "Platform identifier of the underlying invoice"},
		{Key: "debtor_id", FieldID: 2, Type: TypeUUID, Description: "Company identifier of the payer"},
		{Key: "creditor_id", FieldID: 3, Type: TypeUUID, Description: "Company identifier of the payee"},
		{Key: "face_value", FieldID: 4, Type: TypeFixedPoint6, Description: "Nominal value of the receivable"},
		{Key: "taxable_amount", FieldID: 5, Type: TypeFixedPoint6, Description: "Amount subject to tax"},
		{Key: "tax_amount", FieldID: 6, Type: TypeFixedPoint6, Description: "Tax portion of the total"},
		{Key: "total_amount_due", FieldID: 7, Type: TypeFixedPoint6, Description: "Total amount owed at maturity"},
		{Key: "currency_code", FieldID: 8, Type: TypeEnumCode, Description: "ISO 4217 numeric currency code"},
		{Key: "issue_date", FieldID: 9, Type: TypeTimestamp, Description: "Invoice issue date, unix seconds"},
		{Key: "due_date", FieldID: 10, Type: TypeTimestamp, Description: "Payment due date, unix seconds"},
		{Key: "maturity_payment", FieldID: 11, Type: TypeFixedPoint6, Description: "Payment expected at maturity"},
		{Key: "invoice_number", FieldID: 12, Type: TypeUnsigned64, Description: "Issuer-local invoice sequence number"},
		{Key: "is_insured", FieldID: 13, Type: TypeBoolean, Description: "Whether the receivable carries credit insurance"},
		{Key: "debtor_rating", FieldID: 14, Type: TypeEnumCode, Description: "Internal debtor credit rating code"},
		{Key: "payment_terms_days", FieldID: 15, Type: TypeUnsigned64, Description: "Agreed payment terms in days"},
		{Key: "document_hash", FieldID: 16, Type: TypeFixedBytes32, Description: "Hash of the supporting invoice document"},
	})
}
