package scheme

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/finproofs/receivable-zkp/internal/catalog"
)

// ValidationKind classifies why a submission was rejected. Exactly one kind
// is reported per request: the pipeline stops at the first failing step so
// the caller gets a single clear error class, but failures within that step
// are aggregated.
type ValidationKind string

const (
	KindUnknownScheme      ValidationKind = "unknown_scheme"
	KindUnknownField       ValidationKind = "unknown_field"
	KindFieldNotInScheme   ValidationKind = "field_not_in_scheme"
	KindMissingRequired    ValidationKind = "missing_required_field"
	KindVisibilityMismatch ValidationKind = "visibility_mismatch"
	KindEncodingFailed     ValidationKind = "encoding_failed"
	KindPublicRequired     ValidationKind = "public_required_violation"
)

// ValidationError is a single caller-correctable rejection.
type ValidationError struct {
	Kind   ValidationKind `json:"kind"`
	Key    string         `json:"key,omitempty"`
	Reason string         `json:"reason"`
}

func (e ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// ValidationErrors aggregates all failures of one pipeline step.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}

// Kind returns the shared kind of the aggregated errors.
func (e ValidationErrors) Kind() ValidationKind {
	if len(e) == 0 {
		return ""
	}
	return e[0].Kind
}

// SubmittedField is one entry of an incoming field map. The visibility is an
// echo of the scheme's declaration, double-checked during validation.
type SubmittedField struct {
	Value      interface{} `json:"value"`
	Visibility Visibility  `json:"visibility"`
}

// Request is a scheme-conformant submission candidate.
type Request struct {
	Scheme string                    `json:"scheme"`
	Fields map[string]SubmittedField `json:"fields"`
}

// EncodedField is a validated, encoded field ready for commitment. Derived
// per request, never persisted.
type EncodedField struct {
	Key        string
	FieldID    uint64
	Value      *big.Int
	Visibility Visibility
}

// Validator checks submissions against the registry's schemes and catalog.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator over a validated registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Catalog exposes the registry's field catalog for decoding encoded values
// back into their submitted form.
func (v *Validator) Catalog() *catalog.Catalog {
	return v.registry.Catalog()
}

// Validate runs the six-step pipeline. On success it returns the encoded
// fields sorted by field identifier (the canonical hashing order); on failure
// it returns a ValidationErrors value holding every failure of the first
// step that rejected the request.
//
// Steps, in order: unknown keys, keys outside the scheme, missing required
// fields, visibility conformance, value encoding, and a final re-check
// that required public fields were submitted as public.
func (v *Validator) Validate(req Request) ([]EncodedField, error) {
	sch, ok := v.registry.Scheme(req.Scheme)
	if !ok {
		return nil, ValidationErrors{{
			Kind:   KindUnknownScheme,
			Reason: fmt.Sprintf("scheme %q is not registered", req.Scheme),
		}}
	}

	cat := v.registry.Catalog()
	keys := sortedKeys(req.Fields)

	// Step 1: every submitted key must exist in the catalog.
	var errs ValidationErrors
	for _, key := range keys {
		if _, ok := cat.Lookup(key); !ok {
			errs = append(errs, ValidationError{Kind: KindUnknownField, Key: key, Reason: "not in field catalog"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Step 2: every submitted key must be used by the chosen scheme.
	for _, key := range keys {
		if _, ok := sch.Use(key); !ok {
			errs = append(errs, ValidationError{Kind: KindFieldNotInScheme, Key: key, Reason: fmt.Sprintf("not part of scheme %q", sch.Name)})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Step 3: all required scheme fields must be present.
	for _, use := range sch.Fields {
		if use.Required {
			if _, ok := req.Fields[use.Key]; !ok {
				errs = append(errs, ValidationError{Kind: KindMissingRequired, Key: use.Key, Reason: "required field missing"})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Step 4: the echoed visibility must equal the scheme's declaration.
	for _, key := range keys {
		use, _ := sch.Use(key)
		if req.Fields[key].Visibility != use.Visibility {
			errs = append(errs, ValidationError{
				Kind:   KindVisibilityMismatch,
				Key:    key,
				Reason: fmt.Sprintf("scheme declares %s, request says %s", use.Visibility, req.Fields[key].Visibility),
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Step 5: every value must encode; per-field errors are aggregated.
	encoded := make([]EncodedField, 0, len(keys))
	for _, key := range keys {
		spec, _ := cat.Lookup(key)
		use, _ := sch.Use(key)
		value, err := catalog.Encode(spec, req.Fields[key].Value)
		if err != nil {
			errs = append(errs, ValidationError{Kind: KindEncodingFailed, Key: key, Reason: err.Error()})
			continue
		}
		encoded = append(encoded, EncodedField{
			Key:        key,
			FieldID:    spec.FieldID,
			Value:      value,
			Visibility: use.Visibility,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Step 6: required public fields must have been submitted as public.
	// Implied by steps 3 and 4, but re-checked independently: it is the
	// property the marketplace depends on most.
	for _, use := range sch.Fields {
		if !use.Required || use.Visibility != Public {
			continue
		}
		sub, ok := req.Fields[use.Key]
		if !ok || sub.Visibility != Public {
			errs = append(errs, ValidationError{Kind: KindPublicRequired, Key: use.Key, Reason: "required public field not submitted as public"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Canonical order: ascending field id. Keeps the commitment deterministic
	// for a given dataset regardless of submission order.
	sort.Slice(encoded, func(i, j int) bool { return encoded[i].FieldID < encoded[j].FieldID })

	// Business-rule hook: runs after structural validation once rules exist.
	if err := v.applyRules(sch, encoded); err != nil {
		return nil, err
	}

	return encoded, nil
}

// applyRules evaluates per-field business rules. All built-in schemes carry
// none, so today this is a pass-through.
func (v *Validator) applyRules(sch *Scheme, encoded []EncodedField) error {
	all := make(map[string]*big.Int, len(encoded))
	for _, f := range encoded {
		all[f.Key] = f.Value
	}
	for _, f := range encoded {
		use, _ := sch.Use(f.Key)
		if use.Rule == nil {
			continue
		}
		if err := use.Rule(f.Key, f.Value, all); err != nil {
			return ValidationErrors{{Kind: KindEncodingFailed, Key: f.Key, Reason: err.Error()}}
		}
	}
	return nil
}

func sortedKeys(m map[string]SubmittedField) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
