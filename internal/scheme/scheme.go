// Package scheme defines named, versioned field templates for receivable
// types and validates incoming submissions against them. The registry is
// loaded once at startup and validated eagerly; a malformed scheme prevents
// the process from serving any request.
package scheme

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/finproofs/receivable-zkp/internal/catalog"
)

// Visibility says whether a field is disclosed alongside the proof or kept
// private inside the commitment. It is fixed by the scheme, never chosen by
// the caller.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// RuleFunc is a hook for per-field business rules (for example
// taxable_amount + tax_amount == total_amount_due). No built-in scheme
// installs one yet; the plumbing exists so rules can be added without
// touching the validation pipeline.
type RuleFunc func(key string, value *big.Int, all map[string]*big.Int) error

// FieldUse binds a catalog field into a scheme.
type FieldUse struct {
	Key        string     `json:"key"`
	Visibility Visibility `json:"visibility"`
	Required   bool       `json:"required"`
	Rule       RuleFunc   `json:"-"`
}

// Scheme is a named template declaring which fields a receivable type carries
// and whether each is disclosed or hidden. Field order has no protocol
// meaning; it is kept only for stable serialization of introspection output.
type Scheme struct {
	Name               string     `json:"name"`
	Version            string     `json:"version"`
	InheritsBasePublic bool       `json:"inherits_base_public"`
	Fields             []FieldUse `json:"fields"`
}

// Use returns the scheme's use of a field key, if present.
func (s *Scheme) Use(key string) (FieldUse, bool) {
	for _, u := range s.Fields {
		if u.Key == key {
			return u, true
		}
	}
	return FieldUse{}, false
}

// ConfigError is a scheme/catalog inconsistency detected at startup. Any
// ConfigError is fatal: the service must not transition to ready.
type ConfigError struct {
	Scheme string
	Key    string
	Reason string
}

func (e ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("scheme %q field %q: %s", e.Scheme, e.Key, e.Reason)
	}
	return fmt.Sprintf("scheme %q: %s", e.Scheme, e.Reason)
}

// Registry holds the catalog, the base-public key set, and all schemes.
// Immutable after Validate; safe for concurrent reads.
type Registry struct {
	catalog    *catalog.Catalog
	schemes    map[string]*Scheme
	names      []string
	basePublic []string
}

// NewRegistry builds a registry. Call Validate before serving traffic.
func NewRegistry(cat *catalog.Catalog, basePublic []string, schemes []*Scheme) *Registry {
	r := &Registry{
		catalog:    cat,
		schemes:    make(map[string]*Scheme, len(schemes)),
		basePublic: append([]string(nil), basePublic...),
	}
	for _, s := range schemes {
		r.schemes[s.Name] = s
		r.names = append(r.names, s.Name)
	}
	sort.Strings(r.names)
	return r
}

// Catalog returns the underlying field catalog.
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}

// BasePublicKeys returns the fixed set of keys every inheriting scheme must
// expose publicly.
func (r *Registry) BasePublicKeys() []string {
	out := make([]string, len(r.basePublic))
	copy(out, r.basePublic)
	return out
}

// Scheme returns a registered scheme by name.
func (r *Registry) Scheme(name string) (*Scheme, bool) {
	s, ok := r.schemes[name]
	return s, ok
}

// Names returns all registered scheme names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Validate checks every scheme against the catalog. It returns the full list
// of inconsistencies rather than stopping at the first, so a broken deployment
// is diagnosable in one pass. A non-empty result is fatal.
func (r *Registry) Validate() []ConfigError {
	var errs []ConfigError

	for _, key := range r.basePublic {
		if _, ok := r.catalog.Lookup(key); !ok {
			errs = append(errs, ConfigError{Scheme: "<base-public>", Key: key, Reason: "not in catalog"})
		}
	}

	for _, name := range r.names {
		s := r.schemes[name]
		if s.Version == "" {
			errs = append(errs, ConfigError{Scheme: name, Reason: "missing version"})
		}

		seen := make(map[string]bool, len(s.Fields))
		for _, use := range s.Fields {
			if _, ok := r.catalog.Lookup(use.Key); !ok {
				errs = append(errs, ConfigError{Scheme: name, Key: use.Key, Reason: "not in catalog"})
			}
			if seen[use.Key] {
				errs = append(errs, ConfigError{Scheme: name, Key: use.Key, Reason: "duplicate field key"})
			}
			seen[use.Key] = true
			if use.Visibility != Public && use.Visibility != Private {
				errs = append(errs, ConfigError{Scheme: name, Key: use.Key, Reason: fmt.Sprintf("invalid visibility %q", use.Visibility)})
			}
		}

		if s.InheritsBasePublic {
			for _, key := range r.basePublic {
				use, ok := s.Use(key)
				if !ok {
					errs = append(errs, ConfigError{Scheme: name, Key: key, Reason: "base-public field missing"})
					continue
				}
				if use.Visibility != Public {
					errs = append(errs, ConfigError{Scheme: name, Key: key, Reason: "base-public field must be public"})
				}
			}
		}
	}

	return errs
}

// DefaultBasePublic is the fixed base-public key set: fields every
// marketplace listing must disclose regardless of scheme.
func DefaultBasePublic() []string {
	return []string{"currency_code", "due_date"}
}

// DefaultRegistry returns the built-in schemes over the given catalog.
func DefaultRegistry(cat *catalog.Catalog) *Registry {
	standard := &Scheme{
		Name:               "standard_receivable_v1",
		Version:            "1.0.0",
		InheritsBasePublic: true,
		Fields: []FieldUse{
			{Key: "currency_code", Visibility: Public, Required: true},
			{Key: "due_date", Visibility: Public, Required: true},
			{Key: "total_amount_due", Visibility: Public, Required: true},
			{Key: "invoice_id", Visibility: Private, Required: true},
			{Key: "debtor_id", Visibility: Private, Required: true},
			{Key: "creditor_id", Visibility: Private, Required: true},
			{Key: "taxable_amount", Visibility: Private, Required: true},
			{Key: "tax_amount", Visibility: Private, Required: true},
			{Key: "face_value", Visibility: Private, Required: false},
			{Key: "document_hash", Visibility: Private, Required: false},
		},
	}

	insured := &Scheme{
		Name:               "insured_receivable_v1",
		Version:            "1.0.0",
		InheritsBasePublic: true,
		Fields: append(append([]FieldUse(nil), standard.Fields...),
			FieldUse{Key: "is_insured", Visibility: Public, Required: true},
			FieldUse{Key: "debtor_rating", Visibility: Private, Required: false},
		),
	}

	return NewRegistry(cat, DefaultBasePublic(), []*Scheme{standard, insured})
}
