package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/catalog"
	"github.com/finproofs/receivable-zkp/internal/scheme"
)

// RegistryHandler serves read-only introspection of the field catalog and
// the disclosure schemes. Integrators use these endpoints to discover what
// a submission must look like before building one.
type RegistryHandler struct {
	registry *scheme.Registry
	logger   *zap.Logger
}

func NewRegistryHandler(registry *scheme.Registry, logger *zap.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

type fieldPayload struct {
	Key         string `json:"key"`
	FieldID     uint64 `json:"fieldId"`
	Type        string `json:"type"`
	Scale       int64  `json:"scale,omitempty"`
	Description string `json:"description,omitempty"`
}

type schemePayload struct {
	Name               string            `json:"name"`
	Version            string            `json:"version"`
	InheritsBasePublic bool              `json:"inheritsBasePublic"`
	Fields             []schemeFieldView `json:"fields"`
}

type schemeFieldView struct {
	Key        string `json:"key"`
	Type       string `json:"type"`
	Scale      int64  `json:"scale,omitempty"`
	Visibility string `json:"visibility"`
	Required   bool   `json:"required"`
}

// ListFields handles GET /api/v1/fields.
func (h *RegistryHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.Catalog().Specs()
	payload := make([]fieldPayload, 0, len(specs))
	for _, s := range specs {
		payload = append(payload, fieldView(s))
	}
	respondJSON(w, http.StatusOK, payload)
}

// ListBasePublicFields handles GET /api/v1/fields/base-public.
func (h *RegistryHandler) ListBasePublicFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.BasePublicKeys())
}

// ListSchemes handles GET /api/v1/schemes.
func (h *RegistryHandler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.Names())
}

// GetScheme handles GET /api/v1/schemes/{name}.
func (h *RegistryHandler) GetScheme(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sch, ok := h.registry.Scheme(name)
	if !ok {
		respondJSON(w, http.StatusNotFound, ErrorResponse{
			Success: false,
			Error:   "scheme not found",
		})
		return
	}

	payload := schemePayload{
		Name:               sch.Name,
		Version:            sch.Version,
		InheritsBasePublic: sch.InheritsBasePublic,
	}
	cat := h.registry.Catalog()
	for _, use := range sch.Fields {
		view := schemeFieldView{
			Key:        use.Key,
			Visibility: string(use.Visibility),
			Required:   use.Required,
		}
		// Registry validation guarantees every scheme key is in the catalog.
		if spec, ok := cat.Lookup(use.Key); ok {
			view.Type = string(spec.Type)
			if spec.Type == catalog.TypeFixedPoint6 {
				view.Scale = spec.Scale
			}
		}
		payload.Fields = append(payload.Fields, view)
	}
	respondJSON(w, http.StatusOK, payload)
}

func fieldView(s catalog.FieldSpec) fieldPayload {
	p := fieldPayload{
		Key:         s.Key,
		FieldID:     s.FieldID,
		Type:        string(s.Type),
		Description: s.Description,
	}
	if s.Type == catalog.TypeFixedPoint6 {
		p.Scale = s.Scale
	}
	return p
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
