package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/toolbridge/dispatcher/internal/descgen"
	"github.com/toolbridge/dispatcher/internal/dispatcherr"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"gopkg.in/yaml.v3"
)

// resolveTenantByHash resolves {hash} to a tenant, remapping an unknown
// hash to 404 — description routes are the one place TenantUnknown isn't
// 403.
func (s *Server) resolveTenantByHash(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	hash := chi.URLParam(r, "hash")
	t := s.Tenants.GetByHash(hash)
	if t == nil {
		writeAPIError(w, dispatcherr.TenantUnknown(), http.StatusNotFound)
		return nil, false
	}
	return t, true
}

func (s *Server) generateDoc(t *tenant.Tenant) descgen.Document {
	return s.DescGen.Generate(t, s.Workers.Snapshot())
}

// DescriptionJSON serves GET /openapi/{hash}/json.
func (s *Server) DescriptionJSON(w http.ResponseWriter, r *http.Request) {
	t, ok := s.resolveTenantByHash(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.generateDoc(t))
}

// DescriptionYAML serves GET /openapi/{hash}/yaml — the same in-memory
// document, serialized with gopkg.in/yaml.v3 instead of encoding/json;
// the generator itself is encoding-agnostic.
func (s *Server) DescriptionYAML(w http.ResponseWriter, r *http.Request) {
	t, ok := s.resolveTenantByHash(w, r)
	if !ok {
		return
	}
	data, err := yaml.Marshal(s.generateDoc(t))
	if err != nil {
		writeAPIError(w, dispatcherr.Internal("failed to encode YAML description"), 0)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
