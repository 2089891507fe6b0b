package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/toolbridge/dispatcher/internal/auth"
	"github.com/toolbridge/dispatcher/internal/dispatcherr"
)

type invokeResponse struct {
	Result any `json:"result"`
}

// InvokeTool handles POST /api/tools/{name}: tenant-auth required, query
// params merged into the JSON body with body keys winning, result
// forwarded verbatim on success.
func (s *Server) InvokeTool(w http.ResponseWriter, r *http.Request) {
	r, apiErr := s.requireTenant(r)
	if apiErr != nil {
		writeAPIError(w, apiErr, 0)
		return
	}
	t := auth.TenantFromContext(r.Context())

	name := chi.URLParam(r, "name")

	args, apiErr := mergedArgs(r)
	if apiErr != nil {
		writeAPIError(w, apiErr, 0)
		return
	}

	out, apiErr := s.Router.Invoke(r.Context(), t, name, args, 0)
	if apiErr != nil {
		writeAPIError(w, apiErr, 0)
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Result: out})
}

// requireTenant resolves the calling tenant for a tenant-auth-required
// route. On success it returns a request whose context carries the
// resolved tenant (retrievable via auth.TenantFromContext) for downstream
// use; on failure it returns the original request and the error matching
// the failure mode: missing header, malformed header, or a bearer that
// isn't a known tenant (including a valid admin bearer, which this route
// does not accept).
func (s *Server) requireTenant(r *http.Request) (*http.Request, *dispatcherr.Error) {
	res, t := s.Auth.Classify(r)
	switch res {
	case auth.Unauthenticated:
		return r, dispatcherr.MissingAuthHeader()
	case auth.Malformed:
		return r, dispatcherr.MalformedAuth()
	case auth.AsTenant:
		return r.WithContext(auth.WithTenant(r.Context(), t)), nil
	default:
		return r, dispatcherr.TenantUnknown()
	}
}

// mergedArgs parses the JSON request body (if any) and merges URL query
// parameters into it, body keys winning on conflict.
func mergedArgs(r *http.Request) (map[string]any, *dispatcherr.Error) {
	args := make(map[string]any)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, dispatcherr.InvalidPayload("failed to read request body")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return nil, dispatcherr.InvalidPayload("malformed JSON body")
		}
	}

	for k, vs := range r.URL.Query() {
		if len(vs) == 0 {
			continue
		}
		if _, exists := args[k]; exists {
			continue // body wins
		}
		args[k] = vs[0]
	}

	return args, nil
}
