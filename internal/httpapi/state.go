// Package httpapi implements the tenant-facing tool-invocation endpoint,
// the public description routes, the admin facet mount, and the
// websocket upgrade for worker sessions, split into a Server dependency
// struct plus a Routes() chi.Router builder.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/toolbridge/dispatcher/internal/admin"
	"github.com/toolbridge/dispatcher/internal/auth"
	"github.com/toolbridge/dispatcher/internal/descgen"
	"github.com/toolbridge/dispatcher/internal/dispatcherr"
	"github.com/toolbridge/dispatcher/internal/router"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

// Server holds every dependency an HTTP handler needs, constructed once in
// cmd/server and passed by handle rather than resolved through
// package-level singletons.
type Server struct {
	Tenants  *tenant.Registry
	Workers  *worker.Registry
	Auth     *auth.Authenticator
	Router   *router.Router
	Sessions *session.Manager
	DescGen  *descgen.Generator
	Admin    *admin.Server
}

// writeJSON encodes v as the JSON response body, logging (not failing)
// on an encode error since the status line is already written.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// apiErrorBody is the fixed {error, code} JSON shape every non-2xx
// response from /api/* returns.
type apiErrorBody struct {
	Error string           `json:"error"`
	Code  dispatcherr.Code `json:"code"`
}

// writeAPIError translates a *dispatcherr.Error to its exact status/body
// shape. statusOverride, when non-zero, replaces Code.Status() — used by
// the description routes to remap TenantUnknown from 403 to 404.
func writeAPIError(w http.ResponseWriter, err *dispatcherr.Error, statusOverride int) {
	status := statusOverride
	if status == 0 {
		status = err.Code.Status()
	}
	if err.Code == dispatcherr.CodeClientCancelled {
		// Connection-dropped semantics: no body sent.
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, apiErrorBody{Error: err.Message, Code: err.Code})
}
