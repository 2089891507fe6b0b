// Package auth classifies an incoming bearer token as a known tenant, the
// admin, or unauthenticated, and binds the resolved tenant to the request
// context for downstream handlers.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/toolbridge/dispatcher/internal/tenant"
)

type contextKey string

const tenantCtxKey contextKey = "dispatcher.tenant"

// Result is the outcome of classifying one request's Authorization header.
type Result int

const (
	// Unauthenticated means no bearer was presented at all.
	Unauthenticated Result = iota
	// Malformed means a header was presented but isn't "Bearer <token>".
	Malformed
	// Unknown means a well-formed bearer matched neither a tenant nor the
	// admin token.
	Unknown
	// AsTenant means the bearer matched a configured tenant.
	AsTenant
	// AsAdmin means the bearer matched the configured admin token.
	AsAdmin
)

// Authenticator classifies bearer tokens against the Tenant Registry and
// the configured admin token. It holds no mutable state.
type Authenticator struct {
	tenants    *tenant.Registry
	adminToken string
}

// New builds an Authenticator. adminToken may be empty, in which case no
// bearer ever classifies as AsAdmin (the admin facet is effectively
// disabled).
func New(tenants *tenant.Registry, adminToken string) *Authenticator {
	return &Authenticator{tenants: tenants, adminToken: adminToken}
}

// ExtractBearer pulls the token out of an Authorization header, reporting
// Unauthenticated (no header), Malformed (present but not "Bearer <t>"),
// or the token itself. The result is only meaningful when token is empty;
// alongside a non-empty token it is zero.
func ExtractBearer(r *http.Request) (token string, result Result) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", Unauthenticated
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) || len(h) == len(prefix) {
		return "", Malformed
	}
	return strings.TrimPrefix(h, prefix), 0
}

// Classify resolves a request's Authorization header to one of
// Unauthenticated/Malformed/Unknown/AsTenant/AsAdmin, and the matching
// *tenant.Tenant when the result is AsTenant.
func (a *Authenticator) Classify(r *http.Request) (Result, *tenant.Tenant) {
	token, res := ExtractBearer(r)
	if token == "" {
		return res, nil
	}

	if a.adminToken != "" && constantTimeEqual(token, a.adminToken) {
		return AsAdmin, nil
	}
	if t := a.tenants.GetByToken(token); t != nil {
		return AsTenant, t
	}
	return Unknown, nil
}

// constantTimeEqual compares two bearer tokens in constant time.
// subtle.ConstantTimeCompare itself returns 0 immediately on length
// mismatch, so a hash of each value is compared instead — fixing the
// comparison length regardless of the inputs' lengths and removing the
// length itself as a timing signal.
func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}

// WithTenant returns a context carrying the resolved tenant, for
// downstream handlers.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey, t)
}

// TenantFromContext retrieves the tenant bound by WithTenant, or nil.
func TenantFromContext(ctx context.Context) *tenant.Tenant {
	t, _ := ctx.Value(tenantCtxKey).(*tenant.Tenant)
	return t
}

// AdminCookieValue derives the admin session cookie's value from the
// configured admin token: SHA-256(adminToken), truncated to 16 hex chars.
// It is a pure function so both the login handler (set) and the
// requireAdmin middleware (compare) call the same derivation.
func AdminCookieValue(adminToken string) string {
	sum := sha256.Sum256([]byte(adminToken))
	return hex.EncodeToString(sum[:])[:16]
}
