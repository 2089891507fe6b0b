// Package tenant implements the tenant registry: isolated API namespaces
// with independent credentials and ACLs over the shared worker pool. The
// registry is built once at startup from config.Config and is read-only
// for the lifetime of the process.
package tenant

import (
	"fmt"

	"github.com/toolbridge/dispatcher/internal/config"
	"github.com/toolbridge/dispatcher/internal/idhash"
)

// Tenant is one configured API namespace.
type Tenant struct {
	Name                string
	Description         string
	BearerToken         string
	AllowedClientTokens map[string]struct{}
	hash                string
}

// TokenHash returns the first 16 hex chars of SHA-256(BearerToken), the
// public-safe URL segment used by description routes.
func (t Tenant) TokenHash() string { return t.hash }

// Registry indexes tenants by tenant-token and by admitted worker-token.
// It holds no mutex: every field is written once in New and never mutated
// afterward, so concurrent reads need no locking.
type Registry struct {
	byTenantToken map[string]*Tenant
	byHash        map[string]*Tenant
	byWorkerToken map[string][]*Tenant
	ordered       []*Tenant
}

// New builds a Registry from validated configuration. Callers must have
// already run config.Config.Validate(); New re-derives the invariants it
// needs (non-empty tenant set, unique tokens, no hash collisions) and
// returns a ConfigError-shaped error if config.Validate was skipped.
func New(spaces []config.APISpace) (*Registry, error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("tenant: at least one tenant must be configured")
	}

	r := &Registry{
		byTenantToken: make(map[string]*Tenant, len(spaces)),
		byHash:        make(map[string]*Tenant, len(spaces)),
		byWorkerToken: make(map[string][]*Tenant),
	}

	seenHash := make(map[string]string, len(spaces))
	for _, sp := range spaces {
		if sp.Name == "" {
			return nil, fmt.Errorf("tenant: name is required")
		}
		if _, dup := r.byTenantToken[sp.BearerToken]; dup {
			return nil, fmt.Errorf("tenant: duplicate bearer token for %q", sp.Name)
		}

		h := idhash.TenantHash(sp.BearerToken)
		if other, dup := seenHash[h]; dup {
			return nil, fmt.Errorf("tenant: token_hash collision between %q and %q", sp.Name, other)
		}
		seenHash[h] = sp.Name

		allowed := make(map[string]struct{}, len(sp.AllowedClientTokens))
		for _, wt := range sp.AllowedClientTokens {
			allowed[wt] = struct{}{}
		}

		t := &Tenant{
			Name:                sp.Name,
			Description:         sp.Description,
			BearerToken:         sp.BearerToken,
			AllowedClientTokens: allowed,
			hash:                h,
		}
		r.byTenantToken[sp.BearerToken] = t
		r.byHash[h] = t
		r.ordered = append(r.ordered, t)
		for wt := range allowed {
			r.byWorkerToken[wt] = append(r.byWorkerToken[wt], t)
		}
	}

	return r, nil
}

// GetByToken returns the tenant owning t, or nil if unknown.
func (r *Registry) GetByToken(t string) *Tenant {
	return r.byTenantToken[t]
}

// GetByHash resolves a 16-hex token_hash prefix to its tenant, or nil.
func (r *Registry) GetByHash(hash string) *Tenant {
	return r.byHash[hash]
}

// TenantsAdmitting returns every tenant that admits workerToken.
func (r *Registry) TenantsAdmitting(workerToken string) []*Tenant {
	return r.byWorkerToken[workerToken]
}

// Admits reports whether tenant t has admitted workerToken into its pool.
func (r *Registry) Admits(t *Tenant, workerToken string) bool {
	if t == nil {
		return false
	}
	_, ok := t.AllowedClientTokens[workerToken]
	return ok
}

// List returns tenants in the stable order they were configured.
func (r *Registry) List() []*Tenant {
	out := make([]*Tenant, len(r.ordered))
	copy(out, r.ordered)
	return out
}
