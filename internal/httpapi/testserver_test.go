package httpapi

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/admin"
	"github.com/toolbridge/dispatcher/internal/auth"
	"github.com/toolbridge/dispatcher/internal/config"
	"github.com/toolbridge/dispatcher/internal/descgen"
	"github.com/toolbridge/dispatcher/internal/logging"
	"github.com/toolbridge/dispatcher/internal/router"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

const (
	testTenantToken = "tenant-token-aaaaaaaaaaaaaaaaaaaaa"
	testWorkerToken = "worker-token-aaaaaaaaaaaaaaaaaaaaa"
	testAdminToken  = "admin-token-bbbbbbbbbbbbbbbbbbbbb"
)

// newTestServer assembles a full Server the way cmd/server does, wired to
// fresh in-memory registries, for black-box handler tests.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	tenants, err := tenant.New([]config.APISpace{{
		Name:                "Acme",
		Description:         "Acme Corp",
		BearerToken:         testTenantToken,
		AllowedClientTokens: []string{testWorkerToken},
	}})
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}

	workers := worker.NewRegistry()
	log := zerolog.Nop()

	r := router.New(workers, tenants, 50*time.Millisecond, log)
	sessions := session.NewManager(workers, tenants, r, log, 10*time.Second, 30*time.Second, 5*time.Second)
	r.SetSender(sessions)

	return &Server{
		Tenants:  tenants,
		Workers:  workers,
		Auth:     auth.New(tenants, testAdminToken),
		Router:   r,
		Sessions: sessions,
		DescGen:  descgen.New("https://dispatcher.example.com"),
		Admin: &admin.Server{
			Tenants:    tenants,
			Workers:    workers,
			Sessions:   sessions,
			Logs:       logging.NewRingBuffer(),
			AdminToken: testAdminToken,
			StartedAt:  time.Now(),
			Log:        log,
		},
	}
}
