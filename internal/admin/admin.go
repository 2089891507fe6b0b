// Package admin implements the token-gated cookie login flow, dashboard
// data aggregation, and the SSE log stream for operators. HTML rendering
// is intentionally minimal; only the cookie flow and SSE transport are
// this package's job.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/auth"
	"github.com/toolbridge/dispatcher/internal/logging"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

const cookieName = "adminSession"

// Server holds the admin surface's dependencies as a plain struct, wired
// once at startup rather than resolved through package-level singletons.
type Server struct {
	Tenants    *tenant.Registry
	Workers    *worker.Registry
	Sessions   *session.Manager
	Logs       *logging.RingBuffer
	AdminToken string
	StartedAt  time.Time
	Log        zerolog.Logger
}

// RequireAdmin gates a handler behind a valid admin session cookie. If no
// admin token is configured, every request is rejected (an admin facet
// with no configured token is a disabled facet, never an open one).
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminToken == "" || !s.hasValidCookie(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hasValidCookie(r *http.Request) bool {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return false
	}
	want := auth.AdminCookieValue(s.AdminToken)
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(want)) == 1
}

// LoginForm renders the minimal login form (GET /login).
func (s *Server) LoginForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!doctype html><html><body>
<form method="POST" action="/login">
<input type="password" name="adminToken" placeholder="admin token" />
<button type="submit">Sign in</button>
</form>
</body></html>`)
}

// Login handles POST /login: constant-time compare against the configured
// admin token, then sets the session cookie and redirects to /admin.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	submitted := r.FormValue("adminToken")

	if s.AdminToken == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(s.AdminToken)) != 1 {
		s.Log.Warn().Msg("admin login attempt rejected")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    auth.AdminCookieValue(s.AdminToken),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   24 * 60 * 60,
	})
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// Logout clears the session cookie and redirects to /login.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Stats is the JSON counters payload for GET /api/admin/stats.
type Stats struct {
	TenantCount          int           `json:"tenantCount"`
	ConnectedWorkerCount int           `json:"connectedWorkerCount"`
	DistinctToolCount    int           `json:"distinctToolCount"`
	UptimeSeconds        float64       `json:"uptimeSeconds"`
	Tenants              []TenantCard  `json:"tenants"`
}

// TenantCard is one tenant's dashboard entry: its admitted workers and the
// description-route hash clients use to fetch its OpenAPI document.
type TenantCard struct {
	Name        string       `json:"name"`
	TokenHash   string       `json:"tokenHash"`
	WorkerCount int          `json:"workerCount"`
	Workers     []WorkerCard `json:"workers"`
}

// WorkerCard summarizes one worker for the dashboard without leaking its
// token: only an id-prefix is shown.
type WorkerCard struct {
	IDPrefix  string `json:"idPrefix"`
	State     string `json:"state"`
	ToolCount int    `json:"toolCount"`
}

// computeStats derives every counter fresh from the live registries — no
// stored counters that could drift out of sync with them.
func (s *Server) computeStats() Stats {
	snap := s.Workers.Snapshot()
	connected := snap.Connected()

	distinctTools := make(map[string]struct{})
	for _, rec := range connected {
		for _, tool := range rec.Tools {
			distinctTools[tool.Name] = struct{}{}
		}
	}

	byWorkerToken := make(map[string][]worker.Record)
	for _, rec := range connected {
		byWorkerToken[rec.WorkerToken] = append(byWorkerToken[rec.WorkerToken], rec)
	}

	cards := make([]TenantCard, 0, len(s.Tenants.List()))
	for _, t := range s.Tenants.List() {
		var workers []WorkerCard
		for workerToken := range t.AllowedClientTokens {
			for _, rec := range byWorkerToken[workerToken] {
				prefix := rec.WorkerID
				if len(prefix) > 8 {
					prefix = prefix[:8]
				}
				workers = append(workers, WorkerCard{
					IDPrefix:  prefix,
					State:     rec.State.String(),
					ToolCount: len(rec.Tools),
				})
			}
		}
		cards = append(cards, TenantCard{
			Name:        t.Name,
			TokenHash:   t.TokenHash(),
			WorkerCount: len(workers),
			Workers:     workers,
		})
	}

	return Stats{
		TenantCount:          len(s.Tenants.List()),
		ConnectedWorkerCount: len(connected),
		DistinctToolCount:    len(distinctTools),
		UptimeSeconds:        time.Since(s.StartedAt).Seconds(),
		Tenants:              cards,
	}
}

// StatsJSON serves GET /api/admin/stats.
func (s *Server) StatsJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.computeStats())
}

// Dashboard serves GET /admin: a minimal HTML shell around the same
// aggregated data StatsJSON exposes.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats := s.computeStats()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><body>
<h1>Dispatcher Admin</h1>
<p>tenants: %d, connected workers: %d, distinct tools: %d, uptime: %.0fs</p>
<p><a href="/logs/events">log stream</a> | <a href="/logout">logout</a></p>
</body></html>`, stats.TenantCount, stats.ConnectedWorkerCount, stats.DistinctToolCount, stats.UptimeSeconds)
}
