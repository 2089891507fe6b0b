package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
	"nhooyr.io/websocket"
)

// errSessionGone is returned by SendToolRequest when the target session
// closed between dispatch selection and the send attempt.
var errSessionGone = errors.New("session: no longer connected")

// Manager accepts worker upgrades and owns the table of live Sessions.
// It is the only thing in the package that knows about sibling sessions;
// individual Sessions only ever see themselves.
type Manager struct {
	workers  *worker.Registry
	tenants  *tenant.Registry
	complete Completer
	log      zerolog.Logger

	handshakeWindow time.Duration
	pingInterval    time.Duration
	pongGrace       time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a Manager wired to the shared registries and the
// Invocation Router's Completer callback. Every dependency is passed in
// at construction rather than resolved through package-level globals.
func NewManager(workers *worker.Registry, tenants *tenant.Registry, complete Completer, log zerolog.Logger, handshakeWindow, pingInterval, pongGrace time.Duration) *Manager {
	return &Manager{
		workers:         workers,
		tenants:         tenants,
		complete:        complete,
		log:             log,
		handshakeWindow: handshakeWindow,
		pingInterval:    pingInterval,
		pongGrace:       pongGrace,
		sessions:        make(map[string]*Session),
	}
}

// HandleUpgrade is the worker-facing HTTP handler: it rejects upgrades
// with no bearer presented, accepts the websocket, and hands the new
// Session off to its own goroutine.
func (m *Manager) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		http.Error(w, "missing Authorization header", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is enforced by the HTTP surface's own middleware, not origin checks here
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("worker websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:              uuid.NewString(),
		conn:            conn,
		log:             m.log.With().Str("session_id", "").Logger(),
		workers:         m.workers,
		tenants:         m.tenants,
		complete:        m.complete,
		handshakeWindow: m.handshakeWindow,
		pingInterval:    m.pingInterval,
		pongGrace:       m.pongGrace,
		ctx:             ctx,
		cancel:          cancel,
		activity:        make(chan struct{}, 1),
		mgr:             m,
	}
	sess.log = m.log.With().Str("session_id", sess.ID).Logger()
	sess.onClose = m.deregister

	m.register(sess)
	go sess.run()
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) deregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok && cur == s {
		delete(m.sessions, s.ID)
	}
}

// closeSession closes a still-tracked session by id, used for claim-wins
// replacement. A no-op if the session already closed on its own.
func (m *Manager) closeSession(sessionID, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close(reason)
}

// SendToolRequest resolves sessionID and writes a tool_request frame to
// it. Returns errSessionGone if the session is no longer known (lost
// before dispatch could happen).
func (m *Manager) SendToolRequest(sessionID, requestID, toolName string, args map[string]any) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return errSessionGone
	}
	return s.SendToolRequest(requestID, toolName, args)
}

// CloseAll closes every live session with a shutdown reason, used by the
// server's graceful-stop sequence.
func (m *Manager) CloseAll(reason string) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(reason)
	}
}

// Count returns the number of currently tracked sessions (connected or
// mid-teardown).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
