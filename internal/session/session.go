// Package session accepts worker websocket upgrades, demultiplexes the
// JSON frames exchanged over them, runs the keep-alive loop, and owns
// every Session's lifecycle end to end.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
	"github.com/toolbridge/dispatcher/internal/wsproto"
	"nhooyr.io/websocket"
)

// State is a session's place in the Opened → Active → Closed machine.
type State int32

const (
	Opened State = iota
	Active
	Closed
)

// Completer is the Invocation Router's half of the session/router
// contract: the session layer never imports the router package, it only
// calls back through this interface when a tool_response arrives or the
// session is lost.
type Completer interface {
	// Complete delivers a tool_response to its matching Pending
	// Invocation, if any is still outstanding.
	Complete(requestID string, result any, workerErr string)
	// FailSession fails every Pending Invocation routed through
	// sessionID with the given reason. Idempotent: calling it twice
	// (once from an explicit replacement, once from the old session's
	// own close cleanup) is safe.
	FailSession(sessionID string, reason FailReason)
}

// FailReason distinguishes why a session's pending invocations were
// failed, so the router can return WorkerReplaced vs WorkerDisconnected.
type FailReason int

const (
	ReasonDisconnected FailReason = iota
	ReasonReplaced
)

// Session is one duplex message channel between the server and a worker.
type Session struct {
	ID       string
	conn     *websocket.Conn
	log      zerolog.Logger
	workers  *worker.Registry
	tenants  *tenant.Registry
	complete Completer

	handshakeWindow time.Duration
	pingInterval    time.Duration
	pongGrace       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	stateMu sync.Mutex
	state   State

	workerIDMu sync.RWMutex
	workerID   string

	activity chan struct{}

	mgr     *Manager
	onClose func(s *Session) // manager hook: deregister from the Manager's table
}

func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(v State) {
	s.stateMu.Lock()
	s.state = v
	s.stateMu.Unlock()
}

// WorkerID returns the worker this session belongs to, once registered.
func (s *Session) WorkerID() string {
	s.workerIDMu.RLock()
	defer s.workerIDMu.RUnlock()
	return s.workerID
}

func (s *Session) setWorkerID(id string) {
	s.workerIDMu.Lock()
	s.workerID = id
	s.workerIDMu.Unlock()
}

// markActivity is called by the read loop on every successfully parsed
// frame; it resets the keep-alive deadline, since a pong or any other
// message resets it.
func (s *Session) markActivity() {
	select {
	case s.activity <- struct{}{}:
	default:
	}
}

// send serializes writes to the underlying connection: messages written
// to a single session are always serialized, one writer at a time.
func (s *Session) send(t wsproto.Type, v any) error {
	data, err := wsproto.Encode(t, v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// SendToolRequest writes a tool_request frame to this session. Called by
// the Invocation Router with its non-owning reference to the session.
func (s *Session) SendToolRequest(requestID, toolName string, args map[string]any) error {
	return s.send(wsproto.TypeToolRequest, wsproto.ToolRequestFrame{
		RequestID: requestID,
		ToolName:  toolName,
		Args:      args,
	})
}

// Close terminates the session with a normal-close reason. Safe to call
// from the Manager (claim-wins replacement) or from the session's own
// read loop (protocol error, keep-alive timeout).
func (s *Session) Close(reason string) {
	s.setState(Closed)
	_ = s.conn.Close(websocket.StatusNormalClosure, reason)
	s.cancel()
}

func (s *Session) closeWithStatus(code websocket.StatusCode, reason string) {
	s.setState(Closed)
	_ = s.conn.Close(code, reason)
	s.cancel()
}
