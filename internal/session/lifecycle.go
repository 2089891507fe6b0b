package session

import (
	"context"
	"time"

	"github.com/toolbridge/dispatcher/internal/idhash"
	"github.com/toolbridge/dispatcher/internal/worker"
	"github.com/toolbridge/dispatcher/internal/wsproto"
	"nhooyr.io/websocket"
)

// run drives the full Opened → Active → Closed lifecycle for one session.
// It blocks until the session closes for any reason.
func (s *Session) run() {
	defer s.cleanup()

	if !s.awaitRegister() {
		return
	}

	s.setState(Active)
	go s.keepAlive()
	s.readLoop()
}

// awaitRegister blocks for at most handshakeWindow waiting for the first
// frame, which must be a valid `register`. Returns false (and has already
// closed the session) on timeout, malformed frame, wrong first frame
// type, or a worker_id/worker_token mismatch.
func (s *Session) awaitRegister() bool {
	ctx, cancel := context.WithTimeout(s.ctx, s.handshakeWindow)
	defer cancel()

	_, data, err := s.conn.Read(ctx)
	if err != nil {
		s.closeWithStatus(websocket.StatusPolicyViolation, "handshake timeout")
		return false
	}

	env, err := wsproto.Decode(data)
	if err != nil || env.Type != wsproto.TypeRegister {
		_ = s.send(wsproto.TypeError, wsproto.ErrorFrame{
			Code:    "INVALID_PAYLOAD",
			Message: "first frame must be register",
		})
		s.closeWithStatus(websocket.StatusPolicyViolation, "expected register")
		return false
	}

	reg, err := wsproto.DecodeRegister(env)
	if err != nil {
		s.closeWithStatus(websocket.StatusPolicyViolation, "malformed register")
		return false
	}

	if reg.WorkerID != idhash.WorkerID(reg.WorkerToken) {
		_ = s.send(wsproto.TypeError, wsproto.ErrorFrame{
			Code:    "INVALID_PAYLOAD",
			Message: "worker_id does not match sha256(worker_token)",
		})
		s.closeWithStatus(websocket.StatusPolicyViolation, "worker_id mismatch")
		return false
	}

	if admitters := s.tenants.TenantsAdmitting(reg.WorkerToken); len(admitters) == 0 {
		s.log.Warn().Str("worker_id", reg.WorkerID).Msg("worker token admitted by zero tenants; connecting but not dispatchable")
	}

	s.claimAndRegister(reg)
	s.setWorkerID(reg.WorkerID)
	s.markActivity()
	return true
}

// claimAndRegister implements claim-wins: if another session already owns
// this worker-id, it is closed and its pending invocations failed with
// WorkerReplaced before the new record is committed.
func (s *Session) claimAndRegister(reg wsproto.RegisterFrame) {
	if existing := s.workers.Get(reg.WorkerID); existing != nil && existing.State == worker.Connected && existing.SessionID != s.ID {
		oldSessionID := existing.SessionID
		// Fail first: closing the old session triggers its own cleanup,
		// which would otherwise fail the same invocations as disconnected.
		s.complete.FailSession(oldSessionID, ReasonReplaced)
		if s.mgr != nil {
			s.mgr.closeSession(oldSessionID, "replaced")
		}
	}

	tools := make([]worker.ToolSchema, 0, len(reg.Tools))
	for _, t := range reg.Tools {
		tools = append(tools, worker.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Params:      t.Parameters,
			Returns:     t.Returns,
		})
	}
	s.workers.Upsert(reg.WorkerID, reg.WorkerToken, tools, s.ID)
}

func (s *Session) readLoop() {
	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		s.markActivity()

		env, err := wsproto.Decode(data)
		if err != nil {
			_ = s.send(wsproto.TypeError, wsproto.ErrorFrame{Code: "INVALID_PAYLOAD", Message: "malformed frame"})
			continue
		}

		switch env.Type {
		case wsproto.TypeToolResponse:
			resp, err := wsproto.DecodeToolResponse(env)
			if err != nil {
				_ = s.send(wsproto.TypeError, wsproto.ErrorFrame{Code: "INVALID_PAYLOAD", Message: "malformed tool_response"})
				continue
			}
			s.complete.Complete(resp.RequestID, resp.Result, resp.Error)
		case wsproto.TypeUnregister:
			unreg, err := wsproto.DecodeUnregister(env)
			if err == nil {
				s.workers.MarkDisconnected(unreg.WorkerID, s.ID)
			}
			s.Close("unregistered")
			return
		case wsproto.TypePing:
			ping, _ := wsproto.DecodePing(env)
			_ = s.send(wsproto.TypePong, wsproto.PongFrame{Timestamp: ping.Timestamp})
		case wsproto.TypePong:
			// activity already marked above; nothing else to do.
		default:
			_ = s.send(wsproto.TypeError, wsproto.ErrorFrame{
				Code:    "INVALID_PAYLOAD",
				Message: "unknown frame type: " + string(env.Type),
			})
		}
	}
}

// keepAlive sends a ping every pingInterval and terminates the session if
// no activity (pong or otherwise) is observed within pongGrace after it.
func (s *Session) keepAlive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			// Discard activity seen before this ping so only frames that
			// arrive after it count toward the pong deadline.
			select {
			case <-s.activity:
			default:
			}
			if err := s.send(wsproto.TypePing, wsproto.PingFrame{Timestamp: time.Now().UnixMilli()}); err != nil {
				return
			}
			select {
			case <-s.activity:
			case <-time.After(s.pongGrace):
				s.closeWithStatus(websocket.StatusPolicyViolation, "keep-alive timeout")
				return
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// cleanup runs exactly once when the session's goroutines exit for any
// reason: it marks the worker disconnected (guarded by session-id),
// fails routed pending invocations, and lets the Manager deregister it.
func (s *Session) cleanup() {
	s.setState(Closed)
	if id := s.WorkerID(); id != "" {
		s.workers.MarkDisconnected(id, s.ID)
	}
	s.complete.FailSession(s.ID, ReasonDisconnected)
	if s.onClose != nil {
		s.onClose(s)
	}
}
