// Package router maps (tenant, tool-name) to a connected, admitted
// worker, forwards the call over that worker's session, and multiplexes
// replies back to the waiting HTTP handler by request-id.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/dispatcherr"
	"github.com/toolbridge/dispatcher/internal/idhash"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

// sender is the narrow slice of *session.Manager the router depends on —
// writing a tool_request to a session by id. Declared as an interface so
// router tests can substitute a fake without standing up real websockets.
type sender interface {
	SendToolRequest(sessionID, requestID, toolName string, args map[string]any) error
}

// reply is what a pendingInvocation's one-shot completion slot (a
// buffered, capacity-1 channel) carries: exactly one of result/err is
// meaningful.
type reply struct {
	result any
	err    *dispatcherr.Error
}

type pendingInvocation struct {
	workerID  string
	sessionID string
	replyCh   chan reply
}

// Router owns every pending invocation; it holds a non-owning reference
// to the session layer used only for transmission.
type Router struct {
	workers        *worker.Registry
	tenants        *tenant.Registry
	sessions       sender
	defaultTimeout time.Duration
	log            zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingInvocation
}

// New builds a Router wired to the shared registries and the default
// per-call deadline (30s). The Session Manager is a separate
// construction-time dependency (see SetSender) since the Session Layer
// needs a handle back to the Router as its Completer — neither side can
// be fully built before the other.
func New(workers *worker.Registry, tenants *tenant.Registry, defaultTimeout time.Duration, log zerolog.Logger) *Router {
	return &Router{
		workers:        workers,
		tenants:        tenants,
		defaultTimeout: defaultTimeout,
		log:            log,
		pending:        make(map[string]*pendingInvocation),
	}
}

// SetSender binds the Session Manager's send path once it has been
// constructed with this Router as its Completer, breaking the
// Router↔Manager construction cycle. Must be called exactly once, before
// the Router serves any Invoke calls.
func (r *Router) SetSender(sessions sender) {
	r.sessions = sessions
}

// Invoke selects a worker, dispatches a tool_request, and awaits the
// matching tool_response end to end. deadline of zero uses the router's
// default timeout.
func (r *Router) Invoke(ctx context.Context, t *tenant.Tenant, toolName string, args map[string]any, deadline time.Duration) (any, *dispatcherr.Error) {
	if deadline <= 0 {
		deadline = r.defaultTimeout
	}

	rec := r.selectWorker(t, toolName)
	if rec == nil {
		return nil, dispatcherr.ToolNotFound(toolName)
	}

	requestID := uuid.NewString()
	p := &pendingInvocation{
		workerID:  rec.WorkerID,
		sessionID: rec.SessionID,
		replyCh:   make(chan reply, 1),
	}

	r.mu.Lock()
	r.pending[requestID] = p
	r.mu.Unlock()

	if err := r.sessions.SendToolRequest(rec.SessionID, requestID, toolName, args); err != nil {
		r.removePending(requestID)
		return nil, dispatcherr.WorkerDisconnected()
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case rep := <-p.replyCh:
		if rep.err != nil {
			return nil, rep.err
		}
		return rep.result, nil
	case <-timer.C:
		r.removePending(requestID)
		r.log.Warn().Str("request_id", requestID).Str("tool", toolName).Msg("invocation timed out")
		return nil, dispatcherr.Timeout()
	case <-ctx.Done():
		r.removePending(requestID)
		return nil, dispatcherr.ClientCancelled()
	}
}

// selectWorker narrows to connected, admitted, tool-offering candidates,
// then prefers the tenant's own worker-id when multiple candidates exist,
// else the earliest-registered one.
func (r *Router) selectWorker(t *tenant.Tenant, toolName string) *worker.Record {
	snapshot := r.workers.Snapshot()
	var candidates []worker.Record
	for _, rec := range snapshot.Connected() {
		if !r.tenants.Admits(t, rec.WorkerToken) {
			continue
		}
		if !rec.HasTool(toolName) {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}

	affinityID := idhash.WorkerID(t.BearerToken)
	for i := range candidates {
		if candidates[i].WorkerID == affinityID {
			return &candidates[i]
		}
	}
	// Snapshot() already orders by RegisteredAt ascending, so the first
	// remaining candidate is the earliest-registered still-connected one.
	return &candidates[0]
}

func (r *Router) removePending(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}

// Complete implements session.Completer: it delivers a tool_response to
// its matching Pending Invocation, if one is still outstanding. A late
// reply after timeout/cancellation finds no entry and is dropped.
func (r *Router) Complete(requestID string, result any, workerErr string) {
	r.mu.Lock()
	p, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("request_id", requestID).Msg("tool_response for unknown or already-resolved request; discarding")
		return
	}

	if workerErr != "" {
		p.replyCh <- reply{err: dispatcherr.ToolExecutionError(workerErr)}
		return
	}
	p.replyCh <- reply{result: result}
}

// FailSession implements session.Completer: it fails every Pending
// Invocation routed through sessionID. Idempotent — entries are removed
// as they're failed, so a second call (explicit replacement followed by
// the old session's own close cleanup) is a no-op.
func (r *Router) FailSession(sessionID string, reason session.FailReason) {
	r.mu.Lock()
	var toFail []*pendingInvocation
	for rid, p := range r.pending {
		if p.sessionID == sessionID {
			toFail = append(toFail, p)
			delete(r.pending, rid)
		}
	}
	r.mu.Unlock()

	var errOut *dispatcherr.Error
	switch reason {
	case session.ReasonReplaced:
		errOut = dispatcherr.WorkerReplaced()
	default:
		errOut = dispatcherr.WorkerDisconnected()
	}
	for _, p := range toFail {
		p.replyCh <- reply{err: errOut}
	}
}

// Shutdown fails every outstanding invocation with ServerShutdown, used
// by the graceful-stop sequence before the listener force-closes.
func (r *Router) Shutdown() {
	r.mu.Lock()
	all := make([]*pendingInvocation, 0, len(r.pending))
	for rid, p := range r.pending {
		all = append(all, p)
		delete(r.pending, rid)
	}
	r.mu.Unlock()

	for _, p := range all {
		p.replyCh <- reply{err: dispatcherr.ServerShutdown()}
	}
}
