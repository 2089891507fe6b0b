package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/toolbridge/dispatcher/internal/config"
	"github.com/toolbridge/dispatcher/internal/dispatcherr"
	"github.com/toolbridge/dispatcher/internal/idhash"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

// fakeSender records every SendToolRequest call and lets tests script a
// canned error or a synchronous reply via onSend.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string // sessionIDs sent to, in order
	sendErr error
	onSend  func(sessionID, requestID string)
}

func (f *fakeSender) SendToolRequest(sessionID, requestID, toolName string, args map[string]any) error {
	f.mu.Lock()
	f.sent = append(f.sent, sessionID)
	onSend := f.onSend
	sendErr := f.sendErr
	f.mu.Unlock()

	if onSend != nil {
		onSend(sessionID, requestID)
	}
	return sendErr
}

func newTestTenant(t *testing.T, bearer string, allowed ...string) (*tenant.Registry, *tenant.Tenant) {
	t.Helper()
	reg, err := tenant.New([]config.APISpace{{
		Name:                "acme",
		BearerToken:         bearer,
		AllowedClientTokens: allowed,
	}})
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return reg, reg.GetByToken(bearer)
}

func TestInvoke_NoCandidates_ToolNotFound(t *testing.T) {
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", "worker-tok-aaaaaaaaaaaaaaaaaaaaaa")
	workers := worker.NewRegistry()
	r := New(workers, tenants, 50*time.Millisecond, zerolog.Nop())
	r.SetSender(&fakeSender{})

	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeToolNotFound {
		t.Fatalf("expected TOOL_NOT_FOUND, got %+v", apiErr)
	}
}

func TestInvoke_CandidateNotAdmitted_ToolNotFound(t *testing.T) {
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", "admitted-worker-tok-aaaaaaaaaaaaa")
	workers := worker.NewRegistry()
	workers.Upsert("w1", "not-admitted-worker-token-bbbbbbbb", []worker.ToolSchema{{Name: "echo"}}, "sess1")

	r := New(workers, tenants, 50*time.Millisecond, zerolog.Nop())
	r.SetSender(&fakeSender{})
	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeToolNotFound {
		t.Fatalf("expected TOOL_NOT_FOUND for unadmitted worker, got %+v", apiErr)
	}
}

func TestInvoke_SingleCandidate_SuccessfulReply(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	sender := &fakeSender{}
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(sender)

	sender.onSend = func(sessionID, requestID string) {
		go r.Complete(requestID, map[string]any{"ok": true}, "")
	}

	result, apiErr := r.Invoke(context.Background(), ten, "echo", map[string]any{"x": 1}, 0)
	if apiErr != nil {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	m, ok := result.(map[string]any)
	if !ok || m["ok"] != true {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "sess1" {
		t.Fatalf("expected exactly one send to sess1, got %+v", sender.sent)
	}
}

func TestInvoke_WorkerErrorReply_ToolExecutionError(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	sender := &fakeSender{}
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(sender)
	sender.onSend = func(sessionID, requestID string) {
		go r.Complete(requestID, nil, "boom")
	}

	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeToolExecutionError || apiErr.Message != "boom" {
		t.Fatalf("expected TOOL_EXECUTION_ERROR(boom), got %+v", apiErr)
	}
}

func TestInvoke_SendFails_WorkerDisconnected(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	sender := &fakeSender{sendErr: errors.New("session gone")}
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(sender)

	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeWorkerDisconnected {
		t.Fatalf("expected WORKER_DISCONNECTED, got %+v", apiErr)
	}
}

func TestInvoke_DeadlineExceeded_Timeout(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	r := New(workers, tenants, time.Hour, zerolog.Nop())
	r.SetSender(&fakeSender{})
	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 20*time.Millisecond)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %+v", apiErr)
	}
}

func TestInvoke_ContextCancelled_ClientCancelled(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	r := New(workers, tenants, time.Hour, zerolog.Nop())
	r.SetSender(&fakeSender{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, apiErr := r.Invoke(ctx, ten, "echo", nil, 0)
	if apiErr == nil || apiErr.Code != dispatcherr.CodeClientCancelled {
		t.Fatalf("expected CLIENT_CANCELLED, got %+v", apiErr)
	}
}

func TestInvoke_MultipleCandidates_AffinityWins(t *testing.T) {
	tenantBearer := "tenant-bearer-token-aaaaaaaaaaaaaaaa"
	affinityID := idhash.WorkerID(tenantBearer)

	workerA := "admitted-worker-tok-aaaaaaaaaaaaaAA"
	workerB := "admitted-worker-tok-aaaaaaaaaaaaaBB"
	tenants, ten := newTestTenant(t, tenantBearer, workerA, workerB)

	workers := worker.NewRegistry()
	workers.Upsert("other-id", workerA, []worker.ToolSchema{{Name: "echo"}}, "sess-a")
	// Register the affinity-matching worker-id second, so registration
	// order alone would pick sess-a; affinity must override it.
	workers.Upsert(affinityID, workerB, []worker.ToolSchema{{Name: "echo"}}, "sess-b")

	sender := &fakeSender{}
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(sender)
	sender.onSend = func(sessionID, requestID string) {
		go r.Complete(requestID, "ok", "")
	}

	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr != nil {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "sess-b" {
		t.Fatalf("expected affinity worker's session sess-b, got %+v", sender.sent)
	}
}

func TestInvoke_MultipleCandidatesNoAffinity_EarliestRegisteredWins(t *testing.T) {
	tenantBearer := "tenant-bearer-token-aaaaaaaaaaaaaaaa"
	workerA := "admitted-worker-tok-aaaaaaaaaaaaaAA"
	workerB := "admitted-worker-tok-aaaaaaaaaaaaaBB"
	tenants, ten := newTestTenant(t, tenantBearer, workerA, workerB)

	workers := worker.NewRegistry()
	workers.Upsert("w-first", workerA, []worker.ToolSchema{{Name: "echo"}}, "sess-first")
	time.Sleep(time.Millisecond)
	workers.Upsert("w-second", workerB, []worker.ToolSchema{{Name: "echo"}}, "sess-second")

	sender := &fakeSender{}
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(sender)
	sender.onSend = func(sessionID, requestID string) {
		go r.Complete(requestID, "ok", "")
	}

	_, apiErr := r.Invoke(context.Background(), ten, "echo", nil, 0)
	if apiErr != nil {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "sess-first" {
		t.Fatalf("expected earliest-registered sess-first, got %+v", sender.sent)
	}
}

func TestFailSession_Replaced_FailsPendingWithWorkerReplaced(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	var capturedRequestID string
	sender := &fakeSender{}
	r := New(workers, tenants, time.Hour, zerolog.Nop())
	r.SetSender(sender)
	sender.onSend = func(sessionID, requestID string) {
		capturedRequestID = requestID
	}

	done := make(chan struct{})
	var apiErr *dispatcherr.Error
	go func() {
		_, apiErr = r.Invoke(context.Background(), ten, "echo", nil, 0)
		close(done)
	}()

	// Give Invoke a moment to register the pending invocation before we
	// fail its session out from under it.
	time.Sleep(10 * time.Millisecond)
	r.FailSession("sess1", session.ReasonReplaced)
	<-done

	if capturedRequestID == "" {
		t.Fatal("expected SendToolRequest to have been called")
	}
	if apiErr == nil || apiErr.Code != dispatcherr.CodeWorkerReplaced {
		t.Fatalf("expected WORKER_REPLACED, got %+v", apiErr)
	}
}

func TestShutdown_FailsAllPendingWithServerShutdown(t *testing.T) {
	workerToken := "admitted-worker-tok-aaaaaaaaaaaaa"
	tenants, ten := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", workerToken)
	workers := worker.NewRegistry()
	workers.Upsert("w1", workerToken, []worker.ToolSchema{{Name: "echo"}}, "sess1")

	sender := &fakeSender{}
	r := New(workers, tenants, time.Hour, zerolog.Nop())
	r.SetSender(sender)

	done := make(chan struct{})
	var apiErr *dispatcherr.Error
	go func() {
		_, apiErr = r.Invoke(context.Background(), ten, "echo", nil, 0)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	r.Shutdown()
	<-done

	if apiErr == nil || apiErr.Code != dispatcherr.CodeWorkerDisconnected {
		t.Fatalf("expected ServerShutdown (WORKER_DISCONNECTED code), got %+v", apiErr)
	}
}

func TestComplete_UnknownRequestID_Discarded(t *testing.T) {
	tenants, _ := newTestTenant(t, "tenant-bearer-token-aaaaaaaaaaaaaaaa", "admitted-worker-tok-aaaaaaaaaaaaa")
	workers := worker.NewRegistry()
	r := New(workers, tenants, time.Second, zerolog.Nop())
	r.SetSender(&fakeSender{})

	// Must not panic on an unrecognized id.
	r.Complete("does-not-exist", "result", "")
}
