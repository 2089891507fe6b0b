package worker

import (
	"sort"
	"sync"
	"time"
)

// Registry is the single owner of Worker Records. All mutations run
// through its write mutex as a single writer lane; readers call Snapshot
// and operate on the returned immutable copy without holding any lock.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry returns an empty Worker Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Upsert transitions workerID's record to Connected, atomically replacing
// its tool list and binding it to sessionID. It creates the record on
// first sight. Returns the resulting record's value (a copy).
func (r *Registry) Upsert(workerID, workerToken string, tools []ToolSchema, sessionID string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	rec, exists := r.records[workerID]
	if !exists {
		rec = &Record{
			WorkerID:     workerID,
			WorkerToken:  workerToken,
			RegisteredAt: now,
		}
		r.records[workerID] = rec
	}

	toolsCopy := make([]ToolSchema, len(tools))
	copy(toolsCopy, tools)

	rec.WorkerToken = workerToken
	rec.Tools = toolsCopy
	rec.State = Connected
	rec.SessionID = sessionID
	rec.LastSeen = now

	return *rec.clone()
}

// MarkDisconnected transitions workerID's record to Disconnected, but
// only if its current session-id still equals sessionID — this guards
// against a stale close racing a claim-wins replacement. Returns true if
// the transition happened.
func (r *Registry) MarkDisconnected(workerID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[workerID]
	if !exists || rec.SessionID != sessionID {
		return false
	}
	rec.State = Disconnected
	rec.LastSeen = time.Now()
	return true
}

// Get returns a copy of workerID's record, or nil if never seen.
func (r *Registry) Get(workerID string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[workerID]
	if !ok {
		return nil
	}
	return rec.clone()
}

// Snapshot is an immutable point-in-time view of every known worker,
// safe for the HTTP surface and description generator to range over
// without further locking.
type Snapshot struct {
	records []Record
}

// Connected returns every record currently in the Connected state.
func (s Snapshot) Connected() []Record {
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.State == Connected {
			out = append(out, rec)
		}
	}
	return out
}

// All returns every known record, connected or not.
func (s Snapshot) All() []Record {
	return s.records
}

// Snapshot copies every known record under the write lock so callers get
// a consistent, lock-free view.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec.clone())
	}
	// Stable order by registration time so downstream first-come-wins
	// dedup (router candidate selection, description path generation) is
	// deterministic.
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return Snapshot{records: out}
}
