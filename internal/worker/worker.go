// Package worker implements the worker registry: live worker records
// keyed by a stable worker-id derived from the worker's token.
package worker

import (
	"time"

	"github.com/toolbridge/dispatcher/internal/schema"
)

// ToolSchema describes one tool a worker offers.
type ToolSchema struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Params      schema.Schema `json:"parameters,omitempty"`
	Returns     schema.Schema `json:"returns,omitempty"`
}

// State is a worker record's connection state.
type State int

const (
	// Disconnected is the zero value so a freshly allocated Record never
	// accidentally reads as connected.
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Record is one worker's history within this process lifetime. Records
// are created on first successful registration and never destroyed —
// only the Session Layer, acting through Registry.Upsert/MarkDisconnected,
// mutates them.
type Record struct {
	WorkerID    string
	WorkerToken string
	Tools       []ToolSchema
	State       State
	SessionID   string
	LastSeen    time.Time

	// RegisteredAt is set once, on the first successful registration,
	// and never updated again. The Invocation Router and Description
	// Generator use it to break ties between multiple connected workers
	// offering the same tool name (first-come-wins).
	RegisteredAt time.Time
}

// HasTool reports whether the record's tool list contains name.
func (r *Record) HasTool(name string) bool {
	for _, t := range r.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// clone returns a value copy with its own Tools slice, and its own deep
// copy of each tool's Params/Returns schema, safe to hand to readers
// without further locking or risk of a later registration mutating a
// schema a snapshot reader is still holding.
func (r *Record) clone() *Record {
	cp := *r
	cp.Tools = make([]ToolSchema, len(r.Tools))
	for i, t := range r.Tools {
		t.Params = t.Params.Clone()
		t.Returns = t.Returns.Clone()
		cp.Tools[i] = t
	}
	return &cp
}
