package logging

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const ringCapacity = 500

// Entry is one captured log line, shaped for GET /logs/events consumers.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// RingBuffer retains the last ringCapacity log entries and fans them out
// to live subscribers (the admin facet's SSE handler) as a multi-subscriber
// backlog-plus-live feed.
type RingBuffer struct {
	mu          sync.Mutex
	entries     []Entry
	subscribers map[chan Entry]struct{}
}

// NewRingBuffer returns an empty ring buffer.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{subscribers: make(map[chan Entry]struct{})}
}

// Hook returns a zerolog.Hook that appends every logged event to the
// buffer. Installed once on the root logger via Logger.Hook(rb.Hook()).
func (rb *RingBuffer) Hook() zerolog.Hook {
	return ringHook{rb: rb}
}

type ringHook struct{ rb *RingBuffer }

func (h ringHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level == zerolog.NoLevel {
		return
	}
	h.rb.append(Entry{Time: time.Now(), Level: level.String(), Message: msg})
}

func (rb *RingBuffer) append(e Entry) {
	rb.mu.Lock()
	rb.entries = append(rb.entries, e)
	if len(rb.entries) > ringCapacity {
		rb.entries = rb.entries[len(rb.entries)-ringCapacity:]
	}
	subs := make([]chan Entry, 0, len(rb.subscribers))
	for ch := range rb.subscribers {
		subs = append(subs, ch)
	}
	rb.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default: // slow subscriber drops the live event; backlog replay covers it next time
		}
	}
}

// Snapshot returns a copy of the currently retained entries, oldest first.
func (rb *RingBuffer) Snapshot() []Entry {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]Entry, len(rb.entries))
	copy(out, rb.entries)
	return out
}

// Subscribe registers a new live feed and returns it plus an unsubscribe
// func the caller must invoke when done (typically on request context
// cancellation).
func (rb *RingBuffer) Subscribe() (ch chan Entry, unsubscribe func()) {
	ch = make(chan Entry, 32)
	rb.mu.Lock()
	rb.subscribers[ch] = struct{}{}
	rb.mu.Unlock()

	return ch, func() {
		rb.mu.Lock()
		delete(rb.subscribers, ch)
		rb.mu.Unlock()
		close(ch)
	}
}
