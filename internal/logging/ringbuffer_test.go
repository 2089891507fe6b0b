package logging

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRingBuffer_CapsAtCapacity(t *testing.T) {
	rb := NewRingBuffer()
	for i := 0; i < ringCapacity+10; i++ {
		rb.append(Entry{Time: time.Now(), Level: "info", Message: "x"})
	}
	if got := len(rb.Snapshot()); got != ringCapacity {
		t.Fatalf("expected capped at %d entries, got %d", ringCapacity, got)
	}
}

func TestRingBuffer_SubscribeReceivesLiveAppends(t *testing.T) {
	rb := NewRingBuffer()
	ch, unsubscribe := rb.Subscribe()
	defer unsubscribe()

	rb.append(Entry{Message: "hello"})

	select {
	case e := <-ch:
		if e.Message != "hello" {
			t.Fatalf("expected hello, got %q", e.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber to receive append")
	}
}

func TestRingBuffer_UnsubscribeClosesChannel(t *testing.T) {
	rb := NewRingBuffer()
	ch, unsubscribe := rb.Subscribe()
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHook_IgnoresNoLevelEvents(t *testing.T) {
	rb := NewRingBuffer()
	hook := ringHook{rb: rb}
	// zerolog.NoLevel events (e.g. Log()) must not pollute the buffer.
	hook.Run(nil, zerolog.NoLevel, "should be ignored")
	if len(rb.Snapshot()) != 0 {
		t.Fatalf("expected NoLevel event to be ignored, got %+v", rb.Snapshot())
	}
}
