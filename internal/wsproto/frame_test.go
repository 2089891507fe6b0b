package wsproto

import "testing"

func TestRegisterFrame_RoundTrip(t *testing.T) {
	orig := RegisterFrame{
		WorkerID:    "abc",
		WorkerToken: "w-token",
		Tools: []ToolDescription{
			{Name: "echo", Description: "echoes input", Parameters: map[string]any{"type": "object"}},
		},
	}
	raw, err := Encode(TypeRegister, orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeRegister {
		t.Fatalf("expected register type, got %s", env.Type)
	}
	got, err := DecodeRegister(env)
	if err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if got.WorkerID != orig.WorkerID || got.WorkerToken != orig.WorkerToken {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, orig)
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != "echo" {
		t.Fatalf("expected echo tool, got %+v", got.Tools)
	}
}

func TestToolResponseFrame_RoundTripSuccess(t *testing.T) {
	orig := ToolResponseFrame{RequestID: "r1", Result: map[string]any{"ok": true}}
	raw, err := Encode(TypeToolResponse, orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := DecodeToolResponse(env)
	if err != nil {
		t.Fatalf("decode tool response: %v", err)
	}
	if got.RequestID != "r1" {
		t.Fatalf("expected r1, got %s", got.RequestID)
	}
	m, ok := got.Result.(map[string]any)
	if !ok || m["ok"] != true {
		t.Fatalf("expected result ok=true, got %+v", got.Result)
	}
}

func TestToolResponseFrame_RoundTripError(t *testing.T) {
	orig := ToolResponseFrame{RequestID: "r2", Error: "bad input"}
	raw, err := Encode(TypeToolResponse, orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := DecodeToolResponse(env)
	if err != nil {
		t.Fatalf("decode tool response: %v", err)
	}
	if got.Error != "bad input" || got.Result != nil {
		t.Fatalf("expected error-only response, got %+v", got)
	}
}

func TestUnknownType_DecodesEnvelopeOnly(t *testing.T) {
	env, err := Decode([]byte(`{"type":"bogus"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "bogus" {
		t.Fatalf("expected bogus type, got %s", env.Type)
	}
}

func TestPingFrame_RoundTrip(t *testing.T) {
	raw, err := Encode(TypePing, PingFrame{Timestamp: 12345})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := DecodePing(env)
	if err != nil {
		t.Fatalf("decode ping: %v", err)
	}
	if got.Timestamp != 12345 {
		t.Fatalf("expected 12345, got %d", got.Timestamp)
	}
}
