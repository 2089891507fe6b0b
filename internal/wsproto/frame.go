// Package wsproto is the wire codec for session frames: a closed set of
// JSON-framed message types exchanged between the server and a worker
// over one duplex channel. Frames are modeled as a tagged sum rather than
// an inheritance hierarchy — a Type discriminant plus a raw payload the
// reader switches on.
package wsproto

import "encoding/json"

// Type is the closed set of frame kinds the session protocol exchanges.
type Type string

const (
	TypeRegister     Type = "register"
	TypeUnregister   Type = "unregister"
	TypeToolRequest  Type = "tool_request"
	TypeToolResponse Type = "tool_response"
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypeError        Type = "error"
)

// Envelope is the outer shape every frame shares on the wire: a type
// discriminant plus the type-specific payload, deferred as raw JSON until
// the reader knows which struct to decode it into.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"-"`
}

// envelopeWire is the actual JSON shape: every payload field is inlined
// at the top level (not nested under "payload"), matching how the other
// examples in the retrieval pack encode tagged frames.
type envelopeWire struct {
	Type      Type            `json:"type"`
	WorkerID  string          `json:"worker_id,omitempty"`
	WorkerTok string          `json:"worker_token,omitempty"`
	Tools     json.RawMessage `json:"tools,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// RegisterFrame is the worker→server `register` frame.
type RegisterFrame struct {
	WorkerID    string            `json:"worker_id"`
	WorkerToken string            `json:"worker_token"`
	Tools       []ToolDescription `json:"tools"`
}

// ToolDescription is one entry of a register frame's tools array.
type ToolDescription struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Returns     map[string]any `json:"returns,omitempty"`
}

// UnregisterFrame is the worker→server `unregister` frame.
type UnregisterFrame struct {
	WorkerID string `json:"worker_id"`
}

// ToolRequestFrame is the server→worker `tool_request` frame.
type ToolRequestFrame struct {
	RequestID string         `json:"request_id"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
}

// ToolResponseFrame is the worker→server `tool_response` frame. Exactly
// one of Result/Error is populated.
type ToolResponseFrame struct {
	RequestID string `json:"request_id"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PingFrame/PongFrame carry a millisecond Unix timestamp in either
// direction for the keep-alive loop.
type PingFrame struct {
	Timestamp int64 `json:"timestamp"`
}

type PongFrame struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorFrame is sent in either direction to report a protocol-level
// problem (e.g. an unknown message type), optionally correlated to a
// request-id.
type ErrorFrame struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Encode marshals one frame value into its full wire envelope.
func Encode(t Type, v any) ([]byte, error) {
	wire := envelopeWire{Type: t}

	switch f := v.(type) {
	case RegisterFrame:
		wire.WorkerID = f.WorkerID
		wire.WorkerTok = f.WorkerToken
		tools, err := json.Marshal(f.Tools)
		if err != nil {
			return nil, err
		}
		wire.Tools = tools
	case UnregisterFrame:
		wire.WorkerID = f.WorkerID
	case ToolRequestFrame:
		wire.RequestID = f.RequestID
		wire.ToolName = f.ToolName
		args, err := json.Marshal(f.Args)
		if err != nil {
			return nil, err
		}
		wire.Args = args
	case ToolResponseFrame:
		wire.RequestID = f.RequestID
		wire.Error = f.Error
		if f.Result != nil {
			result, err := json.Marshal(f.Result)
			if err != nil {
				return nil, err
			}
			wire.Result = result
		}
	case PingFrame:
		wire.Timestamp = f.Timestamp
	case PongFrame:
		wire.Timestamp = f.Timestamp
	case ErrorFrame:
		wire.Code = f.Code
		wire.Message = f.Message
		wire.RequestID = f.RequestID
	}

	return json.Marshal(wire)
}

// Decode parses a raw frame and returns its Type plus an Envelope whose
// Payload can be unmarshaled into the matching *Frame struct via
// DecodeRegister/DecodeToolResponse/etc below.
func Decode(data []byte) (Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, err
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: wire.Type, Payload: raw}, nil
}

// DecodeRegister parses env's payload as a RegisterFrame.
func DecodeRegister(env Envelope) (RegisterFrame, error) {
	var wire envelopeWire
	if err := json.Unmarshal(env.Payload, &wire); err != nil {
		return RegisterFrame{}, err
	}
	var tools []ToolDescription
	if len(wire.Tools) > 0 {
		if err := json.Unmarshal(wire.Tools, &tools); err != nil {
			return RegisterFrame{}, err
		}
	}
	return RegisterFrame{WorkerID: wire.WorkerID, WorkerToken: wire.WorkerTok, Tools: tools}, nil
}

// DecodeUnregister parses env's payload as an UnregisterFrame.
func DecodeUnregister(env Envelope) (UnregisterFrame, error) {
	var wire envelopeWire
	if err := json.Unmarshal(env.Payload, &wire); err != nil {
		return UnregisterFrame{}, err
	}
	return UnregisterFrame{WorkerID: wire.WorkerID}, nil
}

// DecodeToolResponse parses env's payload as a ToolResponseFrame.
func DecodeToolResponse(env Envelope) (ToolResponseFrame, error) {
	var wire envelopeWire
	if err := json.Unmarshal(env.Payload, &wire); err != nil {
		return ToolResponseFrame{}, err
	}
	var result any
	if len(wire.Result) > 0 {
		if err := json.Unmarshal(wire.Result, &result); err != nil {
			return ToolResponseFrame{}, err
		}
	}
	return ToolResponseFrame{RequestID: wire.RequestID, Result: result, Error: wire.Error}, nil
}

// DecodePing parses env's payload as a PingFrame.
func DecodePing(env Envelope) (PingFrame, error) {
	var wire envelopeWire
	if err := json.Unmarshal(env.Payload, &wire); err != nil {
		return PingFrame{}, err
	}
	return PingFrame{Timestamp: wire.Timestamp}, nil
}
