package model

import (
	"encoding/json"
	"fmt"
)

// ClientMessageType identifies the variant of a client trace registration.
type ClientMessageType string

const (
	// ClientMessageSearch declares a trace for a search query. Its query
	// object is cached so the later QueryEnqueued event can be reunited
	// with it.
	ClientMessageSearch ClientMessageType = "search"

	// ClientMessageValues declares a trace for a field-values query. No
	// query object is cached.
	ClientMessageValues ClientMessageType = "values"
)

// ClientMessage is a trace registration sent by the browser over an open
// WebSocket session. Every variant carries the trace id the client expects a
// result for.
type ClientMessage struct {
	Type    ClientMessageType `json:"type"`
	TraceID string            `json:"trace_id"`
	Query   json.RawMessage   `json:"query,omitempty"`
}

// ParseClientMessage decodes and validates a client text frame. Unknown
// variants and messages without a trace id are rejected; the caller drops the
// frame without closing the connection.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TraceID == "" {
		return nil, ErrTraceIDRequired
	}
	switch msg.Type {
	case ClientMessageSearch, ClientMessageValues:
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}
