package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEventPayloadType(t *testing.T) {
	ev := Event{Payload: json.RawMessage(`{"type":"QueryEnqueued"}`)}
	if got := ev.PayloadType(); got != PayloadQueryEnqueued {
		t.Fatalf("expected QueryEnqueued, got %q", got)
	}

	ev = Event{Payload: json.RawMessage(`{"type":"QueryResult","hits":[]}`)}
	if got := ev.PayloadType(); got != PayloadQueryResult {
		t.Fatalf("expected QueryResult, got %q", got)
	}

	ev = Event{Payload: json.RawMessage(`not json`)}
	if got := ev.PayloadType(); got != "" {
		t.Fatalf("expected empty type for malformed payload, got %q", got)
	}
}

func TestEventWithQueryMergesPayload(t *testing.T) {
	ev := Event{
		UserID:  "u1",
		TraceID: "t1",
		Payload: json.RawMessage(`{"type":"QueryEnqueued"}`),
	}

	merged, err := ev.WithQuery(json.RawMessage(`{"q":"x"}`))
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(merged.Payload, &payload); err != nil {
		t.Fatalf("bad merged payload: %v", err)
	}
	if string(payload["type"]) != `"QueryEnqueued"` {
		t.Fatalf("type lost in merge: %s", merged.Payload)
	}
	if string(payload["query"]) != `{"q":"x"}` {
		t.Fatalf("query not merged: %s", merged.Payload)
	}

	// The receiver is untouched.
	if string(ev.Payload) != `{"type":"QueryEnqueued"}` {
		t.Fatalf("original event mutated: %s", ev.Payload)
	}
}

func TestEventWithQueryRejectsNonObjectPayload(t *testing.T) {
	ev := Event{Payload: json.RawMessage(`[1,2,3]`)}
	if _, err := ev.WithQuery(json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error merging into a non-object payload")
	}
}

func TestParseClientMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"trace_id":"t1","type":"search","query":{"q":"x"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msg.Type != ClientMessageSearch || msg.TraceID != "t1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if string(msg.Query) != `{"q":"x"}` {
		t.Fatalf("query not preserved: %s", msg.Query)
	}

	msg, err = ParseClientMessage([]byte(`{"trace_id":"t2","type":"values"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msg.Type != ClientMessageValues || msg.Query != nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseClientMessageRejections(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}

	_, err := ParseClientMessage([]byte(`{"type":"search"}`))
	if !errors.Is(err, ErrTraceIDRequired) {
		t.Fatalf("expected ErrTraceIDRequired, got %v", err)
	}

	_, err = ParseClientMessage([]byte(`{"trace_id":"t1","type":"mystery"}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}
