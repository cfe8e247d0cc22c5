package model

import (
	"encoding/json"
)

// EventPayloadType identifies the variant of an event payload.
type EventPayloadType string

const (
	// PayloadQueryEnqueued signals that a query was accepted by the query
	// engine. It is merged with the cached query object before delivery.
	PayloadQueryEnqueued EventPayloadType = "QueryEnqueued"

	// PayloadQueryResult carries a finished query result and is delivered
	// to the client verbatim.
	PayloadQueryResult EventPayloadType = "QueryResult"
)

// Event is a job-completion notification produced by the query engine and
// broadcast to every session dispatch loop. Only the session whose request id
// resolves from TraceID acts on it.
type Event struct {
	UserID  string          `json:"user_id"`
	TraceID string          `json:"trace_id"`
	Payload json.RawMessage `json:"payload"`
}

// payloadTag is the discriminator common to all payload variants.
type payloadTag struct {
	Type EventPayloadType `json:"type"`
}

// PayloadType returns the payload variant tag, or an empty type if the
// payload is missing or untagged.
func (e *Event) PayloadType() EventPayloadType {
	var tag payloadTag
	if err := json.Unmarshal(e.Payload, &tag); err != nil {
		return ""
	}
	return tag.Type
}

// WithQuery returns a copy of the event whose payload carries the given
// query object under the "query" key. The original event is not modified.
func (e Event) WithQuery(query json.RawMessage) (Event, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return e, err
	}
	if payload == nil {
		payload = make(map[string]json.RawMessage)
	}
	payload["query"] = query

	merged, err := json.Marshal(payload)
	if err != nil {
		return e, err
	}
	e.Payload = merged
	return e, nil
}
