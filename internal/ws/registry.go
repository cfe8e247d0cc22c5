package ws

import (
	"encoding/json"
	"sync"
)

// Registry holds the correlation state for all live sessions in the process.
// Every operation is a single short critical section; no operation fails on a
// missing key, absence is reported through the second return value.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session        // request id -> session
	traces   map[string]string          // trace id -> request id
	queries  map[string]json.RawMessage // trace id -> cached query object
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		traces:   make(map[string]string),
		queries:  make(map[string]json.RawMessage),
	}
}

// RegisterSession stores the session under its request id, overwriting any
// prior entry (last writer wins). The superseded session, if any, is returned
// so the caller can close it and unwind its supervisor.
func (r *Registry) RegisterSession(requestID string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.sessions[requestID]
	r.sessions[requestID] = s
	return prior
}

// LookupSession returns the live session for the request id.
func (r *Registry) LookupSession(requestID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[requestID]
	return s, ok
}

// UnregisterSession removes the session entry for the request id.
func (r *Registry) UnregisterSession(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, requestID)
}

// releaseSession removes the entry for the request id only if it still maps
// to s. A session superseded by a reconnect must not evict its replacement
// while its own loops unwind.
func (r *Registry) releaseSession(requestID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[requestID] == s {
		delete(r.sessions, requestID)
	}
}

// RegisterTrace records that the session addressed by requestID is awaiting
// the result for traceID. A trace resolves to at most one request id; a
// re-registration overwrites.
func (r *Registry) RegisterTrace(traceID, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[traceID] = requestID
}

// ResolveTrace returns the request id awaiting the trace.
func (r *Registry) ResolveTrace(traceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	requestID, ok := r.traces[traceID]
	return requestID, ok
}

// RetireTrace removes the trace correlation after a successful delivery,
// guaranteeing at-most-once delivery per trace.
func (r *Registry) RetireTrace(traceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, traceID)
}

// CacheQuery stores the query object attached to a search declaration so the
// later QueryEnqueued event can be reunited with it.
func (r *Registry) CacheQuery(traceID string, query json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[traceID] = query
}

// TakeQuery is a consuming read: it returns the cached query for the trace
// and removes the entry on a hit.
func (r *Registry) TakeQuery(traceID string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query, ok := r.queries[traceID]
	if ok {
		delete(r.queries, traceID)
	}
	return query, ok
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
