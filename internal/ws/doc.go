// Package ws routes asynchronous query-completion events to the browser
// sessions that are waiting for them.
//
// The package implements:
//   - Registry: process-wide correlation state (request id -> Session,
//     trace id -> request id, trace id -> cached query object)
//   - Bus: broadcast fan-out of engine events to every session dispatch loop
//   - Session: one accepted WebSocket connection with its liveness clock
//   - Handler: connection upgrade, read pump, liveness supervisor and the
//     per-session dispatch loop
//
// Every event published on the Bus is seen by every dispatch loop; only the
// loop whose session matches the event's resolved request id delivers it.
// This costs O(sessions) per event, which is acceptable while session counts
// stay small and events are infrequent relative to connections.
package ws
