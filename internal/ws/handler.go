package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/querystream-gateway/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Liveness ping cadence.
	defaultPingInterval = 10 * time.Second

	// A session whose liveness clock falls further behind than this is
	// force-closed, independent of the ping cadence.
	defaultPongTimeout = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Depth of the per-session frame channel between read pump and
	// dispatch loop.
	frameBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is left to the deployment proxy.
		return true
	},
}

// Config tunes the per-session timing. Zero values fall back to the
// defaults; tests shrink them.
type Config struct {
	WriteWait    time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriteWait == 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = defaultPongTimeout
	}
	return c
}

// frameKind classifies inbound frames for the dispatch loop.
type frameKind int

const (
	frameText frameKind = iota
	framePing
	framePong
	frameClose
	frameUnsupported
)

// frame is one inbound client frame, surfaced to the dispatch loop over the
// session's frame channel.
type frame struct {
	kind frameKind
	data []byte
}

// Handler accepts WebSocket sessions and runs their read pump, liveness
// supervisor and dispatch loop against the shared Registry and Bus.
type Handler struct {
	registry *Registry
	bus      *Bus
	cfg      Config
}

// NewHandler creates a Handler over the shared registry and bus.
func NewHandler(registry *Registry, bus *Bus, cfg Config) *Handler {
	return &Handler{
		registry: registry,
		bus:      bus,
		cfg:      cfg.withDefaults(),
	}
}

// Registry returns the shared correlation registry.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// Bus returns the shared event bus.
func (h *Handler) Bus() *Bus {
	return h.bus
}

// HandleConnection upgrades the HTTP request and starts the session's three
// goroutines. A session that reuses a live request id supersedes it; the
// prior session is closed so its supervisor and loops unwind.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, userID, requestID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	log.Printf("ws: session opened user_id=%s request_id=%s", userID, requestID)

	session := NewSession(conn, userID, requestID, h.cfg.WriteWait)
	if prior := h.registry.RegisterSession(requestID, session); prior != nil {
		log.Printf("ws: request_id=%s reused, superseding prior session", requestID)
		prior.Close()
	}

	frames := make(chan frame, frameBuffer)
	go h.readPump(session, frames)
	go session.superviseLiveness(h.registry, h.cfg.PingInterval, h.cfg.PongTimeout)
	go h.dispatchLoop(session, frames)

	return nil
}

// readPump reads the connection and surfaces every frame, control frames
// included, on the session's frame channel. It owns the channel and closes
// it when the connection yields an error.
func (h *Handler) readPump(s *Session, frames chan<- frame) {
	defer close(frames)

	push := func(f frame) bool {
		select {
		case frames <- f:
			return true
		case <-s.Done():
			return false
		}
	}

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPingHandler(func(payload string) error {
		push(frame{kind: framePing, data: []byte(payload)})
		return nil
	})
	s.conn.SetPongHandler(func(string) error {
		push(frame{kind: framePong})
		return nil
	})
	s.conn.SetCloseHandler(func(code int, text string) error {
		push(frame{kind: frameClose})
		return nil
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error request_id=%s: %v", s.requestID, err)
			}
			return
		}
		switch kind {
		case websocket.TextMessage:
			if !push(frame{kind: frameText, data: data}) {
				return
			}
		default:
			// Binary and fragmented traffic is not part of the
			// session protocol.
			if !push(frame{kind: frameUnsupported}) {
				return
			}
		}
	}
}

// dispatchLoop multiplexes inbound client frames with bus events until the
// connection closes or one event has been delivered. One connection services
// exactly one successful delivery in its lifetime; clients open a connection
// per expected result.
func (h *Handler) dispatchLoop(s *Session, frames <-chan frame) {
	events, cancel := h.bus.Subscribe()
	defer cancel()
	defer func() {
		s.Close()
		h.registry.releaseSession(s.requestID, s)
		log.Printf("ws: session closed user_id=%s request_id=%s", s.userID, s.requestID)
	}()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if done := h.handleFrame(s, f); done {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			delivered, err := h.deliver(s, ev)
			if err != nil {
				log.Printf("ws: error sending event to request_id=%s: %v", s.requestID, err)
				return
			}
			if delivered {
				return
			}
		}
	}
}

// handleFrame processes one inbound client frame. It reports true when the
// loop must terminate.
func (h *Handler) handleFrame(s *Session, f frame) bool {
	switch f.kind {
	case framePing:
		if err := s.SendPong(f.data); err != nil {
			log.Printf("ws: failed to send pong to request_id=%s: %v", s.requestID, err)
			return true
		}
	case framePong:
		s.MarkAlive()
	case frameText:
		msg, err := model.ParseClientMessage(f.data)
		if err != nil {
			log.Printf("ws: dropping unparseable client message request_id=%s: %v", s.requestID, err)
			return false
		}
		h.registry.RegisterTrace(msg.TraceID, s.requestID)
		if msg.Type == model.ClientMessageSearch {
			h.registry.CacheQuery(msg.TraceID, msg.Query)
		}
	case frameClose:
		return true
	case frameUnsupported:
		log.Printf("ws: unsupported frame from request_id=%s, closing", s.requestID)
		return true
	}
	return false
}

// deliver routes one bus event. Events whose trace does not resolve to this
// session are a no-op for this loop. On a match the payload is enriched from
// the query cache when applicable, sent as text, and the trace retired.
// The first return value reports a successful delivery; a non-nil error means
// the connection is presumed dead.
func (h *Handler) deliver(s *Session, ev model.Event) (bool, error) {
	requestID, ok := h.registry.ResolveTrace(ev.TraceID)
	if !ok {
		log.Printf("ws: no session awaiting trace_id=%s user_id=%s, dropping event", ev.TraceID, ev.UserID)
		return false, nil
	}
	if requestID != s.requestID {
		return false, nil
	}
	if live, ok := h.registry.LookupSession(requestID); !ok || live != s {
		return false, nil
	}

	out := ev
	if ev.PayloadType() == model.PayloadQueryEnqueued {
		if query, ok := h.registry.TakeQuery(ev.TraceID); ok {
			merged, err := ev.WithQuery(query)
			if err != nil {
				log.Printf("ws: failed to merge query into event trace_id=%s: %v", ev.TraceID, err)
			} else {
				out = merged
			}
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		log.Printf("ws: failed to serialize event trace_id=%s: %v", ev.TraceID, err)
		return false, nil
	}
	if err := s.SendText(data); err != nil {
		return false, err
	}
	h.registry.RetireTrace(ev.TraceID)
	return true, nil
}
