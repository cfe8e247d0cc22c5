// Package tunnel relays one accepted WebSocket connection to an upstream
// WebSocket endpoint, translating each side's frames through a common
// representation. Either side failing tears the whole tunnel down.
package tunnel

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Time allowed to write a frame to either peer.
const writeWait = 10 * time.Second

// FrameKind enumerates the frame types the tunnel transports. Anything
// outside this set (fragmented traffic, close frames carrying a reason) is
// translated to a bare close and the tunnel is torn down.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePing
	FramePong
	FrameClose
)

// Frame is the tunnel's protocol-neutral message representation. Both
// directions translate into it and back out, symmetrically by kind.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Tunnel pairs one client-facing connection with one upstream connection.
// Client frames flow to the upstream through an unbounded queue; upstream
// frames are written back to the client directly.
type Tunnel struct {
	id       string
	client   *websocket.Conn
	upstream *websocket.Conn

	outbound *frameQueue

	clientMu   sync.Mutex
	upstreamMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the upstream endpoint. A dial failure is returned to the
// caller so it can be reported to the client instead of taking the process
// down; callers dial before upgrading the inbound connection.
func Dial(upstreamURL string) (*websocket.Conn, error) {
	up, resp, err := websocket.DefaultDialer.Dial(upstreamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("tunnel: connect %s: %w (status %d)", upstreamURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("tunnel: connect %s: %w", upstreamURL, err)
	}
	return up, nil
}

// New pairs an accepted client connection with a dialed upstream connection.
func New(client, upstream *websocket.Conn) *Tunnel {
	return &Tunnel{
		id:       uuid.New().String(),
		client:   client,
		upstream: upstream,
		outbound: newFrameQueue(),
		done:     make(chan struct{}),
	}
}

// ID returns the tunnel's connection id, used for log attribution.
func (t *Tunnel) ID() string {
	return t.id
}

// Run pumps both directions until either side closes or fails. It returns
// once the tunnel is fully torn down.
func (t *Tunnel) Run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		t.writeUpstream()
	}()
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		t.readUpstream()
	}()

	t.readClient()

	// The client read side is done, but frames it queued may still be in
	// flight. Close the queue and wait for the upstream writer to drain it
	// (a trailing bare close included) before the sockets go away.
	t.outbound.close()
	<-writerDone
	t.teardown()
	<-readerDone
	log.Printf("tunnel %s: closed", t.id)
}

// Done is closed when the tunnel has been torn down.
func (t *Tunnel) Done() <-chan struct{} {
	return t.done
}

// teardown closes both connections and the queue. Idempotent; any pump
// noticing a failure calls it and the others unwind on their next I/O.
func (t *Tunnel) teardown() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.outbound.close()
		t.client.Close()
		t.upstream.Close()
	})
}

// readClient reads the client side and enqueues every supported frame for
// the upstream writer. Control frames arrive through the connection's
// handlers, data frames through ReadMessage.
func (t *Tunnel) readClient() {
	t.client.SetPingHandler(func(payload string) error {
		t.outbound.push(Frame{Kind: FramePing, Data: []byte(payload)})
		return nil
	})
	t.client.SetPongHandler(func(payload string) error {
		t.outbound.push(Frame{Kind: FramePong, Data: []byte(payload)})
		return nil
	})
	t.client.SetCloseHandler(func(code int, text string) error {
		if bareClose(code, text) {
			t.outbound.push(Frame{Kind: FrameClose})
		} else {
			// Close-with-reason is outside the translation table;
			// shut the tunnel without forwarding it.
			log.Printf("tunnel %s: unsupported close from client (code=%d), tearing down", t.id, code)
			t.teardown()
		}
		return nil
	})

	for {
		kind, data, err := t.client.ReadMessage()
		if err != nil {
			return
		}
		switch kind {
		case websocket.TextMessage:
			t.outbound.push(Frame{Kind: FrameText, Data: data})
		case websocket.BinaryMessage:
			t.outbound.push(Frame{Kind: FrameBinary, Data: data})
		default:
			// Translated to a bare close; Run drains the queue before
			// tearing the sockets down.
			log.Printf("tunnel %s: unsupported frame type %d from client, closing", t.id, kind)
			t.outbound.push(Frame{Kind: FrameClose})
			return
		}
	}
}

// writeUpstream drains the outbound queue into the upstream connection. A
// write failure tears the tunnel down instead of degrading silently.
func (t *Tunnel) writeUpstream() {
	for {
		f, ok := t.outbound.pop()
		if !ok {
			return
		}
		if err := writeFrame(t.upstream, &t.upstreamMu, f); err != nil {
			log.Printf("tunnel %s: upstream write failed: %v", t.id, err)
			t.teardown()
			return
		}
		if f.Kind == FrameClose {
			t.teardown()
			return
		}
	}
}

// readUpstream reads the upstream side and writes each supported frame back
// to the client directly.
func (t *Tunnel) readUpstream() {
	forward := func(f Frame) {
		if err := writeFrame(t.client, &t.clientMu, f); err != nil {
			log.Printf("tunnel %s: client write failed: %v", t.id, err)
			t.teardown()
		}
	}

	t.upstream.SetPingHandler(func(payload string) error {
		forward(Frame{Kind: FramePing, Data: []byte(payload)})
		return nil
	})
	t.upstream.SetPongHandler(func(payload string) error {
		forward(Frame{Kind: FramePong, Data: []byte(payload)})
		return nil
	})
	t.upstream.SetCloseHandler(func(code int, text string) error {
		if bareClose(code, text) {
			forward(Frame{Kind: FrameClose})
		} else {
			log.Printf("tunnel %s: unsupported close from upstream (code=%d), tearing down", t.id, code)
		}
		t.teardown()
		return nil
	})

	for {
		kind, data, err := t.upstream.ReadMessage()
		if err != nil {
			t.teardown()
			return
		}
		switch kind {
		case websocket.TextMessage:
			forward(Frame{Kind: FrameText, Data: data})
		case websocket.BinaryMessage:
			forward(Frame{Kind: FrameBinary, Data: data})
		default:
			log.Printf("tunnel %s: unsupported frame type %d from upstream, closing", t.id, kind)
			forward(Frame{Kind: FrameClose})
			t.teardown()
			return
		}
	}
}

// bareClose reports whether a received close frame carries no reason and can
// therefore be transported through the translation table.
func bareClose(code int, text string) bool {
	return text == "" && (code == websocket.CloseNormalClosure || code == websocket.CloseNoStatusReceived)
}

// writeFrame translates a Frame back into the peer's wire representation.
func writeFrame(conn *websocket.Conn, mu *sync.Mutex, f Frame) error {
	mu.Lock()
	defer mu.Unlock()

	deadline := time.Now().Add(writeWait)
	switch f.Kind {
	case FrameText:
		conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.TextMessage, f.Data)
	case FrameBinary:
		conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.BinaryMessage, f.Data)
	case FramePing:
		return conn.WriteControl(websocket.PingMessage, f.Data, deadline)
	case FramePong:
		return conn.WriteControl(websocket.PongMessage, f.Data, deadline)
	case FrameClose:
		return conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	default:
		return fmt.Errorf("tunnel: unsupported frame kind %d", f.Kind)
	}
}

// Upgrader for tunnel endpoints; origin checking is left to the deployment
// proxy, matching the session endpoint.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
