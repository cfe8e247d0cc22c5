package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one accepted client WebSocket connection, addressed by the
// request id the client supplied on connect. Writes are serialized through a
// mutex; the liveness clock is shared between the read pump (which writes it
// on pong receipt) and the liveness supervisor (which reads it).
type Session struct {
	userID    string
	requestID string
	conn      *websocket.Conn
	writeWait time.Duration

	writeMu sync.Mutex

	aliveMu   sync.Mutex
	lastAlive time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an upgraded connection. The liveness clock starts at now.
func NewSession(conn *websocket.Conn, userID, requestID string, writeWait time.Duration) *Session {
	return &Session{
		userID:    userID,
		requestID: requestID,
		conn:      conn,
		writeWait: writeWait,
		lastAlive: time.Now(),
		done:      make(chan struct{}),
	}
}

// RequestID returns the client-supplied identifier for this connection.
func (s *Session) RequestID() string {
	return s.requestID
}

// UserID returns the user this connection is attributed to.
func (s *Session) UserID() string {
	return s.userID
}

// MarkAlive records a confirmed liveness signal from the client.
func (s *Session) MarkAlive() {
	s.aliveMu.Lock()
	s.lastAlive = time.Now()
	s.aliveMu.Unlock()
}

// LastAlive returns the time of the last confirmed liveness signal.
func (s *Session) LastAlive() time.Time {
	s.aliveMu.Lock()
	defer s.aliveMu.Unlock()
	return s.lastAlive
}

// SendText writes a text frame to the client.
func (s *Session) SendText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// SendPing writes a ping control frame to the client.
func (s *Session) SendPing() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait))
}

// SendPong answers a client ping, echoing its payload.
func (s *Session) SendPong(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PongMessage, payload, time.Now().Add(s.writeWait))
}

// Close sends a best-effort close frame and tears the connection down. It is
// idempotent and unblocks every goroutine waiting on Done.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.writeWait))
		s.writeMu.Unlock()
		s.conn.Close()
		close(s.done)
	})
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// superviseLiveness pings the client on a fixed cadence and force-closes the
// session once the liveness clock falls further behind than timeout. Ping
// transmission failures are logged but only the clock decides termination.
func (s *Session) superviseLiveness(reg *Registry, pingInterval, timeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.SendPing(); err != nil {
				log.Printf("ws: unable to send ping to request_id=%s: %v", s.requestID, err)
			}
			if time.Since(s.LastAlive()) > timeout {
				log.Printf("ws: request_id=%s not responding after %s, closing connection", s.requestID, timeout)
				s.Close()
				reg.releaseSession(s.requestID, s)
				return
			}
		}
	}
}
