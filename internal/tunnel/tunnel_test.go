package tunnel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startUpstream runs an echoing WebSocket endpoint that records any close
// code it receives.
func startUpstream(t *testing.T) (*httptest.Server, chan int) {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	closeCodes := make(chan int, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.SetCloseHandler(func(code int, text string) error {
			closeCodes <- code
			return nil
		})
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				conn.Close()
				return
			}
		}
	}))
	return ts, closeCodes
}

// startGateway runs the tunnel behind a plain HTTP handler: dial the
// upstream first, report a dial failure as 502, then upgrade and pump.
func startGateway(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up, err := Dial(upstreamURL)
		if err != nil {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		client, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			up.Close()
			return
		}
		New(client, up).Run()
	}))
}

func toWS(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dialGateway(t *testing.T, gw *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(toWS(gw.URL), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestTunnelTextRoundTrip(t *testing.T) {
	up, _ := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	conn := dialGateway(t, gw)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if kind != websocket.TextMessage || string(data) != "hello" {
		t.Fatalf("expected text echo, got kind=%d data=%q", kind, data)
	}
}

func TestTunnelBinaryRoundTrip(t *testing.T) {
	up, _ := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	conn := dialGateway(t, gw)
	defer conn.Close()

	payload := []byte{0x00, 0x01, 0xFF}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if kind != websocket.BinaryMessage || string(data) != string(payload) {
		t.Fatalf("expected binary echo, got kind=%d data=%v", kind, data)
	}
}

func TestTunnelPingPongRoundTrip(t *testing.T) {
	up, _ := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	conn := dialGateway(t, gw)
	defer conn.Close()

	pongs := make(chan string, 1)
	conn.SetPongHandler(func(payload string) error {
		pongs <- payload
		return nil
	})

	// Pump reads so control frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteControl(websocket.PingMessage, []byte("p"),
		time.Now().Add(time.Second)); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	// The upstream answers the forwarded ping; the pong is translated back.
	select {
	case payload := <-pongs:
		if payload != "p" {
			t.Fatalf("expected pong payload %q, got %q", "p", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected pong forwarded back through the tunnel")
	}
}

func TestTunnelForwardsBareClose(t *testing.T) {
	up, closeCodes := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	conn := dialGateway(t, gw)
	defer conn.Close()

	if err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case code := <-closeCodes:
		if code != websocket.CloseNormalClosure {
			t.Fatalf("expected close code %d forwarded, got %d", websocket.CloseNormalClosure, code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected bare close forwarded upstream")
	}
}

func TestTunnelForwardsBareCloseRepeatedly(t *testing.T) {
	up, closeCodes := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	// The client read loop ends the moment the close is sent, so the
	// forwarding must survive the race between queue drain and teardown.
	// Repeat to give an ordering bug a chance to show.
	for i := 0; i < 25; i++ {
		conn := dialGateway(t, gw)

		if err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second)); err != nil {
			t.Fatalf("round %d: close failed: %v", i, err)
		}

		select {
		case code := <-closeCodes:
			if code != websocket.CloseNormalClosure {
				t.Fatalf("round %d: expected close code %d forwarded, got %d",
					i, websocket.CloseNormalClosure, code)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: bare close not forwarded upstream", i)
		}
		conn.Close()
	}
}

func TestTunnelCloseWithReasonNotForwarded(t *testing.T) {
	up, closeCodes := startUpstream(t)
	defer up.Close()
	gw := startGateway(t, toWS(up.URL))
	defer gw.Close()

	conn := dialGateway(t, gw)
	defer conn.Close()

	if err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "going away"),
		time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// The tunnel tears down without relaying the close frame.
	select {
	case code := <-closeCodes:
		t.Fatalf("close-with-reason must not be forwarded, upstream saw code %d", code)
	case <-time.After(300 * time.Millisecond):
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected client connection torn down")
	}
}

func TestTunnelUpstreamDialFailure(t *testing.T) {
	// No listener behind this URL.
	gw := startGateway(t, "ws://127.0.0.1:1/ws")
	defer gw.Close()

	resp, err := http.Get(gw.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for unreachable upstream, got %d", resp.StatusCode)
	}
}

func TestFrameQueueOrderingAndClose(t *testing.T) {
	q := newFrameQueue()

	q.push(Frame{Kind: FrameText, Data: []byte("a")})
	q.push(Frame{Kind: FrameText, Data: []byte("b")})
	q.push(Frame{Kind: FrameBinary, Data: []byte("c")})

	for _, want := range []string{"a", "b", "c"} {
		f, ok := q.pop()
		if !ok || string(f.Data) != want {
			t.Fatalf("expected %q, got %q ok=%v", want, f.Data, ok)
		}
	}

	// pop blocks until close, then reports exhaustion.
	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("pop returned before close on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	q.close()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after close")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock on close")
	}

	// push after close is a no-op.
	q.push(Frame{Kind: FrameText})
	if _, ok := q.pop(); ok {
		t.Fatal("expected closed queue to stay drained")
	}
}
