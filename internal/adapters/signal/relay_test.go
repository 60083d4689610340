package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/core"
)

// testRelay is a minimal protoo peer standing in for the media relay.
type testRelay struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	r := &testRelay{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin:  func(*http.Request) bool { return true },
	}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("roomId") == "" || req.URL.Query().Get("peerId") == "" {
			http.Error(w, "missing identity", http.StatusBadRequest)
			return
		}
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.conns <- ws
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *testRelay) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/?roomId=demo&peerId=A"
}

func (r *testRelay) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-r.conns:
		t.Cleanup(func() { _ = ws.Close() })
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("relay: no connection")
		return nil
	}
}

func readMessage(t *testing.T, ws *websocket.Conn) message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeMessage(t *testing.T, ws *websocket.Conn, msg message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func notification(t *testing.T, method string, data any) message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return message{Notification: true, Method: method, Data: raw}
}

func collectEvents(c *Channel) <-chan core.ConnectionEvent {
	ch := make(chan core.ConnectionEvent, 32)
	c.OnConnectionEvent(func(ev core.ConnectionEvent) { ch <- ev })
	return ch
}

func expectEvent(t *testing.T, ch <-chan core.ConnectionEvent, kind core.ConnectionEventKind) core.ConnectionEvent {
	t.Helper()
	select {
	case ev := <-ch:
		require.Equal(t, kind, ev.Kind, "got %s, want %s", ev.Kind, kind)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s event", kind)
		return core.ConnectionEvent{}
	}
}
