package room

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/adapters/signal"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/dkeye/VoiceClient/internal/metrics"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

type relayFrame struct {
	Request  bool            `json:"request,omitempty"`
	Response bool            `json:"response,omitempty"`
	ID       uint32          `json:"id,omitempty"`
	Method   string          `json:"method,omitempty"`
	OK       bool            `json:"ok,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// wsRelay is a protoo relay over a real websocket. dropJoin decides, per
// connection number, whether the join request is answered or the link is cut.
type wsRelay struct {
	srv      *httptest.Server
	dropJoin func(n int) bool

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSRelay(t *testing.T, dropJoin func(n int) bool) *wsRelay {
	t.Helper()
	r := &wsRelay{dropJoin: dropJoin}
	upgrader := websocket.Upgrader{
		Subprotocols: []string{signal.Subprotocol},
		CheckOrigin:  func(*http.Request) bool { return true },
	}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conns = append(r.conns, ws)
		n := len(r.conns)
		r.mu.Unlock()
		r.serve(n, ws)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *wsRelay) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/?roomId=demo&peerId=A"
}

func (r *wsRelay) connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// drop cuts connection n (1-based) without a close handshake.
func (r *wsRelay) drop(n int) {
	r.mu.Lock()
	ws := r.conns[n-1]
	r.mu.Unlock()
	_ = ws.Close()
}

func (r *wsRelay) serve(n int, ws *websocket.Conn) {
	defer ws.Close()
	transports := 0
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req relayFrame
		if json.Unmarshal(raw, &req) != nil || !req.Request {
			continue
		}
		var resp any = struct{}{}
		switch req.Method {
		case protocol.MethodGetRouterRtpCapabilities:
			resp = routerCaps()
		case protocol.MethodCreateWebRtcTransport:
			transports++
			resp = protocol.TransportInfo{ID: fmt.Sprintf("transport-%d-%d", n, transports)}
		case protocol.MethodJoin:
			if r.dropJoin(n) {
				return
			}
			resp = protocol.JoinResponse{}
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		out, err := json.Marshal(relayFrame{Response: true, ID: req.ID, OK: true, Data: data})
		if err != nil {
			return
		}
		if ws.WriteMessage(websocket.TextMessage, out) != nil {
			return
		}
	}
}

func TestLinkDropDuringRejoinKeepsReconnecting(t *testing.T) {
	relay := newWSRelay(t, func(n int) bool { return n == 2 })
	sig := signal.New(signal.Options{
		URL:               relay.url(),
		HandshakeTimeout:  time.Second,
		RequestTimeout:    2 * time.Second,
		ReconnectAttempts: 10,
		ReconnectWindow:   time.Minute,
		ReconnectDelay:    10 * time.Millisecond,
	})
	r, err := New(Options{
		RoomID:  "demo",
		Peer:    domain.PeerInfo{ID: "A", DisplayName: "Alice", Device: domain.DefaultDevice()},
		Consume: true,
		Metrics: metrics.New(),
	}, sig, &fakeDevice{}, nil)
	require.NoError(t, err)
	rec := record(r)
	t.Cleanup(r.Close)

	require.NoError(t, r.Join(context.Background()))
	require.Equal(t, StateConnected, r.State())

	relay.drop(1)

	rec.waitFor(t, KindConnected, 2)
	require.Eventually(t, func() bool { return r.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, relay.connections())
	flush(t, r)
	assert.Zero(t, rec.count(KindError), "events: %v", rec.kinds())
	assert.Zero(t, rec.count(KindClosed))
	assert.Equal(t, 2, rec.count(KindDisconnected))
}
