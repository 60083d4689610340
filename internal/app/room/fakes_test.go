package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

var errFakeClosed = errors.New("fake signaling closed")

type sentRequest struct {
	method string
	data   json.RawMessage
}

// fakeRelay is an in-memory core.Signaling answering like a media relay.
type fakeRelay struct {
	mu            sync.Mutex
	openErr       error
	answers       map[string]func(json.RawMessage) (any, error)
	gates         map[string]chan struct{}
	sent          []sentRequest
	notifications map[string]core.NotificationHandler
	requests      map[string]core.RequestHandler
	listeners     []func(core.ConnectionEvent)
	closed        bool
	closeCalls    int
	transportSeq  int
	producerSeq   int
}

func newFakeRelay() *fakeRelay {
	f := &fakeRelay{
		answers:       make(map[string]func(json.RawMessage) (any, error)),
		gates:         make(map[string]chan struct{}),
		notifications: make(map[string]core.NotificationHandler),
		requests:      make(map[string]core.RequestHandler),
	}
	f.answer(protocol.MethodGetRouterRtpCapabilities, func(json.RawMessage) (any, error) {
		return routerCaps(), nil
	})
	f.answer(protocol.MethodCreateWebRtcTransport, func(json.RawMessage) (any, error) {
		f.mu.Lock()
		f.transportSeq++
		id := fmt.Sprintf("transport-%d", f.transportSeq)
		f.mu.Unlock()
		return protocol.TransportInfo{ID: id}, nil
	})
	f.answer(protocol.MethodJoin, func(json.RawMessage) (any, error) {
		return protocol.JoinResponse{Peers: nil}, nil
	})
	f.answer(protocol.MethodProduce, func(json.RawMessage) (any, error) {
		f.mu.Lock()
		f.producerSeq++
		id := fmt.Sprintf("producer-%d", f.producerSeq)
		f.mu.Unlock()
		return protocol.ProduceResponse{ID: id}, nil
	})
	return f
}

func routerCaps() protocol.RtpCapabilities {
	return protocol.RtpCapabilities{Codecs: []protocol.RtpCodecCapability{{
		Kind: protocol.MediaKindAudio, MimeType: "audio/opus", PreferredPayloadType: 100, ClockRate: 48000, Channels: 2,
	}}}
}

func (f *fakeRelay) answer(method string, fn func(json.RawMessage) (any, error)) {
	f.mu.Lock()
	f.answers[method] = fn
	f.mu.Unlock()
}

// gate holds requests for method until the returned func is called.
func (f *fakeRelay) gate(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeRelay) Open(context.Context) error { return f.openErr }

func (f *fakeRelay) Request(ctx context.Context, method string, data, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errFakeClosed
	}
	f.sent = append(f.sent, sentRequest{method: method, data: raw})
	fn := f.answers[method]
	gate := f.gates[method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var resp any = struct{}{}
	if fn != nil {
		if resp, err = fn(raw); err != nil {
			return err
		}
	}
	if out == nil {
		return nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeRelay) HandleNotification(method string, fn core.NotificationHandler) {
	f.mu.Lock()
	f.notifications[method] = fn
	f.mu.Unlock()
}

func (f *fakeRelay) HandleRequest(method string, fn core.RequestHandler) {
	f.mu.Lock()
	f.requests[method] = fn
	f.mu.Unlock()
}

func (f *fakeRelay) OnConnectionEvent(fn func(core.ConnectionEvent)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *fakeRelay) Close() {
	f.mu.Lock()
	f.closed = true
	f.closeCalls++
	f.mu.Unlock()
}

func (f *fakeRelay) reopen() {
	f.mu.Lock()
	f.closed = false
	f.mu.Unlock()
}

func (f *fakeRelay) connEvent(ev core.ConnectionEvent) {
	f.mu.Lock()
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (f *fakeRelay) notify(t *testing.T, method string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.mu.Lock()
	fn := f.notifications[method]
	f.mu.Unlock()
	require.NotNil(t, fn, "no handler for %s", method)
	fn(raw)
}

type fakeResponder struct {
	mu       sync.Mutex
	accepted bool
	code     int
	reason   string
	answers  int
}

func (r *fakeResponder) Accept(any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers++
	r.accepted = true
	return nil
}

func (r *fakeResponder) Reject(code int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers++
	r.code, r.reason = code, reason
	return nil
}

// relayRequest delivers a relay-initiated request and waits for the answer.
func (f *fakeRelay) relayRequest(t *testing.T, method string, data any) *fakeResponder {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.mu.Lock()
	fn := f.requests[method]
	f.mu.Unlock()
	require.NotNil(t, fn, "no handler for %s", method)
	res := &fakeResponder{}
	fn(context.Background(), raw, res)
	return res
}

// relayRequestAsync delivers a relay-initiated request on its own goroutine,
// as the signaling channel does.
func (f *fakeRelay) relayRequestAsync(t *testing.T, method string, data any) <-chan *fakeResponder {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.mu.Lock()
	fn := f.requests[method]
	f.mu.Unlock()
	require.NotNil(t, fn, "no handler for %s", method)
	done := make(chan *fakeResponder, 1)
	go func() {
		res := &fakeResponder{}
		fn(context.Background(), raw, res)
		done <- res
	}()
	return done
}

func (f *fakeRelay) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.method)
	}
	return out
}

func (f *fakeRelay) count(method string) int {
	n := 0
	for _, m := range f.methods() {
		if m == method {
			n++
		}
	}
	return n
}

func (f *fakeRelay) lastRequest(method string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].method == method {
			return f.sent[i].data
		}
	}
	return nil
}

// fakeDevice creates fake transports that run the negotiation callbacks.
type fakeDevice struct {
	mu       sync.Mutex
	loadErr  error
	loaded   bool
	loads    int
	sends    []*fakeSendTransport
	recvs    []*fakeRecvTransport
	consumeE error
	// consumeGate, when set, holds every Consume until it is closed and
	// reports the consumer id on consuming first.
	consumeGate chan struct{}
	consuming   chan string
}

func (d *fakeDevice) Load(_ context.Context, _ protocol.RtpCapabilities) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads++
	if d.loadErr != nil {
		return d.loadErr
	}
	d.loaded = true
	return nil
}

func (d *fakeDevice) loadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loads
}

func (d *fakeDevice) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *fakeDevice) CanProduce(kind protocol.MediaKind) bool { return kind == protocol.MediaKindAudio }

func (d *fakeDevice) RtpCapabilities() protocol.RtpCapabilities { return routerCaps() }

func (d *fakeDevice) SctpCapabilities() protocol.SctpCapabilities {
	return protocol.SctpCapabilities{NumStreams: protocol.NumSctpStreams{OS: 1024, MIS: 1024}}
}

func (d *fakeDevice) CreateSendTransport(info protocol.TransportInfo, h core.TransportHandlers) (core.SendTransport, error) {
	t := &fakeSendTransport{id: info.ID, h: h}
	d.mu.Lock()
	d.sends = append(d.sends, t)
	d.mu.Unlock()
	return t, nil
}

func (d *fakeDevice) CreateRecvTransport(info protocol.TransportInfo, h core.TransportHandlers) (core.RecvTransport, error) {
	d.mu.Lock()
	t := &fakeRecvTransport{id: info.ID, h: h, consumeErr: d.consumeE, gate: d.consumeGate, entered: d.consuming}
	d.recvs = append(d.recvs, t)
	d.mu.Unlock()
	return t, nil
}

// gateConsume holds Consume calls on transports created after it; call it
// before join.
func (d *fakeDevice) gateConsume(t *testing.T) (consuming <-chan string, release func()) {
	t.Helper()
	gate := make(chan struct{})
	ch := make(chan string, 4)
	d.mu.Lock()
	d.consumeGate, d.consuming = gate, ch
	d.mu.Unlock()
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return ch, release
}

func waitConsuming(t *testing.T, ch <-chan string, id string) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("consume %s never started", id)
	}
}

func waitAnswer(t *testing.T, ch <-chan *fakeResponder) *fakeResponder {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("newConsumer never answered")
		return nil
	}
}

func (d *fakeDevice) recv(i int) *fakeRecvTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recvs[i]
}

func (d *fakeDevice) send(i int) *fakeSendTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends[i]
}

type fakeSendTransport struct {
	id        string
	h         core.TransportHandlers
	mu        sync.Mutex
	connected bool
	closed    bool
	producers []*fakeProducer
}

func (t *fakeSendTransport) ID() string { return t.id }

func (t *fakeSendTransport) Produce(ctx context.Context, opts core.ProduceOptions) (core.Producer, error) {
	t.mu.Lock()
	connect := !t.connected
	t.connected = true
	t.mu.Unlock()
	if connect {
		if err := t.h.Connect(ctx, protocol.DtlsParameters{Role: "client"}); err != nil {
			return nil, err
		}
	}
	id, err := t.h.Produce(ctx, core.ProduceParams{Kind: protocol.MediaKindAudio, AppData: opts.AppData})
	if err != nil {
		return nil, err
	}
	p := &fakeProducer{id: id, track: opts.Track}
	t.mu.Lock()
	t.producers = append(t.producers, p)
	t.mu.Unlock()
	return p, nil
}

func (t *fakeSendTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	producers := t.producers
	t.mu.Unlock()
	for _, p := range producers {
		p.closeWith(core.CloseTransportClosed)
	}
}

func (t *fakeSendTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeRecvTransport struct {
	id         string
	h          core.TransportHandlers
	consumeErr error
	gate       chan struct{}
	entered    chan string
	mu         sync.Mutex
	closed     bool
	consumers  []*fakeConsumer
}

func (t *fakeRecvTransport) ID() string { return t.id }

func (t *fakeRecvTransport) Consume(ctx context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	if t.gate != nil {
		t.entered <- opts.ID
		select {
		case <-t.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.consumeErr != nil {
		return nil, t.consumeErr
	}
	c := &fakeConsumer{id: opts.ID, producerID: opts.ProducerID, kind: opts.Kind, appData: opts.AppData}
	t.mu.Lock()
	t.consumers = append(t.consumers, c)
	t.mu.Unlock()
	return c, nil
}

func (t *fakeRecvTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	consumers := t.consumers
	t.mu.Unlock()
	for _, c := range consumers {
		c.closeWith(core.CloseTransportClosed)
	}
}

func (t *fakeRecvTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeProducer struct {
	id      string
	track   webrtc.TrackLocal
	paused  atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex
	onClose func(core.CloseReason)
}

func (p *fakeProducer) ID() string               { return p.id }
func (p *fakeProducer) Kind() protocol.MediaKind { return protocol.MediaKindAudio }
func (p *fakeProducer) Track() webrtc.TrackLocal { return p.track }
func (p *fakeProducer) Paused() bool             { return p.paused.Load() }
func (p *fakeProducer) Pause()                   { p.paused.Store(true) }
func (p *fakeProducer) Resume()                  { p.paused.Store(false) }
func (p *fakeProducer) Close()                   { p.closed.Store(true) }
func (p *fakeProducer) Closed() bool             { return p.closed.Load() }
func (p *fakeProducer) OnClose(fn func(core.CloseReason)) {
	p.mu.Lock()
	p.onClose = fn
	p.mu.Unlock()
}

func (p *fakeProducer) closeWith(reason core.CloseReason) {
	if p.closed.Swap(true) {
		return
	}
	p.mu.Lock()
	fn := p.onClose
	p.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

type fakeConsumer struct {
	id         string
	producerID string
	kind       protocol.MediaKind
	appData    map[string]any
	paused     atomic.Bool
	closed     atomic.Bool
	mu         sync.Mutex
	onClose    func(core.CloseReason)
}

func (c *fakeConsumer) ID() string               { return c.id }
func (c *fakeConsumer) ProducerID() string       { return c.producerID }
func (c *fakeConsumer) Kind() protocol.MediaKind { return c.kind }
func (c *fakeConsumer) Track() core.RemoteTrack  { return fakeRemoteTrack{id: c.id} }
func (c *fakeConsumer) AppData() map[string]any  { return c.appData }
func (c *fakeConsumer) Paused() bool             { return c.paused.Load() }
func (c *fakeConsumer) Pause()                   { c.paused.Store(true) }
func (c *fakeConsumer) Resume()                  { c.paused.Store(false) }
func (c *fakeConsumer) Close()                   { c.closed.Store(true) }
func (c *fakeConsumer) Closed() bool             { return c.closed.Load() }
func (c *fakeConsumer) OnClose(fn func(core.CloseReason)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *fakeConsumer) closeWith(reason core.CloseReason) {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

type fakeRemoteTrack struct{ id string }

func (t fakeRemoteTrack) ID() string               { return t.id }
func (t fakeRemoteTrack) Kind() protocol.MediaKind { return protocol.MediaKindAudio }
func (t fakeRemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, errors.New("no media")
}

func (r *Room) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// recorder collects room events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(r *Room) *recorder {
	rec := &recorder{}
	r.Subscribe(func(ev Event) {
		if _, ok := ev.(flushMarker); ok {
			return
		}
		rec.mu.Lock()
		rec.events = append(rec.events, ev)
		rec.mu.Unlock()
	})
	return rec
}

func (rec *recorder) kinds() []EventKind {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]EventKind, 0, len(rec.events))
	for _, ev := range rec.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (rec *recorder) count(kind EventKind) int {
	n := 0
	for _, k := range rec.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (rec *recorder) all() []Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]Event(nil), rec.events...)
}

func (rec *recorder) waitFor(t *testing.T, kind EventKind, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.count(kind) >= n },
		2*time.Second, 5*time.Millisecond, "waiting for %d %s events, got %v", n, kind, rec.kinds())
}

// flush waits until every event emitted so far has been delivered.
func flush(t *testing.T, r *Room) {
	t.Helper()
	done := make(chan struct{})
	unsub := r.Subscribe(func(ev Event) {
		if m, ok := ev.(flushMarker); ok && m.done == done {
			close(done)
		}
	})
	defer unsub()
	if !r.bus.q.Push(flushMarker{done: done}) {
		<-r.Done()
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush timeout")
	}
}

type flushMarker struct{ done chan struct{} }

func (flushMarker) Kind() EventKind { return "flush" }
func (flushMarker) roomEvent()      {}
