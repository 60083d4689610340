// Package room is the session state machine for one join of one voice room.
// It drives the relay handshake, owns both transports, the microphone
// producer, the consumer arena and the peer roster, and reports everything
// it does as typed events.
package room

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/dkeye/VoiceClient/internal/metrics"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Options are fixed for the lifetime of a Room.
type Options struct {
	RoomID         domain.RoomID
	Peer           domain.PeerInfo
	Produce        bool
	Consume        bool
	UseDataChannel bool
	ForceTCP       bool
	Metrics        *metrics.Metrics
}

type micState struct {
	producer core.Producer
	capture  core.CaptureHandle
	stop     chan struct{}
}

type consumerEntry struct {
	consumer core.Consumer
	peerID   domain.PeerID
}

// pendingConsumer holds a consumer id while its transport negotiates, so
// notifications that arrive meanwhile are not lost.
type pendingConsumer struct {
	peerID domain.PeerID
	paused bool
}

type peerEntry struct {
	info      domain.PeerInfo
	micPaused bool
}

// Peer is a roster snapshot entry.
type Peer struct {
	Info      domain.PeerInfo
	MicPaused bool
}

// ConsumerInfo is a consumer arena snapshot entry.
type ConsumerInfo struct {
	ID         string
	ProducerID string
	PeerID     domain.PeerID
	Kind       protocol.MediaKind
	Paused     bool
}

type Room struct {
	opts     Options
	sig      core.Signaling
	dev      core.Device
	capturer core.Capturer
	log      zerolog.Logger
	bus      *bus
	ops      conc.WaitGroup

	mu sync.Mutex
	// gen advances whenever the session an operation started in goes away
	// (close, disconnect). Results carrying an older gen are released.
	gen           uint64
	state         State
	joined        bool
	everConnected bool
	micWanted     bool
	micPending    bool
	sendTransport core.SendTransport
	recvTransport core.RecvTransport
	mic           *micState
	consumers     map[string]*consumerEntry
	negotiating   map[string]*pendingConsumer
	peers         map[domain.PeerID]*peerEntry
	peerOrder     []domain.PeerID
}

// New builds a Room bound to sig and dev. capturer may be nil, in which case
// enabling the microphone reports a device access error.
func New(opts Options, sig core.Signaling, dev core.Device, capturer core.Capturer) (*Room, error) {
	if err := opts.RoomID.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Peer.ID.Validate(); err != nil {
		return nil, err
	}
	if sig == nil || dev == nil {
		return nil, fmt.Errorf("room: signaling and device are required")
	}

	r := &Room{
		opts:        opts,
		sig:         sig,
		dev:         dev,
		capturer:    capturer,
		log:         log.With().Str("module", "room").Str("room_id", string(opts.RoomID)).Str("peer_id", string(opts.Peer.ID)).Logger(),
		bus:         newBus(opts.Metrics),
		micWanted:   opts.Produce,
		consumers:   make(map[string]*consumerEntry),
		negotiating: make(map[string]*pendingConsumer),
		peers:       make(map[domain.PeerID]*peerEntry),
	}

	sig.OnConnectionEvent(r.onConnectionEvent)
	sig.HandleRequest(protocol.MethodNewConsumer, r.handleNewConsumer)
	r.registerNotifications()
	return r, nil
}

// Subscribe registers fn for every later event and returns its unsubscribe
// handle. fn runs on the room's dispatcher goroutine and must not block.
func (r *Room) Subscribe(fn func(Event)) (unsubscribe func()) {
	return r.bus.subscribe(fn)
}

// Done is closed once the Closed event has been delivered.
func (r *Room) Done() <-chan struct{} { return r.bus.done() }

// Wait blocks until background operations started by the room have returned.
func (r *Room) Wait() { r.ops.Wait() }

func (r *Room) ID() domain.RoomID     { return r.opts.RoomID }
func (r *Room) Self() domain.PeerInfo { return r.opts.Peer }

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) MicEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mic != nil
}

func (r *Room) MicMuted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mic != nil && r.mic.producer.Paused()
}

// Peers returns the roster in join order.
func (r *Room) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.peerOrder))
	for _, id := range r.peerOrder {
		p := r.peers[id]
		out = append(out, Peer{Info: p.info, MicPaused: p.micPaused})
	}
	return out
}

func (r *Room) Consumers() []ConsumerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConsumerInfo, 0, len(r.consumers))
	for id, e := range r.consumers {
		out = append(out, ConsumerInfo{
			ID:         id,
			ProducerID: e.consumer.ProducerID(),
			PeerID:     e.peerID,
			Kind:       e.consumer.Kind(),
			Paused:     e.consumer.Paused(),
		})
	}
	return out
}

func (r *Room) emit(ev Event) { r.bus.emit(ev) }

// staleLocked reports whether work started at gen must be discarded.
func (r *Room) staleLocked(gen uint64) bool {
	return r.gen != gen || r.state == StateClosed
}

func (r *Room) stale(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleLocked(gen)
}

// Close tears the session down in a fixed order and emits Closed once.
func (r *Room) Close() {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return
	}
	r.state = StateClosed
	r.gen++
	r.micWanted = false
	r.micPending = false
	mic := r.mic
	r.mic = nil
	consumers := r.consumers
	r.consumers = make(map[string]*consumerEntry)
	clear(r.negotiating)
	send, recv := r.sendTransport, r.recvTransport
	r.sendTransport, r.recvTransport = nil, nil
	r.mu.Unlock()

	r.log.Info().Msg("closing")

	r.sig.Close()
	if mic != nil {
		mic.release()
	}
	for _, e := range consumers {
		e.consumer.Close()
	}
	r.opts.Metrics.SetConsumers(0)
	if send != nil {
		send.Close()
	}
	if recv != nil {
		recv.Close()
	}

	r.emit(Closed{})
	r.bus.close()
}

func (m *micState) release() {
	close(m.stop)
	m.producer.Close()
	m.capture.Release()
}

// teardownLocked drops local media and the roster after the relay link went
// away. Caller holds r.mu.
func (r *Room) teardownLocked() {
	if r.mic != nil {
		r.mic.release()
		r.mic = nil
		r.emit(MicDisabled{})
	}
	r.micPending = false
	clear(r.negotiating)
	for id, e := range r.consumers {
		e.consumer.Close()
		delete(r.consumers, id)
		r.emit(ConsumerClosed{ConsumerID: id, PeerID: e.peerID})
	}
	r.opts.Metrics.SetConsumers(0)
	if r.sendTransport != nil {
		r.sendTransport.Close()
		r.sendTransport = nil
	}
	if r.recvTransport != nil {
		r.recvTransport.Close()
		r.recvTransport = nil
	}
	for _, id := range r.peerOrder {
		r.emit(PeerClosed{PeerID: id})
	}
	r.peers = make(map[domain.PeerID]*peerEntry)
	r.peerOrder = nil
}

// onConnectionEvent applies the reconnect policy: a dropped link releases
// local media and the roster, and the next open runs the whole handshake
// again, restoring the microphone if it was wanted.
func (r *Room) onConnectionEvent(ev core.ConnectionEvent) {
	switch ev.Kind {
	case core.ConnDisconnected:
		r.mu.Lock()
		if !r.everConnected || (r.state != StateConnected && r.state != StateConnecting) {
			r.mu.Unlock()
			return
		}
		r.log.Warn().Err(ev.Err).Msg("signaling disconnected")
		r.gen++
		r.state = StateDisconnected
		r.teardownLocked()
		r.emit(Disconnected{})
		r.mu.Unlock()

	case core.ConnOpen:
		r.mu.Lock()
		if r.state != StateDisconnected {
			r.mu.Unlock()
			return
		}
		r.log.Info().Msg("signaling reconnected, rejoining")
		r.state = StateConnecting
		gen := r.gen
		r.emit(Connecting{})
		r.mu.Unlock()
		r.ops.Go(func() { r.rejoin(gen) })

	case core.ConnFailed:
		r.mu.Lock()
		if r.state != StateDisconnected {
			r.mu.Unlock()
			return
		}
		r.emit(ConnectionFailed{Err: fmt.Errorf("%w: %w", ErrSignalingTransport, ev.Err)})
		r.mu.Unlock()

	case core.ConnClosed:
		if r.State() != StateClosed {
			r.Close()
		}
	}
}
