package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

// child is a producer or consumer owned by a transport.
type child interface {
	closeWith(reason core.CloseReason)
}

// transport is one ICE+DTLS leg to the relay. It connects lazily on the
// first produce or consume.
type transport struct {
	info protocol.TransportInfo
	h    core.TransportHandlers
	api  *webrtc.API
	log  zerolog.Logger

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	connMu    sync.Mutex
	connected bool

	mu       sync.Mutex
	closed   bool
	children map[string]child
}

func newTransport(api *webrtc.API, info protocol.TransportInfo, h core.TransportHandlers, dir string, iceServers []string) (*transport, error) {
	gatherer, err := api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: toICEServers(iceServers)})
	if err != nil {
		return nil, err
	}
	ice := api.NewICETransport(gatherer)
	dtls, err := api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, err
	}

	t := &transport{
		info:     info,
		h:        h,
		api:      api,
		log:      log.With().Str("module", "rtc").Str("transport_id", info.ID).Str("direction", dir).Logger(),
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
		children: make(map[string]child),
	}
	ice.OnConnectionStateChange(func(s webrtc.ICETransportState) {
		t.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})
	dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		t.log.Info().Str("dtls_state", s.String()).Msg("DTLS state")
	})
	return t, nil
}

func (t *transport) ID() string { return t.info.ID }

func (t *transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// connect hands the local DTLS parameters to the relay, then runs ICE as the
// controlling side against the ICE-lite relay and DTLS as client.
func (t *transport) connect(ctx context.Context) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.connected {
		return nil
	}
	if t.Closed() {
		return ErrTransportClosed
	}

	local, err := t.dtls.GetLocalParameters()
	if err != nil {
		return err
	}
	if err := t.h.Connect(ctx, fromDTLSParameters(local, webrtc.DTLSRoleClient)); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- t.start() }()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		t.stop()
		return ctx.Err()
	}
	t.connected = true
	t.log.Info().Msg("transport connected")
	return nil
}

func (t *transport) start() error {
	gathered := make(chan struct{})
	var once sync.Once
	t.gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(gathered) })
		}
	})
	if err := t.gatherer.Gather(); err != nil {
		return err
	}
	<-gathered

	remote, err := toICECandidates(t.info.IceCandidates)
	if err != nil {
		return err
	}
	if err := t.ice.SetRemoteCandidates(remote); err != nil {
		return err
	}
	role := webrtc.ICERoleControlling
	if err := t.ice.Start(nil, toICEParameters(t.info.IceParameters), &role); err != nil {
		return err
	}
	// The relay was told we are the DTLS client, so it serves regardless of
	// the role it advertised.
	return t.dtls.Start(webrtc.DTLSParameters{
		Role:         webrtc.DTLSRoleServer,
		Fingerprints: toDTLSFingerprints(t.info.DtlsParameters.Fingerprints),
	})
}

// add indexes c under id. A child already holding id is closed first, so
// every child the transport hands out is either indexed or closed.
func (t *transport) add(id string, c child) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	old := t.children[id]
	t.children[id] = c
	t.mu.Unlock()

	if old != nil && old != c {
		t.log.Warn().Str("child_id", id).Msg("replacing child with duplicate id")
		old.closeWith(core.CloseLocal)
	}
	return true
}

// remove drops id only while it still maps to c; a replaced child closing
// late must not unindex its successor.
func (t *transport) remove(id string, c child) {
	t.mu.Lock()
	if t.children[id] == c {
		delete(t.children, id)
	}
	t.mu.Unlock()
}

// Close closes every child with CloseTransportClosed, then the ICE and DTLS legs.
func (t *transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, c := range children {
		c.closeWith(core.CloseTransportClosed)
	}
	t.stop()
	t.log.Info().Int("children", len(children)).Msg("transport closed")
}

func (t *transport) stop() {
	if err := t.dtls.Stop(); err != nil {
		t.log.Debug().Err(err).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		t.log.Debug().Err(err).Msg("ice stop")
	}
	if err := t.gatherer.Close(); err != nil {
		t.log.Debug().Err(err).Msg("gatherer close")
	}
}

// drainRTCP reads until the reader fails so interceptors see incoming RTCP.
func drainRTCP(read func([]byte) error) {
	buf := make([]byte, 1500)
	for {
		if err := read(buf); err != nil {
			return
		}
	}
}
