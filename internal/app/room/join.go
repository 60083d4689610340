package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

// Join opens signaling and runs the handshake: relay capabilities, device
// load, send transport, receive transport, join. It runs at most once per
// Room; a second call while connecting or connected does nothing. Any failure
// emits Error and closes the room.
func (r *Room) Join(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.joined {
		r.mu.Unlock()
		r.log.Warn().Msg("join already in progress")
		return nil
	}
	r.joined = true
	r.state = StateConnecting
	gen := r.gen
	r.emit(Connecting{})
	r.mu.Unlock()

	r.log.Info().Msg("joining")
	if err := r.sig.Open(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrSignalingTransport, err)
		r.log.Error().Err(err).Msg("signaling open failed")
		r.mu.Lock()
		if !r.staleLocked(gen) {
			r.emit(ConnectionFailed{Err: err})
		}
		r.mu.Unlock()
		r.Close()
		return err
	}

	if err := r.handshake(ctx, gen); err != nil {
		if errors.Is(err, errStaleGeneration) {
			r.log.Debug().Msg("join superseded")
			return ErrClosed
		}
		r.fail(err)
		return err
	}
	return nil
}

// rejoin reruns the handshake after a reconnect. A link that drops again
// mid-handshake is not fatal: the disconnect tears the attempt down and the
// next open starts another one.
func (r *Room) rejoin(gen uint64) {
	err := r.handshake(context.Background(), gen)
	switch {
	case err == nil:
		r.log.Info().Msg("rejoined")
	case errors.Is(err, errStaleGeneration):
		r.log.Debug().Msg("rejoin superseded")
	case errors.Is(err, core.ErrDisconnected):
		r.log.Warn().Err(err).Msg("link dropped during rejoin, waiting for reconnect")
	default:
		r.fail(err)
	}
}

// fail reports a fatal handshake error and closes the room.
func (r *Room) fail(err error) {
	r.log.Error().Err(err).Msg("handshake failed")
	r.mu.Lock()
	if r.state != StateClosed {
		r.emit(Error{Err: err})
	}
	r.mu.Unlock()
	r.Close()
}

func (r *Room) handshake(ctx context.Context, gen uint64) error {
	var caps protocol.RtpCapabilities
	if err := r.request(ctx, gen, protocol.MethodGetRouterRtpCapabilities, nil, &caps); err != nil {
		return err
	}

	if !r.dev.Loaded() {
		if err := r.dev.Load(ctx, caps); err != nil {
			return fmt.Errorf("load device: %w", err)
		}
		if r.stale(gen) {
			return errStaleGeneration
		}
	}

	if r.opts.Produce {
		if err := r.createSendTransport(ctx, gen); err != nil {
			return err
		}
	}
	if r.opts.Consume {
		if err := r.createRecvTransport(ctx, gen); err != nil {
			return err
		}
	}

	req := protocol.JoinRequest{
		DisplayName: r.opts.Peer.DisplayName,
		Device:      r.opts.Peer.Device,
	}
	if r.opts.Consume {
		rtpCaps := r.dev.RtpCapabilities()
		req.RtpCapabilities = &rtpCaps
		if r.opts.UseDataChannel {
			sctpCaps := r.dev.SctpCapabilities()
			req.SctpCapabilities = &sctpCaps
		}
	}
	var resp protocol.JoinResponse
	if err := r.request(ctx, gen, protocol.MethodJoin, req, &resp); err != nil {
		return err
	}

	r.mu.Lock()
	if r.staleLocked(gen) {
		r.mu.Unlock()
		return errStaleGeneration
	}
	r.state = StateConnected
	r.everConnected = true
	r.emit(Connected{})
	for _, p := range resp.Peers {
		r.addPeerLocked(p)
	}
	enableMic := r.opts.Produce && r.micWanted
	r.mu.Unlock()

	r.log.Info().Int("peers", len(resp.Peers)).Msg("joined")

	if enableMic {
		// Capture failures are reported as events and leave the session up.
		_ = r.EnableMic(ctx)
	}
	return nil
}

func (r *Room) createSendTransport(ctx context.Context, gen uint64) error {
	info, err := r.createTransport(ctx, gen, true)
	if err != nil {
		return err
	}
	t, err := r.dev.CreateSendTransport(info, core.TransportHandlers{
		Connect: r.connectHandler(info.ID),
		Produce: r.produceHandler(info.ID),
	})
	if err != nil {
		return fmt.Errorf("create send transport: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		t.Close()
		return errStaleGeneration
	}
	if r.sendTransport != nil {
		r.sendTransport.Close()
	}
	r.sendTransport = t
	r.log.Debug().Str("transport_id", info.ID).Msg("send transport created")
	return nil
}

func (r *Room) createRecvTransport(ctx context.Context, gen uint64) error {
	info, err := r.createTransport(ctx, gen, false)
	if err != nil {
		return err
	}
	t, err := r.dev.CreateRecvTransport(info, core.TransportHandlers{
		Connect: r.connectHandler(info.ID),
	})
	if err != nil {
		return fmt.Errorf("create recv transport: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		t.Close()
		return errStaleGeneration
	}
	if r.recvTransport != nil {
		r.recvTransport.Close()
	}
	r.recvTransport = t
	r.log.Debug().Str("transport_id", info.ID).Msg("recv transport created")
	return nil
}

func (r *Room) createTransport(ctx context.Context, gen uint64, producing bool) (protocol.TransportInfo, error) {
	req := protocol.CreateTransportRequest{
		ForceTcp:  r.opts.ForceTCP,
		Producing: producing,
		Consuming: !producing,
	}
	if r.opts.UseDataChannel {
		sctp := r.dev.SctpCapabilities()
		req.SctpCapabilities = &sctp
	}
	var info protocol.TransportInfo
	err := r.request(ctx, gen, protocol.MethodCreateWebRtcTransport, req, &info)
	return info, err
}

// connectHandler resolves only after the relay acknowledged the DTLS parameters.
func (r *Room) connectHandler(transportID string) func(context.Context, protocol.DtlsParameters) error {
	return func(ctx context.Context, dtls protocol.DtlsParameters) error {
		err := r.sig.Request(ctx, protocol.MethodConnectWebRtcTransport, protocol.ConnectTransportRequest{
			TransportID:    transportID,
			DtlsParameters: dtls,
		}, nil)
		if err != nil {
			return protocolError(protocol.MethodConnectWebRtcTransport, err)
		}
		return nil
	}
}

func (r *Room) produceHandler(transportID string) func(context.Context, core.ProduceParams) (string, error) {
	return func(ctx context.Context, p core.ProduceParams) (string, error) {
		var resp protocol.ProduceResponse
		err := r.sig.Request(ctx, protocol.MethodProduce, protocol.ProduceRequest{
			TransportID:   transportID,
			Kind:          p.Kind,
			RtpParameters: p.RtpParameters,
			AppData:       p.AppData,
		}, &resp)
		if err != nil {
			return "", protocolError(protocol.MethodProduce, err)
		}
		return resp.ID, nil
	}
}

// request issues a signaling request on behalf of work started at gen. No
// request leaves a stale session, and results that arrive after the session
// moved on are dropped.
func (r *Room) request(ctx context.Context, gen uint64, method string, data, out any) error {
	if r.stale(gen) {
		return errStaleGeneration
	}
	err := r.sig.Request(ctx, method, data, out)
	if r.stale(gen) {
		return errStaleGeneration
	}
	if err != nil {
		return protocolError(method, err)
	}
	return nil
}

func protocolError(method string, err error) error {
	if errors.Is(err, ErrProtocolRequest) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrProtocolRequest, method, err)
}
