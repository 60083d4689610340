package rtc

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

type SendTransport struct {
	*transport
	codec protocol.RtpCodecCapability
}

var _ core.SendTransport = (*SendTransport)(nil)

// Produce starts sending opts.Track and registers it with the relay.
func (t *SendTransport) Produce(ctx context.Context, opts core.ProduceOptions) (core.Producer, error) {
	if opts.Track == nil {
		return nil, errors.New("rtc: produce without track")
	}
	kind := fromCodecType(opts.Track.Kind())
	if kind != protocol.MediaKindAudio {
		return nil, ErrCannotProduce
	}
	if err := t.connect(ctx); err != nil {
		return nil, err
	}

	sender, err := t.api.NewRTPSender(opts.Track, t.dtls)
	if err != nil {
		return nil, err
	}
	sendParams := sender.GetParameters()
	if len(sendParams.Encodings) == 0 {
		_ = sender.Stop()
		return nil, errors.New("rtc: sender has no encoding")
	}
	if err := sender.Send(sendParams); err != nil {
		_ = sender.Stop()
		return nil, err
	}

	params := t.rtpParameters(uint32(sendParams.Encodings[0].SSRC), opts.CodecOptions)
	id, err := t.h.Produce(ctx, core.ProduceParams{Kind: kind, RtpParameters: params, AppData: maps.Clone(opts.AppData)})
	if err != nil {
		_ = sender.Stop()
		return nil, err
	}

	p := &Producer{id: id, kind: kind, track: opts.Track, sender: sender, owner: t.transport}
	if !t.add(id, p) {
		_ = sender.Stop()
		return nil, ErrTransportClosed
	}
	go drainRTCP(func(b []byte) error {
		_, _, err := sender.Read(b)
		return err
	})
	t.log.Info().Str("producer_id", id).Uint32("ssrc", params.Encodings[0].Ssrc).Msg("producing")
	return p, nil
}

func (t *SendTransport) rtpParameters(ssrc uint32, o protocol.CodecOptions) protocol.RtpParameters {
	return protocol.RtpParameters{
		Codecs: []protocol.RtpCodecParameters{{
			MimeType:     t.codec.MimeType,
			PayloadType:  t.codec.PreferredPayloadType,
			ClockRate:    t.codec.ClockRate,
			Channels:     t.codec.Channels,
			Parameters:   opusParameters(t.codec.Parameters, o),
			RtcpFeedback: opusFeedback(t.codec.RtcpFeedback, o),
		}},
		Encodings: []protocol.RtpEncodingParameters{{Ssrc: ssrc, Dtx: o.OpusDtx}},
		Rtcp:      protocol.RtcpParameters{Cname: uuid.NewString(), ReducedSize: true},
	}
}

// Producer sends one local track. Pausing detaches the track from the sender.
type Producer struct {
	id     string
	kind   protocol.MediaKind
	track  webrtc.TrackLocal
	sender *webrtc.RTPSender
	owner  *transport

	mu      sync.Mutex
	paused  bool
	closed  bool
	onClose func(core.CloseReason)
}

var _ core.Producer = (*Producer)(nil)

func (p *Producer) ID() string               { return p.id }
func (p *Producer) Kind() protocol.MediaKind { return p.kind }
func (p *Producer) Track() webrtc.TrackLocal { return p.track }
func (p *Producer) OnClose(fn func(core.CloseReason)) {
	p.mu.Lock()
	p.onClose = fn
	p.mu.Unlock()
}

func (p *Producer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Producer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Producer) Pause()  { p.setPaused(true) }
func (p *Producer) Resume() { p.setPaused(false) }

func (p *Producer) setPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.paused == paused {
		return
	}
	var track webrtc.TrackLocal
	if !paused {
		track = p.track
	}
	if err := p.sender.ReplaceTrack(track); err != nil {
		p.owner.log.Warn().Err(err).Str("producer_id", p.id).Bool("paused", paused).Msg("replace track failed")
		return
	}
	p.paused = paused
}

func (p *Producer) Close() {
	p.closeWith(core.CloseLocal)
	p.owner.remove(p.id, p)
}

func (p *Producer) closeWith(reason core.CloseReason) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cb := p.onClose
	p.mu.Unlock()

	if err := p.sender.Stop(); err != nil {
		p.owner.log.Debug().Err(err).Str("producer_id", p.id).Msg("sender stop")
	}
	if reason != core.CloseLocal && cb != nil {
		cb(reason)
	}
}
