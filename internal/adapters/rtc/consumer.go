package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

type RecvTransport struct {
	*transport
}

var _ core.RecvTransport = (*RecvTransport)(nil)

// Consume starts receiving the relay's stream for one remote producer.
func (t *RecvTransport) Consume(ctx context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	codec, ok := opts.RtpParameters.PrimaryCodec()
	if !ok {
		return nil, errors.New("rtc: consumer without codec")
	}
	if len(opts.RtpParameters.Encodings) == 0 || opts.RtpParameters.Encodings[0].Ssrc == 0 {
		return nil, errors.New("rtc: consumer without ssrc")
	}
	ssrc := opts.RtpParameters.Encodings[0].Ssrc
	if err := t.connect(ctx); err != nil {
		return nil, err
	}

	receiver, err := t.api.NewRTPReceiver(toCodecType(opts.Kind), t.dtls)
	if err != nil {
		return nil, err
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC:        webrtc.SSRC(ssrc),
				PayloadType: webrtc.PayloadType(codec.PayloadType),
			},
		}},
	})
	if err != nil {
		_ = receiver.Stop()
		return nil, fmt.Errorf("receive ssrc %d: %w", ssrc, err)
	}

	c := &Consumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		kind:       opts.Kind,
		appData:    maps.Clone(opts.AppData),
		receiver:   receiver,
		owner:      t.transport,
	}
	c.track = &remoteTrack{consumer: c, track: receiver.Track()}
	if !t.add(c.id, c) {
		_ = receiver.Stop()
		return nil, ErrTransportClosed
	}
	go drainRTCP(func(b []byte) error {
		_, _, err := receiver.Read(b)
		return err
	})
	t.log.Info().Str("consumer_id", c.id).Str("producer_id", c.producerID).Uint32("ssrc", ssrc).Msg("consuming")
	return c, nil
}

// Consumer receives one relay stream. Pause state mirrors the relay side; the
// receiver keeps running.
type Consumer struct {
	id         string
	producerID string
	kind       protocol.MediaKind
	appData    map[string]any
	receiver   *webrtc.RTPReceiver
	track      *remoteTrack
	owner      *transport

	mu      sync.Mutex
	paused  bool
	closed  bool
	onClose func(core.CloseReason)
}

var _ core.Consumer = (*Consumer)(nil)

func (c *Consumer) ID() string               { return c.id }
func (c *Consumer) ProducerID() string       { return c.producerID }
func (c *Consumer) Kind() protocol.MediaKind { return c.kind }
func (c *Consumer) Track() core.RemoteTrack  { return c.track }
func (c *Consumer) AppData() map[string]any  { return maps.Clone(c.appData) }

func (c *Consumer) OnClose(fn func(core.CloseReason)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Consumer) Pause()  { c.setPaused(true) }
func (c *Consumer) Resume() { c.setPaused(false) }

func (c *Consumer) setPaused(paused bool) {
	c.mu.Lock()
	if !c.closed {
		c.paused = paused
	}
	c.mu.Unlock()
}

func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Consumer) Close() {
	c.closeWith(core.CloseLocal)
	c.owner.remove(c.id, c)
}

func (c *Consumer) closeWith(reason core.CloseReason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cb := c.onClose
	c.mu.Unlock()

	if err := c.receiver.Stop(); err != nil {
		c.owner.log.Debug().Err(err).Str("consumer_id", c.id).Msg("receiver stop")
	}
	if reason != core.CloseLocal && cb != nil {
		cb(reason)
	}
}

// remoteTrack closes its consumer with CloseTrackEnded when the stream ends
// underneath a reader.
type remoteTrack struct {
	consumer *Consumer
	track    *webrtc.TrackRemote
}

func (t *remoteTrack) ID() string               { return t.consumer.id }
func (t *remoteTrack) Kind() protocol.MediaKind { return t.consumer.kind }

func (t *remoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, attrs, err := t.track.ReadRTP()
	if errors.Is(err, io.EOF) && !t.consumer.Closed() {
		t.consumer.closeWith(core.CloseTrackEnded)
		t.consumer.owner.remove(t.consumer.id, t.consumer)
	}
	return pkt, attrs, err
}
