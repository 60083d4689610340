package rtc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

var (
	ErrNotLoaded         = errors.New("rtc: device not loaded")
	ErrAlreadyLoaded     = errors.New("rtc: device already loaded")
	ErrNoCompatibleCodec = errors.New("rtc: no compatible audio codec")
	ErrTransportClosed   = errors.New("rtc: transport closed")
	ErrCannotProduce     = errors.New("rtc: cannot produce")
)

// Relay data channels are negotiated but never opened by this client.
const sctpStreams = 1024

type Options struct {
	ICEServers []string
	// ForceTCP allows active ICE-TCP so TCP-only relay candidates can pair.
	ForceTCP bool
}

// Device is a pion ORTC media engine loaded with the relay's capabilities.
type Device struct {
	opts Options
	log  zerolog.Logger

	mu     sync.RWMutex
	api    *webrtc.API
	codecs []protocol.RtpCodecCapability
}

var _ core.Device = (*Device)(nil)

func NewDevice(opts Options) *Device {
	return &Device{
		opts: opts,
		log:  log.With().Str("module", "rtc").Logger(),
	}
}

// Load keeps the relay's Opus codecs and registers them with the relay's
// payload types so RTP flows without renegotiation.
func (d *Device) Load(ctx context.Context, routerCaps protocol.RtpCapabilities) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api != nil {
		return ErrAlreadyLoaded
	}

	codecs := supportedCodecs(routerCaps)
	if len(codecs) == 0 {
		return ErrNoCompatibleCodec
	}

	me := &webrtc.MediaEngine{}
	for _, c := range codecs {
		if err := me.RegisterCodec(toCodecParameters(c), webrtc.RTPCodecTypeAudio); err != nil {
			return fmt.Errorf("register %s/%d: %w", c.MimeType, c.PreferredPayloadType, err)
		}
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactoryWith(d.log)}
	if d.opts.ForceTCP {
		se.SetNetworkTypes([]webrtc.NetworkType{
			webrtc.NetworkTypeUDP4, webrtc.NetworkTypeUDP6,
			webrtc.NetworkTypeTCP4, webrtc.NetworkTypeTCP6,
		})
	}

	d.api = webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(ir),
	)
	d.codecs = codecs
	d.log.Info().Int("codecs", len(codecs)).Uint8("payload_type", codecs[0].PreferredPayloadType).Msg("device loaded")
	return nil
}

func supportedCodecs(caps protocol.RtpCapabilities) []protocol.RtpCodecCapability {
	var out []protocol.RtpCodecCapability
	for _, c := range caps.CodecsOfKind(protocol.MediaKindAudio) {
		if !strings.EqualFold(c.MimeType, webrtc.MimeTypeOpus) {
			continue
		}
		c.Parameters = maps.Clone(c.Parameters)
		c.RtcpFeedback = slices.Clone(c.RtcpFeedback)
		out = append(out, c)
	}
	return out
}

func (d *Device) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.api != nil
}

func (d *Device) CanProduce(kind protocol.MediaKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.api != nil && kind == protocol.MediaKindAudio && len(d.codecs) > 0
}

func (d *Device) RtpCapabilities() protocol.RtpCapabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	caps := protocol.RtpCapabilities{Codecs: make([]protocol.RtpCodecCapability, 0, len(d.codecs))}
	for _, c := range d.codecs {
		c.Parameters = maps.Clone(c.Parameters)
		c.RtcpFeedback = slices.Clone(c.RtcpFeedback)
		caps.Codecs = append(caps.Codecs, c)
	}
	return caps
}

func (d *Device) SctpCapabilities() protocol.SctpCapabilities {
	return protocol.SctpCapabilities{NumStreams: protocol.NumSctpStreams{OS: sctpStreams, MIS: sctpStreams}}
}

func (d *Device) CreateSendTransport(info protocol.TransportInfo, h core.TransportHandlers) (core.SendTransport, error) {
	api, codec, err := d.loaded()
	if err != nil {
		return nil, err
	}
	if h.Produce == nil {
		return nil, errors.New("rtc: send transport needs a produce handler")
	}
	t, err := newTransport(api, info, h, "send", d.opts.ICEServers)
	if err != nil {
		return nil, err
	}
	return &SendTransport{transport: t, codec: codec}, nil
}

func (d *Device) CreateRecvTransport(info protocol.TransportInfo, h core.TransportHandlers) (core.RecvTransport, error) {
	api, _, err := d.loaded()
	if err != nil {
		return nil, err
	}
	t, err := newTransport(api, info, h, "recv", d.opts.ICEServers)
	if err != nil {
		return nil, err
	}
	return &RecvTransport{transport: t}, nil
}

func (d *Device) loaded() (*webrtc.API, protocol.RtpCodecCapability, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.api == nil {
		return nil, protocol.RtpCodecCapability{}, ErrNotLoaded
	}
	return d.api, d.codecs[0], nil
}
