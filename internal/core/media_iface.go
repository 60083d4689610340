package core

import (
	"context"

	"github.com/dkeye/VoiceClient/internal/protocol"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// CloseReason tells a producer or consumer close callback why it fired.
type CloseReason int

const (
	CloseLocal CloseReason = iota
	CloseTransportClosed
	CloseTrackEnded
)

func (r CloseReason) String() string {
	switch r {
	case CloseLocal:
		return "local"
	case CloseTransportClosed:
		return "transport-closed"
	case CloseTrackEnded:
		return "track-ended"
	}
	return "unknown"
}

type ProduceParams struct {
	Kind          protocol.MediaKind
	RtpParameters protocol.RtpParameters
	AppData       map[string]any
}

// TransportHandlers bind a transport's negotiation steps to signaling.
// Each handler returns only after the relay answered.
type TransportHandlers struct {
	Connect func(ctx context.Context, dtls protocol.DtlsParameters) error
	// Produce is only used by send transports and returns the relay producer id.
	Produce func(ctx context.Context, params ProduceParams) (string, error)
}

// Device is the local media engine loaded with the relay's capabilities.
type Device interface {
	Load(ctx context.Context, routerCaps protocol.RtpCapabilities) error
	Loaded() bool
	CanProduce(kind protocol.MediaKind) bool
	RtpCapabilities() protocol.RtpCapabilities
	SctpCapabilities() protocol.SctpCapabilities
	CreateSendTransport(info protocol.TransportInfo, h TransportHandlers) (SendTransport, error)
	CreateRecvTransport(info protocol.TransportInfo, h TransportHandlers) (RecvTransport, error)
}

type ProduceOptions struct {
	Track        webrtc.TrackLocal
	CodecOptions protocol.CodecOptions
	AppData      map[string]any
}

type ConsumeOptions struct {
	ID            string
	ProducerID    string
	Kind          protocol.MediaKind
	RtpParameters protocol.RtpParameters
	AppData       map[string]any
}

// SendTransport closes every producer created on it when closed.
type SendTransport interface {
	ID() string
	Produce(ctx context.Context, opts ProduceOptions) (Producer, error)
	Close()
	Closed() bool
}

// RecvTransport closes every consumer created on it when closed.
type RecvTransport interface {
	ID() string
	Consume(ctx context.Context, opts ConsumeOptions) (Consumer, error)
	Close()
	Closed() bool
}

type Producer interface {
	ID() string
	Kind() protocol.MediaKind
	Track() webrtc.TrackLocal
	Paused() bool
	Pause()
	Resume()
	Close()
	Closed() bool
	// OnClose is called once when the producer closes for any reason other
	// than a local Close.
	OnClose(func(CloseReason))
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() protocol.MediaKind
	Track() RemoteTrack
	AppData() map[string]any
	Paused() bool
	Pause()
	Resume()
	Close()
	Closed() bool
	// OnClose is called once when the consumer closes for any reason other
	// than a local Close.
	OnClose(func(CloseReason))
}

// RemoteTrack is the incoming media of a consumer.
type RemoteTrack interface {
	ID() string
	Kind() protocol.MediaKind
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}
