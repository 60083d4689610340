package room

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

type EventKind string

const (
	KindConnecting          EventKind = "connecting"
	KindConnected           EventKind = "connected"
	KindConnectionFailed    EventKind = "connectionFailed"
	KindDisconnected        EventKind = "disconnected"
	KindClosed              EventKind = "closed"
	KindError               EventKind = "error"
	KindNewPeer             EventKind = "newPeer"
	KindPeerClosed          EventKind = "peerClosed"
	KindMicEnabled          EventKind = "micEnabled"
	KindMicDisabled         EventKind = "micDisabled"
	KindMicMuted            EventKind = "micMuted"
	KindMicUnmuted          EventKind = "micUnmuted"
	KindNewAudioConsumer    EventKind = "newAudioConsumer"
	KindPeerProducerPaused  EventKind = "peerProducerPaused"
	KindPeerProducerResumed EventKind = "peerProducerResumed"
	KindConsumerClosed      EventKind = "consumerClosed"
	KindActiveSpeaker       EventKind = "activeSpeaker"
)

// Event is the closed set of notifications a Room emits. Switch on the
// concrete type; Kind is for logs and metrics.
type Event interface {
	Kind() EventKind
	roomEvent()
}

type (
	Connecting struct{}
	Connected  struct{}

	ConnectionFailed struct{ Err error }

	Disconnected struct{}
	Closed       struct{}

	Error struct{ Err error }

	NewPeer    struct{ Peer domain.PeerInfo }
	PeerClosed struct{ PeerID domain.PeerID }

	MicEnabled  struct{ Stream LocalStream }
	MicDisabled struct{}
	MicMuted    struct{}
	MicUnmuted  struct{}

	NewAudioConsumer struct {
		Consumer core.Consumer
		PeerID   domain.PeerID
	}

	PeerProducerPaused  struct{ PeerID domain.PeerID }
	PeerProducerResumed struct{ PeerID domain.PeerID }

	ConsumerClosed struct {
		ConsumerID string
		PeerID     domain.PeerID
	}

	// ActiveSpeaker reports the loudest peer; an empty PeerID means silence.
	ActiveSpeaker struct {
		PeerID domain.PeerID
		Volume float64
	}
)

// LocalStream is the published microphone.
type LocalStream struct {
	ID     string
	Tracks []webrtc.TrackLocal
}

func (Connecting) Kind() EventKind          { return KindConnecting }
func (Connected) Kind() EventKind           { return KindConnected }
func (ConnectionFailed) Kind() EventKind    { return KindConnectionFailed }
func (Disconnected) Kind() EventKind        { return KindDisconnected }
func (Closed) Kind() EventKind              { return KindClosed }
func (Error) Kind() EventKind               { return KindError }
func (NewPeer) Kind() EventKind             { return KindNewPeer }
func (PeerClosed) Kind() EventKind          { return KindPeerClosed }
func (MicEnabled) Kind() EventKind          { return KindMicEnabled }
func (MicDisabled) Kind() EventKind         { return KindMicDisabled }
func (MicMuted) Kind() EventKind            { return KindMicMuted }
func (MicUnmuted) Kind() EventKind          { return KindMicUnmuted }
func (NewAudioConsumer) Kind() EventKind    { return KindNewAudioConsumer }
func (PeerProducerPaused) Kind() EventKind  { return KindPeerProducerPaused }
func (PeerProducerResumed) Kind() EventKind { return KindPeerProducerResumed }
func (ConsumerClosed) Kind() EventKind      { return KindConsumerClosed }
func (ActiveSpeaker) Kind() EventKind       { return KindActiveSpeaker }

func (Connecting) roomEvent()          {}
func (Connected) roomEvent()           {}
func (ConnectionFailed) roomEvent()    {}
func (Disconnected) roomEvent()        {}
func (Closed) roomEvent()              {}
func (Error) roomEvent()               {}
func (NewPeer) roomEvent()             {}
func (PeerClosed) roomEvent()          {}
func (MicEnabled) roomEvent()          {}
func (MicDisabled) roomEvent()         {}
func (MicMuted) roomEvent()            {}
func (MicUnmuted) roomEvent()          {}
func (NewAudioConsumer) roomEvent()    {}
func (PeerProducerPaused) roomEvent()  {}
func (PeerProducerResumed) roomEvent() {}
func (ConsumerClosed) roomEvent()      {}
func (ActiveSpeaker) roomEvent()       {}
