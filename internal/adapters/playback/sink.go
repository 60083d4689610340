package playback

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type SinkState int32

const (
	SinkStateOk SinkState = iota
	SinkStateMuted
	SinkStateDelete
)

func (s SinkState) String() string {
	switch s {
	case SinkStateOk:
		return "ok"
	case SinkStateMuted:
		return "muted"
	case SinkStateDelete:
		return "delete"
	}
	return "unknown"
}

// Writer consumes depacketized media. oggwriter.OggWriter satisfies it.
type Writer interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// Sink is the playback endpoint of one consumer.
type Sink struct {
	ConsumerID string
	PeerID     string
	w          Writer
	state      atomic.Int32 // Zero by default (SinkStateOk)
	written    atomic.Uint64
}

func newSink(consumerID, peerID string, w Writer) *Sink {
	return &Sink{ConsumerID: consumerID, PeerID: peerID, w: w}
}

func (s *Sink) State() SinkState {
	return SinkState(s.state.Load())
}

// Written is the number of packets handed to the writer.
func (s *Sink) Written() uint64 {
	return s.written.Load()
}

func (s *Sink) MarkOk() {
	s.state.CompareAndSwap(int32(SinkStateMuted), int32(SinkStateOk))
}

func (s *Sink) MarkMuted() {
	s.state.CompareAndSwap(int32(SinkStateOk), int32(SinkStateMuted))
}

func (s *Sink) MarkDelete() {
	s.state.Store(int32(SinkStateDelete))
}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error               { return nil }
