package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

// EnableMic captures the microphone and publishes it. Outside a connected
// session with a send transport it only logs. A capture that completes after
// the session moved on, or after DisableMic, is released without producing.
func (r *Room) EnableMic(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateConnected || r.sendTransport == nil {
		r.mu.Unlock()
		r.log.Warn().Msg("enableMic: not connected or cannot produce")
		return nil
	}
	if r.mic != nil || r.micPending {
		// A disable may have cancelled the pending enable; ask again.
		r.micWanted = true
		r.mu.Unlock()
		r.log.Debug().Msg("enableMic: already enabled")
		return nil
	}
	if !r.dev.CanProduce(protocol.MediaKindAudio) {
		r.mu.Unlock()
		r.log.Warn().Msg("enableMic: device cannot produce audio")
		return nil
	}
	r.micPending = true
	r.micWanted = true
	gen := r.gen
	send := r.sendTransport
	r.mu.Unlock()

	handle, err := r.capture(ctx)
	if err != nil {
		if r.clearPending(gen) {
			err = fmt.Errorf("%w: %w", ErrDeviceAccess, err)
			r.log.Error().Err(err).Msg("enableMic: capture failed")
			r.emit(Error{Err: err})
			return err
		}
		return nil
	}
	if !r.keepPending(gen) {
		r.log.Debug().Msg("enableMic: session gone or mic disabled during capture, releasing")
		handle.Release()
		return nil
	}

	producer, err := send.Produce(ctx, core.ProduceOptions{
		Track:        handle.Track(),
		CodecOptions: protocol.DefaultMicCodecOptions(),
		AppData: map[string]any{
			"source": "mic",
			"peerId": string(r.opts.Peer.ID),
		},
	})
	if err != nil {
		handle.Release()
		if r.clearPending(gen) {
			r.log.Error().Err(err).Msg("enableMic: produce failed")
			r.emit(Error{Err: err})
			return err
		}
		return nil
	}

	r.mu.Lock()
	if r.staleLocked(gen) {
		r.mu.Unlock()
		r.log.Debug().Str("producer_id", producer.ID()).Msg("enableMic: session gone during produce, releasing")
		producer.Close()
		handle.Release()
		return nil
	}
	r.micPending = false
	if !r.micWanted {
		r.mu.Unlock()
		r.log.Debug().Str("producer_id", producer.ID()).Msg("enableMic: mic disabled during produce, releasing")
		producer.Close()
		handle.Release()
		err := r.request(ctx, gen, protocol.MethodCloseProducer, protocol.ProducerRequest{ProducerID: producer.ID()}, nil)
		if err != nil && !errors.Is(err, errStaleGeneration) {
			r.log.Warn().Err(err).Str("producer_id", producer.ID()).Msg("closeProducer failed")
		}
		return nil
	}
	m := &micState{producer: producer, capture: handle, stop: make(chan struct{})}
	r.mic = m
	producer.OnClose(func(reason core.CloseReason) {
		r.ops.Go(func() { r.onProducerClosed(producer, reason) })
	})
	r.emit(MicEnabled{Stream: LocalStream{ID: handle.ID(), Tracks: []webrtc.TrackLocal{handle.Track()}}})
	r.mu.Unlock()

	r.log.Info().Str("producer_id", producer.ID()).Msg("mic enabled")
	r.ops.Go(func() { r.watchTrackEnded(m) })
	return nil
}

func (r *Room) capture(ctx context.Context) (core.CaptureHandle, error) {
	if r.capturer == nil {
		return nil, errNoCapturer
	}
	return r.capturer.Capture(ctx)
}

// keepPending reports whether an enable started at gen should go on. When the
// mic was disabled meanwhile it also drops the pending flag.
func (r *Room) keepPending(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		return false
	}
	if !r.micWanted {
		r.micPending = false
		return false
	}
	return true
}

// clearPending drops the pending flag and reports whether gen is still current.
func (r *Room) clearPending(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		return false
	}
	r.micPending = false
	return true
}

func (r *Room) watchTrackEnded(m *micState) {
	select {
	case <-m.capture.Ended():
	case <-m.stop:
		return
	}
	r.mu.Lock()
	current := r.mic == m
	r.mu.Unlock()
	if !current {
		return
	}
	r.log.Warn().Msg("mic track ended")
	if err := r.DisableMic(context.Background()); err != nil {
		r.log.Warn().Err(err).Msg("disableMic after track end")
	}
}

func (r *Room) onProducerClosed(p core.Producer, reason core.CloseReason) {
	r.mu.Lock()
	if r.mic == nil || r.mic.producer != p {
		r.mu.Unlock()
		return
	}
	r.log.Warn().Stringer("reason", reason).Str("producer_id", p.ID()).Msg("producer closed")
	m := r.mic
	r.mic = nil
	m.release()
	r.emit(MicDisabled{})
	r.mu.Unlock()
}

// DisableMic closes the producer locally and on the relay. MicDisabled is
// emitted even when the relay request fails; the failure is returned. An
// enable still capturing or producing is cancelled instead.
func (r *Room) DisableMic(ctx context.Context) error {
	r.mu.Lock()
	m := r.mic
	if m == nil {
		pending := r.micPending
		if pending {
			r.micWanted = false
		}
		r.mu.Unlock()
		if pending {
			r.log.Info().Msg("disableMic: cancelling pending enable")
		} else {
			r.log.Debug().Msg("disableMic: mic not enabled")
		}
		return nil
	}
	r.mic = nil
	r.micWanted = false
	gen := r.gen
	m.release()
	r.mu.Unlock()

	producerID := m.producer.ID()
	err := r.request(ctx, gen, protocol.MethodCloseProducer, protocol.ProducerRequest{ProducerID: producerID}, nil)
	if errors.Is(err, errStaleGeneration) {
		err = nil
	}
	if err != nil {
		r.log.Error().Err(err).Str("producer_id", producerID).Msg("closeProducer failed")
	}
	r.emit(MicDisabled{})
	r.log.Info().Str("producer_id", producerID).Msg("mic disabled")
	return err
}

// MuteMic pauses the producer locally and asks the relay to pause it for
// everyone. Without a producer it only logs.
func (r *Room) MuteMic(ctx context.Context) error {
	return r.setMicPaused(ctx, true)
}

func (r *Room) UnmuteMic(ctx context.Context) error {
	return r.setMicPaused(ctx, false)
}

func (r *Room) setMicPaused(ctx context.Context, paused bool) error {
	r.mu.Lock()
	m := r.mic
	if m == nil {
		r.mu.Unlock()
		r.log.Warn().Bool("paused", paused).Msg("mute: mic not enabled")
		return nil
	}
	if m.producer.Paused() == paused {
		r.mu.Unlock()
		return nil
	}
	method := protocol.MethodResumeProducer
	if paused {
		m.producer.Pause()
		method = protocol.MethodPauseProducer
		r.emit(MicMuted{})
	} else {
		m.producer.Resume()
		r.emit(MicUnmuted{})
	}
	gen := r.gen
	r.mu.Unlock()

	err := r.request(ctx, gen, method, protocol.ProducerRequest{ProducerID: m.producer.ID()}, nil)
	if errors.Is(err, errStaleGeneration) {
		return nil
	}
	if err != nil {
		r.log.Error().Err(err).Str("method", method).Msg("mute request failed")
	}
	return err
}
