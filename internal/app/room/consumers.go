package room

import (
	"context"
	"fmt"
	"maps"

	json "github.com/goccy/go-json"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

// handleNewConsumer answers the relay's newConsumer request. The consumer is
// indexed and announced before the relay gets the accept.
func (r *Room) handleNewConsumer(ctx context.Context, data json.RawMessage, res core.Responder) {
	var req protocol.NewConsumerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		r.log.Error().Err(err).Msg("bad newConsumer payload")
		r.reject(res, protocol.CodeInternal, "bad payload")
		return
	}
	l := r.log.With().Str("consumer_id", req.ID).Str("peer_id", string(req.PeerID)).Logger()

	r.mu.Lock()
	if !r.opts.Consume {
		r.mu.Unlock()
		r.reject(res, protocol.CodeForbidden, "I do not want to consume")
		return
	}
	if r.state == StateClosed || r.recvTransport == nil || !r.dev.Loaded() {
		r.mu.Unlock()
		r.reject(res, protocol.CodeForbidden, "cannot consume (device or transport not ready)")
		return
	}
	if old, ok := r.consumers[req.ID]; ok {
		l.Warn().Msg("replacing consumer with duplicate id")
		r.evictConsumerLocked(req.ID, old)
	}
	p := &pendingConsumer{peerID: req.PeerID, paused: req.ProducerPaused}
	r.negotiating[req.ID] = p
	gen := r.gen
	recv := r.recvTransport
	r.mu.Unlock()

	appData := maps.Clone(req.AppData)
	if appData == nil {
		appData = make(map[string]any, 1)
	}
	appData["peerId"] = string(req.PeerID)

	consumer, err := recv.Consume(ctx, core.ConsumeOptions{
		ID:            req.ID,
		ProducerID:    req.ProducerID,
		Kind:          req.Kind,
		RtpParameters: req.RtpParameters,
		AppData:       appData,
	})
	if err != nil {
		r.mu.Lock()
		if r.negotiating[req.ID] == p {
			delete(r.negotiating, req.ID)
		}
		r.mu.Unlock()
		l.Error().Err(err).Msg("create consumer failed")
		r.reject(res, protocol.CodeInternal, err.Error())
		if !r.stale(gen) {
			r.emit(Error{Err: fmt.Errorf("consume %s: %w", req.ID, err)})
		}
		return
	}

	r.mu.Lock()
	if r.staleLocked(gen) {
		r.mu.Unlock()
		l.Debug().Msg("session gone during consume, releasing")
		consumer.Close()
		r.reject(res, protocol.CodeForbidden, "session closed")
		return
	}
	// Gone from negotiating means a peerClosed, consumerClosed or a newer
	// consumer with the same id arrived while the transport was connecting.
	if r.negotiating[req.ID] != p {
		r.mu.Unlock()
		l.Debug().Msg("consumer closed while negotiating, releasing")
		consumer.Close()
		r.reject(res, protocol.CodeForbidden, "consumer closed")
		return
	}
	delete(r.negotiating, req.ID)
	if p.paused {
		consumer.Pause()
	}
	r.consumers[req.ID] = &consumerEntry{consumer: consumer, peerID: req.PeerID}
	r.opts.Metrics.SetConsumers(len(r.consumers))
	consumer.OnClose(func(reason core.CloseReason) {
		r.ops.Go(func() { r.onConsumerClosed(consumer, reason) })
	})
	if consumer.Kind() == protocol.MediaKindAudio {
		r.emit(NewAudioConsumer{Consumer: consumer, PeerID: req.PeerID})
	}
	if req.ProducerPaused && p.paused {
		r.setPeerPausedLocked(req.PeerID, true)
	}
	r.mu.Unlock()

	l.Info().Str("producer_id", req.ProducerID).Bool("paused", p.paused).Msg("consumer created")
	if err := res.Accept(nil); err != nil {
		l.Warn().Err(err).Msg("accept newConsumer")
	}
}

func (r *Room) reject(res core.Responder, code int, reason string) {
	if err := res.Reject(code, reason); err != nil {
		r.log.Warn().Err(err).Int("code", code).Msg("reject newConsumer")
	}
}

// onConsumerClosed evicts a consumer closed by its transport or track.
func (r *Room) onConsumerClosed(c core.Consumer, reason core.CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.consumers[c.ID()]
	if !ok || e.consumer != c {
		return
	}
	r.log.Debug().Str("consumer_id", c.ID()).Stringer("reason", reason).Msg("consumer evicted")
	r.evictConsumerLocked(c.ID(), e)
}

func (r *Room) evictConsumerLocked(id string, e *consumerEntry) {
	delete(r.consumers, id)
	e.consumer.Close()
	r.opts.Metrics.SetConsumers(len(r.consumers))
	r.emit(ConsumerClosed{ConsumerID: id, PeerID: e.peerID})
}
