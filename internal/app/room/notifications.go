package room

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

func (r *Room) registerNotifications() {
	r.sig.HandleNotification(protocol.NotificationNewPeer, r.onNewPeer)
	r.sig.HandleNotification(protocol.NotificationPeerClosed, r.onPeerClosed)
	r.sig.HandleNotification(protocol.NotificationProducerPaused, r.onProducerPaused)
	r.sig.HandleNotification(protocol.NotificationProducerResumed, r.onProducerResumed)
	r.sig.HandleNotification(protocol.NotificationConsumerPaused, r.onConsumerPaused)
	r.sig.HandleNotification(protocol.NotificationConsumerResumed, r.onConsumerResumed)
	r.sig.HandleNotification(protocol.NotificationConsumerClosed, r.onConsumerClosedNotification)
	r.sig.HandleNotification(protocol.NotificationActiveSpeaker, r.onActiveSpeaker)
	r.sig.HandleNotification(protocol.NotificationProducerScore, func(json.RawMessage) {})
}

func (r *Room) decode(method string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		r.log.Error().Err(err).Str("method", method).Msg("bad notification payload")
		return false
	}
	return true
}

func (r *Room) onNewPeer(data json.RawMessage) {
	var p domain.PeerInfo
	if !r.decode(protocol.NotificationNewPeer, data, &p) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return
	}
	r.addPeerLocked(p)
	r.log.Info().Str("peer", string(p.ID)).Str("name", p.DisplayName).Msg("peer joined")
}

func (r *Room) onPeerClosed(data json.RawMessage) {
	var n protocol.PeerClosedNotification
	if !r.decode(protocol.NotificationPeerClosed, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return
	}
	for id, e := range r.consumers {
		if e.peerID == n.PeerID {
			r.evictConsumerLocked(id, e)
		}
	}
	for id, p := range r.negotiating {
		if p.peerID == n.PeerID {
			delete(r.negotiating, id)
		}
	}
	r.removePeerLocked(n.PeerID)
	r.emit(PeerClosed{PeerID: n.PeerID})
	r.log.Info().Str("peer", string(n.PeerID)).Msg("peer left")
}

func (r *Room) onProducerPaused(data json.RawMessage) {
	var n protocol.PeerProducerNotification
	if !r.decode(protocol.NotificationProducerPaused, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateClosed {
		r.setPeerPausedLocked(n.PeerID, true)
	}
}

func (r *Room) onProducerResumed(data json.RawMessage) {
	var n protocol.PeerProducerNotification
	if !r.decode(protocol.NotificationProducerResumed, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateClosed {
		r.setPeerPausedLocked(n.PeerID, false)
	}
}

func (r *Room) onConsumerPaused(data json.RawMessage) {
	r.onConsumerPause(protocol.NotificationConsumerPaused, data, true)
}

func (r *Room) onConsumerResumed(data json.RawMessage) {
	r.onConsumerPause(protocol.NotificationConsumerResumed, data, false)
}

// onConsumerPause resolves the consumer to its peer; unknown ids are ignored.
// A consumer still negotiating picks the state up once it is created.
func (r *Room) onConsumerPause(method string, data json.RawMessage, paused bool) {
	var n protocol.ConsumerNotification
	if !r.decode(method, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.negotiating[n.ConsumerID]; ok {
		p.paused = paused
		r.setPeerPausedLocked(p.peerID, paused)
		return
	}
	e, ok := r.consumers[n.ConsumerID]
	if !ok {
		r.log.Debug().Str("consumer_id", n.ConsumerID).Str("method", method).Msg("unknown consumer")
		return
	}
	if paused {
		e.consumer.Pause()
	} else {
		e.consumer.Resume()
	}
	r.setPeerPausedLocked(e.peerID, paused)
}

func (r *Room) onConsumerClosedNotification(data json.RawMessage) {
	var n protocol.ConsumerNotification
	if !r.decode(protocol.NotificationConsumerClosed, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.consumers[n.ConsumerID]; ok {
		r.evictConsumerLocked(n.ConsumerID, e)
	}
	delete(r.negotiating, n.ConsumerID)
}

func (r *Room) onActiveSpeaker(data json.RawMessage) {
	var n protocol.ActiveSpeakerNotification
	if !r.decode(protocol.NotificationActiveSpeaker, data, &n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateClosed {
		r.emit(ActiveSpeaker{PeerID: n.PeerID, Volume: n.Volume})
	}
}

func (r *Room) addPeerLocked(p domain.PeerInfo) {
	if _, ok := r.peers[p.ID]; !ok {
		r.peerOrder = append(r.peerOrder, p.ID)
	}
	r.peers[p.ID] = &peerEntry{info: p}
	r.emit(NewPeer{Peer: p})
}

func (r *Room) removePeerLocked(id domain.PeerID) {
	if _, ok := r.peers[id]; !ok {
		return
	}
	delete(r.peers, id)
	for i, pid := range r.peerOrder {
		if pid == id {
			r.peerOrder = append(r.peerOrder[:i:i], r.peerOrder[i+1:]...)
			break
		}
	}
}

// setPeerPausedLocked records the derived mic state and emits the normalized
// peer event, whichever notification granularity triggered it.
func (r *Room) setPeerPausedLocked(id domain.PeerID, paused bool) {
	if p, ok := r.peers[id]; ok {
		p.micPaused = paused
	}
	if paused {
		r.emit(PeerProducerPaused{PeerID: id})
	} else {
		r.emit(PeerProducerResumed{PeerID: id})
	}
}
