package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/app/room"
)

// OnEvent routes Room events to playback.
func (o *Orchestrator) OnEvent(ev room.Event) {
	if o.Playback == nil {
		return
	}
	switch e := ev.(type) {
	case room.NewAudioConsumer:
		if err := o.Playback.Start(o.context(), string(e.PeerID), e.Consumer); err != nil {
			log.Error().
				Err(err).
				Str("module", "orch").
				Str("consumer_id", e.Consumer.ID()).
				Str("peer_id", string(e.PeerID)).
				Msg("playback start failed")
		}
	case room.ConsumerClosed:
		o.Playback.Stop(e.ConsumerID)
	case room.PeerProducerPaused:
		o.Playback.SetPeerMuted(string(e.PeerID), true)
	case room.PeerProducerResumed:
		o.Playback.SetPeerMuted(string(e.PeerID), false)
	case room.Disconnected, room.Closed:
		o.Playback.StopAll()
	}
}
