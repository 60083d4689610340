package orch

import (
	"context"

	"github.com/rs/zerolog/log"
)

// SetMic enables or disables the local microphone.
func (o *Orchestrator) SetMic(ctx context.Context, enabled bool) error {
	log.Info().Str("module", "orch").Bool("enabled", enabled).Msg("set mic")
	if enabled {
		return o.Session.EnableMic(ctx)
	}
	return o.Session.DisableMic(ctx)
}

// MicState reports whether the microphone is published and whether it is
// paused, as the session sees it right now.
func (o *Orchestrator) MicState() (enabled, muted bool) {
	return o.Session.MicEnabled(), o.Session.MicMuted()
}

// SetMuted pauses or resumes the published microphone.
func (o *Orchestrator) SetMuted(ctx context.Context, muted bool) error {
	log.Info().Str("module", "orch").Bool("muted", muted).Msg("set mute")
	if muted {
		return o.Session.MuteMic(ctx)
	}
	return o.Session.UnmuteMic(ctx)
}
