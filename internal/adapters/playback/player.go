package playback

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/dkeye/VoiceClient/internal/core"
)

// player pumps one remote track into its sink until the track ends or the
// sink is marked for deletion.
type player struct {
	src    core.RemoteTrack
	sink   *Sink
	cancel context.CancelFunc
}

func (p *player) loop(ctx context.Context, logger *zerolog.Logger) {
	defer func() {
		p.sink.MarkDelete()
		if err := p.sink.w.Close(); err != nil {
			logger.Warn().Err(err).Msg("sink close error")
		}
		logger.Info().Uint64("packets", p.sink.Written()).Msg("playback stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := p.src.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error().Err(err).Msg("playback read RTP error, stopping")
			}
			return
		}
		switch p.sink.State() {
		case SinkStateDelete:
			return
		case SinkStateMuted:
		case SinkStateOk:
			if err := p.sink.w.WriteRTP(pkt); err != nil {
				logger.Error().Err(err).Msg("playback write error, stopping")
				return
			}
			p.sink.written.Add(1)
		}
	}
}
