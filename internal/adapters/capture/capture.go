// Package capture provides the microphone capability backed by an Ogg/Opus
// file, streamed in real time.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
)

var ErrNoDevice = errors.New("capture: no audio source configured")

const (
	clockRate       = 48000
	defaultPageTime = 20 * time.Millisecond
)

type OggCapturer struct {
	Path string
	// Loop restarts the file at EOF instead of ending the track.
	Loop bool
}

var _ core.Capturer = (*OggCapturer)(nil)

func (c *OggCapturer) Capture(ctx context.Context) (core.CaptureHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Path == "" {
		return nil, ErrNoDevice
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("capture %s: %w", c.Path, err)
	}

	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: clockRate, Channels: 2},
		"mic", "mic-"+id,
	)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	h := &handle{
		id:    id,
		track: track,
		file:  f,
		loop:  c.Loop,
		ended: make(chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   log.With().Str("module", "capture").Str("capture_id", id).Str("path", c.Path).Logger(),
	}
	go h.pump(reader)
	h.log.Info().Bool("loop", c.Loop).Msg("capture started")
	return h, nil
}

type handle struct {
	id    string
	track *webrtc.TrackLocalStaticSample
	file  *os.File
	loop  bool
	log   zerolog.Logger

	ended chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (h *handle) ID() string               { return h.id }
func (h *handle) Track() webrtc.TrackLocal { return h.track }
func (h *handle) Ended() <-chan struct{}   { return h.ended }

// Release stops the pump and closes the file. Ended is not closed.
func (h *handle) Release() {
	h.once.Do(func() {
		close(h.stop)
		<-h.done
		if err := h.file.Close(); err != nil {
			h.log.Debug().Err(err).Msg("file close")
		}
		h.log.Info().Msg("capture released")
	})
}

// pump writes one sample per Ogg page, sleeping for the page's duration as
// derived from the granule position.
func (h *handle) pump(reader *oggreader.OggReader) {
	defer close(h.done)

	var lastGranule uint64
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-timer.C:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) && h.loop {
			if reader, err = h.rewind(); err == nil {
				lastGranule = 0
				timer.Reset(0)
				continue
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Warn().Err(err).Msg("capture read failed")
			}
			h.log.Info().Msg("capture source ended")
			close(h.ended)
			return
		}

		if bytes.HasPrefix(page, []byte("OpusTags")) {
			timer.Reset(0)
			continue
		}
		d := pageDuration(header.GranulePosition, lastGranule)
		lastGranule = header.GranulePosition
		if err := h.track.WriteSample(media.Sample{Data: page, Duration: d}); err != nil {
			h.log.Debug().Err(err).Msg("write sample")
		}
		timer.Reset(d)
	}
}

func (h *handle) rewind() (*oggreader.OggReader, error) {
	if _, err := h.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	reader, _, err := oggreader.NewWith(h.file)
	return reader, err
}

func pageDuration(granule, last uint64) time.Duration {
	if granule <= last {
		return defaultPageTime
	}
	return time.Duration(granule-last) * time.Second / clockRate
}
