package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeOgg produces a short Opus file with n 20ms pages.
func writeOgg(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.ogg")
	w, err := oggwriter.New(path, 48000, 2)
	require.NoError(t, err)
	for i := range n {
		require.NoError(t, w.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: uint16(i), Timestamp: uint32(i+1) * 960, SSRC: 7},
			Payload: []byte{0xfc, 0xff, 0xfe},
		}))
	}
	require.NoError(t, w.Close())
	return path
}

func TestCaptureWithoutPath(t *testing.T) {
	c := &OggCapturer{}
	_, err := c.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestCaptureMissingFile(t *testing.T) {
	c := &OggCapturer{Path: filepath.Join(t.TempDir(), "none.ogg")}
	_, err := c.Capture(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDevice)
}

func TestCaptureEndsAtEOF(t *testing.T) {
	c := &OggCapturer{Path: writeOgg(t, 5)}
	h, err := c.Capture(context.Background())
	require.NoError(t, err)
	defer h.Release()

	assert.NotEmpty(t, h.ID())
	assert.Equal(t, webrtc.RTPCodecTypeAudio, h.Track().Kind())

	select {
	case <-h.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not end")
	}
}

func TestLoopingCaptureRunsUntilRelease(t *testing.T) {
	c := &OggCapturer{Path: writeOgg(t, 2), Loop: true}
	h, err := c.Capture(context.Background())
	require.NoError(t, err)

	select {
	case <-h.Ended():
		t.Fatal("looping capture ended")
	case <-time.After(150 * time.Millisecond):
	}

	h.Release()
	h.Release()
	select {
	case <-h.Ended():
		t.Fatal("release must not report track-ended")
	default:
	}
}

func TestPageDuration(t *testing.T) {
	assert.Equal(t, 20*time.Millisecond, pageDuration(960, 0))
	assert.Equal(t, 60*time.Millisecond, pageDuration(3840, 960))
	assert.Equal(t, defaultPageTime, pageDuration(960, 960))
}
