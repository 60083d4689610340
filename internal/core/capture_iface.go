package core

//go:generate mockgen -source=capture_iface.go -destination=mocks/mock_capture.go -package=mocks

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Capturer acquires the local microphone. Capture may block for as long as
// the platform needs (permission prompts, device warm-up).
type Capturer interface {
	Capture(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle owns a live capture. Release is safe to call more than once.
type CaptureHandle interface {
	ID() string
	Track() webrtc.TrackLocal
	// Ended is closed when the source stops on its own.
	Ended() <-chan struct{}
	Release()
}
