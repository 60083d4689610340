package room

import "errors"

var (
	ErrClosed = errors.New("room closed")
	// ErrSignalingTransport means the relay connection could not be established.
	ErrSignalingTransport = errors.New("signaling transport error")
	// ErrProtocolRequest wraps a signaling request the relay rejected or never answered.
	ErrProtocolRequest = errors.New("protocol request failed")
	// ErrDeviceAccess wraps a failed microphone capture.
	ErrDeviceAccess = errors.New("device access error")

	errStaleGeneration = errors.New("stale generation")
	errNoCapturer      = errors.New("no capture device configured")
)
