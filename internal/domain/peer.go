// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxPeerIDLen      = 36
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrPeerIDEmpty        = errors.New("peer id empty")
	ErrPeerIDTooLong      = errors.New("peer id too long")
)

type PeerID string

// NewPeerID returns a fresh random peer id.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

func (id PeerID) Validate() error {
	if len(id) == 0 {
		return ErrPeerIDEmpty
	}
	if len(id) > MaxPeerIDLen {
		return ErrPeerIDTooLong
	}
	return nil
}

// PeerInfo describes a room participant as announced by the relay.
// Values are copied across boundaries, never shared.
type PeerInfo struct {
	ID          PeerID     `json:"id"`
	DisplayName string     `json:"displayName"`
	Device      DeviceInfo `json:"device"`
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
