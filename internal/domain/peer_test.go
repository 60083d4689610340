package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDisplayName(t *testing.T) {
	assert.ErrorIs(t, ValidateDisplayName(""), ErrDisplayNameEmpty)
	assert.ErrorIs(t, ValidateDisplayName(strings.Repeat("a", MaxDisplayNameLen+1)), ErrDisplayNameTooLong)
	assert.NoError(t, ValidateDisplayName("Alice"))
}

func TestPeerIDValidate(t *testing.T) {
	assert.ErrorIs(t, PeerID("").Validate(), ErrPeerIDEmpty)
	assert.ErrorIs(t, PeerID(strings.Repeat("x", MaxPeerIDLen+1)).Validate(), ErrPeerIDTooLong)

	id := NewPeerID()
	require.NoError(t, id.Validate())
	assert.NotEqual(t, id, NewPeerID())
}

func TestRoomIDValidate(t *testing.T) {
	assert.ErrorIs(t, RoomID("").Validate(), ErrRoomIDEmpty)
	assert.NoError(t, RoomID("demo").Validate())
}
