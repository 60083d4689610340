package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceClient/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	v := viper.New()
	v.Set("room_id", "demo")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.RoomID)
	assert.NotEmpty(t, cfg.PeerID)
	assert.Equal(t, 4443, cfg.Server.Port)
	assert.True(t, cfg.Produce)
	assert.True(t, cfg.Consume)
	assert.Equal(t, 15*time.Second, cfg.Signaling.RequestTimeout)
	assert.Len(t, cfg.ICEServers, 3)
	assert.Equal(t, domain.DefaultDevice(), cfg.Device)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(`
room_id: from-file
peer_id: A
display_name: Alice
consume: false
signaling:
  reconnect_attempts: 2
`), 0o644))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("VOICE_DISPLAY_NAME", "Alicia")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.RoomID)
	assert.Equal(t, "A", cfg.PeerID)
	assert.Equal(t, "Alicia", cfg.DisplayName)
	assert.False(t, cfg.Consume)
	assert.Equal(t, 2, cfg.Signaling.ReconnectAttempts)

	id := cfg.Identity()
	assert.EqualValues(t, "A", id.ID)
	assert.Equal(t, "Alicia", id.DisplayName)
}

func TestLoadRequiresRoom(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	_, err := Load(viper.New())
	assert.ErrorIs(t, err, domain.ErrRoomIDEmpty)
}
