package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/VoiceClient/internal/domain"
)

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Secure bool   `mapstructure:"secure"`
}

type SignalingConfig struct {
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectWindow   time.Duration `mapstructure:"reconnect_window"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
}

type CaptureConfig struct {
	File string `mapstructure:"file"`
	Loop bool   `mapstructure:"loop"`
}

type PlaybackConfig struct {
	Dir string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	LogLevel       string            `mapstructure:"log_level"`
	Server         ServerConfig      `mapstructure:"server"`
	RoomID         string            `mapstructure:"room_id"`
	PeerID         string            `mapstructure:"peer_id"`
	DisplayName    string            `mapstructure:"display_name"`
	Device         domain.DeviceInfo `mapstructure:"device"`
	Produce        bool              `mapstructure:"produce"`
	Consume        bool              `mapstructure:"consume"`
	UseDataChannel bool              `mapstructure:"use_data_channel"`
	ForceTCP       bool              `mapstructure:"force_tcp"`
	ICEServers     []string          `mapstructure:"ice_servers"`
	Signaling      SignalingConfig   `mapstructure:"signaling"`
	Capture        CaptureConfig     `mapstructure:"capture"`
	Playback       PlaybackConfig    `mapstructure:"playback"`
	HTTP           HTTPConfig        `mapstructure:"http"`
}

func SetDefaults(v *viper.Viper) {
	dev := domain.DefaultDevice()

	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 4443)
	v.SetDefault("server.secure", true)
	v.SetDefault("room_id", "")
	v.SetDefault("peer_id", "")
	v.SetDefault("display_name", "")
	v.SetDefault("device.flag", dev.Flag)
	v.SetDefault("device.name", dev.Name)
	v.SetDefault("device.version", dev.Version)
	v.SetDefault("produce", true)
	v.SetDefault("consume", true)
	v.SetDefault("use_data_channel", false)
	v.SetDefault("force_tcp", false)
	v.SetDefault("ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
	})
	v.SetDefault("signaling.handshake_timeout", "10s")
	v.SetDefault("signaling.request_timeout", "15s")
	v.SetDefault("signaling.ping_period", "30s")
	v.SetDefault("signaling.read_limit", 1<<20)
	v.SetDefault("signaling.reconnect_attempts", 5)
	v.SetDefault("signaling.reconnect_window", "1m")
	v.SetDefault("signaling.reconnect_delay", "2s")
	v.SetDefault("capture.file", "")
	v.SetDefault("capture.loop", true)
	v.SetDefault("playback.dir", "")
	v.SetDefault("http.addr", "127.0.0.1:8090")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of defaults into v, which
// may already carry bound command-line flags. A missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigType("yaml")
	SetDefaults(v)

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PeerID == "" {
		cfg.PeerID = string(domain.NewPeerID())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().Str("module", "config").
		Str("server", cfg.Server.Host).Int("port", cfg.Server.Port).
		Str("room_id", cfg.RoomID).Str("peer_id", cfg.PeerID).
		Bool("produce", cfg.Produce).Bool("consume", cfg.Consume).
		Msg("config resolved")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := domain.RoomID(c.RoomID).Validate(); err != nil {
		return err
	}
	if err := domain.PeerID(c.PeerID).Validate(); err != nil {
		return err
	}
	if c.DisplayName != "" {
		if err := domain.ValidateDisplayName(c.DisplayName); err != nil {
			return err
		}
	}
	if c.Server.Host == "" {
		return errors.New("server.host is empty")
	}
	return nil
}

// Identity returns the peer metadata announced on join.
func (c *Config) Identity() domain.PeerInfo {
	name := c.DisplayName
	if name == "" {
		name = c.PeerID
	}
	return domain.PeerInfo{ID: domain.PeerID(c.PeerID), DisplayName: name, Device: c.Device}
}
