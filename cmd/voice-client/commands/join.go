package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/VoiceClient/internal/adapters/http"
	"github.com/dkeye/VoiceClient/internal/adapters/capture"
	"github.com/dkeye/VoiceClient/internal/adapters/playback"
	"github.com/dkeye/VoiceClient/internal/adapters/rtc"
	sig "github.com/dkeye/VoiceClient/internal/adapters/signal"
	"github.com/dkeye/VoiceClient/internal/app/orch"
	"github.com/dkeye/VoiceClient/internal/app/projection"
	"github.com/dkeye/VoiceClient/internal/app/room"
	"github.com/dkeye/VoiceClient/internal/config"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/dkeye/VoiceClient/internal/metrics"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"room":         "room_id",
	"peer":         "peer_id",
	"name":         "display_name",
	"server":       "server.host",
	"port":         "server.port",
	"capture":      "capture.file",
	"loop":         "capture.loop",
	"playback-dir": "playback.dir",
	"http":         "http.addr",
	"produce":      "produce",
	"consume":      "consume",
	"force-tcp":    "force_tcp",
	"log":          "log_level",
}

// NewJoinCmd returns the command that joins a room and stays until interrupted.
func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room and stay until interrupted",
		RunE:  runJoin,
	}
	AddJoinFlags(cmd.Flags())
	return cmd
}

// AddJoinFlags registers the join flags. Unset flags fall back to the config
// file, then VOICE_* environment variables, then defaults.
func AddJoinFlags(f *pflag.FlagSet) {
	f.String("room", "", "Room id to join")
	f.String("peer", "", "Local peer id (random when empty)")
	f.String("name", "", "Display name")
	f.String("server", "", "Relay host")
	f.Int("port", 0, "Relay signaling port")
	f.Bool("insecure", false, "Use ws:// instead of wss://")
	f.String("capture", "", "Ogg/Opus file used as microphone")
	f.Bool("loop", true, "Loop the capture file")
	f.String("playback-dir", "", "Directory for received audio (discarded when empty)")
	f.String("http", "", "Status HTTP listen address (disabled when empty)")
	f.Bool("produce", true, "Publish the microphone")
	f.Bool("consume", true, "Receive remote audio")
	f.Bool("force-tcp", false, "Ask the relay for TCP-only candidates")
	f.String("log", "", "debug, info, warn, error")
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet) error {
	if insecure, err := f.GetBool("insecure"); err == nil && f.Changed("insecure") {
		v.Set("server.secure", !insecure)
	}
	for name, key := range flagKeys {
		fl := f.Lookup(name)
		if fl == nil {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func runJoin(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	self := cfg.Identity()

	channel := sig.New(sig.Options{
		URL:               sig.RoomURL(cfg.Server.Host, cfg.Server.Port, cfg.Server.Secure, domain.RoomID(cfg.RoomID), self.ID),
		HandshakeTimeout:  cfg.Signaling.HandshakeTimeout,
		RequestTimeout:    cfg.Signaling.RequestTimeout,
		PingPeriod:        cfg.Signaling.PingPeriod,
		ReadLimit:         cfg.Signaling.ReadLimit,
		ReconnectAttempts: cfg.Signaling.ReconnectAttempts,
		ReconnectWindow:   cfg.Signaling.ReconnectWindow,
		ReconnectDelay:    cfg.Signaling.ReconnectDelay,
		Metrics:           m,
	})
	device := rtc.NewDevice(rtc.Options{ICEServers: cfg.ICEServers, ForceTCP: cfg.ForceTCP})
	capturer := &capture.OggCapturer{Path: cfg.Capture.File, Loop: cfg.Capture.Loop}

	r, err := room.New(room.Options{
		RoomID:         domain.RoomID(cfg.RoomID),
		Peer:           self,
		Produce:        cfg.Produce,
		Consume:        cfg.Consume,
		UseDataChannel: cfg.UseDataChannel,
		ForceTCP:       cfg.ForceTCP,
		Metrics:        m,
	}, channel, device, capturer)
	if err != nil {
		return err
	}

	store := projection.NewStore(r.ID(), self.ID)
	players := playback.NewManager(cfg.Playback.Dir)
	o := &orch.Orchestrator{Session: r, Playback: players, Store: store}

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		srv = &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: router.SetupRouter(router.Deps{
				Store:   store,
				Metrics: m,
				Mic:     o,
				Debug:   cfg.LogLevel == "debug",
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if srv != nil {
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("status server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := o.Start(gctx); err != nil {
			return err
		}
		log.Info().Str("room", cfg.RoomID).Str("peer", string(self.ID)).Msg("joined, press Ctrl+C to leave")
		select {
		case <-gctx.Done():
		case <-r.Done():
			log.Warn().Msg("room closed")
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-r.Done():
		}
		o.Stop()
		r.Wait()
		players.Wait()
		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("status server forced to shutdown")
			}
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("left room")
	return err
}
