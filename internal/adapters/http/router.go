package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/app/projection"
	"github.com/dkeye/VoiceClient/internal/metrics"
)

// MicController is the local microphone surface, implemented by orch.Orchestrator.
type MicController interface {
	SetMic(ctx context.Context, enabled bool) error
	SetMuted(ctx context.Context, muted bool) error
	MicState() (enabled, muted bool)
}

type Deps struct {
	Store   *projection.Store
	Metrics *metrics.Metrics
	Mic     MicController
	Debug   bool
}

func SetupRouter(d Deps) *gin.Engine {
	if !d.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.Debug {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{store: d.Store, mic: d.Mic}
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")
	api.GET("/state", h.state)
	if d.Mic != nil {
		api.POST("/mic", h.setMic)
		api.POST("/mute", h.setMuted)
	}

	log.Info().Str("module", "adapters.http").Bool("mic_control", d.Mic != nil).Msg("router setup")
	return r
}
