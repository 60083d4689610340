package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/app/projection"
)

type handlers struct {
	store *projection.Store
	mic   MicController
}

type MicRequest struct {
	Enabled *bool `json:"enabled"`
}

type MuteRequest struct {
	Muted *bool `json:"muted"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) state(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
		return
	}
	c.JSON(http.StatusOK, h.store.Snapshot())
}

func (h *handlers) setMic(c *gin.Context) {
	var req MicRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid enabled"})
		return
	}
	if err := h.mic.SetMic(c.Request.Context(), *req.Enabled); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Bool("enabled", *req.Enabled).Msg("set mic failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.micState(c)
}

// micState answers with what the session did, which is not always what was
// asked: enabling outside a connected session does nothing.
func (h *handlers) micState(c *gin.Context) {
	enabled, muted := h.mic.MicState()
	c.JSON(http.StatusOK, gin.H{"enabled": enabled, "muted": muted})
}

func (h *handlers) setMuted(c *gin.Context) {
	var req MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Muted == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid muted"})
		return
	}
	if err := h.mic.SetMuted(c.Request.Context(), *req.Muted); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Bool("muted", *req.Muted).Msg("set mute failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.micState(c)
}
