package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dechrm/callrelay/internal/config"
	"github.com/dechrm/callrelay/internal/token"
)

type tokenRequest struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

func tokenHandler(tokens *token.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RoomName == "" || req.Identity == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomName and identity are required"})
			return
		}

		t, err := tokens.Issue(req.RoomName, req.Identity)
		if err != nil {
			// Both misconfiguration and signing failure are server-side
			// problems, terminal for this request only.
			log.Error().Err(err).Str("module", "adapters.http").Str("room", req.RoomName).Msg("token issue failed")
			if errors.Is(err, token.ErrNotConfigured) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "LiveKit API key/secret not set"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating LiveKit token"})
			return
		}

		log.Info().Str("module", "adapters.http").Str("room", req.RoomName).Str("identity", req.Identity).Msg("token issued")
		c.JSON(http.StatusOK, gin.H{"token": t})
	}
}

func debugLiveKitHandler(cfg *config.Config, tokens *token.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyPresent, secretPresent := tokens.Configured()
		c.JSON(http.StatusOK, gin.H{
			"api_key_present":    keyPresent,
			"api_secret_present": secretPresent,
			"livekit_url":        cfg.LiveKit.URL,
		})
	}
}

type clientLogRequest struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta"`
}

// clientLogHandler forwards lightweight client-side events into the server
// log so they show up next to signaling traces in hosted deployments.
func clientLogHandler(c *gin.Context) {
	var req clientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad payload"})
		return
	}

	level, err := zerolog.ParseLevel(req.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.WithLevel(level).Str("module", "client").Fields(map[string]any(req.Meta)).Msg(req.Message)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
