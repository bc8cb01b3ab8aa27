package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dechrm/callrelay/internal/adapters/signal"
	"github.com/dechrm/callrelay/internal/config"
	"github.com/dechrm/callrelay/internal/token"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController, tokens *token.Provider) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "✅ callrelay running")
	})

	api := r.Group("/api")
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api.POST("/get-livekit-token", tokenHandler(tokens))
	api.GET("/debug-livekit", debugLiveKitHandler(cfg, tokens))
	api.POST("/log-client-event", clientLogHandler)

	log.Info().Str("module", "adapters.http").Int("origins", len(cfg.AllowedOrigins)).Msg("router setup")
	return r
}
