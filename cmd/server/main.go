package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dechrm/callrelay/internal/adapters/http"
	wssignal "github.com/dechrm/callrelay/internal/adapters/signal"
	"github.com/dechrm/callrelay/internal/app"
	"github.com/dechrm/callrelay/internal/calllog"
	"github.com/dechrm/callrelay/internal/config"
	"github.com/dechrm/callrelay/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	recorder, cleanup := newRecorder(ctx, cfg)
	defer cleanup()

	registry := app.NewRegistry()
	conns := wssignal.NewConnTable()
	limiter := app.NewCallRateLimiter(cfg.CallRateLimit, cfg.CallRateInterval)
	relay := app.NewRouter(registry, conns, recorder, limiter)

	ctl := wssignal.NewSignalWSController(cfg, relay, conns)
	tokens := token.NewProvider(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)

	r := router.SetupRouter(ctx, cfg, ctl, tokens)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("callrelay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	conns.CloseAll()
	log.Info().Msg("Server exited gracefully")
}

// newRecorder picks the call audit backend. Postgres when configured, the
// in-memory recorder otherwise, and the no-op when logging is disabled.
func newRecorder(ctx context.Context, cfg *config.Config) (calllog.Recorder, func()) {
	if !cfg.CallLogEnabled {
		return calllog.Noop{}, func() {}
	}
	if cfg.DatabaseURL == "" {
		log.Info().Msg("call log enabled without database_url, keeping records in memory")
		return calllog.NewMemory(), func() {}
	}
	pg, err := calllog.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		// Audit is optional: a dead database must not stop signaling.
		log.Error().Err(err).Msg("call log database unavailable, falling back to memory")
		return calllog.NewMemory(), func() {}
	}
	log.Info().Msg("call log backed by postgres")
	return pg, pg.Close
}
