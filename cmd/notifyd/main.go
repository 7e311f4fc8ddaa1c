// Command notifyd runs the push-notification fan-out server: it serves the
// /ws upgrade route, subscribes to the shared event bus, and exposes
// Prometheus metrics and the HTTP test-probe surface. Grounded on the
// teacher's cmd/main.go wiring order (dependencies constructed top to
// bottom, HTTP server started in a goroutine, graceful shutdown on
// SIGINT/SIGTERM) but scoped to notify-push's own component set.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamspace-dev/notify-push/internal/api"
	"github.com/streamspace-dev/notify-push/internal/bus"
	"github.com/streamspace-dev/notify-push/internal/config"
	"github.com/streamspace-dev/notify-push/internal/connections"
	"github.com/streamspace-dev/notify-push/internal/dispatch"
	"github.com/streamspace-dev/notify-push/internal/logger"
	"github.com/streamspace-dev/notify-push/internal/metrics"
	"github.com/streamspace-dev/notify-push/internal/preauth"
	"github.com/streamspace-dev/notify-push/internal/session"
	"github.com/streamspace-dev/notify-push/internal/storagemapping"
	"github.com/streamspace-dev/notify-push/internal/verifier"
	"github.com/streamspace-dev/notify-push/internal/versionkv"
)

const busSubject = "notify_push"

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Validate(); err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("invalid configuration")
	}

	metricsCollector := metrics.New()
	registry := connections.NewRegistry(cfg.UserConnectionLimit, cfg.FanOutBufferSize, metricsCollector)
	preAuthCache := preauth.New(cfg.PreAuthTTL)
	logHandle := logger.NewHandle()
	resetBroadcaster := session.NewResetBroadcaster()

	mapping, err := storagemapping.Open(cfg.DatabaseURL)
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("failed to open storage mapping database")
	}
	defer mapping.Close()

	selfTestCtx, selfTestCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := mapping.SelfTest(selfTestCtx); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("storage mapping self-test failed, continuing anyway")
	}
	selfTestCancel()

	announcer := versionkv.NewAnnouncer(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.ProtocolVersion)
	defer announcer.Close()

	announceCtx, announceCancel := context.WithTimeout(context.Background(), 5*time.Second)
	announcer.Announce(announceCtx)
	announceCancel()

	dispatcher := dispatch.New(registry, preAuthCache, mapping, logHandle)

	credVerifier := verifier.New(cfg.VerifierURL)

	sessionDeps := session.Deps{
		Registry:  registry,
		PreAuth:   preAuthCache,
		Verifier:  credVerifier,
		Metrics:   metricsCollector,
		Debounce:  cfg.DebounceInterval,
		Handshake: cfg.HandshakeDeadline,
		PingEvery: cfg.PingInterval,
		Reset:     resetBroadcaster,
	}

	server := &api.Server{
		SessionDeps: sessionDeps,
		Dispatcher:  dispatcher,
		Metrics:     metricsCollector,
		Mapping:     mapping,
		Announcer:   announcer,
	}
	router := api.NewRouter(server)

	ctx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()

	subscriber := bus.NewSubscriber(cfg.NatsURL, busSubject, metricsCollector)
	go subscriber.Run(ctx, dispatcher.Handle)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.GetLogger().Info().Str("addr", srv.Addr).Msg("notify-push listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.GetLogger().Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.GetLogger().Info().Str("signal", sig.String()).Msg("shutting down")

	resetBroadcaster.Fire()
	cancelBus()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("http server forced to shutdown")
	}
}
