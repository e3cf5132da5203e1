// Command runtimed is the runtime broker's HTTP daemon: it wires
// configuration, the platform client, the session orchestrator, the idle
// sweeper, and the HTTP surface, then serves spec §6's endpoint table until
// an interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bolthost/runtime/internal/cache"
	"github.com/bolthost/runtime/internal/config"
	"github.com/bolthost/runtime/internal/httpapi"
	"github.com/bolthost/runtime/internal/logger"
	"github.com/bolthost/runtime/internal/middleware"
	"github.com/bolthost/runtime/internal/orchestrator"
	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/sweeper"
)

func main() {
	logger.Initialize(getEnv("LOG_LEVEL", "info"), getEnv("LOG_PRETTY", "false") == "true")
	log := logger.Component("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	redisCache, err := cache.NewCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Enabled:  cfg.RedisEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}
	defer redisCache.Close()

	platformClient := platform.NewCachedClient(
		platform.NewClient(cfg.DokployBaseURL, cfg.DokployAPIKey),
		redisCache,
	)

	idleSweeper := sweeper.New(platformClient)

	orch := orchestrator.New(platformClient, idleSweeper, orchestrator.Config{
		CanaryRolloutPercent: cfg.DokployCanaryRolloutPct,
		CanaryServerID:       cfg.DokployCanaryServerID,
		StableServerID:       cfg.DokployServerID,
		SessionIdleMinutes:   cfg.SessionIdleMinutes,
		TokenSecret:          cfg.TokenSecret,
	})

	var scheduler *sweeper.Scheduler
	if cronExpr := os.Getenv("RUNTIME_SWEEP_CRON"); cronExpr != "" {
		scheduler, err = sweeper.NewScheduler(idleSweeper, cronExpr)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid RUNTIME_SWEEP_CRON expression")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	rateLimiter := middleware.NewRateLimiter(10, 20)

	server := httpapi.NewServer(cfg, orch, platformClient, idleSweeper)
	router := server.NewRouter(rateLimiter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,

		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", string(cfg.Provider)).Msg("runtimed listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownTimeout := 30 * time.Second
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			shutdownTimeout = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server stopped gracefully")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
