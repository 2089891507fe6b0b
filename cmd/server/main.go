package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/toolbridge/dispatcher/internal/admin"
	"github.com/toolbridge/dispatcher/internal/auth"
	"github.com/toolbridge/dispatcher/internal/config"
	"github.com/toolbridge/dispatcher/internal/descgen"
	"github.com/toolbridge/dispatcher/internal/httpapi"
	"github.com/toolbridge/dispatcher/internal/idhash"
	"github.com/toolbridge/dispatcher/internal/logging"
	"github.com/toolbridge/dispatcher/internal/router"
	"github.com/toolbridge/dispatcher/internal/session"
	"github.com/toolbridge/dispatcher/internal/tenant"
	"github.com/toolbridge/dispatcher/internal/worker"
)

func main() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		// Logging isn't wired up yet at this point, so fall back to a bare
		// writer for this earliest-possible fatal.
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	adminTokenGenerated := false
	if cfg.Admin.AdminToken == "" {
		cfg.Admin.AdminToken = idhash.RandomToken()
		adminTokenGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	ring := logging.NewRingBuffer()
	logger = logger.Hook(ring.Hook())
	log.Logger = logger

	if adminTokenGenerated {
		logger.Warn().Str("admin_token", cfg.Admin.AdminToken).
			Msg("no TB_ADMIN_TOKEN configured; generated a random one for this process — it will not survive a restart")
	}

	tenants, err := tenant.New(cfg.APISpaces)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build tenant registry")
	}
	workers := worker.NewRegistry()

	rtr := router.New(workers, tenants, cfg.InvocationTimeout, logger)
	sessions := session.NewManager(workers, tenants, rtr, logger, cfg.HandshakeWindow, cfg.PingInterval, cfg.PongGrace)
	rtr.SetSender(sessions)

	publicURL := cfg.HTTP.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	}

	srv := &httpapi.Server{
		Tenants:  tenants,
		Workers:  workers,
		Auth:     auth.New(tenants, cfg.Admin.AdminToken),
		Router:   rtr,
		Sessions: sessions,
		DescGen:  descgen.New(publicURL),
		Admin: &admin.Server{
			Tenants:    tenants,
			Workers:    workers,
			Sessions:   sessions,
			Logs:       ring,
			AdminToken: cfg.Admin.AdminToken,
			StartedAt:  time.Now(),
			Log:        logger,
		},
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Int("tenants", len(cfg.APISpaces)).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// Fail every in-flight invocation and close every worker session before
	// the listener stops accepting, so clients see a clean error instead of
	// a dropped connection.
	rtr.Shutdown()
	sessions.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("server stopped")
}
