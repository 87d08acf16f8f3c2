package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chatlab/internal/chat"
	"chatlab/internal/config"
	"chatlab/internal/judge"
	"chatlab/internal/pricing"
	"chatlab/internal/promptgen"
	"chatlab/internal/server"
	"chatlab/internal/usagelog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("provider_kind", string(cfg.Provider.Kind)).
		Str("model", cfg.Provider.Model).
		Str("listen", cfg.Server.ListenAddr).
		Msg("starting chatlab")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var journal *usagelog.Store
	if cfg.Usage.DSN != "" {
		journal, err = usagelog.Open(ctx, usagelog.Config{
			Driver:          cfg.Usage.Driver,
			DSN:             cfg.Usage.DSN,
			AutoMigrate:     cfg.Usage.AutoMigrate,
			MigrationsDir:   "migrations",
			MaxOpenConns:    cfg.Usage.MaxOpenConns,
			MaxIdleConns:    cfg.Usage.MaxIdleConns,
			ConnMaxLifetime: cfg.Usage.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open usage journal")
		}
		defer journal.Close()
	}

	providerCfg := cfg.Provider
	providerCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}

	orch, err := chat.New(chat.Config{
		Settings:    providerCfg,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Pricing: pricing.Price{
			Input:  cfg.PriceInputPer1K,
			Output: cfg.PriceOutputPer1K,
		},
		Journal: journal,
		Logger:  log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create chat orchestrator")
	}
	if cfg.SystemPrompt != "" {
		orch.SetSystemPrompt(cfg.SystemPrompt)
	}

	api := server.NewRouter(server.Deps{
		Orchestrator: orch,
		Generator:    promptgen.New(orch),
		Judge:        judge.New(orch),
		Logger:       log.Logger,
		HealthPath:   cfg.Server.HealthPath,
	})

	root := chi.NewRouter()
	root.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	root.Mount("/", api)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("chatlab stopped")
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
}
