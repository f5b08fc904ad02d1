package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/channel-history/internal/app"
	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/web"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile, cfg.LogJSON); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(2)
	}
	log := logger.Get()
	log.Info().Msg("starting harvest service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. WebSocket hub for live progress
	hub := web.NewHub()
	notifier := web.NewNotifier(hub)

	// 5. Wire storage, brokers and telegram
	a, err := app.New(ctx, cfg, app.Options{
		Progress: notifier.Progress,
		Hooks:    notifier.Hooks(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	hub.OnClients = a.Metrics.IncWSClients
	go hub.Run()
	defer hub.Close()

	// 6. Harvest manager & HTTP handlers
	harvests := collector.NewHarvestManager(a.Orchestrator, a.Telegram.GetStatus,
		func(ctx context.Context, _ *collector.HarvestJob, res *collector.RunResult, err error) {
			a.Finish(ctx, res)
			notifier.RunFinished(res, err)
		})
	handler := collector.NewHandler(harvests, a.Spec())
	router := collector.NewRouter(handler, a.Metrics.Handler(), hub.Handler())

	// 7. Start Server
	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, router)
	log.Info().Int("port", cfg.HTTPPort).Str("telegram_status", string(a.Telegram.GetStatus())).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// 8. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	harvests.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := harvests.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("harvest did not finish before shutdown")
	}
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("shutdown complete")
}
