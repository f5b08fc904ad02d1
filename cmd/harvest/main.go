package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/blockedby/channel-history/internal/app"
	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/telegram"
)

func main() {
	channels := flag.String("channels", "", "comma separated channels, overrides CHANNELS and CHANNELS_FILE")
	output := flag.String("output", "", "CSV output path, overrides OUTPUT_CSV")
	limit := flag.Int("limit", -1, "messages per channel, overrides LIMIT (0 = all)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *channels != "" {
		cfg.Channels = splitChannels(*channels)
	}
	if *output != "" {
		cfg.OutputCSV = *output
	}
	if *limit >= 0 {
		cfg.Harvest.Limit = *limit
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile, cfg.LogJSON); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(2)
	}
	log := logger.Get()

	if len(cfg.Channels) == 0 {
		log.Fatal().Msg("no channels configured, set CHANNELS, CHANNELS_FILE or -channels")
	}

	// 3. Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Wire storage, brokers and telegram
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if status := a.Telegram.GetStatus(); status != telegram.StatusReady {
		a.Close()
		log.Fatal().Str("status", string(status)).Msg("telegram session not authorized, run tg-auth first")
	}

	// 5. Run
	res, runErr := a.Orchestrator.Run(ctx, cfg.Channels, a.Spec())
	if errors.Is(runErr, context.Canceled) {
		log.Warn().Msg("interrupted, writing partial results")
	}

	// sinks get partial results even after an interrupt
	finishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	a.Finish(finishCtx, res)
	cancel()

	printSummary(res)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("harvest failed")
		a.Close()
		os.Exit(1)
	}
}

func splitChannels(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func printSummary(res *collector.RunResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tSTATUS\tCOLLECTED\tSKIPPED\tFLOOD WAITS\tERROR")
	for _, c := range res.Channels {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", c.Channel, c.Status, c.Collected, c.SkippedEmpty, c.RateLimits, c.Err)
	}
	_ = w.Flush()
	fmt.Printf("\nrun %s: %d records in %s\n", res.ID, res.Total(), res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
}
