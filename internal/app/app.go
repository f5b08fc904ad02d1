// Package app wires configuration, the telegram session, the harvest
// pipeline and the sinks together for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/database"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/metrics"
	"github.com/blockedby/channel-history/internal/migrator"
	"github.com/blockedby/channel-history/internal/nats"
	"github.com/blockedby/channel-history/internal/publisher"
	"github.com/blockedby/channel-history/internal/repository"
	"github.com/blockedby/channel-history/internal/sink"
	"github.com/blockedby/channel-history/internal/telegram"
	"github.com/blockedby/channel-history/migrations"
)

// Options adds observers on top of the logging and metrics wiring.
type Options struct {
	Progress collector.ProgressFunc
	Hooks    collector.Hooks
}

// App holds the long-lived components of a process.
type App struct {
	Config       *config.Config
	Telegram     *telegram.Manager
	Client       *telegram.Client
	Metrics      *metrics.Metrics
	Sinks        *sink.Multi
	Orchestrator *collector.Orchestrator

	log     *logger.Logger
	closers []func()
}

// New connects storage and brokers, restores the telegram session and
// builds the orchestrator. Optional brokers that cannot be reached are
// logged and left out.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		log:     logger.Get().Component("app"),
	}

	var sinks []sink.Sink
	if cfg.OutputCSV != "" {
		sinks = append(sinks, sink.NewCSV(cfg.OutputCSV))
	}

	pg, err := a.openPostgres(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if pg != nil {
		sinks = append(sinks, sink.NewPostgres(repository.NewMessagesRepository(pg.Pool)))
	}

	sessions, err := database.SessionStore(pg, cfg.SessionDBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if pg == nil {
		a.closers = append(a.closers, func() { database.CloseGORM(sessions) })
	}

	sinks = append(sinks, a.openBrokers(ctx)...)
	a.Sinks = sink.NewMulti(sinks...)
	a.Sinks.OnError = func(name string, _ error) { a.Metrics.IncSinkErrors(name) }

	if err := a.initTelegram(ctx, sessions); err != nil {
		a.Close()
		return nil, err
	}

	a.Orchestrator = a.buildOrchestrator(opts)
	return a, nil
}

func (a *App) openPostgres(ctx context.Context) (*database.DB, error) {
	if a.Config.DatabaseURL == "" {
		return nil, nil
	}

	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		return nil, err
	}
	if err := m.Up(ctx, a.Config.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	db, err := database.New(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) openBrokers(ctx context.Context) []sink.Sink {
	var sinks []sink.Sink

	if a.Config.NatsURL != "" {
		nc, err := nats.New(ctx, a.Config.NatsURL)
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else if err := nc.EnsureStream(ctx, nats.StreamName, nats.StreamSubjects); err != nil {
			a.log.Warn().Err(err).Msg("failed to create nats stream, publishing disabled")
			nc.Close()
		} else {
			a.closers = append(a.closers, nc.Close)
			sinks = append(sinks, sink.NewPublish("nats", publisher.NewNATSPublisher(nc)))
		}
	}

	if a.Config.AMQPURL != "" {
		pub, err := publisher.NewAMQPPublisher(publisher.AMQPConfig{
			URL:        a.Config.AMQPURL,
			Exchange:   a.Config.AMQPExchange,
			RoutingKey: a.Config.AMQPRoutingKey,
			QueueName:  a.Config.AMQPQueue,
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to connect to rabbitmq, publishing disabled")
		} else {
			a.closers = append(a.closers, func() { _ = pub.Close() })
			sinks = append(sinks, sink.NewPublish("amqp", pub))
		}
	}

	return sinks
}

func (a *App) initTelegram(ctx context.Context, sessions *gorm.DB) error {
	if !a.Config.HasTelegramCredentials() {
		return fmt.Errorf("TG_API_ID and TG_API_HASH are required")
	}

	a.Telegram = telegram.NewManager(a.Config, sessions)
	if err := a.Telegram.Init(ctx); err != nil {
		return fmt.Errorf("telegram manager init: %w", err)
	}
	a.closers = append(a.closers, a.Telegram.Stop)

	a.Client = telegram.NewClient(a.Telegram, telegram.NewPacer(a.Config.Harvest.RequestPace))
	a.Client.OnRequest = a.Metrics.IncRequests
	return nil
}

func (a *App) buildOrchestrator(opts Options) *collector.Orchestrator {
	var progress collector.ProgressFunc
	if a.Config.Harvest.Verbose {
		progress = collector.LogProgress(logger.Get().Component("progress"))
	}

	coll := collector.NewCollector(collector.ChainProgress(progress, opts.Progress))
	backoff := collector.NewBackoff(a.Config.Harvest.FloodPolicy, collector.Sleep)
	orch := collector.NewOrchestrator(collector.TelegramSources(a.Client), coll, backoff, a.Config.Harvest.ChannelPause)

	orch.SetHooks(collector.Hooks{
		RateLimited: func(channel string, wait time.Duration) {
			a.Metrics.ObserveFloodWait(wait)
			if opts.Hooks.RateLimited != nil {
				opts.Hooks.RateLimited(channel, wait)
			}
		},
		ChannelDone: func(report collector.ChannelReport) {
			a.Metrics.ObserveChannel(report)
			if opts.Hooks.ChannelDone != nil {
				opts.Hooks.ChannelDone(report)
			}
		},
	})
	return orch
}

// Spec returns the pagination settings from the configuration.
func (a *App) Spec() collector.PaginationSpec {
	return SpecFromConfig(a.Config.Harvest)
}

// SpecFromConfig maps harvest settings to a PaginationSpec.
func SpecFromConfig(h config.HarvestConfig) collector.PaginationSpec {
	return collector.PaginationSpec{
		Reverse:     h.Reverse,
		MinID:       h.MinID,
		MaxID:       h.MaxID,
		OffsetDate:  h.OffsetDate,
		Limit:       h.Limit,
		RequestPace: h.RequestPace,
	}
}

// Finish writes a run to every sink and records its duration.
// Sink failures are logged; the run result stays intact.
func (a *App) Finish(ctx context.Context, res *collector.RunResult) {
	a.Metrics.ObserveRun(res)
	if res == nil || a.Sinks == nil || a.Sinks.Len() == 0 {
		return
	}
	if err := a.Sinks.Write(ctx, res); err != nil {
		a.log.Error().Err(err).Str("run_id", res.ID.String()).Msg("some sinks failed")
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
