package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/record"
	"github.com/blockedby/channel-history/internal/telegram"
)

// DefaultChannelPause is the pause after each channel.
const DefaultChannelPause = 2 * time.Second

// ErrNoChannels is returned when a run is started without channels.
var ErrNoChannels = errors.New("no channels to collect")

// ChannelStatus is the outcome of one channel in a run.
type ChannelStatus string

// Channel statuses.
const (
	StatusCompleted ChannelStatus = "completed"
	StatusStopped   ChannelStatus = "stopped" // cut short by a flood wait under the stop policy
	StatusFailed    ChannelStatus = "failed"
	StatusSkipped   ChannelStatus = "skipped" // never started
)

// ChannelReport summarizes one channel of a run.
type ChannelReport struct {
	Channel      string        `json:"channel"`
	Collected    int           `json:"collected"`
	SkippedEmpty int           `json:"skipped_empty"`
	RateLimits   int           `json:"rate_limits"`
	Status       ChannelStatus `json:"status"`
	Err          string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// RunResult is everything a run produced, records in channel order.
type RunResult struct {
	ID         uuid.UUID              `json:"id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Records    []record.MessageRecord `json:"-"`
	Channels   []ChannelReport        `json:"channels"`
}

// Total returns the number of records collected.
func (r *RunResult) Total() int {
	return len(r.Records)
}

// SourceFactory opens a message source for a channel identifier.
type SourceFactory func(ctx context.Context, channel string, spec PaginationSpec) (MessageSource, error)

// TelegramSources returns a SourceFactory resolving channels through client.
// Requests are spaced by the spec's RequestPace.
func TelegramSources(client *telegram.Client) SourceFactory {
	return func(ctx context.Context, channel string, spec PaginationSpec) (MessageSource, error) {
		client.SetPace(spec.RequestPace)
		ch, err := client.ResolveChannel(ctx, channel)
		if err != nil {
			return nil, err
		}
		return telegram.NewHistorySource(client, ch, spec.Window()), nil
	}
}

// Hooks are optional observers of a run.
type Hooks struct {
	RateLimited func(channel string, wait time.Duration)
	ChannelDone func(report ChannelReport)
}

// Orchestrator collects channels one after another.
type Orchestrator struct {
	open      SourceFactory
	collector *Collector
	backoff   *Backoff
	pause     time.Duration
	sleep     Sleeper
	hooks     Hooks
	log       *logger.Logger
}

// NewOrchestrator creates an orchestrator pausing for pause after each channel.
func NewOrchestrator(open SourceFactory, collector *Collector, backoff *Backoff, pause time.Duration) *Orchestrator {
	return &Orchestrator{
		open:      open,
		collector: collector,
		backoff:   backoff,
		pause:     pause,
		sleep:     Sleep,
		log:       logger.Get().Component("orchestrator"),
	}
}

// SetSleeper replaces the pause implementation (e.g. for testing).
func (o *Orchestrator) SetSleeper(s Sleeper) {
	o.sleep = s
}

// SetHooks installs run observers.
func (o *Orchestrator) SetHooks(h Hooks) {
	o.hooks = h
}

// Run collects every channel in order and concatenates the records.
// Channels never overlap. A channel that fails is reported and the run
// moves on; a flood wait under the stop policy skips the rest. The
// returned result is never nil, even when ctx ends the run early.
func (o *Orchestrator) Run(ctx context.Context, channels []string, spec PaginationSpec) (*RunResult, error) {
	res := &RunResult{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
	defer func() { res.FinishedAt = time.Now() }()

	if len(channels) == 0 {
		return res, ErrNoChannels
	}

	o.log.Info().
		Str("run_id", res.ID.String()).
		Strs("channels", channels).
		Int("limit", spec.Limit).
		Bool("reverse", spec.Reverse).
		Msg("run started")

	for i, channel := range channels {
		report, records, stop, err := o.runChannel(ctx, channel, spec)
		res.Records = append(res.Records, records...)
		res.Channels = append(res.Channels, report)
		o.channelDone(report)

		if err != nil || stop {
			o.skip(res, channels[i+1:])
			if err != nil {
				return res, err
			}
			break
		}

		if err := o.sleep(ctx, o.pause); err != nil {
			o.skip(res, channels[i+1:])
			return res, err
		}
	}

	o.log.Info().
		Str("run_id", res.ID.String()).
		Int("total", res.Total()).
		Msg("run finished")

	return res, nil
}

// skip reports channels that will not run.
func (o *Orchestrator) skip(res *RunResult, channels []string) {
	for _, ch := range channels {
		skipped := ChannelReport{Channel: ch, Status: StatusSkipped}
		res.Channels = append(res.Channels, skipped)
		o.channelDone(skipped)
	}
}

// runChannel collects one channel. stop is set when the remaining
// channels must not run; err is only returned for ctx cancellation.
func (o *Orchestrator) runChannel(ctx context.Context, channel string, spec PaginationSpec) (ChannelReport, []record.MessageRecord, bool, error) {
	started := time.Now()
	report := ChannelReport{Channel: channel}
	finish := func(status ChannelStatus, err error) ChannelReport {
		report.Status = status
		report.Duration = time.Since(started)
		if err != nil {
			report.Err = err.Error()
		}
		return report
	}

	log := o.log.With().Str("channel", channel).Logger()

	var src MessageSource
	err := o.backoff.Do(ctx, func(ctx context.Context) error {
		s, err := o.open(ctx, channel, spec)
		if err != nil {
			if wait, ok := telegram.AsFloodWait(err); ok {
				report.RateLimits++
				o.rateLimited(channel, wait)
			}
			return err
		}
		src = s
		return nil
	})
	switch {
	case errors.Is(err, ErrFloodStop):
		return finish(StatusStopped, err), nil, true, nil
	case ctx.Err() != nil:
		return finish(StatusFailed, ctx.Err()), nil, true, ctx.Err()
	case err != nil:
		log.Error().Err(err).Msg("failed to open channel")
		return finish(StatusFailed, fmt.Errorf("open: %w", err)), nil, false, nil
	}

	log.Info().Msg("collecting channel")

	res, err := o.collector.Collect(ctx, channel, src, spec)
	for err == nil && res.RateLimited {
		report.RateLimits++
		o.rateLimited(channel, res.Wait)

		decision, herr := o.backoff.Handle(ctx, res.Wait)
		if herr != nil {
			err = herr
			break
		}
		if decision == Stop {
			report.Collected = len(res.Records)
			report.SkippedEmpty = res.SkippedEmpty
			log.Warn().Int("collected", report.Collected).Msg("channel stopped after flood wait")
			return finish(StatusStopped, nil), res.Records, true, nil
		}
		err = o.collector.Continue(ctx, src, spec, res)
	}

	report.Collected = len(res.Records)
	report.SkippedEmpty = res.SkippedEmpty

	if err != nil {
		if ctx.Err() != nil {
			return finish(StatusFailed, ctx.Err()), res.Records, true, ctx.Err()
		}
		log.Error().Err(err).Int("collected", report.Collected).Msg("channel failed")
		return finish(StatusFailed, err), res.Records, false, nil
	}

	log.Info().
		Int("collected", report.Collected).
		Int("skipped_empty", report.SkippedEmpty).
		Msg("channel completed")
	return finish(StatusCompleted, nil), res.Records, false, nil
}

func (o *Orchestrator) rateLimited(channel string, wait time.Duration) {
	if o.hooks.RateLimited != nil {
		o.hooks.RateLimited(channel, wait)
	}
}

func (o *Orchestrator) channelDone(report ChannelReport) {
	if o.hooks.ChannelDone != nil {
		o.hooks.ChannelDone(report)
	}
}
