package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/record"
	"github.com/blockedby/channel-history/internal/telegram"
)

// sources maps channel names to scripted sources and logs every open.
type sources struct {
	byName map[string]*fakeSource
	errs   map[string][]error // returned by successive opens
	events *[]string
}

func (s *sources) open(_ context.Context, channel string, _ PaginationSpec) (MessageSource, error) {
	if s.events != nil {
		*s.events = append(*s.events, "open "+channel)
	}
	if errs := s.errs[channel]; len(errs) > 0 {
		s.errs[channel] = errs[1:]
		if errs[0] != nil {
			return nil, errs[0]
		}
	}
	src, ok := s.byName[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", telegram.ErrChannelNotFound, channel)
	}
	return src, nil
}

func newTestOrchestrator(s *sources, policy string, sleeper *recordingSleeper) *Orchestrator {
	o := NewOrchestrator(s.open, NewCollector(nil), NewBackoff(policy, sleeper.Sleep), DefaultChannelPause)
	o.SetSleeper(sleeper.Sleep)
	return o
}

func countByChannel(records []record.MessageRecord) map[int64]int {
	out := map[int64]int{}
	for _, r := range records {
		out[r.ChannelID]++
	}
	return out
}

func TestOrchestrator_LimitPerChannel(t *testing.T) {
	var events []string
	s := &sources{
		byName: map[string]*fakeSource{
			"chA": {pulls: messages(1, 200)},
			"chB": {pulls: messages(2, 50)},
		},
		events: &events,
	}
	sleeper := &recordingSleeper{events: &events}

	res, err := newTestOrchestrator(s, config.FloodPolicyResume, sleeper).
		Run(context.Background(), []string{"chA", "chB"}, PaginationSpec{Limit: 150})

	require.NoError(t, err)
	assert.Equal(t, 200, res.Total())
	assert.Equal(t, map[int64]int{1: 150, 2: 50}, countByChannel(res.Records))

	// chA records come first, untouched order
	assert.Equal(t, int64(1), res.Records[0].ChannelID)
	assert.Equal(t, int64(2), res.Records[150].ChannelID)

	// pacing pause between the channels, and after the last one
	assert.Equal(t, []string{"open chA", "sleep 2s", "open chB", "sleep 2s"}, events)

	require.Len(t, res.Channels, 2)
	assert.Equal(t, ChannelReport{Channel: "chA", Collected: 150, Status: StatusCompleted, Duration: res.Channels[0].Duration}, res.Channels[0])
	assert.Equal(t, StatusCompleted, res.Channels[1].Status)
	assert.Equal(t, 50, res.Channels[1].Collected)
}

func TestOrchestrator_FloodWaitResume(t *testing.T) {
	var events []string
	chA := append(messages(1, 60), floodPull(30*time.Second))
	chA = append(chA, messages(1, 40)...)
	s := &sources{
		byName: map[string]*fakeSource{
			"chA": {pulls: chA},
			"chB": {pulls: messages(2, 10)},
		},
		events: &events,
	}
	sleeper := &recordingSleeper{events: &events}

	res, err := newTestOrchestrator(s, config.FloodPolicyResume, sleeper).
		Run(context.Background(), []string{"chA", "chB"}, PaginationSpec{Limit: 80})

	require.NoError(t, err)

	// the 30s pause happens before anything else is observable
	assert.Equal(t, []string{"open chA", "sleep 30s", "sleep 2s", "open chB", "sleep 2s"}, events)

	// records before the signal are kept and the cursor continues
	assert.Equal(t, map[int64]int{1: 80, 2: 10}, countByChannel(res.Records))
	assert.Equal(t, 1, res.Channels[0].RateLimits)
	assert.Equal(t, StatusCompleted, res.Channels[0].Status)
}

func TestOrchestrator_FloodWaitStop(t *testing.T) {
	var events []string
	chA := append(messages(1, 60), floodPull(30*time.Second))
	chA = append(chA, messages(1, 40)...)
	s := &sources{
		byName: map[string]*fakeSource{
			"chA": {pulls: chA},
			"chB": {pulls: messages(2, 10)},
		},
		events: &events,
	}
	sleeper := &recordingSleeper{events: &events}

	res, err := newTestOrchestrator(s, config.FloodPolicyStop, sleeper).
		Run(context.Background(), []string{"chA", "chB"}, PaginationSpec{})

	require.NoError(t, err)
	assert.Equal(t, []string{"open chA", "sleep 30s"}, events, "remaining channels are abandoned")
	assert.Equal(t, 60, res.Total(), "partial records survive")

	require.Len(t, res.Channels, 2)
	assert.Equal(t, StatusStopped, res.Channels[0].Status)
	assert.Equal(t, 60, res.Channels[0].Collected)
	assert.Equal(t, ChannelReport{Channel: "chB", Status: StatusSkipped}, res.Channels[1])
}

func TestOrchestrator_FloodWaitOnResolve(t *testing.T) {
	flood := &telegram.FloodWaitError{Wait: 12 * time.Second}

	t.Run("resume retries the open", func(t *testing.T) {
		var events []string
		s := &sources{
			byName: map[string]*fakeSource{"chA": {pulls: messages(1, 3)}},
			errs:   map[string][]error{"chA": {flood}},
			events: &events,
		}
		sleeper := &recordingSleeper{events: &events}

		res, err := newTestOrchestrator(s, config.FloodPolicyResume, sleeper).
			Run(context.Background(), []string{"chA"}, PaginationSpec{})

		require.NoError(t, err)
		assert.Equal(t, []string{"open chA", "sleep 12s", "open chA", "sleep 2s"}, events)
		assert.Equal(t, 3, res.Total())
		assert.Equal(t, 1, res.Channels[0].RateLimits)
	})

	t.Run("stop ends the run", func(t *testing.T) {
		s := &sources{
			byName: map[string]*fakeSource{"chA": {pulls: messages(1, 3)}, "chB": {pulls: messages(2, 3)}},
			errs:   map[string][]error{"chA": {flood}},
		}

		res, err := newTestOrchestrator(s, config.FloodPolicyStop, &recordingSleeper{}).
			Run(context.Background(), []string{"chA", "chB"}, PaginationSpec{})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total())
		assert.Equal(t, StatusStopped, res.Channels[0].Status)
		assert.Equal(t, StatusSkipped, res.Channels[1].Status)
	})
}

func TestOrchestrator_FailedChannelDoesNotStopRun(t *testing.T) {
	boom := errors.New("connection reset")
	s := &sources{
		byName: map[string]*fakeSource{
			"broken": {pulls: messages(3, 10), errAt: 4, err: boom},
			"chB":    {pulls: messages(2, 5)},
		},
	}

	res, err := newTestOrchestrator(s, config.FloodPolicyResume, &recordingSleeper{}).
		Run(context.Background(), []string{"missing", "broken", "chB"}, PaginationSpec{})

	require.NoError(t, err)
	require.Len(t, res.Channels, 3)

	assert.Equal(t, StatusFailed, res.Channels[0].Status)
	assert.Contains(t, res.Channels[0].Err, "channel not found")

	assert.Equal(t, StatusFailed, res.Channels[1].Status)
	assert.Equal(t, 4, res.Channels[1].Collected, "partial records of a failed channel are kept")

	assert.Equal(t, StatusCompleted, res.Channels[2].Status)
	assert.Equal(t, map[int64]int{3: 4, 2: 5}, countByChannel(res.Records))
}

func TestOrchestrator_NoChannels(t *testing.T) {
	res, err := newTestOrchestrator(&sources{}, config.FloodPolicyResume, &recordingSleeper{}).
		Run(context.Background(), nil, PaginationSpec{})

	assert.ErrorIs(t, err, ErrNoChannels)
	require.NotNil(t, res)
	assert.Empty(t, res.Records)
}

func TestOrchestrator_ContextCanceledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &sources{byName: map[string]*fakeSource{
		"chA": {pulls: messages(1, 3)},
		"chB": {pulls: messages(2, 3)},
	}}
	o := newTestOrchestrator(s, config.FloodPolicyResume, &recordingSleeper{})
	o.SetSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	var done []ChannelReport
	o.SetHooks(Hooks{ChannelDone: func(r ChannelReport) { done = append(done, r) }})

	res, err := o.Run(ctx, []string{"chA", "chB"}, PaginationSpec{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.Total())
	require.Len(t, res.Channels, 2)
	assert.Equal(t, StatusSkipped, res.Channels[1].Status)

	// skipped channels reach the hooks too
	require.Len(t, done, 2)
	assert.Equal(t, ChannelReport{Channel: "chB", Status: StatusSkipped}, done[1])
}

func TestTelegramSources_AppliesRequestPace(t *testing.T) {
	client := telegram.NewClient(telegram.NewManager(&config.Config{}, nil), telegram.NewPacer(time.Second))
	open := TelegramSources(client)

	_, err := open(context.Background(), "chA", PaginationSpec{RequestPace: 250 * time.Millisecond})

	assert.ErrorIs(t, err, telegram.ErrNotAuthorized)
	assert.Equal(t, 250*time.Millisecond, client.Pace())
}

func TestOrchestrator_Hooks(t *testing.T) {
	chA := append(messages(1, 2), floodPull(time.Second))
	s := &sources{byName: map[string]*fakeSource{"chA": {pulls: chA}}}
	o := newTestOrchestrator(s, config.FloodPolicyResume, &recordingSleeper{})

	var waits []time.Duration
	var reports []ChannelReport
	o.SetHooks(Hooks{
		RateLimited: func(channel string, wait time.Duration) { waits = append(waits, wait) },
		ChannelDone: func(r ChannelReport) { reports = append(reports, r) },
	})

	_, err := o.Run(context.Background(), []string{"chA"}, PaginationSpec{})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, waits)
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Collected)
}
