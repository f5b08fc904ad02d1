package collector

import (
	"context"
	"errors"
	"time"

	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/telegram"
)

// ErrFloodStop is returned by Backoff.Do when the stop policy ends the
// operation after the pause.
var ErrFloodStop = errors.New("stopped after flood wait")

// Decision is what to do once a flood wait has been served.
type Decision int

// Decisions.
const (
	Resume Decision = iota + 1
	Stop
)

func (d Decision) String() string {
	if d == Stop {
		return "stop"
	}
	return "resume"
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff serves flood waits: it pauses for exactly the requested time
// and decides whether collection goes on.
type Backoff struct {
	policy string
	sleep  Sleeper
	log    *logger.Logger

	// OnWait, when set, is called before every pause.
	OnWait func(wait time.Duration)
}

// NewBackoff creates a backoff with the given flood policy
// (config.FloodPolicyResume or config.FloodPolicyStop). sleep may be nil.
func NewBackoff(policy string, sleep Sleeper) *Backoff {
	if sleep == nil {
		sleep = Sleep
	}
	if policy != config.FloodPolicyStop {
		policy = config.FloodPolicyResume
	}
	return &Backoff{
		policy: policy,
		sleep:  sleep,
		log:    logger.Get().Component("backoff"),
	}
}

// Handle pauses for wait and returns the policy decision.
// The pause ends early only when ctx is done.
func (b *Backoff) Handle(ctx context.Context, wait time.Duration) (Decision, error) {
	b.log.Warn().
		Float64("wait_seconds", wait.Seconds()).
		Str("policy", b.policy).
		Msg("flood wait, pausing")

	if b.OnWait != nil {
		b.OnWait(wait)
	}

	if err := b.sleep(ctx, wait); err != nil {
		return Stop, err
	}

	if b.policy == config.FloodPolicyStop {
		return Stop, nil
	}
	return Resume, nil
}

// Do runs fn and serves any flood wait it reports. Under the resume
// policy fn is retried after the pause; under stop Do returns ErrFloodStop.
func (b *Backoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		wait, ok := telegram.AsFloodWait(err)
		if !ok {
			return err
		}

		decision, herr := b.Handle(ctx, wait)
		if herr != nil {
			return herr
		}
		if decision == Stop {
			return ErrFloodStop
		}
	}
}
