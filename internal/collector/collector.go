// Package collector drives channel history collection.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/record"
	"github.com/blockedby/channel-history/internal/telegram"
)

// ProgressEvery is the number of accepted records between progress notifications.
const ProgressEvery = 100

// MessageSource yields the messages of one channel in pagination order.
type MessageSource interface {
	Next(ctx context.Context) (telegram.Pull, error)
}

// PaginationSpec controls which part of a channel's history is read.
type PaginationSpec struct {
	Reverse     bool
	MinID       int           // 0 = unset
	MaxID       int           // 0 = unset
	OffsetDate  time.Time     // zero = unset
	Limit       int           // <= 0 = unbounded, per channel
	RequestPace time.Duration // spacing between requests, <= 0 = none
}

// Window returns the bounds of s in the form the history source takes.
func (s PaginationSpec) Window() telegram.Window {
	return telegram.Window{
		Reverse:    s.Reverse,
		MinID:      s.MinID,
		MaxID:      s.MaxID,
		OffsetDate: s.OffsetDate,
	}
}

// limitReached reports whether n accepted records exhaust the limit.
func (s PaginationSpec) limitReached(n int) bool {
	return s.Limit > 0 && n >= s.Limit
}

// ProgressFunc receives the number of records accepted so far for a channel.
type ProgressFunc func(channel string, count int)

// ChannelResult accumulates the records of one channel. After a rate
// limit it holds everything accepted before the signal and can be fed
// back to Continue.
type ChannelResult struct {
	Channel      string
	Records      []record.MessageRecord
	SkippedEmpty int
	RateLimited  bool          // last pull was a flood wait
	Wait         time.Duration // requested pause when RateLimited
	Done         bool          // source exhausted or limit reached
}

// Collector pulls one channel's messages and normalizes them.
type Collector struct {
	progress ProgressFunc
	log      *logger.Logger
}

// NewCollector creates a collector. progress may be nil.
func NewCollector(progress ProgressFunc) *Collector {
	if progress == nil {
		progress = func(string, int) {}
	}
	return &Collector{
		progress: progress,
		log:      logger.Get().Component("collector"),
	}
}

// Collect reads src until it is exhausted, the limit is reached or the
// source reports a flood wait. A flood wait is not an error: the partial
// result comes back with RateLimited set.
func (c *Collector) Collect(ctx context.Context, channel string, src MessageSource, spec PaginationSpec) (*ChannelResult, error) {
	res := &ChannelResult{Channel: channel}
	return res, c.Continue(ctx, src, spec, res)
}

// Continue keeps pulling from src into res. The accepted count carries
// over, so the limit spans every resume of the same channel.
func (c *Collector) Continue(ctx context.Context, src MessageSource, spec PaginationSpec, res *ChannelResult) error {
	res.RateLimited = false
	res.Wait = 0

	for {
		if spec.limitReached(len(res.Records)) {
			res.Done = true
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pull, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("pull %s: %w", res.Channel, err)
		}

		switch pull.Kind {
		case telegram.PullEnd:
			res.Done = true
			return nil

		case telegram.PullRateLimited:
			res.RateLimited = true
			res.Wait = pull.Wait
			return nil

		case telegram.PullMessage:
			rec, ok := record.Normalize(pull.Message)
			if !ok {
				res.SkippedEmpty++
				continue
			}
			res.Records = append(res.Records, rec)
			if n := len(res.Records); n%ProgressEvery == 0 {
				c.progress(res.Channel, n)
			}

		default:
			return fmt.Errorf("pull %s: unknown pull kind %d", res.Channel, pull.Kind)
		}
	}
}

// LogProgress returns a ProgressFunc writing an info line per notification.
func LogProgress(log *logger.Logger) ProgressFunc {
	return func(channel string, count int) {
		log.Info().Str("channel", channel).Int("count", count).Msg("collected messages")
	}
}

// ChainProgress calls every non-nil fn in order.
func ChainProgress(fns ...ProgressFunc) ProgressFunc {
	return func(channel string, count int) {
		for _, fn := range fns {
			if fn != nil {
				fn(channel, count)
			}
		}
	}
}
