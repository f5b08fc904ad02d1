package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests to the Telegram API.
// Every history request waits on it before going out.
type Pacer struct {
	// one request per interval, no burst beyond the first
	limiter *rate.Limiter

	// additional backoff after FLOOD_WAIT
	floodWaitUntil time.Time
	interval       time.Duration
	mu             sync.Mutex
}

// DefaultPace is the request spacing of DefaultPacer.
const DefaultPace = 3 * time.Second

// NewPacer creates a pacer allowing one request per interval.
// A non-positive interval disables spacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		limiter:  rate.NewLimiter(everyLimit(interval), 1),
		interval: interval,
	}
}

// DefaultPacer returns a pacer with DefaultPace request spacing.
func DefaultPacer() *Pacer {
	return NewPacer(DefaultPace)
}

func everyLimit(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// SetInterval changes the request spacing for subsequent waits.
func (p *Pacer) SetInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval == p.interval {
		return
	}
	p.interval = interval
	p.limiter.SetLimit(everyLimit(interval))
}

// Interval returns the current request spacing.
func (p *Pacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Wait blocks until the next request is allowed.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	waitUntil := p.floodWaitUntil
	p.mu.Unlock()

	// if flood wait is active - wait for it
	if time.Now().Before(waitUntil) {
		timer := time.NewTimer(time.Until(waitUntil))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return p.limiter.Wait(ctx)
}

// SetFloodWait blocks further requests for d.
func (p *Pacer) SetFloodWait(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.floodWaitUntil = time.Now().Add(d)
}
