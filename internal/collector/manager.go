package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/channel-history/internal/telegram"
)

// errors
var (
	ErrAlreadyRunning = errors.New("a harvest is already running")
)

// Runner executes a harvest over channels. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, channels []string, spec PaginationSpec) (*RunResult, error)
}

// FinishFunc receives the outcome of every harvest, e.g. to write sinks.
// res is never nil.
type FinishFunc func(ctx context.Context, job *HarvestJob, res *RunResult, err error)

// HarvestOptions holds options for a harvest job
type HarvestOptions struct {
	Channels []string
	Spec     PaginationSpec
}

// HarvestJob represents an active harvest
type HarvestJob struct {
	ID        uuid.UUID
	StartedAt time.Time
	Options   HarvestOptions
}

// LastRun is the outcome of the most recent finished harvest.
type LastRun struct {
	JobID      uuid.UUID  `json:"job_id"`
	Result     *RunResult `json:"result"`
	Err        string     `json:"error,omitempty"`
	FinishedAt time.Time  `json:"finished_at"`
}

// HarvestManager runs at most one harvest at a time in the background.
// thread-safe
type HarvestManager struct {
	mu       sync.Mutex
	current  *HarvestJob
	cancelFn context.CancelFunc
	done     chan struct{} // closed when the current run returns
	last     *LastRun

	runner   Runner
	status   func() telegram.Status
	onFinish FinishFunc
}

// NewHarvestManager creates a manager. status and onFinish may be nil.
func NewHarvestManager(runner Runner, status func() telegram.Status, onFinish FinishFunc) *HarvestManager {
	return &HarvestManager{
		runner:   runner,
		status:   status,
		onFinish: onFinish,
	}
}

// Start starts a new harvest
// returns ErrAlreadyRunning if one is already running
func (m *HarvestManager) Start(_ context.Context, opts HarvestOptions) (*HarvestJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// the request context ends with the response, the harvest must outlive it
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	job := &HarvestJob{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Options:   opts,
	}
	m.current = job
	done := make(chan struct{})
	m.done = done

	go m.run(runCtx, job, done)

	return job, nil
}

// Stop cancels the current harvest
// safe to call when nothing is running. The job stays current until its
// run returns, so a new harvest cannot overlap the cancelled one.
func (m *HarvestManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFn != nil {
		m.cancelFn()
	}
}

// Wait blocks until the current harvest, if any, has finished.
func (m *HarvestManager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the running job or nil.
func (m *HarvestManager) Current() *HarvestJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Last returns the most recent finished harvest or nil.
func (m *HarvestManager) Last() *LastRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// TelegramStatus returns the session status, "UNKNOWN" without a status source.
func (m *HarvestManager) TelegramStatus() telegram.Status {
	if m.status == nil {
		return "UNKNOWN"
	}
	return m.status()
}

// run executes the job
// this is called in a goroutine
func (m *HarvestManager) run(ctx context.Context, job *HarvestJob, done chan struct{}) {
	defer close(done)

	var (
		res *RunResult
		err error
	)
	if m.runner != nil {
		res, err = m.runner.Run(ctx, job.Options.Channels, job.Options.Spec)
	}
	if res == nil {
		res = &RunResult{ID: job.ID, StartedAt: job.StartedAt, FinishedAt: time.Now()}
	}

	if m.onFinish != nil {
		// sinks still get partial results after a cancel
		m.onFinish(context.Background(), job, res, err)
	}

	last := &LastRun{JobID: job.ID, Result: res, FinishedAt: time.Now()}
	if err != nil {
		last.Err = err.Error()
	}

	m.mu.Lock()
	m.last = last
	if m.current != nil && m.current.ID == job.ID {
		m.cancelFn()
		m.current = nil
		m.cancelFn = nil
		m.done = nil
	}
	m.mu.Unlock()
}
