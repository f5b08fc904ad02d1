// Package sink delivers the records of a finished run to the configured
// outputs. Outputs are independent: one failing never loses the others
// or the in-memory result.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/record"
)

// Sink writes the records of a run somewhere.
type Sink interface {
	Name() string
	Write(ctx context.Context, run *collector.RunResult) error
}

// Multi writes a run to every sink in order and joins the failures.
type Multi struct {
	sinks []Sink
	log   *logger.Logger

	// OnError, when set, is called for every failed sink.
	OnError func(name string, err error)
}

// NewMulti creates a fan-out over sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: logger.Get().Component("sink")}
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Write implements Sink.
func (m *Multi) Write(ctx context.Context, run *collector.RunResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, run); err != nil {
			m.log.Error().Err(err).Str("sink", s.Name()).Str("run_id", run.ID.String()).Msg("sink write failed")
			if m.OnError != nil {
				m.OnError(s.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.log.Info().Str("sink", s.Name()).Int("records", run.Total()).Msg("sink written")
	}
	return errors.Join(errs...)
}

// RecordInserter stores records of a run. *repository.MessagesRepository implements it.
type RecordInserter interface {
	Insert(ctx context.Context, runID uuid.UUID, records []record.MessageRecord) (int64, error)
}

// Postgres writes records to the channel_messages table.
type Postgres struct {
	repo RecordInserter
}

// NewPostgres creates a postgres sink.
func NewPostgres(repo RecordInserter) *Postgres {
	return &Postgres{repo: repo}
}

// Name implements Sink.
func (p *Postgres) Name() string { return "postgres" }

// Write implements Sink.
func (p *Postgres) Write(ctx context.Context, run *collector.RunResult) error {
	n, err := p.repo.Insert(ctx, run.ID, run.Records)
	if err != nil {
		return err
	}
	if int(n) != len(run.Records) {
		return fmt.Errorf("stored %d of %d records", n, len(run.Records))
	}
	return nil
}

// Broker publishes records and run summaries. The publisher package
// provides NATS and AMQP implementations.
type Broker interface {
	PublishRecords(ctx context.Context, runID uuid.UUID, records []record.MessageRecord) error
	PublishRunFinished(ctx context.Context, run *collector.RunResult) error
}

// Publish sends every record, then the run summary, to a broker.
type Publish struct {
	name   string
	broker Broker
}

// NewPublish creates a broker sink named name.
func NewPublish(name string, broker Broker) *Publish {
	return &Publish{name: name, broker: broker}
}

// Name implements Sink.
func (p *Publish) Name() string { return p.name }

// Write implements Sink.
func (p *Publish) Write(ctx context.Context, run *collector.RunResult) error {
	if err := p.broker.PublishRecords(ctx, run.ID, run.Records); err != nil {
		return err
	}
	return p.broker.PublishRunFinished(ctx, run)
}
