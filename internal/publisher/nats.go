package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/channel-history/internal/collector"
	natsclient "github.com/blockedby/channel-history/internal/nats"
	"github.com/blockedby/channel-history/internal/record"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any, msgID string) error
}

// NATSPublisher publishes to the JetStream subjects of internal/nats.
type NATSPublisher struct {
	js  NATSClient
	now func() time.Time
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(js NATSClient) *NATSPublisher {
	return &NATSPublisher{js: js, now: time.Now}
}

// PublishRecords publishes every record as its own message.
// It stops at the first failure.
func (p *NATSPublisher) PublishRecords(ctx context.Context, runID uuid.UUID, records []record.MessageRecord) error {
	for _, evt := range messageEvents(runID, records, p.now().UTC()) {
		if err := p.js.Publish(ctx, natsclient.SubjectMessages, evt, messageID(runID, evt.Record)); err != nil {
			return fmt.Errorf("publish record %d of channel %d: %w", evt.Record.MessageID, evt.Record.ChannelID, err)
		}
	}
	return nil
}

// PublishRunFinished publishes the run summary.
func (p *NATSPublisher) PublishRunFinished(ctx context.Context, run *collector.RunResult) error {
	evt := RunFinishedEvent{Run: run, Total: run.Total()}
	if err := p.js.Publish(ctx, natsclient.SubjectRunFinished, evt, run.ID.String()); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	return nil
}
