package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/record"
)

// Message types set on the AMQP Type property.
const (
	TypeMessage     = "message.collected"
	TypeRunFinished = "run.finished"
)

// AMQPConfig describes the exchange and queue records are routed to.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON messages to a durable direct exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
	log        *logger.Logger
	now        func() time.Time
}

// NewAMQPPublisher connects and declares the exchange, the queue and
// their binding.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	log := logger.Get().Component("amqp")

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*AMQPPublisher, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	log.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.QueueName).
		Str("routing_key", cfg.RoutingKey).
		Msg("amqp: connected to rabbitmq")

	return &AMQPPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
		now:        time.Now,
	}, nil
}

func (p *AMQPPublisher) publish(ctx context.Context, msgType, msgID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         msgType,
		MessageId:    msgID,
		Body:         body,
		Timestamp:    p.now(),
	})
}

// PublishRecords publishes every record as its own persistent message.
func (p *AMQPPublisher) PublishRecords(ctx context.Context, runID uuid.UUID, records []record.MessageRecord) error {
	for _, evt := range messageEvents(runID, records, p.now().UTC()) {
		if err := p.publish(ctx, TypeMessage, messageID(runID, evt.Record), evt); err != nil {
			return fmt.Errorf("publish record %d of channel %d: %w", evt.Record.MessageID, evt.Record.ChannelID, err)
		}
	}
	p.log.Debug().Str("run_id", runID.String()).Int("count", len(records)).Msg("amqp: published records")
	return nil
}

// PublishRunFinished publishes the run summary.
func (p *AMQPPublisher) PublishRunFinished(ctx context.Context, run *collector.RunResult) error {
	evt := RunFinishedEvent{Run: run, Total: run.Total()}
	if err := p.publish(ctx, TypeRunFinished, run.ID.String(), evt); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
