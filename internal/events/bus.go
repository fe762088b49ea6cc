// Package events carries domain events between the game runtime and its consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/cyberhoot/internal/quiz"
)

const (
	TopicQuizCompleted = "quiz.completed"

	eventVersion = "1"
)

// QuizCompleted is published once per completed session.
type QuizCompleted struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Participant string      `json:"participant"`
	LobbyCode   string      `json:"lobby_code,omitempty"`
	Result      quiz.Result `json:"result"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Publisher publishes domain events.
type Publisher interface {
	PublishQuizCompleted(ctx context.Context, ev QuizCompleted) error
}

// Config selects the transports. Kafka is optional; the in-process channel is
// always used so local consumers keep working without a broker.
type Config struct {
	KafkaBrokers []string
	KafkaTopic   string
	BufferSize   int64
}

// Bus publishes to an in-process gochannel and, when configured, to Kafka.
type Bus struct {
	local      *gochannel.GoChannel
	kafka      message.Publisher
	kafkaTopic string
	logger     zerolog.Logger
}

var _ Publisher = (*Bus)(nil)

func NewBus(cfg Config, logger zerolog.Logger) (*Bus, error) {
	wmLogger := NewZerologAdapter(logger)
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 64
	}

	bus := &Bus{
		local:      gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, wmLogger),
		kafkaTopic: cfg.KafkaTopic,
		logger:     logger.With().Str("component", "event_bus").Logger(),
	}
	if bus.kafkaTopic == "" {
		bus.kafkaTopic = TopicQuizCompleted
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		bus.kafka = pub
	}
	return bus, nil
}

// PublishQuizCompleted fills the id and timestamp when missing.
func (b *Bus) PublishQuizCompleted(ctx context.Context, ev QuizCompleted) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal quiz completed: %w", err)
	}

	newMessage := func() *message.Message {
		msg := message.NewMessage(ev.ID, payload)
		msg.Metadata.Set("event_type", TopicQuizCompleted)
		msg.Metadata.Set("version", eventVersion)
		msg.Metadata.Set("participant", ev.Participant)
		msg.SetContext(ctx)
		return msg
	}

	if err := b.local.Publish(TopicQuizCompleted, newMessage()); err != nil {
		return fmt.Errorf("publish quiz completed: %w", err)
	}
	if b.kafka != nil {
		if err := b.kafka.Publish(b.kafkaTopic, newMessage()); err != nil {
			b.logger.Error().Err(err).Str("event_id", ev.ID).Msg("kafka publish failed")
			return fmt.Errorf("publish quiz completed to kafka: %w", err)
		}
	}
	b.logger.Debug().Str("event_id", ev.ID).Str("session_id", ev.SessionID).Msg("published quiz completed")
	return nil
}

// SubscribeQuizCompleted delivers decoded events to handle until ctx ends.
// Messages are acked after handle returns; handler errors are logged, not retried.
func (b *Bus) SubscribeQuizCompleted(ctx context.Context, handle func(context.Context, QuizCompleted) error) error {
	msgs, err := b.local.Subscribe(ctx, TopicQuizCompleted)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicQuizCompleted, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev QuizCompleted
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable event")
				msg.Ack()
				continue
			}
			if err := handle(ctx, ev); err != nil {
				b.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("quiz completed handler failed")
			}
			msg.Ack()
		}
	}
}

// Close shuts down every transport.
func (b *Bus) Close() error {
	var firstErr error
	if b.kafka != nil {
		firstErr = b.kafka.Close()
	}
	if err := b.local.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
