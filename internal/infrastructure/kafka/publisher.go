package kafka

import (
	"context"
	"fmt"

	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/kafka/producer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// eventIDHeader carries the publish-time identifier; every other header is
// a routing attribute.
const eventIDHeader = "event_id"

// EnvelopePublisher writes routing envelopes to the bus topic, attributes
// as message headers so they survive transport without touching the payload.
type EnvelopePublisher struct {
	*producer.Producer

	topic string
}

func NewEnvelopePublisher(producer *producer.Producer, topic string) *EnvelopePublisher {
	return &EnvelopePublisher{
		Producer: producer,
		topic:    topic,
	}
}

func (p *EnvelopePublisher) Publish(ctx context.Context, env routing.Envelope) error {
	eventID := uuid.NewString()

	headers := make([]kafka.Header, 0, len(env.Attributes)+1)
	headers = append(headers, kafka.Header{Key: eventIDHeader, Value: []byte(eventID)})
	for name, value := range env.Attributes {
		headers = append(headers, kafka.Header{Key: name, Value: []byte(value)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(eventID),
		Value:   env.Payload,
		Headers: headers,
	}

	err := p.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("EnvelopePublisher - Publish - p.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (p *EnvelopePublisher) Close() error {
	err := p.Producer.Close()
	if err != nil {
		return fmt.Errorf("EnvelopePublisher - Close: %w", err)
	}

	return nil
}
