package kafka

import (
	"context"
	"fmt"

	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// EnvelopeConsumer reads bus messages and rebuilds routing envelopes from
// their headers.
type EnvelopeConsumer struct {
	*consumer.Consumer
}

func NewEnvelopeConsumer(consumer *consumer.Consumer) *EnvelopeConsumer {
	return &EnvelopeConsumer{consumer}
}

func (ec *EnvelopeConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	msg, err := ec.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("EnvelopeConsumer - ReadMessage - ec.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (ec *EnvelopeConsumer) CommitMessage(ctx context.Context, msg kafka.Message) error {
	err := ec.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("EnvelopeConsumer - CommitMessage - ec.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ec *EnvelopeConsumer) Close() error {
	err := ec.Consumer.Close()
	if err != nil {
		return fmt.Errorf("EnvelopeConsumer - Close: %w", err)
	}

	return nil
}

// EnvelopeFromMessage maps headers back to attributes. The event_id header
// is transport metadata, not an attribute, and is dropped.
func EnvelopeFromMessage(msg kafka.Message) routing.Envelope {
	attrs := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h.Key == eventIDHeader {
			continue
		}
		attrs[h.Key] = string(h.Value)
	}

	return routing.Envelope{
		Attributes: attrs,
		Payload:    msg.Value,
	}
}
