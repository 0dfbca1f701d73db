package infrastructure

import (
	"context"

	"github.com/avolkhin/image-moderation/internal/routing"
)

type (
	// EnvelopePublisher puts routing envelopes onto the event bus.
	EnvelopePublisher interface {
		Publish(ctx context.Context, env routing.Envelope) error
		Close() error
	}

	// EmailSender delivers owner notifications. External to the core.
	EmailSender interface {
		SendEmail(ctx context.Context, to, subject, body string) error
	}
)
