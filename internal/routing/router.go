package routing

import (
	"context"
	"fmt"

	"github.com/avolkhin/image-moderation/internal/queue"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
	"golang.org/x/sync/errgroup"
)

// Subscription binds a validated filter to the queue that buffers matching
// envelopes for one consumer.
type Subscription struct {
	Name   string
	Filter Filter
	Queue  queue.Queue
}

// Router fans a published envelope out to every subscription whose filter
// matches its attributes. Dispatch is pure routing: no retries, no state.
type Router struct {
	subs   []Subscription
	logger logger.Interface
}

func NewRouter(l logger.Interface) *Router {
	return &Router{logger: l}
}

// Subscribe registers a consumer queue behind a filter. Malformed filters
// are configuration errors and fail here, never at publish time.
func (r *Router) Subscribe(name string, filter Filter, q queue.Queue) error {
	if name == "" {
		return errs.NewConfiguration("subscription without a name")
	}
	if q == nil {
		return errs.NewConfiguration("subscription %q without a queue", name)
	}

	for _, sub := range r.subs {
		if sub.Name == name {
			return errs.NewConfiguration("subscription %q registered twice", name)
		}
	}

	if err := filter.Validate(); err != nil {
		return fmt.Errorf("Router - Subscribe - %q: %w", name, err)
	}

	r.subs = append(r.subs, Subscription{Name: name, Filter: filter, Queue: q})

	return nil
}

// Dispatch delivers env to every matching subscription, concurrently.
// Ordering across subscriptions is unspecified; ordering within one queue
// is the queue's business.
func (r *Router) Dispatch(ctx context.Context, env Envelope) error {
	body, err := WrapEnvelope(env)
	if err != nil {
		return fmt.Errorf("Router - Dispatch - WrapEnvelope: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	for _, sub := range r.subs {
		sub := sub

		if !sub.Filter.Matches(env.Attributes) {
			continue
		}

		eg.Go(func() error {
			if err := sub.Queue.Send(egCtx, body); err != nil {
				return fmt.Errorf("Router - Dispatch - %q - sub.Queue.Send: %w", sub.Name, err)
			}

			r.logger.Debug("routed envelope to %s", sub.Name)

			return nil
		})
	}

	return eg.Wait()
}
