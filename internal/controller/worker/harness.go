package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avolkhin/image-moderation/internal/queue"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/avolkhin/image-moderation/pkg/types/errs"
)

// Handler processes one decoded envelope. It must be idempotent: the queue
// redelivers on failure and can redeliver on timeout even after success.
type Handler func(ctx context.Context, env routing.Envelope) error

// Harness drains one queue into one handler with a worker pool. Success
// deletes the delivery; failure leaves it to reappear after the visibility
// timeout, until the queue redrives it to the dead-letter queue.
//
// swallowValidation decides what a permanently invalid payload costs: true
// acknowledges it after logging (retrying can never help), false lets it
// burn its receive budget so it dead-letters. The ingest queue wants the
// latter, because dead-lettering there triggers the compensating object
// delete.
type Harness struct {
	name    string
	queue   queue.Queue
	handler Handler
	logger  logger.Interface

	workers           int
	pollInterval      time.Duration
	handleTimeout     time.Duration
	swallowValidation bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	name string,
	q queue.Queue,
	handler Handler,
	l logger.Interface,
	workers int,
	pollInterval time.Duration,
	handleTimeout time.Duration,
	swallowValidation bool,
) *Harness {
	return &Harness{
		name:              name,
		queue:             q,
		handler:           handler,
		logger:            l,
		workers:           workers,
		pollInterval:      pollInterval,
		handleTimeout:     handleTimeout,
		swallowValidation: swallowValidation,
	}
}

func (h *Harness) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Harness - Start - %s already started", h.name)
	}

	h.ctx, h.cancel = context.WithCancel(ctx)

	for i := 0; i < h.workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}

	return nil
}

func (h *Harness) worker() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		delivery, err := h.queue.Receive(h.ctx)
		if err != nil {
			if errors.Is(err, errs.ErrNoMessages) {
				h.sleep(h.pollInterval)

				continue
			}
			if !errors.Is(err, context.Canceled) {
				h.logger.Error(err, "Harness - worker - h.queue.Receive")
				h.sleep(h.pollInterval)
			}

			continue
		}

		h.process(delivery)
	}
}

func (h *Harness) process(delivery *queue.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(fmt.Errorf("panic %v", r), "Harness - process - panic")
		}
	}()

	err := h.handle(delivery)

	switch {
	case err == nil:
		h.ack(delivery)
	case errs.IsValidation(err) || errors.Is(err, errs.ErrMalformedEnvelope):
		h.logger.Warn("harness %s: invalid message (attempt %d): %v", h.name, delivery.ReceiveCount, err)

		if h.swallowValidation {
			h.ack(delivery)
		}
		// Otherwise leave it: the visibility timeout expires, the budget
		// drains, the queue dead-letters it.
	default:
		// Not-found and transient failures ride the same redelivery path;
		// not-found usually just means ingest has not landed yet.
		h.logger.Error(err, "Harness - process - h.handler")
	}
}

func (h *Harness) handle(delivery *queue.Delivery) error {
	env, err := routing.UnwrapEnvelope(delivery.Body)
	if err != nil {
		return err
	}

	handleCtx, cancel := context.WithTimeout(h.ctx, h.handleTimeout)
	defer cancel()

	return h.handler(handleCtx, env)
}

func (h *Harness) ack(delivery *queue.Delivery) {
	err := h.queue.Delete(h.ctx, delivery)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error(err, "Harness - ack - h.queue.Delete")
	}
}

func (h *Harness) sleep(d time.Duration) {
	select {
	case <-h.ctx.Done():
	case <-time.After(d):
	}
}

func (h *Harness) Shutdown(ctx context.Context) error {
	if !h.started.Load() {
		return nil
	}

	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})

	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
