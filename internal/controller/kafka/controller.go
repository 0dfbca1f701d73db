package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	infrakafka "github.com/avolkhin/image-moderation/internal/infrastructure/kafka"
	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/avolkhin/image-moderation/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// BusController drains the bus topic into the router: one published
// envelope fans out to every subscription whose filter matches. The offset
// is committed only after a successful dispatch, so a crash mid-fan-out
// redelivers. Duplicate delivery is absorbed downstream by the record
// store's conditional writes.
type BusController struct {
	router *routing.Router
	ec     *infrakafka.EnvelopeConsumer
	logger logger.Interface

	commitTimeout   time.Duration
	dispatchTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	router *routing.Router,
	ec *infrakafka.EnvelopeConsumer,
	l logger.Interface,
	commitTimeout time.Duration,
	dispatchTimeout time.Duration,
	workers int,
) *BusController {
	return &BusController{
		router:          router,
		ec:              ec,
		logger:          l,
		commitTimeout:   commitTimeout,
		dispatchTimeout: dispatchTimeout,
		workers:         workers,
	}
}

func (c *BusController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("BusController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	tasks := make(chan kafka.Message, c.workers*2)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				msg, err := c.ec.ReadMessage(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "BusController - Start - c.ec.ReadMessage")
					}
					continue
				}

				select {
				case tasks <- msg:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *BusController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	for msg := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "BusController - worker - panic")
				}
			}()

			dispatchCtx, dispatchCancel := context.WithTimeout(c.ctx, c.dispatchTimeout)
			err := c.router.Dispatch(dispatchCtx, infrakafka.EnvelopeFromMessage(msg))
			dispatchCancel()
			if err != nil {
				// No commit: the message comes back and the fan-out runs
				// again. Queues that already got it absorb the duplicate.
				c.logger.Error(err, "BusController - worker - c.router.Dispatch")

				return
			}

			commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
			err = c.ec.CommitMessage(commitCtx, msg)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "BusController - worker - c.ec.CommitMessage")
			}
		}()
	}
}

func (c *BusController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.ec.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
