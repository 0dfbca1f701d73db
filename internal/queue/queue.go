package queue

import "context"

// Delivery is one at-least-once handout of a queued message. The same
// message can be delivered again after its visibility timeout expires, with
// ReceiveCount incremented each time.
type Delivery struct {
	ID           string
	Body         []byte
	ReceiveCount int
}

// Queue provides buffered at-least-once delivery. A received message stays
// invisible for the queue's visibility timeout; deleting it acknowledges
// success, doing nothing lets it reappear. Messages that exhaust their
// receive budget are moved verbatim to the dead-letter queue, if the
// implementation was configured with one.
//
// Receive returns errs.ErrNoMessages when nothing is currently visible.
type Queue interface {
	Send(ctx context.Context, body []byte) error
	Receive(ctx context.Context) (*Delivery, error)
	Delete(ctx context.Context, delivery *Delivery) error
}
