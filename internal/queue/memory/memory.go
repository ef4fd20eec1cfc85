package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redwatch/redwatch/internal/queue"
)

// DefaultVisibilityTimeout is how long a delivered message stays invisible
// before it is offered again.
const DefaultVisibilityTimeout = 30 * time.Second

// Queue is an embedded in-process queue with the same delivery contract as
// the broker-backed one: at-least-once, explicit acks, visibility-timeout
// redelivery. It backs tests and the standalone single-process mode.
type Queue struct {
	// visibility is the redelivery delay for unacknowledged messages.
	visibility time.Duration
	// mu protects the pending list and the closed flag.
	mu sync.Mutex
	// pending holds every unacknowledged message in arrival order.
	pending []*pendingMessage
	// wake nudges the dispatcher after a publish or an expired timeout.
	wake chan struct{}
	// closed marks the queue shut down.
	closed bool
}

// pendingMessage is one queued message and its next delivery time.
type pendingMessage struct {
	id           string
	msg          queue.Message
	deliverAfter time.Time
}

// New creates an embedded queue. A non-positive visibility timeout falls
// back to the default.
func New(visibility time.Duration) *Queue {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}

	return &Queue{
		visibility: visibility,
		wake:       make(chan struct{}, 1),
	}
}

// Publish appends the message to the pending list.
func (q *Queue) Publish(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return queue.ErrQueueClosed
	}

	q.pending = append(q.pending, &pendingMessage{
		id:           uuid.NewString(),
		msg:          msg,
		deliverAfter: time.Now(),
	})

	q.nudge()

	return nil
}

// Consume starts a dispatcher that delivers due messages and redelivers
// unacknowledged ones once their visibility timeout expires. The returned
// channel closes when the context is canceled or the queue is closed.
func (q *Queue) Consume(ctx context.Context) (<-chan queue.Delivery, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return nil, queue.ErrQueueClosed
	}
	q.mu.Unlock()

	out := make(chan queue.Delivery)

	go q.dispatch(ctx, out)

	return out, nil
}

// Close shuts the queue down; pending messages are discarded.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.pending = nil
	q.nudge()

	return nil
}

// dispatch is the delivery loop behind Consume.
func (q *Queue) dispatch(ctx context.Context, out chan<- queue.Delivery) {
	defer close(out)

	for {
		next, nextAt, ok := q.takeDue()
		if !ok {
			return
		}

		if next != nil {
			delivery := &memoryDelivery{queue: q, id: next.id, msg: next.msg}

			select {
			case out <- delivery:
			case <-ctx.Done():
				return
			}

			continue
		}

		// Nothing due: sleep until the earliest redelivery or a nudge.
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)

		if !nextAt.IsZero() {
			timer = time.NewTimer(time.Until(nextAt))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return
		case <-q.wake:
		case <-timerC:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// takeDue claims the first due message, bumping its redelivery time.
// When none is due it reports the earliest upcoming deadline instead.
// ok is false once the queue is closed.
func (q *Queue) takeDue() (*pendingMessage, time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, time.Time{}, false
	}

	now := time.Now()

	var nextAt time.Time

	for _, p := range q.pending {
		if !p.deliverAfter.After(now) {
			p.deliverAfter = now.Add(q.visibility)

			return p, time.Time{}, true
		}

		if nextAt.IsZero() || p.deliverAfter.Before(nextAt) {
			nextAt = p.deliverAfter
		}
	}

	return nil, nextAt, true
}

// ack removes an acknowledged message for good.
func (q *Queue) ack(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, p := range q.pending {
		if p.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)

			return
		}
	}
}

// nudge wakes the dispatcher without blocking. Callers hold q.mu.
func (q *Queue) nudge() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len reports how many messages are pending, mostly for tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// memoryDelivery is a delivered message waiting for its ack.
type memoryDelivery struct {
	queue *Queue
	id    string
	msg   queue.Message
}

// Message returns the delivered message.
func (d *memoryDelivery) Message() queue.Message {
	return d.msg
}

// Ack destroys the delivery.
func (d *memoryDelivery) Ack() error {
	d.queue.ack(d.id)

	return nil
}
