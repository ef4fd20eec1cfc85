package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

// Message is one canonical record in transit through the durable queue.
type Message struct {
	// ID identifies the publish attempt, mostly for log correlation.
	ID string `json:"id"`
	// Record is the canonical record payload.
	Record watch.CanonicalRecord `json:"record"`
	// PublishedAt is when the producer handed the message to the queue.
	PublishedAt time.Time `json:"published_at"`
}

// NewMessage wraps a record for publishing.
func NewMessage(record watch.CanonicalRecord) Message {
	return Message{
		ID:          uuid.NewString(),
		Record:      record,
		PublishedAt: time.Now().UTC(),
	}
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	return data, nil
}

// DecodeMessage parses a wire payload back into a message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	return m, nil
}

// Delivery is one received message plus its acknowledgment token.
// An unacknowledged delivery reappears after the queue's visibility timeout;
// there is no negative acknowledgment.
type Delivery interface {
	// Message returns the delivered message.
	Message() Message
	// Ack destroys the delivery. Call it only after the apply durably
	// committed.
	Ack() error
}

// Publisher sends messages to the durable queue.
type Publisher interface {
	// Publish enqueues one message. An error means the message may or may
	// not have been stored; the producer retries a bounded number of times
	// and then drops the record for the cycle.
	Publish(ctx context.Context, msg Message) error
	// Close releases the underlying connection.
	Close() error
}

// Consumer receives deliveries from the durable queue.
type Consumer interface {
	// Consume returns a channel of deliveries. The channel closes when the
	// context is canceled or the connection drops; an in-flight delivery
	// stays valid until acked or its visibility timeout expires.
	Consume(ctx context.Context) (<-chan Delivery, error)
	// Close releases the underlying connection.
	Close() error
}

// ErrQueueClosed is returned when operating on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")
