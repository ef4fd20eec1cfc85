package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/redwatch/redwatch/internal/logger"
)

// AMQPQueue talks to a RabbitMQ-compatible broker. The queue is declared
// durable and messages persistent, so both survive a broker restart.
// Redelivery of unacknowledged messages is the broker's native behavior.
type AMQPQueue struct {
	// conn is the broker connection.
	conn *amqp.Connection
	// channel is the AMQP channel all operations run on.
	channel *amqp.Channel
	// name is the queue name.
	name string
	// prefetch is the consumer prefetch window.
	prefetch int
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, name string, prefetch int) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Publisher confirms let Publish report whether the broker stored
	// the message.
	if err = channel.Confirm(false); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	if _, err = channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	return &AMQPQueue{
		conn:     conn,
		channel:  channel,
		name:     name,
		prefetch: prefetch,
	}, nil
}

// Publish sends one persistent message and waits for the broker confirm.
func (q *AMQPQueue) Publish(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}

	confirm, err := q.channel.PublishWithDeferredConfirmWithContext(ctx, "", q.name, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.PublishedAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.name, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}

	if !acked {
		return fmt.Errorf("publish to %s: broker rejected message", q.name)
	}

	return nil
}

// Consume starts delivering messages with manual acknowledgment.
func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	if err := q.channel.Qos(q.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := q.channel.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				msg, err := DecodeMessage(d.Body)
				if err != nil {
					// A payload that cannot even be decoded would
					// redeliver forever; drop it.
					logger.ErrorKV(ctx, "Dropping undecodable delivery", "error", err)

					_ = d.Ack(false)

					continue
				}

				select {
				case out <- &amqpDelivery{raw: d, msg: msg}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the broker connection.
func (q *AMQPQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}

	if err := q.conn.Close(); err != nil {
		return fmt.Errorf("close broker connection: %w", err)
	}

	return nil
}

// amqpDelivery adapts an AMQP delivery to the queue contract.
type amqpDelivery struct {
	raw amqp.Delivery
	msg Message
}

// Message returns the decoded message.
func (d *amqpDelivery) Message() Message {
	return d.msg
}

// Ack confirms the delivery to the broker.
func (d *amqpDelivery) Ack() error {
	if err := d.raw.Ack(false); err != nil {
		return fmt.Errorf("ack delivery: %w", err)
	}

	return nil
}
