package consumer

import (
	"context"
	"fmt"

	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/queue"
	"github.com/redwatch/redwatch/internal/repository/entity"
)

// Service drains the queue and applies each record to the entity store.
// A delivery is acknowledged only after the store confirms the apply, so
// a crash between apply and acknowledgment yields a redelivery that the
// idempotent store absorbs without raising a second alarm.
type Service struct {
	repository entity.Repository
	consumer   queue.Consumer
}

// NewService wires a consumer over the given queue and store.
func NewService(consumer queue.Consumer, repository entity.Repository) *Service {
	return &Service{
		repository: repository,
		consumer:   consumer,
	}
}

// Run processes deliveries until the context is canceled and the delivery
// channel drains. An in-flight apply finishes even during shutdown.
func (s *Service) Run(ctx context.Context) error {
	deliveries, err := s.consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	for delivery := range deliveries {
		s.handle(context.WithoutCancel(ctx), delivery)
	}

	logger.Info(ctx, "Delivery channel closed, exiting")

	return nil
}

// handle applies a single delivery. Poison records are acknowledged and
// dropped; store failures leave the delivery unacknowledged so the queue
// redelivers it.
func (s *Service) handle(ctx context.Context, delivery queue.Delivery) {
	msg := delivery.Message()
	record := msg.Record

	if err := record.Validate(); err != nil {
		logger.ErrorKV(ctx, "Dropping invalid record",
			"message_id", msg.ID, "entity_id", record.EntityID, "error", err)

		s.ack(ctx, delivery, msg.ID)

		return
	}

	var (
		change watch.ChangeKind
		err    error
	)

	switch record.Kind {
	case watch.RecordKindPerson:
		change, err = s.repository.Apply(ctx, record)
	case watch.RecordKindRetire:
		change, err = s.repository.Retire(ctx, record.EntityID, record.FetchedAt)
	default:
		logger.ErrorKV(ctx, "Dropping record of unknown kind",
			"message_id", msg.ID, "entity_id", record.EntityID, "kind", record.Kind)

		s.ack(ctx, delivery, msg.ID)

		return
	}

	if err != nil {
		// No acknowledgment: the queue redelivers after the visibility
		// timeout and the idempotent apply makes the retry safe.
		logger.ErrorKV(ctx, "Store apply failed, leaving delivery for redelivery",
			"message_id", msg.ID, "entity_id", record.EntityID, "error", err)

		return
	}

	s.ack(ctx, delivery, msg.ID)

	switch change {
	case watch.ChangeCreated, watch.ChangeUpdated, watch.ChangeRetired:
		logger.InfoKV(ctx, "Entity changed",
			"entity_id", record.EntityID, "change", change)
	default:
		logger.DebugKV(ctx, "Entity unchanged",
			"entity_id", record.EntityID, "change", change)
	}
}

func (s *Service) ack(ctx context.Context, delivery queue.Delivery, id string) {
	if err := delivery.Ack(); err != nil {
		logger.ErrorKV(ctx, "Acknowledge failed", "message_id", id, "error", err)
	}
}
