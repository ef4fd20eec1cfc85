package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/queue"
	"github.com/redwatch/redwatch/internal/source"
)

// Service turns one sweep of the source into published queue messages.
// It keeps no state beyond the previous sweep's entity IDs, which it needs
// to emit tombstones for entities that left the watchlist.
type Service struct {
	// source yields the full bounded dataset.
	source source.Source
	// publisher is the durable queue.
	publisher queue.Publisher
	// fetchCeiling caps total retry time for a failed sweep fetch.
	fetchCeiling time.Duration
	// publishRetries bounds retries per record before dropping it.
	publishRetries uint
	// lastSweep holds the entity IDs of the previous successful sweep.
	lastSweep map[string]struct{}
}

// NewService wires a producer over the given source and queue.
func NewService(src source.Source, publisher queue.Publisher, fetchCeiling time.Duration, publishRetries uint) *Service {
	return &Service{
		source:         src,
		publisher:      publisher,
		fetchCeiling:   fetchCeiling,
		publishRetries: publishRetries,
		lastSweep:      make(map[string]struct{}),
	}
}

// RunCycle performs one full sweep: fetch, normalize, publish, tombstone.
// A fetch failure after the retry ceiling fails the cycle; the previous
// stored state stays authoritative until the next successful sweep.
func (s *Service) RunCycle(ctx context.Context) error {
	raws, err := s.fetchWithBackoff(ctx)
	if err != nil {
		return fmt.Errorf("fetch sweep: %w", err)
	}

	now := time.Now().UTC()
	records := source.NormalizeAll(ctx, raws, now)

	// Every normalized entity is part of the current watchlist, whether or
	// not its publish succeeds: a dropped record must never turn into a
	// tombstone.
	currentSweep := make(map[string]struct{}, len(records))
	for _, record := range records {
		currentSweep[record.EntityID] = struct{}{}
	}

	var published, dropped int

	for _, record := range records {
		if err := s.publishWithRetry(ctx, queue.NewMessage(record)); err != nil {
			// The record reappears on the next sweep anyway.
			logger.ErrorKV(ctx, "Dropping record for this cycle",
				"entity_id", record.EntityID, "error", err)

			dropped++

			continue
		}

		published++
	}

	retired := s.publishTombstones(ctx, currentSweep, now)

	s.lastSweep = currentSweep
	for id := range retired {
		// Failed tombstones stay in lastSweep so the next cycle retries them.
		s.lastSweep[id] = struct{}{}
	}

	logger.InfoKV(ctx, "Sweep finished",
		"fetched", len(raws), "published", published, "dropped", dropped)

	return nil
}

// publishTombstones emits retire records for entities that vanished since
// the previous sweep. It returns the IDs whose tombstone publish failed.
func (s *Service) publishTombstones(ctx context.Context, currentSweep map[string]struct{}, now time.Time) map[string]struct{} {
	failed := make(map[string]struct{})

	for id := range s.lastSweep {
		if _, ok := currentSweep[id]; ok {
			continue
		}

		tombstone := watch.CanonicalRecord{
			EntityID:  id,
			Kind:      watch.RecordKindRetire,
			FetchedAt: now,
		}

		if err := s.publishWithRetry(ctx, queue.NewMessage(tombstone)); err != nil {
			logger.ErrorKV(ctx, "Dropping tombstone for this cycle",
				"entity_id", id, "error", err)

			failed[id] = struct{}{}

			continue
		}

		logger.InfoKV(ctx, "Entity left the watchlist", "entity_id", id)
	}

	return failed
}

// fetchWithBackoff retries the sweep fetch with bounded exponential backoff.
func (s *Service) fetchWithBackoff(ctx context.Context) ([]source.RawRecord, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.fetchCeiling

	var raws []source.RawRecord

	operation := func() error {
		var err error

		raws, err = s.source.Fetch(ctx)
		if err != nil {
			logger.WarnKV(ctx, "Sweep fetch failed, will retry", "error", err)
		}

		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	return raws, nil
}

// publishWithRetry retries one publish a bounded number of times.
func (s *Service) publishWithRetry(ctx context.Context, msg queue.Message) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.publishRetries))

	operation := func() error {
		return s.publisher.Publish(ctx, msg)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}

	return nil
}
