package entity

import (
	"context"
	"errors"
	"time"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

// Repository is the durable keyed store for watchlist entities.
// Apply and Retire run atomically per entity: two concurrent deliveries for
// the same entity never interleave into a half-applied state, and distinct
// entities never block each other.
type Repository interface {
	// Get returns one entity or ErrNotFound.
	Get(ctx context.Context, entityID string) (*watch.StoredEntity, error)
	// List returns up to limit entities ordered by LastSeenAt descending.
	List(ctx context.Context, limit int) ([]*watch.StoredEntity, error)
	// Apply runs the upsert-with-diff transition for one delivered record.
	Apply(ctx context.Context, record watch.CanonicalRecord) (watch.ChangeKind, error)
	// Retire runs the tombstone transition for one entity.
	Retire(ctx context.Context, entityID string, now time.Time) (watch.ChangeKind, error)
}

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// DefaultListLimit bounds listings when the caller does not.
const DefaultListLimit = 100
