package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Fields is the flattened attribute set of a watchlist entity.
// Comparison is order-independent set-equality of name/value pairs.
type Fields map[string]string

// Equal reports whether both field sets contain exactly the same pairs.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}

	for name, value := range f {
		got, ok := other[name]
		if !ok || got != value {
			return false
		}
	}

	return true
}

// Clone returns a copy of the field set.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}

	cloned := make(Fields, len(f))
	for name, value := range f {
		cloned[name] = value
	}

	return cloned
}

// CanonicalJSON serializes the field set with deterministic key order,
// suitable for storage and byte-level comparison.
func (f Fields) CanonicalJSON() ([]byte, error) {
	// encoding/json sorts map keys, which is exactly the canonical form.
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	return data, nil
}

// RecordKind discriminates payloads flowing through the queue.
type RecordKind string

const (
	// RecordKindPerson is a full snapshot of a watchlist person.
	RecordKindPerson RecordKind = "person"
	// RecordKindRetire is a tombstone for an entity that left the watchlist.
	RecordKindRetire RecordKind = "retire"
)

var (
	// ErrEmptyEntityID is returned for records without an identifier.
	ErrEmptyEntityID = errors.New("record has no entity ID")
	// ErrUnknownRecordKind is returned for records of an unrecognized kind.
	ErrUnknownRecordKind = errors.New("unknown record kind")
)

// CanonicalRecord is the normalized shape of one source entry,
// published to the queue and applied by the consumer.
type CanonicalRecord struct {
	// EntityID is the stable identifier assigned by the source.
	EntityID string `json:"entity_id"`
	// Kind tells the consumer how to apply the record.
	Kind RecordKind `json:"kind"`
	// Fields is the flattened attribute set. Empty for tombstones.
	Fields Fields `json:"fields,omitempty"`
	// FetchedAt is when the producer observed this version at the source.
	FetchedAt time.Time `json:"fetched_at"`
}

// Validate checks the invariants every queued record must satisfy.
func (r *CanonicalRecord) Validate() error {
	if r.EntityID == "" {
		return ErrEmptyEntityID
	}

	switch r.Kind {
	case RecordKindPerson, RecordKindRetire:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecordKind, r.Kind)
	}
}
