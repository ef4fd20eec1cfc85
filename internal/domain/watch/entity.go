package watch

import "time"

// ChangeKind describes what an apply did to the stored entity.
type ChangeKind string

const (
	// ChangeCreated means the entity was seen for the first time.
	ChangeCreated ChangeKind = "created"
	// ChangeUnchanged means the delivery matched the stored version.
	ChangeUnchanged ChangeKind = "unchanged"
	// ChangeUpdated means the stored fields differed and were replaced.
	ChangeUpdated ChangeKind = "updated"
	// ChangeRetired means the entity was tombstoned off the watchlist.
	ChangeRetired ChangeKind = "retired"
	// ChangeStale means the delivery was older than the stored version
	// and was ignored.
	ChangeStale ChangeKind = "stale"
)

// StoredEntity is the last known state of a watchlist entity.
// Invariant: LastChangedAt never exceeds LastSeenAt.
type StoredEntity struct {
	// EntityID is the stable identifier assigned by the source.
	EntityID string `json:"entity_id"`
	// Fields is the last applied attribute set.
	Fields Fields `json:"fields"`
	// Active is false once the entity disappeared from the watchlist.
	Active bool `json:"active"`
	// AlarmActive flags a change an operator has not yet looked at.
	AlarmActive bool `json:"alarm_active"`
	// FirstSeenAt is when the entity was first inserted.
	FirstSeenAt time.Time `json:"first_seen_at"`
	// LastSeenAt is when the entity was last confirmed by a delivery.
	LastSeenAt time.Time `json:"last_seen_at"`
	// LastChangedAt is when the fields last differed from the stored version.
	LastChangedAt time.Time `json:"last_changed_at"`
	// FetchedAt is the source timestamp of the last applied version,
	// used to guard against reordered deliveries.
	FetchedAt time.Time `json:"fetched_at"`
}

// Clone returns a copy of the entity to avoid leaking internal references.
func (e *StoredEntity) Clone() *StoredEntity {
	if e == nil {
		return nil
	}

	cloned := *e
	cloned.Fields = e.Fields.Clone()

	return &cloned
}
