package watch

import "time"

// Policy tunes the apply semantics that vary per deployment.
type Policy struct {
	// AutoClearAlarm makes an unchanged delivery clear a raised alarm.
	// When false the alarm stays up until an operator acts on it.
	AutoClearAlarm bool
	// StaleGuard rejects a delivery whose FetchedAt is older than the one
	// already stored, protecting against reordered versions.
	StaleGuard bool
}

// Apply computes the next stored state for one delivered record.
// It is the single decision point shared by every store implementation;
// stores are responsible only for running it atomically per entity.
//
// A nil existing entity yields a fresh insert with the alarm down. The same
// record applied twice yields ChangeUnchanged the second time, which is what
// makes redelivery safe.
func Apply(existing *StoredEntity, record CanonicalRecord, policy Policy) (*StoredEntity, ChangeKind) {
	now := record.FetchedAt

	if existing == nil {
		return &StoredEntity{
			EntityID:      record.EntityID,
			Fields:        record.Fields.Clone(),
			Active:        true,
			AlarmActive:   false,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			LastChangedAt: now,
			FetchedAt:     now,
		}, ChangeCreated
	}

	if policy.StaleGuard && now.Before(existing.FetchedAt) {
		return existing.Clone(), ChangeStale
	}

	next := existing.Clone()
	next.LastSeenAt = now
	next.FetchedAt = now

	// A record for a previously retired entity means it is back on the
	// watchlist, which is a change in its own right.
	if existing.Fields.Equal(record.Fields) && existing.Active {
		if policy.AutoClearAlarm {
			next.AlarmActive = false
		}

		return next, ChangeUnchanged
	}

	next.Fields = record.Fields.Clone()
	next.Active = true
	next.AlarmActive = true
	next.LastChangedAt = now

	return next, ChangeUpdated
}

// Retire computes the next stored state for a tombstone.
// Unknown entities yield (nil, ChangeUnchanged): there is nothing to retire
// and redelivering the tombstone would not help.
func Retire(existing *StoredEntity, now time.Time, policy Policy) (*StoredEntity, ChangeKind) {
	if existing == nil {
		return nil, ChangeUnchanged
	}

	if policy.StaleGuard && now.Before(existing.FetchedAt) {
		return existing.Clone(), ChangeStale
	}

	next := existing.Clone()
	next.LastSeenAt = now
	next.FetchedAt = now

	if !existing.Active {
		if policy.AutoClearAlarm {
			next.AlarmActive = false
		}

		return next, ChangeUnchanged
	}

	next.Active = false
	next.AlarmActive = true
	next.LastChangedAt = now

	return next, ChangeRetired
}
