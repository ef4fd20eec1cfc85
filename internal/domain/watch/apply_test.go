package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func personRecord(id string, fields Fields, at time.Time) CanonicalRecord {
	return CanonicalRecord{
		EntityID:  id,
		Kind:      RecordKindPerson,
		Fields:    fields,
		FetchedAt: at,
	}
}

// TestFieldsEqual verifies order-independent set-equality.
func TestFieldsEqual(t *testing.T) {
	t.Parallel()

	a := Fields{"name": "Alice", "status": "wanted"}
	b := Fields{"status": "wanted", "name": "Alice"}
	require.True(t, a.Equal(b))

	require.False(t, a.Equal(Fields{"name": "Alice"}))
	require.False(t, a.Equal(Fields{"name": "Alice", "status": "removed"}))
	require.True(t, Fields(nil).Equal(Fields{}))
}

// TestFieldsCanonicalJSON ensures serialization is deterministic across key order.
func TestFieldsCanonicalJSON(t *testing.T) {
	t.Parallel()

	a, err := Fields{"b": "2", "a": "1"}.CanonicalJSON()
	require.NoError(t, err)

	b, err := Fields{"a": "1", "b": "2"}.CanonicalJSON()
	require.NoError(t, err)

	require.Equal(t, a, b)
}

// TestApply_Created covers the first-insert path: alarm down, all timestamps equal.
func TestApply_Created(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	next, kind := Apply(nil, personRecord("E1", Fields{"name": "Alice"}, now), Policy{})

	require.Equal(t, ChangeCreated, kind)
	require.False(t, next.AlarmActive)
	require.True(t, next.Active)
	require.Equal(t, now, next.FirstSeenAt)
	require.Equal(t, now, next.LastSeenAt)
	require.Equal(t, now, next.LastChangedAt)
}

// TestApply_Idempotent verifies that reapplying the same record is a no-op
// beyond the seen timestamp.
func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rec := personRecord("E1", Fields{"name": "Alice", "status": "wanted"}, now)

	first, kind := Apply(nil, rec, Policy{})
	require.Equal(t, ChangeCreated, kind)

	second, kind := Apply(first, rec, Policy{})
	require.Equal(t, ChangeUnchanged, kind)
	require.Equal(t, first.Fields, second.Fields)
	require.Equal(t, first.AlarmActive, second.AlarmActive)
	require.Equal(t, first.LastChangedAt, second.LastChangedAt)
}

// TestApply_ChangeDetection walks the end-to-end scenario: create, redeliver
// identical, deliver changed.
func TestApply_ChangeDetection(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	created, kind := Apply(nil, personRecord("E1", Fields{"name": "Alice", "status": "wanted"}, t0), Policy{})
	require.Equal(t, ChangeCreated, kind)
	require.False(t, created.AlarmActive)

	// Redelivered identical, different key order is irrelevant for maps.
	t1 := t0.Add(time.Minute)
	same, kind := Apply(created, personRecord("E1", Fields{"status": "wanted", "name": "Alice"}, t1), Policy{})
	require.Equal(t, ChangeUnchanged, kind)
	require.False(t, same.AlarmActive)
	require.Equal(t, t1, same.LastSeenAt)
	require.Equal(t, t0, same.LastChangedAt)

	t2 := t1.Add(time.Minute)
	changed, kind := Apply(same, personRecord("E1", Fields{"name": "Alice", "status": "removed"}, t2), Policy{})
	require.Equal(t, ChangeUpdated, kind)
	require.True(t, changed.AlarmActive)
	require.Equal(t, "removed", changed.Fields["status"])
	require.Equal(t, t2, changed.LastChangedAt)
	require.Equal(t, t2, changed.LastSeenAt)
}

// TestApply_AlarmSticky ensures a raised alarm survives unchanged deliveries
// under the default policy and clears under AutoClearAlarm.
func TestApply_AlarmSticky(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	ent, _ := Apply(nil, personRecord("E1", Fields{"status": "wanted"}, t0), Policy{})
	ent, kind := Apply(ent, personRecord("E1", Fields{"status": "removed"}, t0.Add(time.Minute)), Policy{})
	require.Equal(t, ChangeUpdated, kind)
	require.True(t, ent.AlarmActive)

	rec := personRecord("E1", Fields{"status": "removed"}, t0.Add(2*time.Minute))

	sticky, kind := Apply(ent, rec, Policy{})
	require.Equal(t, ChangeUnchanged, kind)
	require.True(t, sticky.AlarmActive)

	cleared, kind := Apply(ent, rec, Policy{AutoClearAlarm: true})
	require.Equal(t, ChangeUnchanged, kind)
	require.False(t, cleared.AlarmActive)
}

// TestApply_StaleGuard verifies that an older delivery mutates nothing when
// the guard is on and still applies when it is off.
func TestApply_StaleGuard(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	ent, _ := Apply(nil, personRecord("E1", Fields{"status": "removed"}, t0), Policy{})

	old := personRecord("E1", Fields{"status": "wanted"}, t0.Add(-time.Hour))

	guarded, kind := Apply(ent, old, Policy{StaleGuard: true})
	require.Equal(t, ChangeStale, kind)
	require.Equal(t, ent.Fields, guarded.Fields)
	require.Equal(t, ent.LastSeenAt, guarded.LastSeenAt)

	unguarded, kind := Apply(ent, old, Policy{})
	require.Equal(t, ChangeUpdated, kind)
	require.Equal(t, "wanted", unguarded.Fields["status"])
}

// TestRetire covers tombstones: active entity retires with an alarm,
// repeated tombstones are no-ops, unknown entities are ignored.
func TestRetire(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	ent, _ := Apply(nil, personRecord("E1", Fields{"status": "wanted"}, t0), Policy{})

	t1 := t0.Add(time.Minute)
	retired, kind := Retire(ent, t1, Policy{})
	require.Equal(t, ChangeRetired, kind)
	require.False(t, retired.Active)
	require.True(t, retired.AlarmActive)
	require.Equal(t, t1, retired.LastChangedAt)

	again, kind := Retire(retired, t1.Add(time.Minute), Policy{})
	require.Equal(t, ChangeUnchanged, kind)
	require.False(t, again.Active)

	none, kind := Retire(nil, t1, Policy{})
	require.Nil(t, none)
	require.Equal(t, ChangeUnchanged, kind)
}

// TestRetire_Reappearance ensures a person record after a tombstone
// reactivates the entity and raises the alarm.
func TestRetire_Reappearance(t *testing.T) {
	t.Parallel()

	t0 := time.Now().UTC()
	ent, _ := Apply(nil, personRecord("E1", Fields{"status": "wanted"}, t0), Policy{})
	ent, _ = Retire(ent, t0.Add(time.Minute), Policy{})

	back, kind := Apply(ent, personRecord("E1", Fields{"status": "wanted"}, t0.Add(2*time.Minute)), Policy{})
	require.Equal(t, ChangeUpdated, kind)
	require.True(t, back.Active)
	require.True(t, back.AlarmActive)
}

// TestCanonicalRecordValidate checks the record invariants.
func TestCanonicalRecordValidate(t *testing.T) {
	t.Parallel()

	rec := CanonicalRecord{Kind: RecordKindPerson}
	require.ErrorIs(t, rec.Validate(), ErrEmptyEntityID)

	rec = CanonicalRecord{EntityID: "E1", Kind: "banana"}
	require.ErrorIs(t, rec.Validate(), ErrUnknownRecordKind)

	rec = CanonicalRecord{EntityID: "E1", Kind: RecordKindRetire}
	require.NoError(t, rec.Validate())
}

// TestStoredEntityClone verifies deep copy of the field map.
func TestStoredEntityClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*StoredEntity)(nil).Clone())

	ent := &StoredEntity{
		EntityID: "E1",
		Fields:   Fields{"name": "Alice"},
		Active:   true,
	}

	cloned := ent.Clone()
	require.Equal(t, ent, cloned)
	require.NotSame(t, ent, cloned)

	cloned.Fields["name"] = "Bob"
	require.Equal(t, "Alice", ent.Fields["name"])
}
