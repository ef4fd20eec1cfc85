package source

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

// TestNormalize maps a representative payload and checks deterministic flattening.
func TestNormalize(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	raw := RawRecord{
		"entity_id":     "2024/12345",
		"name":          "DOE",
		"forename":      "John",
		"height":        1.82,
		"is_active":     true,
		"nationalities": []any{"US", "DE"},
		"_links":        map[string]any{"self": map[string]any{"href": "x"}},
		"weight":        nil,
	}

	record, err := Normalize(raw, now)
	require.NoError(t, err)
	require.Equal(t, "2024/12345", record.EntityID)
	require.Equal(t, watch.RecordKindPerson, record.Kind)
	require.Equal(t, now, record.FetchedAt)

	require.Equal(t, watch.Fields{
		"name":          "DOE",
		"forename":      "John",
		"height":        "1.82",
		"is_active":     "true",
		"nationalities": "DE,US",
	}, record.Fields)
}

// TestNormalize_Deterministic ensures identical input yields identical fields
// regardless of list ordering.
func TestNormalize_Deterministic(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	a, err := Normalize(RawRecord{"entity_id": "E1", "langs": []any{"b", "a"}}, now)
	require.NoError(t, err)

	b, err := Normalize(RawRecord{"entity_id": "E1", "langs": []any{"a", "b"}}, now)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

// TestNormalize_NestedObjects ensures object-valued attributes survive
// flattening, so a change inside one still reads as a field change.
func TestNormalize_NestedObjects(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	withWarrant := func(country, charge string) RawRecord {
		return RawRecord{
			"entity_id": "2024/123",
			"name":      "DOE",
			"arrest_warrants": []any{
				map[string]any{"issuing_country_id": country, "charge": charge},
			},
		}
	}

	a, err := Normalize(withWarrant("US", "fraud"), now)
	require.NoError(t, err)
	require.Contains(t, a.Fields, "arrest_warrants")

	b, err := Normalize(withWarrant("FR", "homicide"), now)
	require.NoError(t, err)

	require.False(t, a.Fields.Equal(b.Fields))

	// A byte-identical warrant set stays equal.
	c, err := Normalize(withWarrant("US", "fraud"), now)
	require.NoError(t, err)
	require.True(t, a.Fields.Equal(c.Fields))
}

// TestNormalize_NestedObjectOrder ensures warrant ordering inside the list
// does not read as a change.
func TestNormalize_NestedObjectOrder(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	first := map[string]any{"issuing_country_id": "US", "charge": "fraud"}
	second := map[string]any{"issuing_country_id": "FR", "charge": "homicide"}

	a, err := Normalize(RawRecord{"entity_id": "E1", "arrest_warrants": []any{first, second}}, now)
	require.NoError(t, err)

	b, err := Normalize(RawRecord{"entity_id": "E1", "arrest_warrants": []any{second, first}}, now)
	require.NoError(t, err)

	require.Equal(t, a.Fields, b.Fields)
}

// TestNormalize_Malformed rejects records without an identifier.
func TestNormalize_Malformed(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	_, err := Normalize(RawRecord{"name": "DOE"}, now)
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Normalize(RawRecord{"entity_id": ""}, now)
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = Normalize(RawRecord{"entity_id": 42.0}, now)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

// TestNormalizeAll_Isolation verifies one malformed record never blocks
// the rest of the batch.
func TestNormalizeAll_Isolation(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	raws := make([]RawRecord, 0, 10)

	for i := 0; i < 9; i++ {
		raws = append(raws, RawRecord{"entity_id": fmt.Sprintf("E%d", i), "name": "X"})
	}

	raws = append(raws, RawRecord{"name": "no id"})

	records := NormalizeAll(context.Background(), raws, now)
	require.Len(t, records, 9)

	for _, record := range records {
		require.NoError(t, record.Validate())
	}
}
