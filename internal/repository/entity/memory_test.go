package entity

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

func record(id string, fields watch.Fields, at time.Time) watch.CanonicalRecord {
	return watch.CanonicalRecord{
		EntityID:  id,
		Kind:      watch.RecordKindPerson,
		Fields:    fields,
		FetchedAt: at,
	}
}

// TestMemoryRepository_ApplyLifecycle walks create, idempotent redelivery and
// change detection through the store interface.
func TestMemoryRepository_ApplyLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository(watch.Policy{StaleGuard: true}, nil)

	t0 := time.Now().UTC()

	kind, err := repo.Apply(ctx, record("E1", watch.Fields{"name": "Alice", "status": "wanted"}, t0))
	require.NoError(t, err)
	require.Equal(t, watch.ChangeCreated, kind)

	ent, err := repo.Get(ctx, "E1")
	require.NoError(t, err)
	require.False(t, ent.AlarmActive)

	// Redelivered identical.
	kind, err = repo.Apply(ctx, record("E1", watch.Fields{"status": "wanted", "name": "Alice"}, t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, watch.ChangeUnchanged, kind)

	ent, err = repo.Get(ctx, "E1")
	require.NoError(t, err)
	require.False(t, ent.AlarmActive)

	// Changed fields raise the alarm.
	kind, err = repo.Apply(ctx, record("E1", watch.Fields{"name": "Alice", "status": "removed"}, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Equal(t, watch.ChangeUpdated, kind)

	ent, err = repo.Get(ctx, "E1")
	require.NoError(t, err)
	require.True(t, ent.AlarmActive)
	require.Equal(t, "removed", ent.Fields["status"])

	// Stale delivery is ignored.
	kind, err = repo.Apply(ctx, record("E1", watch.Fields{"status": "wanted"}, t0.Add(-time.Hour)))
	require.NoError(t, err)
	require.Equal(t, watch.ChangeStale, kind)

	ent, err = repo.Get(ctx, "E1")
	require.NoError(t, err)
	require.Equal(t, "removed", ent.Fields["status"])
}

// TestMemoryRepository_Retire tombstones an entity and keeps unknown IDs out.
func TestMemoryRepository_Retire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository(watch.Policy{}, nil)

	t0 := time.Now().UTC()
	_, err := repo.Apply(ctx, record("E1", watch.Fields{"status": "wanted"}, t0))
	require.NoError(t, err)

	kind, err := repo.Retire(ctx, "E1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, watch.ChangeRetired, kind)

	ent, err := repo.Get(ctx, "E1")
	require.NoError(t, err)
	require.False(t, ent.Active)
	require.True(t, ent.AlarmActive)

	// Unknown entity: nothing stored.
	kind, err = repo.Retire(ctx, "ghost", t0)
	require.NoError(t, err)
	require.Equal(t, watch.ChangeUnchanged, kind)

	_, err = repo.Get(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryRepository_List orders by LastSeenAt descending and honors limit.
func TestMemoryRepository_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository(watch.Policy{}, nil)

	t0 := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := repo.Apply(ctx, record(
			fmt.Sprintf("E%d", i),
			watch.Fields{"n": fmt.Sprintf("%d", i)},
			t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	entities, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	require.Equal(t, "E4", entities[0].EntityID)
	require.Equal(t, "E3", entities[1].EntityID)
	require.Equal(t, "E2", entities[2].EntityID)
}

// TestMemoryRepository_ConcurrentDistinctKeys hammers distinct entities in
// parallel; every apply must land.
func TestMemoryRepository_ConcurrentDistinctKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryRepository(watch.Policy{}, nil)

	const workers = 16

	t0 := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("E%d", n)

			for j := 0; j < 50; j++ {
				_, err := repo.Apply(ctx, record(id,
					watch.Fields{"v": fmt.Sprintf("%d", j)},
					t0.Add(time.Duration(j)*time.Second)))
				require.NoError(t, err)
			}
		}(i)
	}

	wg.Wait()

	entities, err := repo.List(ctx, workers)
	require.NoError(t, err)
	require.Len(t, entities, workers)

	for _, ent := range entities {
		require.Equal(t, "49", ent.Fields["v"])
	}
}

// TestMemoryRepository_SnapshotRoundtrip persists state to disk and loads it
// back into a fresh store.
func TestMemoryRepository_SnapshotRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entities.json")

	repo := NewMemoryRepository(watch.Policy{}, NewSnapshotter(path))
	require.NoError(t, repo.LoadSnapshot())

	t0 := time.Now().UTC().Truncate(time.Second)
	_, err := repo.Apply(ctx, record("E1", watch.Fields{"name": "Alice"}, t0))
	require.NoError(t, err)

	repo.Wait()

	restored := NewMemoryRepository(watch.Policy{}, NewSnapshotter(path))
	require.NoError(t, restored.LoadSnapshot())

	ent, err := restored.Get(ctx, "E1")
	require.NoError(t, err)
	require.Equal(t, "Alice", ent.Fields["name"])
	require.Equal(t, t0.Unix(), ent.FirstSeenAt.Unix())
}
