package entity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redwatch/redwatch/internal/domain/watch"
)

// MemoryRepository keeps entities in memory, one lock per entity so that
// distinct keys never block each other. An optional snapshotter persists the
// full state to disk in the background after every mutation.
type MemoryRepository struct {
	// policy tunes the apply semantics.
	policy watch.Policy
	// snapshotter persists state to disk; nil disables persistence.
	snapshotter *Snapshotter
	// mu guards the entries map itself, not the entities.
	mu sync.RWMutex
	// entries holds one locked slot per entity.
	entries map[string]*entry
	// wg tracks background snapshot writes.
	wg sync.WaitGroup
}

// entry is one entity and the lock serializing its mutations.
type entry struct {
	mu  sync.Mutex
	ent *watch.StoredEntity
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository(policy watch.Policy, snapshotter *Snapshotter) *MemoryRepository {
	return &MemoryRepository{
		policy:      policy,
		snapshotter: snapshotter,
		entries:     make(map[string]*entry),
	}
}

// LoadSnapshot primes the store from the snapshotter's file, if any.
func (r *MemoryRepository) LoadSnapshot() error {
	if r.snapshotter == nil {
		return nil
	}

	entities, err := r.snapshotter.Load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ent := range entities {
		r.entries[ent.EntityID] = &entry{ent: ent}
	}

	return nil
}

// Get returns a copy of one entity.
func (r *MemoryRepository) Get(_ context.Context, entityID string) (*watch.StoredEntity, error) {
	r.mu.RLock()
	slot, ok := r.entries[entityID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.ent == nil {
		return nil, ErrNotFound
	}

	return slot.ent.Clone(), nil
}

// List returns up to limit entities ordered by LastSeenAt descending.
func (r *MemoryRepository) List(_ context.Context, limit int) ([]*watch.StoredEntity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	entities := r.copyAll()

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].LastSeenAt.After(entities[j].LastSeenAt)
	})

	if len(entities) > limit {
		entities = entities[:limit]
	}

	return entities, nil
}

// Apply runs the upsert-with-diff transition under the entity's lock.
func (r *MemoryRepository) Apply(_ context.Context, record watch.CanonicalRecord) (watch.ChangeKind, error) {
	slot := r.slot(record.EntityID)

	slot.mu.Lock()
	next, kind := watch.Apply(slot.ent, record, r.policy)
	slot.ent = next
	slot.mu.Unlock()

	if kind != watch.ChangeStale {
		r.persist()
	}

	return kind, nil
}

// Retire runs the tombstone transition under the entity's lock.
func (r *MemoryRepository) Retire(_ context.Context, entityID string, now time.Time) (watch.ChangeKind, error) {
	slot := r.slot(entityID)

	slot.mu.Lock()
	next, kind := watch.Retire(slot.ent, now, r.policy)
	if next != nil {
		slot.ent = next
	}
	slot.mu.Unlock()

	if kind == watch.ChangeRetired {
		r.persist()
	}

	return kind, nil
}

// Wait blocks until pending background snapshot writes finish.
func (r *MemoryRepository) Wait() {
	r.wg.Wait()
}

// slot returns the locked slot for an entity, creating it when missing.
func (r *MemoryRepository) slot(entityID string) *entry {
	r.mu.RLock()
	slot, ok := r.entries[entityID]
	r.mu.RUnlock()

	if ok {
		return slot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slot, ok = r.entries[entityID]; ok {
		return slot
	}

	slot = &entry{}
	r.entries[entityID] = slot

	return slot
}

// copyAll snapshots every entity.
func (r *MemoryRepository) copyAll() []*watch.StoredEntity {
	r.mu.RLock()
	slots := make([]*entry, 0, len(r.entries))
	for _, slot := range r.entries {
		slots = append(slots, slot)
	}
	r.mu.RUnlock()

	entities := make([]*watch.StoredEntity, 0, len(slots))

	for _, slot := range slots {
		slot.mu.Lock()
		if slot.ent != nil {
			entities = append(entities, slot.ent.Clone())
		}
		slot.mu.Unlock()
	}

	return entities
}

// persist saves the full state in the background.
func (r *MemoryRepository) persist() {
	if r.snapshotter == nil {
		return
	}

	entities := r.copyAll()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		r.snapshotter.Save(entities)
	}()
}
