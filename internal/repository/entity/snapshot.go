package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
)

// snapshotFileMode keeps the snapshot readable by the owner only.
const snapshotFileMode = 0o600

// Snapshotter persists the full entity state to a JSON file. Writes go
// through a temp file and rename, so a crash mid-write never corrupts the
// last good snapshot.
type Snapshotter struct {
	// path is the filesystem location of the snapshot file.
	path string
	// mu serializes writes so concurrent saves cannot interleave.
	mu sync.Mutex
}

// NewSnapshotter creates a snapshotter writing to the provided path.
func NewSnapshotter(path string) *Snapshotter {
	return &Snapshotter{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk. A missing file yields an empty state.
func (s *Snapshotter) Load() ([]*watch.StoredEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var entities []*watch.StoredEntity
	if err := json.Unmarshal(contents, &entities); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return entities, nil
}

// Save writes the full state. Failures are logged, not returned: the store
// stays authoritative in memory and the next mutation retries the write.
func (s *Snapshotter) Save(entities []*watch.StoredEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(entities)
	if err != nil {
		logger.Logger().Errorf("Failed to encode snapshot: %v", err)

		return
	}

	tmp := s.path + ".tmp"

	if err := os.WriteFile(tmp, data, snapshotFileMode); err != nil {
		logger.Logger().Errorf("Failed to write snapshot: %v", err)

		return
	}

	if err := os.Rename(tmp, s.path); err != nil {
		logger.Logger().Errorf("Failed to replace snapshot: %v", err)
	}
}
