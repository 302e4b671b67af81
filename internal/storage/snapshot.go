package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"veritas-media/internal/models"
)

// Snapshot captures a complete JSON-serialisable view of the catalog so it can
// be persisted and later replayed into another backing store.
type Snapshot struct {
	Items  map[int]models.MediaItem `json:"items"`
	NextID int                      `json:"nextId"`
}

// SnapshotCounts summarises the snapshot size so migration tooling can verify
// an import copied everything.
type SnapshotCounts struct {
	Items int
	MaxID int
}

// Counts tallies the snapshot contents.
func (s *Snapshot) Counts() SnapshotCounts {
	counts := SnapshotCounts{}
	if s == nil {
		return counts
	}
	counts.Items = len(s.Items)
	for id := range s.Items {
		if id > counts.MaxID {
			counts.MaxID = id
		}
	}
	return counts
}

func (s *Snapshot) ensureInitialized() {
	if s.Items == nil {
		s.Items = make(map[int]models.MediaItem)
	}
	if s.NextID <= 0 {
		s.NextID = 1
	}
}

// LoadSnapshotFromJSON reads a previously written catalog file from disk. The
// JSON driver's on-disk format and the snapshot format are identical, so a live
// data file can be imported directly.
func LoadSnapshotFromJSON(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var snapshot Snapshot
	if err := decoder.Decode(&snapshot); err != nil {
		if err == io.EOF {
			snapshot.ensureInitialized()
			return &snapshot, nil
		}
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	snapshot.ensureInitialized()
	return &snapshot, nil
}

// Snapshot returns a copy of the live catalog state.
func (s *Storage) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := cloneDataset(s.data)
	snapshot := &Snapshot{Items: clone.Items, NextID: clone.NextID}
	snapshot.ensureInitialized()
	return snapshot
}
