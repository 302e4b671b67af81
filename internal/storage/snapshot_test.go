package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotReflectsCatalog(t *testing.T) {
	store := newTestStorage(t)
	mustCreate(t, store, "One", "Music", "one.mp3")
	dropped := mustCreate(t, store, "Two", "Music", "two.mp3")
	if err := store.DeleteMediaItem(dropped); err != nil {
		t.Fatalf("DeleteMediaItem returned error: %v", err)
	}

	snapshot := store.Snapshot()
	counts := snapshot.Counts()
	if counts.Items != 1 {
		t.Fatalf("snapshot items = %d, want 1", counts.Items)
	}
	if snapshot.NextID != 3 {
		t.Fatalf("snapshot NextID = %d, want 3", snapshot.NextID)
	}
}

func TestLoadSnapshotFromJSONReadsDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage returned error: %v", err)
	}
	mustCreate(t, store, "Exported", "Sermons", "exported.mp4")

	snapshot, err := LoadSnapshotFromJSON(path)
	if err != nil {
		t.Fatalf("LoadSnapshotFromJSON returned error: %v", err)
	}
	item, ok := snapshot.Items[1]
	if !ok {
		t.Fatal("snapshot missing item 1")
	}
	if item.Title != "Exported" || item.FilePath != "exported.mp4" {
		t.Fatalf("unexpected snapshot item: %+v", item)
	}
	if snapshot.NextID != 2 {
		t.Fatalf("snapshot NextID = %d, want 2", snapshot.NextID)
	}
}

func TestLoadSnapshotFromJSONEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	snapshot, err := LoadSnapshotFromJSON(path)
	if err != nil {
		t.Fatalf("LoadSnapshotFromJSON returned error: %v", err)
	}
	if len(snapshot.Items) != 0 {
		t.Fatalf("expected empty snapshot, got %d items", len(snapshot.Items))
	}
	if snapshot.NextID != 1 {
		t.Fatalf("snapshot NextID = %d, want 1", snapshot.NextID)
	}
}
