package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadSnapshots(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.SaveSnapshot(Snapshot{
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			FileCount:  100 + i,
			NodeCount:  120 + i,
			EdgeCount:  300 + i,
			IssueCount: i,
			CycleCount: i % 2,
			AvgFanIn:   2.5,
			MaxFanIn:   17,
			DurationMS: 150,
		})
		if err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	all, err := store.LoadSnapshots(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("loaded %d snapshots, want 3", len(all))
	}
	if !all[0].Timestamp.Equal(base) || all[0].FileCount != 100 {
		t.Errorf("first snapshot = %+v", all[0])
	}

	recent, err := store.LoadSnapshots(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("since filter returned %d rows, want 1", len(recent))
	}
}

func TestSaveSnapshotUpsertsSameTimestamp(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveSnapshot(Snapshot{Timestamp: ts, FileCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSnapshot(Snapshot{Timestamp: ts, FileCount: 2}); err != nil {
		t.Fatal(err)
	}

	all, err := store.LoadSnapshots(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].FileCount != 2 {
		t.Fatalf("upsert failed: %+v", all)
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
