package indexing

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, root string) (*Watcher, chan []string) {
	t.Helper()
	d, err := NewDiscovery(discoveryConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	batches := make(chan []string, 4)
	w, err := NewWatcher(d, 100*time.Millisecond, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}
	return w, batches
}

func waitForPath(t *testing.T, batches chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-batches:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change batch containing %s", want)
		}
	}
}

func TestWatcherDeliversRelativePaths(t *testing.T) {
	root := t.TempDir()
	_, batches := newTestWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "main.inc"), []byte("include \"./lib.inc\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForPath(t, batches, "main.inc")
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	_, batches := newTestWatcher(t, root)

	// Two writes inside one debounce window must arrive as a single batch.
	if err := os.WriteFile(filepath.Join(root, "a.inc"), []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.inc"), []byte("b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-batches:
		seen := make(map[string]bool, len(paths))
		for _, p := range paths {
			seen[p] = true
		}
		if !seen["a.inc"] || !seen["b.inc"] {
			t.Errorf("burst batch = %v, want both a.inc and b.inc", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, batches := newTestWatcher(t, root)

	subdir := filepath.Join(root, "pkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(subdir, "nested.inc"), []byte("nested\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForPath(t, batches, "pkg/nested.inc")
}
