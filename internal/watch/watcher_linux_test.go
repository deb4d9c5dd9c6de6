package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withWatcher(t *testing.T, fn func(root string, w *Watcher)) {
	t.Helper()
	root := t.TempDir()
	w, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()
	fn(root, w)
}

func waitForEvent(t *testing.T, w *Watcher) (name, description string) {
	t.Helper()
	select {
	case event := <-w.Events():
		return event.Name, event.Description
	case err := <-w.Errors():
		t.Fatalf("watcher reported an error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return
}

func TestSingleAppend(t *testing.T) {
	withWatcher(t, func(root string, w *Watcher) {
		path := filepath.Join(root, "a.log")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("unable to create file: %v", err)
		}
		if err := w.Add("a.log"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("unable to open file: %v", err)
		}
		if _, err := f.WriteString("hello\n"); err != nil {
			t.Fatalf("unable to append: %v", err)
		}
		f.Close()

		name, description := waitForEvent(t, w)
		if name != "a.log" || description != "hello" {
			t.Fatalf("got name=%q description=%q, want name=%q description=%q", name, description, "a.log", "hello")
		}
	})
}

func TestMultilineAppend(t *testing.T) {
	withWatcher(t, func(root string, w *Watcher) {
		path := filepath.Join(root, "a.log")
		if err := os.WriteFile(path, []byte("x\n"), 0644); err != nil {
			t.Fatalf("unable to create file: %v", err)
		}
		if err := w.Add("a.log"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("unable to open file: %v", err)
		}
		if _, err := f.WriteString("y\nz\n"); err != nil {
			t.Fatalf("unable to append: %v", err)
		}
		f.Close()

		_, description := waitForEvent(t, w)
		if description != "y\nz" {
			t.Fatalf("got description=%q, want %q", description, "y\nz")
		}
	})
}

func TestRotation(t *testing.T) {
	withWatcher(t, func(root string, w *Watcher) {
		path := filepath.Join(root, "app.log")
		if err := os.WriteFile(path, []byte("before\n"), 0644); err != nil {
			t.Fatalf("unable to create file: %v", err)
		}
		if err := w.Add("app.log"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		if err := os.Rename(path, filepath.Join(root, "app.log.1")); err != nil {
			t.Fatalf("unable to rename: %v", err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("unable to recreate file: %v", err)
		}

		// Give the rotation handshake (DELETE_SELF/MOVE_SELF -> CREATE) a
		// moment to settle before appending, matching the real-world gap
		// between logrotate creating the new file and the application
		// reopening it.
		time.Sleep(200 * time.Millisecond)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("unable to open recreated file: %v", err)
		}
		if _, err := f.WriteString("after\n"); err != nil {
			t.Fatalf("unable to append: %v", err)
		}
		f.Close()

		name, description := waitForEvent(t, w)
		if name != "app.log" || description != "after" {
			t.Fatalf("got name=%q description=%q, want name=%q description=%q", name, description, "app.log", "after")
		}
	})
}

func TestTruncateThenWrite(t *testing.T) {
	withWatcher(t, func(root string, w *Watcher) {
		path := filepath.Join(root, "a.log")
		if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
			t.Fatalf("unable to create file: %v", err)
		}
		if err := w.Add("a.log"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		if err := os.Truncate(path, 0); err != nil {
			t.Fatalf("unable to truncate: %v", err)
		}

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("unable to open file: %v", err)
		}
		if _, err := f.WriteString("new"); err != nil {
			t.Fatalf("unable to append: %v", err)
		}
		f.Close()

		_, description := waitForEvent(t, w)
		if description != "new" {
			t.Fatalf("got description=%q, want %q", description, "new")
		}
	})
}
