package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/logger"
)

func newStarted(t *testing.T, cfg Config) Watcher {
	t.Helper()

	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 50 * time.Millisecond
	}

	w, err := New(cfg, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Logf("Close() error = %v", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func expectEvent(t *testing.T, w Watcher, path string) Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-w.Events():
			if event.Path == path {
				return event
			}
		case <-timeout:
			t.Fatalf("Timeout waiting for event on %s", path)
			return Event{}
		}
	}
}

func expectNoEvent(t *testing.T, w Watcher, wait time.Duration) {
	t.Helper()

	select {
	case event := <-w.Events():
		t.Errorf("Received unexpected event: %+v", event)
	case <-time.After(wait):
	}
}

// drainEvents drains all pending events from a channel.
func drainEvents(ch <-chan Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestNew(t *testing.T) {
	for _, backend := range []string{"", BackendFSNotify, BackendNotify} {
		w, err := New(Config{Backend: backend}, logger.Noop())
		if err != nil {
			t.Fatalf("New(%q) error = %v", backend, err)
		}
		if closeErr := w.Close(); closeErr != nil {
			t.Errorf("Close() error = %v", closeErr)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "polling"}, logger.Noop())
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New() error = %v, want ErrUnknownBackend", err)
	}
}

func TestStartAlreadyStarted(t *testing.T) {
	w := newStarted(t, Config{})

	if err := w.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestRegisteredFileModify(t *testing.T) {
	for _, backend := range []string{BackendFSNotify, BackendNotify} {
		t.Run(backend, func(t *testing.T) {
			tmpDir := t.TempDir()
			testFile := filepath.Join(tmpDir, "index.js")
			writeFile(t, testFile, "initial")

			w := newStarted(t, Config{Backend: backend})
			if err := w.Add(testFile); err != nil {
				t.Fatalf("Add() error = %v", err)
			}

			writeFile(t, testFile, "modified")

			event := expectEvent(t, w, testFile)
			if event.Kind() != KindChange && event.Kind() != KindAdd {
				t.Errorf("Event kind = %s, want change", event.Kind())
			}
		})
	}
}

func TestUnregisteredSiblingIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	watched := filepath.Join(tmpDir, "a.js")
	sibling := filepath.Join(tmpDir, "b.js")
	writeFile(t, watched, "a")
	writeFile(t, sibling, "b")

	w := newStarted(t, Config{})
	if err := w.Add(watched); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	writeFile(t, sibling, "changed")
	expectNoEvent(t, w, 300*time.Millisecond)
}

func TestFileDelete(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "a.js")
	writeFile(t, testFile, "a")

	w := newStarted(t, Config{})
	if err := w.Add(testFile); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := os.Remove(testFile); err != nil {
		t.Fatalf("Failed to delete test file: %v", err)
	}

	event := expectEvent(t, w, testFile)
	if event.Op != OpRemove {
		t.Errorf("Event op = %s, want REMOVE", event.Op)
	}
	if event.Kind() != KindUnlink {
		t.Errorf("Event kind = %s, want unlink", event.Kind())
	}
}

func TestDirectoryRegistration(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "src")
	if err := os.MkdirAll(subDir, 0700); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	w := newStarted(t, Config{})
	if err := w.Add(subDir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	testFile := filepath.Join(subDir, "new.js")
	writeFile(t, testFile, "new")

	expectEvent(t, w, testFile)
}

func TestRemove(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.js")
	b := filepath.Join(tmpDir, "b.js")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	w := newStarted(t, Config{})
	if err := w.Add(a, b); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := w.Remove(a, filepath.Join(tmpDir, "unknown.js")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	got := w.Registered()
	if len(got) != 1 || got[0] != b {
		t.Errorf("Registered() = %v, want [%s]", got, b)
	}

	// The directory stays watched for b.
	writeFile(t, a, "changed")
	writeFile(t, b, "changed")

	event := expectEvent(t, w, b)
	if event.Path != b {
		t.Errorf("Event path = %s, want %s", event.Path, b)
	}
}

func TestRemoveLastUnwatchesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.js")
	writeFile(t, a, "a")

	w := newStarted(t, Config{})
	if err := w.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := w.Remove(a); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	writeFile(t, a, "changed")
	expectNoEvent(t, w, 300*time.Millisecond)

	if got := w.Registered(); len(got) != 0 {
		t.Errorf("Registered() = %v, want empty", got)
	}
}

func TestAddMissingPathSkipped(t *testing.T) {
	w := newStarted(t, Config{})

	missing := filepath.Join(t.TempDir(), "missing.js")
	if err := w.Add(missing); err != nil {
		t.Errorf("Add() error = %v, want nil for missing path", err)
	}
	if got := w.Registered(); len(got) != 0 {
		t.Errorf("Registered() = %v, want empty", got)
	}
}

func TestAddFailureReleasesPaths(t *testing.T) {
	w := newStarted(t, Config{})

	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.js")
	file := filepath.Join(dir, "a.js")
	writeFile(t, kept, "k")
	writeFile(t, file, "a")

	if err := w.Add(kept); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// A path beneath a regular file cannot be stat'ed.
	if err := w.Add(file, filepath.Join(file, "child")); err == nil {
		t.Fatal("Add() error = nil, want failure for path under a file")
	}

	got := w.Registered()
	if len(got) != 1 || got[0] != kept {
		t.Errorf("Registered() = %v, want [%s]", got, kept)
	}
}

func TestDebouncing(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "a.js")
	writeFile(t, testFile, "initial")

	w := newStarted(t, Config{DebounceInterval: 200 * time.Millisecond})
	if err := w.Add(testFile); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	drainEvents(w.Events())

	// Rapid file modifications.
	for i := 0; i < 5; i++ {
		writeFile(t, testFile, "content")
		time.Sleep(30 * time.Millisecond) // Less than debounce interval.
	}

	eventCount := 0
	timeout := time.After(1 * time.Second)

loop:
	for {
		select {
		case <-w.Events():
			eventCount++
		case <-timeout:
			break loop
		}
	}

	// With debouncing, we should get 1-3 events depending on OS behavior.
	if eventCount == 0 {
		t.Error("No events received, debouncing may be too aggressive")
	}
	if eventCount >= 5 {
		t.Errorf("Received %d events for 5 rapid writes, debouncing not working", eventCount)
	}
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, KindAdd},
		{OpWrite, KindChange},
		{OpChmod, KindChange},
		{OpRemove, KindUnlink},
		{OpRename, KindUnlink},
	}

	for _, tt := range tests {
		if got := (Event{Op: tt.op}).Kind(); got != tt.want {
			t.Errorf("Event{Op: %s}.Kind() = %s, want %s", tt.op, got, tt.want)
		}
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{Op(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Op.String() = %s, want %s", got, tt.want)
		}
	}
}

func TestCircuitBreaker(t *testing.T) {
	w, err := New(Config{CircuitBreakerThreshold: 2}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	impl := w.(*watcher)
	impl.handleError(errors.New("first"))
	impl.handleError(errors.New("second"))

	if err := <-w.Errors(); err == nil || err.Error() != "first" {
		t.Errorf("first error = %v, want first", err)
	}
	if err := <-w.Errors(); err != ErrCircuitBreakerOpen {
		t.Errorf("second error = %v, want ErrCircuitBreakerOpen", err)
	}
}

func TestCloseTwice(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Errorf("First Close() error = %v", closeErr)
	}

	// Second close should not error.
	if closeErr := w.Close(); closeErr != nil {
		t.Errorf("Second Close() error = %v", closeErr)
	}
}

func TestUseAfterClose(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if closeErr := w.Close(); closeErr != nil {
		t.Errorf("Close() error = %v", closeErr)
	}

	if err := w.Start(context.Background()); err != ErrWatcherClosed {
		t.Errorf("Start() error = %v, want ErrWatcherClosed", err)
	}
	if err := w.Add(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("Add() error = %v, want ErrWatcherClosed", err)
	}
	if err := w.Remove("/x"); err != ErrWatcherClosed {
		t.Errorf("Remove() error = %v, want ErrWatcherClosed", err)
	}
}
