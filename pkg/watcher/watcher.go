package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// rawEvent is an undebounced event from a backend.
type rawEvent struct {
	path string
	op   Op
}

// backend watches directories and reports raw events for their entries.
type backend interface {
	add(dir string) error
	remove(dir string) error
	close() error
}

// watcher implements the Watcher interface on top of a backend.
type watcher struct {
	backend backend
	logger  logger.Logger
	config  Config

	raw    chan rawEvent
	rawErr chan error
	events chan Event
	errors chan error

	// Registration state.
	regMu sync.Mutex
	files map[string]string // registered path -> watched directory
	dirs  map[string]int    // watched directory -> registrations

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}
	stopOnce sync.Once

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// Circuit breaker state.
	cbMu         sync.Mutex
	failureCount int
	lastFailure  time.Time
}

// New creates a new file system watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the backend cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	// Set defaults.
	if cfg.Backend == "" {
		cfg.Backend = BackendFSNotify
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 5
	}

	w := &watcher{
		logger:         log.With("component", "watcher"),
		config:         cfg,
		raw:            make(chan rawEvent, 256),
		rawErr:         make(chan error, 10),
		events:         make(chan Event, 100),
		errors:         make(chan error, 10),
		files:          make(map[string]string),
		dirs:           make(map[string]int),
		stopChan:       make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}

	var err error
	switch cfg.Backend {
	case BackendFSNotify:
		w.backend, err = newFSNotifyBackend(w.raw, w.rawErr, w.stopChan)
	case BackendNotify:
		w.backend = newNotifyBackend(w.raw, w.stopChan)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Backend, err)
	}

	w.logger.Info("file watcher created",
		"backend", cfg.Backend,
		"debounce_interval", cfg.DebounceInterval)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.running {
		return ErrAlreadyStarted
	}
	w.running = true

	go w.processEvents(ctx)

	w.logger.Info("watcher started")
	return nil
}

// Add implements Watcher.Add. On error, paths registered by this call are
// released again.
func (w *watcher) Add(paths ...string) error {
	if w.isClosed() {
		return ErrWatcherClosed
	}

	w.regMu.Lock()
	defer w.regMu.Unlock()

	var added []string
	for _, path := range paths {
		abs, err := w.addLocked(path)
		if err != nil {
			w.removeLocked(added)
			return err
		}
		if abs != "" {
			added = append(added, abs)
		}
	}

	w.logger.Debug("registered paths", "requested", len(paths), "added", len(added))
	return nil
}

// addLocked registers one path and returns its absolute form, or "" if
// nothing was registered.
func (w *watcher) addLocked(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	if _, ok := w.files[abs]; ok {
		return "", nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Warn("watch path does not exist, skipping", "path", abs)
			return "", nil
		}
		return "", fmt.Errorf("failed to stat path %s: %w", abs, err)
	}

	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	if w.dirs[dir] == 0 {
		if err := w.backend.add(dir); err != nil {
			return "", fmt.Errorf("failed to add path %s: %w", dir, err)
		}
		w.logger.Debug("added watch directory", "path", dir)
	}
	w.dirs[dir]++
	w.files[abs] = dir
	return abs, nil
}

// Remove implements Watcher.Remove.
func (w *watcher) Remove(paths ...string) error {
	if w.isClosed() {
		return ErrWatcherClosed
	}

	w.regMu.Lock()
	defer w.regMu.Unlock()

	var abs []string
	for _, path := range paths {
		p, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		abs = append(abs, p)
	}
	w.removeLocked(abs)

	return nil
}

// removeLocked unregisters absolute paths, dropping a directory watch with
// its last file.
func (w *watcher) removeLocked(paths []string) {
	for _, abs := range paths {
		dir, ok := w.files[abs]
		if !ok {
			continue
		}
		delete(w.files, abs)

		w.dirs[dir]--
		if w.dirs[dir] > 0 {
			continue
		}
		delete(w.dirs, dir)

		if err := w.backend.remove(dir); err != nil {
			w.logger.Warn("failed to remove watch directory", "path", dir, "error", err)
			continue
		}
		w.logger.Debug("removed watch directory", "path", dir)
	}
}

// Registered implements Watcher.Registered.
func (w *watcher) Registered() []string {
	w.regMu.Lock()
	defer w.regMu.Unlock()

	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	// Release senders blocked on a full channel before taking the lock.
	w.stopOnce.Do(func() { close(w.stopChan) })

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.running = false

	// Cancel debounce timers.
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()

	// Close channels.
	close(w.events)
	close(w.errors)

	if err := w.backend.close(); err != nil {
		w.logger.Error("failed to close watcher backend", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info("watcher closed")
	return nil
}

func (w *watcher) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// processEvents handles events from the backend.
func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event processing stopped", "reason", "context cancelled")
			return

		case <-w.stopChan:
			w.logger.Info("event processing stopped", "reason", "stop signal")
			return

		case event := <-w.raw:
			w.handleEvent(event)

		case err := <-w.rawErr:
			w.handleError(err)
		}
	}
}

// handleEvent filters a raw event by registration and debounces it.
func (w *watcher) handleEvent(event rawEvent) {
	if !w.isRegistered(event.path) {
		return
	}

	w.cbMu.Lock()
	w.failureCount = 0
	w.cbMu.Unlock()

	w.debounceEvent(Event{
		Path:      event.path,
		Op:        event.op,
		Timestamp: time.Now(),
	})
}

// isRegistered reports whether path, or the directory holding it, is
// registered.
func (w *watcher) isRegistered(path string) bool {
	w.regMu.Lock()
	defer w.regMu.Unlock()

	if _, ok := w.files[path]; ok {
		return true
	}

	dir := filepath.Dir(path)
	registeredDir, ok := w.files[dir]
	return ok && registeredDir == dir
}

// debounceEvent implements event debouncing.
func (w *watcher) debounceEvent(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	// Cancel existing timer for this path.
	if timer, exists := w.debounceTimers[event.Path]; exists {
		timer.Stop()
	}

	// Create new debounce timer.
	w.debounceTimers[event.Path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.emit(event)

		// Clean up timer.
		w.debounceMu.Lock()
		if w.debounceTimers != nil {
			delete(w.debounceTimers, event.Path)
		}
		w.debounceMu.Unlock()
	})
}

func (w *watcher) emit(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.events <- event:
	case <-w.stopChan:
	}
}

// handleError processes backend errors with circuit breaker pattern.
func (w *watcher) handleError(err error) {
	w.cbMu.Lock()
	w.failureCount++
	w.lastFailure = time.Now()
	failures := w.failureCount
	w.cbMu.Unlock()

	w.logger.Error("watcher backend error",
		"error", err,
		"failure_count", failures)

	// Check circuit breaker.
	if failures >= w.config.CircuitBreakerThreshold {
		w.logger.Error("circuit breaker opened",
			"threshold", w.config.CircuitBreakerThreshold)
		err = ErrCircuitBreakerOpen
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}
