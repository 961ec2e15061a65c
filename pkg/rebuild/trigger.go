// Package rebuild turns file change events into project builds.
//
// Each root moves IDLE -> BUILDING -> IDLE. A change locks the changed
// path, resolves the project root through the build operation's argument
// parsing and locks the root too. Both keys are released when the build
// completes, whatever the outcome. Changes arriving while either key is
// locked are dropped.
//
// Errors never leave the trigger; they are logged.
package rebuild

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/build"
	"github.com/0xmhha/cortex-watch/pkg/display"
	"github.com/0xmhha/cortex-watch/pkg/locktable"
	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// Config contains trigger configuration.
type Config struct {
	// Color enables ANSI status words in log messages.
	Color bool
}

// Stats counts handled changes.
type Stats struct {
	Dispatched     int64
	Succeeded      int64
	Failed         int64
	Dropped        int64
	DispatchErrors int64
}

// Trigger dispatches builds for changed files.
type Trigger struct {
	op     build.Operation
	locks  *locktable.Table
	logger logger.Logger
	color  bool

	dispatched     atomic.Int64
	succeeded      atomic.Int64
	failed         atomic.Int64
	dropped        atomic.Int64
	dispatchErrors atomic.Int64
}

// New creates a Trigger that builds through op and records in-flight
// builds in locks.
func New(cfg Config, op build.Operation, locks *locktable.Table, log logger.Logger) *Trigger {
	return &Trigger{
		op:     op,
		locks:  locks,
		logger: log.With("component", "rebuild"),
		color:  cfg.Color,
	}
}

// Handle reacts to a change of path. It returns once the build is
// dispatched; the build completes in the background.
func (t *Trigger) Handle(ctx context.Context, kind, path string) {
	if !t.locks.TryLock(path) {
		t.drop(path, "path locked")
		return
	}

	t.logger.Info("file changed, "+display.Colorize("rebuilding project", t.color, display.Info),
		"path", path,
		"kind", kind)

	opts, err := t.op.Parse([]string{"build", "--cwd", path})
	if err != nil {
		t.locks.Unlock(path)
		t.dispatchFailed(&BuildDispatchError{Path: path, Err: err})
		return
	}

	if locktable.ID(opts.Root) != locktable.ID(path) && !t.locks.TryLock(opts.Root) {
		t.locks.Unlock(path)
		t.drop(path, "root building")
		return
	}

	t.dispatched.Add(1)
	metricRebuildsTotal.WithLabelValues(resultDispatched).Inc()

	start := time.Now()

	var once sync.Once
	done := func(err error) {
		once.Do(func() {
			t.complete(path, opts.Root, err, time.Since(start))
		})
	}

	if err := t.op.Run(ctx, opts, done); err != nil {
		once.Do(func() {
			t.locks.Unlock(path, opts.Root)
			t.dispatchFailed(&BuildDispatchError{Path: path, Err: err})
		})
	}
}

// complete releases both keys and logs the build result.
func (t *Trigger) complete(path, root string, err error, elapsed time.Duration) {
	t.locks.Unlock(path, root)

	if err != nil {
		t.failed.Add(1)
		metricRebuildsTotal.WithLabelValues(resultFailed).Inc()
		t.logger.Error(display.ERR(t.color)+" build failed",
			"root", root,
			"duration", elapsed,
			"error", &BuildExecutionError{Root: root, Err: err})
		return
	}

	t.succeeded.Add(1)
	metricRebuildsTotal.WithLabelValues(resultSucceeded).Inc()
	t.logger.Info(display.OK(t.color)+" "+display.Colorize("success.", t.color, display.Success),
		"root", root,
		"duration", elapsed)
}

func (t *Trigger) drop(path, reason string) {
	t.dropped.Add(1)
	metricRebuildsTotal.WithLabelValues(resultDropped).Inc()
	t.logger.Debug("rebuild in progress, change dropped", "path", path, "reason", reason)
}

func (t *Trigger) dispatchFailed(err *BuildDispatchError) {
	t.dispatchErrors.Add(1)
	metricRebuildsTotal.WithLabelValues(resultDispatchError).Inc()
	t.logger.Error(display.ERR(t.color)+" cannot rebuild", "path", err.Path, "error", err)
}

// Stats returns the counters since the trigger was created.
func (t *Trigger) Stats() Stats {
	return Stats{
		Dispatched:     t.dispatched.Load(),
		Succeeded:      t.succeeded.Load(),
		Failed:         t.failed.Load(),
		Dropped:        t.dropped.Load(),
		DispatchErrors: t.dispatchErrors.Load(),
	}
}

// Locks returns the lock table the trigger records builds in.
func (t *Trigger) Locks() *locktable.Table {
	return t.locks
}
