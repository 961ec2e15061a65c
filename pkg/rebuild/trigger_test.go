package rebuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/cortex-watch/pkg/build"
	"github.com/0xmhha/cortex-watch/pkg/locktable"
	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// fakeOp resolves paths under /proj and /other to those roots and holds
// builds until the test completes them.
type fakeOp struct {
	mu      sync.Mutex
	argv    [][]string
	runs    []build.Options
	pending []func(error)
	runErr  error
}

func (f *fakeOp) Parse(argv []string) (build.Options, error) {
	f.mu.Lock()
	f.argv = append(f.argv, argv)
	f.mu.Unlock()

	if len(argv) != 3 || argv[0] != "build" || argv[1] != "--cwd" {
		return build.Options{}, build.ErrInvalidArgs
	}

	cwd := argv[2]
	for _, root := range []string{"/proj", "/other"} {
		if cwd == root || strings.HasPrefix(cwd, root+"/") {
			return build.Options{Cwd: cwd, Root: root}, nil
		}
	}
	return build.Options{}, fmt.Errorf("%w: %s", build.ErrNoRoot, cwd)
}

func (f *fakeOp) Run(_ context.Context, opts build.Options, done func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.runErr != nil {
		return f.runErr
	}
	f.runs = append(f.runs, opts)
	f.pending = append(f.pending, done)
	return nil
}

func (f *fakeOp) complete(i int, err error) {
	f.mu.Lock()
	done := f.pending[i]
	f.mu.Unlock()
	done(err)
}

func (f *fakeOp) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTrigger(t *testing.T) (*Trigger, *fakeOp, *syncBuffer) {
	t.Helper()
	op := &fakeOp{}
	out := &syncBuffer{}
	log := logger.NewWithWriter(logger.Config{Level: "debug", Format: "text"}, out)
	return New(Config{}, op, locktable.New(), log), op, out
}

func TestHandleSuccess(t *testing.T) {
	trg, op, out := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/src/a.js")

	assert.Equal(t, [][]string{{"build", "--cwd", "/proj/src/a.js"}}, op.argv)
	assert.Equal(t, []string{"/proj", "/proj/src/a.js"}, trg.Locks().Snapshot())
	require.Equal(t, 1, op.runCount())
	assert.Equal(t, "/proj", op.runs[0].Root)

	op.complete(0, nil)

	assert.False(t, trg.Locks().IsLocked("/proj"))
	assert.False(t, trg.Locks().IsLocked("/proj/src/a.js"))
	assert.Contains(t, out.String(), "OK!")
	assert.Equal(t, Stats{Dispatched: 1, Succeeded: 1}, trg.Stats())
}

func TestHandleBackToBack(t *testing.T) {
	trg, op, _ := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	trg.Handle(context.Background(), "change", "/proj/src/a.js")

	assert.Equal(t, 1, op.runCount())
	assert.Len(t, op.argv, 1, "second event must not reach argument parsing")
	assert.Equal(t, int64(1), trg.Stats().Dropped)

	op.complete(0, nil)

	// Idle again: the next change dispatches.
	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	assert.Equal(t, 2, op.runCount())
}

func TestHandleOtherFileSameRoot(t *testing.T) {
	trg, op, _ := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	trg.Handle(context.Background(), "add", "/proj/src/b.js")

	assert.Equal(t, 1, op.runCount())
	assert.Equal(t, []string{"/proj", "/proj/src/a.js"}, trg.Locks().Snapshot(),
		"the dropped change releases its raw path lock")
	assert.Equal(t, int64(1), trg.Stats().Dropped)
}

func TestHandleDifferentRoots(t *testing.T) {
	trg, op, _ := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/a.js")
	trg.Handle(context.Background(), "change", "/other/b.js")

	assert.Equal(t, 2, op.runCount())
	assert.Equal(t, []string{"/other", "/other/b.js", "/proj", "/proj/a.js"}, trg.Locks().Snapshot())
}

func TestHandleRootPath(t *testing.T) {
	trg, op, _ := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj")

	require.Equal(t, 1, op.runCount())
	assert.Equal(t, []string{"/proj"}, trg.Locks().Snapshot())

	op.complete(0, nil)
	assert.Empty(t, trg.Locks().Snapshot())
}

func TestHandleBuildFailure(t *testing.T) {
	trg, op, out := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	op.complete(0, errors.New("compile error"))

	assert.Empty(t, trg.Locks().Snapshot())
	assert.Contains(t, out.String(), "ERR!")
	assert.Contains(t, out.String(), "compile error")
	assert.Equal(t, Stats{Dispatched: 1, Failed: 1}, trg.Stats())

	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	assert.Equal(t, 2, op.runCount(), "a failed build returns the root to idle")
}

func TestHandleDispatchError(t *testing.T) {
	trg, op, out := newTrigger(t)

	trg.Handle(context.Background(), "change", "/elsewhere/a.js")

	assert.Equal(t, 0, op.runCount())
	assert.False(t, trg.Locks().IsLocked("/elsewhere/a.js"))
	assert.Contains(t, out.String(), "cannot dispatch build")
	assert.Equal(t, Stats{DispatchErrors: 1}, trg.Stats())
}

func TestHandleRunError(t *testing.T) {
	trg, op, _ := newTrigger(t)
	op.runErr = errors.New("spawn failed")

	trg.Handle(context.Background(), "change", "/proj/src/a.js")

	assert.Empty(t, trg.Locks().Snapshot())
	assert.Equal(t, Stats{DispatchErrors: 1}, trg.Stats())
}

func TestCompleteOnce(t *testing.T) {
	trg, op, _ := newTrigger(t)

	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	op.complete(0, nil)

	// A second start for the same root must not be released by a stray
	// callback from the first build.
	trg.Handle(context.Background(), "change", "/proj/src/a.js")
	op.complete(0, nil)

	assert.True(t, trg.Locks().IsLocked("/proj"))
	assert.Equal(t, int64(1), trg.Stats().Succeeded)
}

func TestErrorTypes(t *testing.T) {
	dErr := &BuildDispatchError{Path: "/x", Err: build.ErrNoRoot}
	assert.ErrorIs(t, dErr, build.ErrNoRoot)
	assert.Contains(t, dErr.Error(), "/x")

	cause := errors.New("exit status 1")
	eErr := &BuildExecutionError{Root: "/proj", Err: cause}
	assert.ErrorIs(t, eErr, cause)
	assert.Contains(t, eErr.Error(), "/proj")
}

func TestHandleConcurrent(t *testing.T) {
	trg, op, _ := newTrigger(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trg.Handle(context.Background(), "change", fmt.Sprintf("/proj/src/%d.js", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, op.runCount())
	assert.Equal(t, int64(31), trg.Stats().Dropped)
}
