package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/cortex-watch/pkg/display"
	"github.com/0xmhha/cortex-watch/pkg/locktable"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/profile"
	"github.com/0xmhha/cortex-watch/pkg/rebuild"
	"github.com/0xmhha/cortex-watch/pkg/watchset"
)

// Coordinator registers roots with the watch manager and rebuilds them on
// change.
type Coordinator struct {
	cfg      Config
	resolver watchset.Resolver
	trigger  *rebuild.Trigger
	store    profile.Store
	logger   logger.Logger

	mu      sync.Mutex
	ch      Channel
	watched map[string][]string // root -> last resolved file set
	pending map[string]bool     // roots being watched right now
	closed  bool
}

// New creates a coordinator talking to the manager through ch.
func New(cfg Config, ch Channel, resolver watchset.Resolver, trigger *rebuild.Trigger, store profile.Store, log logger.Logger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PID == 0 {
		cfg.PID = os.Getpid()
	}

	return &Coordinator{
		cfg:      cfg,
		resolver: resolver,
		trigger:  trigger,
		store:    store,
		logger:   log.With("component", "coordinator"),
		ch:       ch,
		watched:  make(map[string][]string),
		pending:  make(map[string]bool),
	}
}

// Watch resolves and registers roots. Roots already watched by this
// process, or listed in the profile unless Force is set, are skipped.
// A failing root does not affect the others.
//
// Outcomes are returned in the order of the normalized, deduplicated roots.
func (c *Coordinator) Watch(ctx context.Context, roots []string) []Outcome {
	return c.watch(ctx, roots, c.cfg.Force)
}

func (c *Coordinator) watch(ctx context.Context, roots []string, force bool) []Outcome {
	roots = normalize(roots)
	outcomes := make([]Outcome, len(roots))

	persisted, err := c.store.Watched()
	if err != nil {
		c.logger.Warn("failed to read watched roots from profile", "error", err)
	}
	inProfile := make(map[string]bool, len(persisted))
	for _, root := range persisted {
		inProfile[locktable.ID(root)] = true
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)

	for i, root := range roots {
		if (inProfile[root] && !force) || !c.reserve(root) {
			c.logger.Warn("root has already been watched", "root", root)
			outcomes[i] = Outcome{Root: root, Status: StatusSkipped}
			continue
		}

		g.Go(func() error {
			outcomes[i] = c.watchRoot(ctx, root)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// watchRoot registers a root reserved by reserve.
func (c *Coordinator) watchRoot(ctx context.Context, root string) Outcome {
	files, err := c.register(ctx, root)

	c.mu.Lock()
	delete(c.pending, root)
	if err == nil {
		c.watched[root] = files
	}
	c.mu.Unlock()

	if err != nil {
		return c.failed(root, "watch", err)
	}

	if err := c.store.AddWatched(root); err != nil {
		c.logger.Warn("failed to record watched root", "root", root, "error", err)
	}

	c.logger.Info(display.Colorize("watching", c.cfg.Color, display.Info)+" "+root+" ...", "files", len(files))
	return Outcome{Root: root, Status: StatusOK, Files: len(files)}
}

// register resolves root and hands its files to the manager.
func (c *Coordinator) register(ctx context.Context, root string) ([]string, error) {
	files, err := c.resolver.Resolve(ctx, root)
	if err != nil {
		return nil, err
	}

	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Watch(ctx, files); err != nil {
		return nil, err
	}
	return files, nil
}

// Unwatch resolves roots again and unregisters their files. There is no
// precondition; unwatching a root that was never watched succeeds.
func (c *Coordinator) Unwatch(ctx context.Context, roots []string) []Outcome {
	roots = normalize(roots)
	outcomes := make([]Outcome, len(roots))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)

	for i, root := range roots {
		g.Go(func() error {
			outcomes[i] = c.unwatchRoot(ctx, root)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) unwatchRoot(ctx context.Context, root string) Outcome {
	files, err := c.resolver.Resolve(ctx, root)
	if err != nil {
		return c.failed(root, "unwatch", err)
	}

	// Files deleted since the watch are still registered.
	c.mu.Lock()
	files = union(files, c.watched[root])
	c.mu.Unlock()

	ch, err := c.channel()
	if err != nil {
		return c.failed(root, "unwatch", err)
	}
	if err := ch.Unwatch(ctx, files); err != nil {
		return c.failed(root, "unwatch", err)
	}

	c.mu.Lock()
	delete(c.watched, root)
	c.mu.Unlock()

	if err := c.store.RemoveWatched(root); err != nil {
		c.logger.Warn("failed to remove watched root", "root", root, "error", err)
	}

	c.logger.Info(root+" "+display.Colorize("unwatched", c.cfg.Color, display.Info), "files", len(files))
	return Outcome{Root: root, Status: StatusOK, Files: len(files)}
}

func (c *Coordinator) failed(root, op string, err error) Outcome {
	c.logger.Error(display.ERR(c.cfg.Color)+" "+op+" failed", "root", root, "error", err)
	return Outcome{Root: root, Status: StatusError, Err: err}
}

// Run dispatches change events to the rebuild trigger until ctx is
// cancelled or the manager connection ends.
//
// Returns ctx.Err() or ErrChannelClosed.
func (c *Coordinator) Run(ctx context.Context) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	changes := ch.Changes()
	advisories := ch.Advisories()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-changes:
			if !ok {
				return ErrChannelClosed
			}
			c.trigger.Handle(ctx, change.Kind, change.Path)

		case adv, ok := <-advisories:
			if !ok {
				advisories = nil
				continue
			}
			if adv.PID != c.cfg.PID {
				c.logger.Info("incoming "+display.Colorize(adv.Task, c.cfg.Color, display.Info)+" request", "pid", adv.PID)
			}
		}
	}
}

// Serve runs the event loop as a supervised service. After the manager
// connection ends it reconnects through Config.Reconnect and registers the
// roots watched so far again before resuming.
func (c *Coordinator) Serve(ctx context.Context) error {
	if err := c.reconnect(ctx); err != nil {
		return err
	}

	err := c.Run(ctx)
	if errors.Is(err, ErrChannelClosed) && c.cfg.Reconnect == nil {
		return &noRestartErr{err}
	}
	return err
}

func (c *Coordinator) reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &noRestartErr{ErrClosed}
	}
	old := c.ch
	c.mu.Unlock()

	select {
	case <-old.Done():
	default:
		return nil
	}

	if c.cfg.Reconnect == nil {
		return &noRestartErr{ErrChannelClosed}
	}

	ch, err := c.cfg.Reconnect(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconnect to watch manager: %w", err)
	}

	c.mu.Lock()
	c.ch = ch
	roots := c.rootsLocked()
	c.watched = make(map[string][]string)
	c.mu.Unlock()
	old.Close()

	c.logger.Info("reconnected to watch manager", "roots", len(roots))

	c.watch(ctx, roots, true)
	return nil
}

// Roots returns the roots watched by this process, sorted.
func (c *Coordinator) Roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rootsLocked()
}

func (c *Coordinator) rootsLocked() []string {
	roots := make([]string, 0, len(c.watched))
	for root := range c.watched {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

// Close removes this process's roots from the profile and closes the
// channel.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ch := c.ch
	roots := c.rootsLocked()
	c.mu.Unlock()

	var errs []error
	if len(roots) > 0 {
		if err := c.store.RemoveWatched(roots...); err != nil {
			errs = append(errs, fmt.Errorf("failed to update profile: %w", err))
		}
	}
	if err := ch.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	return c.ch, nil
}

// reserve claims root for a watch. It fails if root is watched or a watch
// of it is in flight.
func (c *Coordinator) reserve(root string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.watched[root]; ok || c.pending[root] {
		return false
	}
	c.pending[root] = true
	return true
}

// normalize makes roots absolute and drops duplicates, keeping the first
// occurrence.
func normalize(roots []string) []string {
	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		id := locktable.ID(root)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}
