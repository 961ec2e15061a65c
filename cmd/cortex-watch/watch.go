package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/thejerf/suture/v4"

	"github.com/0xmhha/cortex-watch/pkg/build"
	"github.com/0xmhha/cortex-watch/pkg/channel"
	"github.com/0xmhha/cortex-watch/pkg/coordinator"
	"github.com/0xmhha/cortex-watch/pkg/discovery"
	"github.com/0xmhha/cortex-watch/pkg/display"
	"github.com/0xmhha/cortex-watch/pkg/locktable"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/rebuild"
	"github.com/0xmhha/cortex-watch/pkg/watchset"
)

// watchCmd watches project roots, or unwatches them with --stop.
type watchCmd struct {
	Cwd       []string `name:"cwd" type:"path" placeholder:"PATH" help:"Project root to watch; repeatable. Default: current directory."`
	Workspace []string `name:"workspace" type:"path" placeholder:"DIR" help:"Also watch every project directly beneath DIR; repeatable."`
	Stop      bool     `name:"stop" help:"Unwatch the roots instead of watching them."`
	Force     bool     `name:"force" help:"Watch roots even if the profile lists them as watched."`
	Format    string   `name:"format" default:"table" enum:"table,json,simple" help:"Result output format (table, json, simple)."`
}

// Run executes the watch command.
func (c *watchCmd) Run(g *globals) error {
	e, err := setup(g)
	if err != nil {
		return err
	}
	defer e.close()

	roots, err := c.roots(e.log)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Println("No project roots found")
		return nil
	}

	addr, err := managerAddr(e.cfg, e.store)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := channelOptions(e.cfg, addr)
	client, err := channel.Connect(ctx, opts, e.log)
	if err != nil {
		return fmt.Errorf("failed to reach watch manager: %w", err)
	}

	op, err := build.New(build.Config{
		Command: e.cfg.Build.Command,
		Timeout: e.cfg.Build.Timeout,
	}, e.log)
	if err != nil {
		client.Close()
		return fmt.Errorf("invalid build command: %w", err)
	}

	color := colorEnabled(os.Stderr)
	trigger := rebuild.New(rebuild.Config{Color: color}, op, locktable.New(), e.log)

	coord := coordinator.New(coordinator.Config{
		Force:       c.Force,
		Concurrency: e.cfg.Coordinator.Concurrency,
		Color:       color,
		Reconnect: func(ctx context.Context) (coordinator.Channel, error) {
			return channel.Connect(ctx, opts, e.log)
		},
	}, client, watchset.New(watchset.Config{}, e.log), trigger, e.store, e.log)
	defer func() {
		if err := coord.Close(); err != nil {
			e.log.Warn("failed to close coordinator", "error", err)
		}
	}()

	formatter := display.New(display.Config{
		Format: display.Format(c.Format),
		Color:  colorEnabled(os.Stdout),
	})

	if c.Stop {
		summary, err := report(os.Stdout, formatter, coord.Unwatch(ctx, roots))
		if err != nil {
			return err
		}
		return summary.err()
	}

	summary, err := report(os.Stdout, formatter, coord.Watch(ctx, roots))
	if err != nil {
		return err
	}
	if summary.ok == 0 {
		return summary.err()
	}

	sup := suture.New("watch", supervisorSpec(e.log))
	sup.Add(coord)

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch stopped: %w", err)
	}

	logStopped(e.log, coord.Roots(), trigger.Stats(), trigger.Locks().Snapshot())
	return nil
}

// logStopped records the rebuild counters and any build still running when
// the watch stops.
func logStopped(log logger.Logger, roots []string, st rebuild.Stats, building []string) {
	log.Info("watch stopped",
		"roots", len(roots),
		"dispatched", st.Dispatched,
		"succeeded", st.Succeeded,
		"failed", st.Failed,
		"dropped", st.Dropped,
		"dispatch_errors", st.DispatchErrors)

	if len(building) > 0 {
		log.Warn("builds still running at shutdown", "ids", building)
	}
}

// roots collects the roots named on the command line.
func (c *watchCmd) roots(log logger.Logger) ([]string, error) {
	roots := append([]string(nil), c.Cwd...)

	if len(c.Workspace) > 0 {
		found, err := discovery.New(c.Workspace, log).Discover()
		if err != nil {
			return nil, fmt.Errorf("failed to discover projects: %w", err)
		}
		roots = append(roots, found...)
	} else if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		roots = []string{wd}
	}

	return roots, nil
}

// summary counts outcomes by status.
type summary struct {
	ok, skipped, failed int
}

func (s summary) err() error {
	if s.failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d roots failed", s.failed, s.ok+s.skipped+s.failed)
}

// report prints outcomes and counts them.
func report(w io.Writer, f display.Formatter, outcomes []coordinator.Outcome) (summary, error) {
	var s summary

	results := make([]display.Result, len(outcomes))
	for i, o := range outcomes {
		results[i] = display.Result{
			Root:   o.Root,
			Status: string(o.Status),
			Files:  o.Files,
		}
		switch o.Status {
		case coordinator.StatusOK:
			s.ok++
		case coordinator.StatusSkipped:
			s.skipped++
		default:
			s.failed++
			if o.Err != nil {
				results[i].Error = o.Err.Error()
			}
		}
	}

	if err := f.FormatResults(w, results); err != nil {
		return s, fmt.Errorf("failed to write results: %w", err)
	}
	return s, nil
}
