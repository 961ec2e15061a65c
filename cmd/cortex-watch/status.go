package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/channel"
	"github.com/0xmhha/cortex-watch/pkg/display"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/profile"
)

// statusCmd shows whether a manager answers and which roots are watched.
type statusCmd struct {
	Format  string `name:"format" default:"table" enum:"table,json,simple" help:"Output format (table, json, simple)."`
	Compact bool   `name:"compact" help:"Compact output."`
}

// Run executes the status command.
func (c *statusCmd) Run(g *globals) error {
	e, err := setup(g)
	if err != nil {
		return err
	}
	defer e.close()

	addr, err := managerAddr(e.cfg, e.store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Watcher.DialTimeout+time.Second)
	defer cancel()

	rep, err := buildReport(ctx, addr, e.cfg.Watcher.DialTimeout, e.store, e.log)
	if err != nil {
		return err
	}

	formatter := display.New(display.Config{
		Format:  display.Format(c.Format),
		Color:   colorEnabled(os.Stdout),
		Compact: c.Compact,
	})
	return writeReport(os.Stdout, formatter, rep)
}

// buildReport reads the profile and asks the manager at addr for its
// state. An unreachable manager is reported, not returned as an error.
func buildReport(ctx context.Context, addr string, timeout time.Duration, store profile.Store, log logger.Logger) (display.Report, error) {
	watched, err := store.Watched()
	if err != nil {
		return display.Report{}, fmt.Errorf("failed to read watched roots: %w", err)
	}

	rep := display.Report{Addr: addr, Watched: watched}

	client, err := channel.Dial(ctx, channel.Options{Addr: addr, DialTimeout: timeout}, log)
	if err != nil {
		log.Debug("watch manager not reachable", "addr", addr, "error", err)
		return rep, nil
	}
	defer client.Close()

	st, err := client.Status(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to query watch manager: %w", err)
	}

	rep.Reachable = true
	rep.PID = st.PID
	rep.Registered = len(st.Registered)
	return rep, nil
}

func writeReport(w io.Writer, f display.Formatter, rep display.Report) error {
	if err := f.FormatReport(w, rep); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}
