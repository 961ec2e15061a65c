package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/0xmhha/cortex-watch/pkg/channel"
	"github.com/0xmhha/cortex-watch/pkg/watcher"
)

// managerCmd runs the watch manager in the foreground.
type managerCmd struct {
	Listen string `name:"listen" placeholder:"ADDR" help:"Serve /status and /metrics on ADDR. Default: metrics.listen from the config."`
}

// Run executes the manager command.
func (c *managerCmd) Run(g *globals) error {
	e, err := setup(g)
	if err != nil {
		return err
	}
	defer e.close()

	addr, err := managerAddr(e.cfg, e.store)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcherConfig(e.cfg), e.log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	srv := channel.NewServer(channel.ServerConfig{Addr: addr}, w, e.log)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("failed to start watch manager (already running?): %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	sup := suture.New("manager", supervisorSpec(e.log))
	sup.Add(srv)

	listen := c.Listen
	if listen == "" {
		listen = e.cfg.Metrics.Listen
	}
	if listen != "" {
		sup.Add(channel.NewHTTPService(listen, srv.Handler(), e.log))
	}

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch manager stopped: %w", err)
	}
	return nil
}
