package channel

import (
	"context"
	"errors"

	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/watcher"
)

// Connect dials the manager at opts.Addr. If no manager answers and
// opts.Spawn is set, it binds the address itself, runs a manager in this
// process and dials it. When another process wins the bind, Connect dials
// that one instead.
//
// A manager started here stops when the returned client is closed.
func Connect(ctx context.Context, opts Options, log logger.Logger) (*Client, error) {
	c, err := Dial(ctx, opts, log)
	if err == nil || !opts.Spawn {
		return c, err
	}

	w, werr := watcher.New(opts.Watcher, log)
	if werr != nil {
		return nil, errors.Join(err, werr)
	}

	srv := NewServer(ServerConfig{Addr: opts.Addr}, w, log)
	if lerr := srv.Listen(); lerr != nil {
		// Another process won the port.
		w.Close()
		log.Debug("watch manager election lost, dialing winner", "addr", opts.Addr, "error", lerr)
		return Dial(ctx, opts, log)
	}

	log.Info("no watch manager running, starting one in this process", "addr", opts.Addr)

	serveCtx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		if serr := srv.Serve(serveCtx); serr != nil && !errors.Is(serr, context.Canceled) {
			log.Error("watch manager stopped", "error", serr)
		}
	}()

	stop := func() {
		cancel()
		<-served
		w.Close()
	}

	c, err = Dial(ctx, opts, log)
	if err != nil {
		stop()
		return nil, err
	}

	c.stopManager = stop
	return c, nil
}
