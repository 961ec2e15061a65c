package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/0xmhha/cortex-watch/pkg/channel"
	"github.com/0xmhha/cortex-watch/pkg/config"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/profile"
	"github.com/0xmhha/cortex-watch/pkg/watcher"
)

// serviceTimeout bounds how long a supervised service may take to stop.
const serviceTimeout = 10 * time.Second

// env holds what every command needs once flags are parsed.
type env struct {
	cfg   *config.Config
	log   logger.Logger
	store profile.Store
}

// setup loads configuration, creates the logger and opens the profile.
func setup(g *globals) (*env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Transient: a long-running watch must not lock other invocations out.
	store, err := profile.New(profile.Config{
		DBPath:    cfg.Profile.DBPath,
		Transient: true,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}

	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("failed to close profile", "error", err)
	}
}

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig(g *globals) (*config.Config, error) {
	cfg, err := config.NewLoader(g.Config).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	return cfg, nil
}

// managerAddr returns the manager address. The port stored in the profile
// wins over the configured one.
func managerAddr(cfg *config.Config, store profile.Store) (string, error) {
	port, err := store.Port()
	if err != nil {
		return "", fmt.Errorf("failed to read manager port from profile: %w", err)
	}
	if port == 0 {
		port = cfg.Watcher.RPCPort
	}

	return net.JoinHostPort(cfg.Watcher.Host, strconv.Itoa(port)), nil
}

// channelOptions builds the manager connection options.
func channelOptions(cfg *config.Config, addr string) channel.Options {
	return channel.Options{
		Addr:        addr,
		DialTimeout: cfg.Watcher.DialTimeout,
		Spawn:       cfg.Watcher.Spawn,
		Watcher:     watcherConfig(cfg),
	}
}

func watcherConfig(cfg *config.Config) watcher.Config {
	return watcher.Config{
		Backend:          cfg.Watcher.Backend,
		DebounceInterval: cfg.Watcher.DebounceInterval,
	}
}

// supervisorSpec logs supervisor events at debug level.
func supervisorSpec(log logger.Logger) suture.Spec {
	return suture.Spec{
		EventHook: func(e suture.Event) {
			log.Debug("supervisor event", "event", e.String())
		},
		Timeout:           serviceTimeout,
		PassThroughPanics: true,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// colorEnabled reports whether status words written to w may be coloured.
func colorEnabled(w io.Writer) bool {
	return os.Getenv("NO_COLOR") == "" && logger.IsTerminal(w)
}
