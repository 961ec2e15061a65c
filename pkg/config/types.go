// Package config provides configuration management for cortex-watch.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// The watcher RPC port stored in the profile database takes precedence over
// Watcher.RPCPort; see the profile package.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("manager port: %d\n", cfg.Watcher.RPCPort)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Watcher.RPCPort must be within 1..65535
// - Watcher.Backend must be fsnotify or notify
// - Watcher.DialTimeout must be > 0
// - Build.Command must not be empty
// - Coordinator.Concurrency must be > 0.
type Config struct {
	// Watcher manager connection and filesystem backend settings
	Watcher WatcherConfig `yaml:"watcher"`

	// Build command settings
	Build BuildConfig `yaml:"build"`

	// Coordinator settings
	Coordinator CoordinatorConfig `yaml:"coordinator"`

	// Profile storage settings
	Profile ProfileConfig `yaml:"profile"`

	// Metrics and status endpoint settings
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatcherConfig contains settings for the watcher manager and its
// control channel.
type WatcherConfig struct {
	// Control port of the manager process
	RPCPort int `yaml:"rpc_port"`

	// Interface the manager binds to and clients dial
	Host string `yaml:"host"`

	// Filesystem event backend (fsnotify, notify)
	Backend string `yaml:"backend"`

	// Per-path event debounce in the manager
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Start an in-process manager when none is reachable
	Spawn bool `yaml:"spawn"`

	// Timeout for connecting to the manager
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// BuildConfig contains settings for the external build operation.
type BuildConfig struct {
	// Shell-quoted command line. %ROOT% and %CWD% are substituted.
	Command string `yaml:"command"`

	// Maximum duration of one build (0 means no limit)
	Timeout time.Duration `yaml:"timeout"`
}

// CoordinatorConfig contains watch coordinator settings.
type CoordinatorConfig struct {
	// Number of roots resolved and registered concurrently
	Concurrency int `yaml:"concurrency"`
}

// ProfileConfig contains profile storage settings.
type ProfileConfig struct {
	// Path to BoltDB profile database
	DBPath string `yaml:"db_path"`
}

// MetricsConfig contains settings for the manager's status listener.
type MetricsConfig struct {
	// Listen address for /status and /metrics (empty disables it)
	Listen string `yaml:"listen"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json, auto)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.Watcher.RPCPort <= 0 || c.Watcher.RPCPort > 65535 {
		return ErrInvalidPort
	}
	if c.Watcher.Host == "" {
		return ErrEmptyHost
	}

	validBackends := map[string]bool{
		"fsnotify": true,
		"notify":   true,
	}
	if !validBackends[c.Watcher.Backend] {
		return ErrInvalidBackend
	}

	if c.Watcher.DebounceInterval < 0 {
		return ErrInvalidDebounceInterval
	}
	if c.Watcher.DialTimeout <= 0 {
		return ErrInvalidDialTimeout
	}

	if c.Build.Command == "" {
		return ErrEmptyBuildCommand
	}
	if c.Build.Timeout < 0 {
		return ErrInvalidBuildTimeout
	}

	if c.Coordinator.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"auto": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Address returns the host:port the manager listens on.
func (c *Config) Address() string {
	return joinHostPort(c.Watcher.Host, c.Watcher.RPCPort)
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			RPCPort:          DefaultRPCPort,
			Host:             "127.0.0.1",
			Backend:          "fsnotify",
			DebounceInterval: 100 * time.Millisecond,
			Spawn:            true,
			DialTimeout:      2 * time.Second,
		},
		Build: BuildConfig{
			Command: DefaultBuildCommand,
		},
		Coordinator: CoordinatorConfig{
			Concurrency: 4,
		},
		Profile: ProfileConfig{
			DBPath: defaultProfilePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "auto",
		},
	}
}
