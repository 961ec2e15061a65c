package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidPort is returned when the watcher RPC port is out of range.
	ErrInvalidPort = errors.New("invalid watcher rpc port: must be 1-65535")

	// ErrEmptyHost is returned when no watcher host is configured.
	ErrEmptyHost = errors.New("watcher host cannot be empty")

	// ErrInvalidBackend is returned when the watcher backend is not recognized.
	ErrInvalidBackend = errors.New("invalid watcher backend: must be fsnotify or notify")

	// ErrInvalidDebounceInterval is returned when debounce interval is < 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be >= 0")

	// ErrInvalidDialTimeout is returned when dial timeout is <= 0.
	ErrInvalidDialTimeout = errors.New("invalid dial timeout: must be > 0")

	// ErrEmptyBuildCommand is returned when no build command is configured.
	ErrEmptyBuildCommand = errors.New("build command cannot be empty")

	// ErrInvalidBuildTimeout is returned when build timeout is < 0.
	ErrInvalidBuildTimeout = errors.New("invalid build timeout: must be >= 0")

	// ErrInvalidConcurrency is returned when coordinator concurrency is <= 0.
	ErrInvalidConcurrency = errors.New("invalid coordinator concurrency: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text, json, or auto")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
