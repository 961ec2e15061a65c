// Package display provides output formatting for watch results and
// manager status.
//
// It supports multiple output formats (table, JSON, simple text) and the
// coloured status words shared with log messages.
package display

import (
	"io"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays results in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays results as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays results in simple text format.
	FormatSimple Format = "simple"
)

// Result is one root's line in a watch or unwatch report.
type Result struct {
	Root   string `json:"root"`
	Status string `json:"status"`
	Files  int    `json:"files"`
	Error  string `json:"error,omitempty"`
}

// Report describes the watch state of the machine.
type Report struct {
	// Addr is the manager address that was dialed.
	Addr string `json:"addr"`

	// Reachable is true when a manager answered.
	Reachable bool `json:"reachable"`

	// PID of the manager process, if reachable.
	PID int `json:"pid,omitempty"`

	// Registered is the number of paths registered with the manager.
	Registered int `json:"registered"`

	// Watched lists the roots recorded in the profile.
	Watched []string `json:"watched"`
}

// Formatter formats and displays results.
type Formatter interface {
	// FormatResults formats per-root outcomes of a watch or unwatch call.
	//
	// Returns error if writing fails.
	FormatResults(w io.Writer, results []Result) error

	// FormatReport formats the manager and profile state.
	//
	// Returns error if writing fails.
	FormatReport(w io.Writer, report Report) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Color enables ANSI status words in table and simple output.
	// Default: false.
	Color bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
