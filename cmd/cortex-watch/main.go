// Package main provides the cortex-watch CLI application.
//
// cortex-watch watches project roots and rebuilds a project whenever one of
// its files changes. Every invocation on a machine shares one watch manager
// process, reached over a loopback port; the first invocation that finds no
// manager runs one itself.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	_ "go.uber.org/automaxprocs"
)

// version is set during build time.
var version = "dev"

// globals are the flags shared by every command.
type globals struct {
	Config   string `name:"config" type:"path" placeholder:"PATH" help:"Path to configuration file."`
	LogLevel string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)."`
}

type cli struct {
	globals

	Watch   watchCmd   `cmd:"" help:"Watch project roots and rebuild them on change."`
	Manager managerCmd `cmd:"" help:"Run a standalone watch manager."`
	Status  statusCmd  `cmd:"" help:"Show the watch manager and the watched roots."`
	Config  configCmd  `cmd:"" help:"Configuration management."`
	Version versionCmd `cmd:"" help:"Show version information."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("cortex-watch"),
		kong.Description("Rebuild cortex projects when their files change."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&c.globals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Printf("cortex-watch %s\n", version)
	return nil
}
