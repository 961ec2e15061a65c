package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/cortex-watch/pkg/config"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/profile"
)

// configCmd handles configuration management subcommands.
type configCmd struct {
	Show configShowCmd `cmd:"" help:"Display current configuration."`
	Path configPathCmd `cmd:"" help:"Show configuration file paths."`
	Init configInitCmd `cmd:"" help:"Write a default configuration file and seed the profile port."`
}

type configShowCmd struct {
	Format string `name:"format" default:"yaml" enum:"yaml,json" help:"Output format (yaml, json)."`
}

// Run displays the current configuration.
func (c *configShowCmd) Run(g *globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	switch c.Format {
	case "json":
		return showJSON(os.Stdout, cfg)
	default:
		return showYAML(os.Stdout, cfg, configSource(g.Config))
	}
}

// showYAML displays configuration in YAML format.
func showYAML(w io.Writer, cfg *config.Config, source string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(w, "# Current Configuration")
	fmt.Fprintln(w, "# Source:", source)
	fmt.Fprintln(w)
	_, err = w.Write(data)
	return err
}

// showJSON displays configuration in JSON format.
func showJSON(w io.Writer, cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

type configPathCmd struct{}

// Run shows the configuration file search paths.
func (c *configPathCmd) Run(g *globals) error {
	fmt.Println("Configuration file search paths (in order of precedence):")
	fmt.Println()

	for i, p := range configPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Printf("  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Println()
	fmt.Println("Active configuration:", configSource(g.Config))
	return nil
}

type configInitCmd struct {
	Force  bool   `name:"force" help:"Overwrite an existing file without asking."`
	Output string `name:"output" type:"path" placeholder:"PATH" help:"Output path for the config file. Default: ~/.config/cortex-watch/config.yaml."`
	Port   int    `name:"port" help:"Manager port to write and store in the profile. Default: the configured port."`
}

// Run writes a default configuration and stores its port in the profile.
func (c *configInitCmd) Run(g *globals) error {
	outputPath := c.Output
	if outputPath == "" {
		outputPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !c.Force {
		if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Configuration file already exists at: %s\nOverwrite? [y/N]: ", outputPath)) {
			fmt.Println("Init cancelled.")
			return nil
		}
	}

	cfg := config.Default()
	if c.Port != 0 {
		cfg.Watcher.RPCPort = c.Port
	}

	if err := config.Save(cfg, outputPath); err != nil {
		return err
	}

	store, err := profile.New(profile.Config{DBPath: cfg.Profile.DBPath, Transient: true}, logger.Noop())
	if err != nil {
		return fmt.Errorf("failed to open profile: %w", err)
	}
	defer store.Close()

	if err := store.SetPort(cfg.Watcher.RPCPort); err != nil {
		return fmt.Errorf("failed to store manager port: %w", err)
	}

	fmt.Printf("Configuration written to: %s\n", outputPath)
	fmt.Printf("Manager port %d stored in profile: %s\n", cfg.Watcher.RPCPort, cfg.Profile.DBPath)
	return nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)

	var response string
	if _, err := fmt.Fscanln(in, &response); err != nil {
		fmt.Fprintln(out)
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// configPaths returns the config file candidates in search order.
func configPaths() []string {
	return []string{
		"./cortex-watch.yaml",
		config.DefaultConfigPath(),
	}
}

// configSource returns the path of the active configuration file.
func configSource(explicit string) string {
	if explicit != "" {
		return explicit
	}

	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "defaults (no config file found)"
}
