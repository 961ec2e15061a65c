package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// DefaultRPCPort is the manager control port used when neither the
	// profile nor the config file sets one.
	DefaultRPCPort = 9077

	// DefaultBuildCommand rebuilds the project rooted at %ROOT%.
	DefaultBuildCommand = "cortex build --cwd %ROOT%"
)

// defaultProfilePath returns the default profile database path.
//
// Returns: ~/.config/cortex-watch/profile.db.
func defaultProfilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./profile.db"
	}

	return filepath.Join(homeDir, ".config", "cortex-watch", "profile.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/cortex-watch/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "cortex-watch", "config.yaml")
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
