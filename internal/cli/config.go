// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"os"

	"github.com/jeremyhahn/go-passkeygate/internal/config"
)

// ConfigEnv names the environment variable consulted when --config is unset.
const ConfigEnv = config.EnvPrefix + "CONFIG"

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the server configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a Config with defaults
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// ConfigPath returns the configuration file to load, falling back to the
// environment.
func (c *Config) ConfigPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	return os.Getenv(ConfigEnv)
}

// LoadServerConfig loads the server configuration named by the CLI flags.
func (c *Config) LoadServerConfig() (*config.Config, error) {
	return config.Load(c.ConfigPath())
}
