// Package cliconfig loads driftline's operator-facing configuration:
// node id, store path, and peer list. The core crdt package has no
// notion of any of this (spec.md §1 scopes transport, storage, and
// identifier generation out of the core); this package exists purely
// to hand cmd/driftline a concrete node id and peer set to drive it
// with.
//
// Config is layered flags > env (DRIFTLINE_*) > TOML file, the same
// precedence the teacher's own config loading uses viper for.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is driftline's resolved operator configuration.
type Config struct {
	// NodeID is the site id this process's Replica will author
	// column versions under. Zero means "not yet assigned"; the CLI's
	// init subcommand assigns one via internal/siteid and persists it.
	NodeID uint64 `mapstructure:"node_id" toml:"node_id"`

	// StorePath is where the SQLite snapshot adapter persists records
	// between runs (internal/store/sqlite).
	StorePath string `mapstructure:"store_path" toml:"store_path"`

	// Peers are root directories of other driftline nodes, reachable
	// over a shared filesystem, that the sync command fans out to via
	// internal/meshsync.
	Peers []string `mapstructure:"peers" toml:"peers"`

	// WatchDir is the directory internal/syncfeed watches for peer
	// change-file drops.
	WatchDir string `mapstructure:"watch_dir" toml:"watch_dir"`
}

// Defaults returns a Config with driftline's zero-config defaults.
func Defaults() Config {
	return Config{
		StorePath: "driftline.db",
		WatchDir:  ".driftline/incoming",
	}
}

// Load reads configPath (a TOML file; empty path skips the file layer)
// layered under environment variables prefixed DRIFTLINE_ and any
// flags already bound into v, and returns the merged result.
func Load(configPath string, v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	cfg := Defaults()
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("peers", cfg.Peers)
	v.SetDefault("watch_dir", cfg.WatchDir)

	v.SetEnvPrefix("driftline")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("cliconfig: read %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("cliconfig: unmarshal: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to configPath as TOML, creating parent directories
// as needed.
func Save(configPath string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("cliconfig: create directory for %s: %w", configPath, err)
	}
	f, err := os.Create(configPath) // #nosec G304 -- configPath is operator-supplied CLI input
	if err != nil {
		return fmt.Errorf("cliconfig: create %s: %w", configPath, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("cliconfig: encode %s: %w", configPath, err)
	}
	return nil
}
