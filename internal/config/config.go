// Package config loads application configuration by layering
// defaults, the config.json file in the data directory, environment
// variables, and explicitly-set CLI flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentlens/agentlens/internal/parser"
	"github.com/agentlens/agentlens/internal/session"
)

// Config holds all application configuration. Per-agent session
// directories are resolved through the parser registry so that
// adding an agent does not touch this package.
type Config struct {
	Addr    string `json:"addr"`
	DataDir string `json:"data_dir"`
	DBPath  string `json:"-"`

	// Effective session directories per agent. Precedence:
	// env var (single) > config file array > defaults.
	AgentDirs map[session.Source][]string `json:"-"`

	// Counting toggles for analytics. Both default to true.
	HideZeroMessage bool `json:"hide_zero_message_sessions"`
	HideLowMessage  bool `json:"hide_low_message_sessions"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".agentlens")

	dirs := make(map[session.Source][]string, len(parser.Registry))
	for _, def := range parser.Registry {
		var roots []string
		for _, rel := range def.DefaultDirs {
			roots = append(roots,
				filepath.Join(home, filepath.FromSlash(rel)))
		}
		dirs[def.Source] = roots
	}

	return Config{
		Addr:            "127.0.0.1:8080",
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "rollups.db"),
		AgentDirs:       dirs,
		HideZeroMessage: true,
		HideLowMessage:  true,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env <
// flags. The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("AGENTLENS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	cfg.DBPath = filepath.Join(cfg.DataDir, "rollups.db")

	applyFlags(&cfg, fs)
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// loadFile applies config.json. Directory arrays and counting
// toggles are the only file-settable keys; a missing file is fine.
func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Addr            string                     `json:"addr"`
		Dirs            map[string]json.RawMessage `json:"-"`
		HideZeroMessage *bool                      `json:"hide_zero_message_sessions"`
		HideLowMessage  *bool                      `json:"hide_low_message_sessions"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Addr != "" {
		c.Addr = file.Addr
	}
	// Pointer fields distinguish "absent" from an explicit false.
	if file.HideZeroMessage != nil {
		c.HideZeroMessage = *file.HideZeroMessage
	}
	if file.HideLowMessage != nil {
		c.HideLowMessage = *file.HideLowMessage
	}

	// Per-agent directory arrays live under registry-defined keys.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	for _, def := range parser.Registry {
		msg, ok := raw[def.ConfigKey]
		if !ok {
			continue
		}
		var dirs []string
		if err := json.Unmarshal(msg, &dirs); err != nil {
			return fmt.Errorf(
				"parsing config key %q: %w", def.ConfigKey, err)
		}
		if len(dirs) > 0 {
			c.AgentDirs[def.Source] = dirs
		}
	}
	return nil
}

// loadEnv applies per-agent env overrides. An env var always wins
// over the config file and collapses the agent to a single directory.
func (c *Config) loadEnv() {
	for _, def := range parser.Registry {
		if v := os.Getenv(def.EnvVar); v != "" {
			c.AgentDirs[def.Source] = []string{v}
		}
	}
}

// RegisterFlags registers serve flags on fs. The caller must call
// fs.Parse before passing fs to Load.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("addr", "127.0.0.1:8080", "Address to listen on")
	fs.String("data-dir", "", "Data directory override")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = f.Value.String()
		case "data-dir":
			cfg.DataDir = f.Value.String()
			cfg.DBPath = filepath.Join(cfg.DataDir, "rollups.db")
		}
	})
}
