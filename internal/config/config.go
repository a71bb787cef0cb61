// Package config loads the lifecycle engine's bootstrap configuration:
// the store dialect/DSN, the worktree root, the HTTP server address, and
// the default executor type, layered flags > env > config file >
// defaults (matching the teacher's own .orc/config.yaml + ORC_* env
// convention).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// OrcDir is the project-local configuration directory.
	OrcDir = ".orc"
	// ConfigFileName is the default config file name within OrcDir.
	ConfigFileName = "config.yaml"
)

// Config is the bootstrap configuration loaded by `orc serve`.
type Config struct {
	Server struct {
		Addr            string `mapstructure:"addr"`
		MaxPortAttempts int    `mapstructure:"max_port_attempts"`
	} `mapstructure:"server"`

	Store struct {
		Dialect string `mapstructure:"dialect"` // "sqlite" or "postgres"
		DSN     string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	RepoPath        string `mapstructure:"repo_path"`
	WorktreeDir     string `mapstructure:"worktree_dir"`
	DefaultExecutor string `mapstructure:"default_executor"`
}

// Default returns the built-in configuration used when no config file
// is present and no environment overrides are set.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.MaxPortAttempts = 10
	cfg.Store.Dialect = "sqlite"
	cfg.Store.DSN = filepath.Join(OrcDir, "orc.db")
	cfg.RepoPath = "."
	cfg.WorktreeDir = filepath.Join(OrcDir, "worktrees")
	cfg.DefaultExecutor = "coding-agent"
	return cfg
}

// Load reads .orc/config.yaml (falling back to $HOME/.orc/config.yaml),
// applies ORC_*-prefixed environment overrides, and returns the merged
// Config. A missing config file is not an error; a malformed one is.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(OrcDir)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, OrcDir))
	}

	v.SetEnvPrefix("ORC")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.max_port_attempts", def.Server.MaxPortAttempts)
	v.SetDefault("store.dialect", def.Store.Dialect)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("repo_path", def.RepoPath)
	v.SetDefault("worktree_dir", def.WorktreeDir)
	v.SetDefault("default_executor", def.DefaultExecutor)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Init writes a default .orc/config.yaml in the current directory,
// refusing to overwrite an existing one unless force is set.
func Init(force bool) error {
	path := filepath.Join(OrcDir, ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(OrcDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", OrcDir, err)
	}

	const template = `server:
  addr: ":8080"
  max_port_attempts: 10
store:
  dialect: sqlite
  dsn: .orc/orc.db
repo_path: .
worktree_dir: .orc/worktrees
default_executor: coding-agent
`
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
