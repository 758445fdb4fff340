// Package config loads service configuration from the environment, command
// line flags and an optional YAML rules file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
)

// Config holds api command configuration.
type Config struct {
	Port             int           `env:"BATTLES_PORT" envDefault:"8081"`
	Addr             string        `env:"BATTLES_ADDR"`
	DBPath           string        `env:"BATTLES_DB_PATH"`
	RulesPath        string        `env:"BATTLES_RULES_PATH"`
	BaseURI          string        `env:"BATTLES_BASE_URI" envDefault:"https://battles.local/tokens"`
	LogLevel         string        `env:"BATTLES_LOG_LEVEL" envDefault:"info"`
	LogPretty        bool          `env:"BATTLES_LOG_PRETTY"`
	Seed             int64         `env:"BATTLES_SEED"`
	SnapshotInterval time.Duration `env:"BATTLES_SNAPSHOT_INTERVAL" envDefault:"30s"`
}

// ListenAddr returns Addr when set, otherwise ":<Port>".
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return ":" + strconv.Itoa(c.Port)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig parses environment and flags into a Config. Flags win over the
// environment.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The API server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The API server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path; empty keeps state in memory only")
	fs.StringVar(&cfg.RulesPath, "rules", cfg.RulesPath, "Optional YAML file overriding the game rules")
	fs.StringVar(&cfg.BaseURI, "base-uri", cfg.BaseURI, "Base URI of token metadata")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human readable console logs")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed; 0 seeds from crypto/rand")
	fs.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "How often state is saved to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if cfg.SnapshotInterval <= 0 {
		return Config{}, fmt.Errorf("snapshot interval must be positive, got %s", cfg.SnapshotInterval)
	}
	return cfg, nil
}

// LoadRules reads game rules from a YAML file. Keys absent from the file keep
// their default value. An empty path returns the defaults.
func LoadRules(path string) (game.Rules, error) {
	rules := game.DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return game.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules over the defaults and validates the result.
func ParseRules(data []byte) (game.Rules, error) {
	rules := game.DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return game.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return game.Rules{}, errors.Join(ErrInvalidRules, err)
	}
	return rules, nil
}

var ErrInvalidRules = errors.New("invalid rules")
