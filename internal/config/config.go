// Package config resolves server settings from defaults, CONSENT_* environment
// variables and command-line flags, in that order of precedence (flags win).
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

const EnvPrefix = "CONSENT_"

type Server struct {
	Addr       string `env:"ADDR"`
	ConfigDir  string `env:"CONFIG_DIR"`
	TuningPath string `env:"TUNING"`
	DataDir    string `env:"DATA_DIR"`
	DBPath     string `env:"DB"`
	LogLevel   string `env:"LOG_LEVEL"`
	LogFormat  string `env:"LOG_FORMAT"`
	Seed       int64  `env:"SEED"`
	AuthToken  string `env:"AUTH_TOKEN"`
	NoAudit    bool   `env:"NO_AUDIT"`
}

func Defaults() Server {
	return Server{
		Addr:       ":8080",
		ConfigDir:  "./configs",
		TuningPath: "./configs/tuning.yaml",
		DataDir:    "./data",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load applies the environment on top of the defaults, registers flags whose
// defaults are the result, then parses args. A nil environ reads the process
// environment.
func Load(fs *pflag.FlagSet, args []string, environ map[string]string) (Server, error) {
	cfg := Defaults()
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory holding consent/ prototypes")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "tuning yaml path")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory (audit logs, default db)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "profile sqlite path (default <data>/profiles.sqlite)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text|json")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "rng seed for role draws (0 = time based)")
	fs.StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "shared HELLO token (empty = open)")
	fs.BoolVar(&cfg.NoAudit, "no-audit", cfg.NoAudit, "disable the audit log")

	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = strings.TrimRight(cfg.DataDir, "/") + "/profiles.sqlite"
	}
	return cfg, nil
}
