package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func newFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("test", pflag.ContinueOnError)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlagSet(), nil, map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.DBPath != "./data/profiles.sqlite" {
		t.Fatalf("db=%q", cfg.DBPath)
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	environ := map[string]string{
		"CONSENT_ADDR":      ":9000",
		"CONSENT_SEED":      "42",
		"CONSENT_NO_AUDIT":  "true",
		"CONSENT_LOG_LEVEL": "debug",
	}
	cfg, err := Load(newFlagSet(), nil, environ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Seed != 42 || !cfg.NoAudit || cfg.LogLevel != "debug" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	environ := map[string]string{"CONSENT_ADDR": ":9000", "CONSENT_DATA_DIR": "/srv/consent"}
	cfg, err := Load(newFlagSet(), []string{"--addr", ":7000"}, environ)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("addr=%q want flag value", cfg.Addr)
	}
	if cfg.DataDir != "/srv/consent" || cfg.DBPath != "/srv/consent/profiles.sqlite" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	if _, err := Load(newFlagSet(), nil, map[string]string{"CONSENT_SEED": "x"}); err == nil {
		t.Fatalf("expected error")
	}
}
