package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":8080" || cfg.Daemon.Sleep != 30 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  listen: \":9090\"\nredis:\n  addr: localhost:6379\n"))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Fatalf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Redis.Channel != "chore" {
		t.Fatalf("default channel lost: %q", cfg.Redis.Channel)
	}
	if cfg.Daemon.API != "http://localhost:8080" {
		t.Fatalf("default api lost: %q", cfg.Daemon.API)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Daemon.Sleep = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sleep")
	}

	cfg = Default()
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Channel = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis without channel")
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	body := "daemon:\n  sleep: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "choreline.yml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Daemon.Sleep != 5 {
		t.Fatalf("sleep = %d", cfg.Daemon.Sleep)
	}
}
