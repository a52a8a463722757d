package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultInstance = "work"
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Heartbeat.PongWait = Duration{20 * time.Second}
	cfg.Heartbeat.PingPeriod = Duration{10 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultInstance != "work" {
		t.Errorf("DefaultInstance = %q, want %q", loaded.DefaultInstance, "work")
	}
	if loaded.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q, want s3cret", loaded.Auth.JWTSecret)
	}
	if loaded.Heartbeat.PongWait.Duration != 20*time.Second {
		t.Errorf("PongWait = %v, want 20s", loaded.Heartbeat.PongWait)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.HTTP.Addr != Default().HTTP.Addr {
		t.Errorf("Addr = %q, want default", cfg.HTTP.Addr)
	}
}

func TestLoadPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_instance = "dev"

[heartbeat]
pong_wait = "10s"
ping_period = "30s"

[media]
backend = "s3"
s3_bucket = "chat-media"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Media.Backend != "s3" || cfg.Media.S3Bucket != "chat-media" {
		t.Errorf("media = %+v", cfg.Media)
	}
	if cfg.Limits.Burst != Default().Limits.Burst {
		t.Errorf("Burst = %d, want default", cfg.Limits.Burst)
	}
	// A ping period longer than the pong wait would let live sockets expire.
	if cfg.Heartbeat.PingPeriod.Duration != 9*time.Second {
		t.Errorf("PingPeriod = %v, want 9s", cfg.Heartbeat.PingPeriod)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[auth]\ntoken_ttl = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for bad duration")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
