package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Load config without a config file (use defaults)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}

	if cfg.Ingestion.MaxBodySize != 1048576 {
		t.Errorf("Ingestion.MaxBodySize = %d, want 1048576", cfg.Ingestion.MaxBodySize)
	}

	if cfg.Ingestion.LogCapacity != 50 {
		t.Errorf("Ingestion.LogCapacity = %d, want 50", cfg.Ingestion.LogCapacity)
	}

	if cfg.Ingestion.RateLimitEnabled {
		t.Error("Ingestion.RateLimitEnabled should be false by default")
	}

	if cfg.Ingestion.RateLimitWindow != time.Minute {
		t.Errorf("Ingestion.RateLimitWindow = %v, want 1m", cfg.Ingestion.RateLimitWindow)
	}

	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}

	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %q, want %q", cfg.NATS.URL, "nats://localhost:4222")
	}

	if cfg.Database.URL != "" {
		t.Errorf("Database.URL = %q, want empty", cfg.Database.URL)
	}

	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9090
ingestion:
  log_capacity: 25
  rate_limit_enabled: true
  rate_limit_requests: 5
redis:
  enabled: true
  url: redis://cache:6379/2
database:
  url: postgres://flowhook:secret@db:5432/flowhook
logging:
  level: debug
  format: text
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Ingestion.LogCapacity != 25 {
		t.Errorf("Ingestion.LogCapacity = %d, want 25", cfg.Ingestion.LogCapacity)
	}
	if !cfg.Ingestion.RateLimitEnabled || cfg.Ingestion.RateLimitRequests != 5 {
		t.Errorf("rate limit = %v/%d, want true/5", cfg.Ingestion.RateLimitEnabled, cfg.Ingestion.RateLimitRequests)
	}
	if !cfg.Redis.Enabled || cfg.Redis.URL != "redis://cache:6379/2" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Database.URL != "postgres://flowhook:secret@db:5432/flowhook" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
	// Unset keys keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FLOWHOOK_SERVER_PORT", "7070")
	t.Setenv("FLOWHOOK_LOGGING_LEVEL", "warn")
	t.Setenv("FLOWHOOK_NATS_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if !cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be overridden to true")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	// When a specific file path is given and doesn't exist, it should error
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid-config.yaml")
	if err := os.WriteFile(path, []byte("invalid: yaml: : :"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}
