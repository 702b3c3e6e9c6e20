package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
scoring:
  ttrThreshold: 0.65
fetch:
  timeout: 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Scoring.TTRThreshold != 0.65 {
		t.Errorf("expected threshold 0.65, got %g", cfg.Scoring.TTRThreshold)
	}
	if cfg.Fetch.Timeout != 90*time.Second {
		t.Errorf("expected fetch timeout 90s, got %s", cfg.Fetch.Timeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Queue.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Queue.Workers)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("LD_SERVER_PORT", "9100")
	t.Setenv("LD_POSTGRES_HOST", "db.internal")
	t.Setenv("LD_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected postgres host override, got %q", cfg.Postgres.Host)
	}
	if len(cfg.Kafka.Brokers) != 2 || !cfg.Kafka.Enabled() {
		t.Errorf("expected 2 brokers with publishing enabled, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"threshold out of range": "scoring:\n  ttrThreshold: 1.5\n",
		"zero workers":           "queue:\n  workers: 0\n",
		"post limit below floor": "fetch:\n  postLimit: 10\n  minPosts: 50\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
