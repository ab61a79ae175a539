package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "discord_token: file-token\npolicy_path: data/alt.json\nlog_level: debug\nhealth:\n  enabled: true\n  addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RETENTION_DAYS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "file-token" {
		t.Fatalf("expected file token, got %q", cfg.DiscordToken)
	}
	if cfg.PolicyPath != "data/alt.json" {
		t.Fatalf("unexpected policy path %q", cfg.PolicyPath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to override log level, got %q", cfg.LogLevel)
	}
	if !cfg.Health.Enabled || cfg.Health.Addr != ":9000" {
		t.Fatalf("unexpected health config %+v", cfg.Health)
	}
	if cfg.RetentionDays != 14 {
		t.Fatalf("expected default retention, got %d", cfg.RetentionDays)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != zapcore.DebugLevel || parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
	if _, err := BuildLogger("error"); err != nil {
		t.Fatalf("build logger: %v", err)
	}
}
