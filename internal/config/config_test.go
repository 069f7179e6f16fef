package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresTokenAndGuild(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("GUILD_ID", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without a token")
	}

	t.Setenv("DISCORD_TOKEN", "token")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without a guild id")
	}

	t.Setenv("GUILD_ID", "guild")
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "guild")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MUTE_MAX_SECONDS", "3600")
	t.Setenv("AUTOMOD_ENABLED", "false")
	t.Setenv("ACTIVE_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level not overridden")
	}
	if cfg.Moderation.MuteMaxSeconds != 3600 {
		t.Errorf("mute max = %d, want 3600", cfg.Moderation.MuteMaxSeconds)
	}
	if cfg.Automod.Enabled {
		t.Errorf("automod should be disabled")
	}
	if cfg.Stats.ActiveLimit != 5 {
		t.Errorf("active limit = %d, want 5", cfg.Stats.ActiveLimit)
	}
	if cfg.MongoDatabase != "guildwarden" {
		t.Errorf("untouched defaults must survive, got %q", cfg.MongoDatabase)
	}
}

func TestYAMLFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("guild_name: From File\nlog_level: warn\nmoderation:\n  mute_min_seconds: 120\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "guild")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GuildName != "From File" {
		t.Errorf("yaml value missing, got %q", cfg.GuildName)
	}
	if cfg.Moderation.MuteMinSeconds != 120 {
		t.Errorf("yaml moderation value missing, got %d", cfg.Moderation.MuteMinSeconds)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("env must win over yaml, got %q", cfg.LogLevel)
	}
}

func TestBuildLoggerAcceptsAnyLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger, err := BuildLogger(level)
		if err != nil {
			t.Fatalf("BuildLogger(%q): %v", level, err)
		}
		_ = logger.Sync()
	}
}
