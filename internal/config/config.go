package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	GuildID       string           `yaml:"guild_id"`
	GuildName     string           `yaml:"guild_name"`
	MongoURI      string           `yaml:"mongo_uri"`
	MongoDatabase string           `yaml:"mongo_database"`
	LogLevel      string           `yaml:"log_level"`
	Health        HealthConfig     `yaml:"health"`
	Moderation    ModerationConfig `yaml:"moderation"`
	Automod       AutomodConfig    `yaml:"automod"`
	Levels        LevelsConfig     `yaml:"levels"`
	Stats         StatsConfig      `yaml:"stats"`
	Sticky        StickyConfig     `yaml:"sticky"`
	Presence      string           `yaml:"presence"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ModerationConfig struct {
	MuteMinSeconds   int64 `yaml:"mute_min_seconds"`
	MuteMaxSeconds   int64 `yaml:"mute_max_seconds"`
	ReconcileSeconds int   `yaml:"reconcile_seconds"`
}

type AutomodConfig struct {
	Enabled         bool  `yaml:"enabled"`
	StrikeLimit     int   `yaml:"strike_limit"`
	StrikeTTLSecond int   `yaml:"strike_ttl_seconds"`
	MuteSeconds     int64 `yaml:"mute_seconds"`
	SlowmodeSeconds int   `yaml:"slowmode_seconds"`
}

type LevelsConfig struct {
	LeaderboardURL string `yaml:"leaderboard_url"`
	CacheSeconds   int    `yaml:"cache_seconds"`
	PageLimit      int    `yaml:"page_limit"`
	RewardSeconds  int    `yaml:"reward_seconds"`
	CoinsPerLevel  int64  `yaml:"coins_per_level"`
}

type StatsConfig struct {
	FlushSeconds          int `yaml:"flush_seconds"`
	ActiveLookbackSeconds int `yaml:"active_lookback_seconds"`
	ActiveLimit           int `yaml:"active_limit"`
}

type StickyConfig struct {
	EveryMessages int `yaml:"every_messages"`
}

func DefaultConfig() Config {
	return Config{
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "guildwarden",
		LogLevel:      "info",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Moderation: ModerationConfig{
			MuteMinSeconds:   60,
			MuteMaxSeconds:   2419200,
			ReconcileSeconds: 60,
		},
		Automod: AutomodConfig{
			Enabled:         true,
			StrikeLimit:     5,
			StrikeTTLSecond: 60,
			MuteSeconds:     120,
			SlowmodeSeconds: 0,
		},
		Levels: LevelsConfig{
			CacheSeconds:  300,
			PageLimit:     1000,
			RewardSeconds: 900,
			CoinsPerLevel: 50,
		},
		Stats: StatsConfig{
			FlushSeconds:          60,
			ActiveLookbackSeconds: 2419200,
			ActiveLimit:           10,
		},
		Sticky:   StickyConfig{EveryMessages: 8},
		Presence: "over the community",
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("GUILD_ID is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.GuildName = envString("GUILD_NAME", cfg.GuildName)
	cfg.MongoURI = envString("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = envString("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Moderation.MuteMinSeconds = envInt64("MUTE_MIN_SECONDS", cfg.Moderation.MuteMinSeconds)
	cfg.Moderation.MuteMaxSeconds = envInt64("MUTE_MAX_SECONDS", cfg.Moderation.MuteMaxSeconds)
	cfg.Moderation.ReconcileSeconds = envInt("RECONCILE_SECONDS", cfg.Moderation.ReconcileSeconds)
	cfg.Automod.Enabled = envBool("AUTOMOD_ENABLED", cfg.Automod.Enabled)
	cfg.Automod.StrikeLimit = envInt("AUTOMOD_STRIKE_LIMIT", cfg.Automod.StrikeLimit)
	cfg.Automod.StrikeTTLSecond = envInt("AUTOMOD_STRIKE_TTL_SECONDS", cfg.Automod.StrikeTTLSecond)
	cfg.Automod.MuteSeconds = envInt64("AUTOMOD_MUTE_SECONDS", cfg.Automod.MuteSeconds)
	cfg.Automod.SlowmodeSeconds = envInt("AUTOMOD_SLOWMODE_SECONDS", cfg.Automod.SlowmodeSeconds)
	cfg.Levels.LeaderboardURL = envString("LEADERBOARD_URL", cfg.Levels.LeaderboardURL)
	cfg.Levels.CacheSeconds = envInt("LEADERBOARD_CACHE_SECONDS", cfg.Levels.CacheSeconds)
	cfg.Levels.PageLimit = envInt("LEADERBOARD_PAGE_LIMIT", cfg.Levels.PageLimit)
	cfg.Levels.RewardSeconds = envInt("REWARD_SECONDS", cfg.Levels.RewardSeconds)
	cfg.Levels.CoinsPerLevel = envInt64("COINS_PER_LEVEL", cfg.Levels.CoinsPerLevel)
	cfg.Stats.FlushSeconds = envInt("STATS_FLUSH_SECONDS", cfg.Stats.FlushSeconds)
	cfg.Stats.ActiveLookbackSeconds = envInt("ACTIVE_LOOKBACK_SECONDS", cfg.Stats.ActiveLookbackSeconds)
	cfg.Stats.ActiveLimit = envInt("ACTIVE_LIMIT", cfg.Stats.ActiveLimit)
	cfg.Sticky.EveryMessages = envInt("STICKY_EVERY_MESSAGES", cfg.Sticky.EveryMessages)
	cfg.Presence = envString("PRESENCE", cfg.Presence)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
