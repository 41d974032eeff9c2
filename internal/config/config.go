package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/NgigiN/groupbanker/internal/storage"
)

const (
	defaultDatabasePath = "groupbanker.db"
	defaultHealthAddr   = ":8080"
)

type Config struct {
	DatabasePath     string
	SchemaVersion    int
	LogLevel         slog.Level
	HealthAddr       string
	DiscordBotToken  string
	DiscordChannelId string
}

// Load reads the configuration from the environment. Discord settings are
// optional here and checked by RequireDiscord.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:     getenv("GROUPBANKER_DB_PATH", defaultDatabasePath),
		SchemaVersion:    storage.SchemaVersion,
		LogLevel:         slog.LevelInfo,
		HealthAddr:       getenv("GROUPBANKER_HEALTH_ADDR", defaultHealthAddr),
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelId: os.Getenv("DISCORD_CHANNEL_ID"),
	}

	if v := os.Getenv("GROUPBANKER_SCHEMA_VERSION"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil || version < 1 {
			return nil, fmt.Errorf("GROUPBANKER_SCHEMA_VERSION must be a positive integer, got %q", v)
		}
		cfg.SchemaVersion = version
	}

	if v := os.Getenv("GROUPBANKER_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid GROUPBANKER_LOG_LEVEL: %w", err)
		}
	}

	return cfg, nil
}

// RequireDiscord reports whether the settings needed by the bot are present.
func (c *Config) RequireDiscord() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("bot token is not set")
	}
	if c.DiscordChannelId == "" {
		return fmt.Errorf("channel ID is not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
