package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	BotToken         string
	GuildID          string
	DatabaseDSN      string
	LevelUpChannelID string
	AdminRoles       []string
	AdminUsers       []string
	RedisAddr        string
	Host             string
	Port             string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// .env file is optional, continue with environment variables
	}

	config := &Config{
		BotToken:         os.Getenv("BOT_TOKEN"),
		GuildID:          os.Getenv("GUILD_ID"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		LevelUpChannelID: os.Getenv("LEVEL_UP_CHANNEL_ID"),
		AdminRoles:       splitIDList(os.Getenv("ADMIN_ROLES")),
		AdminUsers:       splitIDList(os.Getenv("ADMIN_USERS")),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		Host:             os.Getenv("HOST"),
		Port:             os.Getenv("PORT"),
	}

	if config.BotToken == "" {
		return nil, &ConfigError{Field: "BOT_TOKEN", Message: "BOT_TOKEN is required"}
	}

	if config.GuildID == "" {
		return nil, &ConfigError{Field: "GUILD_ID", Message: "GUILD_ID is required"}
	}

	if config.DatabaseDSN == "" {
		return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required"}
	}

	if config.Port == "" {
		config.Port = "8080"
	}

	return config, nil
}

// splitIDList splits a comma-separated env value into ids, dropping empty
// entries and surrounding whitespace.
func splitIDList(raw string) []string {
	if raw == "" {
		return nil
	}

	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
