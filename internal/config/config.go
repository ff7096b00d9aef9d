// Package config provides application configuration management using environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot
type Config struct {
	Server   ServerConfig
	Discord  DiscordConfig
	Database DatabaseConfig
	Cache    CacheConfig
	UI       UIConfig
	Logging  LoggingConfig
}

// ServerConfig holds the operational (health/metrics) server configuration
type ServerConfig struct {
	HTTPPort string
	GRPCPort string
	Env      string
}

// DiscordConfig holds the bot credentials and Discord-side identifiers
type DiscordConfig struct {
	BotToken          string
	ApplicationID     snowflake.ID
	OperatorChannelID snowflake.ID   // receives unhandled error alerts; zero disables alerts
	RequestChannelID  snowflake.ID   // receives room schedule requests; zero disables /request
	CommandGuildID    snowflake.ID   // registers commands to a single guild when set
	DeveloperIDs      []snowflake.ID // users allowed to run developer commands
	APIBaseURL        string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// CacheConfig holds the capacities of the in-process LRU caches
type CacheConfig struct {
	TeamsPerGuild int
	Guilds        int
}

// UIConfig holds settings for interactive components
type UIConfig struct {
	Timeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Server = ServerConfig{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),
		Env:      getEnv("ENVIRONMENT", "development"),
	}

	applicationID, err := parseID("DISCORD_APPLICATION_ID")
	if err != nil {
		return nil, err
	}
	operatorChannelID, err := parseID("DISCORD_OPERATOR_CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	requestChannelID, err := parseID("DISCORD_REQUEST_CHANNEL_ID")
	if err != nil {
		return nil, err
	}
	commandGuildID, err := parseID("DISCORD_COMMAND_GUILD_ID")
	if err != nil {
		return nil, err
	}
	developerIDs, err := parseIDList("DISCORD_DEVELOPER_IDS")
	if err != nil {
		return nil, err
	}

	cfg.Discord = DiscordConfig{
		BotToken:          getEnv("DISCORD_BOT_TOKEN", ""),
		ApplicationID:     applicationID,
		OperatorChannelID: operatorChannelID,
		RequestChannelID:  requestChannelID,
		CommandGuildID:    commandGuildID,
		DeveloperIDs:      developerIDs,
		APIBaseURL:        getEnv("DISCORD_API_BASE_URL", "https://discord.com/api/v10"),
	}

	maxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "10"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "2"))

	cfg.Database = DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "phoenix"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "phoenix"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}

	teamCacheSize, _ := strconv.Atoi(getEnv("TEAM_CACHE_SIZE", "128"))
	guildCacheSize, _ := strconv.Atoi(getEnv("GUILD_CACHE_SIZE", "128"))

	cfg.Cache = CacheConfig{
		TeamsPerGuild: teamCacheSize,
		Guilds:        guildCacheSize,
	}

	uiTimeoutMinutes, _ := strconv.Atoi(getEnv("UI_TIMEOUT_MINUTES", "15"))
	cfg.UI = UIConfig{
		Timeout: time.Duration(uiTimeoutMinutes) * time.Minute,
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.Discord.ApplicationID == 0 {
		return fmt.Errorf("DISCORD_APPLICATION_ID is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Cache.TeamsPerGuild <= 0 {
		return fmt.Errorf("TEAM_CACHE_SIZE must be positive")
	}
	if c.Cache.Guilds <= 0 {
		return fmt.Errorf("GUILD_CACHE_SIZE must be positive")
	}
	if c.UI.Timeout <= 0 {
		return fmt.Errorf("UI_TIMEOUT_MINUTES must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseID reads an optional snowflake from the environment; unset yields zero
func parseID(key string) (snowflake.ID, error) {
	value := getEnv(key, "")
	if value == "" {
		return 0, nil
	}

	id, err := snowflake.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// parseIDList reads a comma or space separated list of snowflakes
func parseIDList(key string) ([]snowflake.ID, error) {
	fields := strings.FieldsFunc(getEnv(key, ""), func(r rune) bool {
		return r == ',' || r == ' '
	})

	ids := make([]snowflake.ID, 0, len(fields))
	for _, field := range fields {
		id, err := snowflake.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
