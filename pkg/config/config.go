// Package config provides configuration management for the savings club.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// Config represents the application configuration.
type Config struct {
	Club     ClubConfig
	Admin    AdminConfig
	Server   ServerConfig
	Discord  DiscordConfig
	Currency string
	Debug    bool
}

// ClubConfig locates the club's data and rules.
type ClubConfig struct {
	Root       string
	DBPath     string
	OutboxPath string
	ExportDir  string
	PolicyFile string
	Timezone   string
}

// AdminConfig holds the admin credential. PasswordHash (bcrypt) wins over
// the plain Password, which is only meant for local development.
type AdminConfig struct {
	PasswordHash string
	Password     string
}

// ServerConfig configures the HTTP server and the penalty worker.
type ServerConfig struct {
	Addr            string
	PenaltyInterval time.Duration
}

// DiscordConfig configures change notifications to a Discord channel.
type DiscordConfig struct {
	BotToken  string
	ChannelID string
}

// Enabled reports whether Discord notifications are configured.
func (d DiscordConfig) Enabled() bool {
	return d.BotToken != "" && d.ChannelID != ""
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	interval, err := parseDurationEnv("PENALTY_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid PENALTY_INTERVAL: %w", err)
	}

	config := &Config{
		Club: ClubConfig{
			Root:       getEnvOrDefault("CLUB_ROOT", "./data"),
			DBPath:     os.Getenv("CLUB_DB_PATH"),
			OutboxPath: os.Getenv("CLUB_OUTBOX_PATH"),
			ExportDir:  os.Getenv("CLUB_EXPORT_DIR"),
			PolicyFile: os.Getenv("CLUB_POLICY_FILE"),
			Timezone:   getEnvOrDefault("CLUB_TIMEZONE", "UTC"),
		},
		Admin: AdminConfig{
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			Password:     os.Getenv("ADMIN_PASSWORD"),
		},
		Server: ServerConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			PenaltyInterval: interval,
		},
		Discord: DiscordConfig{
			BotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
			ChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
		},
		Currency: getEnvOrDefault("CURRENCY", "USD"),
		Debug:    parseBoolEnv("DEBUG"),
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "club":
			switch path[1] {
			case "root":
				value = c.Club.Root
			case "dbPath":
				value = c.Club.DBPath
			case "policyFile":
				value = c.Club.PolicyFile
			case "timezone":
				value = c.Club.Timezone
			}
		case "admin":
			if path[1] == "credential" {
				value = c.Admin.PasswordHash + c.Admin.Password
			}
		case "server":
			if path[1] == "addr" {
				value = c.Server.Addr
			}
		case "discord":
			switch path[1] {
			case "botToken":
				value = c.Discord.BotToken
			case "channelId":
				value = c.Discord.ChannelID
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// Authorizer builds the admin authorizer. With no credential configured it
// returns nil, and the engine rejects every admin call.
func (c *Config) Authorizer() (ledger.Authorizer, error) {
	hash := []byte(c.Admin.PasswordHash)
	if len(hash) == 0 {
		if c.Admin.Password == "" {
			return nil, nil
		}
		var err error
		if hash, err = ledger.HashCredential(c.Admin.Password, 0); err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	auth, err := ledger.NewBcryptAuthorizer(hash)
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// Location returns the club's calendar time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Club.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLUB_TIMEZONE %q: %w", c.Club.Timezone, err)
	}
	return loc, nil
}

// Policy returns the default policy with the overrides from the policy file,
// if one is configured.
func (c *Config) Policy() (ledger.Policy, error) {
	if c.Club.PolicyFile == "" {
		return ledger.DefaultPolicy(), nil
	}
	return LoadPolicy(c.Club.PolicyFile)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a duration such as "30m" from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("duration for %s must be positive: %s", key, value)
	}

	return parsed, nil
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
