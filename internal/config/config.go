package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/susu3304/warikanbot/internal/db"
)

type Config struct {
	// Discord Bot
	DiscordToken      string `env:"DISCORD_TOKEN"`
	ChannelID         string `env:"DISCORD_CHANNEL_ID"`
	ReminderChannelID string `env:"REMINDER_CHANNEL_ID"`

	// Discord OAuth2
	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI" envDefault:"http://localhost:3000/api/auth/callback"`

	// Store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	BoltPath    string `env:"BOLT_PATH" envDefault:"warikan.db"`

	// Web Server
	WebBind      string `env:"WEB_BIND" envDefault:"0.0.0.0:3000"`
	WebUIBaseURL string `env:"-"`

	// Session
	JWTSecret    string   `env:"JWT_SECRET" envDefault:"dev-only-change-me"`
	AdminUserIDs []string `env:"ADMIN_USER_IDS" envSeparator:","`

	// Domain
	TimeZone     string `env:"TIME_ZONE" envDefault:"Asia/Tokyo"`
	CategoryFile string `env:"CATEGORY_FILE"`

	// Workers
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"24h"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	DirectoryMaxAge  time.Duration `env:"DIRECTORY_MAX_AGE" envDefault:"10m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Location *time.Location `env:"-"`
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DiscordClientID == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if cfg.DiscordClientSecret == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}

	return cfg, nil
}

// finish derives computed fields and checks the store settings.
func (c *Config) finish() error {
	c.WebUIBaseURL = extractBaseURL(c.DiscordRedirectURI)
	if c.ReminderChannelID == "" {
		c.ReminderChannelID = c.ChannelID
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	admins := c.AdminUserIDs[:0]
	for _, id := range c.AdminUserIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins = append(admins, id)
		}
	}
	c.AdminUserIDs = admins

	switch c.StoreDriver {
	case db.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case db.DriverBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required")
		}
	case db.DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// StoreOptions selects the backend described by the config.
func (c *Config) StoreOptions() db.Options {
	return db.Options{Driver: c.StoreDriver, DatabaseURL: c.DatabaseURL, BoltPath: c.BoltPath}
}

// IsAdmin reports whether userID may manage invitations.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
