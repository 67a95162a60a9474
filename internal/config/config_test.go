package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/warikan")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, "http://localhost:3000", cfg.WebUIBaseURL)
	assert.Equal(t, "Asia/Tokyo", cfg.Location.String())
	assert.Equal(t, 24*time.Hour, cfg.ReminderInterval)
	assert.Equal(t, 10*time.Minute, cfg.DirectoryMaxAge)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("BOLT_PATH", "/tmp/w.db")
	t.Setenv("ADMIN_USER_IDS", "1, 2,,")
	t.Setenv("DISCORD_REDIRECT_URI", "https://warikan.example.com/api/auth/callback")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("DISCORD_CHANNEL_ID", "chat")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/w.db", cfg.StoreOptions().BoltPath)
	assert.Equal(t, []string{"1", "2"}, cfg.AdminUserIDs)
	assert.True(t, cfg.IsAdmin("2"))
	assert.False(t, cfg.IsAdmin("3"))
	assert.Equal(t, "https://warikan.example.com", cfg.WebUIBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "chat", cfg.ReminderChannelID, "reminders default to the chat channel")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DISCORD_TOKEN", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DISCORD_TOKEN")
	})
	t.Run("unknown driver", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_DRIVER", "dynamo")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
	t.Run("postgres without url", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DATABASE_URL", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})
	t.Run("bad time zone", func(t *testing.T) {
		setRequired(t)
		t.Setenv("TIME_ZONE", "Mars/Olympus")
		_, err := Load()
		assert.ErrorContains(t, err, "TIME_ZONE")
	})
}
