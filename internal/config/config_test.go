package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "Europe/Moscow", cfg.DefaultTZ)
	assert.Equal(t, 10, cfg.RemindBeforeMinutes)
	assert.Equal(t, 15, cfg.SnoozeMinutes)
	assert.Equal(t, 21, cfg.SummaryHour)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, time.Minute, cfg.SummaryInterval)
	assert.Zero(t, cfg.AdminChatID)
}

func TestFromEnv_RequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := fromEnv()
	assert.Error(t, err)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_CHAT_ID", "-100500")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://pills@localhost/pills?sslmode=disable")
	t.Setenv("TICK_INTERVAL", "1m")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(-100500), cfg.AdminChatID)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, time.Minute, cfg.TickInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	base, err := fromEnv()
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"driver":    func(c *Config) { c.DBDriver = "mysql" },
		"lead low":  func(c *Config) { c.RemindBeforeMinutes = 0 },
		"lead high": func(c *Config) { c.RemindBeforeMinutes = 181 },
		"hour":      func(c *Config) { c.SummaryHour = 24 },
		"zone":      func(c *Config) { c.DefaultTZ = "Mars/Olympus" },
		"tick":      func(c *Config) { c.TickInterval = 100 * time.Millisecond },
		"pool":      func(c *Config) { c.DBPoolMin, c.DBPoolMax = 5, 2 },
		"snooze":    func(c *Config) { c.SnoozeMinutes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
