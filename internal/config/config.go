package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	AdminChatID int64  `envconfig:"ADMIN_CHAT_ID"` // alerts and /stats; 0 disables

	DBDriver  string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBDSN     string `envconfig:"DB_DSN" default:"./data/pills.db"`
	DBPoolMin int    `envconfig:"DB_POOL_MIN" default:"1"`
	DBPoolMax int    `envconfig:"DB_POOL_MAX" default:"10"`

	DefaultTZ           string        `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	RemindBeforeMinutes int           `envconfig:"REMIND_BEFORE_MINUTES" default:"10"`
	SnoozeMinutes       int           `envconfig:"SNOOZE_MINUTES" default:"15"`
	SummaryHour         int           `envconfig:"SUMMARY_HOUR" default:"21"`
	TickInterval        time.Duration `envconfig:"TICK_INTERVAL" default:"30s"`
	SummaryInterval     time.Duration `envconfig:"SUMMARY_INTERVAL" default:"60s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads an optional .env file, then environment variables into Config.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is empty"))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is empty"))
	}
	if c.DBPoolMin < 0 || c.DBPoolMax < 1 || c.DBPoolMin > c.DBPoolMax {
		errs = append(errs, fmt.Errorf("invalid pool bounds %d..%d", c.DBPoolMin, c.DBPoolMax))
	}
	if _, err := domain.ValidateZone(c.DefaultTZ); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TZ: %w", err))
	}
	if c.RemindBeforeMinutes < domain.MinLeadMinutes || c.RemindBeforeMinutes > domain.MaxLeadMinutes {
		errs = append(errs, fmt.Errorf("REMIND_BEFORE_MINUTES must be %d..%d, got %d",
			domain.MinLeadMinutes, domain.MaxLeadMinutes, c.RemindBeforeMinutes))
	}
	if c.SnoozeMinutes < 1 {
		errs = append(errs, fmt.Errorf("SNOOZE_MINUTES must be positive, got %d", c.SnoozeMinutes))
	}
	if c.SummaryHour < 0 || c.SummaryHour > 23 {
		errs = append(errs, fmt.Errorf("SUMMARY_HOUR must be 0..23, got %d", c.SummaryHour))
	}
	if c.TickInterval < time.Second {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be at least 1s, got %s", c.TickInterval))
	}
	if c.SummaryInterval < time.Second {
		errs = append(errs, fmt.Errorf("SUMMARY_INTERVAL must be at least 1s, got %s", c.SummaryInterval))
	}
	return errors.Join(errs...)
}
