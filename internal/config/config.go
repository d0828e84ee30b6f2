// Package config loads the librepeat command line configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/cyp0633/librepeat/recurrence"
)

// Sentinel errors.
var (
	ErrInvalid = errors.New("invalid config")
)

// Config is the YAML configuration of the CLI
type Config struct {
	Database string         `yaml:"database"`
	Timezone string         `yaml:"timezone,omitempty"`
	LogLevel string         `yaml:"log_level,omitempty"`
	Cache    CacheConfig    `yaml:"cache"`
	Calendar CalendarConfig `yaml:"calendar,omitempty"`
	Alarms   AlarmConfig    `yaml:"alarms,omitempty"`
}

// CacheConfig controls the parsed rule cache
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TTL        string `yaml:"ttl,omitempty"`
	MaxEntries int    `yaml:"max_entries,omitempty"`
}

// CalendarConfig points at the CalDAV server linked events live on.
// An empty URL disables calendar sync.
type CalendarConfig struct {
	URL               string  `yaml:"url,omitempty"`
	Username          string  `yaml:"username,omitempty"`
	Password          string  `yaml:"password,omitempty"`
	EndAtDeadline     bool    `yaml:"end_at_deadline,omitempty"`
	DefaultDuration   string  `yaml:"default_duration,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// AlarmConfig controls reminders
type AlarmConfig struct {
	ReminderHour *int `yaml:"reminder_hour,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Database: "librepeat.db",
		LogLevel: "warn",
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        recurrence.DefaultCacheConfig.TTL.String(),
			MaxEntries: recurrence.DefaultCacheConfig.MaxEntries,
		},
	}
}

// Load reads path on top of the defaults. A missing file is an error only
// when mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by YAML decoding
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.RecurrenceConfig(); err != nil {
		return err
	}
	if _, err := parseDuration("calendar.default_duration", c.Calendar.DefaultDuration); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if h := c.Alarms.ReminderHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("%w: alarms.reminder_hour must be between 0 and 23, got %d", ErrInvalid, *h)
	}
	if c.Calendar.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: calendar.requests_per_second must not be negative", ErrInvalid)
	}
	return nil
}

// Location returns the configured zone, time.Local when unset
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %v", ErrInvalid, err)
	}
	return loc, nil
}

// Level maps log_level onto a slog level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return level, nil
}

// RecurrenceConfig builds the engine configuration
func (c *Config) RecurrenceConfig() (recurrence.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return recurrence.Config{}, err
	}
	if !c.Cache.Enabled {
		cfg := recurrence.DisabledCacheConfig
		cfg.Location = loc
		return cfg, nil
	}

	cfg := recurrence.DefaultConfig
	cfg.Location = loc
	ttl, err := parseDuration("cache.ttl", c.Cache.TTL)
	if err != nil {
		return recurrence.Config{}, err
	}
	if ttl > 0 {
		cfg.Cache.TTL = ttl
	}
	if c.Cache.MaxEntries > 0 {
		cfg.Cache.MaxEntries = c.Cache.MaxEntries
	}
	return cfg, nil
}

// DefaultDuration returns calendar.default_duration, 0 when unset
func (c *Config) DefaultDuration() time.Duration {
	d, _ := parseDuration("calendar.default_duration", c.Calendar.DefaultDuration)
	return d
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalid, field)
	}
	return d, nil
}
