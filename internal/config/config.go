package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ListingConfig describes the watched unit.
type ListingConfig struct {
	// Name is used in notification subjects and the exported calendar.
	Name string `yaml:"name" json:"name"`
	// MinNights applies when the source carries no per-day minimum stay.
	MinNights int `yaml:"min_nights" json:"min_nights"`
}

// SourceConfig selects and tunes the availability source.
type SourceConfig struct {
	// Kind is one of "json", "ics" or "browser".
	Kind string `yaml:"kind" json:"kind"`
	URL  string `yaml:"url" json:"url"`
	// HorizonDays bounds how far ahead the snapshot reaches.
	HorizonDays int    `yaml:"horizon_days" json:"horizon_days"`
	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`

	RetryInitial    time.Duration `yaml:"retry_initial" json:"retry_initial"`
	RetryMax        time.Duration `yaml:"retry_max" json:"retry_max"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed" json:"retry_max_elapsed"`

	BrowserTimeout time.Duration `yaml:"browser_timeout" json:"browser_timeout"`
}

// ScheduleConfig holds cron expressions (minute hour dom month dow).
type ScheduleConfig struct {
	// Refresh is the regular polling cadence.
	Refresh string `yaml:"refresh" json:"refresh"`
	// Midnight re-checks right after the day boundary.
	Midnight string `yaml:"midnight" json:"midnight"`
	// Morning sends the daily check-in/check-out summary. Empty disables it.
	Morning string `yaml:"morning" json:"morning"`
	// PassTimeout aborts a pass whose fetch hangs.
	PassTimeout time.Duration `yaml:"pass_timeout" json:"pass_timeout"`
}

// SMTPConfig configures the email notifier. Empty Host disables email.
type SMTPConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"-"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
}

// NotifyConfig controls change delivery.
type NotifyConfig struct {
	// Debounce is the quiet period before buffered changes are sent.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	Console  bool          `yaml:"console" json:"console"`
	Email    *SMTPConfig   `yaml:"email,omitempty" json:"email,omitempty"`
}

// StoreConfig locates the persisted booking list.
type StoreConfig struct {
	Path    string `yaml:"path" json:"path"`
	Backups int    `yaml:"backups" json:"backups"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API. Empty disables the server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides what "today" and "midnight" mean.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Listing  ListingConfig  `yaml:"listing" json:"listing"`
	Source   SourceConfig   `yaml:"source" json:"source"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify"`
	Store    StoreConfig    `yaml:"store" json:"store"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health and /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "UTC",
		LogLevel: "info",
		Listing:  ListingConfig{Name: "My listing", MinNights: 1},
		Source:   SourceConfig{Kind: "json"},
		Notify:   NotifyConfig{Console: true},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Listing.MinNights < 1 {
		c.Listing.MinNights = 1
	}

	switch c.Source.Kind {
	case "json", "ics", "browser":
		// ok
	default:
		c.Source.Kind = "json"
	}
	if c.Source.HorizonDays <= 0 {
		c.Source.HorizonDays = 365
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = "/var/lib/bookwatch/http-cache"
	}
	if c.Source.RetryInitial <= 0 {
		c.Source.RetryInitial = 2 * time.Second
	}
	if c.Source.RetryMax <= 0 {
		c.Source.RetryMax = 30 * time.Second
	}
	if c.Source.RetryMaxElapsed <= 0 {
		c.Source.RetryMaxElapsed = 2 * time.Minute
	}
	if c.Source.BrowserTimeout <= 0 {
		c.Source.BrowserTimeout = time.Minute
	}

	if c.Schedule.Refresh == "" {
		c.Schedule.Refresh = "*/10 * * * *"
	}
	if c.Schedule.Midnight == "" {
		c.Schedule.Midnight = "1 0 * * *"
	}
	if c.Schedule.PassTimeout <= 0 {
		c.Schedule.PassTimeout = 5 * time.Minute
	}

	if c.Notify.Debounce <= 0 {
		c.Notify.Debounce = 30 * time.Second
	}
	if c.Notify.Email != nil && c.Notify.Email.Port == 0 {
		c.Notify.Email.Port = 587
	}

	if c.Store.Path == "" {
		c.Store.Path = "/var/lib/bookwatch/bookings.json"
	}
	if c.Store.Backups <= 0 {
		c.Store.Backups = 3
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically via a
// temp file and rename, with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".bookwatch-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
