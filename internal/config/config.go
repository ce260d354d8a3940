package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingDatabaseURL is returned when no catalog database is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

const (
	DefaultUserAgent      = "RadioVault/1.0"
	DefaultLookupEndpoint = "https://logo.clearbit.com/%s"
	DefaultServerPort     = "8080"
)

// Config holds application configuration (catalog DB, optional Redis, fetcher and resolver settings).
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string `yaml:"server_port" env:"SERVER_PORT"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`

	UserAgent string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`

	LookupEndpoint string        `yaml:"lookup_endpoint" env:"LOGO_LOOKUP_ENDPOINT"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout" env:"LOGO_LOOKUP_TIMEOUT"`
	ScrapeTimeout  time.Duration `yaml:"scrape_timeout" env:"LOGO_SCRAPE_TIMEOUT"`
	PoliteDelay    time.Duration `yaml:"polite_delay" env:"LOGO_POLITE_DELAY"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`

	SourceRoot          string `yaml:"source_root" env:"SOURCE_ROOT"`
	IncludeUnclassified bool   `yaml:"include_unclassified" env:"INCLUDE_UNCLASSIFIED"`
	IndexBaseURL        string `yaml:"index_base_url" env:"INDEX_BASE_URL"`
	SweepSchedule       string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
	PersistProbeStatus  bool   `yaml:"persist_probe_status" env:"PERSIST_PROBE_STATUS"`
}

// Defaults returns a Config with every optional field set to its default.
func Defaults() *Config {
	return &Config{
		ServerPort:     DefaultServerPort,
		LogLevel:       "info",
		UserAgent:      DefaultUserAgent,
		Timeout:        30 * time.Second,
		LookupEndpoint: DefaultLookupEndpoint,
		LookupTimeout:  5 * time.Second,
		ScrapeTimeout:  10 * time.Second,
		PoliteDelay:    500 * time.Millisecond,
		ProbeTimeout:   2 * time.Second,
		SourceRoot:     "playlists",
		IndexBaseURL:   "http://online-radio.eu",
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
// DATABASE_URL is required; everything else falls back to Defaults.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := Defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setDuration(&c.Timeout, "FETCHER_TIMEOUT")
	setString(&c.LookupEndpoint, "LOGO_LOOKUP_ENDPOINT")
	setDuration(&c.LookupTimeout, "LOGO_LOOKUP_TIMEOUT")
	setDuration(&c.ScrapeTimeout, "LOGO_SCRAPE_TIMEOUT")
	setDuration(&c.PoliteDelay, "LOGO_POLITE_DELAY")
	setDuration(&c.ProbeTimeout, "PROBE_TIMEOUT")
	setString(&c.SourceRoot, "SOURCE_ROOT")
	setBool(&c.IncludeUnclassified, "INCLUDE_UNCLASSIFIED")
	setString(&c.IndexBaseURL, "INDEX_BASE_URL")
	setString(&c.SweepSchedule, "SWEEP_SCHEDULE")
	setBool(&c.PersistProbeStatus, "PERSIST_PROBE_STATUS")
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func setString(dst *string, key string) {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		*dst = s
	}
}

func setDuration(dst *time.Duration, key string) {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			*dst = b
		}
	}
}
