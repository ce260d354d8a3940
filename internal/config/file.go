package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL         string `yaml:"database_url"`
	RedisURL            string `yaml:"redis_url"`
	ServerPort          string `yaml:"server_port"`
	LogLevel            string `yaml:"log_level"`
	UserAgent           string `yaml:"user_agent"`
	Timeout             string `yaml:"timeout"`
	LookupEndpoint      string `yaml:"lookup_endpoint"`
	LookupTimeout       string `yaml:"lookup_timeout"`
	ScrapeTimeout       string `yaml:"scrape_timeout"`
	PoliteDelay         string `yaml:"polite_delay"`
	ProbeTimeout        string `yaml:"probe_timeout"`
	SourceRoot          string `yaml:"source_root"`
	IncludeUnclassified bool   `yaml:"include_unclassified"`
	IndexBaseURL        string `yaml:"index_base_url"`
	SweepSchedule       string `yaml:"sweep_schedule"`
	PersistProbeStatus  bool   `yaml:"persist_probe_status"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
// Durations are Go duration strings ("5s", "500ms"); unparsable values keep the default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := Defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.IncludeUnclassified = f.IncludeUnclassified
	c.SweepSchedule = f.SweepSchedule
	c.PersistProbeStatus = f.PersistProbeStatus
	for dst, v := range map[*string]string{
		&c.ServerPort:     f.ServerPort,
		&c.LogLevel:       f.LogLevel,
		&c.UserAgent:      f.UserAgent,
		&c.LookupEndpoint: f.LookupEndpoint,
		&c.SourceRoot:     f.SourceRoot,
		&c.IndexBaseURL:   f.IndexBaseURL,
	} {
		if v != "" {
			*dst = v
		}
	}
	for dst, v := range map[*time.Duration]string{
		&c.Timeout:       f.Timeout,
		&c.LookupTimeout: f.LookupTimeout,
		&c.ScrapeTimeout: f.ScrapeTimeout,
		&c.PoliteDelay:   f.PoliteDelay,
		&c.ProbeTimeout:  f.ProbeTimeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
	return c, nil
}
