package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		TTL string `yaml:"ttl"`
		// Dir holds <testId>.json definitions when Postgres is not configured.
		Dir string `yaml:"dir"`
	} `yaml:"content"`
	Attempt struct {
		PersistInterval string `yaml:"persistInterval"`
		TickInterval    string `yaml:"tickInterval"`
		SnapshotTTL     string `yaml:"snapshotTTL"`
	} `yaml:"attempt"`
	Scoring struct {
		NegativeMarking bool `yaml:"negativeMarking"`
	} `yaml:"scoring"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

const (
	MinPersistInterval = 5 * time.Second
	MaxPersistInterval = 8 * time.Second
)

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// PersistInterval is the snapshot cadence, kept within 5 to 8 seconds.
func (c Config) PersistInterval() time.Duration {
	d := TTLDuration(c.Attempt.PersistInterval, MinPersistInterval)
	if d < MinPersistInterval {
		return MinPersistInterval
	}
	if d > MaxPersistInterval {
		return MaxPersistInterval
	}
	return d
}

// TickInterval is how often the countdown samples the clock; one second unless overridden.
func (c Config) TickInterval() time.Duration {
	d := TTLDuration(c.Attempt.TickInterval, time.Second)
	if d <= 0 {
		return time.Second
	}
	return d
}
