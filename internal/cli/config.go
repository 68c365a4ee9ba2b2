package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/personalia-io/personalia-sdk-go/personalia"
	"github.com/personalia-io/personalia-sdk-go/personalia/cache"
)

// Config is the CLI configuration file.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Poll    PollConfig    `yaml:"poll"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	Key     string        `yaml:"key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

type CacheConfig struct {
	TTL   time.Duration     `yaml:"ttl"`
	Redis cache.RedisConfig `yaml:"redis"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfig reads configuration from a YAML file. ${VAR} references are
// expanded from the environment. A missing file is not an error when
// optional is set.
func LoadConfig(path string, optional bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("PERSONALIA_API_KEY")
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = os.Getenv("PERSONALIA_BASE_URL")
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = personalia.DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = personalia.DefaultTimeout
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = personalia.DefaultPollMaxAttempts
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = personalia.DefaultPollInterval
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = cache.DefaultTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}
