package app

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds everything an App needs to run a grid.
type Config struct {
	GridPath  string `mapstructure:"grid_path"`
	Workers   int    `mapstructure:"workers"`
	QueueCap  int    `mapstructure:"queue_cap"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Trace     bool   `mapstructure:"trace"`
}

// LoadConfig layers configuration sources: defaults, then DEPGRID_*
// environment variables, then explicit overrides (normally parsed flags).
func LoadConfig(overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetDefault("workers", 4)
	v.SetDefault("queue_cap", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("trace", false)

	v.SetEnvPrefix("depgrid")
	v.AutomaticEnv()

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}
