package backtest

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds one backtest run's settings, loaded from YAML with
// environment-variable overrides.
type Config struct {
	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`

	Portfolio struct {
		InitialCapital float64 `yaml:"initial_capital"`
		CommissionRate float64 `yaml:"commission_rate"`
	} `yaml:"portfolio"`

	Strategy struct {
		Name   string             `yaml:"name"`
		Params map[string]float64 `yaml:"params"`
	} `yaml:"strategy"`

	Signals struct {
		Interval int `yaml:"interval"` // synthesize a Signal event every N market events, 0 = off
	} `yaml:"signals"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return fmt.Errorf("data path is required")
	}
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if c.Portfolio.CommissionRate < 0 {
		return fmt.Errorf("commission rate must not be negative")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if c.Signals.Interval < 0 {
		return fmt.Errorf("signal interval must not be negative")
	}
	return nil
}

func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("LOBSIM_DATA_PATH"); path != "" {
		cfg.Data.Path = path
	}
	if name := os.Getenv("LOBSIM_STRATEGY"); name != "" {
		cfg.Strategy.Name = name
	}
	if capital := os.Getenv("LOBSIM_INITIAL_CAPITAL"); capital != "" {
		if v, err := strconv.ParseFloat(capital, 64); err == nil {
			cfg.Portfolio.InitialCapital = v
		}
	}
	if level := os.Getenv("LOBSIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
