package config

import (
	"fmt"
	"os"

	"trading-monitor/src/helpers"
	"trading-monitor/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, &helpers.ConfigurationError{MonitorError: helpers.MonitorError{Message: "config validation failed", Cause: err}}
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills unset optional fields with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Fetcher.FastIntervalSeconds <= 0 {
		c.Fetcher.FastIntervalSeconds = 1.5
	}
	if c.Fetcher.SlowIntervalSeconds <= 0 {
		c.Fetcher.SlowIntervalSeconds = 10.0
	}
	if c.Fetcher.MaxEvents <= 0 {
		c.Fetcher.MaxEvents = 100
	}
	if c.Fetcher.ErrorThreshold <= 0 {
		c.Fetcher.ErrorThreshold = 5
	}
	if c.SignalWS.ReconnectIntervalSeconds <= 0 {
		c.SignalWS.ReconnectIntervalSeconds = 5
	}
	if c.SignalWS.BufferSize <= 0 {
		c.SignalWS.BufferSize = 50
	}
	if c.Storage.QueryTimeoutSec <= 0 {
		c.Storage.QueryTimeoutSec = 5
	}
	if c.UI.AgeWarningHours <= 0 {
		c.UI.AgeWarningHours = 12
	}
	if c.UI.AgeCriticalHours <= 0 {
		c.UI.AgeCriticalHours = 24
	}
	if c.UI.WinRateGood <= 0 {
		c.UI.WinRateGood = 60
	}
	if c.UI.WinRateOK <= 0 {
		c.UI.WinRateOK = 50
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Fetcher configuration
	if c.Fetcher.FastIntervalSeconds >= c.Fetcher.SlowIntervalSeconds {
		return fmt.Errorf("fast interval (%v) must be shorter than slow interval (%v)",
			c.Fetcher.FastIntervalSeconds, c.Fetcher.SlowIntervalSeconds)
	}

	// Validate Signal WS configuration (optional feature, but if a URL is
	// given it must come with a token)
	if c.SignalWS.URL != "" && c.SignalWS.Token == "" {
		return fmt.Errorf("signal_ws token is required when a url is configured")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
