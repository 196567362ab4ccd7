package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ParseConfig reads and parses a configuration file
func ParseConfig(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Load validates the file against the schema and parses it.
// An empty path yields a zero Config, so flags alone can drive the tool.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		return &Config{}, nil
	}

	if err := Validate(configFile); err != nil {
		return nil, err
	}

	return ParseConfig(configFile)
}

// Overrides carries command-line values that take precedence over the file
type Overrides struct {
	Folder          string
	URL             string
	APIKey          string
	BatchSize       int
	PollingInterval int
}

// Apply copies every non-zero override onto the config
func (o Overrides) Apply(c *Config) {
	if o.Folder != "" {
		c.Folder = o.Folder
	}
	if o.URL != "" {
		c.Server.URL = o.URL
	}
	if o.APIKey != "" {
		c.Server.APIKey = o.APIKey
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.PollingInterval > 0 {
		c.PollingIntervalSeconds = o.PollingInterval
	}
}
