package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	InboxFolder     = "inbox"
	ProcessedFolder = "processed"
	LogsFolder      = "logs"
	LockFile        = "uploader.lock"
	LogFile         = "tddf-uploader.log"
)

// ServerConfig points at the MMS ingestion server
type ServerConfig struct {
	URL               string  `json:"url,omitempty"`
	APIKey            string  `json:"api_key,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"` // 0 = unlimited
}

// LedgerConfig holds the PostgreSQL connection used to record ingested files
type LedgerConfig struct {
	DSN string `json:"dsn,omitempty"`
}

// RetentionTier keeps the newest Retention files of one age tier
type RetentionTier struct {
	Tier      string `json:"tier"`      // hourly, daily, weekly, monthly, quarterly, yearly
	Retention int    `json:"retention"` // number of files to keep (0 = unlimited)
}

// RetentionConfig controls pruning of the processed archive
type RetentionConfig struct {
	ProcessedKeep int             `json:"processed_keep,omitempty"` // 0 = keep everything
	Tiers         []RetentionTier `json:"tiers,omitempty"`          // applied on top of processed_keep
}

// StorageDestination defines a single storage destination
type StorageDestination struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"` // local, s3, backblaze, ssh, mms
	Enabled bool                   `json:"enabled"`
	BaseDir string                 `json:"base_dir,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// StorageConfig lists the destinations every ingested file is shipped to
type StorageConfig struct {
	Destinations []StorageDestination `json:"destinations,omitempty"`
}

// Config is the root configuration structure
type Config struct {
	Folder                 string          `json:"folder,omitempty"` // base folder holding inbox/, processed/ and logs/
	Timezone               string          `json:"timezone,omitempty"`
	BatchSize              int             `json:"batch_size,omitempty"`
	PollingIntervalSeconds int             `json:"polling_interval_seconds,omitempty"`
	MaxConcurrentUploads   int             `json:"max_concurrent_uploads,omitempty"`
	LockStaleMinutes       int             `json:"lock_stale_minutes,omitempty"`
	LogLevel               string          `json:"log_level,omitempty"`  // debug, info, warn, error (default: info)
	LogFormat              string          `json:"log_format,omitempty"` // json, console (default: json)
	Server                 ServerConfig    `json:"server,omitempty"`
	Ledger                 LedgerConfig    `json:"ledger,omitempty"`
	Retention              RetentionConfig `json:"retention,omitempty"`
	Storage                StorageConfig   `json:"storage,omitempty"`
}

// GetFolder returns the base folder (defaults to the working directory)
func (c *Config) GetFolder() string {
	if c.Folder != "" {
		return c.Folder
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func (c *Config) InboxDir() string     { return filepath.Join(c.GetFolder(), InboxFolder) }
func (c *Config) ProcessedDir() string { return filepath.Join(c.GetFolder(), ProcessedFolder) }
func (c *Config) LogsDir() string      { return filepath.Join(c.GetFolder(), LogsFolder) }
func (c *Config) LockPath() string     { return filepath.Join(c.GetFolder(), LockFile) }
func (c *Config) LogPath() string      { return filepath.Join(c.LogsDir(), LogFile) }

// Location resolves the configured timezone (defaults to UTC)
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetBatchSize returns the number of files per batch (defaults to 5)
func (c *Config) GetBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return 5
}

// GetPollingInterval returns the wait between busy checks (defaults to 10s)
func (c *Config) GetPollingInterval() time.Duration {
	if c.PollingIntervalSeconds > 0 {
		return time.Duration(c.PollingIntervalSeconds) * time.Second
	}
	return 10 * time.Second
}

// GetMaxConcurrentUploads returns the upload concurrency (defaults to 3)
func (c *Config) GetMaxConcurrentUploads() int {
	if c.MaxConcurrentUploads > 0 {
		return c.MaxConcurrentUploads
	}
	return 3
}

// GetLockStaleAfter returns the age after which an instance lock is ignored (defaults to 30m)
func (c *Config) GetLockStaleAfter() time.Duration {
	if c.LockStaleMinutes > 0 {
		return time.Duration(c.LockStaleMinutes) * time.Minute
	}
	return 30 * time.Minute
}

// GetLogLevel returns the log level (defaults to info)
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetLogFormat returns the log format (defaults to json)
func (c *Config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

// EnabledDestinations returns the destinations that are switched on
func (c *Config) EnabledDestinations() []StorageDestination {
	var enabled []StorageDestination
	for _, d := range c.Storage.Destinations {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	return enabled
}
