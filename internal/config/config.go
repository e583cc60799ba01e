// Package config provides the application configuration loaded through
// viper from config files, environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"textchunking/internal/domain/valueobject"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Splitter SplitterConfig `mapstructure:"splitter"`
	Batch    BatchConfig    `mapstructure:"batch"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Log      LogConfig      `mapstructure:"log"`
}

// SplitterConfig holds text splitting configuration.
type SplitterConfig struct {
	MaxChunkSize int    `mapstructure:"max_chunk_size"`
	OverlapSize  int    `mapstructure:"overlap_size"`
	MaxInputSize int    `mapstructure:"max_input_size"`
	ProfilePath  string `mapstructure:"profile_path"`
}

// ToSplitConfig converts to the domain split configuration, keeping the
// default breakpoint order.
func (s SplitterConfig) ToSplitConfig() valueobject.SplitConfig {
	cfg := valueobject.DefaultSplitConfig()
	if s.MaxChunkSize > 0 {
		cfg.MaxChunkSize = s.MaxChunkSize
	}
	if s.OverlapSize > 0 {
		cfg.OverlapSize = s.OverlapSize
	}
	if s.MaxInputSize > 0 {
		cfg.MaxInputSize = s.MaxInputSize
	}
	return cfg
}

// BatchConfig holds batch lifecycle configuration.
type BatchConfig struct {
	MaxConcurrentBatches int           `mapstructure:"max_concurrent_batches"`
	BatchTimeout         time.Duration `mapstructure:"batch_timeout"`
	MaxBatchAge          time.Duration `mapstructure:"max_batch_age"`
	CleanupInterval      time.Duration `mapstructure:"cleanup_interval"`
	EventBufferSize      int           `mapstructure:"event_buffer_size"`
}

// NATSConfig holds NATS configuration for the notification publisher.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// DatabaseConfig holds database configuration for the event archive.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ArchiveConfig holds batch event archive configuration.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Splitter.MaxChunkSize < 0 {
		return errors.New("splitter max chunk size cannot be negative")
	}
	if c.Splitter.OverlapSize < 0 {
		return errors.New("splitter overlap size cannot be negative")
	}
	if c.Splitter.MaxChunkSize > 0 && c.Splitter.OverlapSize >= c.Splitter.MaxChunkSize {
		return fmt.Errorf("splitter overlap size %d must be strictly less than max chunk size %d",
			c.Splitter.OverlapSize, c.Splitter.MaxChunkSize)
	}
	if c.Batch.MaxConcurrentBatches < 0 {
		return errors.New("max concurrent batches cannot be negative")
	}
	if c.Batch.BatchTimeout < 0 {
		return errors.New("batch timeout cannot be negative")
	}
	if c.Batch.MaxBatchAge < 0 {
		return errors.New("max batch age cannot be negative")
	}
	if c.Batch.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats url is required when nats is enabled")
	}
	if c.Archive.Enabled {
		if c.Database.Host == "" {
			return errors.New("database host is required when the event archive is enabled")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return errors.New("database port must be between 1 and 65535")
		}
		if c.Database.Name == "" {
			return errors.New("database name is required when the event archive is enabled")
		}
	}
	return nil
}
