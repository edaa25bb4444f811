// Package config provides unified configuration for the CPCatalog service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Ingest pipeline configuration
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`

	// Auth configuration
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Archive daemon configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	// BatchSize is the records-per-transaction ceiling (1–1000, default 100)
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BloomExpectedItems sizes the dedup fast-path filter
	BloomExpectedItems int `json:"bloom_expected_items" yaml:"bloom_expected_items"`

	// BloomFalsePositiveRate is the filter's target false positive rate
	BloomFalsePositiveRate float64 `json:"bloom_false_positive_rate" yaml:"bloom_false_positive_rate"`
}

// AuthConfig holds request authentication configuration.
type AuthConfig struct {
	// Enabled controls whether token auth is enforced on /v1 routes
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Tokens is the set of accepted tokens
	Tokens []string `json:"tokens" yaml:"tokens"`
}

// ArchiveConfig holds the event archive daemon configuration.
type ArchiveConfig struct {
	// Enabled controls whether the background archiver runs
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Interval is the pause between drain sweeps
	Interval time.Duration `json:"interval" yaml:"interval"`

	// BatchSize is the events-per-object ceiling
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Prefix is the object path prefix for archive objects
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/cpcatalog",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Ingest: IngestConfig{
			BatchSize:              100,
			BloomExpectedItems:     100000,
			BloomFalsePositiveRate: 0.01,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Archive: ArchiveConfig{
			Enabled:   false,
			Interval:  time.Minute,
			BatchSize: 500,
			Prefix:    "events",
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/cpcatalog"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "events"
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Ingest.BatchSize < 1 || c.Ingest.BatchSize > 1000 {
		return fmt.Errorf("ingest.batch_size must be between 1 and 1000, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.BloomFalsePositiveRate <= 0 || c.Ingest.BloomFalsePositiveRate >= 1 {
		return fmt.Errorf("ingest.bloom_false_positive_rate must be in (0, 1), got %g",
			c.Ingest.BloomFalsePositiveRate)
	}

	if c.Auth.Enabled && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth.tokens is required when auth is enabled")
	}

	if c.Archive.Enabled && c.Archive.Interval <= 0 {
		return fmt.Errorf("archive.interval must be positive, got %s", c.Archive.Interval)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CPCATALOG_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CPCATALOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("CPCATALOG_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Ingest configuration
	if v := os.Getenv("CPCATALOG_INGEST_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Ingest.BatchSize)
	}

	// Auth configuration
	if v := os.Getenv("CPCATALOG_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CPCATALOG_AUTH_TOKENS"); v != "" {
		cfg.Auth.Tokens = strings.Split(v, ",")
	}

	// Archive configuration
	if v := os.Getenv("CPCATALOG_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CPCATALOG_ARCHIVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.Interval = d
		}
	}

	// Storage configuration
	if v := os.Getenv("CPCATALOG_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CPCATALOG_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CPCATALOG_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CPCATALOG_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("CPCATALOG_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
