/*
 * Copyright 2025 The Promptwire Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	TLS     TLSConfig      `yaml:"tls"`
	Storage StorageConfig  `yaml:"storage"`
	Auth    AuthConfig     `yaml:"auth"`
	Logging LoggingConfig  `yaml:"logging"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// StorageConfig holds prompt store configuration
type StorageConfig struct {
	Type     string                 `yaml:"type"` // "memory" or "database"
	Database *DatabaseStorageConfig `yaml:"database,omitempty"`
}

// DatabaseStorageConfig configures the Postgres-backed prompt store
type DatabaseStorageConfig struct {
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connection_string"`
	MaxConnections   int    `yaml:"max_connections"`
	MaxIdleTime      int    `yaml:"max_idle_time"` // seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	AdminKeyFile      string `yaml:"admin_key_file"`       // Path to admin API key file
	AdminAPIKeyHeader string `yaml:"admin_api_key_header"` // Header for admin API key
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend selects the metrics implementation: "simple" (in-memory
	// JSON export) or "prometheus". Defaults to "simple".
	Backend string `yaml:"backend,omitempty"`
}

// Load loads configuration from YAML file and environment variables.
// Command line flags take precedence over environment variables;
// environment variables take precedence over YAML file values.
func Load() (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	adminKeyFile := flag.String("admin-key-file", "", "Path to admin API key file")
	flag.Parse()

	cfg := getDefaultConfig()

	if err := loadFromYAML(cfg, *configFile); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	loadFromEnv(cfg)

	if *adminKeyFile != "" {
		cfg.Auth.AdminKeyFile = *adminKeyFile
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8090",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxRequestSize: 1 * 1024 * 1024, // 1MB
		},
		TLS: TLSConfig{
			Enabled:    false,
			CertFile:   "",
			KeyFile:    "",
			MinVersion: "1.3",
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		Auth: AuthConfig{
			AdminKeyFile:      "",
			AdminAPIKeyHeader: "X-Admin-Key",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(cfg *Config, configFile string) error {
	// Only load config file if explicitly provided via command line
	if configFile == "" {
		return nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config file %s: %w", configFile, err)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(cfg *Config) {
	// Server configuration
	if val := getEnv("PROMPTD_SERVER_ADDRESS", ""); val != "" {
		cfg.Server.Address = val
	}
	if val := getDurationEnv("PROMPTD_READ_TIMEOUT", 0); val != 0 {
		cfg.Server.ReadTimeout = val
	}
	if val := getDurationEnv("PROMPTD_WRITE_TIMEOUT", 0); val != 0 {
		cfg.Server.WriteTimeout = val
	}
	if val := getDurationEnv("PROMPTD_IDLE_TIMEOUT", 0); val != 0 {
		cfg.Server.IdleTimeout = val
	}
	if val := getInt64Env("PROMPTD_MAX_REQUEST_SIZE", 0); val != 0 {
		cfg.Server.MaxRequestSize = val
	}

	// TLS configuration
	if val := getBoolEnv("PROMPTD_TLS_ENABLED", cfg.TLS.Enabled); val != cfg.TLS.Enabled {
		cfg.TLS.Enabled = val
	}
	if val := getEnv("PROMPTD_TLS_CERT_FILE", ""); val != "" {
		cfg.TLS.CertFile = val
	}
	if val := getEnv("PROMPTD_TLS_KEY_FILE", ""); val != "" {
		cfg.TLS.KeyFile = val
	}
	if val := getEnv("PROMPTD_TLS_MIN_VERSION", ""); val != "" {
		cfg.TLS.MinVersion = val
	}

	// Storage configuration
	if val := getEnv("PROMPTD_STORAGE_TYPE", ""); val != "" {
		cfg.Storage.Type = val
	}
	if val := getEnv("PROMPTD_DATABASE_URL", ""); val != "" {
		if cfg.Storage.Database == nil {
			cfg.Storage.Database = &DatabaseStorageConfig{Driver: "postgres"}
		}
		cfg.Storage.Database.ConnectionString = val
	}
	if val := getIntEnv("PROMPTD_DATABASE_MAX_CONNECTIONS", 0); val != 0 {
		if cfg.Storage.Database == nil {
			cfg.Storage.Database = &DatabaseStorageConfig{Driver: "postgres"}
		}
		cfg.Storage.Database.MaxConnections = val
	}

	// Auth configuration
	if val := getEnv("PROMPTD_ADMIN_KEY_FILE", ""); val != "" {
		cfg.Auth.AdminKeyFile = val
	}
	if val := getEnv("PROMPTD_ADMIN_API_KEY_HEADER", ""); val != "" {
		cfg.Auth.AdminAPIKeyHeader = val
	}

	// Logging configuration
	if val := getEnv("PROMPTD_LOG_LEVEL", ""); val != "" {
		cfg.Logging.Level = val
	}
	if val := getEnv("PROMPTD_LOG_FORMAT", ""); val != "" {
		cfg.Logging.Format = val
	}

	// Metrics configuration
	if getBoolEnv("PROMPTD_METRICS_ENABLED", false) {
		if cfg.Metrics == nil {
			cfg.Metrics = &MetricsConfig{}
		}
		cfg.Metrics.Enabled = true
	}
	if val := getEnv("PROMPTD_METRICS_BACKEND", ""); val != "" {
		if cfg.Metrics == nil {
			cfg.Metrics = &MetricsConfig{}
		}
		cfg.Metrics.Backend = val
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS cert and key files are required when TLS is enabled")
	}

	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("max request size must be positive")
	}

	switch c.Storage.Type {
	case "", "memory":
	case "database":
		if c.Storage.Database == nil || c.Storage.Database.ConnectionString == "" {
			return fmt.Errorf("database connection string is required for database storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	// Validate admin key file if specified
	if c.Auth.AdminKeyFile != "" {
		if _, err := os.Stat(c.Auth.AdminKeyFile); err != nil {
			return fmt.Errorf("admin key file not found: %s", c.Auth.AdminKeyFile)
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
