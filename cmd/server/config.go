// Package main provides the Kaira server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Convert  ConvertConfig  `yaml:"convert"`
	VR       VRConfig       `yaml:"vr"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Address          string   `yaml:"address"`             // listen address (default: :3002)
	AllowedOrigins   []string `yaml:"allowed_origins"`     // CORS origins (default: *)
	AccessTokenTTL   string   `yaml:"access_token_ttl"`    // Go duration (default: 1h)
	RefreshTokenTTL  string   `yaml:"refresh_token_ttl"`   // Go duration (default: 168h)
	RateLimitPerIP   int      `yaml:"rate_limit_per_ip"`   // auth requests per minute per IP
	RateLimitPerUser int      `yaml:"rate_limit_per_user"` // requests per minute per user
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file (default: data/kaira.db)
}

// UploadsConfig contains artifact storage settings.
type UploadsConfig struct {
	Dir string `yaml:"dir"` // uploads root directory (default: uploads)
}

// ConvertConfig contains Blender converter settings. The converter stays
// disabled until both scripts are configured.
type ConvertConfig struct {
	BlenderPath     string `yaml:"blender_path"`     // blender binary (default: blender)
	FloorplanScript string `yaml:"floorplan_script"` // floorplan-to-blend python script
	ExportScript    string `yaml:"export_script"`    // blend-to-glb export python script
	WorkDir         string `yaml:"work_dir"`         // scratch dir for intermediate files
	Timeout         string `yaml:"timeout"`          // Go duration (default: 5m)
}

// Enabled reports whether the converter is configured.
func (c ConvertConfig) Enabled() bool {
	return c.FloorplanScript != "" && c.ExportScript != ""
}

// VRConfig contains VR viewer settings. The launcher stays disabled until a
// command is configured.
type VRConfig struct {
	Command string   `yaml:"command"` // viewer binary
	Args    []string `yaml:"args"`    // extra arguments before the model path
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // metrics listen address (default: :9091)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":3002"
	}
	if c.Server.AccessTokenTTL == "" {
		c.Server.AccessTokenTTL = "1h"
	}
	if c.Server.RefreshTokenTTL == "" {
		c.Server.RefreshTokenTTL = "168h"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/kaira.db"
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Convert.BlenderPath == "" {
		c.Convert.BlenderPath = "blender"
	}
	if c.Convert.Timeout == "" {
		c.Convert.Timeout = "5m"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9091"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.AccessTokenTTL(); err != nil {
		return fmt.Errorf("server.access_token_ttl: %w", err)
	}
	if _, err := c.RefreshTokenTTL(); err != nil {
		return fmt.Errorf("server.refresh_token_ttl: %w", err)
	}
	if _, err := c.ConvertTimeout(); err != nil {
		return fmt.Errorf("convert.timeout: %w", err)
	}
	if c.Convert.FloorplanScript != "" && c.Convert.ExportScript == "" {
		return fmt.Errorf("convert.export_script is required when convert.floorplan_script is set")
	}
	if c.Convert.ExportScript != "" && c.Convert.FloorplanScript == "" {
		return fmt.Errorf("convert.floorplan_script is required when convert.export_script is set")
	}
	return nil
}

// AccessTokenTTL parses the configured access token lifetime.
func (c *Config) AccessTokenTTL() (time.Duration, error) {
	return time.ParseDuration(c.Server.AccessTokenTTL)
}

// RefreshTokenTTL parses the configured refresh token lifetime.
func (c *Config) RefreshTokenTTL() (time.Duration, error) {
	return time.ParseDuration(c.Server.RefreshTokenTTL)
}

// ConvertTimeout parses the configured conversion timeout.
func (c *Config) ConvertTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Convert.Timeout)
}
