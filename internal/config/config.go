package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Authority  AuthorityConfig  `yaml:"authority"`
	Policy     PolicyConfig     `yaml:"policy"`
	RenewToken RenewTokenConfig `yaml:"renew_token"`
	Admin      AdminConfig      `yaml:"admin"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthorityConfig describes the issuing authority: its CV-certificate name,
// where its private key lives, the security level of that key, and which
// crypto provider backs the signature suite.
type AuthorityConfig struct {
	Name           string `yaml:"name"`
	PrivateKeyPath string `yaml:"private_key_path"`
	Level          int    `yaml:"level"` // 128, 192 or 256
	Provider       string `yaml:"provider"`
	Validity       string `yaml:"validity"` // lifetime of the self-signed root
}

// PolicyConfig contains certificate issuance policy
type PolicyConfig struct {
	DefaultValidity string `yaml:"default_validity"`
	MaxValidity     string `yaml:"max_validity"`
	MaxCertsPerDay  int    `yaml:"max_certs_per_day"`
}

// RenewTokenConfig contains renew token configuration
type RenewTokenConfig struct {
	Validity string `yaml:"validity"`
}

// AdminConfig contains admin configuration
type AdminConfig struct {
	Token string `yaml:"token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Authority validation
	if len(c.Authority.Name) < 8 || len(c.Authority.Name) > 12 {
		return fmt.Errorf("authority.name must be 8-12 characters")
	}
	if c.Authority.PrivateKeyPath == "" {
		return fmt.Errorf("authority.private_key_path is required")
	}
	if c.Authority.Level != 128 && c.Authority.Level != 192 && c.Authority.Level != 256 {
		return fmt.Errorf("authority.level must be 128, 192 or 256")
	}
	if c.Authority.Provider == "" {
		return fmt.Errorf("authority.provider is required")
	}
	if _, err := parseDuration(c.Authority.Validity); err != nil {
		return fmt.Errorf("authority.validity is invalid: %w", err)
	}

	// Policy validation
	if _, err := parseDuration(c.Policy.DefaultValidity); err != nil {
		return fmt.Errorf("policy.default_validity is invalid: %w", err)
	}
	if _, err := parseDuration(c.Policy.MaxValidity); err != nil {
		return fmt.Errorf("policy.max_validity is invalid: %w", err)
	}
	if c.Policy.MaxCertsPerDay <= 0 {
		return fmt.Errorf("policy.max_certs_per_day must be positive")
	}

	// Renew token validation
	if _, err := parseDuration(c.RenewToken.Validity); err != nil {
		return fmt.Errorf("renew_token.validity is invalid: %w", err)
	}

	// Admin validation
	if c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required")
	}
	if c.Admin.Token == "your-secure-admin-token-change-me-in-production" {
		fmt.Fprintf(os.Stderr, "WARNING: Using default admin token. Please change it in production!\n")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// GetAuthorityValidityDuration returns the root certificate validity as time.Duration
func (c *Config) GetAuthorityValidityDuration() time.Duration {
	d, _ := parseDuration(c.Authority.Validity)
	return d
}

// GetDefaultValidityDuration returns the default validity as time.Duration
func (c *Config) GetDefaultValidityDuration() time.Duration {
	d, _ := parseDuration(c.Policy.DefaultValidity)
	return d
}

// GetMaxValidityDuration returns the max validity as time.Duration
func (c *Config) GetMaxValidityDuration() time.Duration {
	d, _ := parseDuration(c.Policy.MaxValidity)
	return d
}

// GetRenewTokenValidityDuration returns the renew token validity as time.Duration
func (c *Config) GetRenewTokenValidityDuration() time.Duration {
	d, _ := parseDuration(c.RenewToken.Validity)
	return d
}

// parseDuration parses duration with support for days (e.g., "90d")
func parseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
