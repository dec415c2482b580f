package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds host settings from ~/.restpcv/config.yaml.
type GlobalConfig struct {
	Debug DebugConfig `yaml:"debug"`
	Audit AuditConfig `yaml:"audit"`
	// Validator is the default validator definition used when --config is
	// not given.
	Validator string `yaml:"validator"`
}

// DebugConfig controls the debug log files.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// AuditConfig controls the validation audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Debug: DebugConfig{RetentionDays: 14},
		Audit: AuditConfig{Path: filepath.Join(GlobalConfigDir(), "audit.db")},
	}
}

// LoadGlobal reads ~/.restpcv/config.yaml and applies environment overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	configPath := filepath.Join(GlobalConfigDir(), "config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("RESTPCV_DEBUG_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Debug.RetentionDays = days
		}
	}
	if v := os.Getenv("RESTPCV_AUDIT_PATH"); v != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = v
	}
	if v := os.Getenv("RESTPCV_CONFIG"); v != "" {
		cfg.Validator = v
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.restpcv.
func GlobalConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".restpcv")
	}
	return filepath.Join(homeDir, ".restpcv")
}
