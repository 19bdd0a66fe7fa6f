// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	threshold := cfg.Workflow.AutoMatchThreshold
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Matching MatchingConfig `yaml:"matching"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig holds the match engine defaults used by import runs
type MatchingConfig struct {
	Algorithms []string `yaml:"algorithms"`
	MinScore   float64  `yaml:"min_score"`
	MaxMatches int      `yaml:"max_matches"`
}

// WorkflowConfig holds the reconciliation workflow policy
type WorkflowConfig struct {
	AutoMatchThreshold float64 `yaml:"auto_match_threshold"`
	RequeueOnReject    bool    `yaml:"requeue_on_reject"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or console
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := defaults()

	cfg.Server.Port = getEnvInt("RECON_PORT", cfg.Server.Port)
	if origins := os.Getenv("RECON_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitAndTrim(origins)
	}
	cfg.Storage.DatabasePath = getEnv("RECON_DB_PATH", cfg.Storage.DatabasePath)
	if algorithms := os.Getenv("RECON_MATCH_ALGORITHMS"); algorithms != "" {
		cfg.Matching.Algorithms = splitAndTrim(algorithms)
	}
	cfg.Matching.MinScore = getEnvFloat("RECON_MIN_SCORE", cfg.Matching.MinScore)
	cfg.Matching.MaxMatches = getEnvInt("RECON_MAX_MATCHES", cfg.Matching.MaxMatches)
	cfg.Workflow.AutoMatchThreshold = getEnvFloat("RECON_AUTO_MATCH_THRESHOLD", cfg.Workflow.AutoMatchThreshold)
	cfg.Workflow.RequeueOnReject = getEnvBool("RECON_REQUEUE_ON_REJECT", cfg.Workflow.RequeueOnReject)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			DatabasePath: "reconciliation.db",
		},
		Matching: MatchingConfig{
			Algorithms: []string{"combined"},
			MinScore:   0.7,
			MaxMatches: 5,
		},
		Workflow: WorkflowConfig{
			AutoMatchThreshold: 0.95,
			RequeueOnReject:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%f", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
