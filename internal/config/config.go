// Package config provides configuration loading and structs for the Kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ProvidersConfig holds endpoints for the external embedding and generation
// providers. The API key is read from the environment variable named by
// APIKeyEnv, never from the config file itself.
type ProvidersConfig struct {
	EmbedURL    string `yaml:"embed_url"`
	GenerateURL string `yaml:"generate_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the vector snapshot and the audit database.
type StorageConfig struct {
	SnapshotPath  string `yaml:"snapshot_path"`
	AuditDBPath   string `yaml:"audit_db_path"`
	WatchSnapshot bool   `yaml:"watch_snapshot"`
}

// RetrievalConfig holds search and context assembly settings.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// GatewayConfig holds provider call and circuit breaker settings.
type GatewayConfig struct {
	CallTimeoutSeconds    int `yaml:"call_timeout_seconds"`
	FailureThreshold      int `yaml:"failure_threshold"`
	HalfOpenTimeoutSecs   int `yaml:"half_open_timeout_seconds"`
	HalfOpenSuccessCount  int `yaml:"half_open_success_count"`
	EmbeddingCacheEntries int `yaml:"embedding_cache_entries"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.AuditDBPath = expandPath(cfg.Storage.AuditDBPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
