package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	OllamaHost   string `json:"ollama_host" yaml:"ollama_host" toml:"ollama_host"`
	RedisURL     string `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	RegistryPath string `json:"registry_path" yaml:"registry_path" toml:"registry_path"`

	VRAMCapacityMB int64 `json:"vram_capacity_mb" yaml:"vram_capacity_mb" toml:"vram_capacity_mb"`

	LockTTLSeconds            int `json:"lock_ttl_seconds" yaml:"lock_ttl_seconds" toml:"lock_ttl_seconds"`
	AdmissionWaitSeconds      int `json:"admission_wait_seconds" yaml:"admission_wait_seconds" toml:"admission_wait_seconds"`
	ReservationTimeoutSeconds int `json:"reservation_timeout_seconds" yaml:"reservation_timeout_seconds" toml:"reservation_timeout_seconds"`
	ActiveTimeoutSeconds      int `json:"active_timeout_seconds" yaml:"active_timeout_seconds" toml:"active_timeout_seconds"`
	IdleThresholdSeconds      int `json:"idle_threshold_seconds" yaml:"idle_threshold_seconds" toml:"idle_threshold_seconds"`
	SweepIntervalSeconds      int `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds" toml:"sweep_interval_seconds"`

	LogJSON  bool   `json:"log_json" yaml:"log_json" toml:"log_json"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
