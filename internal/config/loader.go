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

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr              string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir         string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CatalogPath       string   `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	ArtifactSource    string   `json:"artifact_source" yaml:"artifact_source" toml:"artifact_source"`
	Backend           string   `json:"backend" yaml:"backend" toml:"backend"`
	LlamaCtx          int      `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	SampleIntervalSec int      `json:"sample_interval_sec" yaml:"sample_interval_sec" toml:"sample_interval_sec"`
	HistorySize       int      `json:"history_size" yaml:"history_size" toml:"history_size"`
	HealthHistorySize int      `json:"health_history_size" yaml:"health_history_size" toml:"health_history_size"`
	OpTimeoutSec      int      `json:"op_timeout_sec" yaml:"op_timeout_sec" toml:"op_timeout_sec"`
	LogLevel          string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled       bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
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
