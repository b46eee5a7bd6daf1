package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the RPC server.
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DefaultServerConfig returns server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Addr: ":8080"}
}

func (c *ServerConfig) Merge(source *ServerConfig) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
}

// Config is the top-level configuration file.
//
// Example YAML:
//
//	optimize:
//	  remove_no_op_states: false
//	  observer: noop
//	simulate:
//	  max_transitions: 500
//	server:
//	  addr: ":9090"
type Config struct {
	Optimize OptimizeConfig `json:"optimize" yaml:"optimize"`
	Simulate SimulateConfig `json:"simulate" yaml:"simulate"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// DefaultConfig returns defaults for every section.
func DefaultConfig() Config {
	return Config{
		Optimize: DefaultOptimizeConfig(),
		Simulate: DefaultSimulateConfig(),
		Server:   DefaultServerConfig(),
	}
}

// Merge applies the set values of source over c, section by section.
func (c *Config) Merge(source *Config) {
	c.Optimize.Merge(&source.Optimize)
	c.Simulate.Merge(&source.Simulate)
	c.Server.Merge(&source.Server)
}

// Load reads a JSON or YAML config file (chosen by extension), merges it
// with defaults, and returns the result.
func Load(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loaded, err := Parse(data, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(loaded)
	return &cfg, nil
}

// Parse decodes config data. ext selects the format: ".yaml" or ".yml" for
// YAML, anything else for JSON.
func Parse(data []byte, ext string) (*Config, error) {
	var loaded Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, err
		}
	}
	return &loaded, nil
}
