// Package config loads CLI configuration from an optional YAML file and
// DEBATE_-prefixed environment variables, the latter taking precedence.
// Nested keys use double underscores: DEBATE_SERVER__BASE_URL maps to
// server.base_url.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Project   ProjectConfig   `koanf:"project"`
	Simulator SimulatorConfig `koanf:"simulator"`
}

type ServerConfig struct {
	// BaseURL is the debate room API endpoint.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds one whole session, stream included.
	Timeout time.Duration `koanf:"timeout"`
}

type ProjectConfig struct {
	// ID is the default project to debate in.
	ID string `koanf:"id"`
}

type SimulatorConfig struct {
	Port int `koanf:"port"`
}

// Load reads configuration. path may be empty, in which case only
// environment variables and defaults apply; a named file that does not
// exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider("DEBATE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DEBATE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.base_url") {
		k.Set("server.base_url", "http://127.0.0.1:8000")
	}
	if !k.Exists("server.timeout") {
		k.Set("server.timeout", "5m")
	}
	if !k.Exists("simulator.port") {
		k.Set("simulator.port", 8000)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
