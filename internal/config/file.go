package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure. The same shape is
// accepted as YAML (.yml, .yaml) or TOML (.toml), detected by extension.
type FileConfig struct {
	// Logging configuration
	Logging *FileLoggingConfig `yaml:"logging,omitempty" toml:"logging"`

	// Health and metrics server
	Server *FileServerConfig `yaml:"server,omitempty" toml:"server"`

	// Cloudflare provider settings
	Provider map[string]string `yaml:"provider,omitempty" toml:"provider"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FileServerConfig holds ops server settings.
type FileServerConfig struct {
	Port int `yaml:"port,omitempty" toml:"port"` // Port for health/metrics/challenge endpoints
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in all string
// fields of the config structure.
func (c *FileConfig) interpolateEnvVars() {
	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	for k, v := range c.Provider {
		c.Provider[k] = InterpolateEnvVars(v)
	}
}

// LoadFile reads and parses a configuration file. The format is detected by
// extension: .toml is parsed as TOML, everything else as YAML. Environment
// variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// apply copies file values onto cfg. Provider keys are normalized to the
// uppercase names environment variables use, so "global_key" in the file and
// ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY address the same setting.
func (c *FileConfig) apply(cfg *Config) {
	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if c.Server != nil && c.Server.Port > 0 {
		cfg.HealthPort = c.Server.Port
	}

	for k, v := range c.Provider {
		cfg.Provider[strings.ToUpper(k)] = v
	}
}

// GetConfigFilePath returns the config file path from the environment.
// Returns empty string if no config file is specified.
func GetConfigFilePath() string {
	return os.Getenv(envPrefix + "CONFIG")
}
