package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Load builds the complete configuration: defaults first, then the config
// file (if any), then environment variables on top. Validation failures are
// collected and reported together (fail fast at startup).
//
// An empty path falls back to the ACMEWEAVER_CONFIG environment variable;
// if that is unset too, no file is read.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		HealthPort: DefaultHealthPort,
		Provider:   make(map[string]string),
	}

	var errs []string

	if path == "" {
		path = GetConfigFilePath()
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
		}
		fileCfg.apply(cfg)
	}

	errs = append(errs, mergeEnv(cfg)...)
	errs = append(errs, validateConfig(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}

// mergeEnv overrides cfg with values from environment variables.
// Returns a list of validation errors (may be empty).
func mergeEnv(cfg *Config) []string {
	var errs []string

	if v := GetEnv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := GetEnv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := GetEnv(envPrefix + "HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sHEALTH_PORT: invalid integer %q", envPrefix, v))
		} else {
			cfg.HealthPort = port
		}
	}

	for _, key := range providerSecretKeys {
		if v := getEnvWithFileFallback(providerEnvPrefix, key); v != "" {
			cfg.Provider[key] = v
		}
	}
	for _, key := range providerPlainKeys {
		if v := GetEnv(providerEnvPrefix + key); v != "" {
			cfg.Provider[key] = v
		}
	}

	return errs
}
