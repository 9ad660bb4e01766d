package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validateConfig checks the merged configuration. Provider settings beyond
// key presence are validated by the provider package, which owns their
// semantics.
func validateConfig(cfg *Config) []string {
	var errs []string

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("%sLOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", envPrefix, cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("%sLOG_FORMAT: invalid value %q (must be json or text)", envPrefix, cfg.LogFormat))
	}

	if cfg.HealthPort < 1 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("%sHEALTH_PORT: must be between 1 and 65535, got %d", envPrefix, cfg.HealthPort))
	}

	known := make(map[string]bool, len(providerSecretKeys)+len(providerPlainKeys))
	for _, key := range providerSecretKeys {
		known[key] = true
	}
	for _, key := range providerPlainKeys {
		known[key] = true
	}
	for key := range cfg.Provider {
		if !known[key] {
			errs = append(errs, fmt.Sprintf("provider: unknown setting %q", key))
		}
	}

	return errs
}
