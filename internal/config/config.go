// Package config handles loading and validation of ACMEWeaver configuration
// from environment variables and an optional YAML or TOML config file.
//
// Environment variables always win over file values. Secrets support the
// _FILE suffix pattern so credentials can arrive as Docker secrets.
package config

// Global configuration defaults.
const (
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultHealthPort = 8080
)

// envPrefix is the prefix for all ACMEWeaver environment variables.
const envPrefix = "ACMEWEAVER_"

// providerEnvPrefix is the prefix for provider-specific settings.
const providerEnvPrefix = envPrefix + "CLOUDFLARE_"

// Config holds the complete application configuration.
type Config struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// HealthPort is the port for the ops server (health, metrics,
	// challenge endpoints in serve mode).
	HealthPort int

	// Provider holds Cloudflare settings keyed by the uppercase names the
	// environment variables use (GLOBAL_KEY, API_KEY, API_MAIL, ...).
	// The provider package interprets and validates them.
	Provider map[string]string
}

// providerKeys are the recognized provider setting names. The first two are
// secrets and support the _FILE suffix.
var providerSecretKeys = []string{"GLOBAL_KEY", "API_KEY"}

var providerPlainKeys = []string{
	"API_MAIL",
	"ENDPOINT",
	"MODE",
	"TTL",
	"VERIFY_PROPAGATION",
	"WAIT_FOR",
	"RETRIES",
	"RESOLVER",
}
