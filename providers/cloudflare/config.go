package cloudflare

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/acmeweaver/internal/config"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/propagation"
)

// DefaultTTL is the default TTL for ACME challenge TXT records.
// Challenge records are short-lived, so they stay close to Cloudflare's
// 60 second minimum.
const DefaultTTL = 120

// API client selection. ModeHTTP talks to the REST endpoints directly,
// ModeSDK goes through the official cloudflare-go client.
const (
	ModeHTTP = "http"
	ModeSDK  = "sdk"
)

// envPrefix is the environment variable prefix for Cloudflare settings.
const envPrefix = "ACMEWEAVER_CLOUDFLARE_"

// Config holds Cloudflare-specific configuration.
type Config struct {
	GlobalKey string // API token (Bearer authentication)
	APIKey    string // Legacy API key (requires APIMail)
	APIMail   string // Account email for legacy key authentication
	Endpoint  string // API endpoint (defaults to DefaultAPIEndpoint)
	Mode      string // API client mode: "http" or "sdk" (defaults to "http")

	TTL               int           // Record TTL (defaults to DefaultTTL)
	VerifyPropagation bool          // Confirm records via public DNS after set
	WaitFor           time.Duration // Delay between propagation checks
	Retries           int           // Number of propagation checks
	Resolver          string        // DNS resolver for propagation checks (host:port)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	hasBearer := c.GlobalKey != ""
	hasLegacy := c.APIKey != "" || c.APIMail != ""

	if !hasBearer && !hasLegacy {
		errs = append(errs, "GLOBAL_KEY or API_KEY and API_MAIL is required")
	}
	if hasBearer && hasLegacy {
		errs = append(errs, "GLOBAL_KEY and API_KEY/API_MAIL are mutually exclusive")
	}
	if !hasBearer && hasLegacy && (c.APIKey == "" || c.APIMail == "") {
		errs = append(errs, "API_KEY and API_MAIL must be set together")
	}
	if c.Mode != "" && c.Mode != ModeHTTP && c.Mode != ModeSDK {
		errs = append(errs, fmt.Sprintf("MODE must be %q or %q", ModeHTTP, ModeSDK))
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	// Cloudflare minimum TTL is 60 seconds (1 = automatic)
	if c.TTL > 0 && c.TTL < 60 && c.TTL != 1 {
		errs = append(errs, "TTL must be at least 60 seconds (or 1 for automatic)")
	}
	if c.WaitFor < 0 {
		errs = append(errs, "WAIT_FOR must be non-negative")
	}
	if c.Retries < 0 {
		errs = append(errs, "RETRIES must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("cloudflare config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Auth returns the API credentials carried by the config.
func (c *Config) Auth() Auth {
	return Auth{GlobalKey: c.GlobalKey, APIKey: c.APIKey, APIMail: c.APIMail}
}

// withDefaults fills unset optional fields in place and returns the config.
func (c *Config) withDefaults() *Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultAPIEndpoint
	}
	if c.Mode == "" {
		c.Mode = ModeHTTP
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.WaitFor == 0 {
		c.WaitFor = propagation.DefaultWaitFor
	}
	if c.Retries == 0 {
		c.Retries = propagation.DefaultRetries
	}
	if c.Resolver == "" {
		c.Resolver = propagation.DefaultResolver
	}
	return c
}

// LoadConfig loads Cloudflare configuration from environment variables.
// Environment variable pattern: ACMEWEAVER_CLOUDFLARE_{SETTING}
//
// Supported settings:
//   - GLOBAL_KEY: API token for Bearer authentication (supports _FILE suffix for Docker secrets)
//   - API_KEY: legacy API key (supports _FILE suffix, requires API_MAIL)
//   - API_MAIL: account email for legacy key authentication
//   - ENDPOINT: API endpoint override (optional)
//   - MODE: API client mode, "http" or "sdk" (optional, defaults to http)
//   - TTL: challenge record TTL in seconds (optional, defaults to 120)
//   - VERIFY_PROPAGATION: confirm new records via public DNS (optional, defaults to false)
//   - WAIT_FOR: delay between propagation checks, seconds or Go duration (optional, defaults to 10s)
//   - RETRIES: number of propagation checks (optional, defaults to 30)
//   - RESOLVER: DNS resolver for propagation checks (optional, defaults to 1.1.1.1:53)
func LoadConfig() (*Config, error) {
	settings := map[string]string{
		"GLOBAL_KEY":         config.GetEnvOrFile(envPrefix+"GLOBAL_KEY", envPrefix+"GLOBAL_KEY_FILE"),
		"API_KEY":            config.GetEnvOrFile(envPrefix+"API_KEY", envPrefix+"API_KEY_FILE"),
		"API_MAIL":           config.GetEnv(envPrefix + "API_MAIL"),
		"ENDPOINT":           config.GetEnv(envPrefix + "ENDPOINT"),
		"MODE":               config.GetEnv(envPrefix + "MODE"),
		"TTL":                config.GetEnv(envPrefix + "TTL"),
		"VERIFY_PROPAGATION": config.GetEnv(envPrefix + "VERIFY_PROPAGATION"),
		"WAIT_FOR":           config.GetEnv(envPrefix + "WAIT_FOR"),
		"RETRIES":            config.GetEnv(envPrefix + "RETRIES"),
		"RESOLVER":           config.GetEnv(envPrefix + "RESOLVER"),
	}

	cfg, err := ConfigFromMap(settings)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFromMap builds a Config from a settings map keyed by the same
// uppercase names the environment variables use (GLOBAL_KEY, API_KEY, ...).
// Unset optional fields receive their defaults. The config is not
// validated; New does that.
func ConfigFromMap(settings map[string]string) (*Config, error) {
	cfg := &Config{
		GlobalKey: settings["GLOBAL_KEY"],
		APIKey:    settings["API_KEY"],
		APIMail:   settings["API_MAIL"],
		Endpoint:  settings["ENDPOINT"],
		Mode:      strings.ToLower(strings.TrimSpace(settings["MODE"])),
		Resolver:  settings["RESOLVER"],
	}

	if ttlStr := settings["TTL"]; ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", ttlStr, err)
		}
		cfg.TTL = ttl
	}

	if verifyStr := settings["VERIFY_PROPAGATION"]; verifyStr != "" {
		cfg.VerifyPropagation = parseBool(verifyStr)
	}

	if waitStr := settings["WAIT_FOR"]; waitStr != "" {
		waitFor, err := parseDurationSeconds(waitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid WAIT_FOR value %q: %w", waitStr, err)
		}
		cfg.WaitFor = waitFor
	}

	if retriesStr := settings["RETRIES"]; retriesStr != "" {
		retries, err := strconv.Atoi(retriesStr)
		if err != nil {
			return nil, fmt.Errorf("invalid RETRIES value %q: %w", retriesStr, err)
		}
		cfg.Retries = retries
	}

	return cfg.withDefaults(), nil
}

// parseDurationSeconds parses a duration given either as a bare number of
// seconds ("15") or as a Go duration string ("15s", "2m").
func parseDurationSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseBool parses a boolean string.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
