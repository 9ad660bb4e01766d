package challenge

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by challenge providers.
// Use errors.Is to check for these conditions.
var (
	// ErrChallengeRequired is returned when a lifecycle method is invoked
	// without a challenge argument.
	ErrChallengeRequired = errors.New("challenge is required: this provider supports Greenlock v2.7+ and ACME.js v3+")

	// ErrZoneNotFound is returned when no zone in the account is a suffix
	// of the challenge record name.
	ErrZoneNotFound = errors.New("no matching zone found")

	// ErrRecordNotFound is returned when no TXT record exists at the
	// challenge record name.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnauthorized is returned when the provider rejects the configured
	// credentials.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrProviderUnavailable is returned when the provider API cannot be
	// reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ConfigError describes invalid provider configuration.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ErrConfigMissing creates a ConfigError for a missing required field.
func ErrConfigMissing(field string) error {
	return &ConfigError{Field: field, Message: "required value is missing"}
}

// ErrConfigInvalid creates a ConfigError for an invalid field value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// ProviderError wraps an error with provider and operation context.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider and operation context.
// Returns nil if err is nil.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Operation: operation, Err: err}
}

// IsChallengeRequired reports whether err indicates a missing challenge
// argument.
func IsChallengeRequired(err error) bool {
	return errors.Is(err, ErrChallengeRequired)
}

// IsZoneNotFound reports whether err indicates an unresolvable zone.
func IsZoneNotFound(err error) bool {
	return errors.Is(err, ErrZoneNotFound)
}

// IsRecordNotFound reports whether err indicates a missing TXT record.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsUnauthorized reports whether err indicates rejected credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
