package challenge

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing field",
			err:  ErrConfigMissing("GLOBAL_KEY"),
			want: "configuration error: GLOBAL_KEY: required value is missing",
		},
		{
			name: "invalid value",
			err:  ErrConfigInvalid("TTL", "abc", "must be an integer"),
			want: `configuration error: TTL="abc": must be an integer`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("cloudflare", "set", nil) != nil {
		t.Error("expected nil for nil error")
	}

	wrapped := WrapError("cloudflare", "set", ErrZoneNotFound)
	if wrapped == nil {
		t.Fatal("expected non-nil error")
	}

	want := "provider cloudflare: set: no matching zone found"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}

	if !errors.Is(wrapped, ErrZoneNotFound) {
		t.Error("expected wrapped error to match ErrZoneNotFound")
	}

	var provErr *ProviderError
	if !errors.As(wrapped, &provErr) {
		t.Fatal("expected error to be a *ProviderError")
	}
	if provErr.Operation != "set" {
		t.Errorf("expected operation set, got %q", provErr.Operation)
	}
}

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		check func(error) bool
		err   error
		want  bool
	}{
		{"challenge required", IsChallengeRequired, ErrChallengeRequired, true},
		{"challenge required wrapped", IsChallengeRequired, fmt.Errorf("set: %w", ErrChallengeRequired), true},
		{"zone not found", IsZoneNotFound, ErrZoneNotFound, true},
		{"zone not found through provider error", IsZoneNotFound, WrapError("cloudflare", "remove", ErrZoneNotFound), true},
		{"record not found", IsRecordNotFound, ErrRecordNotFound, true},
		{"unauthorized", IsUnauthorized, ErrUnauthorized, true},
		{"mismatch", IsZoneNotFound, ErrRecordNotFound, false},
		{"nil", IsRecordNotFound, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
