package cloudflare

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/acmeweaver/pkg/propagation"
)

func TestConfig_Validate_BearerToken(t *testing.T) {
	config := &Config{
		GlobalKey: "test-token",
	}

	err := config.Validate()
	if err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_Validate_LegacyKeyPair(t *testing.T) {
	config := &Config{
		APIKey:  "legacy-key",
		APIMail: "admin@example.com",
	}

	err := config.Validate()
	if err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_Validate_MissingCredentials(t *testing.T) {
	config := &Config{}

	err := config.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing credentials, got nil")
	}
	if !strings.Contains(err.Error(), "GLOBAL_KEY or API_KEY and API_MAIL is required") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestConfig_Validate_MutuallyExclusiveCredentials(t *testing.T) {
	config := &Config{
		GlobalKey: "test-token",
		APIKey:    "legacy-key",
		APIMail:   "admin@example.com",
	}

	err := config.Validate()
	if err == nil {
		t.Fatal("expected validation error for mixed credentials, got nil")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestConfig_Validate_IncompleteLegacyPair(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"key without mail", &Config{APIKey: "legacy-key"}},
		{"mail without key", &Config{APIMail: "admin@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), "API_KEY and API_MAIL must be set together") {
				t.Errorf("unexpected error message: %v", err)
			}
		})
	}
}

func TestConfig_Validate_InvalidMode(t *testing.T) {
	config := &Config{
		GlobalKey: "test-token",
		Mode:      "grpc",
	}

	err := config.Validate()
	if err == nil {
		t.Error("expected validation error for unknown mode, got nil")
	}
}

func TestConfig_Validate_InvalidTTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     int
		wantErr bool
	}{
		{"valid 120", 120, false},
		{"valid 60", 60, false},
		{"valid automatic", 1, false},
		{"valid 86400", 86400, false},
		{"invalid 30", 30, true},
		{"invalid 59", 59, true},
		{"negative", -1, true},
		{"zero is ok", 0, false}, // Zero TTL is allowed (default will be used)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				GlobalKey: "test-token",
				TTL:       tt.ttl,
			}

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TTL=%d: expected error=%v, got error=%v", tt.ttl, tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Validate_NegativePropagationSettings(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"negative wait", &Config{GlobalKey: "t", WaitFor: -time.Second}},
		{"negative retries", &Config{GlobalKey: "t", Retries: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestConfigFromMap_Defaults(t *testing.T) {
	config, err := ConfigFromMap(map[string]string{
		"GLOBAL_KEY": "test-token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Endpoint != DefaultAPIEndpoint {
		t.Errorf("expected endpoint %s, got %s", DefaultAPIEndpoint, config.Endpoint)
	}
	if config.Mode != ModeHTTP {
		t.Errorf("expected mode %s, got %s", ModeHTTP, config.Mode)
	}
	if config.TTL != DefaultTTL {
		t.Errorf("expected TTL %d, got %d", DefaultTTL, config.TTL)
	}
	if config.VerifyPropagation {
		t.Error("expected propagation verification off by default")
	}
	if config.WaitFor != propagation.DefaultWaitFor {
		t.Errorf("expected wait %v, got %v", propagation.DefaultWaitFor, config.WaitFor)
	}
	if config.Retries != propagation.DefaultRetries {
		t.Errorf("expected retries %d, got %d", propagation.DefaultRetries, config.Retries)
	}
	if config.Resolver != propagation.DefaultResolver {
		t.Errorf("expected resolver %s, got %s", propagation.DefaultResolver, config.Resolver)
	}
}

func TestConfigFromMap_FullSettings(t *testing.T) {
	config, err := ConfigFromMap(map[string]string{
		"API_KEY":            "legacy-key",
		"API_MAIL":           "admin@example.com",
		"ENDPOINT":           "http://custom-endpoint",
		"MODE":               "SDK",
		"TTL":                "300",
		"VERIFY_PROPAGATION": "yes",
		"WAIT_FOR":           "15",
		"RETRIES":            "5",
		"RESOLVER":           "8.8.8.8:53",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.APIKey != "legacy-key" || config.APIMail != "admin@example.com" {
		t.Errorf("unexpected credentials: %+v", config)
	}
	if config.Endpoint != "http://custom-endpoint" {
		t.Errorf("expected custom endpoint, got %s", config.Endpoint)
	}
	if config.Mode != ModeSDK {
		t.Errorf("expected mode normalized to %s, got %s", ModeSDK, config.Mode)
	}
	if config.TTL != 300 {
		t.Errorf("expected TTL 300, got %d", config.TTL)
	}
	if !config.VerifyPropagation {
		t.Error("expected propagation verification enabled")
	}
	if config.WaitFor != 15*time.Second {
		t.Errorf("expected wait 15s, got %v", config.WaitFor)
	}
	if config.Retries != 5 {
		t.Errorf("expected 5 retries, got %d", config.Retries)
	}
	if config.Resolver != "8.8.8.8:53" {
		t.Errorf("expected resolver 8.8.8.8:53, got %s", config.Resolver)
	}
}

func TestConfigFromMap_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
	}{
		{"bad ttl", map[string]string{"GLOBAL_KEY": "t", "TTL": "not-a-number"}},
		{"bad wait", map[string]string{"GLOBAL_KEY": "t", "WAIT_FOR": "soon"}},
		{"bad retries", map[string]string{"GLOBAL_KEY": "t", "RETRIES": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ConfigFromMap(tt.settings); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadConfig_Success(t *testing.T) {
	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY", "test-token")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_TTL", "600")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_VERIFY_PROPAGATION", "true")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.GlobalKey != "test-token" {
		t.Errorf("expected token test-token, got %s", config.GlobalKey)
	}
	if config.TTL != 600 {
		t.Errorf("expected TTL 600, got %d", config.TTL)
	}
	if !config.VerifyPropagation {
		t.Error("expected propagation verification enabled")
	}
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY", "")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY_FILE", "")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_API_KEY", "")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_API_KEY_FILE", "")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_API_MAIL", "")

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for missing credentials, got nil")
	}
}

func TestLoadConfig_KeyFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	keyFile := filepath.Join(tmpDir, "token")
	if err := os.WriteFile(keyFile, []byte("file-token\n"), 0600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY_FILE", keyFile)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.GlobalKey != "file-token" {
		t.Errorf("expected token from file 'file-token', got %s", config.GlobalKey)
	}
}

func TestLoadConfig_FilePrecedenceOverDirect(t *testing.T) {
	tmpDir := t.TempDir()
	keyFile := filepath.Join(tmpDir, "token")
	if err := os.WriteFile(keyFile, []byte("file-token"), 0600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	// Both direct and file are set - file should take precedence
	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY", "direct-token")
	t.Setenv("ACMEWEAVER_CLOUDFLARE_GLOBAL_KEY_FILE", keyFile)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.GlobalKey != "file-token" {
		t.Errorf("expected file token to take precedence, got %s", config.GlobalKey)
	}
}

func TestParseDurationSeconds(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"15", 15 * time.Second, false},
		{"0", 0, false},
		{"15s", 15 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{" 10 ", 10 * time.Second, false},
		{"soon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDurationSeconds(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDurationSeconds(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("parseDurationSeconds(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseBool(tt.input)
			if got != tt.want {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
