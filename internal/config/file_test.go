package config

import (
	"path/filepath"
	"testing"
)

func TestLoadFile_YAML(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
logging:
  level: debug
  format: text
server:
  port: 9000
provider:
  global_key: yaml-token
  verify_propagation: "true"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging == nil || cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server == nil || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Provider["global_key"] != "yaml-token" {
		t.Errorf("unexpected provider config: %v", cfg.Provider)
	}
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeTempConfig(t, "config.toml", `
[logging]
level = "warn"
format = "json"

[server]
port = 9001

[provider]
api_key = "toml-key"
api_mail = "ops@example.com"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging == nil || cfg.Logging.Level != "warn" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server == nil || cfg.Server.Port != 9001 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Provider["api_key"] != "toml-key" || cfg.Provider["api_mail"] != "ops@example.com" {
		t.Errorf("unexpected provider config: %v", cfg.Provider)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yml", "logging: [not a map")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestLoadFile_Interpolation(t *testing.T) {
	t.Setenv("CF_TOKEN", "interp-token")

	path := writeTempConfig(t, "config.yml", `
provider:
  global_key: ${CF_TOKEN}
  resolver: ${MISSING_RESOLVER:-1.0.0.1:53}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider["global_key"] != "interp-token" {
		t.Errorf("expected interpolated token, got %q", cfg.Provider["global_key"])
	}
	if cfg.Provider["resolver"] != "1.0.0.1:53" {
		t.Errorf("expected default value, got %q", cfg.Provider["resolver"])
	}
}

func TestInterpolateEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${TEST_VAR}", "value"},
		{"unset variable", "${UNSET_VAR}", ""},
		{"unset with default", "${UNSET_VAR:-fallback}", "fallback"},
		{"set with default", "${TEST_VAR:-fallback}", "value"},
		{"embedded", "prefix-${TEST_VAR}-suffix", "prefix-value-suffix"},
		{"no pattern", "plain string", "plain string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InterpolateEnvVars(tt.input); got != tt.want {
				t.Errorf("InterpolateEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileConfigApply_NormalizesProviderKeys(t *testing.T) {
	cfg := &Config{Provider: make(map[string]string)}

	fileCfg := &FileConfig{Provider: map[string]string{"global_key": "tok", "TTL": "120"}}
	fileCfg.apply(cfg)

	if cfg.Provider["GLOBAL_KEY"] != "tok" {
		t.Errorf("expected uppercased GLOBAL_KEY, got %v", cfg.Provider)
	}
	if cfg.Provider["TTL"] != "120" {
		t.Errorf("expected TTL preserved, got %v", cfg.Provider)
	}
}

func TestGetConfigFilePath(t *testing.T) {
	if got := GetConfigFilePath(); got != "" {
		t.Errorf("expected empty path when unset, got %q", got)
	}

	t.Setenv("ACMEWEAVER_CONFIG", "/etc/acmeweaver/config.yml")
	if got := GetConfigFilePath(); got != "/etc/acmeweaver/config.yml" {
		t.Errorf("unexpected path %q", got)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
