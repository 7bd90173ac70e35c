package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_HasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.Model == "" {
		t.Error("Default().Model is empty")
	}
	if cfg.MaxIterations <= 0 {
		t.Error("Default().MaxIterations should be positive")
	}
	if !cfg.Security.RedactSensitiveOutput {
		t.Error("Default().Security.RedactSensitiveOutput should be true")
	}
	if !cfg.Tools.RestrictToWorkspace {
		t.Error("Default().Tools.RestrictToWorkspace should be true")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load() on a missing file: %v", err)
	}
	if cfg.Model != Default().Model {
		t.Errorf("Load() on missing file = %q, want the default model %q", cfg.Model, Default().Model)
	}
}

func TestLoad_ParsesJSON5WithCommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	content := `{
		// a comment
		"model": "custom-model",
		"maxIterations": 99,
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", cfg.Model)
	}
	if cfg.MaxIterations != 99 {
		t.Errorf("MaxIterations = %d, want 99", cfg.MaxIterations)
	}
}

func TestLoad_InvalidJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not valid"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil for malformed config, want an error")
	}
}

func TestLoad_FillsDefaultSearchBaseURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"tools": {"web": {"search": {"providers": {"brave": {"apiKey": "x"}}}}}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Web.Search.Providers["brave"].BaseURL == "" {
		t.Error("Load() left brave's BaseURL empty after supplying only an apiKey")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GOCLAW_ANTHROPIC_API_KEY", "env-anthropic-key")
	t.Setenv("GOCLAW_OPENAI_API_KEY", "env-openai-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.AnthropicAPIKey != "env-anthropic-key" {
		t.Errorf("Providers.AnthropicAPIKey = %q, want env-anthropic-key", cfg.Providers.AnthropicAPIKey)
	}
	if cfg.Providers.OpenAIAPIKey != "env-openai-key" {
		t.Errorf("Providers.OpenAIAPIKey = %q, want env-openai-key", cfg.Providers.OpenAIAPIKey)
	}
}

func TestSave_NeverPersistsProviderSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Providers.AnthropicAPIKey = "super-secret-key"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if string(data) == "" {
		t.Fatal("saved config is empty")
	}
	if strings.Contains(string(data), "super-secret-key") {
		t.Error("saved config file contains the provider secret, want it excluded via json:\"-\"")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir available: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty path", "", ""},
		{"no tilde", "/abs/path", "/abs/path"},
		{"bare tilde", "~", home},
		{"tilde slash", "~/workspace", home + "/workspace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandHome(tt.path); got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
