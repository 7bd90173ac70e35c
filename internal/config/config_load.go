package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		WorkspacePath: "~/.nanobot/workspace",
		Model:         "claude-sonnet-4-5-20250929",
		MaxIterations: 40,
		Temperature:   0.7,
		MaxTokens:     8192,
		MemoryWindow:  40,
		Security: SecurityConfig{
			RedactSensitiveOutput: true,
		},
		Tools: ToolsConfig{
			RestrictToWorkspace: true,
			Exec:                ExecToolConfig{TimeoutSec: 30},
			Codex: CodexToolConfig{
				Enabled:        false,
				Command:        "codex",
				DefaultSandbox: "read-only",
				TimeoutSec:     300,
				MaxOutputChars: 20000,
			},
			Web: WebToolsConfig{
				Search: WebSearchConfig{
					Provider: "brave",
					Providers: map[string]WebSearchProvider{
						"brave":  {BaseURL: "https://api.search.brave.com/res/v1/web/search"},
						"tavily": {BaseURL: "https://api.tavily.com/search"},
						"serper": {BaseURL: "https://google.serper.dev/search"},
					},
				},
				Browser: BrowserToolConfig{
					Enabled:             true,
					DefaultBrowser:      "chromium",
					Headless:            true,
					TimeoutMs:           30000,
					MaxActions:          20,
					MaxExtractChars:     8000,
					BlockFileScheme:     true,
					AutoInstallBrowsers: true,
				},
			},
		},
		Channels: ChannelsConfig{
			SendProgress:  true,
			SendToolHints: true,
		},
	}
}

// Load reads config from a JSON5 file (tolerant of comments/trailing
// commas, matching hand-edited config files), migrates legacy field
// shapes, and overlays secrets from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	migrateLegacyFields(raw)

	migrated, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: re-marshal after migration: %w", err)
	}
	if err := json.Unmarshal(migrated, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	fillDefaultBaseURLs(cfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

// fillDefaultBaseURLs fills provider baseUrls left empty after a user
// supplies only an apiKey.
func fillDefaultBaseURLs(cfg *Config) {
	defaults := map[string]string{
		"brave":  "https://api.search.brave.com/res/v1/web/search",
		"tavily": "https://api.tavily.com/search",
		"serper": "https://google.serper.dev/search",
	}
	if cfg.Tools.Web.Search.Providers == nil {
		cfg.Tools.Web.Search.Providers = map[string]WebSearchProvider{}
	}
	for name, baseURL := range defaults {
		p := cfg.Tools.Web.Search.Providers[name]
		if p.BaseURL == "" {
			p.BaseURL = baseURL
			cfg.Tools.Web.Search.Providers[name] = p
		}
	}
}

// applyEnvOverrides loads secrets that are never persisted to disk.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("GOCLAW_ANTHROPIC_API_KEY", &c.Providers.AnthropicAPIKey)
	envStr("GOCLAW_ANTHROPIC_BASE_URL", &c.Providers.AnthropicAPIBase)
	envStr("GOCLAW_OPENAI_API_KEY", &c.Providers.OpenAIAPIKey)
	envStr("GOCLAW_OPENAI_BASE_URL", &c.Providers.OpenAIAPIBase)

	if c.Tools.Web.Search.Providers == nil {
		c.Tools.Web.Search.Providers = map[string]WebSearchProvider{}
	}
	envProviderKey := func(envKey, provider string) {
		if v := os.Getenv(envKey); v != "" {
			p := c.Tools.Web.Search.Providers[provider]
			p.APIKey = v
			c.Tools.Web.Search.Providers[provider] = p
		}
	}
	envProviderKey("GOCLAW_BRAVE_API_KEY", "brave")
	envProviderKey("GOCLAW_TAVILY_API_KEY", "tavily")
	envProviderKey("GOCLAW_SERPER_API_KEY", "serper")
}

// Save writes the config to a JSON file. Secrets (Providers) are never
// written — they round-trip through the environment only.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
		return home + path[1:]
	}
	return home
}
