// Package config loads and holds the runtime's single immutable-after-load
// configuration object. Recognized options are the ones named in the
// external interface contract; nothing here is read from a global.
package config

import "sync"

// Config is the root configuration for the agent runtime. Loaded once at
// startup; hot-reloaded in place (see watch.go) under mu so readers never
// observe a torn struct.
type Config struct {
	WorkspacePath string  `json:"workspacePath"`
	Model         string  `json:"model"`
	MaxIterations int     `json:"maxIterations"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"maxTokens"`
	MemoryWindow  int     `json:"memoryWindow"`

	Security  SecurityConfig  `json:"security"`
	Tools     ToolsConfig     `json:"tools"`
	Channels  ChannelsConfig  `json:"channels"`
	Cron      CronConfig      `json:"cron,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`

	Providers ProvidersConfig `json:"-"` // secrets: env-sourced only, never persisted

	mu sync.RWMutex
}

// SecurityConfig groups the redaction toggle.
type SecurityConfig struct {
	RedactSensitiveOutput bool `json:"redactSensitiveOutput"`
}

// ToolsConfig groups every tool's configuration.
type ToolsConfig struct {
	RestrictToWorkspace bool            `json:"restrictToWorkspace"`
	Exec                ExecToolConfig  `json:"exec"`
	Codex               CodexToolConfig `json:"codex"`
	Web                 WebToolsConfig  `json:"web"`

	McpServers map[string]*MCPServerConfig `json:"mcpServers,omitempty"`
}

// MCPServerConfig configures one MCP server connection.
type MCPServerConfig struct {
	Disabled   bool              `json:"disabled,omitempty"`
	Transport  string            `json:"transport"` // "stdio", "sse", "streamable-http"
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ToolPrefix string            `json:"toolPrefix,omitempty"`
	TimeoutSec int               `json:"timeoutSec,omitempty"`
}

// IsEnabled reports whether the server should be connected at startup.
func (c *MCPServerConfig) IsEnabled() bool {
	return c != nil && !c.Disabled
}

// ExecToolConfig configures the shell `exec` tool.
type ExecToolConfig struct {
	TimeoutSec int `json:"timeout"`
}

// CodexToolConfig configures codex_run / codex merge subprocess orchestration.
type CodexToolConfig struct {
	Enabled                 bool   `json:"enabled"`
	Command                 string `json:"command"`
	DefaultSandbox          string `json:"defaultSandbox"`
	AllowDangerousFullAccess bool  `json:"allowDangerousFullAccess"`
	AllowWorkspaceWrite     bool   `json:"allowWorkspaceWrite"`
	TimeoutSec              int    `json:"timeout"`
	MaxOutputChars          int    `json:"maxOutputChars"`
}

// WebToolsConfig groups web_search and browser_run configuration.
type WebToolsConfig struct {
	Search  WebSearchConfig  `json:"search"`
	Browser BrowserToolConfig `json:"browser"`
}

// WebSearchConfig selects and configures web_search providers.
type WebSearchConfig struct {
	Provider  string                        `json:"provider"`
	Providers map[string]WebSearchProvider `json:"providers"`
}

// WebSearchProvider is one provider's endpoint/credential pair.
type WebSearchProvider struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

// BrowserToolConfig configures browser_run.
type BrowserToolConfig struct {
	Enabled             bool   `json:"enabled"`
	DefaultBrowser      string `json:"defaultBrowser"`
	Headless            bool   `json:"headless"`
	TimeoutMs           int    `json:"timeoutMs"`
	MaxActions          int    `json:"maxActions"`
	MaxExtractChars     int    `json:"maxExtractChars"`
	StateDir            string `json:"stateDir"`
	ArtifactsDir        string `json:"artifactsDir"`
	AllowPrivateNetwork bool   `json:"allowPrivateNetwork"`
	BlockFileScheme     bool   `json:"blockFileScheme"`
	AutoInstallBrowsers bool   `json:"autoInstallBrowsers"`
}

// ChannelsConfig groups ambient channel-delivery toggles and per-channel
// enable/credential blocks. Concrete per-channel wire protocols are out of
// scope; this only carries what OutboundPolicy and the gateway need.
type ChannelsConfig struct {
	SendProgress  bool                     `json:"sendProgress"`
	SendToolHints bool                     `json:"sendToolHints"`
	Entries       map[string]ChannelEntry `json:"entries,omitempty"`
}

// ChannelEntry is a generic per-channel enable/credential block.
type ChannelEntry struct {
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// CronConfig configures the persistent cron store/dispatcher.
type CronConfig struct {
	StoreDir string `json:"storeDir,omitempty"`
}

// HeartbeatConfig configures the periodic self-trigger service.
type HeartbeatConfig struct {
	Every       string             `json:"every,omitempty"` // duration string, e.g. "30m"; "0m" disables
	ActiveHours *ActiveHoursConfig `json:"activeHours,omitempty"`
	Model       string             `json:"model,omitempty"`
	Target      string             `json:"target,omitempty"` // "last" (default), "none", or a channel id
	To          string             `json:"to,omitempty"`
}

// ActiveHoursConfig restricts heartbeats to a time window.
type ActiveHoursConfig struct {
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ProvidersConfig holds LLM provider credentials. Always env-sourced
// (GOCLAW_ANTHROPIC_API_KEY, etc.) — never round-tripped through the
// config file, the way the teacher treats DatabaseConfig.PostgresDSN.
type ProvidersConfig struct {
	AnthropicAPIKey string
	AnthropicAPIBase string
	OpenAIAPIKey    string
	OpenAIAPIBase   string
}

// ReplaceFrom copies all data fields from src into c, preserving c's
// mutex. Used by the hot-reload watcher so holders of *Config see the new
// values without re-fetching the pointer.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WorkspacePath = src.WorkspacePath
	c.Model = src.Model
	c.MaxIterations = src.MaxIterations
	c.Temperature = src.Temperature
	c.MaxTokens = src.MaxTokens
	c.MemoryWindow = src.MemoryWindow
	c.Security = src.Security
	c.Tools = src.Tools
	c.Channels = src.Channels
	c.Cron = src.Cron
	c.Heartbeat = src.Heartbeat
	c.Providers = src.Providers
}

// Snapshot returns a value copy safe to read without holding c.mu further.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	return cp
}
