package config

import "testing"

func TestMCPServerConfig_IsEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *MCPServerConfig
		want bool
	}{
		{"nil config", nil, false},
		{"enabled by default", &MCPServerConfig{}, true},
		{"explicitly disabled", &MCPServerConfig{Disabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_ReplaceFrom(t *testing.T) {
	c := &Config{Model: "old-model", MaxIterations: 1}
	src := &Config{
		Model:         "new-model",
		MaxIterations: 5,
		Tools: ToolsConfig{
			McpServers: map[string]*MCPServerConfig{
				"search": {Transport: "stdio", Command: "search-server"},
			},
		},
	}

	c.ReplaceFrom(src)

	if c.Model != "new-model" || c.MaxIterations != 5 {
		t.Errorf("after ReplaceFrom, Model=%q MaxIterations=%d, want new-model/5", c.Model, c.MaxIterations)
	}
	if len(c.Tools.McpServers) != 1 || c.Tools.McpServers["search"].Command != "search-server" {
		t.Errorf("McpServers not propagated by ReplaceFrom: %+v", c.Tools.McpServers)
	}
}

func TestConfig_Snapshot_IsIndependentCopy(t *testing.T) {
	c := &Config{Model: "m1"}
	snap := c.Snapshot()

	c.ReplaceFrom(&Config{Model: "m2"})

	if snap.Model != "m1" {
		t.Errorf("Snapshot() retained model %q after ReplaceFrom, want the original m1", snap.Model)
	}
	if c.Model != "m2" {
		t.Errorf("Config.Model = %q after ReplaceFrom, want m2", c.Model)
	}
}
