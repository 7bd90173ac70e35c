package mcp

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

func TestStart_NoConfigsIsNoOp(t *testing.T) {
	m := NewManager(tools.NewRegistry())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() with no configured servers: %v", err)
	}
	if len(m.ServerStatus()) != 0 {
		t.Errorf("ServerStatus() = %v, want none with no configs", m.ServerStatus())
	}
}

func TestStart_SkipsDisabledServers(t *testing.T) {
	m := NewManager(tools.NewRegistry(), WithConfigs(map[string]*config.MCPServerConfig{
		"disabled-server": {Disabled: true, Transport: "stdio", Command: "echo"},
	}))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() with only disabled servers should not attempt a connection: %v", err)
	}
	if len(m.ServerStatus()) != 0 {
		t.Errorf("ServerStatus() = %v, want none (disabled server never connects)", m.ServerStatus())
	}
}

func TestStop_OnEmptyManagerIsSafe(t *testing.T) {
	m := NewManager(tools.NewRegistry())
	m.Stop() // must not panic with no connected servers
	if len(m.ServerStatus()) != 0 {
		t.Error("ServerStatus() non-empty after Stop() on an empty manager")
	}
}

func TestReload_WithNoConfigsIsNoOp(t *testing.T) {
	m := NewManager(tools.NewRegistry())
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() with no configs: %v", err)
	}
}
