package codex

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/toolkit"
)

// RunTool is the `codex_run` tool: a single non-interactive codex CLI
// invocation for general coding or review tasks.
type RunTool struct {
	client *Client
}

func NewRunTool(workspace string, cfg config.CodexToolConfig, restrictToWorkspace bool) *RunTool {
	return &RunTool{client: NewClient(workspace, cfg, restrictToWorkspace)}
}

func (t *RunTool) Name() string { return "codex_run" }

func (t *RunTool) Description() string {
	return "Run Codex CLI non-interactively for coding tasks. Supports exec and review mode. " +
		"When allowDangerousFullAccess is enabled, full access is applied automatically."
}

func (t *RunTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"prompt":      map[string]interface{}{"type": "string", "minLength": 1, "description": "Task instructions for Codex"},
			"mode":        map[string]interface{}{"type": "string", "enum": []string{"exec", "review"}},
			"working_dir": map[string]interface{}{"type": "string"},
			"sandbox":     map[string]interface{}{"type": "string", "enum": []string{"read-only", "workspace-write", "danger-full-access"}},
			"model":       map[string]interface{}{"type": "string"},
			"timeout_sec": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 7200},
		},
		"required": []string{"prompt"},
	}
}

func (t *RunTool) Execute(ctx context.Context, args map[string]interface{}) *toolkit.Result {
	prompt, _ := args["prompt"].(string)
	mode, _ := args["mode"].(string)
	workingDir, _ := args["working_dir"].(string)
	sandbox, _ := args["sandbox"].(string)
	model, _ := args["model"].(string)
	var timeoutSec int
	if v, ok := args["timeout_sec"].(float64); ok {
		timeoutSec = int(v)
	}

	result := t.client.Run(ctx, RunOptions{
		Prompt: prompt, Mode: mode, WorkingDir: workingDir,
		Sandbox: sandbox, Model: model, TimeoutSec: timeoutSec,
	})

	encoded, err := json.Marshal(result)
	if err != nil {
		return toolkit.ErrorResult("failed to encode codex_run result")
	}
	if !result.OK {
		return toolkit.ErrorResult(string(encoded))
	}
	return toolkit.SilentResult(string(encoded))
}
