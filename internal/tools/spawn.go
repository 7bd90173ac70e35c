package tools

import (
	"context"
	"fmt"
)

// SpawnOrigin is where a spawned subagent's summary re-enters the main
// loop: a system-channel InboundMessage addressed to
// "{Channel}:{ChatID}".
type SpawnOrigin struct {
	Channel string
	ChatID  string
}

// Spawner is the subset of *subagent.Manager the spawn tool depends on.
// Defined here (rather than imported) so internal/tools never imports
// internal/subagent, which itself imports internal/tools for *Registry.
type Spawner interface {
	Spawn(ctx context.Context, instructions, goal string, origin SpawnOrigin) (string, error)
}

// SpawnTool delegates to SubagentManager.Spawn. Only available to the main
// agent's registry — subagents never see it.
type SpawnTool struct {
	spawner Spawner
}

func NewSpawnTool(spawner Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner}
}

func (t *SpawnTool) Name() string { return "spawn" }

func (t *SpawnTool) Description() string {
	return "Delegate a focused sub-task to an isolated sub-agent. The sub-agent has its own tool " +
		"registry (no message/spawn/cron), no memory of this conversation, and reports back a summary " +
		"once it finishes."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instructions": map[string]interface{}{"type": "string", "description": "Task instructions for the sub-agent."},
			"goal":         map[string]interface{}{"type": "string", "description": "Optional high-level goal for context."},
		},
		"required": []string{"instructions"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	instructions, _ := args["instructions"].(string)
	if instructions == "" {
		return ErrorResult("instructions is required")
	}
	goal, _ := args["goal"].(string)

	origin := SpawnOrigin{
		Channel: ToolChannelFromCtx(ctx),
		ChatID:  ToolChatIDFromCtx(ctx),
	}

	ack, err := t.spawner.Spawn(ctx, instructions, goal, origin)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error: %v", err))
	}
	return NewResult(ack)
}
