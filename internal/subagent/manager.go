// Package subagent implements isolated, single-shot delegate runs spawned
// by the main agent's `spawn` tool: a fresh tool registry (never carrying
// message/spawn/cron), no shared session state, a capped tool-calling
// iteration against the same LLM provider, and a final summary announced
// back to the main loop as a system-channel inbound message.
package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

const defaultMaxIterations = 12

// sessionKey is the inbound message's chat_id: "{channel}:{chat_id}".
func sessionKey(origin tools.SpawnOrigin) string {
	return origin.Channel + ":" + origin.ChatID
}

// Task tracks one spawned run.
type Task struct {
	ID           string
	Instructions string
	Goal         string
	Origin       tools.SpawnOrigin
	Status       string // "running", "completed", "failed"
	Summary      string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Manager spawns and tracks subagent runs.
type Manager struct {
	provider      providers.Provider
	model         string
	msgBus        *bus.Bus
	buildRegistry func() *tools.Registry
	maxIterations int

	tasks chan Task // completed tasks fan-in for observability; bounded, non-blocking drops are acceptable
}

func NewManager(provider providers.Provider, model string, msgBus *bus.Bus, buildRegistry func() *tools.Registry) *Manager {
	return &Manager{
		provider:      provider,
		model:         model,
		msgBus:        msgBus,
		buildRegistry: buildRegistry,
		maxIterations: defaultMaxIterations,
		tasks:         make(chan Task, 64),
	}
}

// Spawn starts a subagent run in a background goroutine and returns
// immediately with an acknowledgement string.
func (m *Manager) Spawn(ctx context.Context, instructions, goal string, origin tools.SpawnOrigin) (string, error) {
	if instructions == "" {
		return "", fmt.Errorf("instructions is required")
	}
	id := uuid.New().String()[:8]
	task := Task{
		ID:           id,
		Instructions: instructions,
		Goal:         goal,
		Origin:       origin,
		Status:       "running",
		StartedAt:    time.Now(),
	}

	runCtx := context.WithoutCancel(ctx)
	go m.run(runCtx, task)

	return fmt.Sprintf("Spawned subagent (id=%s) for: %s", id, truncate(instructions, 100)), nil
}

func (m *Manager) run(ctx context.Context, task Task) {
	registry := m.buildRegistry()

	systemPrompt := "You are a focused sub-agent. Complete the assigned task, then reply with a concise final summary. " +
		"You have no memory of prior conversations and cannot spawn further sub-agents."
	if task.Goal != "" {
		systemPrompt += "\nGoal: " + task.Goal
	}

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: task.Instructions},
	}

	summary, err := m.iterate(ctx, registry, messages)
	task.CompletedAt = time.Now()
	if err != nil {
		task.Status = "failed"
		task.Summary = fmt.Sprintf("Subagent failed: %v", err)
		slog.Error("subagent run failed", "id", task.ID, "error", err)
	} else {
		task.Status = "completed"
		task.Summary = summary
	}

	select {
	case m.tasks <- task:
	default:
	}

	m.msgBus.PublishInbound(bus.InboundMessage{
		Channel:            "system",
		ChatID:             sessionKey(task.Origin),
		Content:            task.Summary,
		SessionKeyOverride: "system:" + task.ID,
	})
}

func (m *Manager) iterate(ctx context.Context, registry *tools.Registry, messages []providers.Message) (string, error) {
	defs := registry.GetDefinitions()
	for i := 0; i < m.maxIterations; i++ {
		resp, err := m.provider.Chat(ctx, providers.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    m.model,
		})
		if err != nil {
			return "", err
		}
		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		messages = append(messages, providers.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result := registry.Execute(ctx, call.Name, call.Arguments)
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
	return "", fmt.Errorf("subagent exceeded %d tool-calling iterations", m.maxIterations)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
