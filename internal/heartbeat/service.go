// Package heartbeat implements the periodic self-trigger: on each tick the
// service asks the LLM, via a dedicated pseudo-tool schema, whether there
// is anything worth doing right now, grounded in the workspace's
// HEARTBEAT.md file.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// OnExecute runs tasks as a direct agent turn and returns its final
// content.
type OnExecute func(ctx context.Context, tasks string) (string, error)

var heartbeatToolDef = providers.ToolDefinition{
	Type: "function",
	Function: providers.ToolFunctionSchema{
		Name:        "heartbeat",
		Description: "Decide whether there is anything worth doing right now without being asked.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{"type": "string", "enum": []string{"run", "skip"}},
				"tasks":  map[string]interface{}{"type": "string", "description": "What to do, if action=run."},
			},
			"required": []string{"action"},
		},
	},
}

// Service periodically calls the LLM to decide whether to act.
type Service struct {
	workspace string
	provider  providers.Provider
	model     string
	onExecute OnExecute
	interval  time.Duration
	enabled   bool
	active    *config.ActiveHoursConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewService(workspace string, provider providers.Provider, model string, onExecute OnExecute, interval time.Duration, enabled bool, active *config.ActiveHoursConfig) *Service {
	return &Service{
		workspace: workspace,
		provider:  provider,
		model:     model,
		onExecute: onExecute,
		interval:  interval,
		enabled:   enabled,
		active:    active,
	}
}

// Start launches the periodic loop in a goroutine. Idempotent: a second
// call while already running is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if !s.enabled || s.interval <= 0 {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(runCtx)
}

// Stop cancels the running loop, if any.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.withinActiveHours(time.Now()) {
				continue
			}
			if _, err := s.TriggerNow(ctx); err != nil {
				slog.Error("heartbeat tick failed", "error", err)
			}
		}
	}
}

// TriggerNow runs one decision cycle immediately, outside the ticker.
// Returns the executed turn's content, or "" with a nil error when the
// model decided to skip.
func (s *Service) TriggerNow(ctx context.Context) (string, error) {
	grounding := s.readHeartbeatFile()

	messages := []providers.Message{
		{
			Role: "system",
			Content: "You are deciding whether to act autonomously right now. Consider the active tasks " +
				"below and call the heartbeat tool with action=run and a tasks description if something " +
				"needs doing, or action=skip otherwise.\n\n" + grounding,
		},
		{Role: "user", Content: "Should you act now?"},
	}

	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Messages: messages,
		Tools:    []providers.ToolDefinition{heartbeatToolDef},
		Model:    s.model,
	})
	if err != nil {
		return "", err
	}
	if !resp.HasToolCalls() {
		return "", nil
	}

	call := resp.ToolCalls[0]
	action, _ := call.Arguments["action"].(string)
	if action != "run" {
		return "", nil
	}
	tasks, _ := call.Arguments["tasks"].(string)
	if tasks == "" {
		return "", nil
	}
	if s.onExecute == nil {
		return "", fmt.Errorf("heartbeat decided to run but no executor is configured")
	}
	return s.onExecute(ctx, tasks)
}

func (s *Service) readHeartbeatFile() string {
	data, err := os.ReadFile(filepath.Join(s.workspace, "HEARTBEAT.md"))
	if err != nil {
		return "(no HEARTBEAT.md found)"
	}
	return string(data)
}

func (s *Service) withinActiveHours(now time.Time) bool {
	if s.active == nil || s.active.Start == "" || s.active.End == "" {
		return true
	}
	loc := time.Local
	if s.active.Timezone != "" {
		if l, err := time.LoadLocation(s.active.Timezone); err == nil {
			loc = l
		}
	}
	now = now.In(loc)
	start, err1 := time.ParseInLocation("15:04", s.active.Start, loc)
	end, err2 := time.ParseInLocation("15:04", s.active.End, loc)
	if err1 != nil || err2 != nil {
		return true
	}
	nowMinutes := now.Hour()*60 + now.Minute()
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()
	if startMinutes <= endMinutes {
		return nowMinutes >= startMinutes && nowMinutes < endMinutes
	}
	return nowMinutes >= startMinutes || nowMinutes < endMinutes // window wraps past midnight
}
