package heartbeat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

type fakeProvider struct {
	resp *providers.ChatResponse
	err  error
}

func (p *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return p.resp, p.err
}
func (p *fakeProvider) DefaultModel() string { return "fake" }
func (p *fakeProvider) Name() string         { return "fake" }

func toolCallResponse(action, tasks string) *providers.ChatResponse {
	args := map[string]interface{}{"action": action}
	if tasks != "" {
		args["tasks"] = tasks
	}
	return &providers.ChatResponse{
		ToolCalls: []providers.ToolCall{{ID: "1", Name: "heartbeat", Arguments: args}},
	}
}

func TestTriggerNow_SkipWhenModelDeclines(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("skip", "")}
	s := NewService(t.TempDir(), provider, "m", nil, time.Minute, true, nil)

	got, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if got != "" {
		t.Errorf("TriggerNow() = %q, want empty string on skip", got)
	}
}

func TestTriggerNow_NoToolCallIsSkip(t *testing.T) {
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "nothing to do"}}
	s := NewService(t.TempDir(), provider, "m", nil, time.Minute, true, nil)

	got, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if got != "" {
		t.Errorf("TriggerNow() = %q, want empty string when the model returns no tool call", got)
	}
}

func TestTriggerNow_RunInvokesExecutor(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("run", "water the plants")}
	var gotTasks string
	onExecute := func(ctx context.Context, tasks string) (string, error) {
		gotTasks = tasks
		return "did it", nil
	}
	s := NewService(t.TempDir(), provider, "m", onExecute, time.Minute, true, nil)

	got, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if got != "did it" {
		t.Errorf("TriggerNow() = %q, want %q", got, "did it")
	}
	if gotTasks != "water the plants" {
		t.Errorf("onExecute received tasks = %q, want %q", gotTasks, "water the plants")
	}
}

func TestTriggerNow_RunWithoutExecutorErrors(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("run", "do something")}
	s := NewService(t.TempDir(), provider, "m", nil, time.Minute, true, nil)

	if _, err := s.TriggerNow(context.Background()); err == nil {
		t.Error("TriggerNow() error = nil, want an error when no executor is configured")
	}
}

func TestTriggerNow_RunWithEmptyTasksIsSkip(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("run", "")}
	called := false
	onExecute := func(ctx context.Context, tasks string) (string, error) {
		called = true
		return "", nil
	}
	s := NewService(t.TempDir(), provider, "m", onExecute, time.Minute, true, nil)

	got, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if got != "" || called {
		t.Errorf("TriggerNow() = %q called=%v, want empty/false for run with empty tasks", got, called)
	}
}

func TestTriggerNow_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("provider down")}
	s := NewService(t.TempDir(), provider, "m", nil, time.Minute, true, nil)

	if _, err := s.TriggerNow(context.Background()); err == nil {
		t.Error("TriggerNow() error = nil, want the provider's error propagated")
	}
}

func TestTriggerNow_ReadsHeartbeatFile(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("check on the garden"), 0o644); err != nil {
		t.Fatalf("write HEARTBEAT.md: %v", err)
	}

	var gotSystemPrompt string
	provider := &capturingProvider{onChat: func(req providers.ChatRequest) {
		for _, m := range req.Messages {
			if m.Role == "system" {
				gotSystemPrompt = m.Content
			}
		}
	}, resp: toolCallResponse("skip", "")}

	s := NewService(ws, provider, "m", nil, time.Minute, true, nil)
	if _, err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if !strings.Contains(gotSystemPrompt, "check on the garden") {
		t.Errorf("system prompt = %q, want it to contain the HEARTBEAT.md contents", gotSystemPrompt)
	}
}

type capturingProvider struct {
	onChat func(providers.ChatRequest)
	resp   *providers.ChatResponse
}

func (p *capturingProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	if p.onChat != nil {
		p.onChat(req)
	}
	return p.resp, nil
}
func (p *capturingProvider) DefaultModel() string { return "fake" }
func (p *capturingProvider) Name() string         { return "fake" }

func TestWithinActiveHours(t *testing.T) {
	tests := []struct {
		name   string
		active *config.ActiveHoursConfig
		now    time.Time
		want   bool
	}{
		{
			name:   "nil config always active",
			active: nil,
			now:    time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "within simple window",
			active: &config.ActiveHoursConfig{Start: "09:00", End: "17:00"},
			now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "outside simple window",
			active: &config.ActiveHoursConfig{Start: "09:00", End: "17:00"},
			now:    time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:   "wraps past midnight, inside",
			active: &config.ActiveHoursConfig{Start: "22:00", End: "06:00"},
			now:    time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "wraps past midnight, outside",
			active: &config.ActiveHoursConfig{Start: "22:00", End: "06:00"},
			now:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Service{active: tt.active}
			if got := s.withinActiveHours(tt.now); got != tt.want {
				t.Errorf("withinActiveHours(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("skip", "")}
	s := NewService(t.TempDir(), provider, "m", nil, 10*time.Millisecond, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx) // second call is a no-op, must not panic or replace the running loop
	s.Stop()
	s.Stop() // second call is a no-op
}

func TestStart_DisabledIsNoOp(t *testing.T) {
	provider := &fakeProvider{resp: toolCallResponse("skip", "")}
	s := NewService(t.TempDir(), provider, "m", nil, time.Minute, false, nil)

	s.Start(context.Background())
	s.mu.Lock()
	running := s.cancel != nil
	s.mu.Unlock()
	if running {
		t.Error("Start() launched the loop even though enabled=false")
	}
}
