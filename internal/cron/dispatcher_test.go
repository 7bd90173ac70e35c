package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

type fakeRunner struct {
	processDirectResp string
	processDirectErr  error
	executeToolResp   string
	executeToolErr    error
}

func (r *fakeRunner) ProcessDirect(ctx context.Context, message, sessionKey, channel, chatID string) (string, error) {
	return r.processDirectResp, r.processDirectErr
}

func (r *fakeRunner) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	return r.executeToolResp, r.executeToolErr
}

func TestDispatchCronJob_SystemEvent(t *testing.T) {
	msgBus := bus.New(4)
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "system_event", Message: "wake up", Deliver: true, To: "local"}}

	result, err := DispatchCronJob(context.Background(), job, &fakeRunner{}, msgBus)
	if err != nil {
		t.Fatalf("DispatchCronJob: %v", err)
	}
	if result != "wake up" {
		t.Errorf("result = %q, want %q", result, "wake up")
	}

	out, ok := msgBus.TryConsumeOutbound()
	if !ok {
		t.Fatal("expected an outbound message to be published")
	}
	if out.Content != "wake up" || out.ChatID != "local" || out.Channel != "cli" {
		t.Errorf("outbound = %+v, want Content=\"wake up\" ChatID=local Channel=cli", out)
	}
}

func TestDispatchCronJob_NoDeliverPublishesNothing(t *testing.T) {
	msgBus := bus.New(4)
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "system_event", Message: "quiet", Deliver: false}}

	if _, err := DispatchCronJob(context.Background(), job, &fakeRunner{}, msgBus); err != nil {
		t.Fatalf("DispatchCronJob: %v", err)
	}

	if _, ok := msgBus.TryConsumeOutbound(); ok {
		t.Error("expected no outbound message when Deliver is false")
	}
}

func TestDispatchCronJob_ToolCall(t *testing.T) {
	msgBus := bus.New(4)
	runner := &fakeRunner{executeToolResp: "tool result"}
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "tool_call", ToolName: "noop"}}

	result, err := DispatchCronJob(context.Background(), job, runner, msgBus)
	if err != nil {
		t.Fatalf("DispatchCronJob: %v", err)
	}
	if result != "tool result" {
		t.Errorf("result = %q, want %q", result, "tool result")
	}
}

func TestDispatchCronJob_ToolCall_MissingToolName(t *testing.T) {
	msgBus := bus.New(4)
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "tool_call"}}

	result, err := DispatchCronJob(context.Background(), job, &fakeRunner{}, msgBus)
	if err != nil {
		t.Fatalf("DispatchCronJob: %v", err)
	}
	if result == "" {
		t.Error("result should describe the missing tool_name error")
	}
}

func TestDispatchCronJob_ToolCall_Error(t *testing.T) {
	msgBus := bus.New(4)
	runner := &fakeRunner{executeToolErr: fmt.Errorf("tool broke")}
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "tool_call", ToolName: "noop"}}

	result, err := DispatchCronJob(context.Background(), job, runner, msgBus)
	if err != nil {
		t.Fatalf("DispatchCronJob returned an error, want a formatted error string result: %v", err)
	}
	if result == "" {
		t.Error("result should contain the formatted tool error")
	}
}

func TestDispatchCronJob_AgentTurn(t *testing.T) {
	msgBus := bus.New(4)
	runner := &fakeRunner{processDirectResp: "agent reply"}
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "agent_turn", Message: "do the thing", Deliver: true, To: "local", Channel: "cli"}}

	result, err := DispatchCronJob(context.Background(), job, runner, msgBus)
	if err != nil {
		t.Fatalf("DispatchCronJob: %v", err)
	}
	if result != "agent reply" {
		t.Errorf("result = %q, want %q", result, "agent reply")
	}

	select {
	case <-time.After(time.Second):
		t.Fatal("expected outbound delivery")
	default:
	}
	out, ok := msgBus.TryConsumeOutbound()
	if !ok || out.Content != "agent reply" {
		t.Errorf("outbound = %+v ok=%v, want Content=\"agent reply\"", out, ok)
	}
}

func TestDispatchCronJob_AgentTurn_Error(t *testing.T) {
	msgBus := bus.New(4)
	runner := &fakeRunner{processDirectErr: fmt.Errorf("llm down")}
	job := CronJob{ID: "j1", Payload: CronPayload{Kind: "agent_turn", Message: "do the thing"}}

	if _, err := DispatchCronJob(context.Background(), job, runner, msgBus); err == nil {
		t.Error("DispatchCronJob() error = nil, want the agent's error propagated")
	}
}
