package cron

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// AgentRunner is the minimal surface DispatchCronJob needs from the agent
// loop and its tool registry; satisfied by *agent.Loop.
type AgentRunner interface {
	ProcessDirect(ctx context.Context, message, sessionKey, channel, chatID string) (string, error)
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// DispatchCronJob executes one due job's payload and, if configured,
// publishes the result to the outbound bus.
func DispatchCronJob(ctx context.Context, job CronJob, runner AgentRunner, msgBus *bus.Bus) (string, error) {
	deliver := func(content string) {
		if !job.Payload.Deliver || job.Payload.To == "" {
			return
		}
		channel := job.Payload.Channel
		if channel == "" {
			channel = "cli"
		}
		msgBus.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: job.Payload.To, Content: content})
	}

	switch job.Payload.Kind {
	case "system_event":
		message := job.Payload.Message
		deliver(message)
		return message, nil

	case "tool_call":
		toolName := job.Payload.ToolName
		if toolName == "" {
			result := "Error: tool_name is required for tool_call payload"
			deliver(result)
			return result, nil
		}
		result, err := runner.ExecuteTool(ctx, toolName, job.Payload.ToolArgs)
		if err != nil {
			result = fmt.Sprintf("Error: %v", err)
		}
		deliver(result)
		return result, nil

	default: // "agent_turn"
		channel := job.Payload.Channel
		if channel == "" {
			channel = "cli"
		}
		chatID := job.Payload.To
		if chatID == "" {
			chatID = "direct"
		}
		response, err := runner.ProcessDirect(ctx, job.Payload.Message, "cron:"+job.ID, channel, chatID)
		if err != nil {
			return "", err
		}
		deliver(response)
		return response, nil
	}
}
