package tools

import (
	"context"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// MessageTool sends a free-form outbound message to the current
// channel/chat mid-turn. Only available to the main agent's registry.
type MessageTool struct{}

func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) Name() string { return "message" }

func (t *MessageTool) Description() string {
	return "Send a message to the user on the current channel/chat before finishing the turn."
}

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{"type": "string", "description": "Message content to send."},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content, _ := args["content"].(string)
	if content == "" {
		return ErrorResult("content is required")
	}

	pub := ToolOutboundFromCtx(ctx)
	if pub == nil {
		return ErrorResult("no outbound channel available in this context")
	}
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	if channel == "" || chatID == "" {
		return ErrorResult("no session context (channel/chat_id)")
	}

	pub.PublishOutbound(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content})

	if flag := ToolSentFlagFromCtx(ctx); flag != nil {
		*flag = true
	}
	return SilentResult("Message sent.")
}
