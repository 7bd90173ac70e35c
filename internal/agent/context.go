package agent

import (
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/redact"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
)

const systemPromptTemplate = `You are an autonomous agent operating out of the workspace at %s.
Channel: %s
Chat ID: %s

You have tools for the filesystem, shell, web search/fetch, browser automation, scheduling, and task tracking. Use them when they help; otherwise just answer directly.`

// ContextBuilder assembles the LLM message list for one turn: a system
// prompt, redacted conversation history, and the current user entry
// (optionally carrying image content).
type ContextBuilder struct {
	workspace string
	redactor  *redact.Redactor
}

func NewContextBuilder(workspace string, redactor *redact.Redactor) *ContextBuilder {
	return &ContextBuilder{workspace: workspace, redactor: redactor}
}

// BuildMessages returns [system, ...history, user]. history is expected to
// already be windowed by the caller (last memory_window entries).
func (b *ContextBuilder) BuildMessages(history []sessions.Entry, currentMessage string, media []string, channel, chatID string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, b.workspace, channel, chatID),
	})
	for _, e := range history {
		messages = append(messages, b.historyMessage(e))
	}
	messages = append(messages, b.userMessage(currentMessage, media))
	return messages
}

// historyMessage collapses a session entry down to role/content, redacted.
// Tool-call pairing metadata is intentionally not replayed into context —
// only the live turn's messages (see AddAssistantMessage/AddToolResult)
// carry it.
func (b *ContextBuilder) historyMessage(e sessions.Entry) providers.Message {
	return providers.Message{Role: e.Role, Content: b.redactor.Redact(e.Content)}
}

func (b *ContextBuilder) userMessage(content string, media []string) providers.Message {
	msg := providers.Message{Role: "user", Content: content}
	if len(media) > 0 {
		msg.Images = loadImages(media)
	}
	return msg
}

// AddAssistantMessage appends one assistant turn, preserving reasoning
// content when the provider surfaced one.
func (b *ContextBuilder) AddAssistantMessage(messages []providers.Message, content string, toolCalls []providers.ToolCall, reasoningContent string) []providers.Message {
	return append(messages, providers.Message{
		Role:             "assistant",
		Content:          content,
		ToolCalls:        toolCalls,
		ReasoningContent: reasoningContent,
	})
}

// AddToolResult appends a tool-result message keyed by call id and name.
func (b *ContextBuilder) AddToolResult(messages []providers.Message, callID, name, content string) []providers.Message {
	return append(messages, providers.Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: callID,
		Name:       name,
	})
}
