package providers

import (
	"context"
	"encoding/json"
)

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Chat sends messages to the LLM and returns a response. Request/response
	// per turn only — this runtime has no token-level streaming protocol.
	// tools defines available tool schemas; model overrides the default.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// Option keys recognized in ChatRequest.Options by the HTTP adapters.
const (
	OptMaxTokens       = "max_tokens"
	OptTemperature     = "temperature"
	OptThinkingLevel   = "thinking_level"
	OptEnableThinking  = "enable_thinking"
	OptThinkingBudget  = "thinking_budget"
	OptReasoningEffort = "reasoning_effort"
)

// ChatRequest contains the input for a Chat/ChatStream call.
type ChatRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Model    string           `json:"model,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is the result from an LLM call.
type ChatResponse struct {
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	FinishReason     string     `json:"finish_reason"` // "stop", "tool_calls", "length"
	Usage            *Usage     `json:"usage,omitempty"`

	// Thinking carries Anthropic extended-thinking content, accumulated
	// across streamed deltas.
	Thinking string `json:"thinking,omitempty"`

	// RawAssistantContent preserves the provider's raw content-block array
	// (thinking blocks with their signatures, tool_use blocks) so a
	// follow-up turn can pass it straight back for tool-use continuation.
	RawAssistantContent json.RawMessage `json:"raw_assistant_content,omitempty"`
}

// HasToolCalls reports whether the response carries any tool call requests.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// StreamChunk is a piece of a streaming response.
type StreamChunk struct {
	Content   string `json:"content,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

// ImageContent represents a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string `json:"mime_type"` // e.g. "image/jpeg"
	Data     string `json:"data"`      // base64-encoded image bytes
}

// Message represents a conversation message.
type Message struct {
	Role             string         `json:"role"` // "system", "user", "assistant", "tool"
	Content          string         `json:"content"`
	Images           []ImageContent `json:"images,omitempty"` // vision: base64 images
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"` // for role="tool" responses
	Name             string         `json:"name,omitempty"`         // tool name, for role="tool" responses
	ReasoningContent string         `json:"reasoning_content,omitempty"`

	// RawAssistantContent is an assistant message's raw provider content
	// blocks, round-tripped from a prior ChatResponse.RawAssistantContent
	// so multi-turn tool use preserves thinking-block signatures.
	RawAssistantContent json.RawMessage `json:"raw_assistant_content,omitempty"`
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`

	// Metadata carries provider-specific passback data the request builder
	// must round-trip unchanged, e.g. Gemini's "thought_signature".
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the schema for a function tool.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_input_tokens,omitempty"`

	// ThinkingTokens estimates tokens spent on extended/reasoning thinking,
	// either reported directly (OpenAI's reasoning_tokens) or estimated from
	// accumulated thinking-content length (Anthropic, ~4 chars/token).
	ThinkingTokens int `json:"thinking_tokens,omitempty"`
}
