package tools

import (
	"context"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
)

// Tool execution context keys. These replace mutable setter fields on tool
// instances, keeping tools safe for concurrent execution across sessions.
// Values are injected by the agent loop once per turn and read by
// individual tools during Execute (message, spawn, cron).

type toolContextKey string

const (
	ctxChannel   toolContextKey = "tool_channel"
	ctxChatID    toolContextKey = "tool_chat_id"
	ctxMessageID toolContextKey = "tool_message_id"
	ctxWorkspace toolContextKey = "tool_workspace"
	ctxAsyncCB   toolContextKey = "tool_async_cb"
	ctxSentFlag  toolContextKey = "tool_sent_in_turn"
	ctxOutbound  toolContextKey = "tool_outbound_bus"
)

func WithToolChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxChannel, channel)
}

func ToolChannelFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChannel).(string)
	return v
}

func WithToolChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, ctxChatID, chatID)
}

func ToolChatIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChatID).(string)
	return v
}

func WithToolMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, ctxMessageID, messageID)
}

func ToolMessageIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxMessageID).(string)
	return v
}

func WithToolWorkspace(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, ws)
}

func ToolWorkspaceFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}

// AsyncCallback lets a tool publish an outbound message asynchronously
// (after Execute has already returned an Async result).
type AsyncCallback func(content string)

func WithToolAsyncCB(ctx context.Context, cb AsyncCallback) context.Context {
	return context.WithValue(ctx, ctxAsyncCB, cb)
}

func ToolAsyncCBFromCtx(ctx context.Context) AsyncCallback {
	v, _ := ctx.Value(ctxAsyncCB).(AsyncCallback)
	return v
}

// WithToolSentFlag injects the turn-scoped "did the message tool already
// send something this turn" flag. The loop checks *flag after the
// tool-calling iteration to decide whether to suppress its own auto-reply.
func WithToolSentFlag(ctx context.Context, flag *bool) context.Context {
	return context.WithValue(ctx, ctxSentFlag, flag)
}

func ToolSentFlagFromCtx(ctx context.Context) *bool {
	v, _ := ctx.Value(ctxSentFlag).(*bool)
	return v
}

// OutboundPublisher is the minimal surface the message tool needs to
// deliver an outbound message; satisfied by *bus.Bus.
type OutboundPublisher interface {
	PublishOutbound(msg bus.OutboundMessage)
}

func WithToolOutbound(ctx context.Context, pub OutboundPublisher) context.Context {
	return context.WithValue(ctx, ctxOutbound, pub)
}

func ToolOutboundFromCtx(ctx context.Context) OutboundPublisher {
	v, _ := ctx.Value(ctxOutbound).(OutboundPublisher)
	return v
}
