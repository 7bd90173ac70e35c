// Package agent implements the main event loop: consume an inbound
// message, build LLM context from session history, run a bounded
// tool-calling iteration, persist the turn, redact, and reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/memory"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/redact"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
	"github.com/nextlevelbuilder/goclaw/internal/tools"
)

const (
	defaultMaxIterations  = 40
	maxPersistedToolChars = 500
	maxIterationsNotice   = "I've reached the maximum number of tool-calling steps for this turn and need to stop here."
	helpText              = "Commands:\n/new - archive this conversation to memory and start fresh\n/help - show this message"
	newSessionReply       = "New session started."
)

// LoopConfig wires a Loop to its collaborators. Config is passed through
// once at construction and never mutated by the loop itself.
type LoopConfig struct {
	Workspace     string
	Config        *config.Config
	Provider      providers.Provider
	Model         string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	MemoryWindow  int

	Sessions *sessions.Store
	Memory   *memory.Store
	Registry *tools.Registry
	Bus      *bus.Bus
	Redactor *redact.Redactor
}

// Loop is the main agent event loop. It implements cron.AgentRunner
// (ProcessDirect, ExecuteTool) so the cron dispatcher and the heartbeat
// service can drive it directly, outside of the bus.
type Loop struct {
	workspace     string
	cfg           *config.Config
	provider      providers.Provider
	model         string
	maxIterations int
	temperature   float64
	maxTokens     int
	memoryWindow  int

	sessionStore *sessions.Store
	memoryStore  *memory.Store
	registry     *tools.Registry
	msgBus       *bus.Bus
	redactor     *redact.Redactor
	outbound     *OutboundPolicy
	ctxBuilder   *ContextBuilder

	consolidating sync.Map // session key -> struct{}, in-flight guard

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewLoop(cfg LoopConfig) *Loop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	return &Loop{
		workspace:     cfg.Workspace,
		cfg:           cfg.Config,
		provider:      cfg.Provider,
		model:         cfg.Model,
		maxIterations: maxIter,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		memoryWindow:  cfg.MemoryWindow,
		sessionStore:  cfg.Sessions,
		memoryStore:   cfg.Memory,
		registry:      cfg.Registry,
		msgBus:        cfg.Bus,
		redactor:      cfg.Redactor,
		outbound:      NewOutboundPolicy(cfg.Workspace, cfg.Redactor),
		ctxBuilder:    NewContextBuilder(cfg.Workspace, cfg.Redactor),
		stopCh:        make(chan struct{}),
	}
}

// Stop flips a flag; Run drops out at its next ~1s consume timeout.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Run consumes inbound messages until Stop is called or ctx is done. A
// panic handling one message is caught and logged so it never takes down
// the loop for every other session.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		msg, ok := l.msgBus.ConsumeInbound(time.Second)
		if !ok {
			continue
		}
		l.safeHandleInbound(ctx, msg)
	}
}

func (l *Loop) safeHandleInbound(ctx context.Context, msg bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent: panic handling inbound message", "panic", r, "channel", msg.Channel, "chat_id", msg.ChatID)
		}
	}()
	l.handleInbound(ctx, msg)
}

func (l *Loop) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	channel := msg.Channel
	chatID := msg.ChatID
	fromSystem := false

	if channel == "system" {
		if origChannel, origChatID, ok := splitOrigin(chatID); ok {
			channel, chatID = origChannel, origChatID
			fromSystem = true
		}
	}
	sessionKey := channel + ":" + chatID

	content := strings.TrimSpace(msg.Content)
	switch content {
	case "/new":
		l.handleNewCommand(ctx, sessionKey, channel, chatID, msg.Metadata)
		return
	case "/help":
		l.reply(channel, chatID, msg.Metadata, helpText)
		return
	}

	l.processTurn(ctx, sessionKey, channel, chatID, msg.Content, msg.Media, msg.Metadata, fromSystem)
}

// splitOrigin parses "{orig_channel}:{orig_chat_id}" — the shape a
// subagent return or other system-channel message carries as chat_id.
func splitOrigin(chatID string) (channel, chat string, ok bool) {
	idx := strings.Index(chatID, ":")
	if idx < 0 {
		return "", "", false
	}
	return chatID[:idx], chatID[idx+1:], true
}

func (l *Loop) handleNewCommand(ctx context.Context, sessionKey, channel, chatID string, metadata map[string]string) {
	lock := l.sessionStore.Lock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sess := l.sessionStore.GetOrCreate(sessionKey)
	if !l.memoryStore.Consolidate(ctx, l.provider, l.model, sess, true, l.memoryWindow) {
		l.reply(channel, chatID, metadata, "Couldn't archive this conversation to memory, so nothing was cleared.")
		return
	}

	sess.Messages = []sessions.Entry{}
	sess.LastConsolidated = 0
	sess.SetRecentImage(nil)
	if err := l.sessionStore.Save(sess); err != nil {
		slog.Error("agent: save after /new failed", "session", sessionKey, "error", err)
	}
	l.sessionStore.Invalidate(sessionKey)
	l.reply(channel, chatID, metadata, newSessionReply)
}

func (l *Loop) processTurn(ctx context.Context, sessionKey, channel, chatID, content string, media []string, metadata map[string]string, fromSystem bool) {
	lock := l.sessionStore.Lock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sess := l.sessionStore.GetOrCreate(sessionKey)

	if l.memoryWindow > 0 && len(sess.Messages)-sess.LastConsolidated >= l.memoryWindow {
		if _, inFlight := l.consolidating.LoadOrStore(sessionKey, struct{}{}); !inFlight {
			go l.consolidateAsync(sessionKey)
		}
	}

	effectiveMedia := l.resolveEffectiveMedia(sess, media)

	toolCtx := tools.WithToolChannel(ctx, channel)
	toolCtx = tools.WithToolChatID(toolCtx, chatID)
	toolCtx = tools.WithToolMessageID(toolCtx, metadata["message_id"])
	toolCtx = tools.WithToolWorkspace(toolCtx, l.workspace)
	toolCtx = tools.WithToolOutbound(toolCtx, l.msgBus)
	sentFlag := false
	toolCtx = tools.WithToolSentFlag(toolCtx, &sentFlag)

	history := limitHistory(sess.Messages, l.memoryWindow)
	messages := l.ctxBuilder.BuildMessages(history, content, effectiveMedia, channel, chatID)
	initialLen := len(messages)

	finalContent, allMessages, toolsUsed, err := l.iterate(toolCtx, messages)
	if err != nil {
		slog.Error("agent: turn failed", "session", sessionKey, "error", err)
		l.reply(channel, chatID, metadata, "Sorry, something went wrong while processing your message.")
		return
	}
	if IsSilentReply(finalContent) {
		finalContent = ""
	}

	l.persistTurn(sess, content, fromSystem, allMessages, initialLen, finalContent, toolsUsed)

	if sentFlag && strings.TrimSpace(finalContent) == "" {
		return
	}
	l.reply(channel, chatID, metadata, finalContent)
}

// resolveEffectiveMedia implements the 2-turn image carry-over: a fresh
// image resets the counter; otherwise a still-live remembered image is
// appended and its counter decremented.
func (l *Loop) resolveEffectiveMedia(sess *sessions.Session, media []string) []string {
	if len(media) > 0 {
		sess.SetRecentImage(&sessions.RecentImageContext{
			Path:      media[0],
			TurnsLeft: sessions.RecentImageFollowupTurns,
		})
		return media
	}

	recent, ok := sess.RecentImage()
	if !ok || recent.TurnsLeft <= 0 {
		return media
	}
	effective := append(append([]string{}, media...), recent.Path)
	recent.TurnsLeft--
	if recent.TurnsLeft <= 0 {
		sess.SetRecentImage(nil)
	} else {
		sess.SetRecentImage(&recent)
	}
	return effective
}

// iterate runs the bounded tool-calling loop. A text-only response that
// precedes any tool use in this turn is suppressed and retried exactly
// once, the conservative choice for interim pre-tool-call narration;
// after that, or once at least one tool has run, a text-only response is
// final.
func (l *Loop) iterate(ctx context.Context, messages []providers.Message) (finalContent string, updated []providers.Message, toolsUsed []string, err error) {
	defs := l.registry.GetDefinitions()
	retried := false

	for i := 0; i < l.maxIterations; i++ {
		resp, chatErr := l.provider.Chat(ctx, providers.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    l.model,
			Options: map[string]interface{}{
				providers.OptMaxTokens:   l.maxTokens,
				providers.OptTemperature: l.temperature,
			},
		})
		if chatErr != nil {
			return "", messages, toolsUsed, fmt.Errorf("llm chat: %w", chatErr)
		}

		if !resp.HasToolCalls() {
			if len(toolsUsed) == 0 && !retried {
				retried = true
				continue
			}
			return SanitizeAssistantContent(resp.Content), messages, toolsUsed, nil
		}

		messages = l.ctxBuilder.AddAssistantMessage(messages, resp.Content, resp.ToolCalls, resp.ReasoningContent)
		for _, call := range resp.ToolCalls {
			toolsUsed = append(toolsUsed, call.Name)
			result := l.registry.Execute(ctx, call.Name, call.Arguments)
			messages = l.ctxBuilder.AddToolResult(messages, call.ID, call.Name, result.ForLLM)
		}
	}

	return maxIterationsNotice, messages, toolsUsed, nil
}

func limitHistory(messages []sessions.Entry, window int) []sessions.Entry {
	if window <= 0 || len(messages) <= window {
		return messages
	}
	return messages[len(messages)-window:]
}

// persistTurn appends the user entry and every assistant/tool message the
// iteration produced (messages[startIdx:]) plus the final assistant
// entry, truncating tool output and redacting along the way, then saves
// the session. User content is always redacted when the turn originated
// from a system-channel message (the subagent-return path).
func (l *Loop) persistTurn(sess *sessions.Session, userContent string, fromSystem bool, iterMessages []providers.Message, startIdx int, finalContent string, toolsUsed []string) {
	now := time.Now()

	userEntryContent := userContent
	if fromSystem {
		userEntryContent = l.redactor.Redact(userEntryContent)
	}
	sess.Messages = append(sess.Messages, sessions.Entry{Role: "user", Content: userEntryContent, Timestamp: now})

	for _, m := range iterMessages[startIdx:] {
		switch m.Role {
		case "assistant":
			sess.Messages = append(sess.Messages, sessions.Entry{
				Role:             "assistant",
				Content:          l.redactor.Redact(m.Content),
				ToolCalls:        m.ToolCalls,
				ReasoningContent: m.ReasoningContent,
				Timestamp:        now,
			})
		case "tool":
			sess.Messages = append(sess.Messages, sessions.Entry{
				Role:       "tool",
				Content:    l.redactor.Redact(truncateToolOutput(m.Content)),
				ToolCallID: m.ToolCallID,
				Name:       m.Name,
				Timestamp:  now,
			})
		}
	}

	if strings.TrimSpace(finalContent) != "" {
		sess.Messages = append(sess.Messages, sessions.Entry{
			Role:      "assistant",
			Content:   l.redactor.Redact(finalContent),
			ToolsUsed: toolsUsed,
			Timestamp: now,
		})
	}

	if err := l.sessionStore.Save(sess); err != nil {
		slog.Error("agent: persist turn failed", "session", sess.Key, "error", err)
	}
}

func truncateToolOutput(s string) string {
	if len(s) <= maxPersistedToolChars {
		return s
	}
	return s[:maxPersistedToolChars] + "... [truncated]"
}

func (l *Loop) reply(channel, chatID string, metadata map[string]string, content string) {
	out := bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content, Metadata: metadata}
	l.msgBus.PublishOutbound(l.outbound.RedactOutbound(out))
}

func (l *Loop) consolidateAsync(sessionKey string) {
	defer l.consolidating.Delete(sessionKey)

	lock := l.sessionStore.Lock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sess := l.sessionStore.GetOrCreate(sessionKey)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if l.memoryStore.Consolidate(ctx, l.provider, l.model, sess, false, l.memoryWindow) {
		if err := l.sessionStore.Save(sess); err != nil {
			slog.Error("agent: consolidation save failed", "session", sessionKey, "error", err)
		}
	}
}

// ProcessDirect runs one synchronous turn outside the bus, for CLI and
// cron use. sessionKey defaults to "{channel}:{chat_id}" when empty.
func (l *Loop) ProcessDirect(ctx context.Context, message, sessionKey, channel, chatID string) (string, error) {
	if channel == "" {
		channel = "cli"
	}
	if chatID == "" {
		chatID = "direct"
	}
	if sessionKey == "" {
		sessionKey = channel + ":" + chatID
	}

	lock := l.sessionStore.Lock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sess := l.sessionStore.GetOrCreate(sessionKey)

	toolCtx := tools.WithToolChannel(ctx, channel)
	toolCtx = tools.WithToolChatID(toolCtx, chatID)
	toolCtx = tools.WithToolWorkspace(toolCtx, l.workspace)
	toolCtx = tools.WithToolOutbound(toolCtx, l.msgBus)
	sentFlag := false
	toolCtx = tools.WithToolSentFlag(toolCtx, &sentFlag)

	history := limitHistory(sess.Messages, l.memoryWindow)
	messages := l.ctxBuilder.BuildMessages(history, message, nil, channel, chatID)
	initialLen := len(messages)

	finalContent, allMessages, toolsUsed, err := l.iterate(toolCtx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: process direct: %w", err)
	}

	l.persistTurn(sess, message, false, allMessages, initialLen, finalContent, toolsUsed)
	return l.redactor.Redact(finalContent), nil
}

// ExecuteTool dispatches one tool call directly, for the cron
// dispatcher's tool_call payload kind.
func (l *Loop) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result := l.registry.Execute(ctx, name, args)
	if result.IsError {
		return result.ForLLM, fmt.Errorf("%s", result.ForLLM)
	}
	return result.ForLLM, nil
}
