// Package sessions implements per-conversation message logs: an
// append-only history keyed by "{channel}:{chat_id}", persisted one file
// per key with atomic replace.
package sessions

import (
	"encoding/json"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// RecentImageMetaKey is the metadata key under which the 2-turn image
// carry-over state is stashed: {"path": "...", "turns_left": N}.
const RecentImageMetaKey = "_recent_image_context"

// RecentImageFollowupTurns is how many turns after the image-bearing turn
// the image is still attached to outgoing context.
const RecentImageFollowupTurns = 2

// Entry is one append-only message in a Session's log.
type Entry struct {
	Role       string               `json:"role"` // user | assistant | tool | system
	Content    string               `json:"content"`
	ToolCalls  []providers.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	Name       string               `json:"name,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	ToolsUsed  []string             `json:"tools_used,omitempty"`

	// ReasoningContent preserves a model's chain-of-thought channel when
	// the provider surfaces one separately from Content.
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// RecentImageContext is the carry-over record for the last image-bearing
// turn, stored under Session.Metadata[RecentImageMetaKey].
type RecentImageContext struct {
	Path      string `json:"path"`
	TurnsLeft int    `json:"turns_left"`
}

// Session is the append-only, per-key conversation log. Messages before
// LastConsolidated are considered archived into the MemoryStore.
type Session struct {
	Key              string                 `json:"key"`
	Messages         []Entry                `json:"messages"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at"`
	LastConsolidated int                    `json:"last_consolidated"`
}

func newSession(key string) *Session {
	return &Session{
		Key:       key,
		Messages:  []Entry{},
		Metadata:  map[string]interface{}{},
		UpdatedAt: time.Now(),
	}
}

// RecentImage reads the carry-over image state, if any.
func (s *Session) RecentImage() (RecentImageContext, bool) {
	raw, ok := s.Metadata[RecentImageMetaKey]
	if !ok {
		return RecentImageContext{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return RecentImageContext{}, false
	}
	var r RecentImageContext
	if err := json.Unmarshal(b, &r); err != nil {
		return RecentImageContext{}, false
	}
	return r, r.Path != ""
}

// SetRecentImage stores or clears the carry-over image state.
func (s *Session) SetRecentImage(r *RecentImageContext) {
	if s.Metadata == nil {
		s.Metadata = map[string]interface{}{}
	}
	if r == nil {
		delete(s.Metadata, RecentImageMetaKey)
		return
	}
	s.Metadata[RecentImageMetaKey] = r
}

// Unconsolidated returns the message tail not yet archived into memory.
func (s *Session) Unconsolidated() []Entry {
	if s.LastConsolidated < 0 || s.LastConsolidated > len(s.Messages) {
		return s.Messages
	}
	return s.Messages[s.LastConsolidated:]
}
