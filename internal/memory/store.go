// Package memory implements long-term consolidation of session history:
// an LLM-driven compression pass that moves old messages out of a
// Session's live log into MEMORY.md (current summary) and HISTORY.md
// (append-only timestamped entries).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
)

// Store owns MEMORY.md, HISTORY.md, and the merge_plans directory under
// workspace/memory/. All writes are serialized per session key by the
// caller (the agent loop holds the session's lock while consolidating).
type Store struct {
	dir string
}

// NewStore ensures workspace/memory/ (and merge_plans/ inside it) exist.
func NewStore(workspaceDir string) (*Store, error) {
	dir := filepath.Join(workspaceDir, "memory")
	if err := os.MkdirAll(filepath.Join(dir, "merge_plans"), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns workspace/memory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) memoryPath() string  { return filepath.Join(s.dir, "MEMORY.md") }
func (s *Store) historyPath() string { return filepath.Join(s.dir, "HISTORY.md") }

// ReadMemory returns the current MEMORY.md contents, or "" if absent.
func (s *Store) ReadMemory() string {
	data, err := os.ReadFile(s.memoryPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// consolidationResponse is the strict shape the consolidation prompt asks
// the model to return.
type consolidationResponse struct {
	HistoryEntry string `json:"history_entry"`
	MemoryUpdate string `json:"memory_update"`
}

// keepCount implements the memory-window keep formula: max(2, w/2).
// This is the variant spec's testable properties exercise (the
// alternative min(10, max(2, w/2)) formula was rejected - see DESIGN.md).
func keepCount(memoryWindow int) int {
	k := memoryWindow / 2
	if k < 2 {
		k = 2
	}
	return k
}

// Consolidate compresses a session's unconsolidated tail into the memory
// files. archiveAll collapses the entire tail (used by /new); otherwise
// only messages[lastConsolidated : len-keep] are archived, leaving the
// most recent `keep` messages live. Returns false (and leaves the session
// untouched) on any LLM or parse failure — never fatal to the caller.
func (s *Store) Consolidate(ctx context.Context, provider providers.Provider, model string, sess *sessions.Session, archiveAll bool, memoryWindow int) bool {
	tail := sess.Unconsolidated()
	if len(tail) == 0 {
		return true
	}

	var slice []sessions.Entry
	var newOffset int
	if archiveAll {
		slice = tail
		newOffset = len(sess.Messages)
	} else {
		keep := keepCount(memoryWindow)
		if len(tail) <= keep {
			return true
		}
		archiveLen := len(tail) - keep
		slice = tail[:archiveLen]
		newOffset = sess.LastConsolidated + archiveLen
	}

	prompt := buildConsolidationPrompt(slice, s.ReadMemory())
	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: "system", Content: consolidationSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		slog.Warn("memory.consolidate.llm_failed", "error", err)
		return false
	}

	parsed, err := parseConsolidationResponse(resp.Content)
	if err != nil {
		slog.Warn("memory.consolidate.parse_failed", "error", err)
		return false
	}

	if err := s.appendHistory(parsed.HistoryEntry); err != nil {
		slog.Warn("memory.consolidate.history_write_failed", "error", err)
		return false
	}
	if strings.TrimSpace(parsed.MemoryUpdate) != "" && parsed.MemoryUpdate != s.ReadMemory() {
		if err := s.writeMemory(parsed.MemoryUpdate); err != nil {
			slog.Warn("memory.consolidate.memory_write_failed", "error", err)
			return false
		}
	}

	if archiveAll {
		sess.LastConsolidated = 0
	} else {
		sess.LastConsolidated = newOffset
	}
	return true
}

const consolidationSystemPrompt = `You compress conversation history into durable memory. ` +
	`Respond with a single raw JSON object and nothing else: ` +
	`{"history_entry": string, "memory_update": string}. Both values must be strings.`

func buildConsolidationPrompt(entries []sessions.Entry, currentMemory string) string {
	var b strings.Builder
	b.WriteString("Current long-term memory:\n")
	if currentMemory == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(currentMemory)
		b.WriteString("\n")
	}
	b.WriteString("\nConversation messages to consolidate:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.Format(time.RFC3339), e.Role, e.Content)
	}
	return b.String()
}

// parseConsolidationResponse tolerates a leading/trailing markdown code
// fence around the JSON object.
func parseConsolidationResponse(content string) (consolidationResponse, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out consolidationResponse
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return consolidationResponse{}, fmt.Errorf("invalid consolidation response: %w", err)
	}
	if strings.TrimSpace(out.HistoryEntry) == "" {
		return consolidationResponse{}, fmt.Errorf("empty history_entry")
	}
	return out, nil
}

func (s *Store) appendHistory(entry string) error {
	f, err := os.OpenFile(s.historyPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line := fmt.Sprintf("## %s\n%s\n\n", time.Now().UTC().Format(time.RFC3339), entry)
	_, err = f.WriteString(line)
	return err
}

func (s *Store) writeMemory(content string) error {
	tmp, err := os.CreateTemp(s.dir, "memory-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, s.memoryPath()); err != nil {
		return err
	}
	cleanup = false
	return nil
}
