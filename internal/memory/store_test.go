package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
)

// fakeProvider returns a scripted response (or error) for every Chat call.
type fakeProvider struct {
	resp *providers.ChatResponse
	err  error
}

func (p *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return p.resp, p.err
}
func (p *fakeProvider) DefaultModel() string { return "fake-model" }
func (p *fakeProvider) Name() string         { return "fake" }

func newEntries(n int) []sessions.Entry {
	entries := make([]sessions.Entry, n)
	for i := range entries {
		entries[i] = sessions.Entry{Role: "user", Content: fmt.Sprintf("msg-%d", i)}
	}
	return entries
}

func TestNewStore_CreatesDirs(t *testing.T) {
	ws := t.TempDir()
	s, err := NewStore(ws)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, "memory", "merge_plans")); err != nil {
		t.Errorf("merge_plans dir should exist: %v", err)
	}
	if s.Dir() != filepath.Join(ws, "memory") {
		t.Errorf("Dir() = %q, want %q", s.Dir(), filepath.Join(ws, "memory"))
	}
}

func TestReadMemory_AbsentReturnsEmpty(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := s.ReadMemory(); got != "" {
		t.Errorf("ReadMemory() = %q, want empty string", got)
	}
}

func TestKeepCount(t *testing.T) {
	tests := []struct {
		window int
		want   int
	}{
		{0, 2},
		{2, 2},
		{4, 2},
		{10, 5},
		{-4, 2},
	}
	for _, tt := range tests {
		if got := keepCount(tt.window); got != tt.want {
			t.Errorf("keepCount(%d) = %d, want %d", tt.window, got, tt.want)
		}
	}
}

func TestConsolidate_EmptyTailNoOp(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := &sessions.Session{Key: "cli:local"}
	ok := s.Consolidate(context.Background(), &fakeProvider{}, "m", sess, false, 10)
	if !ok {
		t.Error("Consolidate() = false for an empty tail, want true (no-op)")
	}
}

func TestConsolidate_TailShorterThanKeepNoOp(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := &sessions.Session{Key: "cli:local", Messages: newEntries(3)}
	ok := s.Consolidate(context.Background(), &fakeProvider{}, "m", sess, false, 10)
	if !ok {
		t.Error("Consolidate() = false when tail <= keep, want true (no-op)")
	}
	if sess.LastConsolidated != 0 {
		t.Errorf("LastConsolidated = %d, want 0 (untouched)", sess.LastConsolidated)
	}
}

func TestConsolidate_ArchivesAndWritesFiles(t *testing.T) {
	ws := t.TempDir()
	s, err := NewStore(ws)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	sess := &sessions.Session{Key: "cli:local", Messages: newEntries(10)}
	provider := &fakeProvider{resp: &providers.ChatResponse{
		Content: `{"history_entry": "discussed ten messages", "memory_update": "user likes testing"}`,
	}}

	ok := s.Consolidate(context.Background(), provider, "m", sess, false, 10)
	if !ok {
		t.Fatal("Consolidate() = false, want true")
	}

	// keepCount(10) == 5, archiveLen = 10-5 = 5
	if sess.LastConsolidated != 5 {
		t.Errorf("LastConsolidated = %d, want 5", sess.LastConsolidated)
	}

	if got := s.ReadMemory(); got != "user likes testing" {
		t.Errorf("ReadMemory() = %q, want %q", got, "user likes testing")
	}

	history, err := os.ReadFile(filepath.Join(ws, "memory", "HISTORY.md"))
	if err != nil {
		t.Fatalf("read HISTORY.md: %v", err)
	}
	if !strings.Contains(string(history), "discussed ten messages") {
		t.Errorf("HISTORY.md = %q, want it to contain the history entry", history)
	}
}

func TestConsolidate_ArchiveAllResetsOffset(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := &sessions.Session{Key: "cli:local", Messages: newEntries(3)}
	provider := &fakeProvider{resp: &providers.ChatResponse{
		Content: `{"history_entry": "archived all", "memory_update": ""}`,
	}}

	ok := s.Consolidate(context.Background(), provider, "m", sess, true, 10)
	if !ok {
		t.Fatal("Consolidate() = false, want true")
	}
	if sess.LastConsolidated != 0 {
		t.Errorf("LastConsolidated = %d after archiveAll, want 0", sess.LastConsolidated)
	}
}

func TestConsolidate_LLMErrorLeavesSessionUntouched(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := &sessions.Session{Key: "cli:local", Messages: newEntries(10)}
	provider := &fakeProvider{err: fmt.Errorf("boom")}

	ok := s.Consolidate(context.Background(), provider, "m", sess, false, 10)
	if ok {
		t.Error("Consolidate() = true on LLM error, want false")
	}
	if sess.LastConsolidated != 0 {
		t.Errorf("LastConsolidated = %d after failed consolidation, want 0", sess.LastConsolidated)
	}
}

func TestConsolidate_MalformedResponseLeavesSessionUntouched(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := &sessions.Session{Key: "cli:local", Messages: newEntries(10)}
	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "not json"}}

	ok := s.Consolidate(context.Background(), provider, "m", sess, false, 10)
	if ok {
		t.Error("Consolidate() = true on malformed LLM response, want false")
	}
}

func TestParseConsolidationResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"history_entry": "e", "memory_update": "m"}`,
		},
		{
			name:    "fenced json",
			content: "```json\n{\"history_entry\": \"e\", \"memory_update\": \"m\"}\n```",
		},
		{
			name:    "missing history_entry",
			content: `{"history_entry": "", "memory_update": "m"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			content: "nope",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConsolidationResponse(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseConsolidationResponse(%q) error = %v, wantErr %v", tt.content, err, tt.wantErr)
			}
		})
	}
}
