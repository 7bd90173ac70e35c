package todo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	dataStartMarker = "<!-- TODO_DATA_START -->"
	dataEndMarker   = "<!-- TODO_DATA_END -->"

	autoReviewStartMarker = "<!-- TODO_AUTO_REVIEW_START -->"
	autoReviewEndMarker   = "<!-- TODO_AUTO_REVIEW_END -->"
)

var autoReviewBlock = autoReviewStartMarker + "\n" +
	"- [ ] Daily TODO review: use `todo(action=\"review_daily\")`; if it runs, summarize key changes briefly.\n" +
	autoReviewEndMarker

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
var autoReviewBlockRe = regexp.MustCompile("(?s)" + regexp.QuoteMeta(autoReviewStartMarker) + ".*?" + regexp.QuoteMeta(autoReviewEndMarker))

func nowISO() string {
	return time.Now().Format("2006-01-02T15:04:05")
}

func todayDate() string {
	return time.Now().Format("2006-01-02")
}

// Storage persists a Store to a markdown file with an embedded JSON block.
type Storage struct {
	workspace      string
	memoryDir      string
	todoPath       string
	todoBackupPath string
	heartbeatPath  string
}

func NewStorage(workspace string) *Storage {
	memoryDir := filepath.Join(workspace, "memory")
	return &Storage{
		workspace:      workspace,
		memoryDir:      memoryDir,
		todoPath:       filepath.Join(memoryDir, "todo.md"),
		todoBackupPath: filepath.Join(memoryDir, "todo.md.bak"),
		heartbeatPath:  filepath.Join(workspace, "HEARTBEAT.md"),
	}
}

func (s *Storage) createDefaultStore() Store {
	now := nowISO()
	return Store{
		Meta: Meta{Version: 1, LastID: 0, CreatedAt: now, UpdatedAt: now},
	}
}

func (s *Storage) InitStore() (Store, error) {
	store := s.createDefaultStore()
	if err := s.SaveStore(store); err != nil {
		return Store{}, err
	}
	if err := s.EnsureAutoReviewBlock(); err != nil {
		return Store{}, err
	}
	return store, nil
}

func (s *Storage) LoadOrInitStore() (Store, error) {
	if _, err := os.Stat(s.todoPath); os.IsNotExist(err) {
		return s.InitStore()
	}
	return s.LoadStore()
}

func (s *Storage) LoadStore() (Store, error) {
	data, err := os.ReadFile(s.todoPath)
	if err != nil {
		return Store{}, fmt.Errorf("TODO file not found: %s", s.todoPath)
	}
	return extractPayload(string(data))
}

// SaveStore atomically replaces todo.md and writes a single backup of the
// previous contents.
func (s *Storage) SaveStore(store Store) error {
	if err := os.MkdirAll(s.memoryDir, 0o755); err != nil {
		return err
	}
	markdown := renderMarkdown(store)

	if current, err := os.ReadFile(s.todoPath); err == nil {
		_ = os.WriteFile(s.todoBackupPath, current, 0o644)
	}

	tmp := s.todoPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(markdown), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.todoPath)
}

// EnsureAutoReviewBlock ensures HEARTBEAT.md contains the managed daily
// TODO review reminder block.
func (s *Storage) EnsureAutoReviewBlock() error {
	var content string
	if data, err := os.ReadFile(s.heartbeatPath); err == nil {
		content = string(data)
	} else {
		content = "# Heartbeat Tasks\n\n" +
			"This file is checked periodically by the agent.\n\n" +
			"## Active Tasks\n\n" +
			"## Completed\n"
	}

	var next string
	if autoReviewBlockRe.MatchString(content) {
		next = autoReviewBlockRe.ReplaceAllString(content, autoReviewBlock)
	} else {
		suffix := "\n\n"
		if len(content) > 0 && content[len(content)-1] == '\n' {
			suffix = "\n"
		}
		next = content + suffix + autoReviewBlock + "\n"
	}

	if next == content {
		return nil
	}
	return os.WriteFile(s.heartbeatPath, []byte(next), 0o644)
}

func extractPayload(markdown string) (Store, error) {
	startIdx := strings.Index(markdown, dataStartMarker)
	endIdx := strings.Index(markdown, dataEndMarker)
	if startIdx < 0 || endIdx < 0 || endIdx <= startIdx {
		return Store{}, fmt.Errorf("invalid TODO file: data block markers are missing or malformed; run todo(action='init') to repair")
	}

	segment := markdown[startIdx+len(dataStartMarker) : endIdx]
	match := jsonFenceRe.FindStringSubmatch(segment)
	if match == nil {
		return Store{}, fmt.Errorf("invalid TODO file: JSON fenced block not found between data markers; run todo(action='init') to repair")
	}

	var store Store
	if err := json.Unmarshal([]byte(match[1]), &store); err != nil {
		return Store{}, fmt.Errorf("invalid TODO file: data JSON parse failed (%v); repair the JSON block or run todo(action='init')", err)
	}
	return store, nil
}

var statusOrder = []Status{StatusTodo, StatusDoing, StatusBlocked, StatusDone, StatusArchived}
var statusSectionTitles = map[Status]string{
	StatusTodo:     "TODO",
	StatusDoing:    "DOING",
	StatusBlocked:  "BLOCKED",
	StatusDone:     "DONE",
	StatusArchived: "ARCHIVED",
}

func renderMarkdown(store Store) string {
	var b []byte
	write := func(s string) { b = append(b, s...) }

	write("# TODO Board\n\n")
	write("Managed by the `todo` tool. Manual edits are allowed in board text,\n")
	write("but keep the JSON data block valid.\n\n")
	write(fmt.Sprintf("_Last rendered: %s_\n\n", nowISO()))
	write("## Board\n\n")

	for _, status := range statusOrder {
		write(fmt.Sprintf("### %s\n", statusSectionTitles[status]))
		var group []Item
		for _, item := range store.Items {
			if item.Status == status {
				group = append(group, item)
			}
		}
		if len(group) == 0 {
			write("- (empty)\n\n")
			continue
		}
		for _, item := range group {
			checkbox := "[ ]"
			if status == StatusDone || status == StatusArchived {
				checkbox = "[x]"
			}
			headline := fmt.Sprintf("- %s %s | P%d", checkbox, item.ID, item.Priority)
			if item.Due != nil {
				headline += fmt.Sprintf(" | due:%s", *item.Due)
			}
			headline += fmt.Sprintf(" | %s", item.Title)
			write(headline + "\n")
			if len(item.Tags) > 0 {
				write("  tags: " + strings.Join(item.Tags, ", ") + "\n")
			}
			if len(item.DependsOn) > 0 {
				write("  depends_on: " + strings.Join(item.DependsOn, ", ") + "\n")
			}
			if item.Note != "" {
				write("  note: " + item.Note + "\n")
			}
		}
		write("\n")
	}

	payload, _ := json.MarshalIndent(store, "", "  ")
	write(dataStartMarker + "\n```json\n")
	write(string(payload))
	write("\n```\n" + dataEndMarker + "\n")

	return string(b)
}
