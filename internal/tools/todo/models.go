// Package todo implements the markdown+JSON-backed TODO board exposed to
// the LLM through the todo tool: add/update/bulk_update/remove/bulk_remove/
// archive/list/reorder/review_daily, with dependency-DAG cycle detection.
package todo

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusTodo     Status = "todo"
	StatusDoing    Status = "doing"
	StatusBlocked  Status = "blocked"
	StatusDone     Status = "done"
	StatusArchived Status = "archived"
)

var ValidStatuses = []Status{StatusTodo, StatusDoing, StatusBlocked, StatusDone, StatusArchived}

var OpenStatuses = map[Status]bool{
	StatusTodo:    true,
	StatusDoing:   true,
	StatusBlocked: true,
}

func isValidStatus(s Status) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Item is a single TODO entry.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      Status   `json:"status"`
	Priority    int      `json:"priority"`
	Note        string   `json:"note"`
	Due         *string  `json:"due,omitempty"`
	Tags        []string `json:"tags"`
	DependsOn   []string `json:"depends_on"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	CompletedAt *string  `json:"completed_at,omitempty"`
}

// Meta holds store-level bookkeeping.
type Meta struct {
	Version           int     `json:"version"`
	LastID            int     `json:"last_id"`
	LastReviewDate    *string `json:"last_review_date,omitempty"`
	LastReviewSummary *string `json:"last_review_summary,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// Store is the full on-disk TODO payload.
type Store struct {
	Meta  Meta   `json:"meta"`
	Items []Item `json:"items"`
}

func validatePriority(p int) error {
	if p < 1 || p > 4 {
		return fmt.Errorf("priority must be an integer in range 1..4")
	}
	return nil
}

func validateStatus(s string) (Status, error) {
	status := Status(s)
	if s == "" {
		status = StatusTodo
	}
	if !isValidStatus(status) {
		return "", fmt.Errorf("status must be one of %v", ValidStatuses)
	}
	return status, nil
}

func normalizeStringList(values []string) []string {
	seen := map[string]bool{}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
