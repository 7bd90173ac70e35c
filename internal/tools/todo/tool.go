package todo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/goclaw/internal/toolkit"
)

// Tool exposes the TODO board as a single multi-action LLM tool.
type Tool struct {
	workspace string
	service   *Service
}

func NewTool(workspace string) *Tool {
	return &Tool{workspace: workspace, service: NewService(workspace)}
}

func (t *Tool) Name() string { return "todo" }

func (t *Tool) Description() string {
	return "Manage the persistent TODO board: add, list, update, move, remove, archive, " +
		"and review tasks with priorities, due dates, tags, and dependencies."
}

func (t *Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"init", "add", "list", "update", "bulk_update", "move", "done",
					"remove", "bulk_remove", "archive", "reorder", "stats", "review_daily",
				},
				"description": "The operation to perform on the TODO board.",
			},
			"id":         map[string]interface{}{"type": "string", "description": "Task id, e.g. T0001."},
			"ids":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Task ids for bulk operations."},
			"title":      map[string]interface{}{"type": "string", "description": "Task title."},
			"note":       map[string]interface{}{"type": "string", "description": "Free-form note."},
			"status":     map[string]interface{}{"type": "string", "enum": []string{"todo", "doing", "blocked", "done", "archived"}},
			"priority":   map[string]interface{}{"type": "number", "description": "Priority 1 (highest) to 4 (lowest)."},
			"due":        map[string]interface{}{"type": "string", "description": "Due date/time, e.g. 2026-08-01 or 2026-08-01T17:00:00."},
			"tags":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"depends_on": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Ids this task depends on."},
			"filters": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"statuses":         map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"tags_any":         map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"tags_all":         map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"keyword":          map[string]interface{}{"type": "string"},
					"priority_min":     map[string]interface{}{"type": "number"},
					"priority_max":     map[string]interface{}{"type": "number"},
					"due_before":       map[string]interface{}{"type": "string"},
					"due_after":        map[string]interface{}{"type": "string"},
					"overdue":          map[string]interface{}{"type": "boolean"},
					"include_archived": map[string]interface{}{"type": "boolean"},
				},
				"description": "Filters used by list and archive.",
			},
			"patch": map[string]interface{}{
				"type":        "object",
				"description": "Fields to change for update/bulk_update: title, note, status, priority, due, tags, depends_on.",
			},
			"sort_by":    map[string]interface{}{"type": "string", "enum": []string{"priority", "due", "created", "updated"}},
			"sort_order": map[string]interface{}{"type": "string", "enum": []string{"asc", "desc"}},
			"limit":      map[string]interface{}{"type": "number", "description": "Maximum number of items to return from list."},
		},
		"required": []string{"action"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) *toolkit.Result {
	action, _ := args["action"].(string)
	if action == "" {
		return toolkit.ErrorResult("action is required")
	}

	params := Params{
		ID:     stringArg(args, "id"),
		Title:  stringArg(args, "title"),
		Note:   stringArg(args, "note"),
		Status: stringArg(args, "status"),
		SortBy: stringArg(args, "sort_by"),
		SortOrder: stringArg(args, "sort_order"),
		IDs:    stringSliceArg(args, "ids"),
		Tags:   stringSliceArg(args, "tags"),
		DependsOn: stringSliceArg(args, "depends_on"),
	}
	if due, ok := args["due"].(string); ok {
		params.Due = &due
	}
	if p, ok := args["priority"].(float64); ok {
		v := int(p)
		params.Priority = &v
	}
	if l, ok := args["limit"].(float64); ok {
		v := int(l)
		params.Limit = &v
	}
	if patch, ok := args["patch"].(map[string]interface{}); ok {
		params.Patch = patch
	}
	if rawFilters, ok := args["filters"].(map[string]interface{}); ok {
		params.Filters = parseFilters(rawFilters)
	}

	resp := t.service.Handle(action, params)
	encoded, err := json.Marshal(resp)
	if err != nil {
		return toolkit.ErrorResult(fmt.Sprintf("failed to encode todo response: %v", err))
	}
	if !resp.OK {
		return toolkit.ErrorResult(string(encoded))
	}
	return toolkit.SilentResult(string(encoded))
}

func parseFilters(raw map[string]interface{}) *Filters {
	f := &Filters{
		Statuses: stringSliceArg(raw, "statuses"),
		TagsAny:  stringSliceArg(raw, "tags_any"),
		TagsAll:  stringSliceArg(raw, "tags_all"),
		Keyword:  stringArg(raw, "keyword"),
	}
	if v, ok := raw["priority_min"].(float64); ok {
		n := int(v)
		f.PriorityMin = &n
	}
	if v, ok := raw["priority_max"].(float64); ok {
		n := int(v)
		f.PriorityMax = &n
	}
	if v, ok := raw["due_before"].(string); ok {
		f.DueBefore = &v
	}
	if v, ok := raw["due_after"].(string); ok {
		f.DueAfter = &v
	}
	if v, ok := raw["overdue"].(bool); ok {
		f.Overdue = &v
	}
	if v, ok := raw["include_archived"].(bool); ok {
		f.IncludeArchived = v
	}
	return f
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
