package todo

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var idPattern = regexp.MustCompile(`^T\d{4,}$`)

// Filters scopes a list/archive query.
type Filters struct {
	Statuses        []string `json:"statuses,omitempty"`
	TagsAny         []string `json:"tags_any,omitempty"`
	TagsAll         []string `json:"tags_all,omitempty"`
	Keyword         string   `json:"keyword,omitempty"`
	PriorityMin     *int     `json:"priority_min,omitempty"`
	PriorityMax     *int     `json:"priority_max,omitempty"`
	DueBefore       *string  `json:"due_before,omitempty"`
	DueAfter        *string  `json:"due_after,omitempty"`
	Overdue         *bool    `json:"overdue,omitempty"`
	IncludeArchived bool     `json:"include_archived,omitempty"`
}

// Response is the structured payload every action returns.
type Response struct {
	OK      bool                   `json:"ok"`
	Action  string                 `json:"action"`
	Summary string                 `json:"summary"`
	Items   []map[string]interface{} `json:"items"`
	Stats   map[string]interface{} `json:"stats"`
	Errors  []string               `json:"errors"`
}

func success(action, summary string, items []map[string]interface{}, stats map[string]interface{}) Response {
	if items == nil {
		items = []map[string]interface{}{}
	}
	if stats == nil {
		stats = map[string]interface{}{}
	}
	return Response{OK: true, Action: action, Summary: summary, Items: items, Stats: stats, Errors: []string{}}
}

func errorResponse(action string, err error) Response {
	return Response{OK: false, Action: action, Summary: err.Error(), Items: []map[string]interface{}{}, Stats: map[string]interface{}{}, Errors: []string{err.Error()}}
}

// Service implements every TODO action against markdown+JSON storage.
type Service struct {
	storage *Storage
}

func NewService(workspace string) *Service {
	return &Service{storage: NewStorage(workspace)}
}

// Params is the raw argument bag passed from the tool's JSON-schema args.
type Params struct {
	ID        string
	IDs       []string
	Title     string
	Note      string
	Status    string
	Priority  *int
	Due       *string
	Tags      []string
	DependsOn []string
	Filters   *Filters
	Patch     map[string]interface{}
	SortBy    string
	SortOrder string
	Limit     *int
}

// Handle dispatches action and returns a structured response. It never
// returns a Go error: failures are reported in Response.OK/Errors, matching
// the tool's JSON-result contract.
func (s *Service) Handle(action string, p Params) Response {
	action = strings.ToLower(strings.TrimSpace(action))
	var resp Response
	var err error
	switch action {
	case "init":
		resp, err = s.actionInit()
	case "add":
		resp, err = s.actionAdd(p)
	case "list":
		resp, err = s.actionList(p)
	case "update":
		resp, err = s.actionUpdate(p)
	case "bulk_update":
		resp, err = s.actionBulkUpdate(p)
	case "move":
		resp, err = s.actionUpdate(Params{ID: p.ID, Patch: map[string]interface{}{"status": p.Status}})
	case "done":
		resp, err = s.actionUpdate(Params{ID: p.ID, Patch: map[string]interface{}{"status": "done"}})
	case "remove":
		resp, err = s.actionRemove(p)
	case "bulk_remove":
		resp, err = s.actionBulkRemove(p)
	case "archive":
		resp, err = s.actionArchive(p)
	case "reorder":
		resp, err = s.actionReorder(p)
	case "stats":
		resp, err = s.actionStats()
	case "review_daily":
		resp, err = s.actionReviewDaily()
	default:
		err = fmt.Errorf("unsupported action: %s", action)
	}
	if err != nil {
		return errorResponse(action, err)
	}
	return resp
}

func (s *Service) actionInit() (Response, error) {
	var store Store
	var err error
	if _, statErr := s.storage.LoadStore(); statErr == nil {
		store, err = s.storage.LoadStore()
	} else {
		store, err = s.storage.InitStore()
	}
	if err != nil {
		return Response{}, err
	}
	if err := s.storage.EnsureAutoReviewBlock(); err != nil {
		return Response{}, err
	}
	return success("init", "TODO store initialized and daily review block ensured.", nil, computeStats(store)), nil
}

func (s *Service) actionAdd(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	now := nowISO()

	title, err := normalizeTitle(p.Title)
	if err != nil {
		return Response{}, err
	}
	status := p.Status
	if status == "" {
		status = "todo"
	}
	itemStatus, err := validateStatus(status)
	if err != nil {
		return Response{}, err
	}
	priority := 2
	if p.Priority != nil {
		priority = *p.Priority
	}
	if err := validatePriority(priority); err != nil {
		return Response{}, err
	}
	due, err := normalizeDue(p.Due)
	if err != nil {
		return Response{}, err
	}
	tags := normalizeStringList(p.Tags)
	deps, err := normalizeIDList(p.DependsOn, "depends_on")
	if err != nil {
		return Response{}, err
	}

	nextID := nextID(store)
	item := Item{
		ID:        nextID,
		Title:     title,
		Status:    itemStatus,
		Priority:  priority,
		Note:      strings.TrimSpace(p.Note),
		Due:       due,
		Tags:      tags,
		DependsOn: deps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if itemStatus == StatusDone {
		done := now
		item.CompletedAt = &done
	}

	candidate := append(append([]Item{}, store.Items...), item)
	if err := validateDependencies(candidate); err != nil {
		return Response{}, err
	}
	store.Items = candidate

	numPart, _ := strconv.Atoi(strings.TrimPrefix(nextID, "T"))
	store.Meta.LastID = numPart
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}

	return success("add", fmt.Sprintf("Added task %s.", nextID), []map[string]interface{}{toPublicItem(item)}, computeStats(store)), nil
}

func (s *Service) actionList(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	filters := Filters{}
	if p.Filters != nil {
		filters = *p.Filters
	}
	filtered, err := applyFilters(store.Items, filters)
	if err != nil {
		return Response{}, err
	}
	ordered, err := sortItems(filtered, p.SortBy, p.SortOrder)
	if err != nil {
		return Response{}, err
	}
	if p.Limit != nil {
		if *p.Limit < 1 {
			return Response{}, fmt.Errorf("limit must be >= 1")
		}
		if *p.Limit < len(ordered) {
			ordered = ordered[:*p.Limit]
		}
	}
	items := make([]map[string]interface{}, 0, len(ordered))
	for _, it := range ordered {
		items = append(items, toPublicItem(it))
	}
	return success("list", fmt.Sprintf("Listed %d task(s).", len(ordered)), items, computeStats(store)), nil
}

func (s *Service) actionUpdate(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	targetID, err := normalizeID(p.ID, "id")
	if err != nil {
		return Response{}, err
	}
	patch, err := normalizePatch(p.Patch)
	if err != nil {
		return Response{}, err
	}

	updated, err := updateSingleItem(&store, targetID, patch)
	if err != nil {
		return Response{}, err
	}
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	return success("update", fmt.Sprintf("Updated task %s.", targetID), []map[string]interface{}{toPublicItem(*updated)}, computeStats(store)), nil
}

func (s *Service) actionBulkUpdate(p Params) (Response, error) {
	targetIDs, err := normalizeIDList(p.IDs, "ids")
	if err != nil {
		return Response{}, err
	}
	if len(targetIDs) == 0 {
		return Response{}, fmt.Errorf("ids is required for bulk_update")
	}
	patch, err := normalizePatch(p.Patch)
	if err != nil {
		return Response{}, err
	}
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}

	var updatedItems []map[string]interface{}
	for _, id := range targetIDs {
		item, err := updateSingleItem(&store, id, patch)
		if err != nil {
			return Response{}, err
		}
		updatedItems = append(updatedItems, toPublicItem(*item))
	}
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	return success("bulk_update", fmt.Sprintf("Updated %d task(s).", len(updatedItems)), updatedItems, computeStats(store)), nil
}

func (s *Service) actionRemove(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	targetID, err := normalizeID(p.ID, "id")
	if err != nil {
		return Response{}, err
	}
	if findItem(store, targetID) == nil {
		return Response{}, fmt.Errorf("task not found: %s", targetID)
	}

	conflicts := findExternalDependents(store, map[string]bool{targetID: true})
	if deps, ok := conflicts[targetID]; ok && len(deps) > 0 {
		sort.Strings(deps)
		return Response{}, fmt.Errorf("cannot remove %s: depended on by active task(s): %s", targetID, strings.Join(deps, ", "))
	}

	var remaining []Item
	for _, it := range store.Items {
		if it.ID != targetID {
			remaining = append(remaining, it)
		}
	}
	store.Items = remaining
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	return success("remove", fmt.Sprintf("Removed task %s.", targetID), []map[string]interface{}{{"id": targetID}}, computeStats(store)), nil
}

func (s *Service) actionBulkRemove(p Params) (Response, error) {
	targetList, err := normalizeIDList(p.IDs, "ids")
	if err != nil {
		return Response{}, err
	}
	if len(targetList) == 0 {
		return Response{}, fmt.Errorf("ids is required for bulk_remove")
	}
	targetIDs := map[string]bool{}
	for _, id := range targetList {
		targetIDs[id] = true
	}

	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	existing := map[string]bool{}
	for _, it := range store.Items {
		existing[it.ID] = true
	}
	var missing []string
	for id := range targetIDs {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Response{}, fmt.Errorf("task(s) not found: %s", strings.Join(missing, ", "))
	}

	conflicts := findExternalDependents(store, targetIDs)
	if len(conflicts) > 0 {
		var keys []string
		for k := range conflicts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, dep := range keys {
			users := append([]string{}, conflicts[dep]...)
			sort.Strings(users)
			parts = append(parts, fmt.Sprintf("%s <- %s", dep, strings.Join(users, ", ")))
		}
		return Response{}, fmt.Errorf("cannot bulk remove due to active dependencies: %s", strings.Join(parts, "; "))
	}

	var remaining []Item
	for _, it := range store.Items {
		if !targetIDs[it.ID] {
			remaining = append(remaining, it)
		}
	}
	store.Items = remaining
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	var ids []string
	for id := range targetIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]interface{}{"id": id})
	}
	return success("bulk_remove", fmt.Sprintf("Removed %d task(s).", len(targetIDs)), items, computeStats(store)), nil
}

func (s *Service) actionArchive(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	now := nowISO()
	var updated []Item

	if len(p.IDs) > 0 {
		targetIDs, err := normalizeIDList(p.IDs, "ids")
		if err != nil {
			return Response{}, err
		}
		for _, id := range targetIDs {
			idx := findItemIndex(store, id)
			if idx < 0 {
				return Response{}, fmt.Errorf("task not found: %s", id)
			}
			if store.Items[idx].Status != StatusDone {
				return Response{}, fmt.Errorf("only done tasks can be archived: %s", id)
			}
			store.Items[idx].Status = StatusArchived
			store.Items[idx].UpdatedAt = now
			updated = append(updated, store.Items[idx])
		}
	} else {
		filters := Filters{}
		if p.Filters != nil {
			filters = *p.Filters
		}
		filters.Statuses = []string{"done"}
		candidates, err := applyFilters(store.Items, filters)
		if err != nil {
			return Response{}, err
		}
		candidateIDs := map[string]bool{}
		for _, c := range candidates {
			candidateIDs[c.ID] = true
		}
		for i := range store.Items {
			if candidateIDs[store.Items[i].ID] && store.Items[i].Status == StatusDone {
				store.Items[i].Status = StatusArchived
				store.Items[i].UpdatedAt = now
				updated = append(updated, store.Items[i])
			}
		}
	}

	if len(updated) == 0 {
		return success("archive", "No tasks archived.", nil, computeStats(store)), nil
	}

	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	items := make([]map[string]interface{}, 0, len(updated))
	for _, it := range updated {
		items = append(items, toPublicItem(it))
	}
	return success("archive", fmt.Sprintf("Archived %d task(s).", len(updated)), items, computeStats(store)), nil
}

func (s *Service) actionReorder(p Params) (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = "priority"
	}
	sortOrder := p.SortOrder
	if sortOrder == "" {
		sortOrder = "asc"
	}
	ordered, err := sortItems(store.Items, sortBy, sortOrder)
	if err != nil {
		return Response{}, err
	}
	store.Items = ordered
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}
	limit := len(store.Items)
	if limit > 20 {
		limit = 20
	}
	items := make([]map[string]interface{}, 0, limit)
	for _, it := range store.Items[:limit] {
		items = append(items, toPublicItem(it))
	}
	return success("reorder", fmt.Sprintf("Reordered %d task(s).", len(store.Items)), items, computeStats(store)), nil
}

func (s *Service) actionStats() (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	return success("stats", "Computed task statistics.", nil, computeStats(store)), nil
}

func (s *Service) actionReviewDaily() (Response, error) {
	store, err := s.storage.LoadOrInitStore()
	if err != nil {
		return Response{}, err
	}
	today := todayDate()
	if store.Meta.LastReviewDate != nil && *store.Meta.LastReviewDate == today {
		return success("review_daily", "Daily review already completed today.", nil, computeStats(store)), nil
	}

	var open []Item
	for _, it := range store.Items {
		if OpenStatuses[it.Status] {
			open = append(open, it)
		}
	}
	ranked, _ := sortItems(open, "priority", "asc")
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	stats := computeStats(store)

	topIDs := make([]string, 0, len(ranked))
	for _, it := range ranked {
		topIDs = append(topIDs, it.ID)
	}
	top := "none"
	if len(topIDs) > 0 {
		top = strings.Join(topIDs, ", ")
	}
	summary := fmt.Sprintf("Daily review: %d total, %d open, %d overdue, top focus: %s",
		stats["total"], stats["open"], stats["overdue"], top)

	store.Meta.LastReviewDate = &today
	store.Meta.LastReviewSummary = &summary
	store.Meta.UpdatedAt = nowISO()
	if err := s.storage.SaveStore(store); err != nil {
		return Response{}, err
	}

	items := make([]map[string]interface{}, 0, len(ranked))
	for _, it := range ranked {
		items = append(items, toPublicItem(it))
	}
	return success("review_daily", summary, items, stats), nil
}

func updateSingleItem(store *Store, targetID string, patch map[string]interface{}) (*Item, error) {
	idx := findItemIndex(*store, targetID)
	if idx < 0 {
		return nil, fmt.Errorf("task not found: %s", targetID)
	}

	allowed := map[string]bool{"title": true, "note": true, "status": true, "priority": true, "due": true, "tags": true, "depends_on": true}
	var unknown []string
	for k := range patch {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unsupported patch field(s): %s", strings.Join(unknown, ", "))
	}

	item := &store.Items[idx]

	if v, ok := patch["title"]; ok {
		title, err := normalizeTitle(asString(v))
		if err != nil {
			return nil, err
		}
		item.Title = title
	}
	if v, ok := patch["note"]; ok {
		item.Note = strings.TrimSpace(asString(v))
	}
	if v, ok := patch["priority"]; ok {
		p, err := asInt(v)
		if err != nil {
			return nil, err
		}
		if err := validatePriority(p); err != nil {
			return nil, err
		}
		item.Priority = p
	}
	if v, ok := patch["due"]; ok {
		due, err := normalizeDue(asStringPtr(v))
		if err != nil {
			return nil, err
		}
		item.Due = due
	}
	if v, ok := patch["tags"]; ok {
		item.Tags = normalizeStringList(asStringSlice(v))
	}
	if v, ok := patch["depends_on"]; ok {
		deps, err := normalizeIDList(asStringSlice(v), "depends_on")
		if err != nil {
			return nil, err
		}
		item.DependsOn = deps
	}
	if v, ok := patch["status"]; ok {
		status, err := validateStatus(asString(v))
		if err != nil {
			return nil, err
		}
		item.Status = status
	}

	if err := validateDependencies(store.Items); err != nil {
		return nil, err
	}

	item.UpdatedAt = nowISO()
	if item.Status == StatusDone && item.CompletedAt == nil {
		completed := item.UpdatedAt
		item.CompletedAt = &completed
	}
	if OpenStatuses[item.Status] {
		item.CompletedAt = nil
	}

	return item, nil
}

func computeStats(store Store) map[string]interface{} {
	counts := map[Status]int{}
	for _, status := range ValidStatuses {
		counts[status] = 0
	}
	now := time.Now()
	overdue := 0
	priorityDist := map[string]int{"1": 0, "2": 0, "3": 0, "4": 0}

	for _, item := range store.Items {
		counts[item.Status]++
		if OpenStatuses[item.Status] && isOverdue(item, now) {
			overdue++
		}
		if item.Status != StatusArchived {
			priorityDist[strconv.Itoa(item.Priority)]++
		}
	}

	byStatus := map[string]int{}
	for k, v := range counts {
		byStatus[string(k)] = v
	}

	return map[string]interface{}{
		"total":                 len(store.Items),
		"open":                  counts[StatusTodo] + counts[StatusDoing] + counts[StatusBlocked],
		"overdue":               overdue,
		"by_status":             byStatus,
		"priority_distribution": priorityDist,
		"last_review_date":      store.Meta.LastReviewDate,
		"last_review_summary":   store.Meta.LastReviewSummary,
	}
}

func findItem(store Store, id string) *Item {
	idx := findItemIndex(store, id)
	if idx < 0 {
		return nil
	}
	return &store.Items[idx]
}

func findItemIndex(store Store, id string) int {
	for i, it := range store.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func nextID(store Store) string {
	existing := map[string]bool{}
	for _, it := range store.Items {
		existing[it.ID] = true
	}
	next := store.Meta.LastID
	if next < 0 {
		next = 0
	}
	next++
	for existing[fmt.Sprintf("T%04d", next)] {
		next++
	}
	return fmt.Sprintf("T%04d", next)
}

func applyFilters(items []Item, f Filters) ([]Item, error) {
	result := append([]Item{}, items...)

	var statusSet map[Status]bool
	if f.Statuses != nil {
		statusSet = map[Status]bool{}
		for _, s := range f.Statuses {
			st, err := validateStatus(s)
			if err != nil {
				return nil, err
			}
			statusSet[st] = true
		}
	} else if !f.IncludeArchived {
		var filtered []Item
		for _, it := range result {
			if it.Status != StatusArchived {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}
	if statusSet != nil {
		var filtered []Item
		for _, it := range result {
			if statusSet[it.Status] {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	if len(f.TagsAny) > 0 {
		tagsAny := map[string]bool{}
		for _, t := range normalizeStringList(f.TagsAny) {
			tagsAny[t] = true
		}
		var filtered []Item
		for _, it := range result {
			for _, t := range it.Tags {
				if tagsAny[t] {
					filtered = append(filtered, it)
					break
				}
			}
		}
		result = filtered
	}

	if len(f.TagsAll) > 0 {
		tagsAll := normalizeStringList(f.TagsAll)
		var filtered []Item
		for _, it := range result {
			itemTags := map[string]bool{}
			for _, t := range it.Tags {
				itemTags[t] = true
			}
			all := true
			for _, t := range tagsAll {
				if !itemTags[t] {
					all = false
					break
				}
			}
			if all {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	if keyword != "" {
		var filtered []Item
		for _, it := range result {
			if strings.Contains(strings.ToLower(it.ID), keyword) ||
				strings.Contains(strings.ToLower(it.Title), keyword) ||
				strings.Contains(strings.ToLower(it.Note), keyword) {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	if f.PriorityMin != nil {
		var filtered []Item
		for _, it := range result {
			if it.Priority >= *f.PriorityMin {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}
	if f.PriorityMax != nil {
		var filtered []Item
		for _, it := range result {
			if it.Priority <= *f.PriorityMax {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	if f.DueBefore != nil {
		cutoff, err := parseDueDatetime(*f.DueBefore)
		if err != nil {
			return nil, err
		}
		var filtered []Item
		for _, it := range result {
			if it.Due == nil {
				continue
			}
			d, err := parseDueDatetime(*it.Due)
			if err == nil && !d.After(cutoff) {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}
	if f.DueAfter != nil {
		cutoff, err := parseDueDatetime(*f.DueAfter)
		if err != nil {
			return nil, err
		}
		var filtered []Item
		for _, it := range result {
			if it.Due == nil {
				continue
			}
			d, err := parseDueDatetime(*it.Due)
			if err == nil && !d.Before(cutoff) {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	if f.Overdue != nil {
		now := time.Now()
		overdueFlag := *f.Overdue
		var filtered []Item
		for _, it := range result {
			if isOverdue(it, now) == overdueFlag {
				filtered = append(filtered, it)
			}
		}
		result = filtered
	}

	return result, nil
}

func sortItems(items []Item, sortBy, sortOrder string) ([]Item, error) {
	if sortBy == "" {
		return append([]Item{}, items...), nil
	}
	key := strings.ToLower(strings.TrimSpace(sortBy))
	if key != "priority" && key != "due" && key != "created" && key != "updated" {
		return nil, fmt.Errorf("sort_by must be one of: priority, due, created, updated")
	}
	order := strings.ToLower(strings.TrimSpace(sortOrder))
	if order == "" {
		order = "asc"
	}
	if order != "asc" && order != "desc" {
		return nil, fmt.Errorf("sort_order must be one of: asc, desc")
	}
	reverse := order == "desc"

	ordered := append([]Item{}, items...)
	less := func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch key {
		case "priority":
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return dueTS(a) < dueTS(b)
		case "due":
			if dueTS(a) != dueTS(b) {
				return dueTS(a) < dueTS(b)
			}
			return a.Priority < b.Priority
		case "created":
			return createdTS(a) < createdTS(b)
		case "updated":
			return updatedTS(a) < updatedTS(b)
		}
		return false
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if reverse {
			return less(j, i)
		}
		return less(i, j)
	})
	return ordered, nil
}

func dueTS(item Item) int64 {
	if item.Due == nil {
		return 1 << 62
	}
	t, err := parseDueDatetime(*item.Due)
	if err != nil {
		return 1 << 62
	}
	return t.Unix()
}

func createdTS(item Item) int64 {
	if item.CreatedAt == "" {
		return 0
	}
	t, err := parseGeneralDatetime(item.CreatedAt)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func updatedTS(item Item) int64 {
	if item.UpdatedAt == "" {
		return 0
	}
	t, err := parseGeneralDatetime(item.UpdatedAt)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func findExternalDependents(store Store, targetIDs map[string]bool) map[string][]string {
	conflicts := map[string][]string{}
	for id := range targetIDs {
		conflicts[id] = nil
	}
	for _, item := range store.Items {
		if item.Status == StatusArchived || targetIDs[item.ID] {
			continue
		}
		for _, dep := range item.DependsOn {
			if targetIDs[dep] {
				conflicts[dep] = append(conflicts[dep], item.ID)
			}
		}
	}
	out := map[string][]string{}
	for k, v := range conflicts {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// validateDependencies checks that every depends_on edge refers to an
// existing, non-self id, and that the dependency graph over non-archived
// items is acyclic (DFS with a 3-color state table).
func validateDependencies(items []Item) error {
	ids := map[string]bool{}
	for _, it := range items {
		ids[it.ID] = true
	}
	for _, it := range items {
		for _, dep := range it.DependsOn {
			if dep == it.ID {
				return fmt.Errorf("task cannot depend on itself: %s", it.ID)
			}
			if !ids[dep] {
				return fmt.Errorf("dependency not found for %s: %s", it.ID, dep)
			}
		}
	}

	active := map[string]bool{}
	for _, it := range items {
		if it.Status != StatusArchived {
			active[it.ID] = true
		}
	}
	graph := map[string][]string{}
	for _, it := range items {
		if it.Status == StatusArchived {
			continue
		}
		for _, dep := range it.DependsOn {
			if active[dep] {
				graph[it.ID] = append(graph[it.ID], dep)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var dfs func(node string, stack []string) error
	dfs = func(node string, stack []string) error {
		state[node] = visiting
		stack = append(stack, node)
		for _, next := range graph[node] {
			switch state[next] {
			case unvisited:
				if err := dfs(next, stack); err != nil {
					return err
				}
			case visiting:
				cycle := append(append([]string{}, stack...), next)
				return fmt.Errorf("dependency cycle detected: %s", strings.Join(cycle, " -> "))
			}
		}
		state[node] = done
		return nil
	}
	for node := range graph {
		if state[node] == unvisited {
			if err := dfs(node, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func toPublicItem(item Item) map[string]interface{} {
	return map[string]interface{}{
		"id":           item.ID,
		"title":        item.Title,
		"status":       item.Status,
		"priority":     item.Priority,
		"due":          item.Due,
		"tags":         item.Tags,
		"depends_on":   item.DependsOn,
		"note":         item.Note,
		"created_at":   item.CreatedAt,
		"updated_at":   item.UpdatedAt,
		"completed_at": item.CompletedAt,
		"overdue":      isOverdue(item, time.Now()),
	}
}

func isOverdue(item Item, now time.Time) bool {
	if !OpenStatuses[item.Status] || item.Due == nil {
		return false
	}
	d, err := parseDueDatetime(*item.Due)
	if err != nil {
		return false
	}
	return d.Before(now)
}

func normalizeTitle(title string) (string, error) {
	value := strings.TrimSpace(title)
	if value == "" {
		return "", fmt.Errorf("title is required")
	}
	return value, nil
}

func normalizeDue(due *string) (*string, error) {
	if due == nil {
		return nil, nil
	}
	text := strings.TrimSpace(*due)
	if text == "" {
		return nil, nil
	}
	parsed, err := parseDueDatetime(text)
	if err != nil {
		return nil, err
	}
	if dateOnlyRe.MatchString(text) {
		return &text, nil
	}
	iso := parsed.Format("2006-01-02T15:04:05")
	return &iso, nil
}

var dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func normalizeID(value, field string) (string, error) {
	text := strings.ToUpper(strings.TrimSpace(value))
	if text == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if !idPattern.MatchString(text) {
		return "", fmt.Errorf("%s must match pattern T####", field)
	}
	return text, nil
}

func normalizeIDList(values []string, field string) ([]string, error) {
	seen := map[string]bool{}
	var result []string
	for _, v := range values {
		text, err := normalizeID(v, field)
		if err != nil {
			return nil, err
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		result = append(result, text)
	}
	return result, nil
}

func normalizePatch(patch map[string]interface{}) (map[string]interface{}, error) {
	if patch == nil {
		return nil, fmt.Errorf("patch is required")
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("patch must not be empty")
	}
	return patch, nil
}

func parseDueDatetime(value string) (time.Time, error) {
	text := strings.TrimSpace(value)
	if dateOnlyRe.MatchString(text) {
		d, err := time.ParseInLocation("2006-01-02", text, time.Local)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.Local), nil
	}
	return parseGeneralDatetime(text)
}

func parseGeneralDatetime(value string) (time.Time, error) {
	text := strings.TrimSpace(value)
	text = strings.TrimSuffix(text, "Z")
	layouts := []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00", time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime: %s", value)
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("expected a number")
	}
}

func asStringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
