// Package codex orchestrates an external `codex` CLI binary for two
// purposes: one-shot coding/review tasks (codex_run) and an advisory,
// confirmation-token-gated merge planning/execution state machine
// (codex_merge).
package codex

// ExecutionResult is the outcome recorded against a merge plan once
// execute_merge has run (successfully or not).
type ExecutionResult struct {
	OK       bool                   `json:"ok"`
	Summary  string                 `json:"summary"`
	AtMs     int64                  `json:"atMs"`
	ThreadID string                 `json:"threadId,omitempty"`
	Usage    map[string]interface{} `json:"usage,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// PlanRecord is a persisted merge advisory plan.
type PlanRecord struct {
	PlanID                string                 `json:"planId"`
	Status                string                 `json:"status"` // planned, revised, executed, failed
	CreatedAtMs           int64                  `json:"createdAtMs"`
	UpdatedAtMs           int64                  `json:"updatedAtMs"`
	BaseRef               string                 `json:"baseRef"`
	UpstreamRef           string                 `json:"upstreamRef"`
	TargetBranch          string                 `json:"targetBranch"`
	WorkingDir            string                 `json:"workingDir"`
	ReportPath            string                 `json:"reportPath"`
	ReportExcerpt         string                 `json:"reportExcerpt"`
	Recommendation        string                 `json:"recommendation"`
	ConfirmationTokenHash string                 `json:"confirmationTokenHash"`
	Revision              int                    `json:"revision"`
	LastFeedback          string                 `json:"lastFeedback,omitempty"`
	PlanThreadID          string                 `json:"planThreadId,omitempty"`
	PlanUsage             map[string]interface{} `json:"planUsage,omitempty"`
	Execution             *ExecutionResult       `json:"execution,omitempty"`
}

// PublicDict renders the subset of a plan record safe to show back to the
// model/user, optionally including the full planning recommendation text.
func (r *PlanRecord) PublicDict(includeRecommendation bool) map[string]interface{} {
	out := map[string]interface{}{
		"plan_id":        r.PlanID,
		"status":         r.Status,
		"revision":       r.Revision,
		"created_at_ms":  r.CreatedAtMs,
		"updated_at_ms":  r.UpdatedAtMs,
		"base_ref":       r.BaseRef,
		"upstream_ref":   r.UpstreamRef,
		"target_branch":  r.TargetBranch,
		"working_dir":    r.WorkingDir,
		"report_path":    r.ReportPath,
		"has_execution":  r.Execution != nil,
	}
	if r.Execution != nil {
		out["execution"] = r.Execution
	}
	if includeRecommendation {
		out["recommendation"] = r.Recommendation
	}
	return out
}
