package codex

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/toolkit"
)

const reportGlob = "upstream-main-conflict-report-*.md"

var supportedMergeActions = map[string]bool{
	"plan_latest": true, "revise_plan": true, "execute_merge": true, "status": true, "list": true,
}

// MergeTool is `codex_merge`: an advisory merge planner/executor. It never
// performs git operations itself — it only drafts and records
// recommendations, then hands execution to the codex CLI under
// danger-full-access once a confirmation token matches.
type MergeTool struct {
	workspace  string
	cfg        config.CodexToolConfig
	store      *PlanStore
	planClient *Client
	execClient *Client
	repoRoot   string
}

func NewMergeTool(workspace string, cfg config.CodexToolConfig, restrictToWorkspace bool, repoRoot string) *MergeTool {
	planCfg := cfg
	planCfg.AllowDangerousFullAccess = false

	root := repoRoot
	if root == "" {
		root = workspace
	} else if info, err := os.Stat(root); err != nil || !info.IsDir() {
		root = workspace
	}

	return &MergeTool{
		workspace:  workspace,
		cfg:        cfg,
		store:      NewPlanStore(workspace),
		planClient: NewClient(workspace, planCfg, restrictToWorkspace),
		execClient: NewClient(workspace, cfg, restrictToWorkspace),
		repoRoot:   root,
	}
}

func (t *MergeTool) Name() string { return "codex_merge" }

func (t *MergeTool) Description() string {
	return "Codex merge advisor and executor. Actions: plan_latest, revise_plan, execute_merge, status, list. " +
		"Nanobot only orchestrates and reports; codex performs merge/conflict/push operations."
}

func (t *MergeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":              map[string]interface{}{"type": "string", "enum": []string{"plan_latest", "revise_plan", "execute_merge", "status", "list"}},
			"plan_id":             map[string]interface{}{"type": "string"},
			"feedback":            map[string]interface{}{"type": "string"},
			"confirmation_token":  map[string]interface{}{"type": "string"},
			"base_ref":            map[string]interface{}{"type": "string"},
			"upstream_ref":        map[string]interface{}{"type": "string"},
			"target_branch":       map[string]interface{}{"type": "string"},
			"working_dir":         map[string]interface{}{"type": "string"},
			"model":               map[string]interface{}{"type": "string"},
			"timeout_sec":         map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 7200},
			"limit":               map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		},
		"required": []string{"action"},
	}
}

func (t *MergeTool) Execute(ctx context.Context, args map[string]interface{}) *toolkit.Result {
	action := strings.ToLower(strings.TrimSpace(stringArg(args, "action")))
	if !supportedMergeActions[action] {
		return dumpResult(errPayload("invalid_action", "action must be one of plan_latest|revise_plan|execute_merge|status|list"))
	}

	baseRef := orDefault(stringArg(args, "base_ref"), "origin/main")
	upstreamRef := orDefault(stringArg(args, "upstream_ref"), "upstream/main")
	targetBranch := orDefault(stringArg(args, "target_branch"), "main")
	workingDir := stringArg(args, "working_dir")
	model := stringArg(args, "model")
	var timeoutSec int
	if v, ok := args["timeout_sec"].(float64); ok {
		timeoutSec = int(v)
	}
	limit := 20
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	switch action {
	case "plan_latest":
		return dumpResult(t.planLatest(ctx, baseRef, upstreamRef, targetBranch, workingDir, model, timeoutSec))
	case "revise_plan":
		return dumpResult(t.revisePlan(ctx, stringArg(args, "plan_id"), stringArg(args, "feedback"), model, timeoutSec))
	case "execute_merge":
		return dumpResult(t.executeMerge(ctx, stringArg(args, "plan_id"), stringArg(args, "confirmation_token"), model, timeoutSec))
	case "status":
		return dumpResult(t.status(stringArg(args, "plan_id")))
	default:
		return dumpResult(t.list(limit))
	}
}

func (t *MergeTool) planLatest(ctx context.Context, baseRef, upstreamRef, targetBranch, workingDir, model string, timeoutSec int) map[string]interface{} {
	if !t.cfg.Enabled {
		return errPayload("codex_disabled", "tools.codex.enabled=false; codex_merge is unavailable")
	}

	reportPath := t.findLatestReport()
	if reportPath == "" {
		return errPayload("report_not_found", fmt.Sprintf("no report found under %s matching %s", filepath.Join(t.workspace, "reports"), reportGlob))
	}
	excerpt, err := readExcerpt(reportPath, 16000)
	if err != nil {
		return errPayload("report_not_found", err.Error())
	}

	selectedWorkingDir := t.selectWorkingDir(workingDir)
	prompt := t.buildPlanPrompt(reportPath, excerpt, baseRef, upstreamRef, targetBranch)

	result := t.planClient.Run(ctx, RunOptions{Prompt: prompt, Mode: "exec", WorkingDir: selectedWorkingDir, Sandbox: "read-only", Model: model, TimeoutSec: timeoutSec})
	if !result.OK {
		payload := resultToPayload(result)
		payload["action"] = "plan_latest"
		return payload
	}

	nowMs := time.Now().UnixMilli()
	planID := randomHex(4)
	confirmationToken := randomHex(16)

	record := &PlanRecord{
		PlanID:                planID,
		Status:                "planned",
		CreatedAtMs:           nowMs,
		UpdatedAtMs:           nowMs,
		BaseRef:               baseRef,
		UpstreamRef:           upstreamRef,
		TargetBranch:          targetBranch,
		WorkingDir:            selectedWorkingDir,
		ReportPath:            reportPath,
		ReportExcerpt:         excerpt,
		Recommendation:        result.Message,
		ConfirmationTokenHash: hashToken(confirmationToken),
		PlanThreadID:          result.ThreadID,
		PlanUsage:             result.Usage,
	}
	if err := t.store.Save(record); err != nil {
		return errPayload("store_failed", err.Error())
	}

	return map[string]interface{}{
		"ok": true, "action": "plan_latest", "plan_id": record.PlanID,
		"confirmation_token": confirmationToken, "status": record.Status,
		"report_path": record.ReportPath, "summary": summarize(record.Recommendation, 800),
		"message": "Merge plan prepared. Merge is not executed yet.",
	}
}

func (t *MergeTool) revisePlan(ctx context.Context, planID, feedback, model string, timeoutSec int) map[string]interface{} {
	if !t.cfg.Enabled {
		return errPayload("codex_disabled", "tools.codex.enabled=false; codex_merge is unavailable")
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return errPayload("missing_plan_id", "plan_id is required for revise_plan")
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return errPayload("missing_feedback", "feedback is required for revise_plan")
	}

	record := t.store.Load(planID)
	if record == nil {
		return errPayload("plan_not_found", "plan_id not found: "+planID)
	}
	if _, err := os.Stat(record.ReportPath); err != nil {
		return errPayload("report_not_found", "report file not found: "+record.ReportPath)
	}
	excerpt, err := readExcerpt(record.ReportPath, 16000)
	if err != nil {
		return errPayload("report_not_found", err.Error())
	}

	workingDir := record.WorkingDir
	if workingDir == "" {
		workingDir = t.selectWorkingDir("")
	}
	prompt := t.buildRevisePrompt(record, feedback, excerpt)

	result := t.planClient.Run(ctx, RunOptions{Prompt: prompt, Mode: "exec", WorkingDir: workingDir, Sandbox: "read-only", Model: model, TimeoutSec: timeoutSec})
	if !result.OK {
		payload := resultToPayload(result)
		payload["action"] = "revise_plan"
		payload["plan_id"] = planID
		return payload
	}

	confirmationToken := randomHex(16)
	record.Recommendation = result.Message
	record.Status = "revised"
	record.Revision++
	record.LastFeedback = feedback
	record.UpdatedAtMs = time.Now().UnixMilli()
	record.PlanThreadID = result.ThreadID
	record.PlanUsage = result.Usage
	record.ReportExcerpt = excerpt
	record.ConfirmationTokenHash = hashToken(confirmationToken)
	if err := t.store.Save(record); err != nil {
		return errPayload("store_failed", err.Error())
	}

	return map[string]interface{}{
		"ok": true, "action": "revise_plan", "plan_id": record.PlanID,
		"confirmation_token": confirmationToken, "status": record.Status, "revision": record.Revision,
		"summary": summarize(record.Recommendation, 800), "message": "Merge plan revised. Merge is not executed yet.",
	}
}

func (t *MergeTool) executeMerge(ctx context.Context, planID, confirmationToken, model string, timeoutSec int) map[string]interface{} {
	if !t.cfg.Enabled {
		return errPayload("codex_disabled", "tools.codex.enabled=false; codex_merge is unavailable")
	}
	if !t.cfg.AllowDangerousFullAccess {
		return errPayload("dangerous_full_access_not_allowed", "execute_merge requires tools.codex.allowDangerousFullAccess=true")
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return errPayload("missing_plan_id", "plan_id is required for execute_merge")
	}
	confirmationToken = strings.TrimSpace(confirmationToken)
	if confirmationToken == "" {
		return errPayload("missing_confirmation_token", "confirmation_token is required for execute_merge")
	}

	record := t.store.Load(planID)
	if record == nil {
		return errPayload("plan_not_found", "plan_id not found: "+planID)
	}
	if record.ConfirmationTokenHash == "" || !constantTimeHashEqual(hashToken(confirmationToken), record.ConfirmationTokenHash) {
		return errPayload("invalid_confirmation_token", "confirmation token mismatch")
	}
	if _, err := os.Stat(record.ReportPath); err != nil {
		return errPayload("report_not_found", "report file not found: "+record.ReportPath)
	}

	workingDir := record.WorkingDir
	if workingDir == "" {
		workingDir = t.selectWorkingDir("")
	}
	prompt := t.buildExecutePrompt(record)
	result := t.execClient.Run(ctx, RunOptions{Prompt: prompt, Mode: "exec", WorkingDir: workingDir, Sandbox: "danger-full-access", Model: model, TimeoutSec: timeoutSec})

	nowMs := time.Now().UnixMilli()
	if result.OK {
		record.Status = "executed"
		record.UpdatedAtMs = nowMs
		record.ConfirmationTokenHash = ""
		summary := summarize(result.Message, 1200)
		record.Execution = &ExecutionResult{OK: true, Summary: summary, AtMs: nowMs, ThreadID: result.ThreadID, Usage: result.Usage}
		_ = t.store.Save(record)
		return map[string]interface{}{
			"ok": true, "action": "execute_merge", "plan_id": record.PlanID,
			"status": record.Status, "summary": summary, "message": "Merge execution completed by codex.",
		}
	}

	errorMessage := extractErrorMessage(result)
	record.Status = "failed"
	record.UpdatedAtMs = nowMs
	record.Execution = &ExecutionResult{OK: false, Summary: errorMessage, AtMs: nowMs, ThreadID: result.ThreadID, Usage: result.Usage, Error: errorMessage}
	_ = t.store.Save(record)

	payload := resultToPayload(result)
	payload["action"] = "execute_merge"
	payload["plan_id"] = record.PlanID
	payload["status"] = "failed"
	return payload
}

func (t *MergeTool) status(planID string) map[string]interface{} {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return errPayload("missing_plan_id", "plan_id is required for status")
	}
	record := t.store.Load(planID)
	if record == nil {
		return errPayload("plan_not_found", "plan_id not found: "+planID)
	}
	return map[string]interface{}{"ok": true, "action": "status", "plan": record.PublicDict(true)}
}

func (t *MergeTool) list(limit int) map[string]interface{} {
	if limit <= 0 {
		limit = 1
	}
	records := t.store.List(limit)
	plans := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		plans = append(plans, r.PublicDict(false))
	}
	return map[string]interface{}{"ok": true, "action": "list", "plans": plans}
}

func (t *MergeTool) findLatestReport() string {
	reportsDir := filepath.Join(t.workspace, "reports")
	matches, err := filepath.Glob(filepath.Join(reportsDir, reportGlob))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, erri := os.Stat(matches[i])
		fj, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return false
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0]
}

func (t *MergeTool) selectWorkingDir(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return t.repoRoot
}

func (t *MergeTool) buildPlanPrompt(reportPath, excerpt, baseRef, upstreamRef, targetBranch string) string {
	return "You are a senior merge advisor. Planning phase only.\n" +
		"Do not execute git commands and do not modify files.\n\n" +
		"Repository working directory: " + t.repoRoot + "\n" +
		"Base ref: " + baseRef + "\n" +
		"Upstream ref: " + upstreamRef + "\n" +
		"Target branch: " + targetBranch + "\n" +
		"Report file: " + reportPath + "\n\n" +
		"Analyze the report and produce a merge recommendation.\n" +
		"Required sections:\n" +
		"1. Overall recommendation\n2. Conflict hotspots and risks\n3. Suggested merge strategy\n" +
		"4. Concrete execution checklist for codex\n5. Validation gates before push\n6. Go/No-Go decision with rationale\n\n" +
		"Report content:\n" + excerpt
}

func (t *MergeTool) buildRevisePrompt(record *PlanRecord, feedback, excerpt string) string {
	return "You are revising a merge recommendation. Planning phase only.\n" +
		"Do not execute git commands and do not modify files.\n\n" +
		"Plan ID: " + record.PlanID + "\n" +
		"Base ref: " + record.BaseRef + "\n" +
		"Upstream ref: " + record.UpstreamRef + "\n" +
		"Target branch: " + record.TargetBranch + "\n" +
		"Report path: " + record.ReportPath + "\n\n" +
		"Previous recommendation:\n" + record.Recommendation + "\n\n" +
		"User feedback:\n" + feedback + "\n\n" +
		"Generate a revised recommendation with the same required sections.\n" +
		"Include a short change log compared with the previous recommendation.\n\n" +
		"Report content:\n" + excerpt
}

func (t *MergeTool) buildExecutePrompt(record *PlanRecord) string {
	workingDir := record.WorkingDir
	if workingDir == "" {
		workingDir = t.repoRoot
	}
	return "You are responsible for executing a real merge workflow.\n" +
		"You must perform all steps yourself in the repository.\n" +
		"Tasks:\n1. Analyze the report and previous recommendation.\n" +
		"2. Fetch remotes, prepare branch, and merge upstream into target branch.\n" +
		"3. Resolve conflicts by editing code directly when needed.\n" +
		"4. Run minimal relevant verification before push.\n" +
		"5. Push results to origin target branch if verification passes.\n" +
		"6. If not safe, stop and explain exactly why.\n\n" +
		"Working directory: " + workingDir + "\n" +
		"Base ref: " + record.BaseRef + "\n" +
		"Upstream ref: " + record.UpstreamRef + "\n" +
		"Target branch: " + record.TargetBranch + "\n" +
		"Report path: " + record.ReportPath + "\n\n" +
		"Previous recommendation:\n" + record.Recommendation + "\n\n" +
		"Return a final summary with:\n- merged files/conflicts\n- verification commands and outcomes\n- push result\n- follow-up risks"
}

func readExcerpt(path string, limit int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := string(data)
	if len(text) <= limit {
		return text, nil
	}
	return text[:limit], nil
}

func summarize(text string, maxChars int) string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return ""
	}
	lines := make([]string, 0)
	for _, line := range strings.Split(clean, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == 8 {
			break
		}
	}
	compact := strings.Join(lines, "\n")
	if len(compact) <= maxChars {
		return compact
	}
	return strings.TrimRight(compact[:maxChars], " \t\n") + "..."
}

func extractErrorMessage(result *RunResult) string {
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return strings.TrimSpace(result.Error.Message)
	}
	if strings.TrimSpace(result.Message) != "" {
		return strings.TrimSpace(result.Message)
	}
	return "codex execution failed"
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// constantTimeHashEqual compares two hex-encoded hashes under constant-time
// semantics, so a confirmation token's validity can't leak through timing.
func constantTimeHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func errPayload(code, message string) map[string]interface{} {
	return map[string]interface{}{"ok": false, "error": map[string]interface{}{"code": code, "message": message}}
}

func resultToPayload(result *RunResult) map[string]interface{} {
	data, _ := json.Marshal(result)
	var payload map[string]interface{}
	_ = json.Unmarshal(data, &payload)
	return payload
}

func dumpResult(payload map[string]interface{}) *toolkit.Result {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return toolkit.ErrorResult("failed to encode codex_merge result")
	}
	ok, _ := payload["ok"].(bool)
	if !ok {
		return toolkit.ErrorResult(string(encoded))
	}
	return toolkit.SilentResult(string(encoded))
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
