package codex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

var supportedModes = map[string]bool{"exec": true, "review": true}
var supportedSandboxes = map[string]bool{"read-only": true, "workspace-write": true, "danger-full-access": true}

// RunResult is the normalized outcome of one codex CLI invocation.
type RunResult struct {
	OK                bool                   `json:"ok"`
	Mode              string                 `json:"mode,omitempty"`
	Sandbox           string                 `json:"sandbox,omitempty"`
	ThreadID          string                 `json:"thread_id,omitempty"`
	Message           string                 `json:"message,omitempty"`
	Usage             map[string]interface{} `json:"usage,omitempty"`
	MessageTruncated  bool                   `json:"message_truncated,omitempty"`
	Stderr            string                 `json:"stderr,omitempty"`
	StderrTruncated   bool                   `json:"stderr_truncated,omitempty"`
	ExitCode          *int                   `json:"exit_code,omitempty"`
	Error             *RunError              `json:"error,omitempty"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorResult(code, message string) *RunResult {
	return &RunResult{OK: false, Error: &RunError{Code: code, Message: message}}
}

// RunOptions carries one codex invocation's parameters.
type RunOptions struct {
	Prompt     string
	Mode       string // exec|review, default exec
	WorkingDir string
	Sandbox    string // default config.DefaultSandbox
	Model      string
	TimeoutSec int // 0 means use config default
}

// Client executes the codex CLI non-interactively and normalizes its JSONL
// stdout stream into a RunResult.
type Client struct {
	workspace           string
	cfg                 config.CodexToolConfig
	restrictToWorkspace bool
}

func NewClient(workspace string, cfg config.CodexToolConfig, restrictToWorkspace bool) *Client {
	return &Client{workspace: workspace, cfg: cfg, restrictToWorkspace: restrictToWorkspace}
}

func (c *Client) Run(ctx context.Context, opts RunOptions) *RunResult {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode == "" {
		mode = "exec"
	}
	if !supportedModes[mode] {
		return errorResult("invalid_mode", "mode must be one of [exec review]")
	}

	task := strings.TrimSpace(opts.Prompt)
	if task == "" {
		return errorResult("invalid_prompt", "prompt must not be empty")
	}

	cwd, err := c.resolveWorkingDir(opts.WorkingDir)
	if err != nil {
		return errorResult("invalid_working_dir", err.Error())
	}

	sandbox := strings.ToLower(strings.TrimSpace(opts.Sandbox))
	if sandbox == "" {
		sandbox = strings.ToLower(c.cfg.DefaultSandbox)
	}
	if !supportedSandboxes[sandbox] {
		return errorResult("invalid_sandbox", "sandbox must be one of [read-only workspace-write danger-full-access]")
	}

	fullAccess := c.cfg.AllowDangerousFullAccess
	effectiveSandbox := sandbox
	if fullAccess {
		effectiveSandbox = "danger-full-access"
	}

	if sandbox == "danger-full-access" && !fullAccess {
		return errorResult("dangerous_full_access_not_allowed", "danger-full-access requires tools.codex.allowDangerousFullAccess=true")
	}
	if effectiveSandbox == "workspace-write" && !c.cfg.AllowWorkspaceWrite {
		return errorResult("workspace_write_not_allowed", "workspace-write sandbox is disabled by tools.codex.allowWorkspaceWrite")
	}

	timeoutSec := c.cfg.TimeoutSec
	if opts.TimeoutSec != 0 {
		timeoutSec = opts.TimeoutSec
	}
	if timeoutSec <= 0 {
		return errorResult("invalid_timeout", "timeout_sec must be >= 1")
	}

	command, err := c.resolveCommand()
	if err != nil {
		return errorResult("command_not_found", err.Error())
	}

	args := buildArgs(mode, task, effectiveSandbox, fullAccess, cwd, opts.Model)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return errorResult("timeout", fmt.Sprintf("codex_run timed out after %d seconds", timeoutSec))
	}

	parsed := parseJSONL(stdout.String())
	message, messageTruncated := c.truncate(parsed.message)
	stderrText, stderrTruncated := c.truncate(strings.TrimSpace(stderr.String()))

	exitCode := cmd.ProcessState.ExitCode()
	if runErr != nil && exitCode == -1 {
		return errorResult("spawn_failed", runErr.Error())
	}

	if exitCode != 0 {
		msg := message
		if msg == "" {
			msg = stderrText
		}
		if msg == "" {
			msg = fmt.Sprintf("Codex exited with code %d", exitCode)
		}
		result := errorResult("codex_failed", msg)
		result.ExitCode = &exitCode
		result.ThreadID = parsed.threadID
		result.Usage = parsed.usage
		if stderrText != "" {
			result.Stderr = stderrText
			result.StderrTruncated = stderrTruncated
		}
		return result
	}

	if message == "" {
		errMsg := "No final agent_message found in Codex output"
		if parsed.parseErrors > 0 {
			errMsg = "Failed to parse Codex JSON output"
		}
		result := errorResult("invalid_output", errMsg)
		result.ThreadID = parsed.threadID
		result.Usage = parsed.usage
		if stderrText != "" {
			result.Stderr = stderrText
			result.StderrTruncated = stderrTruncated
		}
		return result
	}

	result := &RunResult{
		OK:               true,
		Mode:             mode,
		Sandbox:          effectiveSandbox,
		ThreadID:         parsed.threadID,
		Message:          message,
		Usage:            parsed.usage,
		MessageTruncated: messageTruncated,
	}
	if stderrText != "" {
		result.Stderr = stderrText
		result.StderrTruncated = stderrTruncated
	}
	return result
}

func (c *Client) resolveWorkingDir(workingDir string) (string, error) {
	if workingDir == "" {
		return c.workspace, nil
	}
	var path string
	if filepath.IsAbs(workingDir) {
		path = filepath.Clean(workingDir)
	} else {
		path = filepath.Clean(filepath.Join(c.workspace, workingDir))
	}

	if c.restrictToWorkspace {
		absWorkspace, _ := filepath.Abs(c.workspace)
		absPath, _ := filepath.Abs(path)
		if absPath != absWorkspace && !strings.HasPrefix(absPath, absWorkspace+string(filepath.Separator)) {
			return "", fmt.Errorf("working_dir %s is outside workspace %s", path, c.workspace)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("working_dir does not exist: %s", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working_dir is not a directory: %s", path)
	}
	return path, nil
}

func (c *Client) resolveCommand() (string, error) {
	command := strings.TrimSpace(c.cfg.Command)
	if command == "" {
		return "", fmt.Errorf("Codex command not found: %s", c.cfg.Command)
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved, nil
	}
	if info, err := os.Stat(command); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(command)
		if err == nil {
			return abs, nil
		}
	}
	return "", fmt.Errorf("Codex command not found: %s", c.cfg.Command)
}

func buildArgs(mode, prompt, sandbox string, fullAccess bool, cwd, model string) []string {
	args := []string{"exec"}
	if mode == "review" {
		args = append(args, "review")
	}
	args = append(args, "--json", "-c", `approval_policy="never"`)
	if fullAccess {
		args = append(args, "--dangerously-bypass-approvals-and-sandbox")
	} else {
		args = append(args, "--sandbox", sandbox)
	}
	args = append(args, "-C", cwd)
	if mode == "exec" {
		args = append(args, "--skip-git-repo-check")
	}
	if model != "" {
		args = append(args, "-m", model)
	}
	args = append(args, prompt)
	return args
}

type parsedOutput struct {
	threadID    string
	message     string
	usage       map[string]interface{}
	parseErrors int
}

// parseJSONL reads codex's `--json` event stream, keeping the last
// agent_message text and the turn's usage accounting.
func parseJSONL(text string) parsedOutput {
	var out parsedOutput
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event map[string]interface{}
		if json.Unmarshal([]byte(line), &event) != nil {
			out.parseErrors++
			continue
		}

		switch event["type"] {
		case "thread.started":
			if id, ok := event["thread_id"].(string); ok {
				out.threadID = id
			}
		case "item.completed":
			if item, ok := event["item"].(map[string]interface{}); ok && item["type"] == "agent_message" {
				if text, ok := item["text"].(string); ok {
					out.message = text
				}
			}
		case "turn.completed":
			if usage, ok := event["usage"].(map[string]interface{}); ok {
				out.usage = usage
			}
		}
	}
	return out
}

func (c *Client) truncate(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	limit := c.cfg.MaxOutputChars
	if limit <= 0 {
		limit = 8000
	}
	if len(text) <= limit {
		return text, false
	}
	return text[:limit], true
}
