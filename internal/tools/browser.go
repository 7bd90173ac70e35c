package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

// relToWorkspace returns path relative to workspace, for artifact reporting.
func relToWorkspace(workspace, path string) (string, error) {
	return filepath.Rel(workspace, path)
}

var supportedBrowserEngines = map[string]bool{"chromium": true, "firefox": true}
var supportedBrowserActions = map[string]bool{
	"goto": true, "click": true, "type": true, "wait_for": true, "extract_text": true, "screenshot": true,
}
var supportedWaitUntil = map[string]bool{"domcontentloaded": true, "load": true, "networkidle": true}

// BrowserTool runs a bounded list of actions in a single browser session
// via go-rod (CDP over Chromium; rod has no Firefox driver, so a
// "firefox" request still launches the managed Chromium build and is
// recorded as such in the result — see browser_installer.go).
type BrowserTool struct {
	workspace    string
	cfg          config.BrowserToolConfig
	stateDir     string
	artifactsDir string
}

func NewBrowserTool(workspace string, cfg config.BrowserToolConfig) (*BrowserTool, error) {
	stateDir, err := resolvePath(orDefault(cfg.StateDir, "browser-state"), workspace, true)
	if err != nil {
		return nil, fmt.Errorf("tools.web.browser.stateDir: %w", err)
	}
	artifactsDir, err := resolvePath(orDefault(cfg.ArtifactsDir, "browser-artifacts"), workspace, true)
	if err != nil {
		return nil, fmt.Errorf("tools.web.browser.artifactsDir: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return nil, err
	}
	return &BrowserTool{workspace: workspace, cfg: cfg, stateDir: stateDir, artifactsDir: artifactsDir}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (t *BrowserTool) Name() string { return "browser_run" }

func (t *BrowserTool) Description() string {
	return "Run browser actions (goto/click/type/wait_for/extract_text/screenshot) in one session."
}

func (t *BrowserTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"browser":   map[string]interface{}{"type": "string", "enum": []string{"chromium", "firefox"}},
			"headless":  map[string]interface{}{"type": "boolean"},
			"startUrl":  map[string]interface{}{"type": "string"},
			"timeoutMs": map[string]interface{}{"type": "integer", "minimum": 1000, "maximum": 120000},
			"stateKey":  map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 64},
			"saveState": map[string]interface{}{"type": "boolean"},
			"actions": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"type":      map[string]interface{}{"type": "string", "enum": []string{"goto", "click", "type", "wait_for", "extract_text", "screenshot"}},
						"url":       map[string]interface{}{"type": "string"},
						"selector":  map[string]interface{}{"type": "string"},
						"text":      map[string]interface{}{"type": "string"},
						"timeoutMs": map[string]interface{}{"type": "integer", "minimum": 100, "maximum": 120000},
						"waitUntil": map[string]interface{}{"type": "string", "enum": []string{"domcontentloaded", "load", "networkidle"}},
						"maxChars":  map[string]interface{}{"type": "integer", "minimum": 100, "maximum": 100000},
						"path":      map[string]interface{}{"type": "string"},
						"fullPage":  map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"type"},
				},
			},
		},
		"required": []string{"actions"},
	}
}

type browserError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type browserRunResult struct {
	OK            bool                     `json:"ok"`
	Browser       string                   `json:"browser,omitempty"`
	Headless      bool                     `json:"headless,omitempty"`
	FinalURL      *string                  `json:"finalUrl"`
	Title         *string                  `json:"title"`
	Steps         []map[string]interface{} `json:"steps"`
	Artifacts     []string                 `json:"artifacts"`
	Error         *browserError            `json:"error,omitempty"`
	TimingMs      int64                    `json:"timingMs,omitempty"`
	InstallOutput string                   `json:"installOutput,omitempty"`
}

func errorRunResult(code, message string, details map[string]interface{}) *browserRunResult {
	return &browserRunResult{
		OK:        false,
		Steps:     []map[string]interface{}{},
		Artifacts: []string{},
		Error:     &browserError{Code: code, Message: message, Details: details},
	}
}

func (t *BrowserTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	started := time.Now()

	rawActions, _ := args["actions"].([]interface{})
	actions := make([]map[string]interface{}, 0, len(rawActions))
	for _, a := range rawActions {
		if m, ok := a.(map[string]interface{}); ok {
			actions = append(actions, m)
		}
	}

	browserName, _ := args["browser"].(string)
	var headless *bool
	if h, ok := args["headless"].(bool); ok {
		headless = &h
	}
	startURL, _ := args["startUrl"].(string)
	var timeoutMs *int
	if v, ok := args["timeoutMs"].(float64); ok {
		iv := int(v)
		timeoutMs = &iv
	}
	stateKey, _ := args["stateKey"].(string)
	saveState, _ := args["saveState"].(bool)

	result := t.runValidated(ctx, actions, browserName, headless, startURL, timeoutMs, stateKey, saveState)
	result.TimingMs = time.Since(started).Milliseconds()

	encoded, err := json.Marshal(result)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to encode browser_run result: %v", err))
	}
	if !result.OK {
		return ErrorResult(string(encoded))
	}
	return SilentResult(string(encoded))
}

func (t *BrowserTool) runValidated(ctx context.Context, actions []map[string]interface{}, browserName string, headless *bool, startURL string, timeoutMs *int, stateKey string, saveState bool) *browserRunResult {
	if len(actions) == 0 {
		return errorRunResult("invalid_input", "actions must not be empty", nil)
	}
	maxActions := t.cfg.MaxActions
	if maxActions <= 0 {
		maxActions = 20
	}
	if len(actions) > maxActions {
		return errorRunResult("invalid_input", fmt.Sprintf("actions count exceeds maxActions=%d", maxActions), nil)
	}

	engine := browserName
	if engine == "" {
		engine = orDefault(t.cfg.DefaultBrowser, "chromium")
	}
	if !supportedBrowserEngines[engine] {
		return errorRunResult("invalid_input", "browser must be one of [chromium firefox]", nil)
	}

	effectiveTimeout := t.cfg.TimeoutMs
	if effectiveTimeout <= 0 {
		effectiveTimeout = 30000
	}
	if timeoutMs != nil {
		effectiveTimeout = *timeoutMs
	}
	if effectiveTimeout < 1000 || effectiveTimeout > 120000 {
		return errorRunResult("invalid_input", "timeoutMs must be in [1000, 120000]", nil)
	}

	effectiveHeadless := t.cfg.Headless
	if headless != nil {
		effectiveHeadless = *headless
	}

	var statePath string
	if stateKey != "" {
		if err := validateStateKey(stateKey); err != nil {
			return errorRunResult("invalid_input", err.Error(), nil)
		}
		statePath = filepath.Join(t.stateDir, stateKey+".json")
	}
	if saveState && statePath == "" {
		return errorRunResult("invalid_input", "saveState=true requires stateKey", nil)
	}

	if startURL != "" {
		if err := validateNavigationURL(startURL, t.cfg.AllowPrivateNetwork, t.cfg.BlockFileScheme); err != nil {
			return errorRunResult("invalid_input", err.Error(), nil)
		}
	}

	hasGoto := false
	for i, action := range actions {
		if err := t.validateAction(i+1, action); err != nil {
			return errorRunResult("invalid_input", err.Error(), nil)
		}
		if action["type"] == "goto" {
			hasGoto = true
		}
	}
	if startURL == "" && !hasGoto {
		return errorRunResult("invalid_input", "either startUrl or at least one goto action is required", nil)
	}

	result, err := t.runOnce(ctx, actions, engine, effectiveHeadless, startURL, effectiveTimeout, statePath, saveState)
	if err == nil {
		return result
	}
	if !t.cfg.AutoInstallBrowsers || !isMissingBrowserError(err) {
		return errorRunResult("browser_run_failed", err.Error(), nil)
	}

	installPath, installErr := installBrowserBinary()
	if installErr != nil {
		return errorRunResult("browser_install_failed", installErr.Error(), map[string]interface{}{"initialError": err.Error()})
	}

	rerun, rerunErr := t.runOnceWithBinary(ctx, actions, engine, effectiveHeadless, startURL, effectiveTimeout, statePath, saveState, installPath)
	if rerunErr != nil {
		return errorRunResult("browser_run_failed", rerunErr.Error(), map[string]interface{}{
			"initialError": err.Error(),
			"installPath":  installPath,
		})
	}
	rerun.InstallOutput = "installed browser at " + installPath
	return rerun
}

func (t *BrowserTool) validateAction(index int, action map[string]interface{}) error {
	actionType, _ := action["type"].(string)
	if !supportedBrowserActions[actionType] {
		return fmt.Errorf("action #%d: unsupported type '%s'", index, actionType)
	}

	if tm, ok := action["timeoutMs"].(float64); ok && (tm < 100 || tm > 120000) {
		return fmt.Errorf("action #%d: timeoutMs must be in [100, 120000]", index)
	}

	switch actionType {
	case "goto":
		url, _ := action["url"].(string)
		if url == "" {
			return fmt.Errorf("action #%d: goto requires non-empty url", index)
		}
		if err := validateNavigationURL(url, t.cfg.AllowPrivateNetwork, t.cfg.BlockFileScheme); err != nil {
			return fmt.Errorf("action #%d: %v", index, err)
		}
		if waitUntil, ok := action["waitUntil"].(string); ok && waitUntil != "" && !supportedWaitUntil[waitUntil] {
			return fmt.Errorf("action #%d: waitUntil must be one of [domcontentloaded load networkidle]", index)
		}
	case "click":
		selector, _ := action["selector"].(string)
		if selector == "" {
			return fmt.Errorf("action #%d: click requires selector", index)
		}
	case "type":
		selector, _ := action["selector"].(string)
		if selector == "" {
			return fmt.Errorf("action #%d: type requires selector", index)
		}
		if _, ok := action["text"].(string); !ok {
			return fmt.Errorf("action #%d: type requires text", index)
		}
	case "wait_for":
		_, hasSelector := action["selector"].(string)
		_, hasText := action["text"].(string)
		_, hasTimeout := action["timeoutMs"]
		if !hasSelector && !hasText && !hasTimeout {
			return fmt.Errorf("action #%d: wait_for requires selector/text or timeoutMs", index)
		}
	case "extract_text":
		if mc, ok := action["maxChars"].(float64); ok && (mc < 100 || mc > 100000) {
			return fmt.Errorf("action #%d: maxChars must be in [100, 100000]", index)
		}
	case "screenshot":
		if p, ok := action["path"].(string); ok && p != "" {
			if _, err := resolvePath(p, t.workspace, true); err != nil {
				return fmt.Errorf("action #%d screenshot.path: %v", index, err)
			}
		}
	}
	return nil
}

func (t *BrowserTool) runOnce(ctx context.Context, actions []map[string]interface{}, engine string, headless bool, startURL string, timeoutMs int, statePath string, saveState bool) (*browserRunResult, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	return t.drive(ctx, controlURL, actions, engine, headless, startURL, timeoutMs, statePath, saveState)
}

func (t *BrowserTool) runOnceWithBinary(ctx context.Context, actions []map[string]interface{}, engine string, headless bool, startURL string, timeoutMs int, statePath string, saveState bool, bin string) (*browserRunResult, error) {
	l := launcher.New().Bin(bin).Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	return t.drive(ctx, controlURL, actions, engine, headless, startURL, timeoutMs, statePath, saveState)
}

func (t *BrowserTool) drive(ctx context.Context, controlURL string, actions []map[string]interface{}, engine string, headless bool, startURL string, timeoutMs int, statePath string, saveState bool) (*browserRunResult, error) {
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}

	if statePath != "" {
		if data, err := os.ReadFile(statePath); err == nil {
			var cookies []*proto.NetworkCookieParam
			if json.Unmarshal(data, &cookies) == nil && len(cookies) > 0 {
				_ = page.SetCookies(cookies)
			}
		}
	}

	timeout := time.Duration(timeoutMs) * time.Millisecond

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		reason := requestURLBlockReason(h.Request.URL().String(), t.cfg.AllowPrivateNetwork, t.cfg.BlockFileScheme)
		if reason != "" {
			_ = h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		_ = h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() {
		_ = router.Stop()
	}()

	steps := make([]map[string]interface{}, 0, len(actions)+1)
	artifacts := make([]string, 0)

	if startURL != "" {
		if err := page.Timeout(timeout).Navigate(startURL); err != nil {
			return nil, err
		}
		_ = page.Timeout(timeout).WaitLoad()
		steps = append(steps, map[string]interface{}{
			"index": 0, "type": "goto", "source": "startUrl", "url": startURL,
		})
	}

	for i, action := range actions {
		step, err := t.executeAction(page, action, i+1, timeout, &artifacts)
		if err != nil {
			return nil, fmt.Errorf("action #%d (%v): %w", i+1, action["type"], err)
		}
		steps = append(steps, step)
	}

	if saveState && statePath != "" {
		cookies, err := page.Cookies(nil)
		if err == nil {
			params := make([]*proto.NetworkCookieParam, 0, len(cookies))
			for _, c := range cookies {
				params = append(params, &proto.NetworkCookieParam{
					Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
					Secure: c.Secure, HTTPOnly: c.HTTPOnly,
				})
			}
			if data, merr := json.Marshal(params); merr == nil {
				tmp := statePath + ".tmp"
				if werr := os.WriteFile(tmp, data, 0o644); werr == nil {
					_ = os.Rename(tmp, statePath)
				}
			}
		}
	}

	info, err := page.Info()
	var finalURL, title *string
	if err == nil {
		finalURL = &info.URL
		title = &info.Title
	}

	return &browserRunResult{
		OK:        true,
		Browser:   engine,
		Headless:  headless,
		FinalURL:  finalURL,
		Title:     title,
		Steps:     steps,
		Artifacts: artifacts,
	}, nil
}

func (t *BrowserTool) executeAction(page *rod.Page, action map[string]interface{}, index int, defaultTimeout time.Duration, artifacts *[]string) (map[string]interface{}, error) {
	actionType, _ := action["type"].(string)
	timeout := defaultTimeout
	if tm, ok := action["timeoutMs"].(float64); ok && tm > 0 {
		timeout = time.Duration(tm) * time.Millisecond
	}

	switch actionType {
	case "goto":
		url, _ := action["url"].(string)
		waitUntil, _ := action["waitUntil"].(string)
		if waitUntil == "" {
			waitUntil = "domcontentloaded"
		}
		if err := page.Timeout(timeout).Navigate(url); err != nil {
			return nil, err
		}
		_ = page.Timeout(timeout).WaitLoad()
		return map[string]interface{}{"index": index, "type": "goto", "url": url, "waitUntil": waitUntil}, nil

	case "click":
		selector, _ := action["selector"].(string)
		el, err := page.Timeout(timeout).Element(selector)
		if err != nil {
			return nil, err
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, err
		}
		return map[string]interface{}{"index": index, "type": "click", "selector": selector}, nil

	case "type":
		selector, _ := action["selector"].(string)
		text, _ := action["text"].(string)
		el, err := page.Timeout(timeout).Element(selector)
		if err != nil {
			return nil, err
		}
		if err := el.Input(text); err != nil {
			return nil, err
		}
		return map[string]interface{}{"index": index, "type": "type", "selector": selector, "chars": len(text)}, nil

	case "wait_for":
		selector, hasSelector := action["selector"].(string)
		text, hasText := action["text"].(string)
		if hasSelector && selector != "" {
			if _, err := page.Timeout(timeout).Element(selector); err != nil {
				return nil, err
			}
			return map[string]interface{}{"index": index, "type": "wait_for", "selector": selector}, nil
		}
		if hasText && text != "" {
			if _, err := page.Timeout(timeout).ElementR("*", regexp.QuoteMeta(text)); err != nil {
				return nil, err
			}
			return map[string]interface{}{"index": index, "type": "wait_for", "text": text}, nil
		}
		time.Sleep(timeout)
		return map[string]interface{}{"index": index, "type": "wait_for", "sleepMs": timeout.Milliseconds()}, nil

	case "extract_text":
		selector, _ := action["selector"].(string)
		var el *rod.Element
		var err error
		if selector != "" {
			el, err = page.Timeout(timeout).Element(selector)
		} else {
			el, err = page.Timeout(timeout).Element("body")
		}
		if err != nil {
			return nil, err
		}
		extracted, err := el.Text()
		if err != nil {
			return nil, err
		}
		maxChars := t.cfg.MaxExtractChars
		if maxChars <= 0 {
			maxChars = 10000
		}
		if mc, ok := action["maxChars"].(float64); ok && int(mc) < maxChars {
			maxChars = int(mc)
		}
		truncated := len(extracted) > maxChars
		text := extracted
		if truncated {
			text = extracted[:maxChars]
		}
		return map[string]interface{}{
			"index": index, "type": "extract_text", "selector": selector,
			"length": len(text), "truncated": truncated, "text": text,
		}, nil

	case "screenshot":
		rawPath, _ := action["path"].(string)
		outPath, err := t.resolveScreenshotPath(rawPath, index)
		if err != nil {
			return nil, err
		}
		fullPage, _ := action["fullPage"].(bool)
		data, err := page.Screenshot(fullPage, nil)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return nil, err
		}
		rel, err := relToWorkspace(t.workspace, outPath)
		if err != nil {
			rel = outPath
		}
		*artifacts = append(*artifacts, rel)
		return map[string]interface{}{"index": index, "type": "screenshot", "path": rel, "fullPage": fullPage}, nil
	}

	return nil, fmt.Errorf("unsupported action type: %s", actionType)
}

func (t *BrowserTool) resolveScreenshotPath(rawPath string, index int) (string, error) {
	if rawPath != "" {
		return resolvePath(rawPath, t.workspace, true)
	}
	filename := fmt.Sprintf("screenshot-%d-%d.png", time.Now().UnixMilli(), index)
	return filepath.Join(t.artifactsDir, filename), nil
}
