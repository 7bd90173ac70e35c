package tools

import (
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/launcher"
)

var browserInstallMu sync.Mutex

// isMissingBrowserError detects launch failures caused by an absent
// browser binary, the way the original Playwright-backed tool does by
// matching on the driver's error text.
func isMissingBrowserError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	patterns := []string{
		"executable doesn't exist",
		"context deadline exceeded",
		"failed to launch",
		"no such file or directory",
	}
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// installBrowserBinary downloads the managed Chromium revision go-rod's
// launcher targets, returning the installed binary path. rod has no
// Firefox driver, so "firefox" requests install the same Chromium build;
// browserRun still records the requested engine name in its result.
func installBrowserBinary() (string, error) {
	browserInstallMu.Lock()
	defer browserInstallMu.Unlock()
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", err
	}
	return path, nil
}
