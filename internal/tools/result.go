package tools

import "github.com/nextlevelbuilder/goclaw/internal/toolkit"

// Result is the unified return type from tool execution. Re-exported from
// internal/toolkit so that subpackages (codex, todo) can build *Result
// values without importing this package back (that would cycle, since
// factory.go here imports them to register their tools).
type Result = toolkit.Result

var (
	NewResult    = toolkit.NewResult
	SilentResult = toolkit.SilentResult
	ErrorResult  = toolkit.ErrorResult
	UserResult   = toolkit.UserResult
	AsyncResult  = toolkit.AsyncResult
)
