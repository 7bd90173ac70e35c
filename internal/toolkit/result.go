// Package toolkit holds the Tool interface and Result envelope shared by
// internal/tools and its subpackages (codex, todo). It exists only so that
// those subpackages can depend on the result/tool contract without
// importing internal/tools itself, which would create an import cycle
// (internal/tools imports the subpackages to register their constructors).
package toolkit

import (
	"context"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// Tool is one capability registered into a Registry. Name and Schema are
// declared once; Execute never panics — failures are reported through the
// returned Result.
type Tool interface {
	Name() string
	Description() string
	// Parameters is a JSON-schema-lite object: {"type":"object",
	// "properties": {...}, "required": [...]}.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`            // content sent to the LLM
	ForUser string `json:"for_user,omitempty"` // content shown to the user
	Silent  bool   `json:"silent"`             // suppress user message
	IsError bool   `json:"is_error"`           // marks error
	Async   bool   `json:"async"`              // running asynchronously
	Err     error  `json:"-"`                  // internal error (not serialized)

	// Usage holds token usage from tools that make internal LLM calls (e.g. read_image).
	// When set, the agent loop records these on the tool span for tracing.
	Usage    *providers.Usage `json:"-"`
	Provider string           `json:"-"` // provider name (for tool span metadata)
	Model    string           `json:"-"` // model used (for tool span metadata)
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func SilentResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM, Silent: true}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}

func AsyncResult(message string) *Result {
	return &Result{ForLLM: message, Async: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
