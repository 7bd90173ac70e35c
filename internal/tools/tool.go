// Package tools implements the ToolRegistry and the individual
// capabilities exposed to the LLM: filesystem, shell, web search/fetch,
// browser automation, codex subprocess orchestration, TODO management,
// messaging, and sub-agent spawning.
package tools

import "github.com/nextlevelbuilder/goclaw/internal/toolkit"

// Tool is one capability registered into a Registry. Re-exported from
// internal/toolkit; see result.go for why.
type Tool = toolkit.Tool
