package agent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/redact"
)

// OutboundPolicy redacts and normalizes every message before it reaches a
// Channel: content is passed through the Redactor, and media paths are
// resolved to an absolute path under the workspace whenever the referenced
// file actually exists there.
type OutboundPolicy struct {
	workspace string
	redactor  *redact.Redactor
}

func NewOutboundPolicy(workspace string, redactor *redact.Redactor) *OutboundPolicy {
	return &OutboundPolicy{workspace: workspace, redactor: redactor}
}

// RedactOutbound returns a copy of msg with content redacted and media
// normalized.
func (p *OutboundPolicy) RedactOutbound(msg bus.OutboundMessage) bus.OutboundMessage {
	out := msg
	out.Content = p.redactor.Redact(msg.Content)
	out.Media = p.NormalizeMedia(msg.Media)
	return out
}

// NormalizeMedia resolves each path against, in order: absolute as-is,
// the process CWD, a literal "workspace/" prefix stripped and resolved
// under the workspace, and the path taken as workspace-relative. The
// first candidate that exists on disk wins; otherwise it falls back to
// the workspace-relative resolution so the path is at least well-formed.
func (p *OutboundPolicy) NormalizeMedia(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, raw := range paths {
		out = append(out, p.normalizeOne(raw))
	}
	return out
}

func (p *OutboundPolicy) normalizeOne(raw string) string {
	if raw == "" {
		return raw
	}

	var candidates []string
	if filepath.IsAbs(raw) {
		candidates = append(candidates, raw)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, raw))
		}
		stripped := strings.TrimPrefix(raw, "workspace/")
		candidates = append(candidates, filepath.Join(p.workspace, stripped))
		candidates = append(candidates, filepath.Join(p.workspace, raw))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	if filepath.IsAbs(raw) {
		return raw
	}
	return filepath.Join(p.workspace, raw)
}
