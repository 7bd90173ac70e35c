// Package redact masks sensitive values in model output before it reaches
// a user or is persisted to a session log.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder constants. Stable across releases — callers may match on them.
const (
	PathPlaceholder    = "[REDACTED_PATH]"
	EndpointPlaceholder = "[REDACTED_ENDPOINT]"
	SecretPlaceholder  = "[REDACTED_SECRET]"
	ChatIDPlaceholder  = "[REDACTED_CHAT_ID]"
)

var (
	workspaceLineRe = regexp.MustCompile(`(?im)^(\s*Your workspace is at:\s*).+$`)
	chatIDLineRe    = regexp.MustCompile(`(?im)^(\s*Chat ID:\s*).+$`)
	chatIDFieldRe   = regexp.MustCompile(`(?i)(\bchat[_\s-]?id\b\s*[:=]\s*["']?)([^"'\s,}\]]+)`)
	sessionKeyRe    = regexp.MustCompile(`\b(cli|telegram|discord|whatsapp|feishu|dingtalk|slack|email|qq):([A-Za-z0-9_.@+\-]+)\b`)

	kvSecretRe  = regexp.MustCompile(`(?i)(["']?(?:api[_-]?key|token|secret|password|client[_-]?secret|authorization)["']?\s*[:=]\s*["']?)([^"'\s,}\]]+)`)
	bearerRe    = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=\-]{8,}\b`)
	genericSkRe = regexp.MustCompile(`\bsk-[A-Za-z0-9._=\-]{8,}\b`)
	slackTokRe  = regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9\-]{8,}\b|\bxapp-[A-Za-z0-9\-]{8,}\b`)

	privateEndpointRe = regexp.MustCompile(`(?i)\b(?:https?|wss?|socks5)://(?:localhost|127(?:\.\d{1,3}){3}|0\.0\.0\.0|10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[0-1])(?:\.\d{1,3}){2})(?::\d{1,5})?(?:/[^\s"` + "`" + `)]*)?`)
	privateHostPortRe = regexp.MustCompile(`(?i)\b(?:localhost|127(?:\.\d{1,3}){3}|0\.0\.0\.0|10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[0-1])(?:\.\d{1,3}){2}):\d{1,5}\b`)
	urlRe             = regexp.MustCompile(`(?i)\b(?:https?|wss?|socks5)://[^\s"` + "`" + `]+`)

	tildeDataDirPathRe = regexp.MustCompile(`(?i)~[\\/]\.nanobot(?:[\\/][^\s"` + "`" + `]+)*`)
	windowsAbsPathRe   = regexp.MustCompile(`(?i)(?:[A-Z]:[\\/](?:[^\\/\r\n:*?"<>|\s]+[\\/])*[^\\/\r\n:*?"<>|\s]*)`)
	unixAbsPathRe      = regexp.MustCompile(`(?:/(?:home|Users|root|etc|var|opt|tmp)(?:/[^\s"` + "`" + `]+)+)`)

	privateHostOnlyFullRe = regexp.MustCompile(`^(?i)(?:https?|wss?|socks5)://(?:localhost|127(?:\.\d{1,3}){3}|0\.0\.0\.0|10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[0-1])(?:\.\d{1,3}){2})(?::\d{1,5})?(?:/[^\s"` + "`" + `)]*)?$`)
)

// Redactor masks sensitive values from text shown to a user or persisted
// to a session log. Zero value is usable but matches no literal secrets.
type Redactor struct {
	enabled bool

	literalPaths     map[string]struct{}
	literalEndpoints map[string]struct{}
	literalSecrets   map[string]struct{}
}

// New builds a Redactor seeded with known literal values: the workspace
// root, the config file path, and any extra secrets (provider API keys,
// base URLs) known at startup. Values that look like an endpoint (contain
// "://", start with a loopback prefix, or are a bare IP[:port]) are
// classified as endpoints; everything else of length >= 6 is a secret.
func New(enabled bool, workspace, configPath string, extraSecrets []string) *Redactor {
	r := &Redactor{
		enabled:          enabled,
		literalPaths:     map[string]struct{}{},
		literalEndpoints: map[string]struct{}{},
		literalSecrets:   map[string]struct{}{},
	}
	if workspace != "" {
		r.addPathLiteral(workspace)
	}
	if configPath != "" {
		r.addPathLiteral(configPath)
	}
	for _, raw := range extraSecrets {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if looksLikeEndpoint(v) {
			r.literalEndpoints[v] = struct{}{}
		} else if len(v) >= 6 {
			r.literalSecrets[v] = struct{}{}
		}
	}
	return r
}

func (r *Redactor) addPathLiteral(p string) {
	if p == "" {
		return
	}
	r.literalPaths[p] = struct{}{}
	r.literalPaths[strings.ReplaceAll(p, "\\", "/")] = struct{}{}
}

func looksLikeEndpoint(v string) bool {
	lower := strings.ToLower(v)
	if strings.Contains(lower, "://") {
		return true
	}
	for _, prefix := range []string{"localhost", "127.", "0.0.0.0"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}(?::\d{1,5})?$`).MatchString(v)
}

// Redact applies the fixed ordered pipeline. Running it twice over its own
// output is a no-op: Redact(Redact(x)) == Redact(x).
func (r *Redactor) Redact(text string) string {
	if !r.enabled || text == "" {
		return text
	}

	s := text

	s = workspaceLineRe.ReplaceAllString(s, "${1}"+PathPlaceholder)
	s = chatIDLineRe.ReplaceAllString(s, "${1}"+ChatIDPlaceholder)
	s = chatIDFieldRe.ReplaceAllString(s, "${1}"+ChatIDPlaceholder)
	s = sessionKeyRe.ReplaceAllString(s, "${1}:"+ChatIDPlaceholder)

	s = replaceLiterals(s, r.literalSecrets, SecretPlaceholder)
	s = replaceLiterals(s, r.literalEndpoints, EndpointPlaceholder)
	s = replaceLiterals(s, r.literalPaths, PathPlaceholder)

	s = kvSecretRe.ReplaceAllString(s, "${1}"+SecretPlaceholder)
	s = bearerRe.ReplaceAllString(s, "Bearer "+SecretPlaceholder)
	s = genericSkRe.ReplaceAllString(s, SecretPlaceholder)
	s = slackTokRe.ReplaceAllString(s, SecretPlaceholder)

	s = privateEndpointRe.ReplaceAllString(s, EndpointPlaceholder)
	s = privateHostPortRe.ReplaceAllString(s, EndpointPlaceholder)
	s = urlRe.ReplaceAllStringFunc(s, func(url string) string {
		if privateHostOnlyFullRe.MatchString(url) {
			return EndpointPlaceholder
		}
		if _, ok := r.literalEndpoints[url]; ok {
			return EndpointPlaceholder
		}
		return url
	})

	s = tildeDataDirPathRe.ReplaceAllString(s, PathPlaceholder)
	s = windowsAbsPathRe.ReplaceAllString(s, PathPlaceholder)
	s = unixAbsPathRe.ReplaceAllString(s, PathPlaceholder)

	return s
}

// replaceLiterals substitutes the longest literals first so that one value
// being a substring of another never leaves a partial, unredacted remnant.
func replaceLiterals(text string, values map[string]struct{}, placeholder string) string {
	if len(values) == 0 {
		return text
	}
	ordered := make([]string, 0, len(values))
	for v := range values {
		ordered = append(ordered, v)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	s := text
	for _, v := range ordered {
		if v == "" {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
		if strings.Contains(v, "\\") {
			s = strings.ReplaceAll(s, strings.ReplaceAll(v, "\\", "\\\\"), placeholder)
		}
	}
	return s
}
