package tools

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var stateKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// validateStateKey checks the stateKey format used for persisted browser
// storage-state files.
func validateStateKey(stateKey string) error {
	if stateKeyPattern.MatchString(stateKey) {
		return nil
	}
	return fmt.Errorf("stateKey must match [A-Za-z0-9_-]{1,64}")
}

var localHostnames = map[string]bool{
	"localhost":              true,
	"localhost.localdomain":  true,
	"host.docker.internal":   true,
}

var allowedRequestSchemes = map[string]bool{
	"http": true, "https": true, "about": true, "blob": true, "data": true,
}

// isPrivateOrLocalHost checks whether host is local/private, by hostname or
// literal IP, for the browser tool's network guard (distinct from
// checkSSRF's DNS-resolving variant used by web_fetch/web_search: a page's
// navigation target must be judged by literal host/IP only, without an
// extra round-trip per blocked request).
func isPrivateOrLocalHost(host string) bool {
	normalized := strings.ToLower(strings.TrimRight(host, "."))
	if localHostnames[normalized] || strings.HasSuffix(normalized, ".local") {
		return true
	}
	ip := net.ParseIP(normalized)
	if ip == nil {
		return false
	}
	return isPrivateOrReservedIP(ip)
}

// validateNavigationURL validates a top-level page navigation target.
func validateNavigationURL(rawURL string, allowPrivateNetwork, blockFileScheme bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	scheme := strings.ToLower(parsed.Scheme)

	if scheme == "file" && blockFileScheme {
		return fmt.Errorf("file:// URLs are blocked")
	}
	if scheme != "http" && scheme != "https" {
		if scheme == "" {
			scheme = "none"
		}
		return fmt.Errorf("only http/https URLs are allowed, got '%s'", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL host is required")
	}
	if !allowPrivateNetwork && isPrivateOrLocalHost(host) {
		return fmt.Errorf("private/local host blocked: %s", host)
	}
	return nil
}

// requestURLBlockReason returns a non-empty reason if an in-page network
// request (not a top-level navigation) should be blocked, or "" if allowed.
func requestURLBlockReason(rawURL string, allowPrivateNetwork, blockFileScheme bool) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	scheme := strings.ToLower(parsed.Scheme)

	if scheme == "file" && blockFileScheme {
		return "file:// requests are blocked"
	}
	if !allowedRequestSchemes[scheme] {
		if scheme == "" {
			scheme = "none"
		}
		return fmt.Sprintf("unsupported URL scheme: %s", scheme)
	}
	if scheme != "http" && scheme != "https" {
		return ""
	}

	host := parsed.Hostname()
	if host == "" {
		return "missing host"
	}
	if !allowPrivateNetwork && isPrivateOrLocalHost(host) {
		return fmt.Sprintf("private/local host blocked: %s", host)
	}
	return ""
}
