package agent

import (
	"encoding/base64"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/goclaw/internal/providers"
)

// maxImageBytes is the safety limit for reading image files (10MB).
const maxImageBytes = 10 * 1024 * 1024

// loadImages reads local image files and returns base64-encoded ImageContent slices.
// Non-image files and files that fail to read are skipped with a warning log.
func loadImages(paths []string) []providers.ImageContent {
	if len(paths) == 0 {
		return nil
	}

	var images []providers.ImageContent
	for _, p := range paths {
		mime := inferImageMime(p)
		if mime == "" {
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("vision: failed to read image file", "path", p, "error", err)
			continue
		}
		if len(data) > maxImageBytes {
			slog.Warn("vision: image file too large, skipping", "path", p, "size", len(data))
			continue
		}

		images = append(images, providers.ImageContent{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return images
}

// inferImageMime returns the MIME type for supported image extensions, or ""
// if not an image. It deduces the type from the system MIME table first
// (mime.TypeByExtension, which on some systems lacks newer formats like
// webp), falling back to a fixed suffix table when the system table has no
// entry for the extension.
func inferImageMime(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	if t := mime.TypeByExtension(ext); t != "" {
		t, _, _ = strings.Cut(t, ";") // strip any "; charset=..." parameter
		t = strings.TrimSpace(t)
		if strings.HasPrefix(t, "image/") {
			return t
		}
		return ""
	}

	return inferImageMimeBySuffix(ext)
}

// inferImageMimeBySuffix is the fallback suffix table for image extensions
// the system MIME table doesn't know about.
func inferImageMimeBySuffix(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
