package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInferImageMime(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"jpeg", "photo.jpg", "image/jpeg"},
		{"jpeg long ext", "photo.jpeg", "image/jpeg"},
		{"png", "photo.PNG", "image/png"},
		{"gif", "anim.gif", "image/gif"},
		{"webp falls back to suffix table", "sample.webp", "image/webp"},
		{"non-image extension", "notes.txt", ""},
		{"no extension", "README", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferImageMime(tt.path); got != tt.want {
				t.Errorf("inferImageMime(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoadImages_SkipsNonImageAndUnreadable(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "pic.png")
	if err := os.WriteFile(imgPath, []byte("fake-png-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	missingPath := filepath.Join(dir, "missing.png")

	images := loadImages([]string{imgPath, txtPath, missingPath})

	if len(images) != 1 {
		t.Fatalf("loadImages() returned %d images, want 1", len(images))
	}
	if images[0].MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", images[0].MimeType)
	}
}

func TestLoadImages_Empty(t *testing.T) {
	if got := loadImages(nil); got != nil {
		t.Errorf("loadImages(nil) = %v, want nil", got)
	}
}
