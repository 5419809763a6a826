package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain title", "My Video.mp4", "My Video.mp4"},
		{"special characters", "What?!: A *Video*.mp4", "What A Video.mp4"},
		{"emoji stripped", "Party 🎉 Time.mp4", "Party Time.mp4"},
		{"multiple spaces collapsed", "too    many   spaces.mp4", "too many spaces.mp4"},
		{"windows reserved name", "CON", "CON file"},
		{"empty becomes default", "!!!", "download"},
		{"no extension", "bare title", "bare title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 250) + ".mp4"
	got := SanitizeFilename(long)

	base := strings.TrimSuffix(got, ".mp4")
	if len(base) > 200 {
		t.Errorf("Expected base name capped at 200 characters, got %d", len(base))
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("Expected extension to survive truncation, got %q", got)
	}
}

func TestEnsureExtension(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		expected string
	}{
		{"video", "mp4", "video.mp4"},
		{"video.webm", "mp4", "video.mp4"},
		{"video.MP4", "mp4", "video.MP4"},
		{"video.mp4", "", "video.mp4"},
	}

	for _, tt := range tests {
		if got := EnsureExtension(tt.filename, tt.ext); got != tt.expected {
			t.Errorf("EnsureExtension(%q, %q) = %q, expected %q", tt.filename, tt.ext, got, tt.expected)
		}
	}
}

func TestUniquePath(t *testing.T) {
	tempDir := t.TempDir()

	first := UniquePath(tempDir, "video.mp4")
	if first != filepath.Join(tempDir, "video.mp4") {
		t.Errorf("Expected untouched name for empty dir, got %s", first)
	}

	if err := os.WriteFile(first, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	second := UniquePath(tempDir, "video.mp4")
	if second != filepath.Join(tempDir, "video (1).mp4") {
		t.Errorf("Expected suffixed name, got %s", second)
	}
}
