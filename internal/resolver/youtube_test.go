package resolver

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestYouTubeBackendMatch(t *testing.T) {
	backend := NewYouTubeBackend(&http.Client{Timeout: 5 * time.Second})

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtube.com/shorts/abc123", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=abc", true},
		{"https://m.youtube.com/watch?v=abc", true},
		{"https://www.tiktok.com/@user/video/1", false},
		{"https://notyoutube.com/watch?v=abc", false},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.url)
		if err != nil {
			t.Fatalf("Failed to parse %q: %v", tt.url, err)
		}
		if got := backend.Match(u); got != tt.expected {
			t.Errorf("Match(%q): expected %v, got %v", tt.url, tt.expected, got)
		}
	}
}

func TestMimeToExt(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
	}{
		{`video/mp4; codecs="avc1.42001E, mp4a.40.2"`, "mp4"},
		{"video/webm", "webm"},
		{"video/3gpp", "3gp"},
		{"audio/webm; codecs=opus", "webm"},
		{"garbage", "mp4"},
		{"", "mp4"},
	}

	for _, tt := range tests {
		if got := mimeToExt(tt.mime); got != tt.expected {
			t.Errorf("mimeToExt(%q): expected %q, got %q", tt.mime, tt.expected, got)
		}
	}
}
