package resolver

import (
	"testing"

	"github.com/KSBMR/VieoDownloader/internal/core"
)

func TestMockGenerateDeterministic(t *testing.T) {
	mock := &MockBackend{}
	url := "https://www.tiktok.com/@user/video/6718335390845095173"

	first := mock.Generate(url, "tiktok")
	second := mock.Generate(url, "tiktok")

	if first.Title != second.Title {
		t.Errorf("Expected stable title, got %q then %q", first.Title, second.Title)
	}
	if first.Uploader != second.Uploader {
		t.Errorf("Expected stable uploader, got %q then %q", first.Uploader, second.Uploader)
	}
	if first.DurationSeconds != second.DurationSeconds {
		t.Errorf("Expected stable duration, got %d then %d", first.DurationSeconds, second.DurationSeconds)
	}
	if len(first.Formats) != len(second.Formats) {
		t.Errorf("Expected stable format count, got %d then %d", len(first.Formats), len(second.Formats))
	}
}

func TestMockGenerateFields(t *testing.T) {
	mock := &MockBackend{}
	info := mock.Generate("https://example.com/some-video", "generic")

	if !info.Demo {
		t.Error("Expected demo flag to be set")
	}
	if info.Source != "mock" {
		t.Errorf("Expected source mock, got %q", info.Source)
	}
	if info.Platform != "generic" {
		t.Errorf("Expected platform generic, got %q", info.Platform)
	}
	if info.Title == "" {
		t.Error("Expected a generated title")
	}
	if info.Uploader == "" {
		t.Error("Expected a generated uploader")
	}
	if info.Thumbnail == "" {
		t.Error("Expected a thumbnail URL")
	}
	if info.DurationSeconds < 30 || info.DurationSeconds > 900 {
		t.Errorf("Expected duration between 30 and 900 seconds, got %d", info.DurationSeconds)
	}
	if len(info.Formats) < 2 || len(info.Formats) > 4 {
		t.Errorf("Expected 2 to 4 formats, got %d", len(info.Formats))
	}

	seen := make(map[string]bool)
	for _, f := range info.Formats {
		if seen[f.ID] {
			t.Errorf("Duplicate format id %q", f.ID)
		}
		seen[f.ID] = true
		if f.SizeBytes <= 0 {
			t.Errorf("Format %s has no size", f.ID)
		}
	}

	last := info.Formats[len(info.Formats)-1]
	if last.Kind != core.AudioMedia {
		t.Errorf("Expected audio format sorted last, got kind %q", last.Kind)
	}

	best := info.BestFormat()
	if best == nil {
		t.Fatal("Expected a best format")
	}
	if best.Kind != core.VideoMedia {
		t.Errorf("Expected best format to be video, got %q", best.Kind)
	}
	for _, f := range info.Formats {
		if f.Kind == core.VideoMedia && f.Height > best.Height {
			t.Errorf("Expected best format height >= %d, got %d", f.Height, best.Height)
		}
	}
}

func TestFnvSeedStable(t *testing.T) {
	a := fnvSeed("https://example.com/video")
	b := fnvSeed("https://example.com/video")
	if a != b {
		t.Errorf("Expected identical seeds for identical input, got %d and %d", a, b)
	}
}
