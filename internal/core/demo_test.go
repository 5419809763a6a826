package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func shortenDemoTiming(t *testing.T) {
	t.Helper()
	oldDuration, oldTick := demoFetchDuration, demoTickInterval
	demoFetchDuration = 100 * time.Millisecond
	demoTickInterval = 10 * time.Millisecond
	t.Cleanup(func() {
		demoFetchDuration, demoTickInterval = oldDuration, oldTick
	})
}

func TestSimulateFetch(t *testing.T) {
	shortenDemoTiming(t)

	outputPath := filepath.Join(t.TempDir(), "demo.mp4")
	progressChan := make(chan DownloadProgress, 100)

	err := SimulateFetch(context.Background(), FetchRequest{
		Referer:    "https://example.com/watch?v=demo",
		OutputPath: outputPath,
		TotalSize:  1 << 20,
	}, progressChan, "demo1")
	if err != nil {
		t.Fatalf("SimulateFetch failed: %v", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("Expected placeholder file to exist: %v", err)
	}

	close(progressChan)
	var last DownloadProgress
	var updates int
	for p := range progressChan {
		last = p
		updates++
	}

	if updates == 0 {
		t.Fatal("Expected at least one progress update")
	}
	if last.Percentage != 100 {
		t.Errorf("Expected final percentage 100, got %f", last.Percentage)
	}
	if last.Total != 1<<20 {
		t.Errorf("Expected total %d, got %d", 1<<20, last.Total)
	}
}

func TestSimulateFetchCancel(t *testing.T) {
	shortenDemoTiming(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputPath := filepath.Join(t.TempDir(), "demo.mp4")
	progressChan := make(chan DownloadProgress, 100)

	err := SimulateFetch(ctx, FetchRequest{OutputPath: outputPath}, progressChan, "demo2")
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("Expected no file after cancelled simulation")
	}
}

func TestDemoSizeDeterministic(t *testing.T) {
	a := demoSize("https://example.com/watch?v=abc")
	b := demoSize("https://example.com/watch?v=abc")
	c := demoSize("https://example.com/watch?v=other")

	if a != b {
		t.Errorf("Expected stable size for the same URL, got %d and %d", a, b)
	}
	if a == c {
		t.Error("Expected different URLs to usually produce different sizes")
	}
	if a < 20<<20 || a >= 80<<20 {
		t.Errorf("Expected size between 20MiB and 80MiB, got %d", a)
	}
}
