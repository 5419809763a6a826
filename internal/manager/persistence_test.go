package manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
)

// newManagerAt builds a zero-worker manager over a fixed directory so two
// managers in the same test can share a state file.
func newManagerAt(t *testing.T, dir string) *DownloadManager {
	t.Helper()

	cfg := &config.Config{
		DownloadPath:             dir,
		MaxConcurrentDownloads:   0,
		DefaultFormat:            "best",
		HTTPTimeoutSeconds:       1,
		CompletedFileExpiryHours: 0,
	}

	res := resolver.New(resolver.Options{
		DemoMode:    true,
		HTTPTimeout: time.Second,
		CacheTTL:    time.Minute,
	})
	fetcher := core.NewFetcher(time.Second, "test-agent")

	return NewDownloadManager(res, fetcher, 0, dir, cfg)
}

func TestSaveAndLoadState(t *testing.T) {
	dir := t.TempDir()

	first := newManagerAt(t, dir)

	download, err := first.AddDownload(core.DownloadRequest{URL: "https://example.com/watch/100"})
	if err != nil {
		t.Fatalf("Failed to add download: %v", err)
	}

	outputPath := filepath.Join(dir, "Restored Video.mp4")
	if err := os.WriteFile(outputPath, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to create output file: %v", err)
	}

	first.mutex.Lock()
	download.Status = core.StatusCompleted
	download.Title = "Restored Video"
	download.OutputPath = outputPath
	first.mutex.Unlock()

	first.Shutdown() // Saves final state

	if _, err := os.Stat(first.GetStateFilePath()); err != nil {
		t.Fatalf("Expected state file to exist: %v", err)
	}

	second := newManagerAt(t, dir)
	defer second.Shutdown()

	restored, exists := second.GetDownload(download.ID)
	if !exists {
		t.Fatal("Expected download to be restored from state file")
	}

	if restored.Status != core.StatusCompleted {
		t.Errorf("Expected restored status=completed, got %s", restored.Status)
	}
	if restored.Title != "Restored Video" {
		t.Errorf("Expected restored title, got %q", restored.Title)
	}
}

func TestLoadStateRequeuesInterrupted(t *testing.T) {
	dir := t.TempDir()

	first := newManagerAt(t, dir)

	download, err := first.AddDownload(core.DownloadRequest{URL: "https://example.com/watch/101"})
	if err != nil {
		t.Fatalf("Failed to add download: %v", err)
	}

	// Pretend the process died mid-transfer
	first.mutex.Lock()
	download.Status = core.StatusDownloading
	download.Progress = core.DownloadProgress{Percentage: 55}
	first.mutex.Unlock()

	first.Shutdown()

	second := newManagerAt(t, dir)
	defer second.Shutdown()

	restored, exists := second.GetDownload(download.ID)
	if !exists {
		t.Fatal("Expected download to be restored from state file")
	}

	// Interrupted transfers go back through analysis because direct media
	// URLs from the previous run have expired
	if restored.Status != core.StatusQueued {
		t.Errorf("Expected interrupted download to be re-queued, got %s", restored.Status)
	}
	if restored.Progress.Percentage != 0 {
		t.Errorf("Expected progress reset on restore, got %f", restored.Progress.Percentage)
	}
}

func TestLoadStateMissingCompletedFile(t *testing.T) {
	dir := t.TempDir()

	first := newManagerAt(t, dir)

	download, err := first.AddDownload(core.DownloadRequest{URL: "https://example.com/watch/102"})
	if err != nil {
		t.Fatalf("Failed to add download: %v", err)
	}

	first.mutex.Lock()
	download.Status = core.StatusCompleted
	download.OutputPath = filepath.Join(dir, "deleted-by-hand.mp4")
	first.mutex.Unlock()

	first.Shutdown()

	second := newManagerAt(t, dir)
	defer second.Shutdown()

	restored, exists := second.GetDownload(download.ID)
	if !exists {
		t.Fatal("Expected download to be restored from state file")
	}

	if restored.Status != core.StatusFailed {
		t.Errorf("Expected completed download with missing file to become failed, got %s", restored.Status)
	}
	if restored.Error == "" {
		t.Error("Expected an error message explaining the missing file")
	}
}

func TestLoadStateVersionMismatch(t *testing.T) {
	dir := t.TempDir()

	stateFilePath := filepath.Join(dir, ".vieodownloader_state.json")
	stale := `{"downloads":{"abc":{"id":"abc","url":"https://example.com/watch/103","status":"queued"}},"saved_at":"2026-01-01T00:00:00Z","version":"0.9"}`
	if err := os.WriteFile(stateFilePath, []byte(stale), 0644); err != nil {
		t.Fatalf("Failed to write stale state file: %v", err)
	}

	dm := newManagerAt(t, dir)
	defer dm.Shutdown()

	if downloads := dm.GetAllDownloads(); len(downloads) != 0 {
		t.Errorf("Expected mismatched state version to be ignored, got %d downloads", len(downloads))
	}
}

func TestLoadStateNoFile(t *testing.T) {
	dm := newManagerAt(t, t.TempDir())
	defer dm.Shutdown()

	if err := dm.LoadState(); err != nil {
		t.Errorf("Expected no error when state file is absent, got %v", err)
	}

	if downloads := dm.GetAllDownloads(); len(downloads) != 0 {
		t.Errorf("Expected no downloads, got %d", len(downloads))
	}
}

func TestCleanupStateFile(t *testing.T) {
	dm := newManagerAt(t, t.TempDir())
	defer dm.Shutdown()

	if _, err := dm.AddDownload(core.DownloadRequest{URL: "https://example.com/watch/104"}); err != nil {
		t.Fatalf("Failed to add download: %v", err)
	}

	if err := dm.SaveState(); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	dm.CleanupStateFile()

	if _, err := os.Stat(dm.GetStateFilePath()); !os.IsNotExist(err) {
		t.Error("Expected state file to be removed")
	}
}
