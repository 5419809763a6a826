package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/manager"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
	"github.com/KSBMR/VieoDownloader/internal/ui"
	"github.com/gorilla/mux"
)

// newTestHandler wires a handler to a real manager running in demo mode with
// no workers, so requests never leave the process and downloads stay where
// the test puts them.
func newTestHandler(t *testing.T) (*Handler, *manager.DownloadManager) {
	t.Helper()
	tempDir := t.TempDir()

	cfg := &config.Config{
		DownloadPath:             tempDir,
		MaxConcurrentDownloads:   0,
		Port:                     8080,
		DefaultFormat:            "best",
		HTTPTimeoutSeconds:       1,
		CacheTTLMinutes:          1,
		DemoMode:                 true,
		CompletedFileExpiryHours: 0,
	}

	res := resolver.New(resolver.Options{
		DemoMode:    true,
		HTTPTimeout: time.Second,
		CacheTTL:    time.Minute,
	})
	fetcher := core.NewFetcher(time.Second, "test-agent")
	dm := manager.NewDownloadManager(res, fetcher, 0, tempDir, cfg)
	t.Cleanup(dm.Shutdown)

	return NewHandler(cfg, filepath.Join(tempDir, "config.json"), dm), dm
}

func newTestRouter(t *testing.T) (*mux.Router, *manager.DownloadManager) {
	t.Helper()
	handler, dm := newTestHandler(t)
	return SetupRoutes(handler, ui.Assets), dm
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetConfig(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/config", nil)
	w := httptest.NewRecorder()

	handler.GetConfig(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response config.Config
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", response.Port)
	}
	if !response.DemoMode {
		t.Error("Expected demo mode to be on")
	}
}

func TestUpdateConfig(t *testing.T) {
	handler, _ := newTestHandler(t)

	newConfig := config.Config{
		DownloadPath:             filepath.Join(t.TempDir(), "media"),
		MaxConcurrentDownloads:   2,
		Port:                     9090,
		DefaultFormat:            "best",
		HTTPTimeoutSeconds:       15,
		CacheTTLMinutes:          5,
		DemoMode:                 true,
		CompletedFileExpiryHours: 24,
	}

	jsonBody, _ := json.Marshal(newConfig)
	req := httptest.NewRequest("POST", "/api/config", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.UpdateConfig(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response config.Config
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Port != 9090 {
		t.Errorf("Expected updated port 9090, got %d", response.Port)
	}
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Port out of range
	body := []byte(`{"download_path":"/tmp","max_concurrent_downloads":2,"port":99999,"default_format":"best","http_timeout_seconds":10}`)
	req := httptest.NewRequest("POST", "/api/config", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	handler.UpdateConfig(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAnalyze(t *testing.T) {
	handler, _ := newTestHandler(t)

	requestBody := map[string]string{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
	jsonBody, _ := json.Marshal(requestBody)
	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Analyze(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var info resolver.MediaInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !info.Demo {
		t.Error("Expected demo metadata in demo mode")
	}
	if info.Title == "" {
		t.Error("Expected a title")
	}
	if len(info.Formats) == 0 {
		t.Error("Expected at least one format")
	}
	if info.Platform != "youtube" {
		t.Errorf("Expected platform youtube, got %q", info.Platform)
	}
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBuffer([]byte("invalid json")))
	w := httptest.NewRecorder()

	handler.Analyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAnalyzeMissingURL(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBuffer([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Analyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAnalyzeInvalidURL(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/analyze", bytes.NewBuffer([]byte(`{"url":"not a url"}`)))
	w := httptest.NewRecorder()

	handler.Analyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid URL, got %d", w.Code)
	}
}

func TestAddDownload(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if download.Status != core.StatusQueued {
		t.Errorf("Expected status queued, got %s", download.Status)
	}
	if !download.AutoStart {
		t.Error("Expected auto-start to default to true")
	}
}

func TestAddDownloadNoAutoStart(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url":        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"auto_start": false,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if download.AutoStart {
		t.Error("Expected auto-start to be off")
	}
}

func TestAddDownloadMissingURL(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]string{"format_id": "720p"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestAddDownloadNilManager(t *testing.T) {
	cfg := config.DefaultConfig()
	handler := NewHandler(cfg, "test_config.json", nil)

	body := []byte(`{"url":"https://example.com/video"}`)
	req := httptest.NewRequest("POST", "/api/downloads", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	handler.AddDownload(w, req)

	// Since we're passing nil for download manager, we expect an error
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestDownloadLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url":        "https://vimeo.com/347119375",
		"auto_start": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// Fetch the single download by id
	req := httptest.NewRequest("GET", "/api/downloads/"+download.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for GET by id, got %d", w.Code)
	}

	// Pause, resume, cancel
	if w := postJSON(t, router, fmt.Sprintf("/api/downloads/%s/pause", download.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for pause, got %d: %s", w.Code, w.Body.String())
	}
	if w := postJSON(t, router, fmt.Sprintf("/api/downloads/%s/resume", download.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for resume, got %d: %s", w.Code, w.Body.String())
	}
	if w := postJSON(t, router, fmt.Sprintf("/api/downloads/%s/cancel", download.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for cancel, got %d: %s", w.Code, w.Body.String())
	}

	// Delete and confirm it is gone
	req = httptest.NewRequest("DELETE", "/api/downloads/"+download.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204 for delete, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/downloads/"+download.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestStartDownloadNotReady(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url":        "https://www.tiktok.com/@scout2015/video/6718335390845095173",
		"auto_start": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// No workers ran, so the download is still queued and cannot start
	w = postJSON(t, router, fmt.Sprintf("/api/downloads/%s/start", download.ID), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for start before ready, got %d", w.Code)
	}
}

func TestGetDownloadNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/downloads/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestClearFinished(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url":        "https://vimeo.com/123456",
		"auto_start": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// Cancelled is terminal, so clear-finished picks it up
	if w := postJSON(t, router, fmt.Sprintf("/api/downloads/%s/cancel", download.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for cancel, got %d", w.Code)
	}

	w = postJSON(t, router, "/api/downloads/clear-finished", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Status  string `json:"status"`
		Cleared int    `json:"cleared"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Cleared != 1 {
		t.Errorf("Expected 1 cleared download, got %d", response.Cleared)
	}
}

func TestDownloadFileNotCompleted(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/downloads", map[string]interface{}{
		"url":        "https://vimeo.com/999",
		"auto_start": false,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	var download core.Download
	if err := json.NewDecoder(w.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/downloads/%s/file", download.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for incomplete download, got %d", w.Code)
	}
}

func TestGetPlatforms(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/platforms", nil)
	w := httptest.NewRecorder()

	handler.GetPlatforms(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var platforms []resolver.Platform
	if err := json.NewDecoder(w.Body).Decode(&platforms); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(platforms) == 0 {
		t.Fatal("Expected at least one platform")
	}

	found := false
	for _, p := range platforms {
		if p.ID == "youtube" {
			found = true
		}
	}
	if !found {
		t.Error("Expected youtube in the platform list")
	}
}

func TestGetVersion(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()

	handler.GetVersion(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Build    core.BuildInfo `json:"build"`
		DemoMode bool           `json:"demo_mode"`
		Backends []string       `json:"backends"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Build.App != core.AppName {
		t.Errorf("Expected app %s, got %s", core.AppName, response.Build.App)
	}
	if !response.DemoMode {
		t.Error("Expected demo mode flag to be set")
	}
	if len(response.Backends) == 0 {
		t.Error("Expected at least one backend")
	}
}

func TestGetSystemInfo(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/system", nil)
	w := httptest.NewRecorder()

	handler.GetSystemInfo(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var info core.SystemInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if info.DiskTotalBytes == 0 {
		t.Error("Expected non-zero disk size")
	}
}

func TestCORSHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/platforms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS origin *, got %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/downloads", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", w.Code)
	}
}
