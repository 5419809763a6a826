package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/manager"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
	"github.com/KSBMR/VieoDownloader/internal/utils"
	"github.com/gorilla/mux"
)

type Handler struct {
	config          *config.Config
	configPath      string
	downloadManager *manager.DownloadManager
}

func NewHandler(cfg *config.Config, configPath string, dm *manager.DownloadManager) *Handler {
	return &Handler{
		config:          cfg,
		configPath:      configPath,
		downloadManager: dm,
	}
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.config)
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := newConfig.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := newConfig.Save(h.configPath); err != nil {
		http.Error(w, "Failed to save config", http.StatusInternalServerError)
		return
	}

	h.config = &newConfig
	utils.SetVerboseLogging(newConfig.VerboseLogging)

	// Update the download manager configuration
	if h.downloadManager != nil {
		h.downloadManager.UpdateConfig(&newConfig)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.config)
}

// Analyze resolves a pasted link to its metadata and download candidates
// without queueing anything.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	var request struct {
		URL string `json:"url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Printf("[API] Analyze: Invalid JSON: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if request.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	log.Printf("[API] Analyze request: URL=%s", request.URL)

	info, err := h.downloadManager.Resolver().Resolve(r.Context(), request.URL)
	if err != nil {
		log.Printf("[API] Analyze: failed for %s: %v", request.URL, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (h *Handler) GetDownloads(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	downloads := h.downloadManager.GetAllDownloads()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(downloads)
}

func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	download, exists := h.downloadManager.GetDownload(id)
	if !exists {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(download)
}

func (h *Handler) AddDownload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		URL       string `json:"url"`
		FormatID  string `json:"format_id"`
		AutoStart *bool  `json:"auto_start"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Printf("[API] AddDownload: Invalid JSON: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if request.URL == "" {
		log.Printf("[API] AddDownload: URL is required")
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	// Downloads begin as soon as analysis finishes unless the client asks
	// to hold them at ready
	autoStart := true
	if request.AutoStart != nil {
		autoStart = *request.AutoStart
	}

	log.Printf("[API] AddDownload request: URL=%s, Format=%s, AutoStart=%v", request.URL, request.FormatID, autoStart)

	req := core.DownloadRequest{
		URL:       request.URL,
		FormatID:  request.FormatID,
		AutoStart: autoStart,
	}

	if h.downloadManager == nil {
		log.Printf("[API] AddDownload: Download manager not initialized")
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	download, err := h.downloadManager.AddDownload(req)
	if err != nil {
		log.Printf("[API] AddDownload: Failed to add download: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("[API] AddDownload: Download added successfully with ID: %s", download.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(download)
}

// StartDownload begins the transfer for a download waiting at ready.
func (h *Handler) StartDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.StartDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

func (h *Handler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.RemoveDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.CancelDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (h *Handler) PauseDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.PauseDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "paused"})
}

func (h *Handler) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.ResumeDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "resumed"})
}

func (h *Handler) RetryDownload(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	if err := h.downloadManager.RetryDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "retried"})
}

func (h *Handler) ClearFinished(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	cleared := h.downloadManager.ClearFinished()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "cleared",
		"cleared": cleared,
	})
}

// GetPlatforms lists the supported video sites for the frontend picker.
func (h *Handler) GetPlatforms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolver.Platforms())
}

func (h *Handler) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := core.GetSystemInfo(h.config.DownloadPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read system info: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"build":     core.GetBuildInfo(),
		"demo_mode": h.config.DemoMode,
	}
	if h.downloadManager != nil {
		response["backends"] = h.downloadManager.Resolver().Backends()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DownloadFile streams a finished file to the browser.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	if h.downloadManager == nil {
		http.Error(w, "Download manager not initialized", http.StatusInternalServerError)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]

	if id == "" {
		http.Error(w, "Download ID is required", http.StatusBadRequest)
		return
	}

	download, exists := h.downloadManager.GetDownload(id)
	if !exists {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}

	// already_exists points at a file from a previous run, serve it too
	if download.Status != core.StatusCompleted && download.Status != core.StatusAlreadyExists {
		http.Error(w, fmt.Sprintf("Download not completed (status: %s)", download.Status), http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(download.OutputPath); os.IsNotExist(err) {
		http.Error(w, "File not found on disk", http.StatusNotFound)
		return
	}

	file, err := os.Open(download.OutputPath)
	if err != nil {
		http.Error(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}

	// Use the resolved title if available, otherwise the actual filename
	var downloadFilename string
	if download.Title != "" && download.Title != download.URL {
		ext := filepath.Ext(download.OutputPath)
		downloadFilename = core.SanitizeFilename(download.Title) + ext
	} else {
		downloadFilename = filepath.Base(download.OutputPath)
	}

	log.Printf("[API] Serving file for download %s as %q", id, downloadFilename)

	// URL encode the filename to handle special characters
	encodedFilename := url.QueryEscape(downloadFilename)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", downloadFilename, encodedFilename))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", fileInfo.Size()))

	io.Copy(w, file)
}
