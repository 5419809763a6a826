package manager

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
	"github.com/google/uuid"
)

type DownloadManager struct {
	resolver         *resolver.Resolver
	fetcher          *core.Fetcher
	downloads        map[string]*core.Download
	queue            chan *core.Download
	maxConcurrent    int
	activeWorkers    int             // Track active workers
	workerCtx        context.Context // Separate context for workers
	workerCancel     context.CancelFunc
	progressChannels map[string]chan core.DownloadProgress
	cancelFuncs      map[string]context.CancelFunc
	mutex            sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	outputDir        string
	config           *config.Config
}

func NewDownloadManager(res *resolver.Resolver, fetcher *core.Fetcher, maxConcurrent int, outputDir string, cfg *config.Config) *DownloadManager {
	ctx, cancel := context.WithCancel(context.Background())
	workerCtx, workerCancel := context.WithCancel(ctx)

	dm := &DownloadManager{
		resolver:         res,
		fetcher:          fetcher,
		downloads:        make(map[string]*core.Download),
		queue:            make(chan *core.Download, 100),
		maxConcurrent:    maxConcurrent,
		activeWorkers:    0,
		workerCtx:        workerCtx,
		workerCancel:     workerCancel,
		progressChannels: make(map[string]chan core.DownloadProgress),
		cancelFuncs:      make(map[string]context.CancelFunc),
		ctx:              ctx,
		cancel:           cancel,
		outputDir:        outputDir,
		config:           cfg,
	}

	// Start workers
	dm.startWorkers(maxConcurrent)

	// Keep the public instance list fresh for the resolver chain
	res.StartProbing(ctx)

	// Load previous state
	if err := dm.LoadState(); err != nil {
		log.Printf("[MANAGER] Failed to load previous state: %v", err)
	}

	// Start cleanup worker if auto-expiry is enabled
	if cfg.CompletedFileExpiryHours > 0 {
		go dm.cleanupWorker()
	}

	// Start periodic state saving
	dm.StartPeriodicStateSave()

	return dm
}

// Resolver exposes the media resolver for the analyze endpoint.
func (dm *DownloadManager) Resolver() *resolver.Resolver {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	return dm.resolver
}

func (dm *DownloadManager) AddDownload(req core.DownloadRequest) (*core.Download, error) {
	u, err := resolver.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	formatID := req.FormatID
	if formatID == "" {
		formatID = dm.config.DefaultFormat
	}

	// Check if this URL with the same format is already present
	dm.mutex.Lock()
	for _, download := range dm.downloads {
		if download.URL != req.URL || download.FormatID != formatID {
			continue
		}
		switch download.Status {
		case core.StatusQueued, core.StatusAnalyzing, core.StatusReady, core.StatusDownloading, core.StatusPaused:
			dm.mutex.Unlock()
			return nil, fmt.Errorf("this URL is already queued with the same format")
		case core.StatusCompleted, core.StatusAlreadyExists:
			dm.mutex.Unlock()
			return nil, fmt.Errorf("this URL has already been downloaded with the same format")
		case core.StatusFailed:
			dm.mutex.Unlock()
			return nil, fmt.Errorf("this URL already failed with the same format. Retry or remove the failed download first")
		}
	}

	download := &core.Download{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Platform:  resolver.DetectPlatform(u),
		FormatID:  formatID,
		Status:    core.StatusQueued,
		AutoStart: req.AutoStart,
		CreatedAt: time.Now(),
	}

	dm.downloads[download.ID] = download
	dm.progressChannels[download.ID] = make(chan core.DownloadProgress, 10)
	dm.mutex.Unlock()

	log.Printf("[MANAGER] Adding download %s to queue: URL=%s, Format=%s, AutoStart=%v",
		download.ID, req.URL, formatID, req.AutoStart)

	// Add to queue
	select {
	case dm.queue <- download:
		return download, nil
	default:
		log.Printf("[MANAGER] Download queue is full, rejecting download %s", download.ID)
		dm.mutex.Lock()
		delete(dm.downloads, download.ID)
		delete(dm.progressChannels, download.ID)
		dm.mutex.Unlock()
		return nil, fmt.Errorf("download queue is full")
	}
}

func (dm *DownloadManager) GetDownload(id string) (*core.Download, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	download, exists := dm.downloads[id]
	return download, exists
}

func (dm *DownloadManager) GetAllDownloads() []*core.Download {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	downloads := make([]*core.Download, 0, len(dm.downloads))
	for _, download := range dm.downloads {
		downloads = append(downloads, download)
	}

	return downloads
}

// StartDownload moves a download waiting at ready into the transfer phase.
func (dm *DownloadManager) StartDownload(id string) error {
	dm.mutex.Lock()

	download, exists := dm.downloads[id]
	if !exists {
		dm.mutex.Unlock()
		return fmt.Errorf("download not found")
	}

	if download.Status != core.StatusReady {
		status := download.Status
		dm.mutex.Unlock()
		return fmt.Errorf("download cannot be started in current state: %s", status)
	}

	// Claim the transfer now so a second start request is rejected while
	// the job waits for a free worker.
	download.Status = core.StatusDownloading
	download.StatusMessage = ""
	dm.mutex.Unlock()

	select {
	case dm.queue <- download:
		log.Printf("[MANAGER] Download %s start requested", id)
		return nil
	default:
		dm.mutex.Lock()
		download.Status = core.StatusReady
		dm.mutex.Unlock()
		return fmt.Errorf("download queue is full")
	}
}

func (dm *DownloadManager) CancelDownload(id string) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	download, exists := dm.downloads[id]
	if !exists {
		return fmt.Errorf("download not found")
	}

	if !core.CanTransition(download.Status, core.StatusCancelled) {
		return fmt.Errorf("download cannot be cancelled in current state: %s", download.Status)
	}

	download.Status = core.StatusCancelled
	download.StatusMessage = ""

	// Stop any running analysis or transfer
	if cancelFunc, exists := dm.cancelFuncs[id]; exists {
		log.Printf("[MANAGER] Cancelling running work for download %s", id)
		cancelFunc()
		delete(dm.cancelFuncs, id)
	}

	return nil
}

func (dm *DownloadManager) PauseDownload(id string) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	download, exists := dm.downloads[id]
	if !exists {
		return fmt.Errorf("download not found")
	}

	if !core.CanTransition(download.Status, core.StatusPaused) {
		return fmt.Errorf("download cannot be paused in current state: %s", download.Status)
	}

	download.Status = core.StatusPaused

	// Stop the running transfer; the partial file stays for resume
	if cancelFunc, exists := dm.cancelFuncs[id]; exists {
		cancelFunc()
		delete(dm.cancelFuncs, id)
	}

	log.Printf("[MANAGER] Download %s paused", id)
	return nil
}

func (dm *DownloadManager) ResumeDownload(id string) error {
	dm.mutex.Lock()

	download, exists := dm.downloads[id]
	if !exists {
		dm.mutex.Unlock()
		return fmt.Errorf("download not found")
	}

	if download.Status != core.StatusPaused {
		dm.mutex.Unlock()
		return fmt.Errorf("download is not paused")
	}

	// Re-queue through analysis: direct media URLs expire, so the resolver
	// runs again and the fetcher continues from the partial file.
	download.Status = core.StatusQueued
	download.Error = ""
	download.AutoStart = true
	dm.mutex.Unlock()

	select {
	case dm.queue <- download:
		log.Printf("[MANAGER] Download %s resumed (will continue from partial file if present)", id)
		return nil
	case <-time.After(100 * time.Millisecond):
		dm.mutex.Lock()
		download.Status = core.StatusPaused
		dm.mutex.Unlock()
		return fmt.Errorf("download queue is full")
	}
}

func (dm *DownloadManager) RetryDownload(id string) error {
	dm.mutex.Lock()

	download, exists := dm.downloads[id]
	if !exists {
		dm.mutex.Unlock()
		return fmt.Errorf("download not found")
	}

	if !core.CanTransition(download.Status, core.StatusQueued) {
		status := download.Status
		dm.mutex.Unlock()
		return fmt.Errorf("download cannot be retried in current state: %s", status)
	}

	// Reset download state
	download.Status = core.StatusQueued
	download.Error = ""
	download.StatusMessage = ""
	download.Progress = core.DownloadProgress{}
	download.CompletedAt = nil
	dm.mutex.Unlock()

	select {
	case dm.queue <- download:
		log.Printf("[MANAGER] Download %s queued for retry", id)
		return nil
	default:
		return fmt.Errorf("download queue is full")
	}
}

func (dm *DownloadManager) RemoveDownload(id string) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	download, exists := dm.downloads[id]
	if !exists {
		return fmt.Errorf("download not found")
	}

	// Cancel any running work first
	if cancelFunc, exists := dm.cancelFuncs[id]; exists {
		log.Printf("[MANAGER] Cancelling running work for download %s", id)
		cancelFunc()
		delete(dm.cancelFuncs, id)
	}

	// Delete files this download produced. A file found by the duplicate
	// check predates the download, so already_exists entries keep theirs.
	if download.OutputPath != "" {
		if download.Status == core.StatusCompleted {
			if err := os.Remove(download.OutputPath); err != nil && !os.IsNotExist(err) {
				log.Printf("[MANAGER] Failed to delete file %s: %v", download.OutputPath, err)
			} else if err == nil {
				log.Printf("[MANAGER] Deleted file: %s", download.OutputPath)
			}
		}
		partPath := download.OutputPath + ".part"
		if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[MANAGER] Failed to delete partial file %s: %v", partPath, err)
		}
	}

	delete(dm.downloads, id)
	dm.closeProgressChannelLocked(id)

	return nil
}

// ClearFinished drops every download in a terminal state from the list.
// Files on disk are kept; per-download removal is the way to delete them.
func (dm *DownloadManager) ClearFinished() int {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	cleared := 0
	for id, download := range dm.downloads {
		if !core.IsTerminal(download.Status) {
			continue
		}
		delete(dm.downloads, id)
		delete(dm.cancelFuncs, id)
		dm.closeProgressChannelLocked(id)
		cleared++
	}

	log.Printf("[MANAGER] Cleared %d finished downloads", cleared)
	return cleared
}

// closeProgressChannelLocked closes and forgets a progress channel. The
// caller must hold the write lock. Close is wrapped in a recover because a
// sender may have closed the channel already.
func (dm *DownloadManager) closeProgressChannelLocked(id string) {
	ch, exists := dm.progressChannels[id]
	if !exists {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				// Channel was already closed, ignore the panic
			}
		}()
		close(ch)
	}()
	delete(dm.progressChannels, id)
}

func (dm *DownloadManager) GetProgress(id string) (chan core.DownloadProgress, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	ch, exists := dm.progressChannels[id]
	return ch, exists
}

func (dm *DownloadManager) worker() {
	dm.mutex.Lock()
	dm.activeWorkers++
	workerID := dm.activeWorkers
	dm.mutex.Unlock()

	log.Printf("[MANAGER] Worker %d started", workerID)
	defer func() {
		dm.mutex.Lock()
		dm.activeWorkers--
		dm.mutex.Unlock()
		log.Printf("[MANAGER] Worker %d shutting down", workerID)
	}()

	for {
		select {
		case <-dm.workerCtx.Done():
			return
		case download := <-dm.queue:
			// Check the live record; the queued copy may be stale after a
			// cancel, pause or clear.
			dm.mutex.RLock()
			current, exists := dm.downloads[download.ID]
			dm.mutex.RUnlock()

			if !exists {
				log.Printf("[MANAGER] Skipping download %s - no longer tracked", download.ID)
				continue
			}

			switch current.Status {
			case core.StatusQueued:
				log.Printf("[MANAGER] Worker %d analyzing download %s", workerID, current.ID)
				dm.runPipeline(current)
			case core.StatusDownloading:
				// An explicit start request claimed the status before queueing
				log.Printf("[MANAGER] Worker %d transferring download %s", workerID, current.ID)
				dm.runFetch(current)
			default:
				log.Printf("[MANAGER] Skipping download %s in status %s", current.ID, current.Status)
			}
		}
	}
}

// startWorkers starts the specified number of worker goroutines
func (dm *DownloadManager) startWorkers(count int) {
	for i := 0; i < count; i++ {
		go dm.worker()
	}
}

// UpdateConfig applies a new configuration: worker count, output directory
// and a rebuilt resolver and fetcher picking up demo mode, timeouts and
// instance lists.
func (dm *DownloadManager) UpdateConfig(newConfig *config.Config) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	oldMaxConcurrent := dm.maxConcurrent
	dm.config = newConfig
	dm.maxConcurrent = newConfig.MaxConcurrentDownloads
	dm.outputDir = newConfig.DownloadPath

	dm.resolver = resolver.New(resolver.Options{
		UserAgent:      newConfig.UserAgent,
		HTTPTimeout:    time.Duration(newConfig.HTTPTimeoutSeconds) * time.Second,
		CacheTTL:       time.Duration(newConfig.CacheTTLMinutes) * time.Minute,
		DemoMode:       newConfig.DemoMode,
		PipedInstances: newConfig.PipedInstances,
	})
	dm.resolver.StartProbing(dm.ctx)
	dm.fetcher = core.NewFetcher(time.Duration(newConfig.HTTPTimeoutSeconds)*time.Second, newConfig.UserAgent)

	log.Printf("[MANAGER] Config updated: MaxConcurrent %d -> %d, OutputDir -> %s, DemoMode=%v",
		oldMaxConcurrent, dm.maxConcurrent, dm.outputDir, newConfig.DemoMode)

	// Adjust workers if needed
	if oldMaxConcurrent != dm.maxConcurrent {
		dm.adjustWorkers(oldMaxConcurrent, dm.maxConcurrent)
	}
}

// adjustWorkers adjusts the number of worker goroutines
func (dm *DownloadManager) adjustWorkers(oldCount, newCount int) {
	if newCount > oldCount {
		additional := newCount - oldCount
		log.Printf("[MANAGER] Starting %d additional workers", additional)
		dm.startWorkers(additional)
	} else if newCount < oldCount {
		// Reduce workers by cancelling and recreating the worker context
		log.Printf("[MANAGER] Reducing workers from %d to %d", oldCount, newCount)

		dm.workerCancel()
		dm.workerCtx, dm.workerCancel = context.WithCancel(dm.ctx)
		dm.activeWorkers = 0
		dm.startWorkers(newCount)
	}
}

// runPipeline resolves metadata for a queued download and leaves it at
// ready, or carries straight on into the transfer when auto-start is set.
func (dm *DownloadManager) runPipeline(download *core.Download) {
	dm.mutex.Lock()
	if download.Status != core.StatusQueued {
		dm.mutex.Unlock()
		return
	}
	download.Status = core.StatusAnalyzing
	download.StatusMessage = "analyzing link"
	res := dm.resolver
	outputDir := dm.outputDir
	dm.mutex.Unlock()

	ctx, cancel := context.WithCancel(dm.ctx)
	dm.mutex.Lock()
	dm.cancelFuncs[download.ID] = cancel
	dm.mutex.Unlock()
	defer func() {
		cancel()
		dm.mutex.Lock()
		delete(dm.cancelFuncs, download.ID)
		dm.mutex.Unlock()
	}()

	info, err := res.Resolve(ctx, download.URL)

	dm.mutex.Lock()
	if download.Status != core.StatusAnalyzing {
		// Cancelled or paused while resolving; leave the status alone
		dm.mutex.Unlock()
		log.Printf("[MANAGER] Download %s changed state during analysis, stopping", download.ID)
		return
	}
	if err != nil {
		download.Status = core.StatusFailed
		download.Error = core.CategorizeFetchError(err)
		download.StatusMessage = ""
		dm.mutex.Unlock()
		log.Printf("[MANAGER] Download %s: analysis failed: %v", download.ID, err)
		return
	}

	var format *resolver.Format
	if download.FormatID == "" || download.FormatID == "best" {
		format = info.BestFormat()
	} else {
		format = info.FormatByID(download.FormatID)
	}
	if format == nil {
		download.Status = core.StatusFailed
		download.Error = fmt.Sprintf("format %q is not available for this link", download.FormatID)
		download.StatusMessage = ""
		dm.mutex.Unlock()
		return
	}

	// The requested FormatID stays as submitted ("best" included) so the
	// duplicate check and retries keep working; the concrete pick lives in
	// Quality/Ext/DirectURL.
	download.Title = info.Title
	download.Uploader = info.Uploader
	download.Thumbnail = info.Thumbnail
	download.Platform = info.Platform
	download.Demo = info.Demo
	download.Quality = format.Label
	download.Ext = format.Ext
	download.Kind = format.Kind
	download.DirectURL = format.URL
	download.TotalBytes = format.SizeBytes
	download.Filename = core.SanitizeFilename(fmt.Sprintf("%s.%s", info.Title, format.Ext))
	download.OutputPath = filepath.Join(outputDir, download.Filename)

	// Check if the target file already exists
	if _, statErr := os.Stat(download.OutputPath); statErr == nil {
		log.Printf("[MANAGER] Download %s: file already exists at %s", download.ID, download.OutputPath)
		download.Status = core.StatusAlreadyExists
		download.StatusMessage = ""
		now := time.Now()
		download.CompletedAt = &now
		dm.mutex.Unlock()
		return
	}

	download.Status = core.StatusReady
	if download.Demo {
		download.StatusMessage = "demo data - transfer will be simulated"
	} else {
		download.StatusMessage = "ready to download"
	}
	autoStart := download.AutoStart
	dm.mutex.Unlock()

	log.Printf("[MANAGER] Download %s ready: %q (%s, %s)", download.ID, download.Title, download.Quality, download.Ext)

	if autoStart {
		dm.mutex.Lock()
		if download.Status == core.StatusReady {
			download.Status = core.StatusDownloading
			download.StatusMessage = ""
		}
		dm.mutex.Unlock()
		dm.runFetch(download)
	}
}

// runFetch performs the transfer for a download that claimed the
// downloading status.
func (dm *DownloadManager) runFetch(download *core.Download) {
	dm.mutex.Lock()
	if download.Status != core.StatusDownloading {
		dm.mutex.Unlock()
		return
	}
	download.Error = ""

	progressChan, exists := dm.progressChannels[download.ID]
	if !exists {
		// Restored from disk without a channel
		progressChan = make(chan core.DownloadProgress, 10)
		dm.progressChannels[download.ID] = progressChan
	}

	fetcher := dm.fetcher
	req := core.FetchRequest{
		DirectURL:  download.DirectURL,
		Referer:    download.URL,
		OutputPath: download.OutputPath,
		TotalSize:  download.TotalBytes,
	}
	demo := download.Demo
	totalBytes := download.TotalBytes
	dm.mutex.Unlock()

	if !demo && totalBytes > 0 {
		if ok, err := core.HasDiskSpace(filepath.Dir(req.OutputPath), totalBytes); err == nil && !ok {
			dm.mutex.Lock()
			download.Status = core.StatusFailed
			download.Error = "not enough free disk space for this download"
			dm.mutex.Unlock()
			log.Printf("[MANAGER] Download %s: insufficient disk space", download.ID)
			return
		}
	}

	ctx, cancel := context.WithCancel(dm.ctx)
	dm.mutex.Lock()
	dm.cancelFuncs[download.ID] = cancel
	dm.mutex.Unlock()
	defer func() {
		cancel()
		dm.mutex.Lock()
		delete(dm.cancelFuncs, download.ID)
		dm.mutex.Unlock()
	}()

	// Mirror progress reports onto the download record for list responses
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case progress, ok := <-progressChan:
				if !ok {
					return
				}
				dm.mutex.Lock()
				download.Progress = progress
				dm.mutex.Unlock()
			}
		}
	}()

	var err error
	if demo {
		log.Printf("[MANAGER] Download %s: simulating transfer to %s", download.ID, req.OutputPath)
		err = core.SimulateFetch(ctx, req, progressChan, download.ID)
	} else {
		log.Printf("[MANAGER] Download %s: fetching %s", download.ID, req.OutputPath)
		err = fetcher.Fetch(ctx, req, progressChan, download.ID)
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	switch {
	case ctx.Err() != nil:
		// Pause and cancel set the final status before cancelling the
		// context; only a shutdown leaves the download mid-transfer.
		if download.Status == core.StatusDownloading {
			log.Printf("[MANAGER] Download %s interrupted", download.ID)
			download.Status = core.StatusCancelled
		}
	case err != nil:
		log.Printf("[MANAGER] Download %s failed: %v", download.ID, err)
		download.Status = core.StatusFailed
		download.Error = core.CategorizeFetchError(err)
	default:
		log.Printf("[MANAGER] Download %s completed: %s", download.ID, download.OutputPath)
		download.Status = core.StatusCompleted
		download.Progress.Percentage = 100
		now := time.Now()
		download.CompletedAt = &now
	}
}

func (dm *DownloadManager) cleanupWorker() {
	// Run cleanup every hour
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-dm.ctx.Done():
			log.Printf("[MANAGER] Cleanup worker shutting down")
			return
		case <-ticker.C:
			dm.cleanupExpiredDownloads()
		}
	}
}

func (dm *DownloadManager) cleanupExpiredDownloads() {
	if dm.config.CompletedFileExpiryHours <= 0 {
		return // Auto-expiry disabled
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	expiryDuration := time.Duration(dm.config.CompletedFileExpiryHours) * time.Hour
	now := time.Now()
	deletedCount := 0

	for id, download := range dm.downloads {
		if download.Status != core.StatusCompleted || download.CompletedAt == nil {
			continue
		}
		if now.Sub(*download.CompletedAt) <= expiryDuration {
			continue
		}

		if download.OutputPath != "" {
			if err := os.Remove(download.OutputPath); err != nil && !os.IsNotExist(err) {
				log.Printf("[MANAGER] Failed to delete expired file %s: %v", download.OutputPath, err)
			} else if err == nil {
				log.Printf("[MANAGER] Deleted expired file: %s", download.OutputPath)
			}
		}

		delete(dm.downloads, id)
		dm.closeProgressChannelLocked(id)
		deletedCount++
	}

	if deletedCount > 0 {
		log.Printf("[MANAGER] Cleanup completed: removed %d expired downloads", deletedCount)
	}
}

func (dm *DownloadManager) Shutdown() {
	log.Printf("[MANAGER] Shutting down download manager...")

	// Save final state
	if err := dm.SaveState(); err != nil {
		log.Printf("[MANAGER] Failed to save final state: %v", err)
	}

	// Cancel worker context first to stop workers gracefully
	dm.workerCancel()

	// Then cancel main context
	dm.cancel()
	close(dm.queue)

	log.Printf("[MANAGER] Download manager shutdown complete")
}
