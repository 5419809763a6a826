package core

import (
	"time"
)

type MediaKind string

const (
	VideoMedia MediaKind = "video"
	AudioMedia MediaKind = "audio"
)

type DownloadStatus string

const (
	StatusQueued        DownloadStatus = "queued"
	StatusAnalyzing     DownloadStatus = "analyzing"
	StatusReady         DownloadStatus = "ready"
	StatusDownloading   DownloadStatus = "downloading"
	StatusPaused        DownloadStatus = "paused"
	StatusCompleted     DownloadStatus = "completed"
	StatusFailed        DownloadStatus = "failed"
	StatusCancelled     DownloadStatus = "cancelled"
	StatusAlreadyExists DownloadStatus = "already_exists"
)

// statusTransitions lists the legal next statuses for each status. Anything
// not listed here is rejected by the manager.
var statusTransitions = map[DownloadStatus][]DownloadStatus{
	StatusQueued:      {StatusAnalyzing, StatusPaused, StatusCancelled, StatusFailed},
	StatusAnalyzing:   {StatusReady, StatusAlreadyExists, StatusFailed, StatusCancelled},
	StatusReady:       {StatusDownloading, StatusCancelled},
	StatusDownloading: {StatusCompleted, StatusFailed, StatusPaused, StatusCancelled},
	StatusPaused:      {StatusQueued, StatusCancelled},
	StatusFailed:      {StatusQueued},
	StatusCancelled:   {StatusQueued},
}

// CanTransition reports whether moving a download from one status to another
// is legal.
func CanTransition(from, to DownloadStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is an end state that no worker will
// act on again without an explicit retry.
func IsTerminal(status DownloadStatus) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusAlreadyExists:
		return true
	}
	return false
}

// IsActive reports whether a download in this status occupies or will occupy
// a worker.
func IsActive(status DownloadStatus) bool {
	switch status {
	case StatusQueued, StatusAnalyzing, StatusReady, StatusDownloading:
		return true
	}
	return false
}

type DownloadRequest struct {
	URL       string `json:"url"`
	FormatID  string `json:"format_id"`
	AutoStart bool   `json:"auto_start"`
}

type DownloadProgress struct {
	Percentage float64 `json:"percentage"`
	Speed      string  `json:"speed"`
	ETA        string  `json:"eta"`
	Size       string  `json:"size"`
	Received   int64   `json:"received_bytes"`
	Total      int64   `json:"total_bytes"`
}

type Download struct {
	ID            string           `json:"id"`
	URL           string           `json:"url"`
	Platform      string           `json:"platform"`
	FormatID      string           `json:"format_id"`
	Quality       string           `json:"quality"`
	Ext           string           `json:"ext"`
	Kind          MediaKind        `json:"kind"`
	Status        DownloadStatus   `json:"status"`
	Progress      DownloadProgress `json:"progress"`
	Title         string           `json:"title"`
	Uploader      string           `json:"uploader,omitempty"`
	Thumbnail     string           `json:"thumbnail,omitempty"`
	Demo          bool             `json:"demo"`
	AutoStart     bool             `json:"auto_start"`
	DirectURL     string           `json:"direct_url,omitempty"`
	TotalBytes    int64            `json:"total_bytes,omitempty"`
	Filename      string           `json:"filename"`
	OutputPath    string           `json:"output_path"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Error         string           `json:"error,omitempty"`
	StatusMessage string           `json:"status_message,omitempty"`
}
