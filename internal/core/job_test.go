package core

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     DownloadStatus
		to       DownloadStatus
		expected bool
	}{
		{"queued to analyzing", StatusQueued, StatusAnalyzing, true},
		{"queued to cancelled", StatusQueued, StatusCancelled, true},
		{"queued straight to completed", StatusQueued, StatusCompleted, false},
		{"analyzing to ready", StatusAnalyzing, StatusReady, true},
		{"analyzing to already exists", StatusAnalyzing, StatusAlreadyExists, true},
		{"ready to downloading", StatusReady, StatusDownloading, true},
		{"ready to paused", StatusReady, StatusPaused, false},
		{"downloading to completed", StatusDownloading, StatusCompleted, true},
		{"downloading to paused", StatusDownloading, StatusPaused, true},
		{"paused to queued", StatusPaused, StatusQueued, true},
		{"failed to queued", StatusFailed, StatusQueued, true},
		{"cancelled to queued", StatusCancelled, StatusQueued, true},
		{"completed to queued", StatusCompleted, StatusQueued, false},
		{"completed to downloading", StatusCompleted, StatusDownloading, false},
		{"already exists to queued", StatusAlreadyExists, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, expected %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []DownloadStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusAlreadyExists}
	for _, status := range terminal {
		if !IsTerminal(status) {
			t.Errorf("Expected %s to be terminal", status)
		}
	}

	active := []DownloadStatus{StatusQueued, StatusAnalyzing, StatusReady, StatusDownloading, StatusPaused}
	for _, status := range active {
		if IsTerminal(status) {
			t.Errorf("Expected %s not to be terminal", status)
		}
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		status   DownloadStatus
		expected bool
	}{
		{StatusQueued, true},
		{StatusAnalyzing, true},
		{StatusReady, true},
		{StatusDownloading, true},
		{StatusPaused, false},
		{StatusCompleted, false},
		{StatusFailed, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		if got := IsActive(tt.status); got != tt.expected {
			t.Errorf("IsActive(%s) = %v, expected %v", tt.status, got, tt.expected)
		}
	}
}
