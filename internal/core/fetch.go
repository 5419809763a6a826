package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

const (
	fetchBufferSize  = 32 * 1024
	progressInterval = 500 * time.Millisecond
	maxFetchAttempts = 3
	retryBackoff     = 2 * time.Second
)

type FetchRequest struct {
	DirectURL  string
	Referer    string
	OutputPath string
	TotalSize  int64
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	backoff   time.Duration
}

func NewFetcher(headerTimeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		userAgent: userAgent,
		attempts:  maxFetchAttempts,
		backoff:   retryBackoff,
	}
}

// Fetch streams the direct media URL to the request's output path. Partial
// files are kept in a .part file and resumed with a Range request on retry.
// HLS playlists are downloaded segment by segment into a single file.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest, progressChan chan<- DownloadProgress, downloadID string) error {
	if isPlaylistURL(req.DirectURL) {
		return f.fetchPlaylist(ctx, req, progressChan, downloadID)
	}

	tempPath := req.OutputPath + ".part"

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		lastErr = f.fetchOnce(ctx, req, tempPath, progressChan)
		if lastErr == nil {
			return os.Rename(tempPath, req.OutputPath)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Printf("[FETCH] %s: attempt %d/%d failed: %v", downloadID, attempt, f.attempts, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.backoff * time.Duration(attempt)):
		}
	}

	return lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, req FetchRequest, tempPath string, progressChan chan<- DownloadProgress) error {
	var start int64
	if fi, err := os.Stat(tempPath); err == nil {
		start = fi.Size()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.DirectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	f.setHeaders(httpReq, req.Referer)
	if start > 0 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// resuming where the part file left off
	case http.StatusOK:
		// server ignored the range request, start from scratch
		start = 0
	case http.StatusRequestedRangeNotSatisfiable:
		os.Remove(tempPath)
		return fmt.Errorf("server rejected resume from byte %d", start)
	default:
		return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if start > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	defer file.Close()

	total := req.TotalSize
	if resp.ContentLength > 0 {
		total = start + resp.ContentLength
	}

	return copyWithProgress(ctx, file, resp.Body, start, total, progressChan)
}

func (f *Fetcher) setHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, received, total int64, progressChan chan<- DownloadProgress) error {
	buf := make([]byte, fetchBufferSize)
	lastReport := time.Now()
	windowStart := received

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write failed: %w", writeErr)
			}
			received += int64(n)
		}

		elapsed := time.Since(lastReport)
		if elapsed >= progressInterval || (readErr == io.EOF && received > windowStart) {
			bytesPerSec := float64(received-windowStart) / elapsed.Seconds()
			sendProgress(progressChan, buildProgress(received, total, bytesPerSec))
			lastReport = time.Now()
			windowStart = received
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read failed: %w", readErr)
		}
	}
}

func buildProgress(received, total int64, bytesPerSec float64) DownloadProgress {
	progress := DownloadProgress{
		Received: received,
		Total:    total,
		Speed:    FormatSpeed(bytesPerSec),
	}

	if total > 0 {
		progress.Percentage = float64(received) / float64(total) * 100
		if progress.Percentage > 100 {
			progress.Percentage = 100
		}
		progress.Size = FormatBytes(total)
		if bytesPerSec > 0 && received < total {
			remaining := float64(total-received) / bytesPerSec
			progress.ETA = FormatETA(time.Duration(remaining * float64(time.Second)))
		}
	} else {
		progress.Size = FormatBytes(received)
	}

	return progress
}

// sendProgress delivers a progress update without ever blocking the download
// loop. Sends to a closed channel are recovered and dropped.
func sendProgress(progressChan chan<- DownloadProgress, progress DownloadProgress) {
	defer func() {
		if r := recover(); r != nil {
			// channel was closed, drop the update
		}
	}()
	select {
	case progressChan <- progress:
	default:
		// channel is full, skip this update
	}
}

func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

// fetchPlaylist downloads every segment of an HLS playlist into a single
// output file. Master playlists are resolved to their highest-bandwidth
// variant first.
func (f *Fetcher) fetchPlaylist(ctx context.Context, req FetchRequest, progressChan chan<- DownloadProgress, downloadID string) error {
	playlistURL, media, err := f.loadMediaPlaylist(ctx, req.DirectURL, req.Referer)
	if err != nil {
		return fmt.Errorf("failed to load playlist: %w", err)
	}

	base, err := url.Parse(playlistURL)
	if err != nil {
		return fmt.Errorf("invalid playlist URL: %w", err)
	}

	var segments []string
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		segments = append(segments, resolveReference(base, seg.URI))
	}
	if len(segments) == 0 {
		return fmt.Errorf("playlist contains no segments")
	}

	tempPath := req.OutputPath + ".part"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}

	log.Printf("[FETCH] %s: downloading %d HLS segments", downloadID, len(segments))

	var written int64
	start := time.Now()
	for i, segURL := range segments {
		n, err := f.appendSegment(ctx, segURL, req.Referer, file)
		if err != nil {
			file.Close()
			return fmt.Errorf("segment %d/%d failed: %w", i+1, len(segments), err)
		}
		written += n

		bytesPerSec := float64(written) / time.Since(start).Seconds()
		sendProgress(progressChan, DownloadProgress{
			Percentage: float64(i+1) / float64(len(segments)) * 100,
			Speed:      FormatSpeed(bytesPerSec),
			Size:       FormatBytes(written),
			Received:   written,
		})
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return os.Rename(tempPath, req.OutputPath)
}

func (f *Fetcher) loadMediaPlaylist(ctx context.Context, rawURL, referer string) (string, *m3u8.MediaPlaylist, error) {
	for hops := 0; hops < 3; hops++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", nil, err
		}
		f.setHeaders(httpReq, referer)

		resp, err := f.client.Do(httpReq)
		if err != nil {
			return "", nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", nil, fmt.Errorf("server returned HTTP %d", resp.StatusCode)
		}

		playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
		resp.Body.Close()
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode playlist: %w", err)
		}

		switch listType {
		case m3u8.MEDIA:
			return rawURL, playlist.(*m3u8.MediaPlaylist), nil
		case m3u8.MASTER:
			master := playlist.(*m3u8.MasterPlaylist)
			variant := bestVariant(master)
			if variant == nil {
				return "", nil, fmt.Errorf("master playlist has no variants")
			}
			base, err := url.Parse(rawURL)
			if err != nil {
				return "", nil, err
			}
			rawURL = resolveReference(base, variant.URI)
		default:
			return "", nil, fmt.Errorf("unrecognized playlist type")
		}
	}
	return "", nil, fmt.Errorf("too many nested master playlists")
}

func bestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}

func (f *Fetcher) appendSegment(ctx context.Context, segURL, referer string, dst io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
	if err != nil {
		return 0, err
	}
	f.setHeaders(httpReq, referer)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}

	return io.Copy(dst, resp.Body)
}

func resolveReference(base *url.URL, uri string) string {
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}

// CategorizeFetchError provides user-friendly error messages based on the error type
func CategorizeFetchError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context canceled"):
		return "Download was cancelled by user"
	case strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "timeout"):
		return "Download timed out - the server may be slow or overloaded"
	case strings.Contains(errStr, "no such host"):
		return "Could not reach the media server - please check your internet connection"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset"):
		return "Connection to the media server failed"
	case strings.Contains(errStr, "certificate"):
		return "Secure connection to the media server failed"
	case strings.Contains(errStr, "http 403"):
		return "Access forbidden (403 error) - the media link may have expired"
	case strings.Contains(errStr, "http 404"):
		return "Media not found (404 error) - the link may have expired"
	case strings.Contains(errStr, "http 410"):
		return "Media link has expired - please analyze the URL again"
	case strings.Contains(errStr, "http 429"):
		return "Too many requests - please wait and try again"
	case strings.Contains(errStr, "http 5"):
		return "Server error - please try again later"
	case strings.Contains(errStr, "no space"):
		return "Insufficient disk space to complete download"
	case strings.Contains(errStr, "permission denied"):
		return "Permission denied - check file/directory permissions"
	case strings.Contains(errStr, "rejected resume"):
		return "Could not resume partial download - please retry from the start"
	case strings.Contains(errStr, "no segments"):
		return "Stream playlist is empty - the video may no longer be available"
	default:
		if len(errStr) > 200 {
			return fmt.Sprintf("Download failed: %s...", errStr[:200])
		}
		return fmt.Sprintf("Download failed: %s", err.Error())
	}
}

// FormatBytes renders a byte count in binary units
func FormatBytes(n int64) string {
	if n <= 0 {
		return "unknown"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a transfer rate, empty when the rate is unknown
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return ""
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatETA renders a duration as MM:SS, or HH:MM:SS over an hour
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
