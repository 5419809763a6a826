package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/utils"
	"github.com/kkdai/youtube/v2"
)

// PipedBackend queries public Piped API instances as a second chance when
// the direct innertube path is blocked. Instances are tried in the order
// the prober reports them, moving on at the first failure.
type PipedBackend struct {
	prober *Prober
	client *http.Client
}

func NewPipedBackend(prober *Prober, client *http.Client) *PipedBackend {
	return &PipedBackend{prober: prober, client: client}
}

func (b *PipedBackend) Name() string { return "piped" }

func (b *PipedBackend) Match(u *url.URL) bool {
	return matchesHost(strings.ToLower(u.Hostname()), youtubeHosts)
}

type pipedStreamsResponse struct {
	Title        string        `json:"title"`
	Uploader     string        `json:"uploader"`
	Duration     int           `json:"duration"`
	ThumbnailURL string        `json:"thumbnailUrl"`
	HLS          string        `json:"hls"`
	VideoStreams []pipedStream `json:"videoStreams"`
	AudioStreams []pipedStream `json:"audioStreams"`
}

type pipedStream struct {
	URL           string `json:"url"`
	Quality       string `json:"quality"`
	MimeType      string `json:"mimeType"`
	VideoOnly     bool   `json:"videoOnly"`
	Bitrate       int    `json:"bitrate"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ContentLength int64  `json:"contentLength"`
}

func (b *PipedBackend) Resolve(ctx context.Context, rawURL string) (*MediaInfo, error) {
	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("extracting video id: %w", err)
	}

	instances := b.prober.Instances()
	if len(instances) == 0 {
		return nil, fmt.Errorf("no piped instances configured")
	}

	var lastErr error
	for _, instance := range instances {
		info, err := b.fetchStreams(ctx, instance, videoID)
		if err != nil {
			utils.LogDebug("piped instance %s failed: %v", instance, err)
			lastErr = err
			continue
		}
		return info, nil
	}
	return nil, fmt.Errorf("all %d piped instances failed: %w", len(instances), lastErr)
}

func (b *PipedBackend) fetchStreams(ctx context.Context, instance, videoID string) (*MediaInfo, error) {
	endpoint := strings.TrimRight(instance, "/") + "/streams/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("instance returned HTTP %d", resp.StatusCode)
	}

	var streams pipedStreamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("decoding streams response: %w", err)
	}

	info := &MediaInfo{
		ID:              videoID,
		Title:           streams.Title,
		Uploader:        streams.Uploader,
		DurationSeconds: streams.Duration,
		Thumbnail:       streams.ThumbnailURL,
	}

	seen := make(map[string]bool)
	for _, s := range streams.VideoStreams {
		// video-only DASH streams have no audio track, skip them
		if s.VideoOnly || s.URL == "" || seen[s.Quality] {
			continue
		}
		seen[s.Quality] = true
		info.Formats = append(info.Formats, Format{
			ID:        "piped-" + strings.ReplaceAll(s.Quality, " ", ""),
			Label:     s.Quality,
			Ext:       mimeToExt(s.MimeType),
			Kind:      core.VideoMedia,
			URL:       s.URL,
			SizeBytes: s.ContentLength,
			Width:     s.Width,
			Height:    s.Height,
			Bitrate:   s.Bitrate,
		})
	}

	if audio := bestPipedAudio(streams.AudioStreams); audio != nil {
		ext := mimeToExt(audio.MimeType)
		if ext == "mp4" {
			ext = "m4a"
		}
		info.Formats = append(info.Formats, Format{
			ID:        "piped-audio",
			Label:     "audio only",
			Ext:       ext,
			Kind:      core.AudioMedia,
			URL:       audio.URL,
			SizeBytes: audio.ContentLength,
			Bitrate:   audio.Bitrate,
		})
	}

	if len(info.Formats) == 0 && streams.HLS != "" {
		info.Formats = append(info.Formats, Format{
			ID:    "piped-hls",
			Label: "adaptive stream",
			Ext:   "ts",
			Kind:  core.VideoMedia,
			URL:   streams.HLS,
		})
	}
	if len(info.Formats) == 0 {
		return nil, fmt.Errorf("instance returned no usable streams")
	}
	return info, nil
}

func bestPipedAudio(streams []pipedStream) *pipedStream {
	var best *pipedStream
	for i := range streams {
		s := &streams[i]
		if s.URL == "" {
			continue
		}
		if best == nil || s.Bitrate > best.Bitrate {
			best = s
		}
	}
	return best
}
