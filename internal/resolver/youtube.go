package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/utils"
	"github.com/kkdai/youtube/v2"
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "music.youtube.com"}

// YouTubeBackend resolves watch URLs through the innertube player API.
type YouTubeBackend struct {
	client *youtube.Client
}

func NewYouTubeBackend(httpClient *http.Client) *YouTubeBackend {
	return &YouTubeBackend{client: &youtube.Client{HTTPClient: httpClient}}
}

func (b *YouTubeBackend) Name() string { return "youtube" }

func (b *YouTubeBackend) Match(u *url.URL) bool {
	return matchesHost(strings.ToLower(u.Hostname()), youtubeHosts)
}

func (b *YouTubeBackend) Resolve(ctx context.Context, rawURL string) (*MediaInfo, error) {
	video, err := b.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching video metadata: %w", err)
	}

	info := &MediaInfo{
		ID:              video.ID,
		Title:           video.Title,
		Uploader:        video.Author,
		DurationSeconds: int(video.Duration.Seconds()),
	}
	for _, t := range video.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, Thumbnail{
			URL:    t.URL,
			Width:  int(t.Width),
			Height: int(t.Height),
		})
	}

	// Progressive formats carry audio and video in one stream and can be
	// saved directly without remuxing.
	seen := make(map[string]bool)
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 || f.Height == 0 || f.Width == 0 {
			continue
		}
		label := f.QualityLabel
		if label == "" {
			label = f.Quality
		}
		if label == "" || seen[label] {
			continue
		}

		streamURL, err := b.client.GetStreamURLContext(ctx, video, f)
		if err != nil {
			utils.LogDebug("stream URL for itag %d failed: %v", f.ItagNo, err)
			continue
		}
		seen[label] = true
		info.Formats = append(info.Formats, Format{
			ID:        fmt.Sprintf("itag-%d", f.ItagNo),
			Label:     label,
			Ext:       mimeToExt(f.MimeType),
			Kind:      core.VideoMedia,
			URL:       streamURL,
			SizeBytes: f.ContentLength,
			Width:     f.Width,
			Height:    f.Height,
			Bitrate:   f.Bitrate,
		})
	}

	if audio := bestAudioFormat(video.Formats); audio != nil {
		if streamURL, err := b.client.GetStreamURLContext(ctx, video, audio); err == nil {
			ext := mimeToExt(audio.MimeType)
			if ext == "mp4" {
				ext = "m4a"
			}
			info.Formats = append(info.Formats, Format{
				ID:        fmt.Sprintf("itag-%d", audio.ItagNo),
				Label:     "audio only",
				Ext:       ext,
				Kind:      core.AudioMedia,
				URL:       streamURL,
				SizeBytes: audio.ContentLength,
				Bitrate:   audio.Bitrate,
			})
		}
	}

	if len(info.Formats) == 0 {
		return nil, fmt.Errorf("no directly downloadable formats for video %s", video.ID)
	}
	return info, nil
}

func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Width != 0 || f.Height != 0 {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// mimeToExt maps "video/mp4; codecs=..." to a file extension.
func mimeToExt(mimeType string) string {
	mimeType = strings.SplitN(mimeType, ";", 2)[0]
	parts := strings.SplitN(mimeType, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "mp4"
	}
	ext := parts[1]
	if ext == "3gpp" {
		ext = "3gp"
	}
	return ext
}
