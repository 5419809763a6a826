package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/grafov/m3u8"
)

// expandHLS downloads a playlist and turns it into selectable formats. A
// master playlist yields one format per variant; a plain media playlist
// yields a single format for the stream itself.
func expandHLS(ctx context.Context, client *http.Client, playlistURL, userAgent string) ([]Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist returned HTTP %d", resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("decoding playlist: %w", err)
	}

	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, err
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		var formats []Format
		seen := make(map[string]bool)
		for _, variant := range master.Variants {
			if variant == nil || variant.URI == "" {
				continue
			}
			label := variantLabel(variant)
			if seen[label] {
				continue
			}
			seen[label] = true
			formats = append(formats, Format{
				ID:      fmt.Sprintf("hls-%s", strings.ReplaceAll(label, " ", "")),
				Label:   label,
				Ext:     "ts",
				Kind:    core.VideoMedia,
				URL:     absoluteURL(base, variant.URI),
				Height:  variantHeight(variant),
				Bitrate: int(variant.Bandwidth),
			})
		}
		if len(formats) == 0 {
			return nil, fmt.Errorf("master playlist has no variants")
		}
		return formats, nil
	case m3u8.MEDIA:
		return []Format{{
			ID:    "hls",
			Label: "stream",
			Ext:   "ts",
			Kind:  core.VideoMedia,
			URL:   playlistURL,
		}}, nil
	}
	return nil, fmt.Errorf("unrecognized playlist type")
}

func variantLabel(variant *m3u8.Variant) string {
	if h := variantHeight(variant); h > 0 {
		return fmt.Sprintf("%dp", h)
	}
	if variant.Bandwidth > 0 {
		return fmt.Sprintf("%dkbps", variant.Bandwidth/1000)
	}
	return "stream"
}

func variantHeight(variant *m3u8.Variant) int {
	parts := strings.SplitN(variant.Resolution, "x", 2)
	if len(parts) != 2 {
		return 0
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return h
}
