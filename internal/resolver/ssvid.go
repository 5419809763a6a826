package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/KSBMR/VieoDownloader/internal/core"
)

const ssvidDefaultBaseURL = "https://www.ssvid.net"

var ssvidHosts = []string{
	"tiktok.com", "vm.tiktok.com", "vt.tiktok.com",
	"instagram.com", "instagr.am",
	"twitter.com", "x.com", "t.co",
	"facebook.com", "fb.watch", "fb.com",
	"vimeo.com",
}

// SsvidBackend drives the ssvid.net converter, which handles the
// short-video platforms the direct backends do not cover.
type SsvidBackend struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

func NewSsvidBackend(client *http.Client, userAgent string) *SsvidBackend {
	return &SsvidBackend{client: client, userAgent: userAgent, baseURL: ssvidDefaultBaseURL}
}

func (b *SsvidBackend) Name() string { return "ssvid" }

func (b *SsvidBackend) Match(u *url.URL) bool {
	return matchesHost(strings.ToLower(u.Hostname()), ssvidHosts)
}

type ssvidResponse struct {
	Status string `json:"status"`
	Mess   string `json:"mess"`
	Data   struct {
		Title     string `json:"title"`
		Thumbnail string `json:"thumbnail"`
		Links     struct {
			Video []struct {
				QText string `json:"q_text"`
				Size  string `json:"size"`
				URL   string `json:"url"`
			} `json:"video"`
		} `json:"links"`
		Author struct {
			Username string `json:"username"`
			FullName string `json:"full_name"`
		} `json:"author"`
	} `json:"data"`
}

func (b *SsvidBackend) Resolve(ctx context.Context, rawURL string) (*MediaInfo, error) {
	form := url.Values{
		"query": {rawURL},
		"vt":    {"home"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/api/ajax/search", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Origin", b.baseURL)
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	var search ssvidResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if search.Status != "ok" {
		if search.Mess != "" {
			return nil, fmt.Errorf("search rejected: %s", search.Mess)
		}
		return nil, fmt.Errorf("search returned status %q", search.Status)
	}
	if len(search.Data.Links.Video) == 0 {
		return nil, fmt.Errorf("no video links in response")
	}

	info := &MediaInfo{
		Title:     search.Data.Title,
		Thumbnail: search.Data.Thumbnail,
	}
	if search.Data.Author.FullName != "" {
		info.Uploader = search.Data.Author.FullName
	} else {
		info.Uploader = search.Data.Author.Username
	}

	for i, link := range search.Data.Links.Video {
		if link.URL == "" {
			continue
		}
		label := link.QText
		if label == "" {
			label = fmt.Sprintf("variant %d", i+1)
		}
		info.Formats = append(info.Formats, Format{
			ID:        fmt.Sprintf("ssvid-%d", i),
			Label:     label,
			Ext:       "mp4",
			Kind:      core.VideoMedia,
			URL:       link.URL,
			SizeBytes: parseSizeLabel(link.Size),
			Height:    heightFromLabel(label),
		})
	}
	if len(info.Formats) == 0 {
		return nil, fmt.Errorf("no usable video links in response")
	}
	return info, nil
}

// parseSizeLabel converts display sizes like "12.34 MB" to bytes, returning
// 0 for anything it cannot read.
func parseSizeLabel(s string) int64 {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || value < 0 {
		return 0
	}
	switch strings.ToUpper(fields[1]) {
	case "B":
		return int64(value)
	case "KB", "KIB":
		return int64(value * 1024)
	case "MB", "MIB":
		return int64(value * 1024 * 1024)
	case "GB", "GIB":
		return int64(value * 1024 * 1024 * 1024)
	}
	return 0
}

// heightFromLabel pulls the pixel height out of labels like "720p (HD)".
func heightFromLabel(label string) int {
	label = strings.ToLower(label)
	idx := strings.Index(label, "p")
	for idx > 0 {
		start := idx - 1
		for start >= 0 && label[start] >= '0' && label[start] <= '9' {
			start--
		}
		if start < idx-1 {
			if h, err := strconv.Atoi(label[start+1 : idx]); err == nil {
				return h
			}
		}
		next := strings.Index(label[idx+1:], "p")
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return 0
}
