package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/utils"
	"github.com/PuerkitoBio/goquery"
)

// scrape reads at most this much of a page before parsing
const scrapeBodyLimit = 5 << 20

// ScrapeBackend is the last real backend in the chain. It fetches the page
// itself and pulls Open Graph video tags or inline <video> sources, which
// is enough for most self-hosted players and many smaller sites.
type ScrapeBackend struct {
	client    *http.Client
	userAgent string
}

func NewScrapeBackend(client *http.Client, userAgent string) *ScrapeBackend {
	return &ScrapeBackend{client: client, userAgent: userAgent}
}

func (b *ScrapeBackend) Name() string { return "scrape" }

// Match accepts everything; the scrape backend is the catch-all.
func (b *ScrapeBackend) Match(u *url.URL) bool { return true }

func (b *ScrapeBackend) Resolve(ctx context.Context, rawURL string) (*MediaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, scrapeBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	pageURL := resp.Request.URL
	info := &MediaInfo{
		Title:     firstNonEmpty(metaContent(doc, "og:title"), strings.TrimSpace(doc.Find("title").First().Text())),
		Uploader:  firstNonEmpty(metaNameContent(doc, "author"), metaContent(doc, "og:site_name")),
		Thumbnail: absoluteURL(pageURL, metaContent(doc, "og:image")),
	}
	if d := metaContent(doc, "og:video:duration"); d != "" {
		if seconds, err := strconv.Atoi(d); err == nil {
			info.DurationSeconds = seconds
		}
	}

	videoURL := firstNonEmpty(
		metaContent(doc, "og:video:secure_url"),
		metaContent(doc, "og:video:url"),
		metaContent(doc, "og:video"),
		firstVideoSource(doc),
	)
	if videoURL == "" {
		return nil, fmt.Errorf("no open graph or inline video found")
	}
	videoURL = absoluteURL(pageURL, videoURL)

	if isPlaylistURL(videoURL) {
		formats, err := expandHLS(ctx, b.client, videoURL, b.userAgent)
		if err == nil && len(formats) > 0 {
			info.Formats = formats
			return info, nil
		}
		utils.LogDebug("hls expansion of %s failed: %v", videoURL, err)
	}

	info.Formats = []Format{{
		ID:    "source",
		Label: "source",
		Ext:   extFromURL(videoURL),
		Kind:  core.VideoMedia,
		URL:   videoURL,
	}}
	return info, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaNameContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstVideoSource(doc *goquery.Document) string {
	if src, ok := doc.Find("video source[src]").First().Attr("src"); ok && src != "" {
		return src
	}
	if src, ok := doc.Find("video[src]").First().Attr("src"); ok {
		return src
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func absoluteURL(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, ".m3u8")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "mp4"
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	switch ext {
	case "mp4", "webm", "mov", "mkv", "ts", "m4v", "avi":
		return ext
	}
	return "mp4"
}
