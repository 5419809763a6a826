package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/utils"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidURL marks user input that never reached a backend.
var ErrInvalidURL = errors.New("invalid media URL")

// Backend resolves metadata and candidate links for URLs it recognizes.
type Backend interface {
	// Name returns the backend name (e.g. "youtube", "scrape")
	Name() string

	// Match returns true if this backend can handle the URL.
	// The URL is pre-parsed so backends can reliably check the host.
	Match(u *url.URL) bool

	// Resolve retrieves media information for the URL
	Resolve(ctx context.Context, rawURL string) (*MediaInfo, error)
}

// MediaInfo contains resolved media metadata and download candidates.
type MediaInfo struct {
	URL             string      `json:"url"`
	ID              string      `json:"id,omitempty"`
	Platform        string      `json:"platform"`
	Title           string      `json:"title"`
	Uploader        string      `json:"uploader,omitempty"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	Thumbnail       string      `json:"thumbnail,omitempty"`
	Thumbnails      []Thumbnail `json:"thumbnails,omitempty"`
	Formats         []Format    `json:"formats"`
	Demo            bool        `json:"demo"`
	Source          string      `json:"source"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// Format represents a single downloadable rendition.
type Format struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Ext       string         `json:"ext"`
	Kind      core.MediaKind `json:"kind"`
	URL       string         `json:"url,omitempty"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Bitrate   int            `json:"bitrate,omitempty"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// BestThumbnail picks the largest thumbnail by area, falling back to the
// first one.
func (m *MediaInfo) BestThumbnail() string {
	if len(m.Thumbnails) == 0 {
		return m.Thumbnail
	}
	best := m.Thumbnails[0]
	for _, t := range m.Thumbnails[1:] {
		if t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}

// FormatByID returns the format with the given id, or nil.
func (m *MediaInfo) FormatByID(id string) *Format {
	for i := range m.Formats {
		if m.Formats[i].ID == id {
			return &m.Formats[i]
		}
	}
	return nil
}

// BestFormat returns the highest-resolution video format, or the first
// format when no video rendition exists.
func (m *MediaInfo) BestFormat() *Format {
	var best *Format
	for i := range m.Formats {
		f := &m.Formats[i]
		if f.Kind != core.VideoMedia {
			continue
		}
		if best == nil || f.Height > best.Height {
			best = f
		}
	}
	if best == nil && len(m.Formats) > 0 {
		best = &m.Formats[0]
	}
	return best
}

type Options struct {
	UserAgent      string
	HTTPTimeout    time.Duration
	CacheTTL       time.Duration
	DemoMode       bool
	PipedInstances []string
}

// Resolver runs the backend chain with an in-process TTL cache. Concurrent
// resolutions of the same URL are collapsed into one backend pass.
type Resolver struct {
	backends []Backend
	mock     *MockBackend
	prober   *Prober
	cache    *gocache.Cache
	group    singleflight.Group
	demoMode bool
}

func New(opts Options) *Resolver {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}

	client := &http.Client{Timeout: opts.HTTPTimeout}
	prober := NewProber(opts.PipedInstances, client)

	return &Resolver{
		backends: []Backend{
			NewYouTubeBackend(client),
			NewPipedBackend(prober, client),
			NewSsvidBackend(client, opts.UserAgent),
			NewScrapeBackend(client, opts.UserAgent),
		},
		mock:     &MockBackend{},
		prober:   prober,
		cache:    gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		demoMode: opts.DemoMode,
	}
}

// StartProbing launches the background health checks that keep the public
// instance list ordered healthy-first. It returns immediately.
func (r *Resolver) StartProbing(ctx context.Context) {
	r.prober.Start(ctx)
}

// Backends lists the configured backend names in chain order, mock last.
func (r *Resolver) Backends() []string {
	names := make([]string, 0, len(r.backends)+1)
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return append(names, r.mock.Name())
}

// Resolve validates the URL and walks the backend chain until one succeeds.
// Every backend failure is recorded and the chain moves on; when all real
// backends fail the mock generator answers, so the only error a caller can
// see is an invalid URL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*MediaInfo, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	key := u.String()

	if cached, found := r.cache.Get(key); found {
		utils.LogDebug("resolve cache hit for %s", key)
		return cached.(*MediaInfo), nil
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		info := r.resolveUncached(ctx, u, key)
		r.cache.Set(key, info, gocache.DefaultExpiration)
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*MediaInfo), nil
}

func (r *Resolver) resolveUncached(ctx context.Context, u *url.URL, rawURL string) *MediaInfo {
	platform := DetectPlatform(u)

	if r.demoMode {
		log.Printf("[RESOLVER] demo mode active, generating mock metadata for %s", rawURL)
		return r.mock.Generate(rawURL, platform)
	}

	var warnings []string
	for _, backend := range r.backends {
		if !backend.Match(u) {
			continue
		}

		utils.LogDebug("trying backend %s for %s", backend.Name(), rawURL)
		info, err := backend.Resolve(ctx, rawURL)
		if err != nil {
			log.Printf("[RESOLVER] %s failed for %s: %v", backend.Name(), rawURL, err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", backend.Name(), err))
			continue
		}
		if len(info.Formats) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: returned no formats", backend.Name()))
			continue
		}

		info.URL = rawURL
		info.Platform = platform
		info.Source = backend.Name()
		info.Warnings = warnings
		finishInfo(info)
		log.Printf("[RESOLVER] %s resolved %s: %q with %d formats", backend.Name(), rawURL, info.Title, len(info.Formats))
		return info
	}

	log.Printf("[RESOLVER] all backends failed for %s, falling back to mock data", rawURL)
	info := r.mock.Generate(rawURL, platform)
	info.Warnings = warnings
	return info
}

// finishInfo fills derived fields after a backend resolved successfully.
func finishInfo(info *MediaInfo) {
	if info.Thumbnail == "" {
		info.Thumbnail = info.BestThumbnail()
	}

	// video renditions first, tallest on top, audio at the end
	sort.SliceStable(info.Formats, func(i, j int) bool {
		a, b := info.Formats[i], info.Formats[j]
		if a.Kind != b.Kind {
			return a.Kind == core.VideoMedia
		}
		return a.Height > b.Height
	})
}
