package resolver

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/KSBMR/VieoDownloader/internal/core"
)

// MockBackend fabricates plausible metadata when no real backend can
// answer. Output is seeded from the URL so repeated analyses of the same
// link stay stable across requests and restarts.
type MockBackend struct{}

var mockSubjects = []string{
	"Sunset", "City Lights", "Ocean Drive", "Mountain Trail", "Coffee Shop",
	"Skate Park", "Drone View", "Street Food", "Night Market", "Festival",
	"Rooftop", "Harbor", "Desert Road", "Rainy Day", "Studio",
}

var mockKinds = []string{
	"Timelapse", "Adventure", "Vlog", "Tutorial", "Highlights",
	"Compilation", "Review", "Live Session", "Behind the Scenes", "Tour",
}

var mockAuthors = []string{
	"Aurora Media", "PixelTrail", "Wanderframe", "Daily Loop",
	"Nova Clips", "Studio Echo", "Moss & Stone", "Midnight Reel",
}

func (m *MockBackend) Name() string { return "mock" }

// Generate builds a deterministic mock MediaInfo for the URL.
func (m *MockBackend) Generate(rawURL, platform string) *MediaInfo {
	seed := fnvSeed(rawURL)
	rng := rand.New(rand.NewSource(int64(seed)))

	duration := 30 + rng.Intn(871) // 30s up to 15m
	title := fmt.Sprintf("%s %s", mockSubjects[rng.Intn(len(mockSubjects))], mockKinds[rng.Intn(len(mockKinds))])
	author := mockAuthors[rng.Intn(len(mockAuthors))]

	info := &MediaInfo{
		URL:             rawURL,
		ID:              fmt.Sprintf("demo-%08x", seed&0xffffffff),
		Platform:        platform,
		Title:           title,
		Uploader:        author,
		DurationSeconds: duration,
		Thumbnail:       fmt.Sprintf("https://picsum.photos/seed/%x/640/360", seed),
		Demo:            true,
		Source:          m.Name(),
	}

	info.Formats = append(info.Formats, mockFormat("360p", 360, 640, duration, 700_000))
	if rng.Intn(100) < 85 {
		info.Formats = append(info.Formats, mockFormat("720p", 720, 1280, duration, 2_500_000))
	}
	if rng.Intn(100) < 60 {
		info.Formats = append(info.Formats, mockFormat("1080p", 1080, 1920, duration, 5_000_000))
	}
	info.Formats = append(info.Formats, Format{
		ID:        "mock-audio",
		Label:     "audio only",
		Ext:       "m4a",
		Kind:      core.AudioMedia,
		SizeBytes: int64(duration) * 128_000 / 8,
		Bitrate:   128_000,
	})

	finishInfo(info)
	return info
}

func mockFormat(label string, height, width, durationSeconds, bitrate int) Format {
	return Format{
		ID:        "mock-" + label,
		Label:     label,
		Ext:       "mp4",
		Kind:      core.VideoMedia,
		SizeBytes: int64(durationSeconds) * int64(bitrate) / 8,
		Width:     width,
		Height:    height,
		Bitrate:   bitrate,
	}
}

func fnvSeed(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
