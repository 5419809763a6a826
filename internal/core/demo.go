package core

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"time"
)

var (
	demoFetchDuration = 4 * time.Second
	demoTickInterval  = 200 * time.Millisecond
)

// SimulateFetch stands in for a real transfer when the resolved media is demo
// data. It plays back a timed progress ramp over the progress channel and
// finishes by writing a small placeholder file to the output path.
func SimulateFetch(ctx context.Context, req FetchRequest, progressChan chan<- DownloadProgress, downloadID string) error {
	total := req.TotalSize
	if total <= 0 {
		total = demoSize(req.DirectURL + req.Referer)
	}

	log.Printf("[FETCH] %s: simulating download of %s", downloadID, FormatBytes(total))

	steps := int(demoFetchDuration / demoTickInterval)
	bytesPerSec := float64(total) / demoFetchDuration.Seconds()

	ticker := time.NewTicker(demoTickInterval)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		received := total * int64(i) / int64(steps)
		sendProgress(progressChan, buildProgress(received, total, bytesPerSec))
	}

	content := fmt.Sprintf("VieoDownloader demo file\nsource: %s\nsize simulated: %s\n", req.Referer, FormatBytes(total))
	if err := os.WriteFile(req.OutputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write demo file: %w", err)
	}

	sendProgress(progressChan, buildProgress(total, total, 0))
	return nil
}

// demoSize derives a stable pretend file size from the source URL so repeated
// demo downloads of the same video report the same numbers.
func demoSize(seed string) int64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	const minSize = 20 << 20
	const spread = 60 << 20
	return minSize + int64(h.Sum64()%spread)
}
