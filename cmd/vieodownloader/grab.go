package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
	"github.com/cheggaaa/pb"
	"github.com/fatih/color"
)

// runGrab resolves and downloads a single URL from the terminal, with a
// progress bar instead of the web UI. Returns the process exit code.
func runGrab(cfg *config.Config, rawURL, formatID string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := newResolver(cfg)

	fmt.Printf("Analyzing %s ...\n", rawURL)
	info, err := res.Resolve(ctx, rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("❌"), err)
		return 1
	}

	fmt.Println()
	fmt.Printf(" %s    %s\n", color.CyanString("Site:"), info.Platform)
	fmt.Printf(" %s   %s\n", color.CyanString("Title:"), info.Title)
	if info.Uploader != "" {
		fmt.Printf(" %s %s\n", color.CyanString("Channel:"), info.Uploader)
	}
	if info.DurationSeconds > 0 {
		fmt.Printf(" %s  %s\n", color.CyanString("Length:"), formatClock(info.DurationSeconds))
	}
	fmt.Printf(" %s  %s\n", color.CyanString("Source:"), info.Source)
	if info.Demo {
		fmt.Printf(" %s\n", color.YellowString("demo data - the transfer below is simulated"))
	}

	var format *resolver.Format
	if formatID == "" || formatID == "best" {
		format = info.BestFormat()
	} else {
		format = info.FormatByID(formatID)
	}
	if format == nil {
		fmt.Fprintf(os.Stderr, "%s format %q is not available for this link\n", color.RedString("❌"), formatID)
		fmt.Fprintf(os.Stderr, "Available formats:\n")
		for _, f := range info.Formats {
			fmt.Fprintf(os.Stderr, "  %-12s %s (%s)\n", f.ID, f.Label, f.Ext)
		}
		return 1
	}
	fmt.Printf(" %s  %s (%s)\n", color.CyanString("Format:"), format.Label, format.Ext)
	fmt.Println()

	filename := core.SanitizeFilename(fmt.Sprintf("%s.%s", info.Title, format.Ext))
	outputPath := filepath.Join(cfg.DownloadPath, filename)

	if _, err := os.Stat(outputPath); err == nil {
		fmt.Printf("%s %s\n", color.YellowString("Already saved:"), outputPath)
		return 0
	}

	bar := pb.New64(format.SizeBytes).SetUnits(pb.U_BYTES).SetRefreshRate(time.Millisecond * 10)
	bar.ShowSpeed = true
	bar.ShowFinalTime = true
	bar.SetMaxWidth(1000)
	bar.Start()

	progressChan := make(chan core.DownloadProgress, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressChan {
			if p.Total > 0 {
				bar.Total = p.Total
			}
			bar.Set64(p.Received)
		}
	}()

	req := core.FetchRequest{
		DirectURL:  format.URL,
		Referer:    info.URL,
		OutputPath: outputPath,
		TotalSize:  format.SizeBytes,
	}

	var fetchErr error
	if info.Demo {
		fetchErr = core.SimulateFetch(ctx, req, progressChan, "grab")
	} else {
		fetcher := core.NewFetcher(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, cfg.UserAgent)
		fetchErr = fetcher.Fetch(ctx, req, progressChan, "grab")
	}

	close(progressChan)
	<-done
	bar.Finish()

	if fetchErr != nil {
		if ctx.Err() != nil {
			fmt.Printf("%s partial file kept, run the same command to resume\n", color.YellowString("Interrupted."))
			return 1
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("❌"), core.CategorizeFetchError(fetchErr))
		return 1
	}

	fmt.Printf("%s %s\n", color.GreenString("✓ Saved:"), outputPath)
	return 0
}

func formatClock(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
