package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/KSBMR/VieoDownloader/internal/api"
	"github.com/KSBMR/VieoDownloader/internal/config"
	"github.com/KSBMR/VieoDownloader/internal/core"
	"github.com/KSBMR/VieoDownloader/internal/manager"
	"github.com/KSBMR/VieoDownloader/internal/resolver"
	"github.com/KSBMR/VieoDownloader/internal/ui"
	"github.com/KSBMR/VieoDownloader/internal/utils"
)

func ensureDirectories(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DownloadPath, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	return nil
}

func newResolver(cfg *config.Config) *resolver.Resolver {
	return resolver.New(resolver.Options{
		UserAgent:      cfg.UserAgent,
		HTTPTimeout:    time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		CacheTTL:       time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		DemoMode:       cfg.DemoMode,
		PipedInstances: cfg.PipedInstances,
	})
}

func main() {
	// Panic recovery for production stability
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Application panic recovered: %v", r)
			fmt.Printf("❌ Application encountered a critical error and will restart in 5 seconds...\n")
			time.Sleep(5 * time.Second)
			os.Exit(1)
		}
	}()

	// Command line flags
	var port int
	var configPath string
	var grabURL string
	var grabFormat string
	var demoMode bool
	flag.IntVar(&port, "port", 0, "Port to run the server on (overrides config file)")
	flag.StringVar(&configPath, "config", "config.json", "Path to configuration file")
	flag.StringVar(&grabURL, "grab", "", "Download a single URL from the terminal and exit (no server)")
	flag.StringVar(&grabFormat, "format", "", "Format id for -grab (default: best)")
	flag.BoolVar(&demoMode, "demo", false, "Force demo mode: generated metadata, simulated transfers")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override port from command line argument
	if port > 0 {
		cfg.Port = port
	}

	// Override port from environment variable
	if envPort := os.Getenv("VIEODOWNLOADER_PORT"); envPort != "" {
		if parsedPort, err := strconv.Atoi(envPort); err == nil && parsedPort > 0 {
			cfg.Port = parsedPort
		}
	}

	if demoMode {
		cfg.DemoMode = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set up logging based on config
	utils.SetVerboseLogging(cfg.VerboseLogging)

	// Ensure necessary directories exist
	if err := ensureDirectories(cfg); err != nil {
		log.Fatalf("Failed to create necessary directories: %v", err)
	}

	// One-shot terminal download, no server
	if grabURL != "" {
		os.Exit(runGrab(cfg, grabURL, grabFormat))
	}

	// Create resolver, fetcher and manager
	res := newResolver(cfg)
	fetcher := core.NewFetcher(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, cfg.UserAgent)
	downloadManager := manager.NewDownloadManager(res, fetcher, cfg.MaxConcurrentDownloads, cfg.DownloadPath, cfg)

	build := core.GetBuildInfo()
	fmt.Printf("Starting %s v%s...\n", build.App, build.Version)
	fmt.Printf("Port: %d\n", cfg.Port)
	fmt.Printf("Download path: %s\n", cfg.DownloadPath)
	fmt.Printf("Max concurrent downloads: %d\n", cfg.MaxConcurrentDownloads)

	if cfg.DemoMode {
		fmt.Printf("Demo mode: on (generated metadata, simulated transfers)\n")
	} else {
		fmt.Printf("✓ Resolver chain: %s\n", strings.Join(res.Backends(), " → "))
	}

	if sysInfo, err := core.GetSystemInfo(cfg.DownloadPath); err == nil {
		fmt.Printf("✓ Disk space: %s free\n", core.FormatBytes(int64(sysInfo.DiskFreeBytes)))
	} else {
		fmt.Printf("Warning: could not read disk stats: %v\n", err)
	}

	// Create handlers
	apiHandler := api.NewHandler(cfg, configPath, downloadManager)
	uiHandler := ui.NewTemplateHandler(cfg)

	// Setup routes
	router := api.SetupRoutes(apiHandler, ui.Assets)

	// Add UI route
	router.HandleFunc("/", uiHandler.ServeIndex).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("\nInitializing components and starting web server...\n")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Create listener
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Printf("\n❌ Failed to start server on port %d: %v\n", cfg.Port, err)
		fmt.Printf("\nTo change the port, you can:\n")
		fmt.Printf("1. Edit config.json and change the \"port\" value\n")
		fmt.Printf("2. Use command line: ./vieodownloader -port 3000\n")
		fmt.Printf("3. Use environment variable: VIEODOWNLOADER_PORT=3000 ./vieodownloader\n")
		fmt.Printf("4. Use -h flag to see all available options\n")
		os.Exit(1)
	}

	fmt.Printf("✓ Server is ready and listening on http://localhost%s\n", addr)
	fmt.Printf("✓ Web UI is now available - you can access it in your browser\n")
	fmt.Printf("\nTo change port: Edit config.json, use -port flag, or VIEODOWNLOADER_PORT env var\n")
	fmt.Printf("Press Ctrl+C to stop the server\n")
	fmt.Printf("=====================================\n")

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	for {
		select {
		case sig := <-sigChan:
			fmt.Printf("\n\nReceived %s signal, shutting down gracefully...\n", sig)

			// Create shutdown context with timeout
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			// Shutdown download manager
			fmt.Printf("Stopping download manager...\n")
			downloadManager.Shutdown()

			// Shutdown HTTP server
			fmt.Printf("Stopping HTTP server...\n")
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Error during server shutdown: %v\n", err)
			}

			fmt.Printf("✓ Server shutdown complete\n")
			return

		case err := <-serverErrChan:
			fmt.Printf("\n❌ Server error: %v\n", err)

			// Attempt graceful cleanup
			downloadManager.Shutdown()

			// Give some time for cleanup
			time.Sleep(2 * time.Second)

			fmt.Printf("Attempting to restart server in 5 seconds...\n")
			time.Sleep(5 * time.Second)

			// Restart the server
			fmt.Printf("Restarting server...\n")
			if newListener, err := net.Listen("tcp", addr); err == nil {
				listener = newListener
				go func() {
					if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
						serverErrChan <- err
					}
				}()
				fmt.Printf("✓ Server restarted successfully\n")
			} else {
				fmt.Printf("❌ Failed to restart server: %v\n", err)
				os.Exit(1)
			}
		}
	}
}
