package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DownloadPath             string   `json:"download_path"`
	MaxConcurrentDownloads   int      `json:"max_concurrent_downloads"`
	Port                     int      `json:"port"`
	DefaultFormat            string   `json:"default_format"`
	HTTPTimeoutSeconds       int      `json:"http_timeout_seconds"`
	UserAgent                string   `json:"user_agent"`
	CacheTTLMinutes          int      `json:"cache_ttl_minutes"`
	DemoMode                 bool     `json:"demo_mode"`
	PipedInstances           []string `json:"piped_instances"`
	VerboseLogging           bool     `json:"verbose_logging"`
	CompletedFileExpiryHours int      `json:"completed_file_expiry_hours"`
}

func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	downloadPath := filepath.Join(homeDir, "Downloads", "vieodownloader")

	return &Config{
		DownloadPath:           downloadPath,
		MaxConcurrentDownloads: 3,
		Port:                   8080,
		DefaultFormat:          "best",
		HTTPTimeoutSeconds:     30,
		UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		CacheTTLMinutes:        15,
		DemoMode:               false,
		PipedInstances: []string{
			"https://pipedapi.kavin.rocks",
			"https://api.piped.yt",
			"https://pipedapi.adminforge.de",
		},
		VerboseLogging:           false,
		CompletedFileExpiryHours: 72, // 72 hours default
	}
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func (c *Config) Save(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.DownloadPath == "" {
		return fmt.Errorf("download_path cannot be empty")
	}

	if c.MaxConcurrentDownloads <= 0 || c.MaxConcurrentDownloads > 10 {
		return fmt.Errorf("max_concurrent_downloads must be between 1 and 10")
	}

	if c.DefaultFormat == "" {
		return fmt.Errorf("default_format cannot be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("http_timeout_seconds must be positive")
	}

	if c.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache_ttl_minutes cannot be negative")
	}

	if c.CompletedFileExpiryHours < 0 {
		return fmt.Errorf("completed_file_expiry_hours cannot be negative")
	}

	if err := os.MkdirAll(c.DownloadPath, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	return nil
}
