package core

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type SystemInfo struct {
	Hostname        string  `json:"hostname"`
	Platform        string  `json:"platform"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
	DiskTotalBytes  uint64  `json:"disk_total_bytes"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
	MemTotalBytes   uint64  `json:"mem_total_bytes"`
	MemFreeBytes    uint64  `json:"mem_free_bytes"`
	MemUsedPercent  float64 `json:"mem_used_percent"`
}

// GetSystemInfo reports host, memory and disk stats for the download
// directory's filesystem. Disk stats are required, the rest are best effort.
func GetSystemInfo(downloadPath string) (*SystemInfo, error) {
	usage, err := disk.Usage(downloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read disk usage for %s: %w", downloadPath, err)
	}

	info := &SystemInfo{
		DiskTotalBytes:  usage.Total,
		DiskFreeBytes:   usage.Free,
		DiskUsedPercent: usage.UsedPercent,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemTotalBytes = vm.Total
		info.MemFreeBytes = vm.Available
		info.MemUsedPercent = vm.UsedPercent
	}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)
		info.UptimeSeconds = h.Uptime
	}

	return info, nil
}

// HasDiskSpace reports whether the filesystem holding path has at least want
// bytes free. Unknown sizes pass the check.
func HasDiskSpace(path string, want int64) (bool, error) {
	if want <= 0 {
		return true, nil
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return false, fmt.Errorf("failed to read disk usage for %s: %w", path, err)
	}
	return usage.Free > uint64(want), nil
}
