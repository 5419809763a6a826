package core

import (
	"runtime"
	"runtime/debug"
)

const (
	AppName    = "VieoDownloader"
	AppVersion = "1.3.0"
)

type BuildInfo struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo reports the application version and the build environment,
// including the VCS revision when the binary carries one.
func GetBuildInfo() *BuildInfo {
	info := &BuildInfo{
		App:       AppName,
		Version:   AppVersion,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
				info.Commit = setting.Value[:8]
			}
		}
	}

	return info
}
