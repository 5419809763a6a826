package utils

import (
	"io"
	"log"
	"os"
)

var (
	VerboseLogging = false
	logger         = log.New(os.Stdout, "", log.LstdFlags)
)

// SetVerboseLogging sets the global verbose logging flag
func SetVerboseLogging(verbose bool) {
	VerboseLogging = verbose
}

// SetLogOutput redirects logger output, used by tests to keep output quiet
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// LogInfo logs informational messages only if verbose logging is enabled
func LogInfo(format string, args ...interface{}) {
	if VerboseLogging {
		logger.Printf("[INFO] "+format, args...)
	}
}

// LogDebug logs backend/service trace messages only if verbose logging is enabled
func LogDebug(format string, args ...interface{}) {
	if VerboseLogging {
		logger.Printf("[DEBUG] "+format, args...)
	}
}

// LogError logs error messages (always shown)
func LogError(format string, args ...interface{}) {
	logger.Printf("[ERROR] "+format, args...)
}

// LogWarning logs warning messages (always shown)
func LogWarning(format string, args ...interface{}) {
	logger.Printf("[WARNING] "+format, args...)
}

// LogSuccess logs success messages (always shown)
func LogSuccess(format string, args ...interface{}) {
	logger.Printf("[SUCCESS] "+format, args...)
}
