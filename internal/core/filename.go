package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// SanitizeFilename cleans a filename by keeping only alphanumeric characters and spaces
func SanitizeFilename(filename string) string {
	// Remove file extension temporarily (only if it's a real extension)
	ext := ""
	if lastDot := strings.LastIndex(filename, "."); lastDot != -1 {
		potentialExt := filename[lastDot:]
		// Only treat it as an extension if it's a common file extension
		// and doesn't contain spaces (real extensions don't have spaces)
		if !strings.Contains(potentialExt, " ") && len(potentialExt) <= 6 {
			ext = potentialExt
			filename = filename[:lastDot]
		}
	}

	// Keep only alphanumeric characters and spaces
	// Remove all emojis, symbols, and special characters
	var result strings.Builder
	for _, r := range filename {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			result.WriteRune(r)
		}
	}
	filename = result.String()

	// Replace multiple spaces with single space
	reg := regexp.MustCompile(`\s+`)
	filename = reg.ReplaceAllString(filename, " ")

	// Trim spaces from beginning and end
	filename = strings.TrimSpace(filename)

	// Check for Windows reserved names
	filename = sanitizeWindowsReservedNames(filename)

	// Ensure filename doesn't exceed reasonable length limits
	if len(filename) > 200 { // Leave room for extension
		filename = filename[:200]
		// Make sure we don't end with a space after truncation
		filename = strings.TrimRight(filename, " ")
	}

	// If filename is empty after sanitization, use a default
	if filename == "" {
		filename = "download"
	}

	return filename + ext
}

// sanitizeWindowsReservedNames handles Windows reserved filenames
func sanitizeWindowsReservedNames(filename string) string {
	// Windows reserved names (case-insensitive)
	windowsReservedNames := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	}

	// Check if filename (without extension) matches any reserved name
	for _, reserved := range windowsReservedNames {
		if strings.EqualFold(filename, reserved) {
			return filename + " file"
		}
	}

	return filename
}

// EnsureExtension replaces or appends the extension so the filename ends in
// the wanted one
func EnsureExtension(filename, ext string) string {
	if ext == "" {
		return filename
	}
	wanted := "." + strings.TrimPrefix(ext, ".")
	if strings.EqualFold(filepath.Ext(filename), wanted) {
		return filename
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + wanted
}

// UniquePath returns a path in dir that does not collide with an existing
// file, appending " (1)", " (2)" and so on before the extension when needed
func UniquePath(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; i < 1000; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	// give up on suffixing, let the caller overwrite
	return filepath.Join(dir, filename)
}
