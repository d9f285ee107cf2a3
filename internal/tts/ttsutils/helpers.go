// Package ttsutils provides filename and path utility functions for the service.
//
// This package focuses on turning arbitrary sentence text into names that are
// safe on common filesystems, keeping those names unique within a run, and
// resolving application paths, adhering to Go's best practices for clarity,
// error handling, and maintainability.
package ttsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Environment variable names used for path resolution.
const (
	envWorkDir = "SENTENCE_CLIPS_WORK_DIR"
)

// Common application directory and path constants.
const (
	appName                = "sentence-clips-service"
	tmpDir                 = "/tmp"
	dotCache               = ".cache"
	defaultDirPermissions  = 0o750
	dot                    = "."
	invalidCharReplacement = "_"
)

// Filename shaping constants.
const (
	// DefaultMaxStemLength caps sanitized stems at a length that stays well
	// under common filesystem limits even after a collision suffix and the
	// ".mp3" extension are appended.
	DefaultMaxStemLength = 80

	// fallbackStem names a clip whose sentence sanitized down to nothing,
	// such as "..." or a run of control characters.
	fallbackStem = "sentence"

	// truncationMark is appended to stems cut at the length cap so a
	// shortened name is visibly distinct from a naturally short one.
	truncationMark = "…"

	// asciiControlMax is the highest code point stripped from stems; space
	// (0x20) and above pass through.
	asciiControlMax = rune(0x1F)

	// firstCollisionSuffix is the number given to the second clip claiming a
	// stem. The first keeps the bare stem.
	firstCollisionSuffix  = 2
	collisionSuffixFormat = "%s (%d)"
)

// Time formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
)

// File extension constants.
const (
	extText = ".text"
	extTXT  = ".txt"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
)

// stemReplacer rewrites the characters Windows rejects in filenames; the same
// set is unfriendly in shells and URLs on every other platform.
var stemReplacer = strings.NewReplacer(
	"<", invalidCharReplacement,
	">", invalidCharReplacement,
	":", invalidCharReplacement,
	"\"", invalidCharReplacement,
	"/", invalidCharReplacement,
	"\\", invalidCharReplacement,
	"|", invalidCharReplacement,
	"?", invalidCharReplacement,
	"*", invalidCharReplacement,
)

// SanitizeStem converts sentence text into a filesystem-safe filename stem.
//
// Reserved characters are replaced with underscores, ASCII control characters
// are stripped, and the result is trimmed of surrounding whitespace and then
// surrounding dots. A stem that sanitizes down to nothing becomes "sentence".
// Stems longer than maxLen runes are cut at maxLen, right-trimmed, and marked
// with a trailing ellipsis.
func SanitizeStem(name string, maxLen int) string {
	stem := stemReplacer.Replace(name)
	stem = strings.Map(dropControlRune, stem)
	stem = strings.TrimSpace(stem)
	stem = strings.Trim(stem, dot)

	if stem == "" {
		stem = fallbackStem
	}

	runes := []rune(stem)
	if len(runes) > maxLen {
		head := string(runes[:maxLen])
		stem = strings.TrimRightFunc(head, unicode.IsSpace) + truncationMark
	}

	return stem
}

// dropControlRune removes ASCII control characters during strings.Map.
func dropControlRune(r rune) rune {
	if r <= asciiControlMax {
		return -1
	}

	return r
}

// NameAllocator hands out filename stems that are unique for the lifetime of
// the allocator. Each run of the pipeline uses a fresh allocator, so clip
// names never collide inside one archive but may repeat across runs.
//
// An allocator is not safe for concurrent use.
type NameAllocator struct {
	used map[string]struct{}
}

// NewNameAllocator returns an allocator with no names claimed.
func NewNameAllocator() *NameAllocator {
	return &NameAllocator{
		used: make(map[string]struct{}),
	}
}

// Claim returns stem if it has not been handed out yet, otherwise the first
// free "stem (n)" variant counting up from n=2. Only the returned name is
// recorded as taken.
func (a *NameAllocator) Claim(stem string) string {
	candidate := stem
	for suffix := firstCollisionSuffix; ; suffix++ {
		_, taken := a.used[candidate]
		if !taken {
			break
		}

		candidate = fmt.Sprintf(collisionSuffixFormat, stem, suffix)
	}

	a.used[candidate] = struct{}{}

	return candidate
}

// WorkDir returns the directory for run-scoped state such as the object store
// backing directory and logs, respecting an environment variable override and
// falling back to a standard user-based cache directory.
func WorkDir() string {
	// Honor the user-defined SENTENCE_CLIPS_WORK_DIR if it's set.
	if workDir := os.Getenv(envWorkDir); workDir != "" {
		return workDir
	}

	// Default to a .cache directory in the user's home.
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to a temporary directory if home cannot be determined.
		return filepath.Join(tmpDir, appName)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		// MkdirAll is used to create parent directories as needed.
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(
				errFmtFailedToCreateDir,
				path,
				mkdirErr,
			)
		}
	}

	return nil
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// IsValidTextFile checks if a filename has a plain-text file extension.
func IsValidTextFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case extTXT, extText:
		return true
	default:
		return false
	}
}
