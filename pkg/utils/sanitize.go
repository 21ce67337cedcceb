package utils

import (
	"regexp"
	"strings"
)

var (
	invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
)

const maxComponentLength = 100

// SanitizeDirName cleans a string (usually a site domain or game title) so
// it is safe to use as a single path component, e.g. for the per-site state
// database directory.
func SanitizeDirName(name string) string {
	s := invalidPathChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_ ")
	if len(s) > maxComponentLength {
		s = strings.Trim(s[:maxComponentLength], "_ ")
	}
	if s == "" {
		s = "site"
	}
	return s
}
