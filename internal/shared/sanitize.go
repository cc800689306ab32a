package shared

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameBytes caps sanitized names well under the 255 byte limit of common filesystems,
// leaving room for an extension and yt-dlp's temporary suffixes.
const MaxFilenameBytes = 200

const fallbackFilename = "untitled"

const illegalFilenameChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename turns s into a single path component that is safe on Linux, macOS and Windows.
//
// The result is NFC-normalized, never empty, never contains path separators or the
// characters <>:"/\|?*, and is at most [MaxFilenameBytes] long.
func SanitizeFilename(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case strings.ContainsRune(illegalFilenameChars, r), unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	name := trimName(b.String())
	if len(name) > MaxFilenameBytes {
		name = trimName(truncateRunes(name, MaxFilenameBytes))
	}
	if name == "" {
		return fallbackFilename
	}
	if reservedNames[strings.ToUpper(name)] {
		name = "_" + name
	}
	return name
}

func trimName(s string) string {
	return strings.Trim(s, " .")
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
