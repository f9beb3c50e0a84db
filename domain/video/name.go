package video

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FileStem turns a display name into a deterministic, file-safe stem.
// Names are NFC-normalised so that the same title always maps to the same
// file regardless of how the provider composed its characters.
func FileStem(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	stem := strings.Trim(b.String(), ". ")
	if stem == "" {
		return "untitled"
	}
	return stem
}

// ChunkPattern returns the printf-style segment template for base, a path
// without extension. Any '%' already in base is escaped so that both
// fmt.Sprintf and ffmpeg's segment muxer read it literally.
func ChunkPattern(base, ext string) string {
	return strings.ReplaceAll(base, "%", "%%") + ChunkInfix + "%03d" + ext
}

// ChunkInfix separates a stem from its chunk number
const ChunkInfix = ".chunk"
