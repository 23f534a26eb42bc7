package download

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// MaxTitleRunes bounds the sanitized title length.
const MaxTitleRunes = 60

// SanitizeTitle keeps letters, digits, spaces, hyphens and underscores,
// trims surrounding space and truncates to MaxTitleRunes. Applying it to its
// own output returns the same string.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	clean := strings.TrimSpace(b.String())
	if runes := []rune(clean); len(runes) > MaxTitleRunes {
		clean = strings.TrimSpace(string(runes[:MaxTitleRunes]))
	}
	return clean
}

// FileName returns the on-disk name for a document. Titles that sanitize to
// nothing fall back to a name derived from the URL.
func FileName(title, rawURL, ext string) string {
	name := SanitizeTitle(title)
	if name == "" {
		sum := sha256.Sum256([]byte(rawURL))
		name = "document_" + hex.EncodeToString(sum[:4])
	}
	return name + ext
}
