package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxLabelRunes = 20

// BinFilename builds "bin-WxDxH-type[-label][-index].stl". A negative index
// is omitted.
func BinFilename(s BinSpec, index int) string {
	parts := []string{fmt.Sprintf("bin-%dx%dx%d", s.Width, s.Depth, s.Height), s.Type}
	if s.Label != nil {
		if safe := SafeName(*s.Label, maxLabelRunes); safe != "" {
			parts = append(parts, safe)
		}
	}
	if index >= 0 {
		parts = append(parts, fmt.Sprint(index))
	}
	return strings.Join(parts, "-") + ".stl"
}

// BaseplateFilename builds "baseplate-WxD.stl".
func BaseplateFilename(s BaseplateSpec) string {
	return fmt.Sprintf("baseplate-%dx%d.stl", s.GridWidth, s.GridDepth)
}

// PlateFilename builds the archive name of a plate, falling back to "plate".
func PlateFilename(name, ext string) string {
	safe := SafeName(name, 64)
	if safe == "" {
		safe = "plate"
	}
	return safe + "." + ext
}

// asciiFold strips combining marks so "Größe Schrauben" keeps its base letters.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SafeName reduces s to ASCII letters, digits, '-', '_' and spaces, capped at
// max runes and trimmed. Used for Content-Disposition filenames.
func SafeName(s string, max int) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	n := 0
	for _, r := range folded {
		if n >= max {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == ' ') {
			b.WriteRune(r)
			n++
		}
	}
	return strings.TrimSpace(b.String())
}
