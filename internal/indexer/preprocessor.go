package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes text for splitting. Runs of spaces and tabs inside a line
// collapse to one space, lines are trimmed, and more than one blank line in a row
// collapses to a single blank line. Newlines are kept so line-oriented inputs (GAF
// rows) and paragraph breaks survive.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}

func collapseSpaces(line string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			wasSpace = true
			continue
		}
		if wasSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		wasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
