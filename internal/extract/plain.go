package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string. Literature files are best-effort, so invalid
// UTF-8 sequences are replaced with U+FFFD instead of failing the load.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
