package extract

import (
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for keyword matching: NFKC, lowercase, trimmed, and every
// whitespace run (newlines included) collapsed to one space.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeCell is Normalize for a table cell; absent cells yield "".
func NormalizeCell(c domain.Cell) string {
	if !c.Present {
		return ""
	}
	return Normalize(c.Value)
}
