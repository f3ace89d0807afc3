package extract

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	currencyMarkers = regexp.MustCompile(`(?i)₹|rs\.?|inr|\s+`)
	signedNumber    = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseAmount reads a signed amount from a cell. Currency markers, whitespace
// and thousands separators are ignored. Blank, "-", "--", "NIL" and zero are
// unparseable: zero-valued cells are layout placeholders on the statements we see.
func ParseAmount(c domain.Cell) (decimal.Decimal, bool) {
	if !c.Present {
		return decimal.Zero, false
	}
	s := strings.TrimSpace(c.Value)
	switch strings.ToUpper(s) {
	case "", "-", "--", "NIL":
		return decimal.Zero, false
	}

	s = currencyMarkers.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")

	tok := signedNumber.FindString(s)
	if tok == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(tok)
	if err != nil || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

// ParseBalance reads an optional running balance. Unlike amounts, the sign is kept.
func ParseBalance(c domain.Cell) decimal.NullDecimal {
	v, ok := ParseAmount(c)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}
