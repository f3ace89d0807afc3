package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
)

type dateLayout struct {
	layout       string
	twoDigitYear bool
}

// dateLayouts are tried in order. Day-first layouts come before year-first.
var dateLayouts = []dateLayout{
	{layout: "2-1-2006"},
	{layout: "2/1/2006"},
	{layout: "2006-1-2"},
	{layout: "2-Jan-2006"},
	{layout: "2 Jan 2006"},
	{layout: "2-1-06", twoDigitYear: true},
	{layout: "2/1/06", twoDigitYear: true},
}

var (
	numericDateFull  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})`)
	numericDateShort = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2})`)
	monthNameDate    = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]{3})\s+(\d{4})`)
	embeddedDate     = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})`)
)

// ParseDate reads a statement date from a cell. Two-digit years always land
// in the 2000s.
func ParseDate(c domain.Cell) (civil.Date, bool) {
	if !c.Present {
		return civil.Date{}, false
	}
	return parseDateString(strings.TrimSpace(c.Value))
}

// FindDateIn looks for a numeric day-month-year date anywhere in s. It is the
// last resort when the date column itself is unparseable.
func FindDateIn(s string) (civil.Date, bool) {
	m := embeddedDate.FindString(s)
	if m == "" {
		return civil.Date{}, false
	}
	return parseDateString(m)
}

func parseDateString(s string) (civil.Date, bool) {
	if s == "" {
		return civil.Date{}, false
	}

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if l.twoDigitYear {
			d.Year = 2000 + d.Year%100
			if !d.IsValid() {
				continue
			}
		}
		return d, true
	}

	if m := numericDateFull.FindStringSubmatch(s); m != nil {
		if d, ok := reparse(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := numericDateShort.FindStringSubmatch(s); m != nil {
		if d, ok := reparse(m[1], m[2], "20"+m[3]); ok {
			return d, true
		}
	}
	if m := monthNameDate.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("2-Jan-2006", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
		if err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func reparse(day, month, year string) (civil.Date, bool) {
	t, err := time.Parse("2-1-2006", fmt.Sprintf("%s-%s-%s", day, month, year))
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}
