package pdftable

import (
	"sort"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// explicitStrategy splits every text row at caller-supplied column
// separators. Without separators it finds nothing.
type explicitStrategy struct {
	settings Settings
}

func (explicitStrategy) Name() string { return StrategyExplicit }

func (e explicitStrategy) Tables(p PageLayout) []domain.RawTable {
	if len(e.settings.ExplicitColumns) == 0 {
		return nil
	}
	separators := append([]float64(nil), e.settings.ExplicitColumns...)
	sort.Float64s(separators)

	var table domain.RawTable
	for _, glyphs := range groupRows(p.Glyphs, e.settings.RowTolerance) {
		buckets := make([][]Glyph, len(separators)+1)
		for _, g := range glyphs {
			col := columnOf((g.X+g.end())/2, separators)
			buckets[col] = append(buckets[col], g)
		}

		row := make(domain.Row, len(buckets))
		filled := 0
		for i, b := range buckets {
			text := cellText(b, e.settings)
			if text == "" {
				row[i] = domain.Absent()
				continue
			}
			row[i] = domain.Text(text)
			filled++
		}
		if filled >= 2 {
			table = append(table, row)
		}
	}
	if len(table) == 0 {
		return nil
	}
	return []domain.RawTable{table}
}
