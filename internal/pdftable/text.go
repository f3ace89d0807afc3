package pdftable

import (
	"math"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// textStrategy finds tables in unruled layouts by looking for vertical
// whitespace bands (gutters) shared by consecutive multi-cell rows.
type textStrategy struct {
	settings Settings
}

func (textStrategy) Name() string { return StrategyText }

func (t textStrategy) Tables(p PageLayout) []domain.RawTable {
	rows := textRows(p.Glyphs, t.settings)
	var tables []domain.RawTable
	for _, block := range tabularBlocks(rows) {
		bounds := gutters(block, t.settings.MinGutter)
		if len(bounds) == 0 {
			continue
		}
		table := make(domain.RawTable, 0, len(block))
		for _, r := range block {
			table = append(table, rowCells(r.Segments, bounds))
		}
		tables = append(tables, table)
	}
	return tables
}

// tabularBlocks returns runs of rows that have at least two segments. A
// single-segment row between two such rows (a wrapped description) stays in
// the run.
func tabularBlocks(rows []textRow) [][]textRow {
	multi := func(i int) bool { return i >= 0 && i < len(rows) && len(rows[i].Segments) >= 2 }

	var blocks [][]textRow
	var cur []textRow
	for i, r := range rows {
		if multi(i) || (multi(i-1) && multi(i+1) && len(cur) > 0) {
			cur = append(cur, r)
			continue
		}
		if len(cur) >= 2 {
			blocks = append(blocks, cur)
		}
		cur = nil
	}
	if len(cur) >= 2 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// gutters returns the x midpoints of whitespace bands at least minWidth wide
// that (almost) no row in the block crosses.
func gutters(block []textRow, minWidth float64) []float64 {
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, r := range block {
		for _, s := range r.Segments {
			minX = math.Min(minX, s.X0)
			maxX = math.Max(maxX, s.X1)
		}
	}
	if math.IsInf(minX, 0) || maxX-minX < 1 {
		return nil
	}

	width := int(math.Ceil(maxX - minX))
	coverage := make([]int, width+1)
	for _, r := range block {
		for _, s := range r.Segments {
			from := int(math.Floor(s.X0 - minX))
			to := int(math.Ceil(s.X1 - minX))
			for x := from; x <= to && x <= width; x++ {
				coverage[x]++
			}
		}
	}

	slack := len(block) / 10
	var bounds []float64
	start := -1
	for x := 0; x <= width; x++ {
		if coverage[x] <= slack {
			if start < 0 {
				start = x
			}
			continue
		}
		if start >= 0 && float64(x-start) >= minWidth {
			bounds = append(bounds, minX+float64(start+x)/2)
		}
		start = -1
	}
	return bounds
}

// rowCells assigns segments to the columns delimited by bounds.
func rowCells(segs []segment, bounds []float64) domain.Row {
	parts := make([][]string, len(bounds)+1)
	for _, s := range segs {
		col := columnOf(s.center(), bounds)
		parts[col] = append(parts[col], s.Text)
	}
	row := make(domain.Row, len(parts))
	for i, p := range parts {
		if len(p) == 0 {
			row[i] = domain.Absent()
			continue
		}
		row[i] = domain.Text(strings.Join(p, " "))
	}
	return row
}

// columnOf returns the index of the column containing x, given ascending
// separator positions.
func columnOf(x float64, separators []float64) int {
	for i, b := range separators {
		if x < b {
			return i
		}
	}
	return len(separators)
}
