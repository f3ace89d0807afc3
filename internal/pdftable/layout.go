package pdftable

import (
	"math"
	"sort"
	"strings"
)

// Glyph is one positioned run of text as the PDF content stream draws it.
// Y grows upwards, as in PDF user space.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// end estimates the right edge when the producer left W empty.
func (g Glyph) end() float64 {
	if g.W > 0 {
		return g.X + g.W
	}
	size := g.FontSize
	if size <= 0 {
		size = 10
	}
	return g.X + float64(len([]rune(g.S)))*size*0.5
}

// Ruling is a filled or stroked rectangle. Thin rectangles are how most
// generators draw table lines.
type Ruling struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Ruling) Width() float64  { return r.MaxX - r.MinX }
func (r Ruling) Height() float64 { return r.MaxY - r.MinY }

// IsLine reports whether the rectangle is thin enough to be a drawn line.
func (r Ruling) IsLine(maxThickness float64) bool {
	return r.Width() <= maxThickness || r.Height() <= maxThickness
}

// PageLayout is the text and ruling geometry of one page.
type PageLayout struct {
	Number  int
	Glyphs  []Glyph
	Rulings []Ruling
}

// segment is a run of glyphs on one text row with no column-sized gap inside.
type segment struct {
	X0, X1 float64
	Y      float64
	Text   string
}

func (s segment) center() float64 { return (s.X0 + s.X1) / 2 }

// textRow is the segments sharing a baseline, left to right.
type textRow struct {
	Y        float64
	Segments []segment
}

// groupRows buckets glyphs into baselines within tol, top of page first.
func groupRows(glyphs []Glyph, tol float64) [][]Glyph {
	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" && g.S != " " {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]Glyph
	var anchor float64
	for _, g := range sorted {
		if len(rows) == 0 || math.Abs(anchor-g.Y) > tol {
			rows = append(rows, []Glyph{g})
			anchor = g.Y
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], g)
	}
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
	}
	return rows
}

// segments merges a row of glyphs into runs separated by at least gap points.
func segments(row []Glyph, gap float64) []segment {
	var out []segment
	var b strings.Builder
	var cur segment
	flush := func() {
		text := strings.Join(strings.Fields(b.String()), " ")
		if text != "" {
			cur.Text = text
			out = append(out, cur)
		}
		b.Reset()
	}

	for i, g := range row {
		if i == 0 {
			cur = segment{X0: g.X, X1: g.end(), Y: g.Y}
			b.WriteString(g.S)
			continue
		}
		space := g.X - cur.X1
		if space >= gap {
			flush()
			cur = segment{X0: g.X, X1: g.end(), Y: g.Y}
			b.WriteString(g.S)
			continue
		}
		if space > 1 && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(g.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		if e := g.end(); e > cur.X1 {
			cur.X1 = e
		}
	}
	if len(row) > 0 {
		flush()
	}
	return out
}

func textRows(glyphs []Glyph, s Settings) []textRow {
	grouped := groupRows(glyphs, s.RowTolerance)
	rows := make([]textRow, 0, len(grouped))
	for _, g := range grouped {
		segs := segments(g, s.SegmentGap)
		if len(segs) == 0 {
			continue
		}
		rows = append(rows, textRow{Y: g[0].Y, Segments: segs})
	}
	return rows
}

// Text renders the page as plain lines, for diagnostics.
func (p PageLayout) Text() string {
	rows := textRows(p.Glyphs, DefaultSettings())
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, len(r.Segments))
		for i, s := range r.Segments {
			parts[i] = s.Text
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return strings.Join(lines, "\n")
}
