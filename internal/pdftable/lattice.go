package pdftable

import (
	"sort"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

type hEdge struct{ y, x0, x1 float64 }
type vEdge struct{ x, y0, y1 float64 }

// latticeStrategy rebuilds ruled tables from drawn rectangles. With linesOnly
// set only thin line-like rectangles count (lines_strict); otherwise every
// rectangle border is an edge (default).
type latticeStrategy struct {
	name      string
	settings  Settings
	linesOnly bool
}

func (l latticeStrategy) Name() string { return l.name }

func (l latticeStrategy) Tables(p PageLayout) []domain.RawTable {
	hs, vs := l.edges(p.Rulings)
	if len(hs) < 2 || len(vs) < 2 {
		return nil
	}

	type placed struct {
		top   float64
		table domain.RawTable
	}
	var found []placed
	for _, comp := range connectEdges(hs, vs, l.settings.SnapTolerance) {
		xs := snap(comp.xs(), l.settings.SnapTolerance)
		ys := snap(comp.ys(), l.settings.SnapTolerance)
		// A grid needs two columns to hold anything we can classify.
		if len(xs) < 3 || len(ys) < 2 {
			continue
		}
		if t := fillGrid(p.Glyphs, xs, ys, l.settings); len(t) > 0 {
			found = append(found, placed{top: ys[len(ys)-1], table: t})
		}
	}

	// Reading order: higher on the page first.
	sort.SliceStable(found, func(i, j int) bool { return found[i].top > found[j].top })
	tables := make([]domain.RawTable, len(found))
	for i, f := range found {
		tables[i] = f.table
	}
	return tables
}

func (l latticeStrategy) edges(rulings []Ruling) ([]hEdge, []vEdge) {
	thick := l.settings.LineThickness
	var hs []hEdge
	var vs []vEdge
	for _, r := range rulings {
		switch {
		case r.Height() <= thick && r.Width() > thick:
			hs = append(hs, hEdge{y: (r.MinY + r.MaxY) / 2, x0: r.MinX, x1: r.MaxX})
		case r.Width() <= thick && r.Height() > thick:
			vs = append(vs, vEdge{x: (r.MinX + r.MaxX) / 2, y0: r.MinY, y1: r.MaxY})
		case r.IsLine(thick):
			// a dot
		case !l.linesOnly:
			hs = append(hs, hEdge{y: r.MinY, x0: r.MinX, x1: r.MaxX}, hEdge{y: r.MaxY, x0: r.MinX, x1: r.MaxX})
			vs = append(vs, vEdge{x: r.MinX, y0: r.MinY, y1: r.MaxY}, vEdge{x: r.MaxX, y0: r.MinY, y1: r.MaxY})
		}
	}
	return hs, vs
}

type edgeComponent struct {
	hs []hEdge
	vs []vEdge
}

func (c edgeComponent) xs() []float64 {
	out := make([]float64, len(c.vs))
	for i, v := range c.vs {
		out[i] = v.x
	}
	return out
}

func (c edgeComponent) ys() []float64 {
	out := make([]float64, len(c.hs))
	for i, h := range c.hs {
		out[i] = h.y
	}
	return out
}

// connectEdges groups edges that touch or cross into separate grids.
func connectEdges(hs []hEdge, vs []vEdge, tol float64) []edgeComponent {
	n := len(hs) + len(vs)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		if ra, rb := find(a), find(b); ra != rb {
			parent[ra] = rb
		}
	}

	for i, h := range hs {
		for j, v := range vs {
			if v.x >= h.x0-tol && v.x <= h.x1+tol && h.y >= v.y0-tol && h.y <= v.y1+tol {
				union(i, len(hs)+j)
			}
		}
		for k := i + 1; k < len(hs); k++ {
			o := hs[k]
			if abs(h.y-o.y) <= tol && h.x0 <= o.x1+tol && o.x0 <= h.x1+tol {
				union(i, k)
			}
		}
	}
	for i := range vs {
		for k := i + 1; k < len(vs); k++ {
			a, b := vs[i], vs[k]
			if abs(a.x-b.x) <= tol && a.y0 <= b.y1+tol && b.y0 <= a.y1+tol {
				union(len(hs)+i, len(hs)+k)
			}
		}
	}

	groups := make(map[int]*edgeComponent)
	var order []int
	for i := 0; i < n; i++ {
		root := find(i)
		c, ok := groups[root]
		if !ok {
			c = &edgeComponent{}
			groups[root] = c
			order = append(order, root)
		}
		if i < len(hs) {
			c.hs = append(c.hs, hs[i])
		} else {
			c.vs = append(c.vs, vs[i-len(hs)])
		}
	}
	out := make([]edgeComponent, 0, len(order))
	for _, root := range order {
		out = append(out, *groups[root])
	}
	return out
}

// snap sorts values and merges those within tol of each other.
func snap(values []float64, tol float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var out []float64
	sum, count := sorted[0], 1.0
	for _, v := range sorted[1:] {
		if v-sum/count <= tol {
			sum += v
			count++
			continue
		}
		out = append(out, sum/count)
		sum, count = v, 1
	}
	return append(out, sum/count)
}

// fillGrid places glyphs into the cells bounded by xs (ascending) and ys
// (ascending, PDF space), returning rows top-down. Empty rows are dropped.
func fillGrid(glyphs []Glyph, xs, ys []float64, s Settings) domain.RawTable {
	cols := len(xs) - 1
	rows := len(ys) - 1
	cells := make([][][]Glyph, rows)
	for i := range cells {
		cells[i] = make([][]Glyph, cols)
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		cx := (g.X + g.end()) / 2
		col := band(xs, cx)
		row := band(ys, g.Y)
		if col < 0 || row < 0 {
			continue
		}
		// ys ascend bottom-up; row 0 must be the top band.
		top := rows - 1 - row
		cells[top][col] = append(cells[top][col], g)
	}

	var table domain.RawTable
	for _, r := range cells {
		out := make(domain.Row, cols)
		empty := true
		for c, gs := range r {
			text := cellText(gs, s)
			if text == "" {
				out[c] = domain.Absent()
				continue
			}
			out[c] = domain.Text(text)
			empty = false
		}
		if !empty {
			table = append(table, out)
		}
	}
	return table
}

// band returns i such that bounds[i] <= v < bounds[i+1], or -1.
func band(bounds []float64, v float64) int {
	for i := 0; i+1 < len(bounds); i++ {
		if v >= bounds[i] && v < bounds[i+1] {
			return i
		}
	}
	return -1
}

// cellText joins the lines of a cell with single spaces.
func cellText(glyphs []Glyph, s Settings) string {
	if len(glyphs) == 0 {
		return ""
	}
	var parts []string
	for _, row := range groupRows(glyphs, s.RowTolerance) {
		for _, seg := range segments(row, s.SegmentGap) {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
