package pdftable

import (
	"fmt"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
)

// PageTables is what the chain found on one page.
type PageTables struct {
	Page int
	Detection
	// Text is the page's plain text, filled only when no table was found.
	Text string
}

// Document is an open PDF whose pages can be run through a Chain.
// The underlying reader is not safe for concurrent use, so page reads are
// serialized; table detection on the read geometry is not.
type Document struct {
	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
	chain  *Chain
	pages  int
}

// Open opens path for table detection. The pdf library panics on some
// malformed files; that is reported as an error like any other open failure.
func Open(path string, chain *Chain) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if chain == nil {
		chain = NewChain(DefaultSettings())
	}
	return &Document{file: f, reader: r, chain: chain, pages: r.NumPage()}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int { return d.pages }

// Layout reads the glyph and ruling geometry of page n (1-based).
func (d *Document) Layout(n int) (layout PageLayout, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading page %d: pdf reader crashed: %v", n, r)
		}
	}()

	if n < 1 || n > d.pages {
		return PageLayout{}, fmt.Errorf("page %d out of range 1..%d", n, d.pages)
	}
	layout.Number = n

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return layout, nil
	}
	content := page.Content()
	layout.Glyphs = make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		layout.Glyphs = append(layout.Glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	layout.Rulings = make([]Ruling, 0, len(content.Rect))
	for _, r := range content.Rect {
		layout.Rulings = append(layout.Rulings, Ruling{
			MinX: min(r.Min.X, r.Max.X),
			MinY: min(r.Min.Y, r.Max.Y),
			MaxX: max(r.Min.X, r.Max.X),
			MaxY: max(r.Min.Y, r.Max.Y),
		})
	}
	return layout, nil
}

// PageTables reads page n and runs the chain over it.
func (d *Document) PageTables(n int) (PageTables, error) {
	layout, err := d.Layout(n)
	if err != nil {
		return PageTables{Page: n}, err
	}
	det := d.chain.Detect(layout)
	pt := PageTables{Page: n, Detection: det}
	if !det.Found() {
		pt.Text = layout.Text()
	}
	return pt, nil
}

// Close releases the file handle.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
