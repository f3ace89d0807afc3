package pdftable

import (
	"github.com/dvloznov/statement-extractor/internal/domain"
)

// Strategy names, in the order the default chain tries them.
const (
	StrategyDefault     = "default"
	StrategyLinesStrict = "lines_strict"
	StrategyText        = "text"
	StrategyExplicit    = "explicit"
)

// Settings tunes the geometric strategies. Distances are PDF points.
type Settings struct {
	// RowTolerance is how far apart two baselines may be and still share a row.
	RowTolerance float64
	// SegmentGap is the horizontal gap that splits text into separate cells.
	SegmentGap float64
	// LineThickness is the widest rectangle still treated as a ruled line.
	LineThickness float64
	// SnapTolerance merges ruling edges closer than this.
	SnapTolerance float64
	// MinGutter is the narrowest vertical whitespace band accepted as a column break.
	MinGutter float64
	// ExplicitColumns are caller-supplied column boundaries (x positions) for
	// layouts without rulings or clean alignment.
	ExplicitColumns []float64
}

// DefaultSettings returns tolerances that suit typical A4/Letter statements.
func DefaultSettings() Settings {
	return Settings{
		RowTolerance:  3,
		SegmentGap:    6,
		LineThickness: 2,
		SnapTolerance: 3,
		MinGutter:     3,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.RowTolerance <= 0 {
		s.RowTolerance = d.RowTolerance
	}
	if s.SegmentGap <= 0 {
		s.SegmentGap = d.SegmentGap
	}
	if s.LineThickness <= 0 {
		s.LineThickness = d.LineThickness
	}
	if s.SnapTolerance <= 0 {
		s.SnapTolerance = d.SnapTolerance
	}
	if s.MinGutter <= 0 {
		s.MinGutter = d.MinGutter
	}
	return s
}

// MinTableRows is the smallest usable table: a header and one data row.
const MinTableRows = 2

// Strategy finds candidate tables on a page. A strategy that finds nothing
// returns nil; it never fails.
type Strategy interface {
	Name() string
	Tables(p PageLayout) []domain.RawTable
}

// Detection is the outcome of running a chain over one page.
type Detection struct {
	Strategy string
	Tables   []domain.RawTable
	// Discarded counts tables dropped for having fewer than two rows.
	Discarded int
}

// Found reports whether any strategy produced a usable table.
func (d Detection) Found() bool { return len(d.Tables) > 0 }

// Chain tries strategies in order and stops at the first that yields a table
// with at least a header and one data row.
type Chain struct {
	strategies []Strategy
}

// NewChain builds the standard order: default, lines_strict, text, explicit.
func NewChain(s Settings) *Chain {
	s = s.withDefaults()
	return NewChainOf(
		latticeStrategy{name: StrategyDefault, settings: s, linesOnly: false},
		latticeStrategy{name: StrategyLinesStrict, settings: s, linesOnly: true},
		textStrategy{settings: s},
		explicitStrategy{settings: s},
	)
}

// NewChainOf builds a chain from arbitrary strategies.
func NewChainOf(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Names lists the strategies in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Detect runs the chain over a page.
func (c *Chain) Detect(p PageLayout) Detection {
	var discarded int
	for _, s := range c.strategies {
		var kept []domain.RawTable
		for _, t := range s.Tables(p) {
			if len(t) < MinTableRows {
				discarded++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) > 0 {
			return Detection{Strategy: s.Name(), Tables: kept, Discarded: discarded}
		}
	}
	return Detection{Discarded: discarded}
}
