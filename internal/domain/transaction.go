package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction is whether a transaction increases (credit) or decreases (debit)
// the account holder's balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// ParseDirection maps a free-form direction string onto a Direction.
// The second return value is false when s is neither "credit" nor "debit".
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionCredit:
		return DirectionCredit, true
	case DirectionDebit:
		return DirectionDebit, true
	}
	return DirectionDebit, false
}

// Cell is one table cell: either text or absent.
type Cell struct {
	Value   string
	Present bool
}

// Text returns a present cell holding s.
func Text(s string) Cell { return Cell{Value: s, Present: true} }

// Absent returns an empty cell.
func Absent() Cell { return Cell{} }

// String returns the cell text, or "" for an absent cell.
func (c Cell) String() string {
	if !c.Present {
		return ""
	}
	return c.Value
}

// Row is an ordered sequence of cells.
type Row []Cell

// RawTable is a detected table: ordered rows of ordered cells. The first row
// is treated as the header.
type RawTable []Row

// TextRow builds a row from plain strings; "" becomes an absent cell.
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		if v == "" {
			row[i] = Absent()
			continue
		}
		row[i] = Text(v)
	}
	return row
}

// ParsedTransaction is one recognised statement line.
// Amount is always a positive magnitude; Direction carries the sign.
type ParsedTransaction struct {
	Date         civil.Date
	Description  string
	Amount       decimal.Decimal
	Direction    Direction
	BalanceAfter decimal.NullDecimal
	RawRowData   string
}
