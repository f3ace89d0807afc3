package extract

import (
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/shopspring/decimal"
)

// InferDirection guesses the direction of a single-column amount from its
// description. Credit keywords are checked first, so "salary credit via neft"
// is a credit. With no keyword hit a negative amount is a debit, and so is
// everything else.
func InferDirection(description string, signed decimal.Decimal) domain.Direction {
	d := Normalize(description)
	if creditIndicator.Matches(d) {
		return domain.DirectionCredit
	}
	if debitIndicator.Matches(d) {
		return domain.DirectionDebit
	}
	if signed.IsNegative() {
		return domain.DirectionDebit
	}
	return domain.DirectionDebit
}

// ResolveAmount finds the transaction amount and direction for a data row.
// Explicit debit/credit columns win over a single amount column. Only when
// neither is classified are the remaining columns scanned for the first
// positive number. The returned amount is always positive.
func ResolveAmount(row domain.Row, roles ColumnRoleMap, description string) (decimal.Decimal, domain.Direction, bool) {
	debitIdx, hasDebit := roles.Index(RoleDebit)
	creditIdx, hasCredit := roles.Index(RoleCredit)
	amountIdx, hasAmount := roles.Index(RoleAmount)

	switch {
	case hasDebit && hasCredit:
		if v, ok := ParseAmount(cellAt(row, debitIdx)); ok && v.IsPositive() {
			return v, domain.DirectionDebit, true
		}
		if v, ok := ParseAmount(cellAt(row, creditIdx)); ok && v.IsPositive() {
			return v, domain.DirectionCredit, true
		}
		return decimal.Zero, domain.DirectionDebit, false
	case hasAmount:
		if v, ok := ParseAmount(cellAt(row, amountIdx)); ok {
			return v.Abs(), InferDirection(description, v), true
		}
		return decimal.Zero, domain.DirectionDebit, false
	}

	dateIdx, _ := roles.Index(RoleDate)
	descIdx, _ := roles.Index(RoleDescription)
	for i, cell := range row {
		if i == dateIdx || i == descIdx {
			continue
		}
		if v, ok := ParseAmount(cell); ok && v.IsPositive() {
			return v, InferDirection(description, v), true
		}
	}
	return decimal.Zero, domain.DirectionDebit, false
}

func cellAt(row domain.Row, i int) domain.Cell {
	if i < 0 || i >= len(row) {
		return domain.Absent()
	}
	return row[i]
}
