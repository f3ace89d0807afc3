package extract

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

const minDescriptionLength = 3

type rawRow struct {
	Row  []*string `json:"row"`
	Page int       `json:"page"`
}

// AssembleRow turns one data row into a transaction, or reports why it was skipped.
func AssembleRow(row domain.Row, roles ColumnRoleMap, page int) (domain.ParsedTransaction, SkipReason, bool) {
	if len(row) <= roles.MaxIndex() {
		return domain.ParsedTransaction{}, SkipShortRow, false
	}

	dateIdx, _ := roles.Index(RoleDate)
	descIdx, _ := roles.Index(RoleDescription)
	descCell := cellAt(row, descIdx)

	date, ok := ParseDate(cellAt(row, dateIdx))
	if !ok {
		date, ok = FindDateIn(descCell.String())
		if !ok {
			return domain.ParsedTransaction{}, SkipNoDate, false
		}
	}

	desc := strings.TrimSpace(descCell.String())
	if utf8.RuneCountInString(desc) < minDescriptionLength {
		return domain.ParsedTransaction{}, SkipShortDescription, false
	}

	amount, direction, ok := ResolveAmount(row, roles, desc)
	if !ok {
		return domain.ParsedTransaction{}, SkipNoAmount, false
	}

	tx := domain.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Direction:   direction,
		RawRowData:  rawRowData(row, page),
	}
	if balIdx, ok := roles.Index(RoleBalance); ok {
		tx.BalanceAfter = ParseBalance(cellAt(row, balIdx))
	}
	return tx, "", true
}

func rawRowData(row domain.Row, page int) string {
	raw := rawRow{Row: make([]*string, len(row)), Page: page}
	for i, c := range row {
		if c.Present {
			v := c.Value
			raw.Row[i] = &v
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return string(b)
}
