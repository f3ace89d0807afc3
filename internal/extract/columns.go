package extract

import (
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// ColumnRoleMap maps each role to at most one zero-based column index.
type ColumnRoleMap struct {
	idx [roleCount]int
}

func emptyRoleMap() ColumnRoleMap {
	var m ColumnRoleMap
	for i := range m.idx {
		m.idx[i] = -1
	}
	return m
}

// Index returns the column assigned to r.
func (m ColumnRoleMap) Index(r Role) (int, bool) {
	if r < 0 || r >= roleCount || m.idx[r] < 0 {
		return -1, false
	}
	return m.idx[r], true
}

// Has reports whether r is assigned.
func (m ColumnRoleMap) Has(r Role) bool {
	_, ok := m.Index(r)
	return ok
}

// Resolved reports whether both date and description are assigned.
func (m ColumnRoleMap) Resolved() bool {
	return m.Has(RoleDate) && m.Has(RoleDescription)
}

// MaxIndex returns the highest assigned column index, or -1 when nothing is assigned.
func (m ColumnRoleMap) MaxIndex() int {
	highest := -1
	for _, i := range m.idx {
		if i > highest {
			highest = i
		}
	}
	return highest
}

// AsMap renders the assignments for logs and reports.
func (m ColumnRoleMap) AsMap() map[string]int {
	out := make(map[string]int)
	for _, r := range Roles {
		if i, ok := m.Index(r); ok {
			out[r.String()] = i
		}
	}
	return out
}

func (m *ColumnRoleMap) set(r Role, i int) {
	if m.idx[r] < 0 {
		m.idx[r] = i
	}
}

// ClassifyColumns assigns roles to header columns by keyword. The first column
// matching a role wins; a column may take several roles. When date or
// description stays unassigned and the header has at least two columns,
// columns 0 and 1 are assumed and the rest are rescanned for amounts.
func ClassifyColumns(header domain.Row) ColumnRoleMap {
	m := emptyRoleMap()

	for i, cell := range header {
		if !cell.Present {
			continue
		}
		h := NormalizeCell(cell)
		if h == "" {
			continue
		}
		for _, r := range Roles {
			if m.Has(r) {
				continue
			}
			if columnKeywords[r].Matches(h) || (r == RoleDescription && isTransactionDetails(h)) {
				m.set(r, i)
			}
		}
	}

	if m.Resolved() || len(header) < 2 {
		return m
	}

	m.set(RoleDate, 0)
	m.set(RoleDescription, 1)
	for i := 2; i < len(header); i++ {
		h := NormalizeCell(header[i])
		if h == "" {
			continue
		}
		isDebit := columnKeywords[RoleDebit].Matches(h)
		isCredit := columnKeywords[RoleCredit].Matches(h)
		if !isDebit && !isCredit && !columnKeywords[RoleAmount].Matches(h) {
			continue
		}
		m.set(RoleAmount, i)
		if isDebit {
			m.set(RoleDebit, i)
		}
		if isCredit {
			m.set(RoleCredit, i)
		}
	}
	return m
}

func isTransactionDetails(h string) bool {
	return strings.Contains(h, "transaction") && strings.Contains(h, "detail")
}
