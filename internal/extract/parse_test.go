package extract

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Transaction\nDate ", "transaction date"},
		{"BALANCE\t(INR)", "balance (inr)"},
		{"Ｄｅｂｉｔ", "debit"}, // fullwidth
		{"Value   Date", "value date"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
	assert.Empty(t, NormalizeCell(domain.Absent()))
}

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 1, Day: 15}

	for _, s := range []string{"15-01-2024", "15/01/2024", "2024-01-15", "15-Jan-2024", "15 Jan 2024", "15-01-24", "15/01/24", " 15-01-2024 "} {
		got, ok := ParseDate(domain.Text(s))
		require.True(t, ok, "ParseDate(%q)", s)
		assert.Equal(t, want, got, "ParseDate(%q)", s)
	}
}

func TestParseDateTwoDigitYearIsAlwaysThisCentury(t *testing.T) {
	got, ok := ParseDate(domain.Text("01-02-99"))
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2099, Month: 2, Day: 1}, got)
}

func TestParseDateRegexFallbacks(t *testing.T) {
	tests := []struct {
		in   string
		want civil.Date
	}{
		{"05-03-2024 10:31", civil.Date{Year: 2024, Month: 3, Day: 5}},
		{"05/03/24 (value)", civil.Date{Year: 2024, Month: 3, Day: 5}},
		{"7 Feb 2024 09:00", civil.Date{Year: 2024, Month: 2, Day: 7}},
	}
	for _, tt := range tests {
		got, ok := ParseDate(domain.Text(tt.in))
		require.True(t, ok, "ParseDate(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseDate(%q)", tt.in)
	}
}

func TestParseDateUnparseable(t *testing.T) {
	for _, c := range []domain.Cell{domain.Absent(), domain.Text(""), domain.Text("Opening balance"), domain.Text("32-13-2024")} {
		_, ok := ParseDate(c)
		assert.False(t, ok, "ParseDate(%q)", c.String())
	}
}

func TestFindDateIn(t *testing.T) {
	got, ok := FindDateIn("UPI/REF 4411 on 12/03/2024 GROCERY")
	require.True(t, ok)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 12}, got)

	_, ok = FindDateIn("no date here")
	assert.False(t, ok)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"₹1,23,456.78", "123456.78"},
		{"Rs. 1,234", "1234"},
		{"Rs1,234.50", "1234.5"},
		{"INR 99.99", "99.99"},
		{"-500.00", "-500"},
		{"1,500.00 Cr", "1500"},
		{"  42 ", "42"},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(domain.Text(tt.in))
		require.True(t, ok, "ParseAmount(%q)", tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestParseAmountUnparseable(t *testing.T) {
	for _, s := range []string{"", "-", "--", "NIL", "nil", "0.00", "0", "₹0.00", "N/A", "Opening"} {
		_, ok := ParseAmount(domain.Text(s))
		assert.False(t, ok, "ParseAmount(%q)", s)
	}
	_, ok := ParseAmount(domain.Absent())
	assert.False(t, ok)
}

func TestParseBalance(t *testing.T) {
	b := ParseBalance(domain.Text("-1,200.00"))
	require.True(t, b.Valid)
	assert.True(t, decimal.NewFromInt(-1200).Equal(b.Decimal))

	assert.False(t, ParseBalance(domain.Text("--")).Valid)
}

func TestInferDirection(t *testing.T) {
	tests := []struct {
		desc   string
		signed string
		want   domain.Direction
	}{
		{"Salary credit via NEFT", "50000", domain.DirectionCredit},
		{"INTEREST PAID", "12.50", domain.DirectionCredit},
		{"Refund for order 881", "-300", domain.DirectionCredit},
		{"UPI payment to grocer", "250", domain.DirectionDebit},
		{"ATM WDL", "500", domain.DirectionDebit},
		{"Misc", "-75", domain.DirectionDebit},
		{"Misc", "75", domain.DirectionDebit},
	}
	for _, tt := range tests {
		got := InferDirection(tt.desc, decimal.RequireFromString(tt.signed))
		assert.Equal(t, tt.want, got, "InferDirection(%q, %s)", tt.desc, tt.signed)
	}
}

func TestResolveAmountDebitCreditColumns(t *testing.T) {
	roles := ClassifyColumns(domain.TextRow("Date", "Particulars", "Debit", "Credit", "Balance"))

	tests := []struct {
		name   string
		row    domain.Row
		amount string
		dir    domain.Direction
		ok     bool
	}{
		{"debit only", domain.TextRow("01-04-2024", "ATM WDL", "500.00", "", "9500.00"), "500", domain.DirectionDebit, true},
		{"credit only", domain.TextRow("02-04-2024", "SALARY", "", "50,000.00", "59500.00"), "50000", domain.DirectionCredit, true},
		{"both filled takes debit", domain.TextRow("03-04-2024", "ODD ROW", "100", "200", "1"), "100", domain.DirectionDebit, true},
		{"negative debit falls to credit", domain.TextRow("03-04-2024", "ODD ROW", "-100", "200", "1"), "200", domain.DirectionCredit, true},
		{"neither is skipped", domain.TextRow("04-04-2024", "OPENING", "", "-", "9500.00"), "0", domain.DirectionDebit, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, dir, ok := ResolveAmount(tt.row, roles, tt.row[1].String())
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(amount), "amount %s", amount)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestResolveAmountSingleColumn(t *testing.T) {
	roles := ClassifyColumns(domain.TextRow("Date", "Narration", "Amount"))

	amount, dir, ok := ResolveAmount(domain.TextRow("01-04-2024", "Salary credit via NEFT", "45,000.00"), roles, "Salary credit via NEFT")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(45000).Equal(amount))
	assert.Equal(t, domain.DirectionCredit, dir)

	amount, dir, ok = ResolveAmount(domain.TextRow("01-04-2024", "Misc", "-500.00"), roles, "Misc")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(500).Equal(amount), "magnitude is positive")
	assert.Equal(t, domain.DirectionDebit, dir)

	_, _, ok = ResolveAmount(domain.TextRow("01-04-2024", "Misc", "0.00", "120"), roles, "Misc")
	assert.False(t, ok, "zero in the amount column is not rescued by other columns")
}

func TestResolveAmountScansUnlabelledColumns(t *testing.T) {
	roles := ClassifyColumns(domain.TextRow("Date", "Narration", "Ref", "Sum"))
	require.False(t, roles.Has(RoleAmount))

	row := domain.TextRow("01-04-2024", "Refund 42", "-9", "1,250.00")
	amount, dir, ok := ResolveAmount(row, roles, "Refund 42")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1250).Equal(amount), "negative cells are passed over")
	assert.Equal(t, domain.DirectionCredit, dir)
}
