package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTransactionRows(t *testing.T) {
	now := time.Date(2024, 4, 3, 12, 0, 0, 0, time.UTC)
	txs := []domain.ParsedTransaction{
		{
			Date:         civil.Date{Year: 2024, Month: 4, Day: 1},
			Description:  "ATM WDL",
			Amount:       decimal.RequireFromString("500.00"),
			Direction:    domain.DirectionDebit,
			BalanceAfter: decimal.NewNullDecimal(decimal.RequireFromString("9500.00")),
			RawRowData:   `{"page":1}`,
		},
		{
			Date:        civil.Date{Year: 2024, Month: 4, Day: 2},
			Description: "SALARY CREDIT",
			Amount:      decimal.RequireFromString("50000.25"),
			Direction:   domain.DirectionCredit,
		},
	}

	rows := ToTransactionRows("doc-1", "run-1", txs, RowDefaults{Currency: "INR", Category: "Uncategorized", Strategy: "heuristic"}, now)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.NotEmpty(t, first.TransactionID)
	assert.Equal(t, "doc-1", first.DocumentID)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 1}, first.TransactionDate)
	assert.Equal(t, "debit", first.Direction)
	assert.Equal(t, 0, first.Amount.Cmp(big.NewRat(500, 1)))
	require.NotNil(t, first.BalanceAfter)
	assert.Equal(t, 0, first.BalanceAfter.Cmp(big.NewRat(9500, 1)))
	assert.Equal(t, "INR", first.Currency)
	assert.Equal(t, "Uncategorized", first.Category)
	assert.Equal(t, "heuristic", first.Strategy)
	assert.Equal(t, int64(1), first.StatementLineNo)
	assert.True(t, first.RawRowData.Valid)
	assert.Equal(t, `{"page":1}`, first.RawRowData.JSONVal)
	assert.Equal(t, now, first.CreatedTS)

	second := rows[1]
	assert.Equal(t, "credit", second.Direction)
	assert.Equal(t, 0, second.Amount.Cmp(big.NewRat(5000025, 100)))
	assert.Nil(t, second.BalanceAfter)
	assert.False(t, second.RawRowData.Valid)
	assert.Equal(t, int64(2), second.StatementLineNo)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)
}

func TestToTransactionRowsEmpty(t *testing.T) {
	rows := ToTransactionRows("doc-1", "run-1", nil, RowDefaults{}, time.Now())
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
