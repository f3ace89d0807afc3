// Package export renders extracted transactions as CSV, XLSX or JSON, and
// formats amounts for display.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/Rhymond/go-money"
	bq "github.com/dvloznov/statement-extractor/internal/bigquery"
	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat maps a user-supplied name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want csv, xlsx or json)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Record is one exported transaction.
type Record struct {
	Date         string           `csv:"date" json:"date"`
	Description  string           `csv:"description" json:"description"`
	Amount       decimal.Decimal  `csv:"-" json:"amount"`
	AmountText   string           `csv:"amount" json:"-"`
	Direction    string           `csv:"direction" json:"direction"`
	BalanceAfter *decimal.Decimal `csv:"-" json:"balance_after"`
	BalanceText  string           `csv:"balance_after" json:"-"`
	Currency     string           `csv:"currency" json:"currency"`
	Category     string           `csv:"category" json:"category"`
}

func newRecord(date, description string, amount decimal.Decimal, direction string, balance *decimal.Decimal, currency, category string) Record {
	r := Record{
		Date:         date,
		Description:  description,
		Amount:       amount,
		AmountText:   amount.StringFixed(2),
		Direction:    direction,
		BalanceAfter: balance,
		Currency:     currency,
		Category:     category,
	}
	if balance != nil {
		r.BalanceText = balance.StringFixed(2)
	}
	return r
}

// FromTransactions converts extracted transactions, stamping currency and
// category.
func FromTransactions(txs []domain.ParsedTransaction, currency, category string) []Record {
	out := make([]Record, 0, len(txs))
	for _, tx := range txs {
		var balance *decimal.Decimal
		if tx.BalanceAfter.Valid {
			b := tx.BalanceAfter.Decimal
			balance = &b
		}
		out = append(out, newRecord(tx.Date.String(), tx.Description, tx.Amount, string(tx.Direction), balance, currency, category))
	}
	return out
}

// FromRows converts persisted rows.
func FromRows(rows []*bq.TransactionRow) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		var balance *decimal.Decimal
		if r.BalanceAfter != nil {
			b := ratToDecimal(r.BalanceAfter)
			balance = &b
		}
		out = append(out, newRecord(r.TransactionDate.String(), r.Description, ratToDecimal(r.Amount), r.Direction, balance, r.Currency, r.Category))
	}
	return out
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(4))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Write encodes records to w in the given format.
func Write(w io.Writer, f Format, records []Record) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}

const sheetName = "Transactions"

var xlsxHeader = []interface{}{"Date", "Description", "Amount", "Direction", "Balance", "Currency", "Category"}

// WriteXLSX writes a single-sheet workbook with numeric amount columns.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("WriteXLSX: naming sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("WriteXLSX: header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
		var balance interface{}
		if r.BalanceAfter != nil {
			balance = r.BalanceAfter.InexactFloat64()
		}
		row := []interface{}{r.Date, r.Description, r.Amount.InexactFloat64(), r.Direction, balance, r.Currency, r.Category}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i+1, err)
		}
	}

	// 4 is the built-in "#,##0.00" format.
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("WriteXLSX: style: %w", err)
	}
	for _, col := range []string{"C", "E"} {
		if err := f.SetColStyle(sheetName, col, style); err != nil {
			return fmt.Errorf("WriteXLSX: column style: %w", err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "B", 48); err != nil {
		return fmt.Errorf("WriteXLSX: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

// FormatAmount renders d in currency's display format, e.g. "£1,234.50".
// Unknown currency codes fall back to the plain decimal with the code.
func FormatAmount(d decimal.Decimal, currency string) string {
	c := money.GetCurrency(currency)
	if c == nil {
		return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
	}
	minor := d.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, c.Code).Display()
}
