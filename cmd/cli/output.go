package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-extractor/internal/export"
	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

const maxDescriptionWidth = 48

func printTransactions(w io.Writer, records []export.Record) {
	credit := color.New(color.FgGreen).SprintFunc()
	debit := color.New(color.FgRed).SprintFunc()
	header := color.New(color.FgCyan, color.Bold).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", header("DATE"), header("DESCRIPTION"), header("AMOUNT"), header("BALANCE"))

	var in, out decimal.Decimal
	for _, r := range records {
		amount := export.FormatAmount(r.Amount, r.Currency)
		if r.Direction == "credit" {
			in = in.Add(r.Amount)
			amount = credit("+" + amount)
		} else {
			out = out.Add(r.Amount)
			amount = debit("-" + amount)
		}
		balance := "-"
		if r.BalanceAfter != nil {
			balance = export.FormatAmount(*r.BalanceAfter, r.Currency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Date, truncate(r.Description, maxDescriptionWidth), amount, balance)
	}
	tw.Flush()

	currency := ""
	if len(records) > 0 {
		currency = records[0].Currency
	}
	fmt.Fprintf(w, "\n%d transactions, in %s, out %s\n",
		len(records), export.FormatAmount(in, currency), export.FormatAmount(out, currency))
}

func printReport(w io.Writer, report *extract.Report) {
	bold := color.New(color.Bold).SprintFunc()
	good := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold("File:"), report.Path)
	if info := report.Info; info != nil {
		fmt.Fprintf(w, "%s PDF %s, %d pages", bold("Container:"), info.Version, info.PageCount)
		if info.Producer != "" {
			fmt.Fprintf(w, ", produced by %s", info.Producer)
		}
		if info.Encrypted {
			fmt.Fprint(w, ", encrypted")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	for _, page := range report.Pages {
		state := string(page.State)
		if page.State == extract.PageRowsProcessed {
			state = good(state)
		} else {
			state = warn(state)
		}
		fmt.Fprintf(w, "Page %d: %s", page.Page, state)
		if page.Strategy != "" {
			fmt.Fprintf(w, " (strategy %s)", page.Strategy)
		}
		fmt.Fprintln(w)

		if page.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", page.Error)
		}
		for _, t := range page.Tables {
			status := "rejected"
			if t.Accepted {
				status = "accepted"
			}
			fmt.Fprintf(w, "  table %d: %d rows, %s, %d transactions", t.Index, t.Rows, status, t.Emitted)
			if len(t.Skipped) > 0 {
				fmt.Fprintf(w, ", skipped %s", formatSkipped(t.Skipped))
			}
			fmt.Fprintln(w)
			if len(t.Header) > 0 {
				fmt.Fprintf(w, "    header: %s\n", strings.Join(t.Header, " | "))
			}
		}
		if page.TextSample != "" {
			fmt.Fprintf(w, "  text: %q\n", truncate(page.TextSample, 120))
		}
	}

	fmt.Fprintf(w, "\n%s %s\n", bold("Summary:"), report.Summary())
}

func formatSkipped(skipped map[extract.SkipReason]int) string {
	parts := make([]string, 0, len(skipped))
	for reason, n := range skipped {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
