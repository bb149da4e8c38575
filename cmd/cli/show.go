package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

type showCmd struct {
	limit  int
	asJSON bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display the accumulated statement" }
func (*showCmd) Usage() string {
	return `cli show [-limit <n>] [-json]

  Displays the header, the transactions (newest first) and the totals of the
  ledger.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 0, "show at most n transactions, 0 for all")
	f.BoolVar(&c.asJSON, "json", false, "print the statement as JSON")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, app, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	l, err := app.Ledger.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	stmt, ok := ledger.Project(l)
	if c.asJSON {
		var v interface{}
		if ok {
			v = stmt
		}
		if err := writeJSON(stdout, map[string]interface{}{"statement": v}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	if !ok {
		fmt.Fprintln(stdout, "Ledger is empty.")
		return subcommands.ExitSuccess
	}

	h := stmt.Header
	cur := h.Currency
	fmt.Fprintf(stdout, "Account:  %s (%s)\n", h.AccountNumber, currencyCode(cur))
	if h.Owner != "" {
		fmt.Fprintf(stdout, "Owner:    %s\n", h.Owner)
	}
	fmt.Fprintf(stdout, "Period:   %s - %s\n", h.PeriodFrom, h.PeriodTo)
	fmt.Fprintf(stdout, "Opening:  %s\n\n", formatMoney(decimal.NewFromFloat(h.OpeningBalance), cur))

	txs := stmt.Transactions
	if c.limit > 0 && len(txs) > c.limit {
		txs = txs[:c.limit]
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Date\tTime\tDocument\tAmount\t")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t %s\n", tx.Date, tx.Time, tx.Document, formatMoney(signedAmount(tx.Amount, tx.IsCredit), cur), tx.Description)
	}
	w.Flush()

	if len(txs) < len(stmt.Transactions) {
		fmt.Fprintf(stdout, "... %d more\n", len(stmt.Transactions)-len(txs))
	}
	fmt.Fprintf(stdout, "\nCredits:  %s\n", formatMoney(decimal.NewFromFloat(stmt.Footer.TotalCredits), cur))
	fmt.Fprintf(stdout, "Debits:   %s\n", formatMoney(decimal.NewFromFloat(stmt.Footer.TotalDebits), cur))
	fmt.Fprintf(stdout, "Closing:  %s\n", formatMoney(decimal.NewFromFloat(stmt.Footer.ClosingBalance), cur))
	return subcommands.ExitSuccess
}
