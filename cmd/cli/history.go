package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/history"
)

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list past uploads" }
func (*historyCmd) Usage() string {
	return `cli history [-limit <n>]

  Lists recorded uploads, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 20, "number of uploads to list")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, app, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	records, err := app.History.List(ctx, c.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No uploads recorded.")
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Uploaded\tFile\tPeriod\tIn file\tNew\tTotal")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s - %s\t%d\t%d\t%d\n",
			r.UploadedAt.Local().Format(history.DisplayTimeLayout), r.Filename,
			r.PeriodFrom, r.PeriodTo, r.TransactionsInFile, r.NewAdded, r.TotalInSystem)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
