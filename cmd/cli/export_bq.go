package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/export/bigquery"
)

type exportBQCmd struct {
	project string
	dataset string
	table   string
	dryRun  bool
}

func (*exportBQCmd) Name() string     { return "export-bq" }
func (*exportBQCmd) Synopsis() string { return "export ledger transactions to BigQuery" }
func (*exportBQCmd) Usage() string {
	return `cli export-bq [-project <id>] [-dataset <name>] [-table <name>] [-dry-run]

  Streams every ledger transaction into the BigQuery table. Rows carry the
  document number as insert ID, so re-exporting the same ledger does not
  duplicate rows. Run "migrate -target bigquery" first to create the table.
`
}

func (c *exportBQCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "GCP project (default BIGQUERY_PROJECT)")
	f.StringVar(&c.dataset, "dataset", "", "dataset (default BIGQUERY_DATASET)")
	f.StringVar(&c.table, "table", "", "table (default BIGQUERY_TABLE)")
	f.BoolVar(&c.dryRun, "dry-run", false, "build the rows without inserting them")
}

func (c *exportBQCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, app, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	cfg := app.Config
	project := firstNonEmpty(c.project, cfg.BigQueryProject)
	dataset := firstNonEmpty(c.dataset, cfg.BigQueryDataset)
	table := firstNonEmpty(c.table, cfg.BigQueryTable)
	if project == "" {
		fmt.Fprintln(os.Stderr, "-project or BIGQUERY_PROJECT is required")
		return subcommands.ExitUsageError
	}

	l, err := app.Ledger.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	rows, err := bigquery.RowsFromLedger(l, app.Tagger, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.dryRun {
		fmt.Fprintf(stdout, "%d rows ready for %s.%s.%s\n", len(rows), project, dataset, table)
		return subcommands.ExitSuccess
	}

	exp, err := bigquery.NewExporter(ctx, project, dataset, table, cfg.GoogleCredentialsFile, cliLogger())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer exp.Close()

	n, err := exp.Export(ctx, rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exported %d of %d rows: %v\n", n, len(rows), err)
		return subcommands.ExitFailure
	}
	docs, err := exp.CountDocuments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "counting documents: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Exported %d rows, table holds %d documents\n", n, docs)
	return subcommands.ExitSuccess
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
