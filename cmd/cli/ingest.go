package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
)

type ingestCmd struct {
	file    string
	timeout time.Duration
	asJSON  bool
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "merge a statement PDF into the ledger" }
func (*ingestCmd) Usage() string {
	return `cli ingest -file <path | gs://bucket/object> [-json]

  Extracts the statement and merges its transactions into the ledger.
  Transactions already present (same document number) are skipped, so
  ingesting the same file twice adds nothing.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "statement PDF, local path or gs:// URI")
	f.DurationVar(&c.timeout, "timeout", 5*time.Minute, "overall timeout")
	f.BoolVar(&c.asJSON, "json", false, "print the result as JSON")
}

func (c *ingestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		return subcommands.ExitUsageError
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, app, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	svc := app.Service(nil)

	var res *pipeline.Result
	if store.IsURI(c.file) {
		if app.Archive == nil {
			fmt.Fprintln(os.Stderr, "reading gs:// URIs requires GCS_BUCKET")
			return subcommands.ExitFailure
		}
		res, err = svc.IngestURI(ctx, store.BaseName(c.file), c.file)
	} else {
		var data []byte
		data, err = os.ReadFile(c.file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", c.file, err)
			return subcommands.ExitFailure
		}
		res, err = svc.Ingest(ctx, filepath.Base(c.file), data)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		if err := writeJSON(stdout, res); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "%s: %s\n", res.Filename, res.Message)
	return subcommands.ExitSuccess
}
