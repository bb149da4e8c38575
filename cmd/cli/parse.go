package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/bootstrap"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

type parseCmd struct {
	file string
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "print the snapshot extracted from a statement PDF" }
func (*parseCmd) Usage() string {
	return `cli parse -file <path>

  Extracts header, transactions and footer from a local statement PDF and
  prints them as JSON. Nothing is written to the ledger.
`
}

func (c *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "statement PDF")
}

func (c *parseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}

	log := cliLogger()
	cfg := config.Load(log)
	ext, err := bootstrap.NewExtractor(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	stmt, err := ext.Extract(logger.WithContext(ctx, log), data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := writeJSON(stdout, stmt); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
