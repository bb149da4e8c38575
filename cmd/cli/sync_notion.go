package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/notionsync"
)

type syncNotionCmd struct {
	dryRun bool
	prune  bool
}

func (*syncNotionCmd) Name() string     { return "sync-notion" }
func (*syncNotionCmd) Synopsis() string { return "mirror the ledger into a Notion database" }
func (*syncNotionCmd) Usage() string {
	return `cli sync-notion [-dry-run] [-prune]

  Creates a Notion page for every ledger transaction not yet in the
  NOTION_DB_ID database and refreshes tags on existing pages.
`
}

func (c *syncNotionCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "log planned changes without writing to Notion")
	f.BoolVar(&c.prune, "prune", false, "archive pages whose document is not in the ledger")
}

func (c *syncNotionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, app, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	cfg := app.Config
	if cfg.NotionToken == "" || cfg.NotionDBID == "" {
		fmt.Fprintln(os.Stderr, "NOTION_TOKEN and NOTION_DB_ID are required")
		return subcommands.ExitUsageError
	}

	l, err := app.Ledger.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	syncer := notionsync.NewSyncer(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDBID, app.Tagger)
	stats, err := syncer.Sync(ctx, l, notionsync.Options{DryRun: c.dryRun, Prune: c.prune})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(stdout, "created %d, updated %d, unchanged %d, archived %d, failed %d\n",
		stats.Created, stats.Updated, stats.Unchanged, stats.Archived, stats.Failed)
	if stats.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
