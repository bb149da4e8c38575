package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

type tagsCmd struct {
	tag string
}

func (*tagsCmd) Name() string     { return "tags" }
func (*tagsCmd) Synopsis() string { return "list tagged transactions" }
func (*tagsCmd) Usage() string {
	return `cli tags [-tag <name>]

  Applies the TAG_RULES keyword rules to the ledger and lists the
  transactions that received a tag.
`
}

func (c *tagsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tag, "tag", "", "only list transactions with this tag")
}

func (c *tagsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	n := 0
	for _, t := range app.Tagger.Apply(ledger.Annotations(l)) {
		if len(t.Tags) == 0 || (c.tag != "" && !contains(t.Tags, c.tag)) {
			continue
		}
		n++
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", t.Document, strings.Join(t.Tags, ","), t.Description)
	}
	fmt.Fprintf(os.Stderr, "%d tagged transactions\n", n)
	return subcommands.ExitSuccess
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
