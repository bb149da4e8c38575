// Command cli manages the statement ledger from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&ingestCmd{}, "ledger")
	commander.Register(&showCmd{}, "ledger")
	commander.Register(&historyCmd{}, "ledger")
	commander.Register(&tagsCmd{}, "ledger")
	commander.Register(&parseCmd{}, "debug")
	commander.Register(&exportBQCmd{}, "export")
	commander.Register(&syncNotionCmd{}, "export")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
