// Command migrate applies schema migrations to the upload history database
// or to the BigQuery export dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-ledger/internal/config"
	bqexport "github.com/dvloznov/statement-ledger/internal/export/bigquery"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Migration targets.
const (
	targetHistory  = "history"
	targetBigQuery = "bigquery"
)

type options struct {
	target    string
	project   string
	dataset   string
	table     string
	appliedBy string
	print     bool
}

func parseFlags(args []string, cfg *config.AppConfig) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	opts := options{}
	fs.StringVar(&opts.target, "target", targetHistory, "what to migrate: history or bigquery")
	fs.StringVar(&opts.project, "project", cfg.BigQueryProject, "GCP project ID (bigquery target)")
	fs.StringVar(&opts.dataset, "dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	fs.StringVar(&opts.table, "table", cfg.BigQueryTable, "BigQuery ledger table")
	fs.StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "name of the tool applying migrations")
	fs.BoolVar(&opts.print, "print", false, "print the bigquery migrations instead of applying them")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.target {
	case targetHistory:
	case targetBigQuery:
		if opts.project == "" && !opts.print {
			return opts, fmt.Errorf("-project or BIGQUERY_PROJECT is required for the bigquery target")
		}
	default:
		return opts, fmt.Errorf("unknown target %q, want %s or %s", opts.target, targetHistory, targetBigQuery)
	}
	return opts, nil
}

func (o options) placeholders() bqexport.Placeholders {
	return bqexport.Placeholders{Project: o.project, Dataset: o.dataset, Table: o.table}
}

func main() {
	log := logger.New()
	cfg := config.Load(log)

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	ctx := logger.WithContext(context.Background(), log)
	if err := run(ctx, opts, cfg, os.Stdout, log); err != nil {
		log.Fatal().Err(err).Str("target", opts.target).Msg("Migration failed")
	}
}

func run(ctx context.Context, opts options, cfg *config.AppConfig, out io.Writer, log zerolog.Logger) error {
	if opts.target == targetHistory {
		return migrateHistory(cfg.HistoryDBPath, log)
	}

	migrations, err := bqexport.EmbeddedMigrations(opts.placeholders())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	if opts.print {
		for _, m := range migrations {
			fmt.Fprintf(out, "-- %s (sha256 %s)\n%s\n\n", m.Filename, m.Checksum, m.SQL)
		}
		return nil
	}

	var clientOpts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, opts.project, clientOpts...)
	if err != nil {
		return fmt.Errorf("run: creating BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", opts.project).Str("dataset", opts.dataset).Msg("Connected to BigQuery")

	n, err := bqexport.NewMigrator(client, opts.project, opts.dataset, opts.appliedBy, log).Up(ctx, migrations)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if n > 0 {
		log.Info().Int("applied", n).Msg("Successfully applied migrations")
	}
	return nil
}

func migrateHistory(path string, log zerolog.Logger) error {
	store, err := history.Open(path, log)
	if err != nil {
		return fmt.Errorf("migrateHistory: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrateHistory: %w", err)
	}
	log.Info().Str("path", path).Msg("History database is up to date")
	return nil
}
