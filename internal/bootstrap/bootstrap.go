// Package bootstrap builds the service components from configuration. Both
// the API server and the CLI start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/extractor"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/tagging"
)

// archivePrefix is where uploaded statements are kept in the bucket.
const archivePrefix = "statements"

// Components are the shared building blocks of the binaries.
type Components struct {
	Config    *config.AppConfig
	Ledger    *store.Locked
	Archive   *store.Archive // nil unless a bucket is configured
	History   *history.Store
	Extractor *extractor.Extractor
	Tagger    *tagging.Tagger

	storageClient *storage.Client
	log           zerolog.Logger
}

// New opens the ledger store and the history database and builds the
// extractor. Close releases what New opened.
func New(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*Components, error) {
	c := &Components{
		Config: cfg,
		Tagger: NewTagger(cfg.TagRules),
		log:    log,
	}

	if cfg.GCSBucket != "" {
		client, err := store.NewStorageClient(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		c.storageClient = client
		c.Archive = store.NewArchive(client, cfg.GCSBucket, archivePrefix)
	}

	var inner store.LedgerStore
	switch cfg.LedgerBackend {
	case config.BackendGCS:
		if c.storageClient == nil {
			c.Close()
			return nil, fmt.Errorf("New: LEDGER_BACKEND=gcs requires GCS_BUCKET")
		}
		gcs := store.NewGCSStore(c.storageClient, cfg.GCSBucket, cfg.GCSLedgerObject)
		log.Info().Str("uri", gcs.URI()).Msg("Using GCS ledger store")
		inner = gcs
	default:
		fs := store.NewFileStore(cfg.LedgerPath)
		log.Info().Str("path", fs.Path()).Msg("Using file ledger store")
		inner = fs
	}
	c.Ledger = store.NewLocked(inner)

	hist, err := history.Open(cfg.HistoryDBPath, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	c.History = hist
	if err := hist.Migrate(); err != nil {
		c.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	ext, err := NewExtractor(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	c.Extractor = ext

	return c, nil
}

// NewExtractor builds the extractor for cfg.TableSource. With the gemini
// source the layout reconstruction stays as fallback.
func NewExtractor(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*extractor.Extractor, error) {
	if cfg.TableSource != config.TableSourceGemini {
		return extractor.New(log), nil
	}

	gemini, err := extractor.NewGeminiTableSource(ctx, cfg.GeminiModel, log)
	if err != nil {
		return nil, fmt.Errorf("NewExtractor: %w", err)
	}
	return extractor.New(log,
		extractor.WithTableSource(gemini),
		extractor.WithFallback(extractor.LayoutTableSource{}),
	), nil
}

// NewTagger returns a tagger for the TAG_RULES value, or the default rules
// when it is empty.
func NewTagger(rules string) *tagging.Tagger {
	parsed := tagging.ParseRules(rules)
	if len(parsed) == 0 {
		parsed = tagging.DefaultRules()
	}
	return tagging.New(parsed)
}

// Service wires the ingestion pipeline. invalidate may be nil.
func (c *Components) Service(invalidate func()) *pipeline.Service {
	deps := pipeline.Deps{
		Extractor:  c.Extractor,
		Ledger:     c.Ledger,
		Invalidate: invalidate,
	}
	if c.History != nil {
		deps.History = c.History
	}
	if c.Archive != nil {
		deps.Storage = c.Archive
	}
	return pipeline.NewService(deps, c.log)
}

// Close releases the history database and the storage client.
func (c *Components) Close() error {
	var errs []error
	if c.History != nil {
		errs = append(errs, c.History.Close())
	}
	if c.storageClient != nil {
		errs = append(errs, c.storageClient.Close())
	}
	return errors.Join(errs...)
}
