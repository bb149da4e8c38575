// Package notionsync mirrors the ledger into a Notion database, one page per
// transaction keyed by its document number.
package notionsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// PageSize is the number of pages requested per database query.
const PageSize = 100

// Options control a sync run.
type Options struct {
	// DryRun logs the planned changes without calling Notion.
	DryRun bool
	// Prune archives pages whose document is not in the ledger.
	Prune bool
}

// Stats counts what a sync did.
type Stats struct {
	Created   int
	Updated   int
	Unchanged int
	Archived  int
	Failed    int
}

// Syncer pushes ledger transactions to a Notion database.
type Syncer struct {
	client     NotionService
	databaseID string
	tagger     Tagger
}

// NewSyncer creates a syncer. tagger may be nil, in which case pages carry
// no tags.
func NewSyncer(client NotionService, databaseID string, tagger Tagger) *Syncer {
	return &Syncer{
		client:     client,
		databaseID: databaseID,
		tagger:     tagger,
	}
}

// Sync creates a page for every ledger transaction missing from the database
// and refreshes tags on existing pages when they changed. Transactions are
// immutable once recorded, so other properties are never rewritten. Per-page
// failures are counted and logged; only a failed database listing aborts.
func (s *Syncer) Sync(ctx context.Context, l *ledger.Ledger, opts Options) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	log.Info().
		Int("transactions", l.Len()).
		Bool("dry_run", opts.DryRun).
		Bool("prune", opts.Prune).
		Msg("Starting ledger sync to Notion")

	pages, err := queryAllNotionPages(ctx, s.client, s.databaseID)
	if err != nil {
		return stats, fmt.Errorf("Sync: querying Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if doc := extractDocument(page); doc != "" {
			existing[doc] = page
		}
	}

	var header domain.StatementHeader
	if l != nil && l.Header != nil {
		header = *l.Header
	}

	for _, tx := range sortedTransactions(l) {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("Sync: %w", err)
		}

		tags := s.tags(tx)
		page, found := existing[tx.Document]

		switch {
		case !found:
			if opts.DryRun {
				log.Info().Str("document", tx.Document).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
				continue
			}
			created, err := s.client.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx, header, tags))
			if err != nil {
				log.Warn().Err(err).Str("document", tx.Document).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			log.Debug().Str("document", tx.Document).Str("page_id", string(created.ID)).Msg("Created Notion page")
			stats.Created++

		case !sameTags(extractTags(page), tags):
			if opts.DryRun {
				log.Info().Str("document", tx.Document).Strs("tags", tags).Msg("[DRY RUN] Would update Notion page tags")
				stats.Updated++
				continue
			}
			if _, err := s.client.UpdatePage(ctx, string(page.ID), TagsToNotionProperties(tags)); err != nil {
				log.Warn().Err(err).Str("document", tx.Document).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++

		default:
			stats.Unchanged++
		}
	}

	if opts.Prune {
		s.prune(ctx, l, pages, opts.DryRun, &stats)
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("unchanged", stats.Unchanged).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Ledger sync completed")
	return stats, nil
}

// prune archives pages without a document or whose document is unknown.
func (s *Syncer) prune(ctx context.Context, l *ledger.Ledger, pages []notionapi.Page, dryRun bool, stats *Stats) {
	log := logger.FromContext(ctx)

	for _, page := range pages {
		doc := extractDocument(page)
		if doc != "" && l != nil {
			if _, ok := l.Transactions[doc]; ok {
				continue
			}
		}

		if dryRun {
			log.Info().Str("document", doc).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := s.client.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("document", doc).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}
}

func (s *Syncer) tags(tx domain.Transaction) []string {
	if s.tagger == nil {
		return []string{}
	}
	return s.tagger.Tags(ledger.Annotation{
		Document:    tx.Document,
		Description: tx.Description,
		IsCredit:    tx.IsCredit,
	})
}

// sortedTransactions returns the ledger transactions ordered by document so
// runs are reproducible.
func sortedTransactions(l *ledger.Ledger) []domain.Transaction {
	if l == nil {
		return nil
	}
	txs := make([]domain.Transaction, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Document < txs[j].Document })
	return txs
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: PageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
