package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// TableSource supplies the statement tables of a document.
type TableSource interface {
	Name() string
	Tables(ctx context.Context, data []byte, doc Document) ([][]Row, error)
}

// LayoutTableSource returns the tables reconstructed from the page layout.
type LayoutTableSource struct{}

func (LayoutTableSource) Name() string { return "layout" }

func (LayoutTableSource) Tables(_ context.Context, _ []byte, doc Document) ([][]Row, error) {
	var tables [][]Row
	for _, p := range doc.Pages() {
		tables = append(tables, p.Tables()...)
	}
	return tables, nil
}

// Extractor turns statement PDFs into BankStatement snapshots. It performs no
// writes.
type Extractor struct {
	open     Opener
	primary  TableSource
	fallback TableSource
	log      zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOpener replaces the PDF opener.
func WithOpener(open Opener) Option {
	return func(e *Extractor) { e.open = open }
}

// WithTableSource sets the primary table source.
func WithTableSource(src TableSource) Option {
	return func(e *Extractor) { e.primary = src }
}

// WithFallback sets a table source used when the primary one fails or yields
// no transactions.
func WithFallback(src TableSource) Option {
	return func(e *Extractor) { e.fallback = src }
}

// New creates an Extractor reading PDFs with the layout table source.
func New(log zerolog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		open:    OpenPDF,
		primary: LayoutTableSource{},
		log:     log.With().Str("component", "extractor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scanStats struct {
	rows    int
	skipped map[skipReason]int
}

// Extract reads one statement snapshot from PDF bytes. It fails only when the
// document cannot be read; bad rows and missing fields are skipped or
// defaulted.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*domain.BankStatement, error) {
	doc, err := e.open(data)
	if err != nil {
		return nil, fmt.Errorf("Extract: opening document: %w", err)
	}
	pages := doc.Pages()
	if len(pages) == 0 {
		return nil, fmt.Errorf("Extract: document has no pages: %w", ErrDocumentUnreadable)
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text())
	}
	fullText := strings.Join(texts, "\n")

	stmt := &domain.BankStatement{
		Header: ParseHeader(fullText),
		Footer: ParseFooter(fullText),
	}

	txs, stats, err := e.scanSource(ctx, e.primary, data, doc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Extract: %w", ctx.Err())
		}
		e.log.Warn().Err(err).Str("source", e.primary.Name()).Msg("Table source failed")
	}
	if len(txs) == 0 && e.fallback != nil {
		e.log.Info().Str("source", e.fallback.Name()).Msg("No transactions from primary table source, trying fallback")
		fbTxs, fbStats, fbErr := e.scanSource(ctx, e.fallback, data, doc)
		switch {
		case fbErr != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("Extract: %w", ctx.Err())
		case fbErr != nil:
			e.log.Warn().Err(fbErr).Str("source", e.fallback.Name()).Msg("Fallback table source failed")
		default:
			txs, stats = fbTxs, fbStats
		}
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	stmt.Transactions = txs

	e.logSummary(len(pages), stats, stmt)
	return stmt, nil
}

func (e *Extractor) scanSource(ctx context.Context, src TableSource, data []byte, doc Document) ([]domain.Transaction, scanStats, error) {
	stats := scanStats{skipped: make(map[skipReason]int)}
	tables, err := src.Tables(ctx, data, doc)
	if err != nil {
		return nil, stats, fmt.Errorf("scanSource: %s tables: %w", src.Name(), err)
	}

	var txs []domain.Transaction
	for _, table := range tables {
		for _, row := range table {
			stats.rows++
			res := parseRow(row)
			if !res.ok() {
				stats.skipped[res.skip]++
				e.log.Debug().Str("reason", string(res.skip)).Strs("row", row).Msg("Row skipped")
				continue
			}
			txs = append(txs, res.tx)
		}
	}
	return txs, stats, nil
}

func (e *Extractor) logSummary(pages int, stats scanStats, stmt *domain.BankStatement) {
	skipped := zerolog.Dict()
	for reason, n := range stats.skipped {
		skipped = skipped.Int(string(reason), n)
	}
	e.log.Info().
		Int("pages", pages).
		Int("rows", stats.rows).
		Dict("skipped", skipped).
		Int("transactions", len(stmt.Transactions)).
		Str("period_from", stmt.Header.PeriodFrom).
		Str("period_to", stmt.Header.PeriodTo).
		Msg("Statement extracted")

	credits, debits := ledger.SliceTotals(stmt.Transactions)
	footerCredits := decimal.NewFromFloat(stmt.Footer.TotalCredits).Round(2)
	footerDebits := decimal.NewFromFloat(stmt.Footer.TotalDebits).Round(2)
	if !credits.Equal(footerCredits) || !debits.Equal(footerDebits) {
		e.log.Debug().
			Str("rows_credits", credits.StringFixed(2)).
			Str("footer_credits", footerCredits.StringFixed(2)).
			Str("rows_debits", debits.StringFixed(2)).
			Str("footer_debits", footerDebits.StringFixed(2)).
			Msg("Footer totals differ from extracted rows")
	}
}
