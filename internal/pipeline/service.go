package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Deps are the collaborators of the ingestion service. History and Storage
// are optional and must be left nil, not typed nil, when unused.
type Deps struct {
	Extractor  StatementExtractor
	Ledger     LedgerUpdater
	History    HistoryRecorder
	Storage    StorageService
	Invalidate func()
}

// Result summarizes one ingestion.
type Result struct {
	Filename           string `json:"filename"`
	SourceURI          string `json:"source_uri,omitempty"`
	PeriodFrom         string `json:"period_from"`
	PeriodTo           string `json:"period_to"`
	TransactionsInFile int    `json:"transactions_in_file"`
	NewAdded           int    `json:"new_added"`
	TotalInSystem      int    `json:"total_in_system"`
	HistoryID          string `json:"history_id,omitempty"`
	Message            string `json:"message"`
}

// Message is the user-facing summary of an ingestion.
func Message(newAdded, total int) string {
	if newAdded > 0 {
		return fmt.Sprintf("Добавлено %d новых операций (всего: %d)", newAdded, total)
	}
	return fmt.Sprintf("Новых операций не найдено. Все %d уже загружены.", total)
}

// Service ingests statements: extract, then merge into the ledger under the
// store lock, then record history and drop cached views. A failed extraction
// leaves the ledger untouched.
type Service struct {
	pipeline *Pipeline
	log      zerolog.Logger
}

// NewService wires the standard ingestion pipeline.
func NewService(deps Deps, log zerolog.Logger) *Service {
	steps := []PipelineStep{&FetchStep{Storage: deps.Storage}}
	if deps.Storage != nil {
		steps = append(steps, &ArchiveStep{Storage: deps.Storage})
	}
	steps = append(steps,
		&ExtractStep{Extractor: deps.Extractor},
		&MergeStep{Ledger: deps.Ledger},
		&RecordHistoryStep{History: deps.History},
		&InvalidateCacheStep{Invalidate: deps.Invalidate},
	)
	return &Service{
		pipeline: NewPipeline(steps...),
		log:      log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes statement bytes uploaded as filename.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*Result, error) {
	return s.run(ctx, &PipelineState{Filename: filename, PDFBytes: data})
}

// IngestURI processes a statement stored at a gs:// URI.
func (s *Service) IngestURI(ctx context.Context, filename, uri string) (*Result, error) {
	return s.run(ctx, &PipelineState{Filename: filename, SourceURI: uri})
}

func (s *Service) run(ctx context.Context, state *PipelineState) (*Result, error) {
	log := s.log.With().Str("filename", state.Filename).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := s.pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Statement ingestion failed")
		return nil, fmt.Errorf("Ingest: %s: %w", state.Filename, err)
	}

	res := &Result{
		Filename:           state.Filename,
		SourceURI:          state.SourceURI,
		PeriodFrom:         state.Statement.Header.PeriodFrom,
		PeriodTo:           state.Statement.Header.PeriodTo,
		TransactionsInFile: len(state.Statement.Transactions),
		NewAdded:           state.NewAdded,
		TotalInSystem:      state.Ledger.Len(),
	}
	if state.Record != nil {
		res.HistoryID = state.Record.ID
	}
	res.Message = Message(res.NewAdded, res.TotalInSystem)

	log.Info().
		Int("transactions_in_file", res.TransactionsInFile).
		Int("new_added", res.NewAdded).
		Int("total_in_system", res.TotalInSystem).
		Msg("Statement ingested")
	return res, nil
}
