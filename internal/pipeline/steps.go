package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename  string
	SourceURI string
	PDFBytes  []byte

	Statement *domain.BankStatement
	Ledger    *ledger.Ledger
	NewAdded  int
	Record    *history.Record
}

// ErrNoInput is returned when a state carries neither bytes nor a source URI.
var ErrNoInput = errors.New("no statement bytes or source URI")

// FetchStep downloads the PDF when only a source URI is known.
type FetchStep struct {
	Storage StorageService
}

func (s *FetchStep) Name() string { return "fetch" }

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.PDFBytes) > 0 {
		return nil
	}
	if state.SourceURI == "" || s.Storage == nil {
		return ErrNoInput
	}
	data, err := s.Storage.Fetch(ctx, state.SourceURI)
	if err != nil {
		return fmt.Errorf("FetchStep: %w", err)
	}
	state.PDFBytes = data
	return nil
}

// ArchiveStep keeps a copy of uploaded bytes. Archiving is best effort.
type ArchiveStep struct {
	Storage StorageService
	Now     func() time.Time
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Storage == nil || state.SourceURI != "" {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	name := now().UTC().Format("20060102T150405") + "_" + path.Base(state.Filename)

	uri, err := s.Storage.Put(ctx, name, state.PDFBytes)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("filename", state.Filename).Msg("Archiving statement failed")
		return nil
	}
	state.SourceURI = uri
	return nil
}

// ExtractStep parses the statement. It performs no writes.
type ExtractStep struct {
	Extractor StatementExtractor
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	stmt, err := s.Extractor.Extract(ctx, state.PDFBytes)
	if err != nil {
		return err
	}
	state.Statement = stmt
	return nil
}

// MergeStep folds the snapshot into the persisted ledger.
type MergeStep struct {
	Ledger LedgerUpdater
}

func (s *MergeStep) Name() string { return "merge" }

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Statement == nil {
		return fmt.Errorf("MergeStep: no statement to merge")
	}
	merged, err := s.Ledger.Update(ctx, func(current *ledger.Ledger) (*ledger.Ledger, error) {
		next, added := ledger.Merge(current, state.Statement)
		state.NewAdded = added
		return next, nil
	})
	if err != nil {
		return err
	}
	state.Ledger = merged
	return nil
}

// RecordHistoryStep stores the upload record. The ledger is already saved at
// this point, so a failure is logged and not returned.
type RecordHistoryStep struct {
	History HistoryRecorder
}

func (s *RecordHistoryStep) Name() string { return "record_history" }

func (s *RecordHistoryStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.History == nil {
		return nil
	}
	rec, err := s.History.Add(ctx, history.Record{
		Filename:           state.Filename,
		PeriodFrom:         state.Statement.Header.PeriodFrom,
		PeriodTo:           state.Statement.Header.PeriodTo,
		Owner:              state.Statement.Header.Owner,
		TransactionsInFile: len(state.Statement.Transactions),
		NewAdded:           state.NewAdded,
		TotalInSystem:      state.Ledger.Len(),
		SourceURI:          state.SourceURI,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("filename", state.Filename).Msg("Recording upload history failed")
		return nil
	}
	state.Record = &rec
	return nil
}

// InvalidateCacheStep drops cached views of the ledger.
type InvalidateCacheStep struct {
	Invalidate func()
}

func (s *InvalidateCacheStep) Name() string { return "invalidate_cache" }

func (s *InvalidateCacheStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Invalidate != nil {
		s.Invalidate()
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) not started: %w", i+1, step.Name(), err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
