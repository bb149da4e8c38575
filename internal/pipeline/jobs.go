package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/extractor"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// HandleJob runs an ingestion job taken from the queue and stores its result
// on the job. Errors that a retry cannot fix are marked permanent.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	ingestJob, ok := job.(*jobs.IngestStatementJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("HandleJob: unexpected job type: %T", job))
	}

	if len(ingestJob.PDFBytes) == 0 && ingestJob.SourceURI == "" {
		return jobs.Permanent(fmt.Errorf("HandleJob: job %s: %w", ingestJob.JobID, ErrNoInput))
	}

	state := &PipelineState{
		Filename:  ingestJob.Filename,
		PDFBytes:  ingestJob.PDFBytes,
		SourceURI: ingestJob.SourceURI,
	}
	res, err := s.run(ctx, state)

	// Retries reuse the archived copy instead of uploading the file again.
	if state.SourceURI != "" {
		ingestJob.SourceURI = state.SourceURI
	}
	if err != nil {
		if errors.Is(err, extractor.ErrDocumentUnreadable) || errors.Is(err, ledger.ErrMalformedLedger) {
			return jobs.Permanent(err)
		}
		return err
	}

	ingestJob.Result = &jobs.IngestResult{
		TransactionsInFile: res.TransactionsInFile,
		NewAdded:           res.NewAdded,
		TotalInSystem:      res.TotalInSystem,
		HistoryID:          res.HistoryID,
		Message:            res.Message,
	}
	return nil
}
