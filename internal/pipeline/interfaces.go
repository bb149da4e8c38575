package pipeline

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// StatementExtractor reads a statement snapshot from PDF bytes.
type StatementExtractor interface {
	Extract(ctx context.Context, data []byte) (*domain.BankStatement, error)
}

// LedgerUpdater runs a read-merge-write cycle on the persisted ledger.
type LedgerUpdater interface {
	Update(ctx context.Context, fn func(*ledger.Ledger) (*ledger.Ledger, error)) (*ledger.Ledger, error)
}

// HistoryRecorder stores upload records.
type HistoryRecorder interface {
	Add(ctx context.Context, rec history.Record) (history.Record, error)
}

// StorageService fetches and archives original statement files.
type StorageService interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) (string, error)
}
