package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Locked serializes access to a store within the process so that a
// read-merge-write cycle never interleaves with another.
type Locked struct {
	mu    sync.Mutex
	inner LedgerStore
}

// NewLocked wraps inner.
func NewLocked(inner LedgerStore) *Locked {
	return &Locked{inner: inner}
}

func (l *Locked) Load(ctx context.Context) (*ledger.Ledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Load(ctx)
}

func (l *Locked) Save(ctx context.Context, lg *ledger.Ledger) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Save(ctx, lg)
}

// Update loads the ledger, passes it to fn and saves the ledger fn returns,
// all under the lock. Nothing is saved when fn fails.
func (l *Locked) Update(ctx context.Context, fn func(*ledger.Ledger) (*ledger.Ledger, error)) (*ledger.Ledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.inner.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Update: loading ledger: %w", err)
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := l.inner.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("Update: saving ledger: %w", err)
	}
	return next, nil
}
