// Package store persists the ledger as a single JSON document.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// ErrConcurrentUpdate is returned by Save when the stored ledger changed
// since it was loaded.
var ErrConcurrentUpdate = errors.New("ledger was modified concurrently")

// LedgerStore loads and replaces the whole persisted ledger. A store with no
// ledger yet loads an empty one.
type LedgerStore interface {
	Load(ctx context.Context) (*ledger.Ledger, error)
	Save(ctx context.Context, l *ledger.Ledger) error
}

// encodeLedger renders the ledger as indented UTF-8 JSON without HTML
// escaping.
func encodeLedger(l *ledger.Ledger) ([]byte, error) {
	if l == nil {
		l = ledger.Empty()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("encodeLedger: %w", err)
	}
	return buf.Bytes(), nil
}
