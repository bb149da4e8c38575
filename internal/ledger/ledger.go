// Package ledger holds the accumulated, deduplicated set of statement
// transactions and the pure operations over it: merging a new snapshot in and
// projecting the stored state back into a statement view.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// ErrMalformedLedger is returned when persisted ledger data does not have the
// expected shape.
var ErrMalformedLedger = errors.New("malformed ledger")

// Ledger is the persisted accumulation of every ingested snapshot.
// Transactions are keyed by document id. A nil Header means no snapshot has
// been merged yet.
type Ledger struct {
	Header       *domain.StatementHeader
	Transactions map[string]domain.Transaction
	Footer       domain.StatementFooter
}

// Empty returns a ledger with no header and no transactions.
func Empty() *Ledger {
	return &Ledger{
		Transactions: make(map[string]domain.Transaction),
		Footer:       domain.DefaultFooter(),
	}
}

// Len returns the number of stored transactions.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Transactions)
}

type wireLedger struct {
	Header       any                           `json:"header"`
	Transactions map[string]domain.Transaction `json:"transactions"`
	Footer       any                           `json:"footer"`
}

// MarshalJSON writes the ledger as {"header", "transactions", "footer"}. An
// empty ledger is {"header": {}, "transactions": {}, "footer": {}}.
//
// The bytes returned are not HTML-escaped; the calling encoder decides.
// json.Marshal escapes them again, an Encoder with SetEscapeHTML(false)
// keeps them as written.
func (l Ledger) MarshalJSON() ([]byte, error) {
	w := wireLedger{
		Header:       struct{}{},
		Transactions: l.Transactions,
		Footer:       struct{}{},
	}
	if w.Transactions == nil {
		w.Transactions = map[string]domain.Transaction{}
	}
	if l.Header != nil {
		w.Header = l.Header
	}
	if l.Header != nil || l.Footer != domain.DefaultFooter() {
		w.Footer = l.Footer
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("MarshalJSON: encoding ledger: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes with the same rules as Decode.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*l = *decoded
	return nil
}

// Decode parses persisted ledger data. Missing or null sections are empty and
// missing header or footer fields take their default values. Values of the
// wrong JSON type make the whole ledger malformed.
func Decode(data []byte) (*Ledger, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("Decode: %w: %w", ErrMalformedLedger, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("Decode: top-level value is null: %w", ErrMalformedLedger)
	}

	l := Empty()

	if section := raw["header"]; !isNull(section) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(section, &fields); err != nil {
			return nil, fmt.Errorf("Decode: header: %w: %w", ErrMalformedLedger, err)
		}
		if len(fields) > 0 {
			h := domain.DefaultHeader()
			if err := json.Unmarshal(section, &h); err != nil {
				return nil, fmt.Errorf("Decode: header: %w: %w", ErrMalformedLedger, err)
			}
			l.Header = &h
		}
	}

	if section := raw["transactions"]; !isNull(section) {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(section, &entries); err != nil {
			return nil, fmt.Errorf("Decode: transactions: %w: %w", ErrMalformedLedger, err)
		}
		for id, entry := range entries {
			var tx domain.Transaction
			if !isNull(entry) {
				if err := json.Unmarshal(entry, &tx); err != nil {
					return nil, fmt.Errorf("Decode: transaction %q: %w: %w", id, ErrMalformedLedger, err)
				}
			}
			l.Transactions[id] = tx
		}
	}

	if section := raw["footer"]; !isNull(section) {
		f := domain.DefaultFooter()
		if err := json.Unmarshal(section, &f); err != nil {
			return nil, fmt.Errorf("Decode: footer: %w: %w", ErrMalformedLedger, err)
		}
		l.Footer = f
	}

	return l, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
