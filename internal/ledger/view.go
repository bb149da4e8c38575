package ledger

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Project returns the stored state as a statement with transactions ordered
// newest first. It reports false when the ledger holds no transactions.
func Project(l *Ledger) (*domain.BankStatement, bool) {
	if l.Len() == 0 {
		return nil, false
	}

	header := domain.DefaultHeader()
	if l.Header != nil {
		header = *l.Header
	}

	txs := slices.Collect(maps.Values(l.Transactions))
	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		if c := cmp.Compare(domain.SortableDate(b.Date), domain.SortableDate(a.Date)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Time, a.Time); c != 0 {
			return c
		}
		// Stable output for operations at the same moment.
		return cmp.Compare(a.Document, b.Document)
	})

	return &domain.BankStatement{
		Header:       header,
		Transactions: txs,
		Footer:       l.Footer,
	}, true
}

// Annotation is the part of a transaction that annotation consumers key on.
type Annotation struct {
	Document    string `json:"document"`
	Description string `json:"description"`
	IsCredit    bool   `json:"is_credit"`
}

// Annotations lists every stored transaction as an Annotation, ordered by
// document id.
func Annotations(l *Ledger) []Annotation {
	out := make([]Annotation, 0, l.Len())
	if l == nil {
		return out
	}
	for id, tx := range l.Transactions {
		out = append(out, Annotation{Document: id, Description: tx.Description, IsCredit: tx.IsCredit})
	}
	slices.SortFunc(out, func(a, b Annotation) int { return strings.Compare(a.Document, b.Document) })
	return out
}
