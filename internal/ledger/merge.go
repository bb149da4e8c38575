package ledger

import (
	"maps"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Merge folds a snapshot into the ledger and returns the new ledger together
// with the number of transactions that were added. The input ledger is not
// modified.
//
// Transactions are deduplicated by document id, first seen wins. The period
// only ever widens; the other header fields take the latest non-empty value.
// The footer is recomputed over every stored transaction.
//
// The opening balance is kept from the first adopted header. When snapshots
// disagree on it, the closing balance depends on merge order; credits and
// debits do not.
func Merge(l *Ledger, snap *domain.BankStatement) (*Ledger, int) {
	if l == nil {
		l = Empty()
	}
	out := &Ledger{
		Transactions: make(map[string]domain.Transaction, len(l.Transactions)+len(snap.Transactions)),
	}
	maps.Copy(out.Transactions, l.Transactions)

	out.Header = mergeHeader(l.Header, snap.Header)

	added := 0
	for _, tx := range snap.Transactions {
		if _, exists := out.Transactions[tx.Document]; exists {
			continue
		}
		out.Transactions[tx.Document] = tx
		added++
	}

	out.Footer = computeFooter(out.Header.OpeningBalance, out.Transactions)
	return out, added
}

func mergeHeader(current *domain.StatementHeader, incoming domain.StatementHeader) *domain.StatementHeader {
	if current == nil {
		h := incoming
		return &h
	}
	h := *current

	oldFrom, newFrom := domain.SortableDate(h.PeriodFrom), domain.SortableDate(incoming.PeriodFrom)
	if newFrom != "" && (oldFrom == "" || newFrom < oldFrom) {
		h.PeriodFrom = incoming.PeriodFrom
	}
	oldTo, newTo := domain.SortableDate(h.PeriodTo), domain.SortableDate(incoming.PeriodTo)
	if newTo != "" && (oldTo == "" || newTo > oldTo) {
		h.PeriodTo = incoming.PeriodTo
	}

	// Opening balance stays with the first adopted header.
	latest := []struct {
		dst *string
		src string
	}{
		{&h.Owner, incoming.Owner},
		{&h.AccountNumber, incoming.AccountNumber},
		{&h.AccountOpened, incoming.AccountOpened},
		{&h.Currency, incoming.Currency},
		{&h.DocumentNumber, incoming.DocumentNumber},
		{&h.DocumentDate, incoming.DocumentDate},
		{&h.GeneratedAt, incoming.GeneratedAt},
	}
	for _, f := range latest {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return &h
}

func computeFooter(opening float64, txs map[string]domain.Transaction) domain.StatementFooter {
	credits, debits := Totals(maps.Values(txs))
	closing := decimal.NewFromFloat(opening).Add(credits).Sub(debits).Round(2)
	return domain.StatementFooter{
		TotalCredits:   credits.InexactFloat64(),
		TotalDebits:    debits.InexactFloat64(),
		ClosingBalance: closing.InexactFloat64(),
	}
}
