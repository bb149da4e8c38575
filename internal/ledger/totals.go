package ledger

import (
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Totals sums credit and debit amounts, each rounded to two decimal places.
func Totals(txs iter.Seq[domain.Transaction]) (credits, debits decimal.Decimal) {
	credits, debits = decimal.Zero, decimal.Zero
	for tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		if tx.IsCredit {
			credits = credits.Add(amount)
		} else {
			debits = debits.Add(amount)
		}
	}
	return credits.Round(2), debits.Round(2)
}

// SliceTotals is Totals over a slice.
func SliceTotals(txs []domain.Transaction) (credits, debits decimal.Decimal) {
	return Totals(slices.Values(txs))
}
