// Package bigquery exports the ledger to a BigQuery table for analytics.
package bigquery

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Transaction directions as stored in the direction column.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

// LedgerRow is one ledger transaction as stored in BigQuery.
type LedgerRow struct {
	Document        string              `bigquery:"document"`         // REQUIRED
	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED
	TransactionTime bigquery.NullString `bigquery:"transaction_time"` // NULLABLE

	Amount       *big.Rat `bigquery:"amount"`        // REQUIRED NUMERIC, non-negative
	SignedAmount *big.Rat `bigquery:"signed_amount"` // REQUIRED NUMERIC, negative for debits
	Direction    string   `bigquery:"direction"`     // REQUIRED

	Description   string              `bigquery:"description"`    // REQUIRED
	AccountNumber bigquery.NullString `bigquery:"account_number"` // NULLABLE
	Currency      bigquery.NullString `bigquery:"currency"`       // NULLABLE

	Tags []string `bigquery:"tags"` // REPEATED STRING

	ExportedAt time.Time `bigquery:"exported_at"` // REQUIRED
}

// Tagger returns the tags for one transaction.
type Tagger interface {
	Tags(a ledger.Annotation) []string
}

// RowsFromLedger converts every ledger transaction into a row, ordered by
// date then document. tagger may be nil.
func RowsFromLedger(l *ledger.Ledger, tagger Tagger, exportedAt time.Time) ([]*LedgerRow, error) {
	if l == nil {
		return nil, nil
	}

	var header domain.StatementHeader
	if l.Header != nil {
		header = *l.Header
	}

	rows := make([]*LedgerRow, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		row, err := newLedgerRow(tx, header, exportedAt)
		if err != nil {
			return nil, fmt.Errorf("RowsFromLedger: %w", err)
		}
		if tagger != nil {
			row.Tags = tagger.Tags(ledger.Annotation{
				Document:    tx.Document,
				Description: tx.Description,
				IsCredit:    tx.IsCredit,
			})
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TransactionDate != rows[j].TransactionDate {
			return rows[i].TransactionDate.Before(rows[j].TransactionDate)
		}
		return rows[i].Document < rows[j].Document
	})
	return rows, nil
}

func newLedgerRow(tx domain.Transaction, header domain.StatementHeader, exportedAt time.Time) (*LedgerRow, error) {
	date, ok := domain.CivilDate(tx.Date)
	if !ok {
		return nil, fmt.Errorf("transaction %s: invalid date %q", tx.Document, tx.Date)
	}

	amount := decimal.NewFromFloat(tx.Amount).Round(2)
	signed := amount
	direction := DirectionCredit
	if !tx.IsCredit {
		signed = amount.Neg()
		direction = DirectionDebit
	}

	return &LedgerRow{
		Document:        tx.Document,
		TransactionDate: date,
		TransactionTime: nullString(tx.Time),
		Amount:          amount.Rat(),
		SignedAmount:    signed.Rat(),
		Direction:       direction,
		Description:     tx.Description,
		AccountNumber:   nullString(header.AccountNumber),
		Currency:        nullString(header.Currency),
		Tags:            []string{},
		ExportedAt:      exportedAt.UTC(),
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
