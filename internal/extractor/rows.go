package extractor

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// skipReason says why a table row produced no transaction.
type skipReason string

const (
	skipNone           skipReason = ""
	skipShortRow       skipReason = "short_row"
	skipEmptyFirstCell skipReason = "empty_first_cell"
	skipHeaderRow      skipReason = "header_row"
	skipNoDate         skipReason = "no_date"
	skipNoAmount       skipReason = "no_amount"
)

const (
	headerDateCell   = "Дата операции"
	headerAmountCell = "Сумма операции"
	minRowCells      = 4
)

var rowDateRe = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{4})\s*(\d{2}:\d{2}:\d{2})?`)

// rowResult is the outcome of reading one table row: either a transaction or
// the reason the row was skipped.
type rowResult struct {
	tx   domain.Transaction
	skip skipReason
}

func (r rowResult) ok() bool { return r.skip == skipNone }

func cell(row Row, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow reads one statement table row. Columns are date and time,
// document id, description and the signed amount.
func parseRow(row Row) rowResult {
	if len(row) < minRowCells {
		return rowResult{skip: skipShortRow}
	}

	first := cell(row, 0)
	switch {
	case first == "":
		return rowResult{skip: skipEmptyFirstCell}
	case first == headerDateCell, strings.Contains(first, headerAmountCell):
		return rowResult{skip: skipHeaderRow}
	}

	m := rowDateRe.FindStringSubmatch(first)
	if m == nil {
		return rowResult{skip: skipNoDate}
	}

	amountText := cell(row, 3)
	if amountText == "" && len(row) >= 5 {
		// Shifted columns put the amount in the second to last cell.
		amountText = cell(row, len(row)-2)
	}
	if amountText == "" {
		return rowResult{skip: skipNoAmount}
	}

	amount, isCredit := ParseAmount(amountText)
	return rowResult{tx: domain.Transaction{
		Date:        m[1],
		Time:        m[2],
		Document:    cell(row, 1),
		Description: strings.ReplaceAll(cell(row, 2), "\n", " "),
		Amount:      amount,
		IsCredit:    isCredit,
	}}
}
