package domain

// StatementHeader holds the per-document metadata printed at the top of an
// account statement. An empty field means the value was not found in the
// source text, not that it is zero.
type StatementHeader struct {
	DocumentNumber string  `json:"document_number"`
	DocumentDate   string  `json:"document_date"`
	Owner          string  `json:"owner"`
	AccountNumber  string  `json:"account_number"`
	AccountOpened  string  `json:"account_opened"`
	GeneratedAt    string  `json:"generated_at"`
	PeriodFrom     string  `json:"period_from"` // dd.mm.yyyy
	PeriodTo       string  `json:"period_to"`   // dd.mm.yyyy
	Currency       string  `json:"currency"`
	OpeningBalance float64 `json:"opening_balance"`
}

// IsZero reports whether no header field was populated.
func (h StatementHeader) IsZero() bool {
	return h == StatementHeader{}
}

// Transaction represents one ledger line of a statement.
// Document is the statement-assigned reference and the dedup key: two
// transactions with the same Document are the same economic event.
type Transaction struct {
	Date        string  `json:"date"` // dd.mm.yyyy
	Time        string  `json:"time"` // hh:mm:ss or empty
	Document    string  `json:"document"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`    // non-negative magnitude
	IsCredit    bool    `json:"is_credit"` // true = inflow, false = outflow
}

// StatementFooter holds the aggregates of a statement.
type StatementFooter struct {
	TotalCredits   float64 `json:"total_credits"`
	TotalDebits    float64 `json:"total_debits"`
	ClosingBalance float64 `json:"closing_balance"`
}

// BankStatement is one parsed snapshot: header, ordered transactions and footer.
type BankStatement struct {
	Header       StatementHeader `json:"header"`
	Transactions []Transaction   `json:"transactions"`
	Footer       StatementFooter `json:"footer"`
}

// DefaultHeader returns the header used to fill fields missing from stored data.
func DefaultHeader() StatementHeader {
	return StatementHeader{}
}

// DefaultFooter returns the footer used to fill fields missing from stored data.
func DefaultFooter() StatementFooter {
	return StatementFooter{}
}
