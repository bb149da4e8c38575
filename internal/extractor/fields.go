package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// headerField extracts one header value from the statement text. The first
// match wins; no match keeps the default.
type headerField struct {
	name  string
	re    *regexp.Regexp
	apply func(h *domain.StatementHeader, m []string)
}

// Statement texts use both ASCII and no-break spaces inside numbers.
const numberChars = `[\d\s\x{00A0},.]+`

var headerFields = []headerField{
	{
		name:  "document_number",
		re:    regexp.MustCompile(`№\s*(Ф-[\d\-]+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.DocumentNumber = m[1] },
	},
	{
		name: "document_date",
		re:   regexp.MustCompile(`от\s*[«"]\s*(\d{1,2})\s*[»"]\s*(\S+)\s*(\d{4})\s*года`),
		apply: func(h *domain.StatementHeader, m []string) {
			h.DocumentDate = m[1] + " " + m[2] + " " + m[3]
		},
	},
	{
		name:  "owner",
		re:    regexp.MustCompile(`Владелец:\s*\n?\s*(.+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.Owner = strings.TrimSpace(m[1]) },
	},
	{
		name:  "account_number",
		re:    regexp.MustCompile(`№\s*(409\d+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.AccountNumber = m[1] },
	},
	{
		name:  "account_opened",
		re:    regexp.MustCompile(`открыт\s*([\d.]+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.AccountOpened = m[1] },
	},
	{
		name:  "generated_at",
		re:    regexp.MustCompile(`формирования документа:\s*([\d.\s:]+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.GeneratedAt = strings.TrimSpace(m[1]) },
	},
	{
		name: "period",
		re:   regexp.MustCompile(`Период выписки:\s*([\d.]+)\s*[–\-]\s*([\d.]+)`),
		apply: func(h *domain.StatementHeader, m []string) {
			h.PeriodFrom = m[1]
			h.PeriodTo = m[2]
		},
	},
	{
		name:  "currency",
		re:    regexp.MustCompile(`Валюта:\s*(.+)`),
		apply: func(h *domain.StatementHeader, m []string) { h.Currency = strings.TrimSpace(m[1]) },
	},
	{
		name: "opening_balance",
		re:   regexp.MustCompile(`Входящий остаток:\s*(` + numberChars + `)`),
		apply: func(h *domain.StatementHeader, m []string) {
			if v, ok := parseNumber(m[1]); ok {
				h.OpeningBalance = v
			}
		},
	},
}

var (
	totalCreditsRe   = regexp.MustCompile(`Итого зачислений за период:\s*(` + numberChars + `)`)
	totalDebitsRe    = regexp.MustCompile(`Итого списаний за период:\s*(` + numberChars + `)`)
	closingBalanceRe = regexp.MustCompile(`Исходящий остаток:\s*(` + numberChars + `)`)
)

// ParseHeader extracts statement metadata from the full document text.
// Fields that are not found keep their default values.
func ParseHeader(text string) domain.StatementHeader {
	h := domain.DefaultHeader()
	for _, f := range headerFields {
		if m := f.re.FindStringSubmatch(text); m != nil {
			f.apply(&h, m)
		}
	}
	return h
}

// ParseFooter extracts the period totals from the full document text.
func ParseFooter(text string) domain.StatementFooter {
	f := domain.DefaultFooter()
	f.TotalCredits = findNumber(totalCreditsRe, text)
	f.TotalDebits = findNumber(totalDebitsRe, text)
	f.ClosingBalance = findNumber(closingBalanceRe, text)
	return f
}

func findNumber(re *regexp.Regexp, text string) float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, _ := parseNumber(m[1])
	return v
}

// parseNumber converts "1 234,56" style text into a float. Spaces and no-break
// spaces are dropped and a decimal comma becomes a point.
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer("\u00a0", "", " ", "", ",", ".").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}
