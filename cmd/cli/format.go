package main

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// defaultCurrency is assumed when the statement names no known currency.
const defaultCurrency = "RUB"

// currencyCode maps the currency printed in a statement header, either an
// ISO code or a Russian name, to an ISO code known to go-money.
func currencyCode(s string) string {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code != "" && money.GetCurrency(code) != nil {
		return code
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "руб"):
		return "RUB"
	case strings.Contains(lower, "доллар"):
		return "USD"
	case strings.Contains(lower, "евро"):
		return "EUR"
	case strings.Contains(lower, "юан"):
		return "CNY"
	}
	return defaultCurrency
}

// formatMoney renders amount in the statement currency.
func formatMoney(amount decimal.Decimal, currency string) string {
	code := currencyCode(currency)
	cur := money.GetCurrency(code)

	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// signedAmount is the transaction amount with debits negated.
func signedAmount(amount float64, isCredit bool) decimal.Decimal {
	d := decimal.NewFromFloat(amount)
	if !isCredit {
		d = d.Neg()
	}
	return d
}
