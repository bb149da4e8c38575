package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantHeader *domain.StatementHeader
		wantTxs    map[string]domain.Transaction
		wantFooter domain.StatementFooter
	}{
		{
			name:    "empty ledger",
			data:    `{"header": {}, "transactions": {}, "footer": {}}`,
			wantTxs: map[string]domain.Transaction{},
		},
		{
			name:    "missing sections",
			data:    `{}`,
			wantTxs: map[string]domain.Transaction{},
		},
		{
			name:    "null sections",
			data:    `{"header": null, "transactions": null, "footer": null}`,
			wantTxs: map[string]domain.Transaction{},
		},
		{
			name:       "partial header takes defaults",
			data:       `{"header": {"owner": "Иванов И.И.", "period_from": "01.02.2024"}, "transactions": {}}`,
			wantHeader: &domain.StatementHeader{Owner: "Иванов И.И.", PeriodFrom: "01.02.2024"},
			wantTxs:    map[string]domain.Transaction{},
		},
		{
			name: "transactions and footer",
			data: `{
				"header": {"opening_balance": 100},
				"transactions": {
					"A-1": {"date": "01.02.2024", "time": "10:00:00", "document": "A-1", "description": "x", "amount": 5.5, "is_credit": true}
				},
				"footer": {"total_credits": 5.5}
			}`,
			wantHeader: &domain.StatementHeader{OpeningBalance: 100},
			wantTxs: map[string]domain.Transaction{
				"A-1": {Date: "01.02.2024", Time: "10:00:00", Document: "A-1", Description: "x", Amount: 5.5, IsCredit: true},
			},
			wantFooter: domain.StatementFooter{TotalCredits: 5.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantHeader, got.Header); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantTxs, got.Transactions); diff != "" {
				t.Errorf("transactions mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantFooter, got.Footer); diff != "" {
				t.Errorf("footer mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"header": `},
		{name: "top-level array", data: `[]`},
		{name: "top-level null", data: `null`},
		{name: "transactions as array", data: `{"transactions": []}`},
		{name: "header as string", data: `{"header": "x"}`},
		{name: "amount as string", data: `{"transactions": {"A": {"amount": "5"}}}`},
		{name: "footer as number", data: `{"footer": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrMalformedLedger) {
				t.Fatalf("Decode() error = %v, want ErrMalformedLedger", err)
			}
			if got != nil {
				t.Errorf("Decode() = %+v, want nil", got)
			}
		})
	}
}

func TestMarshalJSON_Empty(t *testing.T) {
	data, err := json.Marshal(Empty())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"header":{},"transactions":{},"footer":{}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	l, _ := Merge(Empty(), &domain.BankStatement{
		Header: domain.StatementHeader{Owner: "Иванов", PeriodFrom: "01.02.2024", PeriodTo: "10.02.2024", OpeningBalance: 10},
		Transactions: []domain.Transaction{
			{Date: "01.02.2024", Document: "A-1", Description: "Кафе <Уют> & Ко", Amount: 3.5},
		},
	})

	raw, err := l.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if !strings.Contains(string(raw), "Кафе <Уют> & Ко") {
		t.Errorf("MarshalJSON() escaped text: %s", raw)
	}

	// json.Marshal applies its own HTML escaping on top.
	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `\u003cУют\u003e \u0026 Ко`) {
		t.Errorf("Marshal() = %s", data)
	}

	var back Ledger
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(l, &back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
