package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

func tx(date, time, doc string, amount float64, credit bool) domain.Transaction {
	return domain.Transaction{Date: date, Time: time, Document: doc, Description: "op " + doc, Amount: amount, IsCredit: credit}
}

func snapshot(from, to string, txs ...domain.Transaction) *domain.BankStatement {
	return &domain.BankStatement{
		Header: domain.StatementHeader{
			Owner:          "Иванов Иван Иванович",
			AccountNumber:  "40903810000000000001",
			PeriodFrom:     from,
			PeriodTo:       to,
			Currency:       "RUB",
			OpeningBalance: 1000,
		},
		Transactions: txs,
	}
}

func TestMerge_IntoEmpty(t *testing.T) {
	snap := snapshot("01.02.2024", "10.02.2024",
		tx("01.02.2024", "10:00:00", "A-1", 500.25, true),
		tx("02.02.2024", "11:00:00", "A-2", 100.10, false),
	)

	got, added := Merge(Empty(), snap)

	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if diff := cmp.Diff(&snap.Header, got.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := domain.StatementFooter{TotalCredits: 500.25, TotalDebits: 100.10, ClosingBalance: 1400.15}
	if diff := cmp.Diff(want, got.Footer); diff != "" {
		t.Errorf("footer mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_NilLedger(t *testing.T) {
	got, added := Merge(nil, snapshot("01.02.2024", "10.02.2024", tx("01.02.2024", "", "A-1", 1, true)))
	if added != 1 || got.Len() != 1 {
		t.Errorf("added = %d, len = %d, want 1 and 1", added, got.Len())
	}
}

func TestMerge_Idempotent(t *testing.T) {
	snap := snapshot("01.02.2024", "10.02.2024",
		tx("01.02.2024", "10:00:00", "A-1", 500, true),
		tx("02.02.2024", "11:00:00", "A-2", 100, false),
	)

	once, _ := Merge(Empty(), snap)
	twice, added := Merge(once, snap)

	if added != 0 {
		t.Errorf("second merge added = %d, want 0", added)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("ledger changed on re-merge (-once +twice):\n%s", diff)
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := snapshot("05.02.2024", "15.02.2024",
		tx("05.02.2024", "10:00:00", "A-1", 10, true),
		tx("06.02.2024", "10:00:00", "A-2", 20, false),
	)
	b := snapshot("01.02.2024", "10.02.2024",
		tx("01.02.2024", "09:00:00", "B-1", 30.33, true),
		tx("06.02.2024", "10:00:00", "A-2", 20, false),
	)

	ab, addedAB := Merge(Empty(), a)
	ab, n := Merge(ab, b)
	addedAB += n

	ba, addedBA := Merge(Empty(), b)
	ba, n = Merge(ba, a)
	addedBA += n

	if addedAB != 3 || addedBA != 3 {
		t.Errorf("added = %d / %d, want 3 / 3", addedAB, addedBA)
	}
	if diff := cmp.Diff(ab.Transactions, ba.Transactions); diff != "" {
		t.Errorf("transactions depend on order (-ab +ba):\n%s", diff)
	}
	if diff := cmp.Diff(ab.Footer, ba.Footer); diff != "" {
		t.Errorf("footer depends on order (-ab +ba):\n%s", diff)
	}
	if ab.Header.PeriodFrom != ba.Header.PeriodFrom || ab.Header.PeriodTo != ba.Header.PeriodTo {
		t.Errorf("period depends on order: %s..%s vs %s..%s",
			ab.Header.PeriodFrom, ab.Header.PeriodTo, ba.Header.PeriodFrom, ba.Header.PeriodTo)
	}
}

func TestMerge_PeriodWidening(t *testing.T) {
	first, _ := Merge(Empty(), snapshot("05.02.2024", "15.02.2024"))
	got, _ := Merge(first, snapshot("01.02.2024", "10.02.2024"))

	if got.Header.PeriodFrom != "01.02.2024" || got.Header.PeriodTo != "15.02.2024" {
		t.Errorf("period = %s..%s, want 01.02.2024..15.02.2024", got.Header.PeriodFrom, got.Header.PeriodTo)
	}

	// Widening compares chronologically, not lexically on dd.mm.yyyy.
	got, _ = Merge(got, snapshot("20.01.2024", "02.03.2024"))
	if got.Header.PeriodFrom != "20.01.2024" || got.Header.PeriodTo != "02.03.2024" {
		t.Errorf("period = %s..%s, want 20.01.2024..02.03.2024", got.Header.PeriodFrom, got.Header.PeriodTo)
	}
}

func TestMerge_EmptyPeriodKeepsStored(t *testing.T) {
	first, _ := Merge(Empty(), snapshot("05.02.2024", "15.02.2024"))
	got, _ := Merge(first, snapshot("", ""))
	if got.Header.PeriodFrom != "05.02.2024" || got.Header.PeriodTo != "15.02.2024" {
		t.Errorf("period = %s..%s, want unchanged", got.Header.PeriodFrom, got.Header.PeriodTo)
	}

	// A stored header without a period adopts the first non-empty one.
	noPeriod, _ := Merge(Empty(), snapshot("", ""))
	got, _ = Merge(noPeriod, snapshot("01.02.2024", "10.02.2024"))
	if got.Header.PeriodFrom != "01.02.2024" || got.Header.PeriodTo != "10.02.2024" {
		t.Errorf("period = %s..%s, want 01.02.2024..10.02.2024", got.Header.PeriodFrom, got.Header.PeriodTo)
	}
}

func TestMerge_HeaderFields(t *testing.T) {
	first, _ := Merge(Empty(), snapshot("01.02.2024", "10.02.2024"))

	next := snapshot("11.02.2024", "20.02.2024")
	next.Header.Owner = "Петров Пётр"
	next.Header.AccountNumber = ""
	next.Header.DocumentNumber = "Ф-2"
	next.Header.OpeningBalance = 555

	got, _ := Merge(first, next)

	if got.Header.Owner != "Петров Пётр" {
		t.Errorf("Owner = %q, want latest non-empty value", got.Header.Owner)
	}
	if got.Header.AccountNumber != "40903810000000000001" {
		t.Errorf("AccountNumber = %q, empty value must not overwrite", got.Header.AccountNumber)
	}
	if got.Header.DocumentNumber != "Ф-2" {
		t.Errorf("DocumentNumber = %q, want Ф-2", got.Header.DocumentNumber)
	}
	if got.Header.OpeningBalance != 1000 {
		t.Errorf("OpeningBalance = %v, want the first header's 1000", got.Header.OpeningBalance)
	}
}

func TestMerge_FirstSeenWins(t *testing.T) {
	first := tx("01.02.2024", "10:00:00", "A-1", 10, true)
	dupInSnapshot := tx("01.02.2024", "10:00:00", "A-1", 99, false)

	got, added := Merge(Empty(), snapshot("01.02.2024", "10.02.2024", first, dupInSnapshot))
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if diff := cmp.Diff(first, got.Transactions["A-1"]); diff != "" {
		t.Errorf("stored transaction mismatch (-want +got):\n%s", diff)
	}

	later := tx("01.02.2024", "10:00:00", "A-1", 42, true)
	got, added = Merge(got, snapshot("01.02.2024", "10.02.2024", later))
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if got.Transactions["A-1"].Amount != 10 {
		t.Errorf("Amount = %v, stored record must not be replaced", got.Transactions["A-1"].Amount)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	base, _ := Merge(Empty(), snapshot("05.02.2024", "15.02.2024", tx("05.02.2024", "", "A-1", 10, true)))
	before, _ := Decode(mustMarshal(t, base))

	Merge(base, snapshot("01.02.2024", "20.02.2024", tx("06.02.2024", "", "A-2", 5, false)))

	if diff := cmp.Diff(before, base); diff != "" {
		t.Errorf("input ledger mutated (-before +after):\n%s", diff)
	}
}

func TestMerge_AggregatesRounded(t *testing.T) {
	got, _ := Merge(Empty(), snapshot("01.02.2024", "10.02.2024",
		tx("01.02.2024", "", "A-1", 0.1, true),
		tx("01.02.2024", "", "A-2", 0.2, true),
		tx("01.02.2024", "", "A-3", 0.3, false),
	))
	want := domain.StatementFooter{TotalCredits: 0.3, TotalDebits: 0.3, ClosingBalance: 1000}
	if diff := cmp.Diff(want, got.Footer); diff != "" {
		t.Errorf("footer mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_EmptySnapshotStillAdoptsHeader(t *testing.T) {
	got, added := Merge(Empty(), snapshot("01.02.2024", "10.02.2024"))
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if got.Header == nil {
		t.Fatal("Header = nil, want adopted header")
	}
	if got.Footer.ClosingBalance != 1000 {
		t.Errorf("ClosingBalance = %v, want opening balance 1000", got.Footer.ClosingBalance)
	}
}

func TestMerge_OpeningBalanceFromFirstHeader(t *testing.T) {
	a := snapshot("01.02.2024", "10.02.2024",
		tx("01.02.2024", "10:00:00", "A-1", 200, true),
	)
	b := snapshot("11.02.2024", "20.02.2024",
		tx("12.02.2024", "10:00:00", "B-1", 50, false),
	)
	b.Header.OpeningBalance = 1200

	ab, _ := Merge(Empty(), a)
	ab, _ = Merge(ab, b)
	ba, _ := Merge(Empty(), b)
	ba, _ = Merge(ba, a)

	if ab.Footer.TotalCredits != ba.Footer.TotalCredits || ab.Footer.TotalDebits != ba.Footer.TotalDebits {
		t.Errorf("totals depend on order: %+v vs %+v", ab.Footer, ba.Footer)
	}

	tests := []struct {
		name    string
		got     *Ledger
		opening float64
		closing float64
	}{
		{name: "a then b", got: ab, opening: 1000, closing: 1150},
		{name: "b then a", got: ba, opening: 1200, closing: 1350},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Header.OpeningBalance != tt.opening {
				t.Errorf("OpeningBalance = %v, want %v", tt.got.Header.OpeningBalance, tt.opening)
			}
			if tt.got.Footer.ClosingBalance != tt.closing {
				t.Errorf("ClosingBalance = %v, want %v", tt.got.Footer.ClosingBalance, tt.closing)
			}
		})
	}
}
