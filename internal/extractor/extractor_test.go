package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

type fakePage struct {
	text   string
	tables [][]Row
}

func (p fakePage) Text() string    { return p.text }
func (p fakePage) Tables() [][]Row { return p.tables }

type fakeDocument struct {
	pages []Page
}

func (d fakeDocument) Pages() []Page { return d.pages }

func openerFor(doc Document) Opener {
	return func([]byte) (Document, error) { return doc, nil }
}

// mockTableSource is a TableSource with a configurable Tables function.
type mockTableSource struct {
	name       string
	TablesFunc func(ctx context.Context, data []byte, doc Document) ([][]Row, error)
	calls      int
}

func (m *mockTableSource) Name() string { return m.name }

func (m *mockTableSource) Tables(ctx context.Context, data []byte, doc Document) ([][]Row, error) {
	m.calls++
	return m.TablesFunc(ctx, data, doc)
}

func sampleDocument() fakeDocument {
	return fakeDocument{pages: []Page{
		fakePage{
			text: sampleHeaderText,
			tables: [][]Row{{
				{"Дата операции", "Документ", "Назначение платежа", "Сумма операции"},
				{"01.03.2024 14:22:01", "A-100", "Перевод\nот клиента", "+ 6 812.98 ₽"},
				{"", "", "продолжение", ""},
			}},
		},
		fakePage{
			text: sampleFooterText,
			tables: [][]Row{{
				{"02.03.2024 09:00:00", "A-101", "Оплата", "- 20 000.00 ₽"},
				{"short", "row"},
			}},
		},
	}}
}

func TestExtractor_Extract(t *testing.T) {
	e := New(zerolog.Nop(), WithOpener(openerFor(sampleDocument())))

	got, err := e.Extract(context.Background(), []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := &domain.BankStatement{
		Header: ParseHeader(sampleHeaderText),
		Transactions: []domain.Transaction{
			{Date: "01.03.2024", Time: "14:22:01", Document: "A-100", Description: "Перевод от клиента", Amount: 6812.98, IsCredit: true},
			{Date: "02.03.2024", Time: "09:00:00", Document: "A-101", Description: "Оплата", Amount: 20000},
		},
		Footer: domain.StatementFooter{TotalCredits: 6812.98, TotalDebits: 20000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
	if got.Header.Owner != "Иванов Иван Иванович" {
		t.Errorf("Owner = %q", got.Header.Owner)
	}
}

func TestExtractor_Extract_Unreadable(t *testing.T) {
	tests := []struct {
		name string
		open Opener
	}{
		{
			name: "opener fails",
			open: func([]byte) (Document, error) {
				return nil, errors.Join(errors.New("bad xref"), ErrDocumentUnreadable)
			},
		},
		{
			name: "no pages",
			open: openerFor(fakeDocument{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(zerolog.Nop(), WithOpener(tt.open))
			got, err := e.Extract(context.Background(), []byte("x"))
			if !errors.Is(err, ErrDocumentUnreadable) {
				t.Fatalf("Extract() error = %v, want ErrDocumentUnreadable", err)
			}
			if got != nil {
				t.Errorf("Extract() statement = %+v, want nil", got)
			}
		})
	}
}

func TestExtractor_Extract_NoRowsIsNotAnError(t *testing.T) {
	doc := fakeDocument{pages: []Page{fakePage{text: "Период выписки: 01.02.2024 - 10.02.2024"}}}
	e := New(zerolog.Nop(), WithOpener(openerFor(doc)))

	got, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Transactions == nil || len(got.Transactions) != 0 {
		t.Errorf("Transactions = %#v, want empty non-nil slice", got.Transactions)
	}
	if got.Header.PeriodFrom != "01.02.2024" || got.Header.PeriodTo != "10.02.2024" {
		t.Errorf("period = %s..%s", got.Header.PeriodFrom, got.Header.PeriodTo)
	}
}

func TestExtractor_Extract_Fallback(t *testing.T) {
	doc := fakeDocument{pages: []Page{fakePage{text: sampleHeaderText}}}
	fallback := &mockTableSource{
		name: "model",
		TablesFunc: func(ctx context.Context, data []byte, doc Document) ([][]Row, error) {
			return [][]Row{{{"03.03.2024 10:00:00", "A-200", "Пополнение", "+ 100.00 ₽"}}}, nil
		},
	}
	e := New(zerolog.Nop(), WithOpener(openerFor(doc)), WithFallback(fallback))

	got, err := e.Extract(context.Background(), []byte("pdf"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Document != "A-200" {
		t.Errorf("Transactions = %+v", got.Transactions)
	}
}

func TestExtractor_Extract_FallbackNotUsedWhenPrimaryHasRows(t *testing.T) {
	fallback := &mockTableSource{
		name: "model",
		TablesFunc: func(ctx context.Context, data []byte, doc Document) ([][]Row, error) {
			t.Fatal("fallback should not be called")
			return nil, nil
		},
	}
	e := New(zerolog.Nop(), WithOpener(openerFor(sampleDocument())), WithFallback(fallback))

	got, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Transactions) != 2 {
		t.Errorf("got %d transactions, want 2", len(got.Transactions))
	}
}

func TestExtractor_Extract_PrimaryErrorFallsBack(t *testing.T) {
	primary := &mockTableSource{
		name: "model",
		TablesFunc: func(ctx context.Context, data []byte, doc Document) ([][]Row, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	e := New(zerolog.Nop(),
		WithOpener(openerFor(sampleDocument())),
		WithTableSource(primary),
		WithFallback(LayoutTableSource{}),
	)

	got, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Transactions) != 2 {
		t.Errorf("got %d transactions, want 2 from the layout fallback", len(got.Transactions))
	}
}

func TestExtractor_Extract_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &mockTableSource{
		name: "model",
		TablesFunc: func(ctx context.Context, data []byte, doc Document) ([][]Row, error) {
			return nil, ctx.Err()
		},
	}
	e := New(zerolog.Nop(), WithOpener(openerFor(sampleDocument())), WithTableSource(primary))

	if _, err := e.Extract(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestOpenPDF_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not a pdf", data: []byte("hello, this is not a pdf document")},
		{name: "truncated", data: []byte("%PDF-1.7\n1 0 obj\n<<")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := OpenPDF(tt.data)
			if !errors.Is(err, ErrDocumentUnreadable) {
				t.Fatalf("OpenPDF() error = %v, want ErrDocumentUnreadable", err)
			}
			if doc != nil {
				t.Errorf("OpenPDF() document = %v, want nil", doc)
			}
		})
	}
}
