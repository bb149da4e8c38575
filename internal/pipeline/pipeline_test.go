package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extractor"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// MockExtractor is a mock implementation of StatementExtractor.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, data []byte) (*domain.BankStatement, error)
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte) (*domain.BankStatement, error) {
	return m.ExtractFunc(ctx, data)
}

// MockLedger keeps the ledger in memory and counts updates.
type MockLedger struct {
	Current    *ledger.Ledger
	UpdateErr  error
	UpdateCall int
}

func (m *MockLedger) Update(ctx context.Context, fn func(*ledger.Ledger) (*ledger.Ledger, error)) (*ledger.Ledger, error) {
	m.UpdateCall++
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	if m.Current == nil {
		m.Current = ledger.Empty()
	}
	next, err := fn(m.Current)
	if err != nil {
		return nil, err
	}
	m.Current = next
	return next, nil
}

// MockHistory is a mock implementation of HistoryRecorder.
type MockHistory struct {
	AddFunc func(ctx context.Context, rec history.Record) (history.Record, error)
	Records []history.Record
}

func (m *MockHistory) Add(ctx context.Context, rec history.Record) (history.Record, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, rec)
	}
	rec.ID = "rec-" + rec.Filename
	m.Records = append(m.Records, rec)
	return rec, nil
}

// MockStorageService is a mock implementation of StorageService.
type MockStorageService struct {
	FetchFunc func(ctx context.Context, uri string) ([]byte, error)
	PutFunc   func(ctx context.Context, name string, data []byte) (string, error)
}

func (m *MockStorageService) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

func (m *MockStorageService) Put(ctx context.Context, name string, data []byte) (string, error) {
	return m.PutFunc(ctx, name, data)
}

func sampleStatement() *domain.BankStatement {
	return &domain.BankStatement{
		Header: domain.StatementHeader{Owner: "Иванов", PeriodFrom: "01.02.2024", PeriodTo: "29.02.2024", OpeningBalance: 100},
		Transactions: []domain.Transaction{
			{Date: "01.02.2024", Time: "10:00:00", Document: "A-1", Description: "Пополнение", Amount: 50, IsCredit: true},
			{Date: "02.02.2024", Time: "11:00:00", Document: "A-2", Description: "Кафе", Amount: 20},
		},
	}
}

func staticExtractor(stmt *domain.BankStatement) *MockExtractor {
	return &MockExtractor{
		ExtractFunc: func(ctx context.Context, data []byte) (*domain.BankStatement, error) {
			return stmt, nil
		},
	}
}

func TestService_Ingest(t *testing.T) {
	led := &MockLedger{}
	hist := &MockHistory{}
	invalidated := 0
	svc := pipeline.NewService(pipeline.Deps{
		Extractor:  staticExtractor(sampleStatement()),
		Ledger:     led,
		History:    hist,
		Invalidate: func() { invalidated++ },
	}, zerolog.Nop())

	res, err := svc.Ingest(context.Background(), "feb.pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.NewAdded != 2 || res.TotalInSystem != 2 || res.TransactionsInFile != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Добавлено 2 новых операций (всего: 2)" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.HistoryID != "rec-feb.pdf" {
		t.Errorf("HistoryID = %q", res.HistoryID)
	}
	if invalidated != 1 {
		t.Errorf("cache invalidated %d times, want 1", invalidated)
	}
	if len(hist.Records) != 1 || hist.Records[0].PeriodFrom != "01.02.2024" || hist.Records[0].Owner != "Иванов" {
		t.Errorf("history records = %+v", hist.Records)
	}
	if led.Current.Footer.ClosingBalance != 130 {
		t.Errorf("ClosingBalance = %v, want 130", led.Current.Footer.ClosingBalance)
	}

	// The same statement again adds nothing.
	res, err = svc.Ingest(context.Background(), "feb-copy.pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if res.NewAdded != 0 || res.Message != "Новых операций не найдено. Все 2 уже загружены." {
		t.Errorf("second result = %+v", res)
	}
	if hist.Records[1].NewAdded != 0 || hist.Records[1].TotalInSystem != 2 {
		t.Errorf("second history record = %+v", hist.Records[1])
	}
}

func TestService_Ingest_ExtractFailureLeavesLedgerUntouched(t *testing.T) {
	led := &MockLedger{}
	hist := &MockHistory{}
	invalidated := false
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: &MockExtractor{
			ExtractFunc: func(ctx context.Context, data []byte) (*domain.BankStatement, error) {
				return nil, extractor.ErrDocumentUnreadable
			},
		},
		Ledger:     led,
		History:    hist,
		Invalidate: func() { invalidated = true },
	}, zerolog.Nop())

	res, err := svc.Ingest(context.Background(), "broken.pdf", []byte("junk"))
	if !errors.Is(err, extractor.ErrDocumentUnreadable) {
		t.Fatalf("Ingest() error = %v, want ErrDocumentUnreadable", err)
	}
	if res != nil {
		t.Errorf("Ingest() result = %+v, want nil", res)
	}
	if led.UpdateCall != 0 {
		t.Errorf("ledger updated %d times, want 0", led.UpdateCall)
	}
	if len(hist.Records) != 0 || invalidated {
		t.Error("history or cache touched after failed extraction")
	}
	if !strings.Contains(err.Error(), "extract") {
		t.Errorf("error %q does not name the failing step", err)
	}
}

func TestService_Ingest_MalformedLedger(t *testing.T) {
	led := &MockLedger{UpdateErr: ledger.ErrMalformedLedger}
	hist := &MockHistory{}
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: staticExtractor(sampleStatement()),
		Ledger:    led,
		History:   hist,
	}, zerolog.Nop())

	_, err := svc.Ingest(context.Background(), "feb.pdf", []byte("%PDF"))
	if !errors.Is(err, ledger.ErrMalformedLedger) {
		t.Fatalf("Ingest() error = %v, want ErrMalformedLedger", err)
	}
	if len(hist.Records) != 0 {
		t.Error("history recorded after failed merge")
	}
}

func TestService_Ingest_HistoryFailureIsNotFatal(t *testing.T) {
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: staticExtractor(sampleStatement()),
		Ledger:    &MockLedger{},
		History: &MockHistory{
			AddFunc: func(ctx context.Context, rec history.Record) (history.Record, error) {
				return history.Record{}, errors.New("disk full")
			},
		},
	}, zerolog.Nop())

	res, err := svc.Ingest(context.Background(), "feb.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.NewAdded != 2 || res.HistoryID != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestService_Ingest_Archives(t *testing.T) {
	var putName string
	hist := &MockHistory{}
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: staticExtractor(sampleStatement()),
		Ledger:    &MockLedger{},
		History:   hist,
		Storage: &MockStorageService{
			FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
				t.Fatal("Fetch should not be called for uploaded bytes")
				return nil, nil
			},
			PutFunc: func(ctx context.Context, name string, data []byte) (string, error) {
				putName = name
				return "gs://archive/statements/" + name, nil
			},
		},
	}, zerolog.Nop())

	res, err := svc.Ingest(context.Background(), "feb.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !strings.HasSuffix(putName, "_feb.pdf") {
		t.Errorf("archived name = %q", putName)
	}
	if res.SourceURI != "gs://archive/statements/"+putName || hist.Records[0].SourceURI != res.SourceURI {
		t.Errorf("SourceURI = %q, history = %q", res.SourceURI, hist.Records[0].SourceURI)
	}
}

func TestService_IngestURI(t *testing.T) {
	var gotData []byte
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: &MockExtractor{
			ExtractFunc: func(ctx context.Context, data []byte) (*domain.BankStatement, error) {
				gotData = data
				return sampleStatement(), nil
			},
		},
		Ledger: &MockLedger{},
		Storage: &MockStorageService{
			FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
				if uri != "gs://bucket/feb.pdf" {
					t.Errorf("Fetch(%q)", uri)
				}
				return []byte("%PDF-remote"), nil
			},
			PutFunc: func(ctx context.Context, name string, data []byte) (string, error) {
				t.Fatal("Put should not be called for stored files")
				return "", nil
			},
		},
	}, zerolog.Nop())

	res, err := svc.IngestURI(context.Background(), "feb.pdf", "gs://bucket/feb.pdf")
	if err != nil {
		t.Fatalf("IngestURI() error = %v", err)
	}
	if string(gotData) != "%PDF-remote" {
		t.Errorf("extracted data = %q", gotData)
	}
	if res.SourceURI != "gs://bucket/feb.pdf" {
		t.Errorf("SourceURI = %q", res.SourceURI)
	}
}

func TestService_IngestURI_WithoutStorage(t *testing.T) {
	svc := pipeline.NewService(pipeline.Deps{
		Extractor: staticExtractor(sampleStatement()),
		Ledger:    &MockLedger{},
	}, zerolog.Nop())

	_, err := svc.IngestURI(context.Background(), "feb.pdf", "gs://bucket/feb.pdf")
	if !errors.Is(err, pipeline.ErrNoInput) {
		t.Fatalf("IngestURI() error = %v, want ErrNoInput", err)
	}
}

type recordingStep struct {
	name  string
	err   error
	calls *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(ctx context.Context, state *pipeline.PipelineState) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	p := pipeline.NewPipeline(
		&recordingStep{name: "one", calls: &calls},
		&recordingStep{name: "two", err: boom, calls: &calls},
		&recordingStep{name: "three", calls: &calls},
	)

	err := p.Execute(context.Background(), &pipeline.PipelineState{})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "step 2 (two)") {
		t.Errorf("error = %q, want step name", err)
	}
	if strings.Join(calls, ",") != "one,two" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pipeline.NewPipeline(&recordingStep{name: "one", calls: &calls}).Execute(ctx, &pipeline.PipelineState{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestMessage(t *testing.T) {
	if got := pipeline.Message(3, 10); got != "Добавлено 3 новых операций (всего: 10)" {
		t.Errorf("Message(3, 10) = %q", got)
	}
	if got := pipeline.Message(0, 10); got != "Новых операций не найдено. Все 10 уже загружены." {
		t.Errorf("Message(0, 10) = %q", got)
	}
}
