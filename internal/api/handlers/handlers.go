package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extractor"
	"github.com/dvloznov/statement-ledger/internal/history"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/tagging"
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

// Ingester runs the synchronous ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, filename string, data []byte) (*pipeline.Result, error)
}

// LedgerLoader reads the persisted ledger.
type LedgerLoader interface {
	Load(ctx context.Context) (*ledger.Ledger, error)
}

// HistoryLister lists upload records, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// StatementsHandler accepts statement uploads.
type StatementsHandler struct {
	ingester  Ingester
	publisher jobs.Publisher
	maxSize   int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. publisher may be nil,
// in which case async uploads are rejected.
func NewStatementsHandler(ingester Ingester, publisher jobs.Publisher, maxSize int64, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		ingester:  ingester,
		publisher: publisher,
		maxSize:   maxSize,
		log:       log,
	}
}

// Upload handles POST /api/statements
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The multipart envelope gets 1 MiB on top of the file limit.
	limit := h.maxSize + 1<<20
	if r.ContentLength > limit {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Файл слишком большой (максимум %d МБ)", h.maxSize/(1024*1024)))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn().Int64("limit", h.maxSize).Msg("Upload exceeds size limit")
			middleware.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Файл слишком большой (максимум %d МБ)", h.maxSize/(1024*1024)))
			return
		}
		h.log.Warn().Err(err).Int64("limit", h.maxSize).Msg("Failed to parse multipart form")
		middleware.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("Не удалось прочитать файл (максимум %d МБ)", h.maxSize/(1024*1024)))
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Файл не выбран")
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxSize {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Файл слишком большой")
		return
	}

	filename := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		middleware.WriteError(w, http.StatusBadRequest, "Поддерживаются только PDF-файлы")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusBadRequest, "Не удалось прочитать файл")
		return
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		h.log.Warn().Str("filename", filename).Msg("Uploaded file is not a PDF")
		middleware.WriteError(w, http.StatusBadRequest, "Поддерживаются только PDF-файлы")
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.enqueue(w, r, filename, data)
		return
	}

	result, err := h.ingester.Ingest(ctx, filename, data)
	if err != nil {
		status, message := ingestErrorResponse(err)
		middleware.WriteError(w, status, message)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *StatementsHandler) enqueue(w http.ResponseWriter, r *http.Request, filename string, data []byte) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Фоновая обработка недоступна")
		return
	}

	job := &jobs.IngestStatementJob{Filename: filename, PDFBytes: data}
	if err := h.publisher.PublishIngestStatement(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Не удалось поставить файл в очередь")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("filename", filename).Msg("Ingest job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.JobID,
		"filename": filename,
		"status":   string(job.Status),
	})
}

// ingestErrorResponse maps ingestion errors to an HTTP status and message.
func ingestErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, extractor.ErrDocumentUnreadable):
		return http.StatusUnprocessableEntity, "Ошибка обработки файла: " + err.Error()
	case errors.Is(err, store.ErrConcurrentUpdate):
		return http.StatusConflict, "Данные изменились во время загрузки, повторите попытку"
	case errors.Is(err, ledger.ErrMalformedLedger):
		return http.StatusInternalServerError, "Хранилище операций повреждено"
	default:
		return http.StatusInternalServerError, "Ошибка обработки файла"
	}
}

const (
	statementCacheKey   = "statement"
	annotationsCacheKey = "annotations"
)

// LedgerHandler serves read views of the ledger. Views are cached until the
// next successful ingestion calls Invalidate. Cache keys carry the
// generation seen before the ledger was loaded, so a view built from a ledger
// loaded before an Invalidate is never served after it.
type LedgerHandler struct {
	ledger     LedgerLoader
	tagger     *tagging.Tagger
	cache      *cache.Cache
	generation atomic.Uint64
	log        zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(loader LedgerLoader, tagger *tagging.Tagger, ttl time.Duration, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: loader,
		tagger: tagger,
		cache:  cache.New(ttl, 2*ttl),
		log:    log,
	}
}

// Invalidate drops cached views.
func (h *LedgerHandler) Invalidate() {
	h.generation.Add(1)
	h.cache.Flush()
}

func (h *LedgerHandler) cacheKey(name string) string {
	return name + ":" + strconv.FormatUint(h.generation.Load(), 10)
}

// GetStatement handles GET /api/statement
func (h *LedgerHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(statementCacheKey)
	if cached, found := h.cache.Get(key); found {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"statement": cached})
		return
	}

	l, err := h.ledger.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Не удалось загрузить операции")
		return
	}

	var view *domain.BankStatement
	if stmt, ok := ledger.Project(l); ok {
		view = stmt
	}
	h.cache.SetDefault(key, view)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"statement": view})
}

// GetAnnotations handles GET /api/annotations
func (h *LedgerHandler) GetAnnotations(w http.ResponseWriter, r *http.Request) {
	key := h.cacheKey(annotationsCacheKey)
	tagged, found := h.cache.Get(key)
	if !found {
		l, err := h.ledger.Load(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load ledger")
			middleware.WriteError(w, http.StatusInternalServerError, "Не удалось загрузить операции")
			return
		}
		tagged = h.tagger.Apply(ledger.Annotations(l))
		h.cache.SetDefault(key, tagged)
	}

	list := tagged.([]tagging.Tagged)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"annotations": list,
		"count":       len(list),
	})
}

// HistoryHandler serves the upload history.
type HistoryHandler struct {
	history HistoryLister
	log     zerolog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history HistoryLister, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		log:     log,
	}
}

// ListHistory handles GET /api/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list upload history")
		middleware.WriteError(w, http.StatusInternalServerError, "Не удалось загрузить историю")
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": records,
		"count":   len(records),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
