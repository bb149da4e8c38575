package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// batchSize caps the rows sent in one streaming insert request.
const batchSize = 500

// rowInserter is the subset of *bigquery.Inserter used by Exporter.
type rowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// Exporter streams ledger rows into a BigQuery table.
type Exporter struct {
	client   *bigquery.Client
	inserter rowInserter
	project  string
	dataset  string
	table    string
	log      zerolog.Logger
}

// NewExporter creates a BigQuery client for project and an exporter writing
// to dataset.table. credentialsFile may be empty to use default credentials.
func NewExporter(ctx context.Context, project, dataset, table, credentialsFile string, log zerolog.Logger) (*Exporter, error) {
	if project == "" {
		return nil, fmt.Errorf("NewExporter: project is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}

	e := newExporter(client.DatasetInProject(project, dataset).Table(table).Inserter(), project, dataset, table, log)
	e.client = client
	return e, nil
}

func newExporter(ins rowInserter, project, dataset, table string, log zerolog.Logger) *Exporter {
	return &Exporter{
		inserter: ins,
		project:  project,
		dataset:  dataset,
		table:    table,
		log:      log.With().Str("component", "bigquery_export").Logger(),
	}
}

// Client returns the underlying BigQuery client.
func (e *Exporter) Client() *bigquery.Client {
	return e.client
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Export inserts rows in batches. Each row carries its document as insert id,
// so BigQuery drops duplicates sent within its deduplication window.
func (e *Exporter) Export(ctx context.Context, rows []*LedgerRow) (int, error) {
	exported := 0
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))

		savers := make([]*bigquery.StructSaver, 0, end-start)
		for _, row := range rows[start:end] {
			savers = append(savers, &bigquery.StructSaver{Struct: row, InsertID: row.Document})
		}

		if err := e.inserter.Put(ctx, savers); err != nil {
			return exported, fmt.Errorf("Export: inserting rows %d-%d: %w", start, end, err)
		}
		exported += end - start
		e.log.Debug().Int("batch_start", start).Int("batch_size", end-start).Msg("Inserted ledger rows")
	}

	e.log.Info().Int("rows", exported).Str("table", e.tableRef()).Msg("Ledger exported")
	return exported, nil
}

// CountDocuments returns the number of distinct documents in the table.
func (e *Exporter) CountDocuments(ctx context.Context) (int64, error) {
	if e.client == nil {
		return 0, fmt.Errorf("CountDocuments: no client")
	}

	q := e.client.Query(fmt.Sprintf("SELECT COUNT(DISTINCT document) AS n FROM `%s`", e.tableRef()))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountDocuments: reading query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CountDocuments: iter next: %w", err)
	}
	return row.N, nil
}

func (e *Exporter) tableRef() string {
	return fmt.Sprintf("%s.%s.%s", e.project, e.dataset, e.table)
}
