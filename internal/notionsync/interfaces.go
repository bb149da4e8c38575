package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// NotionService is the subset of the Notion API the syncer needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage replaces only the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase returns one page of results; see PageSize.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// ArchivePage moves a page to the trash.
	ArchivePage(ctx context.Context, pageID string) error
}

// Tagger returns the tags for one ledger transaction.
type Tagger interface {
	Tags(a ledger.Annotation) []string
}
