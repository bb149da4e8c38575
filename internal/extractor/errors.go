package extractor

import "errors"

// ErrDocumentUnreadable is returned when the input bytes cannot be opened as a
// PDF document or the document has no pages.
var ErrDocumentUnreadable = errors.New("document unreadable")
