package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Row is one table row as a list of cell texts. Cells may be empty.
type Row []string

// Page is one page of an opened statement.
type Page interface {
	// Text returns the page text with lines separated by "\n".
	Text() string
	// Tables returns every table found on the page.
	Tables() [][]Row
}

// Document is an opened statement.
type Document interface {
	Pages() []Page
}

// Opener turns raw bytes into a Document.
type Opener func(data []byte) (Document, error)

type pdfDocument struct {
	pages []Page
}

func (d *pdfDocument) Pages() []Page { return d.pages }

type pdfPage struct {
	text   string
	tables [][]Row
}

func (p *pdfPage) Text() string    { return p.text }
func (p *pdfPage) Tables() [][]Row { return p.tables }

// OpenPDF parses data as a PDF and reconstructs the text lines and tables of
// every page from the positioned text runs.
func OpenPDF(data []byte) (doc Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("OpenPDF: empty input: %w", ErrDocumentUnreadable)
	}

	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("OpenPDF: reader panic: %v: %w", r, ErrDocumentUnreadable)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("OpenPDF: opening reader: %v: %w", err, ErrDocumentUnreadable)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("OpenPDF: document has no pages: %w", ErrDocumentUnreadable)
	}

	out := &pdfDocument{pages: make([]Page, 0, numPages)}
	for i := 1; i <= numPages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		out.pages = append(out.pages, readPage(p))
	}
	if len(out.pages) == 0 {
		return nil, fmt.Errorf("OpenPDF: no readable pages: %w", ErrDocumentUnreadable)
	}

	return out, nil
}

// readPage builds the text and tables of a single page. A page whose content
// cannot be decoded yields an empty page rather than failing the document.
func readPage(p pdf.Page) (page *pdfPage) {
	page = &pdfPage{}
	defer func() {
		if r := recover(); r != nil {
			page = &pdfPage{}
		}
	}()

	rows, err := p.GetTextByRow()
	if err == nil && len(rows) > 0 {
		runs := make([]textRun, 0, len(rows)*4)
		for _, row := range rows {
			for _, t := range row.Content {
				runs = append(runs, textRun{
					X:    t.X,
					Y:    float64(row.Position),
					W:    t.W,
					Size: t.FontSize,
					S:    t.S,
				})
			}
		}
		lines := buildLines(runs)
		page.text = linesText(lines)
		page.tables = buildTables(lines)
		if strings.TrimSpace(page.text) != "" {
			return page
		}
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}
	text, err := p.GetPlainText(fonts)
	if err == nil {
		page.text = text
	}
	return page
}
