package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const tablePrompt = "You are a table extractor for Ozon Bank account statements (Russian language, RUB).\n\n" +
	"Task:\n" +
	"- Extract EVERY row of the operations table from the attached PDF, on all pages.\n" +
	"- Output STRICT JSON only: an array of rows, each row an array of strings.\n" +
	"- Keep the column order of the document: operation date and time, document number, description, amount.\n" +
	"- Copy cell text exactly, including the sign and the currency symbol of the amount (e.g. \"+ 6 812.98 ₽\").\n" +
	"- Include the table header rows as they appear.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// contentGenerator is the part of the genai client used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTableSource asks a Gemini model for the statement table.
type GeminiTableSource struct {
	models contentGenerator
	model  string
	log    zerolog.Logger
}

// NewGeminiTableSource creates a table source backed by the Gemini API. The
// client reads its credentials from the environment.
func NewGeminiTableSource(ctx context.Context, model string, log zerolog.Logger) (*GeminiTableSource, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiTableSource: create genai client: %w", err)
	}
	return newGeminiTableSource(client.Models, model, log), nil
}

func newGeminiTableSource(models contentGenerator, model string, log zerolog.Logger) *GeminiTableSource {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiTableSource{models: models, model: model, log: log}
}

func (g *GeminiTableSource) Name() string { return "gemini" }

// Tables sends the PDF to the model and returns its rows as a single table.
func (g *GeminiTableSource) Tables(ctx context.Context, data []byte, _ Document) ([][]Row, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: tablePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GeminiTableSource.Tables: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiTableSource.Tables: empty response from model")
	}

	var parsed [][]any
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("GeminiTableSource.Tables: unmarshal JSON: %w", err)
	}

	rows := make([]Row, 0, len(parsed))
	for _, raw := range parsed {
		row := make(Row, len(raw))
		for i, v := range raw {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	g.log.Debug().Int("rows", len(rows)).Str("model", g.model).Msg("Model returned statement table")

	return [][]Row{rows}, nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// cleanModelJSON strips Markdown fences and text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
