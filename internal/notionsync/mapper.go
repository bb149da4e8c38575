package notionsync

import (
	"slices"
	"sort"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Property names of the transactions database.
const (
	PropDescription = "Description"
	PropDocument    = "Document"
	PropDate        = "Date"
	PropTime        = "Time"
	PropAmount      = "Amount"
	PropDirection   = "Direction"
	PropTags        = "Tags"
	PropAccount     = "Account"
	PropCurrency    = "Currency"
)

// Direction options.
const (
	DirectionIn  = "Приход"
	DirectionOut = "Расход"
)

// TransactionToNotionProperties converts a ledger transaction to Notion
// properties. Debits get a negative Amount so the column sums to the net
// change.
func TransactionToNotionProperties(tx domain.Transaction, header domain.StatementHeader, tags []string) notionapi.Properties {
	amount := tx.Amount
	direction := DirectionIn
	if !tx.IsCredit {
		amount = -amount
		direction = DirectionOut
	}

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropDocument: notionapi.RichTextProperty{
			RichText: richText(tx.Document),
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropDirection: notionapi.SelectProperty{
			Select: notionapi.Option{Name: direction},
		},
		PropTags: notionapi.MultiSelectProperty{
			MultiSelect: tagOptions(tags),
		},
	}

	if d, ok := domain.CivilDate(tx.Date); ok {
		start := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}

	if tx.Time != "" {
		props[PropTime] = notionapi.RichTextProperty{RichText: richText(tx.Time)}
	}
	if header.AccountNumber != "" {
		props[PropAccount] = notionapi.RichTextProperty{RichText: richText(header.AccountNumber)}
	}
	if header.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: header.Currency},
		}
	}

	return props
}

// TagsToNotionProperties builds an update that only replaces the tags.
func TagsToNotionProperties(tags []string) notionapi.Properties {
	return notionapi.Properties{
		PropTags: notionapi.MultiSelectProperty{MultiSelect: tagOptions(tags)},
	}
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func tagOptions(tags []string) []notionapi.Option {
	options := make([]notionapi.Option, 0, len(tags))
	for _, t := range tags {
		options = append(options, notionapi.Option{Name: t})
	}
	return options
}

// extractDocument reads the Document property of a page.
// Returns empty string if not found.
func extractDocument(page notionapi.Page) string {
	if prop, ok := page.Properties[PropDocument]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			if rt.RichText[0].PlainText != "" {
				return rt.RichText[0].PlainText
			}
			if rt.RichText[0].Text != nil {
				return rt.RichText[0].Text.Content
			}
		}
	}
	return ""
}

// extractTags reads the Tags property of a page, sorted.
func extractTags(page notionapi.Page) []string {
	tags := []string{}
	if prop, ok := page.Properties[PropTags]; ok {
		if ms, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, o := range ms.MultiSelect {
				tags = append(tags, o.Name)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// sameTags compares tag sets regardless of order.
func sameTags(a, b []string) bool {
	a = slices.Clone(a)
	b = slices.Clone(b)
	sort.Strings(a)
	sort.Strings(b)
	return slices.Equal(a, b)
}
