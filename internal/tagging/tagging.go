// Package tagging assigns keyword-based tags to ledger transactions. Tags are
// derived on demand and never stored in the ledger.
package tagging

import (
	"strings"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Rule tags transactions whose description contains Keyword.
type Rule struct {
	Keyword    string `json:"keyword"`
	Tag        string `json:"tag"`
	CreditOnly bool   `json:"credit_only"`
}

// DefaultRules tags incoming top-ups.
func DefaultRules() []Rule {
	return []Rule{
		{Keyword: "Пополнение", Tag: "пополнение", CreditOnly: true},
	}
}

// Tagged is an annotation with the tags that matched it.
type Tagged struct {
	ledger.Annotation
	Tags []string `json:"tags"`
}

// Tagger matches descriptions against rules, ignoring case.
type Tagger struct {
	rules []Rule
}

// New returns a Tagger for rules. Rules with an empty keyword or tag are
// dropped.
func New(rules []Rule) *Tagger {
	t := &Tagger{}
	for _, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" || strings.TrimSpace(r.Tag) == "" {
			continue
		}
		r.Keyword = strings.ToLower(r.Keyword)
		t.rules = append(t.rules, r)
	}
	return t
}

// Tags returns the distinct tags for one annotation in rule order.
func (t *Tagger) Tags(a ledger.Annotation) []string {
	desc := strings.ToLower(a.Description)
	tags := []string{}
	seen := make(map[string]bool)
	for _, r := range t.rules {
		if r.CreditOnly && !a.IsCredit {
			continue
		}
		if !strings.Contains(desc, r.Keyword) || seen[r.Tag] {
			continue
		}
		seen[r.Tag] = true
		tags = append(tags, r.Tag)
	}
	return tags
}

// Apply tags every annotation, keeping their order.
func (t *Tagger) Apply(annotations []ledger.Annotation) []Tagged {
	out := make([]Tagged, 0, len(annotations))
	for _, a := range annotations {
		out = append(out, Tagged{Annotation: a, Tags: t.Tags(a)})
	}
	return out
}

// ParseRules reads rules written as "keyword=tag" pairs separated by ";".
// A "+" before the keyword limits the rule to credits, e.g.
// "+Пополнение=пополнение;Кафе=еда".
func ParseRules(s string) []Rule {
	var rules []Rule
	for _, part := range strings.Split(s, ";") {
		keyword, tag, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		keyword = strings.TrimSpace(keyword)
		r := Rule{Tag: strings.TrimSpace(tag)}
		if strings.HasPrefix(keyword, "+") {
			r.CreditOnly = true
			keyword = strings.TrimSpace(keyword[1:])
		}
		r.Keyword = keyword
		if r.Keyword == "" || r.Tag == "" {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}
