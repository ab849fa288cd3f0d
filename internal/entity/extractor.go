package entity

import (
	"strings"

	"commodity-rag/internal/lexicon"
)

// Entities is the per-question routing context: canonical commodity names and
// YYYY-MM month tokens. Either list may be empty.
type Entities struct {
	Commodities []string `json:"commodities"`
	Months      []string `json:"months"`
}

// Extractor scans free text for known commodity and month keywords.
type Extractor struct {
	lex *lexicon.Lexicon
}

func NewExtractor(lex *lexicon.Lexicon) *Extractor {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Extractor{lex: lex}
}

// Extract matches the query case-insensitively against both vocabularies.
// When the query contains one of the lexicon years, month tokens are narrowed
// to that year; the first configured year found wins.
func (e *Extractor) Extract(query string) Entities {
	q := strings.ToLower(query)
	ents := Entities{Commodities: []string{}, Months: []string{}}

	for _, c := range e.lex.Commodities() {
		for _, kw := range c.Keywords {
			if strings.Contains(q, kw) {
				ents.Commodities = append(ents.Commodities, c.Name)
				break
			}
		}
	}

	year := ""
	for _, y := range e.lex.Years() {
		if ys := lexicon.YearString(y); strings.Contains(q, ys) {
			year = ys
			break
		}
	}

	for _, m := range e.lex.Months() {
		if !e.lex.MatchesMonth(q, m) {
			continue
		}
		for _, tok := range e.lex.Tokens(m) {
			if year == "" || strings.HasPrefix(tok, year+"-") {
				ents.Months = append(ents.Months, tok)
			}
		}
	}
	return ents
}
