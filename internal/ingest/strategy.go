package ingest

import (
	"regexp"
	"sort"
	"strings"

	"commodity-rag/internal/domain"
)

// StrategySection maps a heading in the strategy report to a commodity.
type StrategySection struct {
	Heading   string `yaml:"heading"`
	Commodity string `yaml:"commodity"`
}

var DefaultStrategySections = []StrategySection{
	{Heading: "Gold Trading Strategies", Commodity: "Gold"},
	{Heading: "Crude Oil Trading Strategies", Commodity: "Crude Oil"},
}

// SplitStrategies cuts the report text at the configured headings (matched
// case-insensitively, first occurrence). Each body runs to the next heading or
// the end of the text. If any heading is missing nothing is returned.
func SplitStrategies(text string, sections []StrategySection) []domain.Document {
	type hit struct {
		section    StrategySection
		start, end int
	}
	hits := make([]hit, 0, len(sections))
	for _, s := range sections {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s.Heading))
		loc := re.FindStringIndex(text)
		if loc == nil {
			return nil
		}
		hits = append(hits, hit{section: s, start: loc[0], end: loc[1]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	docs := make([]domain.Document, 0, len(hits))
	for i, h := range hits {
		stop := len(text)
		if i+1 < len(hits) {
			stop = max(hits[i+1].start, h.end)
		}
		body := strings.TrimSpace(text[h.end:stop])
		docs = append(docs, domain.NewDocument(h.section.Heading+"\n"+body, domain.Metadata{
			Commodity: h.section.Commodity,
			Topic:     domain.TopicTradingStrategy,
		}))
	}
	return docs
}
