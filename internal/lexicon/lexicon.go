package lexicon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Commodity is a canonical commodity name with the market ticker used to fetch its
// prices and the lowercase keywords that select it in a free-text question.
type Commodity struct {
	Name     string   `yaml:"name"`
	Ticker   string   `yaml:"ticker"`
	Keywords []string `yaml:"keywords"`
}

// Month is one calendar month with every spelling that selects it.
type Month struct {
	Number int
	Name   string
	// Abbreviations match only as whole words.
	Abbreviations []string
}

// Lexicon holds the two static vocabularies: month spellings to YYYY-MM tokens and
// commodity keywords to canonical names.
type Lexicon struct {
	years       []int
	commodities []Commodity
	// abbrevRes is only set when abbreviations must match whole words.
	abbrevRes map[string]*regexp.Regexp
}

// Option adjusts how a Lexicon matches.
type Option func(*Lexicon)

// WholeWordAbbreviations makes month abbreviations match only as whole words,
// so "market" no longer selects March. Full month names are unaffected.
func WholeWordAbbreviations() Option {
	return func(l *Lexicon) {
		l.abbrevRes = make(map[string]*regexp.Regexp)
		for _, m := range months {
			for _, a := range m.Abbreviations {
				l.abbrevRes[a] = regexp.MustCompile(`\b` + a + `\b`)
			}
		}
	}
}

// DefaultYears are the years covered by the default month map.
var DefaultYears = []int{2024, 2025}

// DefaultCommodities mirrors the set the indexers download.
var DefaultCommodities = []Commodity{
	{Name: "Gold", Ticker: "GC=F", Keywords: []string{"gold"}},
	{Name: "Crude Oil", Ticker: "CL=F", Keywords: []string{"oil"}},
}

var months = []Month{
	{Number: 1, Name: "january", Abbreviations: []string{"jan"}},
	{Number: 2, Name: "february", Abbreviations: []string{"feb"}},
	{Number: 3, Name: "march", Abbreviations: []string{"mar"}},
	{Number: 4, Name: "april", Abbreviations: []string{"apr"}},
	{Number: 5, Name: "may"},
	{Number: 6, Name: "june", Abbreviations: []string{"jun"}},
	{Number: 7, Name: "july", Abbreviations: []string{"jul"}},
	{Number: 8, Name: "august", Abbreviations: []string{"aug"}},
	{Number: 9, Name: "september", Abbreviations: []string{"sep", "sept"}},
	{Number: 10, Name: "october", Abbreviations: []string{"oct"}},
	{Number: 11, Name: "november", Abbreviations: []string{"nov"}},
	{Number: 12, Name: "december", Abbreviations: []string{"dec"}},
}

// New builds a lexicon over the given years and commodities. Empty arguments fall
// back to DefaultYears and DefaultCommodities.
func New(years []int, commodities []Commodity, opts ...Option) *Lexicon {
	if len(years) == 0 {
		years = DefaultYears
	}
	if len(commodities) == 0 {
		commodities = DefaultCommodities
	}
	l := &Lexicon{
		years:       append([]int(nil), years...),
		commodities: make([]Commodity, len(commodities)),
	}
	for i, c := range commodities {
		kws := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		if len(kws) == 0 {
			kws = []string{strings.ToLower(c.Name)}
		}
		l.commodities[i] = Commodity{Name: c.Name, Ticker: c.Ticker, Keywords: kws}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Default returns the lexicon used when no configuration overrides it.
func Default() *Lexicon { return New(nil, nil) }

// Years returns the configured years in order.
func (l *Lexicon) Years() []int { return append([]int(nil), l.years...) }

// Months returns the calendar months in order.
func (l *Lexicon) Months() []Month { return append([]Month(nil), months...) }

// Commodities returns the configured commodities in order.
func (l *Lexicon) Commodities() []Commodity {
	return append([]Commodity(nil), l.commodities...)
}

// CommodityNames returns the canonical commodity names in order.
func (l *Lexicon) CommodityNames() []string {
	out := make([]string, len(l.commodities))
	for i, c := range l.commodities {
		out[i] = c.Name
	}
	return out
}

// Tokens returns the YYYY-MM tokens of month m for every configured year.
func (l *Lexicon) Tokens(m Month) []string {
	out := make([]string, len(l.years))
	for i, y := range l.years {
		out[i] = Token(y, m.Number)
	}
	return out
}

// MonthMap returns every month spelling mapped to its tokens.
func (l *Lexicon) MonthMap() map[string][]string {
	out := make(map[string][]string)
	for _, m := range months {
		tokens := l.Tokens(m)
		out[m.Name] = tokens
		for _, a := range m.Abbreviations {
			out[a] = tokens
		}
	}
	return out
}

// MatchesMonth reports whether lowercase text mentions m. Names and
// abbreviations match as substrings unless WholeWordAbbreviations was given.
func (l *Lexicon) MatchesMonth(text string, m Month) bool {
	if strings.Contains(text, m.Name) {
		return true
	}
	for _, a := range m.Abbreviations {
		if re, ok := l.abbrevRes[a]; ok {
			if re.MatchString(text) {
				return true
			}
			continue
		}
		if strings.Contains(text, a) {
			return true
		}
	}
	return false
}

// Lookup maps a month spelling and a year to a token. It only succeeds for
// spellings and years the lexicon knows.
func (l *Lexicon) Lookup(monthName, year string) (string, bool) {
	tokens, ok := l.MonthMap()[strings.ToLower(strings.TrimSpace(monthName))]
	if !ok {
		return "", false
	}
	for _, t := range tokens {
		if strings.HasPrefix(t, year+"-") {
			return t, true
		}
	}
	return "", false
}

// Token formats a year and month number as YYYY-MM.
func Token(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// YearString is the literal searched for in questions to narrow month tokens.
func YearString(year int) string { return strconv.Itoa(year) }
