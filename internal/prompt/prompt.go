package prompt

import (
	"strings"
	"text/template"
)

const queryText = `You are a commodity trading assistant. 
Based on the following context, which includes monthly summaries, world news, and trading strategies, advise the user. 
Consider all context carefully and justify your answer.

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

const summaryText = `You are a financial analyst. Summarize the following daily price data for {{.Commodity}} in {{.Month}}.
Write a short paragraph describing the trend, highs, lows, and any notable observations.

Data:
{{.Data}}

Summary:`

var (
	queryTmpl   = template.Must(template.New("query").Parse(queryText))
	summaryTmpl = template.Must(template.New("summary").Parse(summaryText))
)

// Sections are the three labeled context blocks, each possibly empty.
type Sections struct {
	Summaries  string
	News       string
	Strategies string
}

// Context joins the blocks with blank lines in the fixed order
// summaries, news, strategies.
func (s Sections) Context() string {
	return s.Summaries + "\n\n" + s.News + "\n\n" + s.Strategies
}

// Query fills the assistant template with the context and the verbatim question.
func Query(context, question string) (string, error) {
	var b strings.Builder
	err := queryTmpl.Execute(&b, struct{ Context, Question string }{context, question})
	return b.String(), err
}

// Summary fills the monthly price summary template.
func Summary(commodity, month, data string) (string, error) {
	var b strings.Builder
	err := summaryTmpl.Execute(&b, struct{ Commodity, Month, Data string }{commodity, month, data})
	return b.String(), err
}

// Truncate cuts context to at most max bytes on a rune boundary. max <= 0 means
// unbounded. The second result reports whether anything was cut.
func Truncate(context string, max int) (string, bool) {
	if max <= 0 || len(context) <= max {
		return context, false
	}
	cut := max
	for cut > 0 && !isRuneStart(context[cut]) {
		cut--
	}
	return context[:cut], true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
