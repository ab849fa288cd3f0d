package answer

import "strings"

const (
	// AnswerMarker ends the query prompt; models that echo the prompt put their
	// reply after it.
	AnswerMarker = "Answer:"
	// SummaryMarker ends the monthly summary prompt.
	SummaryMarker = "Summary:"
)

// turnTokens are chat-template boundaries that small chat models leak into output.
var turnTokens = []string{"</s>", "<|assistant|>"}

// AfterMarker returns the trimmed text following the last occurrence of marker,
// or the whole trimmed text when the marker is absent.
func AfterMarker(text, marker string) string {
	if marker != "" {
		if i := strings.LastIndex(text, marker); i >= 0 {
			text = text[i+len(marker):]
		}
	}
	return strings.TrimSpace(text)
}

// StripTurnTokens removes any run of leading turn tokens.
func StripTurnTokens(text string) string {
	text = strings.TrimSpace(text)
	for {
		stripped := false
		for _, tok := range turnTokens {
			if strings.HasPrefix(text, tok) {
				text = strings.TrimSpace(strings.TrimPrefix(text, tok))
				stripped = true
			}
		}
		if !stripped {
			return text
		}
	}
}

// Clean turns raw model output for a query prompt into the user-facing answer.
func Clean(raw string) string {
	return StripTurnTokens(AfterMarker(raw, AnswerMarker))
}

// CleanSummary turns raw model output for a summary prompt into the stored summary.
func CleanSummary(raw string) string {
	return StripTurnTokens(AfterMarker(raw, SummaryMarker))
}
