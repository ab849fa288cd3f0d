package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"commodity-rag/internal/prompt"
)

func TestQuery(t *testing.T) {
	ctx := prompt.Sections{
		Summaries:  "Monthly Summary for Gold in 2025-04:\nup\n",
		News:       "",
		Strategies: "Trading Strategy for Gold:\nbuy dips\n",
	}.Context()

	got, err := prompt.Query(ctx, "Should I buy gold?")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(got, "You are a commodity trading assistant. \n"+
		"Based on the following context, which includes monthly summaries, world news, and trading strategies, advise the user. \n"+
		"Consider all context carefully and justify your answer.\n"))
	require.Contains(t, got, "Context:\nMonthly Summary for Gold in 2025-04:\nup\n\n\n\n\nTrading Strategy for Gold:\nbuy dips\n\n\nQuestion: Should I buy gold?")
	require.True(t, strings.HasSuffix(got, "\n\nAnswer:"))
}

func TestQueryKeepsQuestionVerbatim(t *testing.T) {
	got, err := prompt.Query("", `oil <b>& "gold"</b>`)
	require.NoError(t, err)
	require.Contains(t, got, `Question: oil <b>& "gold"</b>`)
}

func TestSummary(t *testing.T) {
	got, err := prompt.Summary("Gold", "2025-04", "2025-04-01: Open=1.00, High=2.00, Low=0.50, Close=1.50")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "You are a financial analyst. Summarize the following daily price data for Gold in 2025-04.\n"))
	require.Contains(t, got, "Data:\n2025-04-01: Open=1.00")
	require.True(t, strings.HasSuffix(got, "Summary:"))
}

func TestTruncate(t *testing.T) {
	s, cut := prompt.Truncate("abcdef", 0)
	require.False(t, cut)
	require.Equal(t, "abcdef", s)

	s, cut = prompt.Truncate("abcdef", 4)
	require.True(t, cut)
	require.Equal(t, "abcd", s)

	s, cut = prompt.Truncate("héllo", 2)
	require.True(t, cut)
	require.Equal(t, "h", s)
}
