package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"commodity-rag/internal/lexicon"
)

func TestMonthMap(t *testing.T) {
	m := lexicon.Default().MonthMap()

	require.Equal(t, []string{"2024-01", "2025-01"}, m["january"])
	require.Equal(t, []string{"2024-01", "2025-01"}, m["jan"])
	require.Equal(t, []string{"2024-09", "2025-09"}, m["sept"])
	require.Equal(t, []string{"2024-05", "2025-05"}, m["may"])
	require.Len(t, m["december"], 2)
}

func TestLookup(t *testing.T) {
	l := lexicon.Default()

	tok, ok := l.Lookup("March", "2025")
	require.True(t, ok)
	require.Equal(t, "2025-03", tok)

	_, ok = l.Lookup("March", "2023")
	require.False(t, ok)

	_, ok = l.Lookup("Smarch", "2025")
	require.False(t, ok)
}

func TestMatchesMonthAbbreviationSubstring(t *testing.T) {
	l := lexicon.Default()
	march := l.Months()[2]
	january := l.Months()[0]

	require.True(t, l.MatchesMonth("gold in mar 2025", march))
	require.True(t, l.MatchesMonth("gold in march", march))
	require.True(t, l.MatchesMonth("gold outlook for jan2025?", january))
	require.True(t, l.MatchesMonth("how is the gold market", march))
	require.False(t, l.MatchesMonth("gold outlook", january))
}

func TestMatchesMonthWholeWordAbbreviations(t *testing.T) {
	l := lexicon.New(nil, nil, lexicon.WholeWordAbbreviations())
	march := l.Months()[2]

	require.True(t, l.MatchesMonth("gold in mar 2025", march))
	require.True(t, l.MatchesMonth("gold in march", march))
	require.False(t, l.MatchesMonth("how is the gold market", march))
	require.False(t, l.MatchesMonth("gold outlook for jan2025?", l.Months()[0]))
}

func TestNewCustomCommodities(t *testing.T) {
	l := lexicon.New([]int{2023}, []lexicon.Commodity{{Name: "Silver", Ticker: "SI=F"}})

	require.Equal(t, []string{"Silver"}, l.CommodityNames())
	require.Equal(t, []string{"silver"}, l.Commodities()[0].Keywords)
	require.Equal(t, []string{"2023-07"}, l.MonthMap()["july"])
}
