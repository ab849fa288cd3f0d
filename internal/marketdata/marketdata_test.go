package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSince(t *testing.T) {
	now := date(2025, 4, 15)
	tests := []struct {
		period string
		want   time.Time
	}{
		{"1y", date(2024, 4, 15)},
		{"6mo", date(2024, 10, 15)},
		{"2wk", date(2025, 4, 1)},
		{"5d", date(2025, 4, 10)},
		{"ytd", date(2025, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := Since(now, tt.period)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "1", "0y", "1h", "max"} {
		_, err := Since(now, bad)
		require.ErrorIs(t, err, ErrInvalidPeriod, bad)
	}
}

func TestGroupByMonth(t *testing.T) {
	bars := []Bar{
		{Date: date(2025, 4, 2), Close: 3},
		{Date: date(2025, 3, 31), Close: 2},
		{Date: date(2025, 3, 3), Close: 1},
		{Date: date(2025, 4, 1), Close: 4},
	}
	months := GroupByMonth(bars)
	require.Len(t, months, 2)
	require.Equal(t, "2025-03", months[0].Token)
	require.Equal(t, "2025-04", months[1].Token)
	require.Equal(t, []float64{1, 2}, []float64{months[0].Bars[0].Close, months[0].Bars[1].Close})
	require.Equal(t, date(2025, 4, 1), months[1].Bars[0].Date)

	require.Empty(t, GroupByMonth(nil))
}

func TestFormatDaily(t *testing.T) {
	out := FormatDaily([]Bar{
		{Date: date(2025, 4, 1), Open: 3120.4, High: 3150, Low: 3101.123, Close: 3140.2},
		{Date: date(2025, 4, 2), Open: 1, High: 2, Low: 0.5, Close: 1.555},
	})
	require.Equal(t,
		"2025-04-01: Open=3120.40, High=3150.00, Low=3101.12, Close=3140.20\n"+
			"2025-04-02: Open=1.00, High=2.00, Low=0.50, Close=1.55", out)
}

func TestYahooHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/GC=F", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		// 2025-04-01 03:00 UTC is still March 31 in New York (gmtoffset -4h).
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"meta":{"gmtoffset":-14400},
			"timestamp":[1743476400,1743566400,1743652800],
			"indicators":{"quote":[{
				"open":[10.5,null,12],
				"high":[11,12,13],
				"low":[10,11,11.5],
				"close":[10.75,11.5,12.5]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	bars, err := NewYahoo(srv.URL, 0).History(context.Background(), "GC=F", "1y")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, date(2025, 3, 31), bars[0].Date)
	require.Equal(t, Bar{Date: date(2025, 4, 3), Open: 12, High: 13, Low: 11.5, Close: 12.5}, bars[1])
}

func TestYahooEmptyAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/NOPE":
			w.WriteHeader(http.StatusNotFound)
		case "/v8/finance/chart/EMPTY":
			_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		default:
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid range"}}}`))
		}
	}))
	defer srv.Close()
	y := NewYahoo(srv.URL, 0)
	ctx := context.Background()

	bars, err := y.History(ctx, "NOPE", "1y")
	require.NoError(t, err)
	require.Empty(t, bars)

	bars, err = y.History(ctx, "EMPTY", "1y")
	require.NoError(t, err)
	require.Empty(t, bars)

	_, err = y.History(ctx, "GC=F", "1y")
	require.ErrorContains(t, err, "Invalid range")

	_, err = y.History(ctx, "GC=F", "forever")
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCandleBars(t *testing.T) {
	bars := candleBars(
		[]int64{1743465600, 1743552000},
		[]float32{1, 2}, []float32{3, 4}, []float32{0.5, 1.5},
		[]float32{2.5},
	)
	require.Len(t, bars, 1)
	require.Equal(t, Bar{Date: date(2025, 4, 1), Open: 1, High: 3, Low: 0.5, Close: 2.5}, bars[0])
}

func TestFinnhubRoutesForexSymbols(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/forex/candle":
			assert.Equal(t, "OANDA:XAU_USD", r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(`{"s":"ok","t":[1743465600],"o":[3100],"h":[3150],"l":[3090],"c":[3140],"v":[1]}`))
		case "/stock/candle":
			assert.Equal(t, "XOM", r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(`{"s":"ok","t":[1743465600],"o":[110],"h":[112],"l":[109],"c":[111],"v":[1]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newFinnhub("key", srv.URL, map[string]string{"GC=F": "OANDA:XAU_USD"})
	f.now = func() time.Time { return date(2025, 4, 15) }
	ctx := context.Background()

	bars, err := f.History(ctx, "GC=F", "1mo")
	require.NoError(t, err)
	require.Equal(t, []Bar{{Date: date(2025, 4, 1), Open: 3100, High: 3150, Low: 3090, Close: 3140}}, bars)

	bars, err = f.History(ctx, "XOM", "1mo")
	require.NoError(t, err)
	require.Equal(t, []Bar{{Date: date(2025, 4, 1), Open: 110, High: 112, Low: 109, Close: 111}}, bars)

	require.Equal(t, []string{"/forex/candle", "/stock/candle"}, paths)
}

func TestIsForex(t *testing.T) {
	assert.True(t, isForex("OANDA:XAU_USD"))
	assert.True(t, isForex("oanda:BCO_USD"))
	assert.False(t, isForex("GC=F"))
	assert.False(t, isForex("NASDAQ:AAPL"))
}
