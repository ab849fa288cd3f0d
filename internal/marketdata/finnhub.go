package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
)

// forexExchanges are the Finnhub symbol prefixes served by the forex candle
// endpoint rather than the stock one.
var forexExchanges = map[string]bool{
	"OANDA":   true,
	"FXCM":    true,
	"FOREX":   true,
	"FXPRO":   true,
	"OCTAFX":  true,
	"FXCMINT": true,
}

// Finnhub reads daily candles from Finnhub. Symbols maps the configured
// tickers to Finnhub symbols (for example GC=F to OANDA:XAU_USD); unmapped
// tickers are sent as is.
type Finnhub struct {
	client  *finnhub.DefaultApiService
	symbols map[string]string
	now     func() time.Time
}

func NewFinnhub(apiKey string, symbols map[string]string) *Finnhub {
	return newFinnhub(apiKey, "", symbols)
}

// newFinnhub points the client at baseURL when it is set.
func newFinnhub(apiKey, baseURL string, symbols map[string]string) *Finnhub {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	if baseURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: baseURL}}
	}
	client := finnhub.NewAPIClient(cfg).DefaultApi
	return &Finnhub{client: client, symbols: symbols, now: time.Now}
}

func (f *Finnhub) Name() string { return "finnhub" }

func (f *Finnhub) History(ctx context.Context, ticker, period string) ([]Bar, error) {
	now := f.now()
	from, err := Since(now, period)
	if err != nil {
		return nil, err
	}
	symbol := ticker
	if s, ok := f.symbols[ticker]; ok && s != "" {
		symbol = s
	}
	if isForex(symbol) {
		res, _, err := f.client.ForexCandles(ctx).
			Symbol(symbol).
			Resolution("D").
			From(from.Unix()).
			To(now.Unix()).
			Execute()
		if err != nil {
			return nil, fmt.Errorf("finnhub forex candles %s: %w", symbol, err)
		}
		if res.GetS() != "ok" {
			return nil, nil
		}
		return candleBars(forexTimes(res.GetT()), res.GetO(), res.GetH(), res.GetL(), res.GetC()), nil
	}

	res, _, err := f.client.StockCandles(ctx).
		Symbol(symbol).
		Resolution("D").
		From(from.Unix()).
		To(now.Unix()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if res.GetS() != "ok" {
		return nil, nil
	}
	return candleBars(res.GetT(), res.GetO(), res.GetH(), res.GetL(), res.GetC()), nil
}

// isForex reports whether symbol is an exchange-prefixed forex pair such as
// OANDA:XAU_USD.
func isForex(symbol string) bool {
	exchange, _, ok := strings.Cut(symbol, ":")
	return ok && forexExchanges[strings.ToUpper(exchange)]
}

// forexTimes converts the float32 timestamps of the forex endpoint, snapping
// them to the hour to undo float32 rounding.
func forexTimes(ts []float32) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = time.Unix(int64(t), 0).Round(time.Hour).Unix()
	}
	return out
}

// candleBars zips Finnhub's column arrays, stopping at the shortest one.
func candleBars(t []int64, o, h, l, c []float32) []Bar {
	n := min(len(t), len(o), len(h), len(l), len(c))
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, Bar{
			Date:  day(time.Unix(t[i], 0).UTC()),
			Open:  float64(o[i]),
			High:  float64(h[i]),
			Low:   float64(l[i]),
			Close: float64(c[i]),
		})
	}
	return bars
}
