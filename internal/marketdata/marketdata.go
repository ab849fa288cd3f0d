// Package marketdata fetches daily OHLC history and shapes it into the
// monthly text blocks the commodity indexer summarizes.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Bar is one trading day. Date is the exchange-local calendar date at midnight UTC.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Provider returns daily bars for a ticker over a lookback period such as "1y",
// oldest first. An unknown ticker yields no bars rather than an error.
type Provider interface {
	Name() string
	History(ctx context.Context, ticker, period string) ([]Bar, error)
}

// Month is the bars of one calendar month.
type Month struct {
	Token string // YYYY-MM
	Bars  []Bar
}

var (
	ErrInvalidPeriod = errors.New("invalid lookback period")

	periodRe = regexp.MustCompile(`^(\d+)(d|wk|mo|y)$`)
)

// Since resolves period relative to now. Supported forms are Nd, Nwk, Nmo, Ny
// and "ytd".
func Since(now time.Time, period string) (time.Time, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "ytd" {
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	}
	m := periodRe.FindStringSubmatch(period)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	n, _ := strconv.Atoi(m[1])
	if n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	switch m[2] {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	default:
		return now.AddDate(-n, 0, 0), nil
	}
}

// GroupByMonth buckets bars by calendar month, months ascending and bars in
// date order within each month.
func GroupByMonth(bars []Bar) []Month {
	sorted := append([]Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var out []Month
	for _, b := range sorted {
		tok := b.Date.Format("2006-01")
		if len(out) == 0 || out[len(out)-1].Token != tok {
			out = append(out, Month{Token: tok})
		}
		out[len(out)-1].Bars = append(out[len(out)-1].Bars, b)
	}
	return out
}

// FormatDaily renders one line per bar:
// "2025-04-01: Open=3120.40, High=3150.00, Low=3101.10, Close=3140.20".
func FormatDaily(bars []Bar) string {
	lines := make([]string, len(bars))
	for i, b := range bars {
		lines[i] = fmt.Sprintf("%s: Open=%.2f, High=%.2f, Low=%.2f, Close=%.2f",
			b.Date.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close)
	}
	return strings.Join(lines, "\n")
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
