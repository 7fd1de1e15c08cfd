package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/quantcortex/tradepilot/internal/config"
)

const yahooVendorName = "yfinance"

// YahooFinanceClient serves daily price history through the Yahoo Finance
// chart API. No credentials are required.
type YahooFinanceClient struct {
	cache *CacheManager
	retry RetryConfig
}

// NewYahooFinanceClient creates a new Yahoo Finance price vendor.
func NewYahooFinanceClient(cfg *config.Config) *YahooFinanceClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo_finance")
	cache := NewCacheManager(cacheDir, 24*time.Hour, cfg.CacheEnabled) // 24 hour cache

	return &YahooFinanceClient{
		cache: cache,
		retry: retryFromConfig(cfg),
	}
}

func (yf *YahooFinanceClient) Name() string {
	return yahooVendorName
}

// FetchPrices gets daily bars for the symbol within [start, end].
func (yf *YahooFinanceClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PricePayload, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return PricePayload{}, NewAPIError(yahooVendorName, "invalid symbol", err)
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}
	var cached PricePayload
	if yf.cache.Get(yahooVendorName, "historical", cacheKey, &cached) {
		return cached, nil
	}

	var bars []Bar
	err := WithRetry(ctx, yf.retry, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		bars = bars[:0]
		for iter.Next() {
			b := iter.Bar()
			adj := b.AdjClose
			bars = append(bars, Bar{
				Date:     truncateDay(time.Unix(int64(b.Timestamp), 0).UTC()),
				Open:     b.Open,
				High:     b.High,
				Low:      b.Low,
				Close:    b.Close,
				AdjClose: &adj,
				Volume:   int64(b.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return NewAPIError(yahooVendorName, fmt.Sprintf("chart query for %s", symbol), err)
		}
		return nil
	})
	if err != nil {
		return PricePayload{}, err
	}

	payload := barsToPayload(symbol, start, end, yahooVendorName, bars)
	yf.cache.Set(yahooVendorName, "historical", cacheKey, payload)
	return payload, nil
}

// barsToPayload funnels already-typed bars through the canonical builder so
// SDK-sourced data obeys the same dedupe/range/ordering rules as CSV rows.
func barsToPayload(symbol string, start, end time.Time, source string, bars []Bar) PricePayload {
	rows := make([]RawBar, 0, len(bars))
	for _, b := range bars {
		row := RawBar{
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open.String(),
			High:   b.High.String(),
			Low:    b.Low.String(),
			Close:  b.Close.String(),
			Volume: fmt.Sprintf("%d", b.Volume),
		}
		if b.AdjClose != nil {
			row.AdjClose = b.AdjClose.String()
		}
		rows = append(rows, row)
	}
	return BuildPricePayload(symbol, start, end, source, rows, TimeframeDaily)
}
