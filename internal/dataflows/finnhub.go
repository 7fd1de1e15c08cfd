package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantcortex/tradepilot/internal/config"
)

const finnhubVendorName = "finnhub"

// FinnhubClient serves company news and daily candles through the Finnhub
// REST API. It sits in both the price and news capability chains.
type FinnhubClient struct {
	client *resty.Client
	cache  *CacheManager
	retry  RetryConfig
	apiKey string
}

// NewFinnhubClient creates a new Finnhub news vendor.
func NewFinnhubClient(cfg *config.Config) *FinnhubClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "finnhub")
	cache := NewCacheManager(cacheDir, 6*time.Hour, cfg.CacheEnabled) // 6 hour cache for news

	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client: client,
		cache:  cache,
		retry:  retryFromConfig(cfg),
		apiKey: cfg.FinnhubAPIKey,
	}
}

func (fc *FinnhubClient) Name() string {
	return finnhubVendorName
}

type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// FetchNews gets news articles for a symbol within the date range.
func (fc *FinnhubClient) FetchNews(ctx context.Context, query string, start, end time.Time) (NewsPayload, error) {
	if fc.apiKey == "" {
		return NewsPayload{}, NewAuthError(finnhubVendorName, "API key not configured")
	}

	if err := ValidateSymbol(query); err != nil {
		return NewsPayload{}, NewAPIError(finnhubVendorName, "invalid symbol", err)
	}
	symbol := NormalizeSymbol(query)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"from":   start.Format("2006-01-02"),
		"to":     end.Format("2006-01-02"),
	}
	var cached NewsPayload
	if fc.cache.Get(finnhubVendorName, "company_news", cacheKey, &cached) {
		return cached, nil
	}

	var articles []NewsArticle
	err := WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol": symbol,
				"from":   start.Format("2006-01-02"),
				"to":     end.Format("2006-01-02"),
				"token":  fc.apiKey,
			}).
			Get("/company-news")

		if err != nil {
			return NewAPIError(finnhubVendorName, fmt.Sprintf("fetch news for %s", symbol), err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAuthError(finnhubVendorName, "API key rejected")
		case http.StatusTooManyRequests:
			return NewRateLimitError(finnhubVendorName, "rate limit exceeded")
		default:
			return NewAPIError(finnhubVendorName,
				fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
		}

		var items []finnhubNews
		if err := json.Unmarshal(resp.Body(), &items); err != nil {
			return NewAPIError(finnhubVendorName, "parse news response", err)
		}

		articles = make([]NewsArticle, 0, len(items))
		for _, item := range items {
			articles = append(articles, NewsArticle{
				Title:       item.Headline,
				Summary:     item.Summary,
				URL:         item.URL,
				Source:      item.Source,
				PublishedAt: time.Unix(item.DateTime, 0).UTC(),
				Categories:  finnhubCategories(item),
			})
		}
		return nil
	})
	if err != nil {
		return NewsPayload{}, err
	}

	payload := BuildNewsPayload(symbol, start, end, finnhubVendorName, articles)
	fc.cache.Set(finnhubVendorName, "company_news", cacheKey, payload)
	return payload, nil
}

// finnhubCandles is the column-oriented /stock/candle response. Status is
// "ok" or "no_data".
type finnhubCandles struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Volume    []float64 `json:"v"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// FetchPrices gets daily candles for the symbol within [start, end].
func (fc *FinnhubClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PricePayload, error) {
	if fc.apiKey == "" {
		return PricePayload{}, NewAuthError(finnhubVendorName, "API key not configured")
	}

	if err := ValidateSymbol(symbol); err != nil {
		return PricePayload{}, NewAPIError(finnhubVendorName, "invalid symbol", err)
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"from":   start.Format("2006-01-02"),
		"to":     end.Format("2006-01-02"),
	}
	var cached PricePayload
	if fc.cache.Get(finnhubVendorName, "stock_candle", cacheKey, &cached) {
		return cached, nil
	}

	var candles finnhubCandles
	err := WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":     symbol,
				"resolution": "D",
				"from":       fmt.Sprintf("%d", start.Unix()),
				"to":         fmt.Sprintf("%d", end.Unix()),
				"token":      fc.apiKey,
			}).
			Get("/stock/candle")

		if err != nil {
			return NewAPIError(finnhubVendorName, fmt.Sprintf("fetch candles for %s", symbol), err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAuthError(finnhubVendorName, "API key rejected")
		case http.StatusTooManyRequests:
			return NewRateLimitError(finnhubVendorName, "rate limit exceeded")
		default:
			return NewAPIError(finnhubVendorName,
				fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
		}

		if err := json.Unmarshal(resp.Body(), &candles); err != nil {
			return NewAPIError(finnhubVendorName, "parse candle response", err)
		}
		return nil
	})
	if err != nil {
		return PricePayload{}, err
	}

	// "no_data" means the vendor answered and had nothing for the range,
	// which is a legitimate empty payload.
	var rows []RawBar
	if candles.Status == "ok" {
		rows = candleRows(candles)
	}

	payload := BuildPricePayload(symbol, start, end, finnhubVendorName, rows, TimeframeDaily)
	fc.cache.Set(finnhubVendorName, "stock_candle", cacheKey, payload)
	return payload, nil
}

// candleRows flattens the column-oriented candle arrays into raw bars.
// Columns shorter than the timestamp axis truncate the row set.
func candleRows(candles finnhubCandles) []RawBar {
	n := len(candles.Timestamp)
	for _, col := range [][]float64{candles.Open, candles.High, candles.Low, candles.Close} {
		if len(col) < n {
			n = len(col)
		}
	}

	rows := make([]RawBar, 0, n)
	for i := 0; i < n; i++ {
		row := RawBar{
			Date:  time.Unix(candles.Timestamp[i], 0).UTC().Format("2006-01-02"),
			Open:  strconv.FormatFloat(candles.Open[i], 'f', -1, 64),
			High:  strconv.FormatFloat(candles.High[i], 'f', -1, 64),
			Low:   strconv.FormatFloat(candles.Low[i], 'f', -1, 64),
			Close: strconv.FormatFloat(candles.Close[i], 'f', -1, 64),
		}
		if i < len(candles.Volume) {
			row.Volume = strconv.FormatFloat(candles.Volume[i], 'f', -1, 64)
		}
		rows = append(rows, row)
	}
	return rows
}

func finnhubCategories(item finnhubNews) []string {
	var cats []string
	if item.Category != "" {
		cats = append(cats, item.Category)
	}
	if item.Related != "" {
		cats = append(cats, item.Related)
	}
	return cats
}

func retryFromConfig(cfg *config.Config) RetryConfig {
	retry := DefaultRetryConfig()
	if cfg.VendorMaxRetries > 0 {
		retry.MaxRetries = cfg.VendorMaxRetries
	}
	if cfg.VendorBaseDelay > 0 {
		retry.BaseDelay = cfg.VendorBaseDelay
	}
	if cfg.VendorMaxDelay > 0 {
		retry.MaxDelay = cfg.VendorMaxDelay
	}
	return retry
}
