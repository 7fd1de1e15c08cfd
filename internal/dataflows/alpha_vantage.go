package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantcortex/tradepilot/internal/config"
)

const alphaVantageVendorName = "alpha_vantage"

// AlphaVantageClient serves daily price history through the Alpha Vantage
// CSV endpoint.
type AlphaVantageClient struct {
	client *resty.Client
	cache  *CacheManager
	retry  RetryConfig
	apiKey string
}

// NewAlphaVantageClient creates a new Alpha Vantage price vendor.
func NewAlphaVantageClient(cfg *config.Config) *AlphaVantageClient {
	cacheDir := filepath.Join(cfg.DataCacheDir, "alpha_vantage")
	cache := NewCacheManager(cacheDir, 24*time.Hour, cfg.CacheEnabled)

	client := resty.New()
	client.SetBaseURL("https://www.alphavantage.co")
	client.SetTimeout(30 * time.Second)

	return &AlphaVantageClient{
		client: client,
		cache:  cache,
		retry:  retryFromConfig(cfg),
		apiKey: cfg.AlphaVantageAPIKey,
	}
}

func (av *AlphaVantageClient) Name() string {
	return alphaVantageVendorName
}

// FetchPrices gets daily bars for the symbol within [start, end].
func (av *AlphaVantageClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PricePayload, error) {
	if av.apiKey == "" {
		return PricePayload{}, NewAuthError(alphaVantageVendorName, "API key not configured")
	}

	if err := ValidateSymbol(symbol); err != nil {
		return PricePayload{}, NewAPIError(alphaVantageVendorName, "invalid symbol", err)
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}
	var cached PricePayload
	if av.cache.Get(alphaVantageVendorName, "daily", cacheKey, &cached) {
		return cached, nil
	}

	var payload PricePayload
	err := WithRetry(ctx, av.retry, func() error {
		resp, err := av.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"function":   "TIME_SERIES_DAILY_ADJUSTED",
				"symbol":     symbol,
				"outputsize": "full",
				"datatype":   "csv",
				"apikey":     av.apiKey,
			}).
			Get("/query")

		if err != nil {
			return NewAPIError(alphaVantageVendorName, fmt.Sprintf("fetch daily series for %s", symbol), err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewAuthError(alphaVantageVendorName, "API key rejected")
		case http.StatusTooManyRequests:
			return NewRateLimitError(alphaVantageVendorName, "rate limit exceeded")
		default:
			return NewAPIError(alphaVantageVendorName,
				fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
		}

		body := resp.String()
		// Errors come back as JSON notes even when datatype=csv is
		// requested. The "premium endpoint" marker is the vendor's way of
		// saying the free-tier quota is exhausted.
		if strings.HasPrefix(strings.TrimSpace(body), "{") {
			lower := strings.ToLower(body)
			switch {
			case strings.Contains(lower, "premium endpoint"),
				strings.Contains(lower, "call frequency"),
				strings.Contains(lower, "rate limit"):
				return NewRateLimitError(alphaVantageVendorName, "free-tier quota exhausted")
			case strings.Contains(lower, "invalid api key"):
				return NewAuthError(alphaVantageVendorName, "API key rejected")
			default:
				return NewAPIError(alphaVantageVendorName, "vendor returned an error note", nil)
			}
		}

		rows, err := ParseCSVBars(strings.NewReader(body))
		if err != nil {
			payload = ErrorPricePayload(symbol, start, end, alphaVantageVendorName,
				TimeframeDaily, fmt.Sprintf("malformed csv: %v", err))
			return nil
		}

		payload = BuildPricePayload(symbol, start, end, alphaVantageVendorName, rows, TimeframeDaily)
		return nil
	})
	if err != nil {
		return PricePayload{}, err
	}

	if payload.OK() {
		av.cache.Set(alphaVantageVendorName, "daily", cacheKey, payload)
	}
	return payload, nil
}
