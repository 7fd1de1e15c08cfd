package dataflows

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe identifies the bar interval of a price payload.
type Timeframe string

const (
	TimeframeDaily Timeframe = "daily"
)

// TimeframeIntraday returns the intraday timeframe for an interval in
// minutes, e.g. "intraday-5".
func TimeframeIntraday(minutes int) Timeframe {
	return Timeframe("intraday-" + strconv.Itoa(minutes))
}

// Bar is a single OHLCV record. AdjClose is nil when the vendor does not
// provide adjusted prices.
type Bar struct {
	Date     time.Time        `json:"date"`
	Open     decimal.Decimal  `json:"open"`
	High     decimal.Decimal  `json:"high"`
	Low      decimal.Decimal  `json:"low"`
	Close    decimal.Decimal  `json:"close"`
	AdjClose *decimal.Decimal `json:"adjusted_close,omitempty"`
	Volume   int64            `json:"volume"`
}

// PayloadMeta carries bookkeeping shared by every payload. Error is empty
// on success; a non-empty Error still leaves the payload well-formed so
// callers branch on the field instead of catching anything.
type PayloadMeta struct {
	RecordCount int       `json:"record_count"`
	Timeframe   Timeframe `json:"timeframe,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// PricePayload is the canonical envelope every price vendor must produce.
// Records are sorted ascending by date with no duplicates. Zero records
// with an empty Meta.Error means the vendor genuinely had nothing for the
// range, which is distinct from a vendor failure.
type PricePayload struct {
	Symbol    string      `json:"symbol"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
	Source    string      `json:"source"`
	Records   []Bar       `json:"records"`
	Meta      PayloadMeta `json:"meta"`
}

// OK reports whether the payload carries no vendor error.
func (p PricePayload) OK() bool {
	return p.Meta.Error == ""
}

// Empty reports whether the payload holds no bars.
func (p PricePayload) Empty() bool {
	return len(p.Records) == 0
}

// NewsArticle is a normalized news item.
type NewsArticle struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Categories  []string  `json:"categories,omitempty"`
	Sentiment   *float64  `json:"sentiment,omitempty"`
}

// NewsPayload is the canonical envelope for news queries. Unlike price
// payloads, an empty article list is treated as a vendor failure by the
// router: serving "no news" risks the downstream analysis fabricating a
// narrative from stale context.
type NewsPayload struct {
	Query     string        `json:"query"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Source    string        `json:"source"`
	Articles  []NewsArticle `json:"articles"`
	Meta      PayloadMeta   `json:"meta"`
}

// OK reports whether the payload carries no vendor error.
func (p NewsPayload) OK() bool {
	return p.Meta.Error == ""
}

// Empty reports whether the payload holds no articles.
func (p NewsPayload) Empty() bool {
	return len(p.Articles) == 0
}

// PriceVendor fetches historical bars for one symbol. Implementations
// return a typed *VendorError for expected failure modes so the router can
// pick between retry and fallover.
type PriceVendor interface {
	Name() string
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PricePayload, error)
}

// NewsVendor fetches articles matching a query within a date range.
type NewsVendor interface {
	Name() string
	FetchNews(ctx context.Context, query string, start, end time.Time) (NewsPayload, error)
}
