package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcortex/tradepilot/internal/config"
)

// Router resolves capability requests against configured vendor fallback
// chains. Vendor order is authoritative and fixed at construction: a given
// configuration always fails over identically, which keeps backtests and
// incident debugging reproducible. Vendors are tried strictly one at a
// time; parallel fan-out would break first-success-wins and waste quota on
// vendors that lose the race.
type Router struct {
	priceChain []PriceVendor
	newsChain  []NewsVendor
	logger     zerolog.Logger
}

// NewRouter builds a router from the configured chains. Unknown vendor
// names fail here, not at request time.
func NewRouter(cfg *config.Config, logger zerolog.Logger) (*Router, error) {
	r := &Router{logger: logger}

	for _, name := range cfg.DataVendors[config.CapabilityPriceHistory] {
		vendor, err := newPriceVendor(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", config.CapabilityPriceHistory, err)
		}
		r.priceChain = append(r.priceChain, vendor)
	}

	for _, name := range cfg.DataVendors[config.CapabilityNews] {
		vendor, err := newNewsVendor(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", config.CapabilityNews, err)
		}
		r.newsChain = append(r.newsChain, vendor)
	}

	return r, nil
}

// NewRouterFromVendors builds a router over explicit vendor chains.
func NewRouterFromVendors(prices []PriceVendor, news []NewsVendor, logger zerolog.Logger) *Router {
	return &Router{priceChain: prices, newsChain: news, logger: logger}
}

func newPriceVendor(name string, cfg *config.Config) (PriceVendor, error) {
	switch name {
	case yahooVendorName:
		return NewYahooFinanceClient(cfg), nil
	case alphaVantageVendorName:
		return NewAlphaVantageClient(cfg), nil
	case finnhubVendorName:
		return NewFinnhubClient(cfg), nil
	case longportVendorName:
		return NewLongportClient(cfg)
	default:
		return nil, fmt.Errorf("unknown price vendor %q", name)
	}
}

func newNewsVendor(name string, cfg *config.Config) (NewsVendor, error) {
	switch name {
	case finnhubVendorName:
		return NewFinnhubClient(cfg), nil
	case googleNewsVendorName:
		return NewGoogleNewsClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown news vendor %q", name)
	}
}

// RoutePrices tries each configured price vendor in order and returns the
// first usable payload. An empty record set without a vendor error counts
// as success: the vendor answered and genuinely had nothing for the range.
// When every vendor fails the terminal payload summarizes the per-vendor
// failures in Meta.Error; the method never returns an error itself.
func (r *Router) RoutePrices(ctx context.Context, symbol string, start, end time.Time) PricePayload {
	var failures []string

	for _, vendor := range r.priceChain {
		payload, err := vendor.FetchPrices(ctx, symbol, start, end)
		if err != nil {
			r.logger.Warn().
				Str("vendor", vendor.Name()).
				Str("symbol", symbol).
				Str("kind", string(KindOf(err))).
				Err(err).
				Msg("price vendor failed, trying next")
			failures = append(failures, fmt.Sprintf("%s: %v", vendor.Name(), err))
			continue
		}
		if !payload.OK() {
			r.logger.Warn().
				Str("vendor", vendor.Name()).
				Str("symbol", symbol).
				Str("error", payload.Meta.Error).
				Msg("price vendor returned error payload, trying next")
			failures = append(failures, fmt.Sprintf("%s: %s", vendor.Name(), payload.Meta.Error))
			continue
		}

		r.logger.Debug().
			Str("vendor", vendor.Name()).
			Str("symbol", symbol).
			Int("records", payload.Meta.RecordCount).
			Msg("price data served")
		return payload
	}

	if len(failures) == 0 {
		failures = append(failures, "no price vendors configured")
	}
	return ErrorPricePayload(symbol, start, end, "", TimeframeDaily,
		"all price vendors failed: "+strings.Join(failures, "; "))
}

// RouteNews tries each configured news vendor in order. Unlike prices, an
// empty article list is a terminal condition for the vendor and triggers
// fallover: reporting "no news" when a vendor simply came up dry invites
// the downstream analysis to fabricate context.
func (r *Router) RouteNews(ctx context.Context, query string, start, end time.Time) NewsPayload {
	var failures []string

	for _, vendor := range r.newsChain {
		payload, err := vendor.FetchNews(ctx, query, start, end)
		if err != nil {
			r.logger.Warn().
				Str("vendor", vendor.Name()).
				Str("query", query).
				Str("kind", string(KindOf(err))).
				Err(err).
				Msg("news vendor failed, trying next")
			failures = append(failures, fmt.Sprintf("%s: %v", vendor.Name(), err))
			continue
		}
		if !payload.OK() {
			r.logger.Warn().
				Str("vendor", vendor.Name()).
				Str("query", query).
				Str("error", payload.Meta.Error).
				Msg("news vendor returned error payload, trying next")
			failures = append(failures, fmt.Sprintf("%s: %s", vendor.Name(), payload.Meta.Error))
			continue
		}
		if payload.Empty() {
			r.logger.Warn().
				Str("vendor", vendor.Name()).
				Str("query", query).
				Msg("news vendor returned no articles, trying next")
			failures = append(failures, fmt.Sprintf("%s: no articles returned", vendor.Name()))
			continue
		}

		r.logger.Debug().
			Str("vendor", vendor.Name()).
			Str("query", query).
			Int("articles", payload.Meta.RecordCount).
			Msg("news served")
		return payload
	}

	if len(failures) == 0 {
		failures = append(failures, "no news vendors configured")
	}
	return ErrorNewsPayload(query, start, end, "",
		"all news vendors failed: "+strings.Join(failures, "; "))
}
