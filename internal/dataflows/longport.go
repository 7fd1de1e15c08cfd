package dataflows

import (
	"context"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"

	"github.com/quantcortex/tradepilot/internal/config"
)

const longportVendorName = "longport"

// LongportClient serves daily candlesticks through the Longport OpenAPI.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

// NewLongportClient creates a new Longport price vendor. Construction
// requires credentials; the router treats a nil client as an auth failure
// at fetch time instead, so chains including longport still resolve.
func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		// Credentials missing: fetch reports KindAuth and the router
		// falls over.
		return &LongportClient{}, nil
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

func (lpc *LongportClient) Name() string {
	return longportVendorName
}

// InstrumentInfo is contract-level static data for an instrument, used to
// enrich derivative trade instructions before the safety gate sees them.
type InstrumentInfo struct {
	ContractSymbol string `json:"contract_symbol"`
	NameEn         string `json:"name_en"`
	Exchange       string `json:"exchange"`
	Currency       string `json:"currency"`
}

// StaticInfo fetches contract static data for one symbol.
func (lpc *LongportClient) StaticInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	if lpc.quoteCtx == nil {
		return nil, NewAuthError(longportVendorName, "API credentials not configured")
	}

	if err := ValidateSymbol(symbol); err != nil {
		return nil, NewAPIError(longportVendorName, "invalid symbol", err)
	}
	symbol = NormalizeSymbol(symbol)

	infos, err := lpc.quoteCtx.StaticInfo(ctx, []string{symbol})
	if err != nil {
		return nil, NewAPIError(longportVendorName, fmt.Sprintf("static info for %s", symbol), err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, NewAPIError(longportVendorName, fmt.Sprintf("no static info for %s", symbol), nil)
	}

	info := infos[0]
	return &InstrumentInfo{
		ContractSymbol: info.Symbol,
		NameEn:         info.NameEn,
		Exchange:       info.Exchange,
		Currency:       info.Currency,
	}, nil
}

// FetchPrices gets daily bars for the symbol within [start, end]. Longport
// is count-based, so the request over-fetches and the payload builder trims
// to the range.
func (lpc *LongportClient) FetchPrices(ctx context.Context, symbol string, start, end time.Time) (PricePayload, error) {
	if lpc.quoteCtx == nil {
		return PricePayload{}, NewAuthError(longportVendorName, "API credentials not configured")
	}

	if err := ValidateSymbol(symbol); err != nil {
		return PricePayload{}, NewAPIError(longportVendorName, "invalid symbol", err)
	}
	symbol = NormalizeSymbol(symbol)

	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		days = 1
	}

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(days), quote.AdjustTypeNo)
	if err != nil {
		return PricePayload{}, NewAPIError(longportVendorName, fmt.Sprintf("candlesticks for %s", symbol), err)
	}

	rows := make([]RawBar, 0, len(sticks))
	for _, stick := range sticks {
		rows = append(rows, RawBar{
			Date:   time.Unix(stick.Timestamp, 0).UTC().Format("2006-01-02"),
			Open:   stick.Open.String(),
			High:   stick.High.String(),
			Low:    stick.Low.String(),
			Close:  stick.Close.String(),
			Volume: fmt.Sprintf("%d", stick.Volume),
		})
	}

	return BuildPricePayload(symbol, start, end, longportVendorName, rows, TimeframeDaily), nil
}
