package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_VendorChains(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"yfinance", "alpha_vantage", "finnhub", "longport"}, cfg.DataVendors[CapabilityPriceHistory])
	assert.Equal(t, []string{"finnhub", "google_news"}, cfg.DataVendors[CapabilityNews])
	assert.Equal(t, 20, cfg.MinRiskObservations)
	assert.Equal(t, 252.0, cfg.TradingPeriodsPerYear)
	assert.Equal(t, 0.95, cfg.RiskConfidence)
	assert.Equal(t, BrokerModePaper, cfg.BrokerMode)
	assert.False(t, cfg.AutoExecuteTrades, "execution must be opt-in")
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PRICE_VENDORS", "longport, yfinance")
	t.Setenv("RESTRICTED_TICKERS", "EVIL,SCAM")
	t.Setenv("BROKER_MODE", "live")
	t.Setenv("MAX_POSITION_SIZE", "5000")
	t.Setenv("MIN_RISK_OBSERVATIONS", "30")

	cfg := DefaultConfig()

	assert.Equal(t, []string{"longport", "yfinance"}, cfg.DataVendors[CapabilityPriceHistory])
	assert.Equal(t, []string{"EVIL", "SCAM"}, cfg.RestrictedTickers)
	assert.Equal(t, BrokerModeLive, cfg.BrokerMode)
	assert.Equal(t, 5000.0, cfg.MaxPositionSize)
	assert.Equal(t, 30, cfg.MinRiskObservations)
}

func validTestConfig() *Config {
	return &Config{
		DataVendors: map[Capability][]string{
			CapabilityPriceHistory: {"yfinance"},
			CapabilityNews:         {"finnhub"},
		},
		RiskConfidence:    0.95,
		RestrictedTickers: []string{"EVIL"},
		MaxPositionSize:   5000,
		PositionLimitMode: LimitAbsolute,
		BrokerMode:        BrokerModePaper,
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, validTestConfig().Validate(zerolog.Nop()))
}

func TestValidate_RejectsEmptyPriceChain(t *testing.T) {
	cfg := validTestConfig()
	cfg.DataVendors[CapabilityPriceHistory] = nil

	err := cfg.Validate(zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(CapabilityPriceHistory))
}

func TestValidate_RejectsInvalidBrokerMode(t *testing.T) {
	cfg := validTestConfig()
	cfg.BrokerMode = "margin"

	require.Error(t, cfg.Validate(zerolog.Nop()))
}

func TestValidate_RejectsInvalidLimitMode(t *testing.T) {
	cfg := validTestConfig()
	cfg.PositionLimitMode = "percent"

	require.Error(t, cfg.Validate(zerolog.Nop()))
}

func TestValidate_FractionModeNeedsPortfolioValue(t *testing.T) {
	cfg := validTestConfig()
	cfg.PositionLimitMode = LimitPortfolioFraction
	cfg.PortfolioValue = 0

	err := cfg.Validate(zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portfolio_value")

	cfg.PortfolioValue = 100000
	require.NoError(t, cfg.Validate(zerolog.Nop()))
}

func TestValidate_RejectsInvalidConfidence(t *testing.T) {
	for _, conf := range []float64{0, 1, -1, 2} {
		cfg := validTestConfig()
		cfg.RiskConfidence = conf
		require.Error(t, cfg.Validate(zerolog.Nop()), "confidence %v", conf)
	}
}

func TestValidate_MissingSafetySettingsAreWarningsNotErrors(t *testing.T) {
	cfg := validTestConfig()
	cfg.RestrictedTickers = nil
	cfg.MaxPositionSize = 0

	require.NoError(t, cfg.Validate(zerolog.Nop()))
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		ProjectDir:   dir,
		ResultsDir:   filepath.Join(dir, "results"),
		DataDir:      filepath.Join(dir, "data"),
		DataCacheDir: filepath.Join(dir, "data", "cache"),
	}

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(dir, "data", "cache"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"a"}, splitList("a,,  "))
	assert.Empty(t, splitList(""))
}
