package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// BrokerMode selects between simulated and real-money execution.
type BrokerMode string

const (
	BrokerModePaper BrokerMode = "paper"
	BrokerModeLive  BrokerMode = "live"
)

// PositionLimitMode controls how MaxPositionSize is interpreted.
type PositionLimitMode string

const (
	// LimitAbsolute treats MaxPositionSize as a dollar cap per trade.
	LimitAbsolute PositionLimitMode = "absolute"
	// LimitPortfolioFraction treats MaxPositionSize as a fraction of
	// PortfolioValue.
	LimitPortfolioFraction PositionLimitMode = "portfolio_fraction"
)

// Capability names a logical data request the router can serve.
type Capability string

const (
	CapabilityPriceHistory Capability = "price_history"
	CapabilityNews         Capability = "news"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LogLevel string `json:"log_level"`
	Debug    bool   `json:"debug"`

	CacheEnabled bool `json:"cache_enabled"`

	// Vendor fallback chains, one ordered list per capability. Order is
	// authoritative: the router tries vendors strictly in this sequence.
	DataVendors map[Capability][]string `json:"data_vendors"`

	// Vendor retry tuning for rate-limited responses.
	VendorMaxRetries int           `json:"vendor_max_retries"`
	VendorBaseDelay  time.Duration `json:"vendor_base_delay"`
	VendorMaxDelay   time.Duration `json:"vendor_max_delay"`

	// Risk engine tuning.
	MinRiskObservations   int     `json:"min_risk_observations"`
	TradingPeriodsPerYear float64 `json:"trading_periods_per_year"`
	RiskConfidence        float64 `json:"risk_confidence"`

	// Order-safety gate.
	RestrictedTickers []string          `json:"restricted_tickers"`
	MaxPositionSize   float64           `json:"max_position_size"`
	PositionLimitMode PositionLimitMode `json:"position_limit_mode"`
	PortfolioValue    float64           `json:"portfolio_value"`
	BrokerMode        BrokerMode        `json:"broker_mode"`
	AutoExecuteTrades bool              `json:"auto_execute_trades"`

	// Vendor credentials.
	FinnhubAPIKey      string `json:"finnhub_api_key"`
	AlphaVantageAPIKey string `json:"alpha_vantage_api_key"`

	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// Broker credentials.
	BrokerAPIKey    string `json:"broker_api_key"`
	BrokerAPISecret string `json:"broker_api_secret"`
	BrokerBaseURL   string `json:"broker_base_url"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		ResultsDir:   filepath.Join(currentDir, "results"),
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),

		LogLevel: "info",
		Debug:    false,

		CacheEnabled: true,

		DataVendors: map[Capability][]string{
			CapabilityPriceHistory: {"yfinance", "alpha_vantage", "finnhub", "longport"},
			CapabilityNews:         {"finnhub", "google_news"},
		},

		VendorMaxRetries: 3,
		VendorBaseDelay:  1 * time.Second,
		VendorMaxDelay:   30 * time.Second,

		MinRiskObservations:   20,
		TradingPeriodsPerYear: 252,
		RiskConfidence:        0.95,

		PositionLimitMode: LimitAbsolute,
		BrokerMode:        BrokerModePaper,
		AutoExecuteTrades: false,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("TRADEPILOT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = enabled
		}
	}

	if val := os.Getenv("PRICE_VENDORS"); val != "" {
		c.DataVendors[CapabilityPriceHistory] = splitList(val)
	}
	if val := os.Getenv("NEWS_VENDORS"); val != "" {
		c.DataVendors[CapabilityNews] = splitList(val)
	}

	if val := os.Getenv("VENDOR_MAX_RETRIES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.VendorMaxRetries = v
		}
	}

	if val := os.Getenv("MIN_RISK_OBSERVATIONS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MinRiskObservations = v
		}
	}
	if val := os.Getenv("RISK_CONFIDENCE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.RiskConfidence = v
		}
	}

	if val := os.Getenv("RESTRICTED_TICKERS"); val != "" {
		c.RestrictedTickers = splitList(val)
	}
	if val := os.Getenv("MAX_POSITION_SIZE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.MaxPositionSize = v
		}
	}
	if val := os.Getenv("POSITION_LIMIT_MODE"); val != "" {
		c.PositionLimitMode = PositionLimitMode(val)
	}
	if val := os.Getenv("PORTFOLIO_VALUE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.PortfolioValue = v
		}
	}
	if val := os.Getenv("BROKER_MODE"); val != "" {
		c.BrokerMode = BrokerMode(val)
	}
	if val := os.Getenv("AUTO_EXECUTE_TRADES"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.AutoExecuteTrades = enabled
		}
	}

	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_API_KEY"); val != "" {
		c.AlphaVantageAPIKey = val
	}
	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("BROKER_API_KEY"); val != "" {
		c.BrokerAPIKey = val
	}
	if val := os.Getenv("BROKER_API_SECRET"); val != "" {
		c.BrokerAPISecret = val
	}
	if val := os.Getenv("BROKER_BASE_URL"); val != "" {
		c.BrokerBaseURL = val
	}
}

// Validate rejects configurations the pipeline cannot run with and logs
// warnings for settings that would otherwise silently widen permissions.
func (c *Config) Validate(logger zerolog.Logger) error {
	if len(c.DataVendors) == 0 {
		return fmt.Errorf("no data vendors configured")
	}
	if chain := c.DataVendors[CapabilityPriceHistory]; len(chain) == 0 {
		return fmt.Errorf("no vendors configured for %s", CapabilityPriceHistory)
	}

	switch c.BrokerMode {
	case BrokerModePaper, BrokerModeLive:
	default:
		return fmt.Errorf("invalid broker mode %q", c.BrokerMode)
	}

	switch c.PositionLimitMode {
	case LimitAbsolute, LimitPortfolioFraction:
	default:
		return fmt.Errorf("invalid position limit mode %q", c.PositionLimitMode)
	}

	if c.PositionLimitMode == LimitPortfolioFraction && c.PortfolioValue <= 0 {
		return fmt.Errorf("portfolio_value must be set when position limit mode is %s", LimitPortfolioFraction)
	}

	if c.RiskConfidence <= 0 || c.RiskConfidence >= 1 {
		return fmt.Errorf("risk confidence must be in (0, 1), got %v", c.RiskConfidence)
	}

	// Missing safety settings are permitted but never silent.
	if len(c.RestrictedTickers) == 0 {
		logger.Warn().Msg("restricted_tickers is empty: no ticker restrictions will be enforced")
	}
	if c.MaxPositionSize <= 0 {
		logger.Warn().Msg("max_position_size is unset: position sizing will not be capped")
	}
	if c.BrokerMode == BrokerModeLive && !c.AutoExecuteTrades {
		logger.Warn().Msg("broker mode is live but auto_execute_trades is off: all orders will be rejected at the gate")
	}

	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
