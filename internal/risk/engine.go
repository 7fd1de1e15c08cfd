// Package risk computes historical-simulation risk measures over canonical
// price payloads.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantcortex/tradepilot/internal/config"
	"github.com/quantcortex/tradepilot/internal/dataflows"
)

// ErrInsufficientHistory is reported when a payload holds some returns but
// fewer than the configured minimum, so VaR/ES would not be statistically
// meaningful. Zero observations is not an error; see Report.NoData.
var ErrInsufficientHistory = errors.New("insufficient price history")

// InsufficientHistoryError carries the observation counts behind
// ErrInsufficientHistory.
type InsufficientHistoryError struct {
	Symbol       string
	Observations int
	Minimum      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient price history for %s: %d returns, need at least %d",
		e.Symbol, e.Observations, e.Minimum)
}

func (e *InsufficientHistoryError) Unwrap() error {
	return ErrInsufficientHistory
}

// Return is one dated simple return.
type Return struct {
	Date  time.Time
	Value float64
}

// Report is the risk engine's output. When NoData is set the payload held
// no bars at all and every measure is zero; callers skip the quantitative
// section instead of treating it as a failure.
type Report struct {
	Symbol               string    `json:"symbol"`
	NoData               bool      `json:"no_data"`
	Observations         int       `json:"observations"`
	Confidence           float64   `json:"confidence"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	ValueAtRisk          float64   `json:"value_at_risk"`
	ExpectedShortfall    float64   `json:"expected_shortfall"`
	PeriodStart          time.Time `json:"period_start"`
	PeriodEnd            time.Time `json:"period_end"`
}

// Engine computes volatility, VaR and expected shortfall from price
// payloads. The minimum-observation threshold and annualization factor are
// configuration, not constants.
type Engine struct {
	minObservations int
	periodsPerYear  float64
}

// NewEngine creates a risk engine from pipeline configuration.
func NewEngine(cfg *config.Config) *Engine {
	minObs := cfg.MinRiskObservations
	if minObs <= 0 {
		minObs = 20
	}
	periods := cfg.TradingPeriodsPerYear
	if periods <= 0 {
		periods = 252
	}
	return &Engine{minObservations: minObs, periodsPerYear: periods}
}

// Compute derives the risk report for a payload at the given confidence
// level. A payload yielding zero returns produces a NoData report and no
// error. Between one return and the configured minimum it reports
// *InsufficientHistoryError. The measures are historical-simulation:
// VaR is the empirical (1-confidence) quantile of the return distribution
// and expected shortfall is the mean of returns at or below that quantile.
func (e *Engine) Compute(payload dataflows.PricePayload, confidence float64) (*Report, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("confidence must be in (0, 1), got %v", confidence)
	}

	// A lone bar yields no returns either; both cases are "no data", not
	// insufficient history.
	returns := Returns(payload)
	if len(returns) == 0 {
		return &Report{Symbol: payload.Symbol, NoData: true, Confidence: confidence}, nil
	}

	if len(returns) < e.minObservations {
		return nil, &InsufficientHistoryError{
			Symbol:       payload.Symbol,
			Observations: len(returns),
			Minimum:      e.minObservations,
		}
	}

	values := make([]float64, len(returns))
	for i, r := range returns {
		values[i] = r.Value
	}

	vol := stddev(values) * math.Sqrt(e.periodsPerYear)
	varLevel := quantile(values, 1-confidence)
	es := shortfall(values, varLevel)

	return &Report{
		Symbol:               payload.Symbol,
		Observations:         len(returns),
		Confidence:           confidence,
		AnnualizedVolatility: vol,
		ValueAtRisk:          varLevel,
		ExpectedShortfall:    es,
		PeriodStart:          returns[0].Date,
		PeriodEnd:            returns[len(returns)-1].Date,
	}, nil
}

// Returns converts payload bars into dated simple percentage returns
// between consecutive closes, preferring adjusted closes when present.
// The payload contract guarantees ascending unique dates.
func Returns(payload dataflows.PricePayload) []Return {
	if len(payload.Records) < 2 {
		return nil
	}

	out := make([]Return, 0, len(payload.Records)-1)
	prev := effectiveClose(payload.Records[0])
	for _, bar := range payload.Records[1:] {
		cur := effectiveClose(bar)
		if prev > 0 {
			out = append(out, Return{Date: bar.Date, Value: cur/prev - 1})
		}
		prev = cur
	}
	return out
}

func effectiveClose(bar dataflows.Bar) float64 {
	if bar.AdjClose != nil && !bar.AdjClose.IsZero() {
		return bar.AdjClose.InexactFloat64()
	}
	return bar.Close.InexactFloat64()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// quantile returns the empirical p-quantile using linear interpolation
// between order statistics.
func quantile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// shortfall is the mean of returns at or below the VaR level.
func shortfall(values []float64, varLevel float64) float64 {
	var tail []float64
	for _, v := range values {
		if v <= varLevel {
			tail = append(tail, v)
		}
	}
	if len(tail) == 0 {
		return varLevel
	}
	return mean(tail)
}
