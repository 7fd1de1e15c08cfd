// Package trading runs one research-and-trading pipeline pass: data
// routing, risk computation, decision processing, the order-safety gate,
// and brokerage submission.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantcortex/tradepilot/internal/config"
	"github.com/quantcortex/tradepilot/internal/dataflows"
	"github.com/quantcortex/tradepilot/internal/orders"
	"github.com/quantcortex/tradepilot/internal/processing"
	"github.com/quantcortex/tradepilot/internal/risk"
)

// DecisionInput is the evidence handed to the decision stage.
type DecisionInput struct {
	Symbol     string
	Date       time.Time
	Prices     dataflows.PricePayload
	News       dataflows.NewsPayload
	RiskReport *risk.Report
}

// DecisionProvider produces the decision text the pipeline acts on. The
// multi-agent analysis subsystem implements this; so does the offline
// rule-based provider used without LLM access.
type DecisionProvider interface {
	Decide(ctx context.Context, input DecisionInput) (string, error)
}

// Approver resolves the human trade-approval suspension point. Returning
// false or an error means no trade: silence never places an order.
type Approver interface {
	Approve(instr *orders.TradeInstruction, decisionText string) (bool, error)
}

// InstrumentEnricher supplies contract-level static data for derivative
// instructions. The Longport quote API backs the production implementation.
type InstrumentEnricher interface {
	StaticInfo(ctx context.Context, symbol string) (*dataflows.InstrumentInfo, error)
}

// Result is everything one pipeline run produced.
type Result struct {
	Symbol       string
	Date         time.Time
	Prices       dataflows.PricePayload
	News         dataflows.NewsPayload
	RiskReport   *risk.Report
	RiskSkipped  string
	DecisionText string
	Signal       *processing.TradingSignal
	Instruction  *orders.TradeInstruction
	GateDecision *orders.Decision
	Confirmation *orders.OrderConfirmation
	SubmitErr    error
}

// Session wires the pipeline stages together over one configuration
// snapshot. Stages run strictly in order; each consumes the previous
// stage's output.
type Session struct {
	cfg       *config.Config
	logger    zerolog.Logger
	router    *dataflows.Router
	engine    *risk.Engine
	processor *processing.SignalProcessor
	decider   DecisionProvider
	approver  Approver
	broker    orders.Broker
	enricher  InstrumentEnricher
	lookback  int
}

// Option tweaks session construction.
type Option func(*Session)

// WithBroker installs the submission boundary. Without one, approved
// instructions stop at the gate.
func WithBroker(b orders.Broker) Option {
	return func(s *Session) { s.broker = b }
}

// WithApprover installs the human approval hook.
func WithApprover(a Approver) Option {
	return func(s *Session) { s.approver = a }
}

// WithInstrumentEnricher installs the static-info source used to complete
// derivative instruction metadata before the gate runs.
func WithInstrumentEnricher(e InstrumentEnricher) Option {
	return func(s *Session) { s.enricher = e }
}

// WithLookback sets how many calendar days of price history feed the risk
// engine.
func WithLookback(days int) Option {
	return func(s *Session) { s.lookback = days }
}

// NewSession builds a session from configuration. The vendor chains are
// resolved here, once; an unconfigurable chain is a fatal error.
func NewSession(cfg *config.Config, logger zerolog.Logger, decider DecisionProvider, opts ...Option) (*Session, error) {
	router, err := dataflows.NewRouter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("resolve vendor chains: %w", err)
	}

	s := &Session{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		engine:    risk.NewEngine(cfg),
		processor: processing.NewSignalProcessor(),
		decider:   decider,
		lookback:  365,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one pipeline pass for the symbol as of date.
func (s *Session) Run(ctx context.Context, symbol string, date time.Time) (*Result, error) {
	symbol = dataflows.NormalizeSymbol(symbol)
	if err := dataflows.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	result := &Result{Symbol: symbol, Date: date}
	start := date.AddDate(0, 0, -s.lookback)

	// Data stage. Routing never fails hard: terminal payloads carry the
	// vendor failures in Meta.Error and the run degrades to "no signal".
	result.Prices = s.router.RoutePrices(ctx, symbol, start, date)
	result.News = s.router.RouteNews(ctx, symbol, start, date)

	// Risk stage.
	report, err := s.engine.Compute(result.Prices, s.cfg.RiskConfidence)
	switch {
	case err == nil && report.NoData:
		result.RiskReport = report
		result.RiskSkipped = fmt.Sprintf("no price data available for %s", symbol)
	case err == nil:
		result.RiskReport = report
	case errors.Is(err, risk.ErrInsufficientHistory):
		result.RiskSkipped = err.Error()
	default:
		return nil, fmt.Errorf("risk computation: %w", err)
	}
	if result.RiskSkipped != "" {
		s.logger.Warn().Str("symbol", symbol).Msg("skipping quantitative risk section: " + result.RiskSkipped)
	}

	// Decision stage.
	decisionText, err := s.decider.Decide(ctx, DecisionInput{
		Symbol:     symbol,
		Date:       date,
		Prices:     result.Prices,
		News:       result.News,
		RiskReport: result.RiskReport,
	})
	if err != nil {
		return nil, fmt.Errorf("decision stage: %w", err)
	}
	result.DecisionText = decisionText
	result.Signal = s.processor.ProcessDecisionText(decisionText)

	instr, err := s.processor.BuildInstruction(symbol, result.Signal)
	if err != nil {
		return nil, fmt.Errorf("build instruction: %w", err)
	}
	if instr == nil {
		s.logger.Info().Str("symbol", symbol).Msg("decision is HOLD, no order proposed")
		return result, nil
	}
	result.Instruction = instr
	s.enrichInstrument(ctx, instr)

	// Gate stage.
	gateDecision := orders.Evaluate(instr, orders.NewGateConfig(s.cfg), s.referencePrice(result.Prices))
	result.GateDecision = &gateDecision
	if !gateDecision.Approved {
		for _, reason := range gateDecision.Reasons {
			s.logger.Warn().Str("symbol", symbol).Msg("compliance: " + reason)
		}
		return result, nil
	}

	// Approval suspension point.
	if s.approver != nil {
		approved, err := s.approver.Approve(instr, decisionText)
		if err != nil || !approved {
			s.logger.Info().Str("symbol", symbol).Msg("trade not approved by operator, no order submitted")
			return result, nil
		}
	}

	// Submission stage.
	if s.broker == nil || !s.cfg.AutoExecuteTrades {
		s.logger.Info().Str("symbol", symbol).Msg("auto-execute disabled or no broker configured, order not submitted")
		return result, nil
	}
	s.submit(ctx, result)

	return result, nil
}

// enrichInstrument fills missing contract symbols on derivative
// instructions from the static-info source. Failures are logged and the
// instruction proceeds unmodified; the gate still rejects incomplete
// metadata.
func (s *Session) enrichInstrument(ctx context.Context, instr *orders.TradeInstruction) {
	if s.enricher == nil || !instr.Derivative() {
		return
	}
	if instr.Instrument != nil && instr.Instrument.ContractSymbol != "" {
		return
	}

	info, err := s.enricher.StaticInfo(ctx, instr.Symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", instr.Symbol).Msg("instrument static info lookup failed")
		return
	}
	if instr.Instrument == nil {
		instr.Instrument = &orders.InstrumentMetadata{}
	}
	instr.Instrument.ContractSymbol = info.ContractSymbol
}

func (s *Session) submit(ctx context.Context, result *Result) {
	instr := result.Instruction

	req, err := instr.ToOrderRequest()
	if err != nil {
		result.SubmitErr = err
		return
	}

	conf, err := s.broker.SubmitOrder(ctx, req)
	if err != nil {
		result.SubmitErr = err
		// A submission that never reached the book leaves the
		// instruction approved but unsubmitted; a structured rejection
		// is a real lifecycle event.
		var rejection *orders.BrokerRejection
		if errors.As(err, &rejection) {
			_ = instr.Transition(orders.StatusSubmitted)
			_ = instr.Transition(orders.StatusRejected)
		}
		s.logger.Error().Err(err).Str("symbol", instr.Symbol).Msg("order submission failed")
		return
	}

	_ = instr.Transition(orders.StatusSubmitted)
	if conf.Status == "filled" {
		_ = instr.Transition(orders.StatusFilled)
	}
	result.Confirmation = conf
	s.logger.Info().
		Str("symbol", instr.Symbol).
		Str("order_id", conf.OrderID).
		Str("status", conf.Status).
		Msg("order submitted")
}

// referencePrice is the latest close in the routed payload, used by the
// gate to estimate position value for quantity-based orders.
func (s *Session) referencePrice(payload dataflows.PricePayload) decimal.Decimal {
	if len(payload.Records) == 0 {
		return decimal.Zero
	}
	return payload.Records[len(payload.Records)-1].Close
}
