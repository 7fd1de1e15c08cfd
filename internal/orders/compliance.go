package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantcortex/tradepilot/internal/config"
)

// GateConfig is the snapshot of safety policy the gate evaluates against.
// It is plain data so the gate stays a pure function.
type GateConfig struct {
	RestrictedTickers []string
	MaxPositionSize   decimal.Decimal
	PositionLimitMode config.PositionLimitMode
	PortfolioValue    decimal.Decimal
	BrokerMode        config.BrokerMode
	AutoExecuteTrades bool
	LiveCredentials   bool
}

// NewGateConfig derives the gate policy from pipeline configuration.
func NewGateConfig(cfg *config.Config) GateConfig {
	return GateConfig{
		RestrictedTickers: cfg.RestrictedTickers,
		MaxPositionSize:   decimal.NewFromFloat(cfg.MaxPositionSize),
		PositionLimitMode: cfg.PositionLimitMode,
		PortfolioValue:    decimal.NewFromFloat(cfg.PortfolioValue),
		BrokerMode:        cfg.BrokerMode,
		AutoExecuteTrades: cfg.AutoExecuteTrades,
		LiveCredentials:   cfg.BrokerAPIKey != "" && cfg.BrokerAPISecret != "",
	}
}

// Decision is the gate's verdict. Reasons are surfaced to the operator
// verbatim, never summarized.
type Decision struct {
	Approved bool     `json:"approved"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Evaluate applies every safety check to the instruction and, when the
// instruction is still proposed, transitions it to compliance_approved or
// compliance_rejected. The decision is a pure function of instruction and
// config: re-evaluating an already-gated instruction returns the identical
// verdict and leaves the state untouched.
func Evaluate(instr *TradeInstruction, gate GateConfig, refPrice decimal.Decimal) Decision {
	var reasons []string

	if reason := checkRestricted(instr, gate); reason != "" {
		reasons = append(reasons, reason)
	}
	if reason := checkPositionSize(instr, gate, refPrice); reason != "" {
		reasons = append(reasons, reason)
	}
	if reason := checkLiveMode(gate); reason != "" {
		reasons = append(reasons, reason)
	}
	if reason := checkInstrument(instr); reason != "" {
		reasons = append(reasons, reason)
	}

	decision := Decision{Approved: len(reasons) == 0, Reasons: reasons}

	if instr.Status == StatusProposed {
		if decision.Approved {
			_ = instr.Transition(StatusComplianceApproved)
		} else {
			_ = instr.Transition(StatusComplianceRejected)
		}
	}

	return decision
}

func checkRestricted(instr *TradeInstruction, gate GateConfig) string {
	symbol := strings.ToUpper(strings.TrimSpace(instr.Symbol))
	for _, restricted := range gate.RestrictedTickers {
		if symbol == strings.ToUpper(strings.TrimSpace(restricted)) {
			return fmt.Sprintf("symbol %s is on the restricted ticker list", symbol)
		}
	}
	return ""
}

func checkPositionSize(instr *TradeInstruction, gate GateConfig, refPrice decimal.Decimal) string {
	if !gate.MaxPositionSize.IsPositive() {
		// No cap configured. Config validation already warned about this.
		return ""
	}

	value := instr.EstimatedValue(refPrice)
	if value.IsZero() {
		return "position size cannot be estimated: instruction has neither quantity nor notional"
	}

	limit := gate.MaxPositionSize
	if gate.PositionLimitMode == config.LimitPortfolioFraction {
		limit = gate.PortfolioValue.Mul(gate.MaxPositionSize)
	}

	if value.GreaterThan(limit) {
		return fmt.Sprintf("estimated position size %s exceeds maximum position size %s",
			value.StringFixed(2), limit.StringFixed(2))
	}
	return ""
}

func checkLiveMode(gate GateConfig) string {
	if gate.BrokerMode != config.BrokerModeLive {
		return ""
	}
	if !gate.AutoExecuteTrades {
		return "broker mode is live but auto_execute_trades is disabled"
	}
	if !gate.LiveCredentials {
		return "broker mode is live but live credentials are not configured"
	}
	return ""
}

func checkInstrument(instr *TradeInstruction) string {
	if !instr.Derivative() {
		return ""
	}
	if !instr.Instrument.Complete() {
		return "multi-leg or derivative instruction requires complete instrument metadata (contract symbol and strike)"
	}
	return ""
}
