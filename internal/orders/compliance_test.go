package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantcortex/tradepilot/internal/config"
)

func openGate() GateConfig {
	return GateConfig{
		RestrictedTickers: []string{"EVIL"},
		MaxPositionSize:   decimal.NewFromInt(10000),
		PositionLimitMode: config.LimitAbsolute,
		BrokerMode:        config.BrokerModePaper,
	}
}

func proposedBuy(symbol string, qty int64) *TradeInstruction {
	q := decimal.NewFromInt(qty)
	instr := NewInstruction(symbol, Buy, "ord-1")
	instr.Qty = &q
	return instr
}

func TestEvaluate_ApprovesCleanInstruction(t *testing.T) {
	instr := proposedBuy("AAPL", 10)
	before := *instr

	decision := Evaluate(instr, openGate(), decimal.NewFromInt(150))

	assert.True(t, decision.Approved)
	assert.Empty(t, decision.Reasons)
	assert.Equal(t, StatusComplianceApproved, instr.Status)

	// Approval only moves the lifecycle state; everything else is untouched.
	before.Status = StatusComplianceApproved
	assert.Equal(t, before, *instr)
}

func TestEvaluate_RestrictedTicker(t *testing.T) {
	instr := proposedBuy("EVIL", 1)

	decision := Evaluate(instr, openGate(), decimal.NewFromInt(10))

	assert.False(t, decision.Approved)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "restricted ticker list")
	assert.Equal(t, StatusComplianceRejected, instr.Status)
}

func TestEvaluate_RestrictedTickerCaseInsensitive(t *testing.T) {
	gate := openGate()
	gate.RestrictedTickers = []string{" evil "}
	instr := proposedBuy("Evil", 1)

	decision := Evaluate(instr, gate, decimal.NewFromInt(10))

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reasons[0], "restricted ticker list")
}

func TestEvaluate_PositionSizeCap(t *testing.T) {
	gate := openGate()
	gate.MaxPositionSize = decimal.NewFromInt(1000)
	instr := proposedBuy("AAPL", 10)

	// 10 shares at 500 = 5000, over the 1000 cap.
	decision := Evaluate(instr, gate, decimal.NewFromInt(500))

	assert.False(t, decision.Approved)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "exceeds maximum position size")
	assert.Equal(t, StatusComplianceRejected, instr.Status)
}

func TestEvaluate_PortfolioFractionCap(t *testing.T) {
	gate := openGate()
	gate.PositionLimitMode = config.LimitPortfolioFraction
	gate.MaxPositionSize = decimal.NewFromFloat(0.05)
	gate.PortfolioValue = decimal.NewFromInt(100000)

	// Cap is 5% of 100k = 5000.
	within := proposedBuy("AAPL", 10)
	decision := Evaluate(within, gate, decimal.NewFromInt(400))
	assert.True(t, decision.Approved)

	over := proposedBuy("AAPL", 20)
	decision = Evaluate(over, gate, decimal.NewFromInt(400))
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reasons[0], "exceeds maximum position size")
}

func TestEvaluate_NoCapConfiguredPasses(t *testing.T) {
	gate := openGate()
	gate.MaxPositionSize = decimal.Zero
	instr := proposedBuy("AAPL", 1000000)

	decision := Evaluate(instr, gate, decimal.NewFromInt(500))

	assert.True(t, decision.Approved)
}

func TestEvaluate_UnsizedInstructionRejected(t *testing.T) {
	instr := NewInstruction("AAPL", Buy, "ord-1")

	decision := Evaluate(instr, openGate(), decimal.NewFromInt(150))

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reasons[0], "neither quantity nor notional")
}

func TestEvaluate_LiveModeRequiresAutoExecute(t *testing.T) {
	gate := openGate()
	gate.BrokerMode = config.BrokerModeLive
	gate.LiveCredentials = true
	gate.AutoExecuteTrades = false
	instr := proposedBuy("AAPL", 10)

	decision := Evaluate(instr, gate, decimal.NewFromInt(150))

	assert.False(t, decision.Approved)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "auto_execute_trades")
}

func TestEvaluate_LiveModeRequiresCredentials(t *testing.T) {
	gate := openGate()
	gate.BrokerMode = config.BrokerModeLive
	gate.AutoExecuteTrades = true
	gate.LiveCredentials = false
	instr := proposedBuy("AAPL", 10)

	decision := Evaluate(instr, gate, decimal.NewFromInt(150))

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reasons[0], "credentials")
}

func TestEvaluate_LiveModeFullyConfigured(t *testing.T) {
	gate := openGate()
	gate.BrokerMode = config.BrokerModeLive
	gate.AutoExecuteTrades = true
	gate.LiveCredentials = true
	instr := proposedBuy("AAPL", 10)

	decision := Evaluate(instr, gate, decimal.NewFromInt(150))

	assert.True(t, decision.Approved)
}

func TestEvaluate_DerivativeNeedsCompleteMetadata(t *testing.T) {
	instr := proposedBuy("AAPL", 1)
	instr.Class = Bracket

	decision := Evaluate(instr, openGate(), decimal.NewFromInt(150))

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reasons[0], "instrument metadata")

	strike := decimal.NewFromInt(190)
	complete := proposedBuy("AAPL", 1)
	complete.Class = Bracket
	complete.Instrument = &InstrumentMetadata{ContractSymbol: "AAPL240119C00190000", Strike: &strike}

	decision = Evaluate(complete, openGate(), decimal.NewFromInt(150))
	assert.True(t, decision.Approved)
}

func TestEvaluate_CollectsAllReasons(t *testing.T) {
	gate := openGate()
	gate.MaxPositionSize = decimal.NewFromInt(10)
	instr := proposedBuy("EVIL", 100)
	instr.Class = OCO

	decision := Evaluate(instr, gate, decimal.NewFromInt(500))

	assert.False(t, decision.Approved)
	assert.Len(t, decision.Reasons, 3)
}

func TestEvaluate_Idempotent(t *testing.T) {
	instr := proposedBuy("AAPL", 10)

	first := Evaluate(instr, openGate(), decimal.NewFromInt(150))
	require.True(t, first.Approved)
	require.Equal(t, StatusComplianceApproved, instr.Status)

	// Re-evaluation returns the same verdict and leaves state alone.
	second := Evaluate(instr, openGate(), decimal.NewFromInt(150))
	assert.Equal(t, first, second)
	assert.Equal(t, StatusComplianceApproved, instr.Status)
}

func TestEvaluate_DoesNotTouchGatedState(t *testing.T) {
	instr := proposedBuy("AAPL", 10)
	require.NoError(t, instr.Transition(StatusComplianceApproved))
	require.NoError(t, instr.Transition(StatusSubmitted))

	decision := Evaluate(instr, openGate(), decimal.NewFromInt(150))

	assert.True(t, decision.Approved)
	assert.Equal(t, StatusSubmitted, instr.Status)
}

func TestNewGateConfig(t *testing.T) {
	cfg := &config.Config{
		RestrictedTickers: []string{"EVIL"},
		MaxPositionSize:   5000,
		PositionLimitMode: config.LimitAbsolute,
		PortfolioValue:    100000,
		BrokerMode:        config.BrokerModeLive,
		AutoExecuteTrades: true,
		BrokerAPIKey:      "key",
		BrokerAPISecret:   "secret",
	}

	gate := NewGateConfig(cfg)

	assert.Equal(t, []string{"EVIL"}, gate.RestrictedTickers)
	assert.True(t, gate.MaxPositionSize.Equal(decimal.NewFromInt(5000)))
	assert.True(t, gate.LiveCredentials)

	cfg.BrokerAPISecret = ""
	assert.False(t, NewGateConfig(cfg).LiveCredentials)
}
