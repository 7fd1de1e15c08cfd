// Package orders holds the trade-instruction lifecycle, the order-safety
// gate, and the brokerage submission boundary.
package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType matches the brokerage order type vocabulary.
type OrderType string

const (
	Market       OrderType = "market"
	Limit        OrderType = "limit"
	Stop         OrderType = "stop"
	StopLimit    OrderType = "stop_limit"
	TrailingStop OrderType = "trailing_stop"
)

// OrderClass distinguishes simple from multi-leg order structures.
type OrderClass string

const (
	Simple  OrderClass = "simple"
	Bracket OrderClass = "bracket"
	OCO     OrderClass = "oco"
	OTO     OrderClass = "oto"
)

// TimeInForce controls how long an order rests.
type TimeInForce string

const (
	Day TimeInForce = "day"
	GTC TimeInForce = "gtc"
	IOC TimeInForce = "ioc"
	FOK TimeInForce = "fok"
)

// InstructionStatus is the lifecycle state of a trade instruction.
type InstructionStatus string

const (
	StatusProposed           InstructionStatus = "proposed"
	StatusComplianceApproved InstructionStatus = "compliance_approved"
	StatusComplianceRejected InstructionStatus = "compliance_rejected"
	StatusSubmitted          InstructionStatus = "submitted"
	StatusFilled             InstructionStatus = "filled"
	StatusCancelled          InstructionStatus = "cancelled"
	StatusRejected           InstructionStatus = "rejected"
)

// ErrInvalidTransition is reported for a lifecycle move the state machine
// does not allow. Transitions are one-way: no instruction re-enters
// proposed, and nothing changes once a terminal state is reached.
var ErrInvalidTransition = errors.New("invalid instruction state transition")

var allowedTransitions = map[InstructionStatus][]InstructionStatus{
	StatusProposed:           {StatusComplianceApproved, StatusComplianceRejected},
	StatusComplianceApproved: {StatusSubmitted},
	StatusSubmitted:          {StatusFilled, StatusCancelled, StatusRejected},
}

// Leg is one component of a multi-leg order.
type Leg struct {
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Qty        decimal.Decimal  `json:"qty"`
	Type       OrderType        `json:"order_type"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// InstrumentMetadata describes a derivative contract. All fields must be
// populated before a multi-leg or derivative instruction can clear the
// gate.
type InstrumentMetadata struct {
	ContractSymbol    string           `json:"contract_symbol"`
	Strike            *decimal.Decimal `json:"strike,omitempty"`
	Premium           *decimal.Decimal `json:"premium,omitempty"`
	ImpliedVolatility *decimal.Decimal `json:"implied_volatility,omitempty"`
}

// Complete reports whether the metadata is sufficiently populated for
// compliance approval.
func (m *InstrumentMetadata) Complete() bool {
	return m != nil && m.ContractSymbol != "" && m.Strike != nil
}

// TradeInstruction is the structured order proposal produced by the
// decision pipeline. Exactly one of Qty or Notional is set. The lifecycle
// is driven through Transition; direct status writes bypass the one-way
// guarantee and are a bug.
type TradeInstruction struct {
	Symbol        string              `json:"symbol"`
	Side          Side                `json:"side"`
	Qty           *decimal.Decimal    `json:"qty,omitempty"`
	Notional      *decimal.Decimal    `json:"notional,omitempty"`
	Type          OrderType           `json:"order_type"`
	LimitPrice    *decimal.Decimal    `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal    `json:"stop_price,omitempty"`
	TrailPercent  *decimal.Decimal    `json:"trail_percent,omitempty"`
	Class         OrderClass          `json:"order_class"`
	Legs          []Leg               `json:"legs,omitempty"`
	Instrument    *InstrumentMetadata `json:"instrument_metadata,omitempty"`
	Status        InstructionStatus   `json:"status"`
	ClientOrderID string              `json:"client_order_id"`
	TimeInForce   TimeInForce         `json:"time_in_force"`
}

// NewInstruction creates a proposed instruction with defaults filled in.
func NewInstruction(symbol string, side Side, clientOrderID string) *TradeInstruction {
	return &TradeInstruction{
		Symbol:        symbol,
		Side:          side,
		Type:          Market,
		Class:         Simple,
		Status:        StatusProposed,
		ClientOrderID: clientOrderID,
		TimeInForce:   Day,
	}
}

// Transition moves the instruction to the next lifecycle state, enforcing
// the one-way state machine.
func (ti *TradeInstruction) Transition(next InstructionStatus) error {
	for _, allowed := range allowedTransitions[ti.Status] {
		if allowed == next {
			ti.Status = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ti.Status, next)
}

// Terminal reports whether the instruction can no longer change state.
func (ti *TradeInstruction) Terminal() bool {
	return len(allowedTransitions[ti.Status]) == 0
}

// Derivative reports whether the instruction needs instrument metadata to
// be approvable.
func (ti *TradeInstruction) Derivative() bool {
	return ti.Class != Simple || len(ti.Legs) > 0 || ti.Instrument != nil
}

// EstimatedValue is the position value used by the safety gate: notional
// when set, otherwise quantity times the reference price.
func (ti *TradeInstruction) EstimatedValue(refPrice decimal.Decimal) decimal.Decimal {
	if ti.Notional != nil {
		return *ti.Notional
	}
	if ti.Qty != nil {
		return ti.Qty.Mul(refPrice)
	}
	return decimal.Zero
}
