package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/quantcortex/tradepilot/internal/config"
)

// OrderRequest is the wire shape accepted by the brokerage.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Qty           *decimal.Decimal `json:"qty,omitempty"`
	Notional      *decimal.Decimal `json:"notional,omitempty"`
	Type          OrderType        `json:"type"`
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	TrailPercent  *decimal.Decimal `json:"trail_percent,omitempty"`
	OrderClass    OrderClass       `json:"order_class"`
	Legs          []Leg            `json:"legs,omitempty"`
	ClientOrderID string           `json:"client_order_id"`
	TimeInForce   TimeInForce      `json:"time_in_force"`
}

// OrderConfirmation is the brokerage's response to a submission.
type OrderConfirmation struct {
	OrderID        string           `json:"order_id"`
	Status         string           `json:"status"`
	FilledQty      *decimal.Decimal `json:"filled_qty,omitempty"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	FilledAt       *time.Time       `json:"filled_at,omitempty"`
}

// BrokerRejection is a structured order rejection from the brokerage.
type BrokerRejection struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *BrokerRejection) Error() string {
	return fmt.Sprintf("broker rejected order (code %d): %s", e.Code, e.Message)
}

// Broker is the submission boundary. Implementations receive only
// instructions the gate approved.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderConfirmation, error)
}

// ToOrderRequest converts an approved instruction into the brokerage wire
// shape. Instructions that have not cleared the gate cannot be converted.
func (ti *TradeInstruction) ToOrderRequest() (OrderRequest, error) {
	if ti.Status != StatusComplianceApproved {
		return OrderRequest{}, fmt.Errorf("instruction %s is %s, only %s instructions may be submitted",
			ti.ClientOrderID, ti.Status, StatusComplianceApproved)
	}
	return OrderRequest{
		Symbol:        ti.Symbol,
		Side:          ti.Side,
		Qty:           ti.Qty,
		Notional:      ti.Notional,
		Type:          ti.Type,
		LimitPrice:    ti.LimitPrice,
		StopPrice:     ti.StopPrice,
		TrailPercent:  ti.TrailPercent,
		OrderClass:    ti.Class,
		Legs:          ti.Legs,
		ClientOrderID: ti.ClientOrderID,
		TimeInForce:   ti.TimeInForce,
	}, nil
}

const (
	paperBrokerURL = "https://paper-api.alpaca.markets/v2"
	liveBrokerURL  = "https://api.alpaca.markets/v2"
)

// RESTBroker submits orders over the brokerage REST API. The base URL is
// selected by broker mode unless overridden in configuration.
type RESTBroker struct {
	client *resty.Client
}

// NewRESTBroker creates a broker client for the configured mode.
func NewRESTBroker(cfg *config.Config) (*RESTBroker, error) {
	if cfg.BrokerAPIKey == "" || cfg.BrokerAPISecret == "" {
		return nil, fmt.Errorf("broker credentials not configured")
	}

	baseURL := cfg.BrokerBaseURL
	if baseURL == "" {
		if cfg.BrokerMode == config.BrokerModeLive {
			baseURL = liveBrokerURL
		} else {
			baseURL = paperBrokerURL
		}
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("APCA-API-KEY-ID", cfg.BrokerAPIKey)
	client.SetHeader("APCA-API-SECRET-KEY", cfg.BrokerAPISecret)

	return &RESTBroker{client: client}, nil
}

// SubmitOrder posts the order and decodes the confirmation or structured
// rejection.
func (b *RESTBroker) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderConfirmation, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("submit order %s: %w", req.ClientOrderID, err)
	}

	if resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated {
		var conf OrderConfirmation
		if err := json.Unmarshal(resp.Body(), &conf); err != nil {
			return nil, fmt.Errorf("decode order confirmation: %w", err)
		}
		return &conf, nil
	}

	var rejection BrokerRejection
	if err := json.Unmarshal(resp.Body(), &rejection); err != nil || rejection.Message == "" {
		return nil, fmt.Errorf("broker returned status %d", resp.StatusCode())
	}
	return nil, &rejection
}
