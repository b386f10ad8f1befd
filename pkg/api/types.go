package api

import (
	"encoding/json"

	"github.com/vexlab/vexchange/pkg/causal"
	"github.com/vexlab/vexchange/pkg/engine"
)

// Inbound event types (transport -> core).
const (
	EventPlaceOrder        = "PLACE_ORDER"
	EventCancelOrder       = "CANCEL_ORDER"
	EventMarketDataRequest = "MARKET_DATA_REQUEST"
)

// Outbound event types (core -> transport, fanned out to participants).
const (
	EventOrderBookUpdate = "ORDER_BOOK_UPDATE"
	EventTradeExecution  = "TRADE_EXECUTION"
	EventOrderCancelled  = "ORDER_CANCELLED"
	EventMarketData      = "MARKET_DATA"
)

// Inbound is the envelope a participant wraps every request in. The sender
// vector lets the engine clock absorb whatever the participant had observed
// when it acted.
type Inbound struct {
	EventType     string          `json:"eventType"`
	ParticipantID string          `json:"participantId"`
	Payload       json.RawMessage `json:"payload"`
	SenderVector  causal.Vector   `json:"senderVector"`
}

// Outbound is the envelope every broadcast event is wrapped in. Receivers
// merge VectorClock into their local clock and use it to detect updates
// already causally subsumed.
type Outbound struct {
	EventType        string        `json:"eventType"`
	Payload          any           `json:"payload"`
	LogicalTimestamp int64         `json:"logicalTimestamp"`
	VectorClock      causal.Vector `json:"vectorClock"`
}

type PlaceOrderPayload struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"` // "BUY" | "SELL"
	LimitPrice int64  `json:"limitPrice"`
	Quantity   int64  `json:"quantity"`
}

type CancelOrderPayload struct {
	OrderID string `json:"orderId"`
}

// PlaceOrderResult is the synchronous reply to the submitter only.
type PlaceOrderResult struct {
	Order  engine.Order        `json:"order"`
	Trades []engine.Trade      `json:"trades"`
	Book   engine.BookSnapshot `json:"book"`
}

// CancelOrderResult reports cancellation outcome; failures carry no side
// effects.
type CancelOrderResult struct {
	Success bool         `json:"success"`
	Order   engine.Order `json:"order,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// OrderCancelledPayload is broadcast after a successful cancellation.
type OrderCancelledPayload struct {
	OrderID string              `json:"orderId"`
	Symbol  string              `json:"symbol"`
	Book    engine.BookSnapshot `json:"book"`
}

// MarketDataPayload is the full per-symbol top-of-book summary.
type MarketDataPayload struct {
	Books []engine.BookSnapshot `json:"books"`
}

// WSRequest is what clients send over the websocket: either a subscription
// op or an inbound event envelope.
type WSRequest struct {
	// Subscription management ("subscribe" | "unsubscribe").
	Op       string   `json:"op,omitempty"`
	Channels []string `json:"channels,omitempty"`

	Inbound
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
