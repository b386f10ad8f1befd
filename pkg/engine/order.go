package engine

import (
	"time"

	"github.com/vexlab/vexchange/pkg/causal"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Status is the order lifecycle state. Pending and Partial are cancellable;
// Filled and Cancelled are terminal and never leave.
type Status int

const (
	Pending Status = iota
	Partial
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Partial:
		return "PARTIAL"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// Order is a limit order. Prices are int64 ticks (e.g. cents), quantities
// int64 lots. Once submitted, an order is mutated only by the engine under
// its symbol's lock; callers only ever see value copies.
type Order struct {
	ID            string       `json:"id"`
	ParticipantID string       `json:"participantId"`
	Symbol        string       `json:"symbol"`
	Side          Side         `json:"side"`
	Price         int64        `json:"price"`
	OriginalQty   int64        `json:"originalQty"`
	RemainingQty  int64        `json:"remainingQty"`
	Status        Status       `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"` // wall clock, informational only
	Stamp         causal.Stamp `json:"stamp"`

	// seq is the arrival sequence within the engine, the time component of
	// price-time priority.
	seq uint64
}

// Trade is one execution between a resting and an aggressor order.
// Immutable once created. Price is the resting side's limit price.
type Trade struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	BuyOrderID  string       `json:"buyOrderId"`
	SellOrderID string       `json:"sellOrderId"`
	Price       int64        `json:"price"`
	Qty         int64        `json:"qty"`
	ExecutedAt  time.Time    `json:"executedAt"`
	Stamp       causal.Stamp `json:"stamp"`
}

// Level is one aggregated price level of a book snapshot.
type Level struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// BookSnapshot is a consistent point-in-time view of one symbol's book,
// depth-capped per side. Bids are sorted high to low, asks low to high.
type BookSnapshot struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}
