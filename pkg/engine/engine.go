// Package engine implements the authoritative matching engine: one order
// book per symbol, continuous price-time-priority matching, cancellation,
// and read-only depth snapshots. Every outcome is stamped by the engine's
// causal clock so receivers on unordered connections can reconcile views.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vexlab/vexchange/params"
	"github.com/vexlab/vexchange/pkg/causal"
	"github.com/vexlab/vexchange/pkg/util"
)

// SubmitRequest carries one order placement from a participant, including
// the sender's clock stamp from the inbound envelope.
type SubmitRequest struct {
	ParticipantID string
	Symbol        string
	Side          Side
	Price         int64
	Qty           int64
	Sender        causal.Stamp
}

// SubmitResult is the synchronous outcome of a placement: the order's state
// after matching, any trades executed, and a consistent book snapshot.
type SubmitResult struct {
	Order  Order
	Trades []Trade
	Book   BookSnapshot
}

// CancelResult reports a successful cancellation with the stamp for the
// outbound event.
type CancelResult struct {
	Order Order
	Stamp causal.Stamp
}

// Engine is the single authoritative matching engine instance. Mutations on
// one symbol serialize on that symbol's book lock; unrelated symbols proceed
// in parallel. The engine-level lock only guards the symbol table.
type Engine struct {
	cfg   params.Engine
	clock *causal.Node
	wall  util.Clock
	log   *zap.SugaredLogger

	seq atomic.Uint64

	mu    sync.RWMutex
	books map[string]*book

	// Routes a resting order id to its symbol for cancellation. Entries for
	// terminal orders are pruned lazily.
	idxMu sync.RWMutex
	idx   map[string]string
}

func New(cfg params.Engine, clock *causal.Node, wall util.Clock, log *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:   cfg,
		clock: clock,
		wall:  wall,
		log:   log,
		books: make(map[string]*book),
		idx:   make(map[string]string),
	}
}

// Clock exposes the engine's causal clock to the transport layer, which
// needs it to stamp events that do not pass through the engine.
func (e *Engine) Clock() *causal.Node { return e.clock }

// ProvisionSymbol creates an empty book for symbol if none exists. Used at
// startup to pre-seed known instruments.
func (e *Engine) ProvisionSymbol(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.books[symbol]; !ok {
		e.books[symbol] = newBook(symbol, e.cfg.TradeHistory)
	}
}

func (e *Engine) getBook(symbol string, provision bool) (*book, error) {
	e.mu.RLock()
	b, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return b, nil
	}
	if !provision {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok = e.books[symbol]; !ok {
		b = newBook(symbol, e.cfg.TradeHistory)
		e.books[symbol] = b
		e.log.Infow("book_provisioned", "symbol", symbol)
	}
	return b, nil
}

// SubmitOrder validates, stamps, and matches an incoming order. Validation
// failures reject before the book is touched. Orders on the same symbol are
// processed in intake order; no cross-symbol ordering is implied.
func (e *Engine) SubmitOrder(req SubmitRequest) (SubmitResult, error) {
	if err := validate(req); err != nil {
		return SubmitResult{}, err
	}

	b, err := e.getBook(req.Symbol, e.cfg.AutoProvision)
	if err != nil {
		return SubmitResult{}, err
	}

	// Absorb whatever the sender had observed, then stamp the acceptance as
	// a new engine event so it causally follows the placement.
	e.clock.Observe(req.Sender)

	o := &Order{
		ID:            uuid.NewString(),
		ParticipantID: req.ParticipantID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         req.Price,
		OriginalQty:   req.Qty,
		RemainingQty:  req.Qty,
		Status:        Pending,
		CreatedAt:     e.wall.Now(),
		Stamp:         e.clock.Tick(),
		seq:           e.seq.Add(1),
	}

	e.idxMu.Lock()
	e.idx[o.ID] = o.Symbol
	e.idxMu.Unlock()

	view, trades, snap := b.place(o, e.cfg.SnapshotDepth, func(f fill) Trade {
		return Trade{
			ID:          uuid.NewString(),
			Symbol:      o.Symbol,
			BuyOrderID:  buyerOf(o, f.maker),
			SellOrderID: sellerOf(o, f.maker),
			Price:       f.price,
			Qty:         f.qty,
			ExecutedAt:  e.wall.Now(),
			Stamp:       e.clock.Tick(),
		}
	})

	e.pruneTerminal(view, trades)

	e.log.Infow("order_submitted",
		"order_id", view.ID,
		"participant", view.ParticipantID,
		"symbol", view.Symbol,
		"side", view.Side.String(),
		"price", view.Price,
		"qty", view.OriginalQty,
		"status", view.Status.String(),
		"trades", len(trades),
	)

	return SubmitResult{Order: view, Trades: trades, Book: snap}, nil
}

// CancelOrder removes a resting order owned by the requester. It fails with
// no side effect when the order is unknown, already terminal, or owned by
// someone else. A cancel that loses the race against a concurrent fill on
// the same symbol simply reports not-found.
func (e *Engine) CancelOrder(orderID, participantID string, sender causal.Stamp) (CancelResult, error) {
	e.idxMu.RLock()
	symbol, ok := e.idx[orderID]
	e.idxMu.RUnlock()
	if !ok {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	b, err := e.getBook(symbol, false)
	if err != nil {
		return CancelResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	e.clock.Observe(sender)
	view, err := b.cancel(orderID, participantID)
	if err != nil {
		if err == ErrOrderNotFound {
			// Terminal since it was indexed; drop the stale route.
			e.idxMu.Lock()
			delete(e.idx, orderID)
			e.idxMu.Unlock()
		}
		return CancelResult{}, fmt.Errorf("%w: %s", err, orderID)
	}

	e.idxMu.Lock()
	delete(e.idx, orderID)
	e.idxMu.Unlock()

	e.log.Infow("order_cancelled", "order_id", orderID, "participant", participantID, "symbol", symbol)
	return CancelResult{Order: view, Stamp: e.clock.Tick()}, nil
}

// TopOfBook returns up to depth best price levels per side. Read-only;
// depth <= 0 falls back to the configured snapshot depth.
func (e *Engine) TopOfBook(symbol string, depth int) (BookSnapshot, error) {
	b, err := e.getBook(symbol, false)
	if err != nil {
		return BookSnapshot{}, err
	}
	if depth <= 0 {
		depth = e.cfg.SnapshotDepth
	}
	return b.snapshot(depth), nil
}

// AllSnapshots returns a depth-capped snapshot per tracked symbol, sorted by
// symbol for deterministic fan-out payloads.
func (e *Engine) AllSnapshots() []BookSnapshot {
	e.mu.RLock()
	books := make([]*book, 0, len(e.books))
	for _, b := range e.books {
		books = append(books, b)
	}
	e.mu.RUnlock()

	sort.Slice(books, func(i, j int) bool { return books[i].symbol < books[j].symbol })

	out := make([]BookSnapshot, len(books))
	for i, b := range books {
		out[i] = b.snapshot(e.cfg.SnapshotDepth)
	}
	return out
}

// RecentTrades returns up to limit most recent trades for symbol, oldest
// first.
func (e *Engine) RecentTrades(symbol string, limit int) ([]Trade, error) {
	b, err := e.getBook(symbol, false)
	if err != nil {
		return nil, err
	}
	return b.recentTrades(limit), nil
}

// pruneTerminal drops index routes for orders that reached a terminal state
// during a matching pass. The maker side of each trade is whichever id is
// not the aggressor's; routes for partially filled makers stay.
func (e *Engine) pruneTerminal(aggressor Order, trades []Trade) {
	if len(trades) == 0 {
		return
	}
	var gone []string
	if aggressor.Status == Filled {
		gone = append(gone, aggressor.ID)
	}
	for _, t := range trades {
		makerID := t.BuyOrderID
		if makerID == aggressor.ID {
			makerID = t.SellOrderID
		}
		if !e.isResting(aggressor.Symbol, makerID) {
			gone = append(gone, makerID)
		}
	}
	if len(gone) == 0 {
		return
	}
	e.idxMu.Lock()
	for _, id := range gone {
		delete(e.idx, id)
	}
	e.idxMu.Unlock()
}

func (e *Engine) isResting(symbol, orderID string) bool {
	b, err := e.getBook(symbol, false)
	if err != nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.resting[orderID]
	return ok
}

func validate(req SubmitRequest) error {
	if req.ParticipantID == "" {
		return fmt.Errorf("%w: missing participant id", ErrInvalidOrder)
	}
	if req.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidOrder)
	}
	if req.Side != Buy && req.Side != Sell {
		return fmt.Errorf("%w: bad side", ErrInvalidOrder)
	}
	if req.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}
	if req.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	return nil
}

func buyerOf(aggressor, maker *Order) string {
	if aggressor.Side == Buy {
		return aggressor.ID
	}
	return maker.ID
}

func sellerOf(aggressor, maker *Order) string {
	if aggressor.Side == Sell {
		return aggressor.ID
	}
	return maker.ID
}
