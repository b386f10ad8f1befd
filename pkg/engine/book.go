package engine

import (
	"container/heap"
	"sort"
	"sync"
)

// fill is one execution produced during a matching pass, before trade ids
// and stamps are attached.
type fill struct {
	maker *Order
	price int64
	qty   int64
}

// book is one symbol's order book. All mutations happen under mu, so a
// matching pass is observed only at rest: a transiently crossed book is
// never visible to snapshot readers.
type book struct {
	symbol string

	mu sync.RWMutex

	// Heap-tracked best price per side (O(1) peek).
	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	// Price level queues. Same-price orders match in arrival order, so new
	// orders are appended, never inserted ahead.
	bids map[int64][]*Order
	asks map[int64][]*Order

	// Resting orders by id, for cancellation.
	resting map[string]*Order

	// Recent trades ring, newest last.
	trades    []Trade
	tradesCap int

	lastPrice int64
}

func newBook(symbol string, tradesCap int) *book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &book{
		symbol:    symbol,
		bidHeap:   bidHeap,
		askHeap:   askHeap,
		bids:      make(map[int64][]*Order),
		asks:      make(map[int64][]*Order),
		resting:   make(map[string]*Order),
		tradesCap: tradesCap,
	}
}

func (b *book) bestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

func (b *book) bestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

func (b *book) rest(o *Order) {
	levels := b.bids
	if o.Side == Sell {
		levels = b.asks
	}
	if len(levels[o.Price]) == 0 {
		if o.Side == Buy {
			heap.Push(b.bidHeap, o.Price)
		} else {
			heap.Push(b.askHeap, o.Price)
		}
	}
	levels[o.Price] = append(levels[o.Price], o)
	b.resting[o.ID] = o
}

func (b *book) removeBidLevel(price int64) {
	delete(b.bids, price)
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

func (b *book) removeAskLevel(price int64) {
	delete(b.asks, price)
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// place matches the incoming order by price-time priority and rests any
// remainder on its own side. mkTrade turns each fill into a stamped Trade;
// it runs under the book lock so the emitted trade sequence is exactly the
// matching order. The returned order copy and snapshot are taken before the
// lock drops.
func (b *book) place(o *Order, depth int, mkTrade func(f fill) Trade) (Order, []Trade, BookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var trades []Trade
	record := func(maker *Order, price, qty int64) {
		t := mkTrade(fill{maker: maker, price: price, qty: qty})
		trades = append(trades, t)
		b.lastPrice = price
		b.trades = append(b.trades, t)
		if len(b.trades) > b.tradesCap {
			b.trades = b.trades[len(b.trades)-b.tradesCap:]
		}
	}

	if o.Side == Buy {
		for o.RemainingQty > 0 {
			askP, ok := b.bestAsk()
			if !ok || askP > o.Price {
				break
			}
			level := b.asks[askP]
			maker := level[0]
			qty := min(o.RemainingQty, maker.RemainingQty)
			o.RemainingQty -= qty
			maker.RemainingQty -= qty
			record(maker, askP, qty)
			if maker.RemainingQty == 0 {
				maker.Status = Filled
				delete(b.resting, maker.ID)
				b.asks[askP] = level[1:]
				if len(b.asks[askP]) == 0 {
					b.removeAskLevel(askP)
				}
			} else {
				maker.Status = Partial
			}
		}
	} else {
		for o.RemainingQty > 0 {
			bidP, ok := b.bestBid()
			if !ok || bidP < o.Price {
				break
			}
			level := b.bids[bidP]
			maker := level[0]
			qty := min(o.RemainingQty, maker.RemainingQty)
			o.RemainingQty -= qty
			maker.RemainingQty -= qty
			record(maker, bidP, qty)
			if maker.RemainingQty == 0 {
				maker.Status = Filled
				delete(b.resting, maker.ID)
				b.bids[bidP] = level[1:]
				if len(b.bids[bidP]) == 0 {
					b.removeBidLevel(bidP)
				}
			} else {
				maker.Status = Partial
			}
		}
	}

	switch {
	case o.RemainingQty == 0:
		o.Status = Filled
	case len(trades) > 0:
		o.Status = Partial
		b.rest(o)
	default:
		o.Status = Pending
		b.rest(o)
	}

	return *o, trades, b.snapshotLocked(depth)
}

// cancel removes a resting order. Terminal orders have already left the
// resting index, so cancelling them reports not-found with no side effect.
func (b *book) cancel(orderID, participantID string) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.resting[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.ParticipantID != participantID {
		return Order{}, ErrNotOwner
	}

	levels := b.bids
	if o.Side == Sell {
		levels = b.asks
	}
	level := levels[o.Price]
	for i, resting := range level {
		if resting.ID == orderID {
			levels[o.Price] = append(level[:i], level[i+1:]...)
			break
		}
	}
	if len(levels[o.Price]) == 0 {
		if o.Side == Buy {
			b.removeBidLevel(o.Price)
		} else {
			b.removeAskLevel(o.Price)
		}
	}
	delete(b.resting, orderID)

	o.Status = Cancelled
	o.RemainingQty = 0
	return *o, nil
}

func (b *book) snapshot(depth int) BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(depth)
}

// snapshotLocked aggregates level quantities without re-sorting orders: only
// the level prices (copied off the heaps) are sorted, capped at depth.
// depth <= 0 means all levels.
func (b *book) snapshotLocked(depth int) BookSnapshot {
	bidPrices := append([]int64(nil), (*b.bidHeap)...)
	sort.Slice(bidPrices, func(i, j int) bool { return bidPrices[i] > bidPrices[j] })
	askPrices := append([]int64(nil), (*b.askHeap)...)
	sort.Slice(askPrices, func(i, j int) bool { return askPrices[i] < askPrices[j] })

	if depth > 0 {
		if len(bidPrices) > depth {
			bidPrices = bidPrices[:depth]
		}
		if len(askPrices) > depth {
			askPrices = askPrices[:depth]
		}
	}

	snap := BookSnapshot{Symbol: b.symbol}
	for _, p := range bidPrices {
		var qty int64
		for _, o := range b.bids[p] {
			qty += o.RemainingQty
		}
		snap.Bids = append(snap.Bids, Level{Price: p, Qty: qty})
	}
	for _, p := range askPrices {
		var qty int64
		for _, o := range b.asks[p] {
			qty += o.RemainingQty
		}
		snap.Asks = append(snap.Asks, Level{Price: p, Qty: qty})
	}
	return snap
}

func (b *book) recentTrades(limit int) []Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.trades)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Trade, n)
	copy(out, b.trades[len(b.trades)-n:])
	return out
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
