package book

import (
	"sync"

	"github.com/luxfi/dex/internal/arena"
	"github.com/luxfi/dex/internal/xheap"
	"github.com/luxfi/log"
)

// book is the two-sided price ladder for one instrument: a max-heap of
// bid prices and a min-heap of ask prices, each with a map from price to
// its FIFO PriceLevel, plus the order index mapping an OrderID to its
// slot in the shared arena.
type book struct {
	pool  *arena.Arena[Order]
	index map[OrderID]arena.Index

	bidBook   *xheap.Heap[float64]
	askBook   *xheap.Heap[float64]
	bidLevels map[float64]*PriceLevel
	askLevels map[float64]*PriceLevel
}

func newBook(capacity int) *book {
	return &book{
		pool:      arena.New[Order](capacity),
		index:     make(map[OrderID]arena.Index),
		bidBook:   xheap.New[float64](xheap.Max, floatLess),
		askBook:   xheap.New[float64](xheap.Min, floatLess),
		bidLevels: make(map[float64]*PriceLevel),
		askLevels: make(map[float64]*PriceLevel),
	}
}

func floatLess(a, b float64) bool { return a < b }
func floatEq(a, b float64) bool   { return a == b }

func (bk *book) priceBookAndLevels(side Side) (*xheap.Heap[float64], map[float64]*PriceLevel) {
	if side == Bid {
		return bk.bidBook, bk.bidLevels
	}
	return bk.askBook, bk.askLevels
}

// insert places (ts, id) into the level for price on side, creating the
// level and pushing the price onto the side's heap if this is the first
// order at that price.
func (bk *book) insert(side Side, price float64, ts int64, id OrderID) {
	priceBook, levels := bk.priceBookAndLevels(side)
	level, ok := levels[price]
	if !ok {
		level = newPriceLevel()
		levels[price] = level
		priceBook.Push(price)
	}
	level.push(levelEntry{Timestamp: ts, ID: id})
}

// removeFromLevel removes (ts, id) from its level and, if the level
// becomes empty, pops the price from the side's heap and erases the
// level entry.
func (bk *book) removeFromLevel(side Side, price float64, ts int64, id OrderID) {
	priceBook, levels := bk.priceBookAndLevels(side)
	level, ok := levels[price]
	if !ok {
		return
	}
	level.remove(levelEntry{Timestamp: ts, ID: id})
	if level.empty() {
		delete(levels, price)
		if pos := priceBook.Find(price, floatEq); pos >= 0 {
			priceBook.Pop(pos)
		}
	}
}

// popFrontFromLevel is used by the matching loop: pops the resting
// order at the front of price's level and, if that empties the level,
// removes the price from the side's heap too.
func (bk *book) popFrontFromLevel(side Side, price float64) {
	priceBook, levels := bk.priceBookAndLevels(side)
	level, ok := levels[price]
	if !ok {
		return
	}
	level.popFront()
	if level.empty() {
		delete(levels, price)
		if pos := priceBook.Find(price, floatEq); pos >= 0 {
			priceBook.Pop(pos)
		}
	}
}

// Engine encapsulates one instrument's book, its order arena, id
// sequencing, trade bookkeeping, and lifecycle notifications. All
// mutation happens on a single shard's worker goroutine; RWMutex is
// kept for defense in depth so a read query called from the submitting
// goroutine is safe against a draining worker, even though the design
// also confines writes to one owner.
type Engine struct {
	mu sync.RWMutex

	ticker    string
	book      *book
	logger    log.Logger
	verbose   bool
	autoMatch bool
	listener  Listener

	nextOrderID   OrderID
	recentOrderID OrderID

	lastTradePrice float64
	numTrades      uint64
}

// NewEngine creates an Engine for ticker with an order arena sized for
// capacity resting+historical orders. AutoMatch defaults on.
func NewEngine(ticker string, capacity int, verbose bool, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewLogger(ticker)
	}
	return &Engine{
		ticker:         ticker,
		book:           newBook(capacity),
		logger:         logger,
		verbose:        verbose,
		autoMatch:      true,
		lastTradePrice: -1,
	}
}

// Ticker returns the instrument name this Engine books orders for.
func (e *Engine) Ticker() string { return e.ticker }

// PlaceOrder admits a new order: LIMIT orders that would cross the
// book are clamped to the best opposing price instead of matching
// immediately; MARKET orders reject with Invalid when the opposing
// side is empty and otherwise execute immediately against the best
// opposing level, never resting — any remainder beyond the liquidity
// there is dropped. A non-positive quantity, or a non-positive price on
// a LIMIT order, is rejected with Invalid before any id is assigned.
// On success it returns the new order's id and, for
// LIMIT orders with auto-matching enabled, runs the matching loop
// before returning.
func (e *Engine) PlaceOrder(side Side, typ Type, price, qty float64) OrderID {
	id, _ := e.PlaceOrderErr(side, typ, price, qty)
	return id
}

// PlaceOrderErr behaves like PlaceOrder but also reports the specific
// sentinel error (ErrInvalidPrice, ErrInvalidQuantity,
// ErrNoOpposingLiquidity, ErrArenaFull) that explains a rejected
// admission, for callers that want to distinguish the cases rather than
// just observing Invalid.
func (e *Engine) PlaceOrderErr(side Side, typ Type, price, qty float64) (OrderID, error) {
	if typ == Limit && price <= 0 {
		return Invalid, ErrInvalidPrice
	}
	if qty <= 0 {
		return Invalid, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placeOrderLocked(side, typ, price, qty)
}

func (e *Engine) placeOrderLocked(side Side, typ Type, price, qty float64) (OrderID, error) {
	id := e.nextOrderID
	e.nextOrderID++

	idx := e.book.pool.Allocate(Order{
		ID:        id,
		Side:      side,
		Type:      typ,
		Status:    Open,
		Price:     price,
		Qty:       qty,
		Timestamp: nowNano(),
	})
	if idx == arena.Invalid {
		return Invalid, ErrArenaFull
	}
	e.book.index[id] = idx
	order := e.book.pool.Get(idx)

	switch typ {
	case Limit:
		if side == Ask && !e.book.bidBook.Empty() && price < e.book.bidBook.Peek() {
			order.Price = e.book.bidBook.Peek()
		} else if side == Bid && !e.book.askBook.Empty() && price > e.book.askBook.Peek() {
			order.Price = e.book.askBook.Peek()
		}
	case Market:
		if side == Ask {
			if e.book.bidBook.Empty() {
				order.Status = Rejected
				e.notifyReject(order, ErrNoOpposingLiquidity)
				return Invalid, ErrNoOpposingLiquidity
			}
			order.Price = e.book.bidBook.Peek()
		} else {
			if e.book.askBook.Empty() {
				order.Status = Rejected
				e.notifyReject(order, ErrNoOpposingLiquidity)
				return Invalid, ErrNoOpposingLiquidity
			}
			order.Price = e.book.askBook.Peek()
		}
		// A MARKET order never enters a level: it executes against the
		// opposing book right here, regardless of the auto-match
		// setting, and any unfilled remainder is dropped.
		e.notify("OPEN", order, order.Qty)
		e.recentOrderID = id
		e.runMarketOrder(order)
		return id, nil
	}

	e.book.insert(side, order.Price, order.Timestamp, id)
	e.notify("OPEN", order, order.Qty)
	e.recentOrderID = id

	if e.autoMatch {
		e.runMatchingLoop()
	}

	return id, nil
}

// CancelOrder cancels an OPEN LIMIT order. It fails for MARKET orders,
// non-OPEN orders, and unknown ids, mutating nothing in those cases.
func (e *Engine) CancelOrder(id OrderID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok, _ := e.cancelOrderLocked(id)
	return ok
}

// CancelOrderErr behaves like CancelOrder but also reports which
// sentinel error (ErrOrderNotFound, ErrOrderNotOpen, ErrOrderNotLimit)
// explains a failed cancellation, for callers that want to distinguish
// the cases rather than just observing false.
func (e *Engine) CancelOrderErr(id OrderID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelOrderLocked(id)
}

func (e *Engine) cancelOrderLocked(id OrderID) (bool, error) {
	idx, ok := e.book.index[id]
	if !ok {
		return false, ErrOrderNotFound
	}
	order := e.book.pool.Get(idx)
	if order.Type != Limit {
		return false, ErrOrderNotLimit
	}
	if order.Status != Open {
		return false, ErrOrderNotOpen
	}

	e.book.removeFromLevel(order.Side, order.Price, order.Timestamp, id)
	order.Status = Cancelled
	e.notify("CANCELED", order, order.Qty)
	return true, nil
}

// EditOrder is cancel-then-reinsert as a LIMIT order with the supplied
// parameters: the id is preserved, but the timestamp refreshes, losing
// time priority. If the cancel half fails (not OPEN, not LIMIT, or
// unknown id) the edit fails and the book is untouched.
func (e *Engine) EditOrder(id OrderID, side Side, price, qty float64) OrderID {
	id, _ = e.EditOrderErr(id, side, price, qty)
	return id
}

// EditOrderErr behaves like EditOrder but also reports the sentinel
// error explaining a failed cancel-half (ErrOrderNotFound,
// ErrOrderNotOpen, ErrOrderNotLimit) or an invalid replacement price/
// quantity (ErrInvalidPrice, ErrInvalidQuantity).
func (e *Engine) EditOrderErr(id OrderID, side Side, price, qty float64) (OrderID, error) {
	if price <= 0 {
		return Invalid, ErrInvalidPrice
	}
	if qty <= 0 {
		return Invalid, ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ok, err := e.cancelOrderLocked(id); !ok {
		return Invalid, err
	}

	idx := e.book.index[id]
	order := e.book.pool.Get(idx)
	order.Side = side
	order.Price = price
	order.Qty = qty
	order.Timestamp = nowNano()
	order.Status = Open

	if side == Ask && !e.book.bidBook.Empty() && price < e.book.bidBook.Peek() {
		order.Price = e.book.bidBook.Peek()
	} else if side == Bid && !e.book.askBook.Empty() && price > e.book.askBook.Peek() {
		order.Price = e.book.askBook.Peek()
	}

	e.book.insert(side, order.Price, order.Timestamp, id)
	e.notify("MODIFIED", order, order.Qty)
	e.recentOrderID = id

	if e.autoMatch {
		e.runMatchingLoop()
	}

	return id, nil
}

// runMatchingLoop drives the incoming (recentOrderID) order against the
// opposite book while both sides remain non-empty and the incoming
// order stays OPEN with positive remaining quantity.
func (e *Engine) runMatchingLoop() {
	idx, ok := e.book.index[e.recentOrderID]
	if !ok {
		return
	}
	recent := e.book.pool.Get(idx)

	for recent.Status == Open && recent.Qty > 0 {
		if e.book.bidBook.Empty() || e.book.askBook.Empty() {
			return
		}
		bestBidPrice := e.book.bidBook.Peek()
		bestAskPrice := e.book.askBook.Peek()

		canTrade := (recent.Side == Ask && bestBidPrice >= recent.Price) ||
			(recent.Side == Bid && bestAskPrice <= recent.Price)
		if !canTrade {
			return
		}

		bidLevel, ok := e.book.bidLevels[bestBidPrice]
		if !ok || bidLevel.empty() {
			return
		}
		askLevel, ok := e.book.askLevels[bestAskPrice]
		if !ok || askLevel.empty() {
			return
		}

		bidID := bidLevel.front().ID
		askID := askLevel.front().ID
		bidOrder := e.book.pool.Get(e.book.index[bidID])
		askOrder := e.book.pool.Get(e.book.index[askID])

		e.matchOnce(askOrder, bidOrder)
	}
}

// runMarketOrder executes a MARKET order against the opposing book
// without the order ever resting in a level. It trades while the best
// opposing price is no worse than the price fixed at admission (the
// best opposing price at entry); once liquidity there is gone, the
// unfilled remainder is dropped and the order transitions to FILLED
// with whatever quantity it got.
func (e *Engine) runMarketOrder(o *Order) {
	restingSide := Ask
	if o.Side == Ask {
		restingSide = Bid
	}
	priceBook, levels := e.book.priceBookAndLevels(restingSide)

	for o.Qty > 0 && !priceBook.Empty() {
		bestPrice := priceBook.Peek()
		if (o.Side == Bid && bestPrice > o.Price) ||
			(o.Side == Ask && bestPrice < o.Price) {
			break
		}
		level, ok := levels[bestPrice]
		if !ok || level.empty() {
			break
		}
		resting := e.book.pool.Get(e.book.index[level.front().ID])

		fill := min(o.Qty, resting.Qty)
		o.Qty -= fill
		resting.Qty -= fill

		e.lastTradePrice = resting.Price
		e.numTrades++

		if o.Qty == 0 {
			o.Status = Filled
		}
		if resting.Qty == 0 {
			resting.Status = Filled
		}

		e.notify(fillState(o), o, fill)
		e.notify(fillState(resting), resting, fill)

		if resting.Qty == 0 {
			e.book.popFrontFromLevel(restingSide, resting.Price)
		}
	}

	if o.Qty > 0 {
		o.Qty = 0
		o.Status = Filled
	}
}

// matchOnce fills the crossing pair once: debits both by the smaller of
// the two remaining quantities, records the trade at the resting
// order's price (passive-side priority), and removes any side that
// reaches zero from its level/book.
func (e *Engine) matchOnce(ask, bid *Order) {
	fill := min(ask.Qty, bid.Qty)
	ask.Qty -= fill
	bid.Qty -= fill

	e.lastTradePrice = ask.Price
	e.numTrades++

	if ask.Qty == 0 {
		ask.Status = Filled
	}
	if bid.Qty == 0 {
		bid.Status = Filled
	}

	e.notify(fillState(ask), ask, fill)
	e.notify(fillState(bid), bid, fill)

	if ask.Qty == 0 {
		e.book.popFrontFromLevel(Ask, ask.Price)
	}
	if bid.Qty == 0 {
		e.book.popFrontFromLevel(Bid, bid.Price)
	}
}

func fillState(o *Order) string {
	if o.Qty == 0 {
		return "FILLED"
	}
	return "PARTIALLY FILLED"
}

// GetOrder returns a copy of the order record for id, if known. The
// zero Order returned on failure has ID 0, which is also the id of the
// engine's first order, so callers should rely on the ok return, not on
// inspecting the returned Order.
func (e *Engine) GetOrder(id OrderID) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.book.index[id]
	if !ok {
		return Order{}, false
	}
	return e.book.pool.At(idx), true
}

// GetBestBid returns the highest resting bid price, or -1 if the bid
// side is empty.
func (e *Engine) GetBestBid() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.book.bidBook.Empty() {
		return -1
	}
	return e.book.bidBook.Peek()
}

// GetBestAsk returns the lowest resting ask price, or -1 if the ask
// side is empty.
func (e *Engine) GetBestAsk() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.book.askBook.Empty() {
		return -1
	}
	return e.book.askBook.Peek()
}

// GetMarketPrice returns the most recent trade price, or -1 if no
// trades have occurred yet.
func (e *Engine) GetMarketPrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTradePrice
}

// NumTrades returns the total number of fills this engine has executed.
func (e *Engine) NumTrades() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.numTrades
}

// GetOrdersByStatus scans the engine's order index and returns a copy
// of every order currently in the given status.
func (e *Engine) GetOrdersByStatus(status Status) []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Order, 0, len(e.book.index))
	for _, idx := range e.book.index {
		o := e.book.pool.At(idx)
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// DepthLevel is one rung of a market-depth ladder: a price and the
// summed remaining quantity resting at it.
type DepthLevel struct {
	Price float64
	Qty   float64
}

// GetMarketDepth returns up to depth (price, summed quantity) pairs on
// side, starting at the best price. It materializes a sorted copy of
// the side's price heap rather than walking it destructively.
func (e *Engine) GetMarketDepth(side Side, depth int) []DepthLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()

	priceBook, levels := e.book.priceBookAndLevels(side)
	prices := priceBook.Items()
	sortPrices(prices, side)

	out := make([]DepthLevel, 0, depth)
	for _, p := range prices {
		if len(out) >= depth {
			break
		}
		level, ok := levels[p]
		if !ok {
			continue
		}
		var qty float64
		for _, entry := range level.entries.Items() {
			qty += e.book.pool.At(e.book.index[entry.ID]).Qty
		}
		out = append(out, DepthLevel{Price: p, Qty: qty})
	}
	return out
}

func sortPrices(prices []float64, side Side) {
	// Small insertion sort: price ladders in this engine are shallow
	// (a handful of distinct price levels in practice), so O(n^2) here
	// costs less than pulling in sort.Float64s for a few-element slice.
	for i := 1; i < len(prices); i++ {
		for j := i; j > 0 && less(prices[j], prices[j-1], side); j-- {
			prices[j], prices[j-1] = prices[j-1], prices[j]
		}
	}
}

func less(a, b float64, side Side) bool {
	if side == Bid {
		return a > b // descending: best bid first
	}
	return a < b // ascending: best ask first
}

// SetAutoMatch toggles whether PlaceOrder/EditOrder run the matching
// loop automatically after admission.
func (e *Engine) SetAutoMatch(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoMatch = on
}

// GetAutoMatch reports the current auto-match setting.
func (e *Engine) GetAutoMatch() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.autoMatch
}
