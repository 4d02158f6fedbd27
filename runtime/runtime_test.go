package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dex/book"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(Config{NumWorkers: 4, DefaultCapacity: 1024, BatchSize: 1, Blocking: true})
	t.Cleanup(rt.Shutdown)
	return rt
}

func TestRegisterStockPlacesIPOAsk(t *testing.T) {
	rt := newTestRuntime(t)

	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))
	require.Equal(t, float64(10), rt.GetBestAsk("ACME"))

	positions := rt.Positions(IPOHolder, "ACME")
	require.Len(t, positions, 1)
}

func TestRegisterStockRejectsDuplicateTicker(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))
	require.False(t, rt.RegisterStock("ACME", 20, 500, 0))
}

func TestRegisterStockRejectsNonPositiveIPO(t *testing.T) {
	rt := newTestRuntime(t)
	require.False(t, rt.RegisterStock("ACME", 0, 1000, 0))
	require.False(t, rt.RegisterStock("ACME", 10, 0, 0))
}

func TestLimitOrderOnUnknownTickerIsInvalid(t *testing.T) {
	rt := newTestRuntime(t)
	var id book.OrderID
	accepted := rt.LimitOrder("GHOST", book.Bid, 10, 5, &id, 1)
	require.False(t, accepted)
	require.Equal(t, book.Invalid, id)
}

func TestAskWithoutSharesIsRejected(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))

	var id book.OrderID
	accepted := rt.LimitOrder("ACME", book.Ask, 11, 10, &id, 42)
	require.False(t, accepted)
	require.Equal(t, book.Invalid, id)
}

func TestHasSufficientSharesSumsOpenAskOrdersOnly(t *testing.T) {
	rt := newTestRuntime(t)
	// Disable auto-match so the IPO ask stays resting at its full
	// quantity instead of getting consumed by admission-time trades.
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))
	require.True(t, rt.SetAutoMatch("ACME", false))

	// The IPO holder's inventory is exactly its own remaining OPEN ASK
	// quantity, not a fill-derived balance. A further ask within that
	// quantity succeeds.
	var secondAsk book.OrderID
	rt.LimitOrder("ACME", book.Ask, 12, 500, &secondAsk, IPOHolder)
	require.NotEqual(t, book.Invalid, secondAsk)

	// A user who has never held an OPEN ASK order has zero sellable
	// inventory under this model, even after placing a BID.
	var buyID book.OrderID
	rt.LimitOrder("ACME", book.Bid, 10, 100, &buyID, 7)
	require.NotEqual(t, book.Invalid, buyID)

	var sellID book.OrderID
	rt.LimitOrder("ACME", book.Ask, 10, 50, &sellID, 7)
	require.Equal(t, book.Invalid, sellID)
}

func TestCancelOrderClearsOwnership(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))

	var buyID book.OrderID
	rt.LimitOrder("ACME", book.Bid, 5, 20, &buyID, 3)
	require.NotEqual(t, book.Invalid, buyID)

	var canceled bool
	rt.CancelOrder("ACME", buyID, 3, &canceled)
	require.True(t, canceled)

	require.Empty(t, rt.Positions(3, "ACME"))
}

func TestEditOrderPreservesID(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))

	var buyID book.OrderID
	rt.LimitOrder("ACME", book.Bid, 5, 20, &buyID, 3)

	var edited book.OrderID
	rt.EditOrder("ACME", buyID, book.Bid, 6, 25, &edited)
	require.Equal(t, buyID, edited)

	order, ok := rt.GetOrder("ACME", buyID)
	require.True(t, ok)
	require.Equal(t, float64(6), order.Price)
	require.Equal(t, float64(25), order.Qty)
}

func TestMarketOrderAgainstIPORejectsOnceExhausted(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 5, 0))

	var id book.OrderID
	rt.MarketOrder("ACME", book.Bid, 5, &id, 1)
	require.NotEqual(t, book.Invalid, id)

	// Book is empty on the ask side now; a second market buy must reject.
	var id2 book.OrderID
	rt.MarketOrder("ACME", book.Bid, 1, &id2, 1)
	require.Equal(t, book.Invalid, id2)
}

// TestMarketOrderBeyondLiquidityFillsAndDropsRemainder covers a MARKET
// order asking for more than the opposing side holds: it ends FILLED
// with the remainder dropped and never appears resting anywhere.
func TestMarketOrderBeyondLiquidityFillsAndDropsRemainder(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 5, 0))

	var id book.OrderID
	rt.MarketOrder("ACME", book.Bid, 10, &id, 1)
	require.NotEqual(t, book.Invalid, id)

	order, ok := rt.GetOrder("ACME", id)
	require.True(t, ok)
	require.Equal(t, book.Filled, order.Status)
	require.Equal(t, float64(0), order.Qty)

	require.Empty(t, rt.GetOrdersByStatus("ACME", book.Open))
	require.Empty(t, rt.GetMarketDepth("ACME", book.Bid, 5))
	require.Empty(t, rt.GetMarketDepth("ACME", book.Ask, 5))
	require.Equal(t, float64(10), rt.GetMarketPrice("ACME"))
}

// TestNonBlockingResultCellFillsOnlyAfterDrain is the non-blocking half
// of LimitOrder's result-cell contract: submission accepted is reported
// immediately, but the order id isn't known until the owning shard's
// queue actually drains.
func TestNonBlockingResultCellFillsOnlyAfterDrain(t *testing.T) {
	rt := New(Config{NumWorkers: 1, DefaultCapacity: 64, Blocking: false})
	defer rt.Shutdown()
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))

	var id book.OrderID
	accepted := rt.LimitOrder("ACME", book.Bid, 5, 20, &id, 3)
	require.True(t, accepted)
	require.Equal(t, book.Invalid, id, "result cell must not be populated before the job runs")

	rt.WaitForCompletion()
	require.NotEqual(t, book.Invalid, id, "result cell must be populated once the shard drains")
}

// TestMultiShardStressInterleavedAcrossTickers exercises 8 tickers with
// ~1,000 limit orders each, submitted interleaved from a single driver
// goroutine (the runtime's scheduler shards work across worker
// goroutines internally; the *submitter* stays single-threaded, since
// every owner's dbuf.Buffer allows exactly one producer).
func TestMultiShardStressInterleavedAcrossTickers(t *testing.T) {
	rt := New(Config{NumWorkers: 8, DefaultCapacity: 4096, BatchSize: 64, Blocking: true})
	defer rt.Shutdown()

	tickers := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG", "HHH"}
	for _, tk := range tickers {
		require.True(t, rt.RegisterStock(tk, 100, 1_000_000, 0))
	}

	const perTicker = 1000
	highestBid := make(map[string]float64, len(tickers))
	userID := uint32(100)

	for j := 0; j < perTicker; j++ {
		for _, tk := range tickers {
			price := 50 + float64(j%50)
			var id book.OrderID
			rt.LimitOrder(tk, book.Bid, price, 5, &id, userID)
			require.NotEqual(t, book.Invalid, id)
			if price > highestBid[tk] {
				highestBid[tk] = price
			}
		}
	}
	rt.WaitForCompletion()

	for _, tk := range tickers {
		require.True(t, rt.IsEngineCompleted(tk))
		require.Equal(t, highestBid[tk], rt.GetBestBid(tk))
		require.Len(t, rt.Positions(userID, tk), perTicker)
	}
	require.True(t, rt.AllJobsCompleted())
}

// recordingStrategy satisfies Strategy by appending every callback
// invocation to its own counters, guarded by a mutex since callbacks
// can arrive from a worker goroutine different from the test's.
type recordingStrategy struct {
	mu          sync.Mutex
	bookUpdates int
	fills       []book.OrderID
	cancels     []book.OrderID
	rejects     []string
}

func (r *recordingStrategy) OnBookUpdate(ticker string, view book.View, rt *Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookUpdates++
}

func (r *recordingStrategy) OnFill(ticker string, id book.OrderID, price, qty float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, id)
}

func (r *recordingStrategy) OnCancel(ticker string, id book.OrderID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, id)
}

func (r *recordingStrategy) OnReject(ticker string, id book.OrderID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejects = append(r.rejects, reason)
}

func (r *recordingStrategy) snapshot() (updates, fills, cancels, rejects int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookUpdates, len(r.fills), len(r.cancels), len(r.rejects)
}

func TestSubscribeReportsUnknownTicker(t *testing.T) {
	rt := newTestRuntime(t)
	require.False(t, rt.Subscribe("GHOST", &recordingStrategy{}))
}

// TestSubscribeReceivesBookUpdateFillCancelAndReject drives one
// strategy through all four callbacks via the runtime's own admission
// and matching path, not by calling the hooks directly.
func TestSubscribeReceivesBookUpdateFillCancelAndReject(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 5, 0))

	rs := &recordingStrategy{}
	require.True(t, rt.Subscribe("ACME", rs))

	// Crosses the resting IPO ask fully, producing a fill on both sides.
	var buyID book.OrderID
	rt.MarketOrder("ACME", book.Bid, 5, &buyID, 1)
	require.NotEqual(t, book.Invalid, buyID)

	// The ask side is now empty; a second market buy rejects from inside
	// the engine's own admission path.
	var rejectedID book.OrderID
	rt.MarketOrder("ACME", book.Bid, 1, &rejectedID, 1)
	require.Equal(t, book.Invalid, rejectedID)

	var limitID book.OrderID
	rt.LimitOrder("ACME", book.Bid, 5, 10, &limitID, 2)
	require.NotEqual(t, book.Invalid, limitID)
	var canceled bool
	rt.CancelOrder("ACME", limitID, 2, &canceled)
	require.True(t, canceled)

	updates, fills, cancels, rejects := rs.snapshot()
	require.Positive(t, updates)
	require.Positive(t, fills)
	require.Equal(t, 1, cancels)
	require.Equal(t, 1, rejects)
}

func TestResetClearsStocksAndOwnership(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))
	rt.Reset()

	require.Empty(t, rt.ListTickers())
	require.Empty(t, rt.Positions(IPOHolder, "ACME"))
	require.Equal(t, float64(-1), rt.GetBestAsk("ACME"))
}

func TestUnregisterStockRemovesTicker(t *testing.T) {
	rt := newTestRuntime(t)
	require.True(t, rt.RegisterStock("ACME", 10, 1000, 0))
	require.True(t, rt.UnregisterStock("ACME"))
	require.False(t, rt.UnregisterStock("ACME"))
	require.NotContains(t, rt.ListTickers(), "ACME")
}
