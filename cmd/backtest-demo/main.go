// Command backtest-demo drives the matching engine with synthetic
// order flow: interleave a Monte-Carlo order-flow generator across
// several tickers from a single driver goroutine, let the runtime's
// scheduler fan the resulting jobs out across its worker shards, wait
// for every shard to drain, then print book stats. A market maker is
// subscribed on every ticker to show the strategy callback contract's
// production call path, alongside the synthetic flow. It is satellite
// code consuming only the runtime's public operation surface.
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/luxfi/dex/book"
	"github.com/luxfi/dex/examples/montecarlo"
	"github.com/luxfi/dex/examples/strategy"
	"github.com/luxfi/dex/runtime"
)

// marketMakerUserID owns every quote posted by the market maker
// subscribed below, kept distinct from the synthetic flow's userID so
// the two never contend over the same ownership bucket.
const marketMakerUserID = 99

type tickerSpec struct {
	ticker   string
	ipoPrice float64
	ipoQty   float64
}

func main() {
	numOrders := flag.Int("orders", 10000, "orders to generate per ticker")
	numWorkers := flag.Int("workers", 4, "runtime shard count")
	volatility := flag.Float64("volatility", 0.05, "per-order log-return stddev")
	skew := flag.Float64("skew", 0.15, "side/drift bias, -1 (bearish) .. 1 (bullish)")
	verbose := flag.Bool("verbose", false, "emit lifecycle notifications")
	flag.Parse()

	tickers := []tickerSpec{
		{"AAPL", 100.0, 10000},
		{"TSLA", 250.0, 10000},
		{"AMZN", 180.0, 10000},
		{"NVDA", 900.0, 10000},
	}

	rt := runtime.New(runtime.Config{
		NumWorkers: *numWorkers,
		Verbose:    *verbose,
		Blocking:   false,
	})
	defer rt.Shutdown()

	// Every ticker's order flow is driven from this one goroutine,
	// interleaved one order at a time, so no two goroutines ever call
	// LimitOrder/MarketOrder/CancelOrder concurrently from the driver
	// side. The scheduler routes a ticker to a worker by engine id
	// modulo the worker count, so with fewer workers than tickers two
	// tickers can land on the same single-consumer queue; the
	// scheduler's per-queue lock serializes that queue's producers,
	// including the market maker submitting from a worker goroutine.
	gens := make([]*montecarlo.Generator, len(tickers))
	for i, tk := range tickers {
		rng := rand.New(rand.NewSource(int64(i + 1)))
		gens[i] = montecarlo.NewGenerator(rt, rng, montecarlo.Params{
			Ticker:     tk.ticker,
			NumOrders:  *numOrders,
			IPOPrice:   tk.ipoPrice,
			IPOQty:     tk.ipoQty,
			Volatility: *volatility,
			Skew:       *skew,
		})
		if !gens[i].Register() {
			fmt.Printf("skipping %s: already registered\n", tk.ticker)
			gens[i] = nil
			continue
		}
		// Quotes both sides of every ticker's book as it moves, the
		// callback contract's production call site: OnBookUpdate fires
		// inline on the shard worker that just processed an order, so
		// this runs interleaved with the synthetic flow above with no
		// extra goroutine of its own.
		rt.Subscribe(tk.ticker, strategy.NewMarketMaker(0.02, 50, 5000, marketMakerUserID))
	}

	for step := 0; step < *numOrders; step++ {
		for _, g := range gens {
			if g != nil {
				g.Step()
			}
		}
	}

	rt.WaitForCompletion()

	for _, tk := range tickers {
		printStats(rt, tk.ticker)
	}
}

func printStats(rt *runtime.Runtime, ticker string) {
	fmt.Printf("=== STATS FOR %s ===\n", ticker)
	fmt.Printf("MARKET PRICE: %.2f\n", rt.GetMarketPrice(ticker))
	fmt.Printf("OPEN ORDERS: %d\n", len(rt.GetOrdersByStatus(ticker, book.Open)))
	fmt.Printf("FILLED ORDERS: %d\n", len(rt.GetOrdersByStatus(ticker, book.Filled)))
	fmt.Printf("CANCELED ORDERS: %d\n", len(rt.GetOrdersByStatus(ticker, book.Cancelled)))
	fmt.Printf("REJECTED ORDERS: %d\n", len(rt.GetOrdersByStatus(ticker, book.Rejected)))

	fmt.Println("=== MARKET DEPTH BIDS ===")
	for _, lvl := range rt.GetMarketDepth(ticker, book.Bid, 10) {
		fmt.Printf(" Price: %.2f Quantity: %.2f\n", lvl.Price, lvl.Qty)
	}
	fmt.Println("=== MARKET DEPTH ASKS ===")
	for _, lvl := range rt.GetMarketDepth(ticker, book.Ask, 10) {
		fmt.Printf(" Price: %.2f Quantity: %.2f\n", lvl.Price, lvl.Qty)
	}
	fmt.Println("==============================")
}
