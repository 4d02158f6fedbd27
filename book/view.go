package book

// View is the read-only window into an Engine that the strategy
// callback contract hands to external collaborators: it exposes
// exactly the synchronous read queries, never the admission or
// mutation methods, so a strategy's OnBookUpdate hook cannot reach
// into the book except through the runtime's submission surface.
type View struct {
	engine *Engine
}

// NewView wraps engine for read-only strategy consumption.
func NewView(engine *Engine) View { return View{engine: engine} }

func (v View) Ticker() string { return v.engine.Ticker() }

func (v View) BestBid() float64 { return v.engine.GetBestBid() }

func (v View) BestAsk() float64 { return v.engine.GetBestAsk() }

func (v View) MarketPrice() float64 { return v.engine.GetMarketPrice() }

func (v View) NumTrades() uint64 { return v.engine.NumTrades() }

func (v View) Order(id OrderID) (Order, bool) { return v.engine.GetOrder(id) }

func (v View) OrdersByStatus(status Status) []Order { return v.engine.GetOrdersByStatus(status) }

func (v View) MarketDepth(side Side, depth int) []DepthLevel {
	return v.engine.GetMarketDepth(side, depth)
}
