// Package runtime is the exchange-level facade over a set of book
// Engines: it registers instruments, routes order operations to the
// scheduler shard that owns each instrument, validates pre-trade share
// ownership on ASK orders, and exposes synchronous read queries.
package runtime

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/dex/book"
	"github.com/luxfi/dex/internal/arena"
	"github.com/luxfi/dex/scheduler"
	"github.com/luxfi/log"
)

// IPOHolder is the participant id that owns every share issued at
// registration time, before any trading occurs.
const IPOHolder uint32 = 0

// stockInfo pairs a registered instrument's engine with the shard it
// was assigned to at registration, plus any strategies subscribed to
// its lifecycle.
type stockInfo struct {
	engine     *book.Engine
	engineID   uint32
	strategies []Strategy
}

// Strategy is the callback contract a subscriber implements to react to
// one instrument's order flow. OnBookUpdate fires after every accepted
// order/cancel/edit job, inline on the shard's worker goroutine, with a
// consistent snapshot of the book; OnFill/OnCancel/OnReject fire from
// inside the engine's own matching/cancel/admission path as those
// events occur. Defined here, rather than imported from elsewhere, so
// Runtime never depends on any concrete strategy package — anything
// with this method set, including the strategies built against it,
// satisfies it and can Subscribe.
type Strategy interface {
	OnBookUpdate(ticker string, view book.View, rt *Runtime)
	OnFill(ticker string, id book.OrderID, price, qty float64)
	OnCancel(ticker string, id book.OrderID)
	OnReject(ticker string, id book.OrderID, reason string)
}

// strategyListener adapts a ticker's subscribed strategies to
// book.Listener, so the engine can fan its notifications out without
// knowing anything about Runtime or Strategy.
type strategyListener struct {
	rt     *Runtime
	ticker string
	info   *stockInfo
}

func (l *strategyListener) OnFill(id book.OrderID, price, qty float64) {
	l.rt.mu.RLock()
	strategies := l.info.strategies
	l.rt.mu.RUnlock()
	for _, s := range strategies {
		s.OnFill(l.ticker, id, price, qty)
	}
}

func (l *strategyListener) OnCancel(id book.OrderID) {
	l.rt.mu.RLock()
	strategies := l.info.strategies
	l.rt.mu.RUnlock()
	for _, s := range strategies {
		s.OnCancel(l.ticker, id)
	}
}

func (l *strategyListener) OnReject(id book.OrderID, reason error) {
	l.rt.mu.RLock()
	strategies := l.info.strategies
	l.rt.mu.RUnlock()
	for _, s := range strategies {
		s.OnReject(l.ticker, id, reason.Error())
	}
}

// Config controls a Runtime's shard count, default book capacity, and
// batching/blocking policy.
type Config struct {
	NumWorkers      int
	DefaultCapacity int
	BatchSize       int
	Verbose         bool
	Blocking        bool
}

func (c Config) withDefaults() Config {
	if c.NumWorkers < 1 {
		c.NumWorkers = 4
	}
	if c.DefaultCapacity < 1 {
		c.DefaultCapacity = 100000
	}
	if c.BatchSize < 1 {
		c.BatchSize = c.DefaultCapacity
	}
	return c
}

// orderJobArgs is the slab-allocated payload for one order job. Each
// worker has its own arena of these; a job holds only the arena index
// and copies its arguments out when it runs. resultID/resultOK are
// the caller's result cells: the job closure writes into them when it
// runs, which may be after the submitting call has already returned in
// non-blocking mode.
type orderJobArgs struct {
	engine   *book.Engine
	side     book.Side
	typ      book.Type
	price    float64
	qty      float64
	orderID  book.OrderID
	userID   uint32
	resultID *book.OrderID
	resultOK *bool
}

// Runtime is the exchange facade: a registry of instruments, a
// scheduler of worker shards, and the ownership bookkeeping that
// pre-trade validation reads.
type Runtime struct {
	mu            sync.RWMutex
	stocks        map[string]*stockInfo
	nextEngineID  uint32

	sched *scheduler.Scheduler
	cfg   Config

	// arenas[w] slab-allocates job arguments for worker w. Allocation
	// happens on the submitting goroutine, the cleanup free on the
	// worker, so each arena gets its own mutex — the same two-goroutine
	// pattern the ownership map resolves below.
	arenas  []*arena.Arena[orderJobArgs]
	arenaMu []sync.Mutex

	batchMu      sync.Mutex
	batchCounter int

	ownershipMu sync.RWMutex
	// ownership[userID][ticker] holds the set of order ids that user
	// submitted on that ticker, mirroring UserOrderMap.
	ownership map[uint32]map[string]map[book.OrderID]struct{}

	logger log.Logger

	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// New creates a Runtime with one arena of job arguments per worker
// shard, sized to the configured batch size.
func New(cfg Config) *Runtime {
	cfg = cfg.withDefaults()

	arenas := make([]*arena.Arena[orderJobArgs], cfg.NumWorkers)
	for i := range arenas {
		arenas[i] = arena.New[orderJobArgs](cfg.BatchSize)
	}

	rt := &Runtime{
		stocks:    make(map[string]*stockInfo),
		sched:     scheduler.New(cfg.NumWorkers, cfg.BatchSize),
		arenas:    arenas,
		arenaMu:   make([]sync.Mutex, cfg.NumWorkers),
		cfg:       cfg,
		ownership: make(map[uint32]map[string]map[book.OrderID]struct{}),
		logger:    log.NewLogger("runtime"),
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_runtime_orders_submitted_total",
			Help: "Orders submitted to the runtime, by ticker and side.",
		}, []string{"ticker", "side"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_runtime_orders_rejected_total",
			Help: "Orders rejected at admission, by ticker and reason.",
		}, []string{"ticker", "reason"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_runtime_worker_queue_depth",
			Help: "Pending writes on a worker's job queue.",
		}, []string{"worker"}),
	}
	return rt
}

// Collectors returns the runtime's prometheus collectors for
// registration with a prometheus.Registry.
func (rt *Runtime) Collectors() []prometheus.Collector {
	return []prometheus.Collector{rt.ordersSubmitted, rt.ordersRejected, rt.queueDepth}
}

// RegisterStock creates a new instrument, backs it with a fresh Engine,
// and places the IPO ask (ipoQty shares at ipoPrice, owned by
// IPOHolder) so the book starts non-empty. capacity of 0 uses the
// runtime's default.
func (rt *Runtime) RegisterStock(ticker string, ipoPrice, ipoQty float64, capacity int) bool {
	rt.mu.Lock()
	if ipoPrice <= 0 || ipoQty <= 0 {
		rt.mu.Unlock()
		rt.logf("Stock Registration Error: IPO Price/Quantity must be > 0")
		return false
	}
	if _, exists := rt.stocks[ticker]; exists {
		rt.mu.Unlock()
		rt.logf("Stock Registration Error: Stock Already Exist")
		return false
	}
	if capacity <= 0 {
		capacity = rt.cfg.DefaultCapacity
	}
	engineID := rt.nextEngineID
	rt.nextEngineID++

	engine := book.NewEngine(ticker, capacity, rt.cfg.Verbose, nil)
	rt.stocks[ticker] = &stockInfo{engine: engine, engineID: engineID}
	rt.mu.Unlock()

	ipoOrder := engine.PlaceOrder(book.Ask, book.Limit, ipoPrice, ipoQty)
	if ipoOrder == book.Invalid {
		rt.mu.Lock()
		delete(rt.stocks, ticker)
		rt.mu.Unlock()
		rt.logf("Stock Registration Error: IPO Order Failed to Place")
		return false
	}

	rt.trackOwnership(IPOHolder, ticker, ipoOrder)

	if rt.cfg.Verbose {
		rt.logger.Info("REGISTERED", "ticker", ticker, "ipo_qty", ipoQty, "ipo_price", ipoPrice, "owner", IPOHolder)
	}
	return true
}

// Subscribe registers s to receive ticker's lifecycle callbacks
// (OnBookUpdate/OnFill/OnCancel/OnReject), invoked inline on the shard's
// worker goroutine as those events occur. It reports false if ticker is
// unknown.
//
// A strategy that submits orders from OnBookUpdate needs Config.Blocking
// false: LimitOrder et al. called from the worker goroutine that is
// itself mid-job would otherwise wait on a drain only that same
// goroutine can perform.
func (rt *Runtime) Subscribe(ticker string, s Strategy) bool {
	rt.mu.Lock()
	info, ok := rt.stocks[ticker]
	if !ok {
		rt.mu.Unlock()
		return false
	}
	needListener := len(info.strategies) == 0
	info.strategies = append(info.strategies, s)
	rt.mu.Unlock()

	// SetListener takes the engine lock, which a worker mid-notify
	// holds while reading rt.mu; wiring it outside rt.mu keeps the lock
	// order one-way.
	if needListener {
		info.engine.SetListener(&strategyListener{rt: rt, ticker: ticker, info: info})
	}
	return true
}

// notifyBookUpdate runs ticker's subscribed strategies' OnBookUpdate
// against a fresh view of the book, inline on the calling goroutine —
// which, for every caller in this package, is the shard worker that
// just finished processing the job that triggered it.
func (rt *Runtime) notifyBookUpdate(ticker string, info *stockInfo) {
	rt.mu.RLock()
	strategies := info.strategies
	rt.mu.RUnlock()
	if len(strategies) == 0 {
		return
	}
	view := book.NewView(info.engine)
	for _, s := range strategies {
		s.OnBookUpdate(ticker, view, rt)
	}
}

// UnregisterStock removes ticker from the exchange after draining any
// jobs still pending on its shard.
func (rt *Runtime) UnregisterStock(ticker string) bool {
	rt.mu.RLock()
	_, ok := rt.stocks[ticker]
	rt.mu.RUnlock()
	if !ok {
		rt.logf("Stock Unregistration Error: Stock Does Not Exist")
		return false
	}

	rt.WaitForCompletion()

	rt.mu.Lock()
	delete(rt.stocks, ticker)
	rt.mu.Unlock()

	rt.ownershipMu.Lock()
	for _, byTicker := range rt.ownership {
		delete(byTicker, ticker)
	}
	rt.ownershipMu.Unlock()

	if rt.cfg.Verbose {
		rt.logger.Info("UNREGISTERED", "ticker", ticker)
	}
	return true
}

// Reset clears every registered instrument, all ownership tracking,
// and every worker arena, leaving the Runtime as if freshly created
// with the same Config.
func (rt *Runtime) Reset() {
	rt.WaitForCompletion()

	rt.mu.Lock()
	rt.stocks = make(map[string]*stockInfo)
	rt.nextEngineID = 0
	rt.mu.Unlock()

	rt.batchMu.Lock()
	rt.batchCounter = 0
	rt.batchMu.Unlock()

	rt.ownershipMu.Lock()
	rt.ownership = make(map[uint32]map[string]map[book.OrderID]struct{})
	rt.ownershipMu.Unlock()

	for w := range rt.arenas {
		rt.arenaMu[w].Lock()
		rt.arenas[w].Reset()
		rt.arenaMu[w].Unlock()
	}

	if rt.cfg.Verbose {
		rt.logger.Info("RESET", "msg", "all stocks and orders cleared")
	}
}

func (rt *Runtime) logf(msg string) {
	if rt.cfg.Verbose {
		rt.logger.Info(msg)
	}
}

func (rt *Runtime) lookup(ticker string) (*stockInfo, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	info, ok := rt.stocks[ticker]
	return info, ok
}

func (rt *Runtime) workerFor(engineID uint32) scheduler.WorkerID {
	return scheduler.WorkerID(uint64(engineID) % uint64(rt.cfg.NumWorkers))
}

func (rt *Runtime) trackOwnership(userID uint32, ticker string, id book.OrderID) {
	rt.ownershipMu.Lock()
	defer rt.ownershipMu.Unlock()
	byTicker, ok := rt.ownership[userID]
	if !ok {
		byTicker = make(map[string]map[book.OrderID]struct{})
		rt.ownership[userID] = byTicker
	}
	ids, ok := byTicker[ticker]
	if !ok {
		ids = make(map[book.OrderID]struct{})
		byTicker[ticker] = ids
	}
	ids[id] = struct{}{}
}

func (rt *Runtime) untrackOwnership(userID uint32, ticker string, id book.OrderID) {
	rt.ownershipMu.Lock()
	defer rt.ownershipMu.Unlock()
	if byTicker, ok := rt.ownership[userID]; ok {
		if ids, ok := byTicker[ticker]; ok {
			delete(ids, id)
		}
	}
}

// Positions returns every order id userID has submitted on ticker.
func (rt *Runtime) Positions(userID uint32, ticker string) []book.OrderID {
	rt.ownershipMu.RLock()
	defer rt.ownershipMu.RUnlock()
	byTicker, ok := rt.ownership[userID]
	if !ok {
		return nil
	}
	ids, ok := byTicker[ticker]
	if !ok {
		return nil
	}
	out := make([]book.OrderID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

// hasSufficientShares sums the remaining quantity of userID's OPEN ASK
// orders on ticker and reports whether it covers qty — the pre-trade
// check that keeps a seller from shorting shares they were never
// allocated.
func (rt *Runtime) hasSufficientShares(userID uint32, ticker string, qty float64) bool {
	info, ok := rt.lookup(ticker)
	if !ok {
		return false
	}
	ids := rt.Positions(userID, ticker)
	if len(ids) == 0 {
		return false
	}
	var total float64
	for _, id := range ids {
		order, ok := info.engine.GetOrder(id)
		if ok && order.Status == book.Open && order.Side == book.Ask {
			total += order.Qty
		}
	}
	return total >= qty
}

func (rt *Runtime) maybeAutoExecute() {
	if rt.cfg.BatchSize <= 0 {
		return
	}
	rt.batchMu.Lock()
	rt.batchCounter++
	fire := rt.batchCounter >= rt.cfg.BatchSize
	if fire {
		rt.batchCounter = 0
	}
	rt.batchMu.Unlock()
	if fire {
		rt.ExecuteBatch()
	}
}

// LimitOrder submits a LIMIT order on ticker for userID. It writes the
// resulting order id into *resultID — book.Invalid if admission was
// rejected (unknown ticker, non-positive price/qty, or insufficient
// shares on an ASK) — and returns whether the order was accepted for
// execution. resultID may be nil if the caller doesn't need the id.
//
// In blocking mode (Config.Blocking), *resultID holds the final result
// by the time this call returns. In non-blocking mode the job is only
// queued: *resultID stays book.Invalid until the owning shard is
// flushed (by ExecuteBatch, WaitForCompletion, or the batch-size
// auto-flush) and the job's closure writes into it, so callers that
// need the id under non-blocking submission must wait for the shard
// to drain before reading *resultID.
func (rt *Runtime) LimitOrder(ticker string, side book.Side, price, qty float64, resultID *book.OrderID, userID uint32) bool {
	setResult(resultID, book.Invalid)

	info, ok := rt.lookup(ticker)
	if !ok {
		rt.reject(ticker, "stock does not exist")
		return false
	}
	if price <= 0 || qty <= 0 {
		rt.reject(ticker, "price/quantity must be > 0")
		return false
	}
	if side == book.Ask && !rt.hasSufficientShares(userID, ticker, qty) {
		rt.reject(ticker, "insufficient shares")
		return false
	}

	workerID := rt.workerFor(info.engineID)
	args := orderJobArgs{engine: info.engine, side: side, typ: book.Limit, price: price, qty: qty, userID: userID, resultID: resultID}
	return rt.submitOrderJob(workerID, ticker, info, args)
}

// MarketOrder submits a MARKET order on ticker for userID, following
// the same ownership check, batching policy, and result-cell contract
// as LimitOrder.
func (rt *Runtime) MarketOrder(ticker string, side book.Side, qty float64, resultID *book.OrderID, userID uint32) bool {
	setResult(resultID, book.Invalid)

	info, ok := rt.lookup(ticker)
	if !ok {
		rt.reject(ticker, "stock does not exist")
		return false
	}
	if qty <= 0 {
		rt.reject(ticker, "quantity must be > 0")
		return false
	}
	if side == book.Ask && !rt.hasSufficientShares(userID, ticker, qty) {
		rt.reject(ticker, "insufficient shares")
		return false
	}

	workerID := rt.workerFor(info.engineID)
	args := orderJobArgs{engine: info.engine, side: side, typ: book.Market, qty: qty, userID: userID, resultID: resultID}
	return rt.submitOrderJob(workerID, ticker, info, args)
}

// allocArgs slab-allocates args on workerID's arena, reporting failure
// when the arena is at capacity.
func (rt *Runtime) allocArgs(workerID scheduler.WorkerID, args orderJobArgs) (arena.Index, bool) {
	rt.arenaMu[workerID].Lock()
	idx := rt.arenas[workerID].Allocate(args)
	rt.arenaMu[workerID].Unlock()
	return idx, idx != arena.Invalid
}

// takeArgs copies idx's record out of workerID's arena.
func (rt *Runtime) takeArgs(workerID scheduler.WorkerID, idx arena.Index) orderJobArgs {
	rt.arenaMu[workerID].Lock()
	args := rt.arenas[workerID].At(idx)
	rt.arenaMu[workerID].Unlock()
	return args
}

// freeArgs is the job cleanup step: it returns idx to workerID's arena.
func (rt *Runtime) freeArgs(workerID scheduler.WorkerID, idx arena.Index) {
	rt.arenaMu[workerID].Lock()
	rt.arenas[workerID].Free(idx)
	rt.arenaMu[workerID].Unlock()
}

func (rt *Runtime) submitOrderJob(workerID scheduler.WorkerID, ticker string, info *stockInfo, args orderJobArgs) bool {
	idx, ok := rt.allocArgs(workerID, args)
	if !ok {
		rt.reject(ticker, "arena overflow")
		return false
	}

	done := make(chan struct{})

	rt.sched.SubmitJob(scheduler.Job{
		OwnerID: uint64(info.engineID),
		Execute: func() {
			defer close(done)
			params := rt.takeArgs(workerID, idx)
			id := params.engine.PlaceOrder(params.side, params.typ, params.price, params.qty)
			setResult(params.resultID, id)
			if id != book.Invalid {
				rt.trackOwnership(params.userID, ticker, id)
				rt.ordersSubmitted.WithLabelValues(ticker, params.side.String()).Inc()
			}
			rt.notifyBookUpdate(ticker, info)
		},
		Cleanup: func() { rt.freeArgs(workerID, idx) },
	})

	rt.maybeAutoExecute()
	if rt.cfg.Blocking {
		rt.ExecuteBatch()
		<-done
	}
	return true
}

// CancelOrder submits cancellation of id on ticker for userID. It
// writes whether the cancel succeeded into *resultOK and returns
// whether the job was accepted for execution, following the same
// blocking/non-blocking result-cell contract as LimitOrder. resultOK
// may be nil if the caller doesn't need the outcome.
func (rt *Runtime) CancelOrder(ticker string, id book.OrderID, userID uint32, resultOK *bool) bool {
	setResult(resultOK, false)

	info, ok := rt.lookup(ticker)
	if !ok {
		rt.reject(ticker, "stock does not exist")
		return false
	}

	workerID := rt.workerFor(info.engineID)
	idx, ok := rt.allocArgs(workerID, orderJobArgs{engine: info.engine, orderID: id, userID: userID, resultOK: resultOK})
	if !ok {
		rt.reject(ticker, "arena overflow")
		return false
	}

	done := make(chan struct{})
	rt.sched.SubmitJob(scheduler.Job{
		OwnerID: uint64(info.engineID),
		Execute: func() {
			defer close(done)
			params := rt.takeArgs(workerID, idx)
			result := params.engine.CancelOrder(params.orderID)
			setResult(params.resultOK, result)
			if result {
				rt.untrackOwnership(params.userID, ticker, params.orderID)
			}
			rt.notifyBookUpdate(ticker, info)
		},
		Cleanup: func() { rt.freeArgs(workerID, idx) },
	})

	rt.maybeAutoExecute()
	if rt.cfg.Blocking {
		rt.ExecuteBatch()
		<-done
	}
	return true
}

// EditOrder cancels id and reinserts it with the supplied side/price/
// qty, per book.Engine.EditOrder's semantics. It writes the (preserved)
// order id, or book.Invalid on failure, into *resultID and returns
// whether the job was accepted for execution, following the same
// blocking/non-blocking result-cell contract as LimitOrder.
func (rt *Runtime) EditOrder(ticker string, id book.OrderID, side book.Side, price, qty float64, resultID *book.OrderID) bool {
	setResult(resultID, book.Invalid)

	info, ok := rt.lookup(ticker)
	if !ok {
		rt.reject(ticker, "stock does not exist")
		return false
	}

	workerID := rt.workerFor(info.engineID)
	idx, ok := rt.allocArgs(workerID, orderJobArgs{engine: info.engine, side: side, price: price, qty: qty, orderID: id, resultID: resultID})
	if !ok {
		rt.reject(ticker, "arena overflow")
		return false
	}

	done := make(chan struct{})
	rt.sched.SubmitJob(scheduler.Job{
		OwnerID: uint64(info.engineID),
		Execute: func() {
			defer close(done)
			params := rt.takeArgs(workerID, idx)
			id := params.engine.EditOrder(params.orderID, params.side, params.price, params.qty)
			setResult(params.resultID, id)
			rt.notifyBookUpdate(ticker, info)
		},
		Cleanup: func() { rt.freeArgs(workerID, idx) },
	})

	rt.maybeAutoExecute()
	if rt.cfg.Blocking {
		rt.ExecuteBatch()
		<-done
	}
	return true
}

// setResult writes value into *cell if cell is non-nil, the shared
// nil-tolerant write every job closure uses for its caller's result
// cell.
func setResult[T any](cell *T, value T) {
	if cell != nil {
		*cell = value
	}
}

func (rt *Runtime) reject(ticker, reason string) {
	rt.ordersRejected.WithLabelValues(ticker, reason).Inc()
	if rt.cfg.Verbose {
		rt.logger.Info("REJECTED", "ticker", ticker, "reason", reason)
	}
}

// GetOrder returns a copy of id's current record on ticker.
func (rt *Runtime) GetOrder(ticker string, id book.OrderID) (book.Order, bool) {
	info, ok := rt.lookup(ticker)
	if !ok {
		return book.Order{}, false
	}
	return info.engine.GetOrder(id)
}

// GetMarketPrice returns ticker's most recent trade price, or -1.
func (rt *Runtime) GetMarketPrice(ticker string) float64 {
	info, ok := rt.lookup(ticker)
	if !ok {
		return -1
	}
	return info.engine.GetMarketPrice()
}

// GetBestBid returns ticker's best resting bid, or -1 if the side is
// empty or the ticker is unknown.
func (rt *Runtime) GetBestBid(ticker string) float64 {
	info, ok := rt.lookup(ticker)
	if !ok {
		return -1
	}
	return info.engine.GetBestBid()
}

// GetBestAsk returns ticker's best resting ask, or -1 if the side is
// empty or the ticker is unknown.
func (rt *Runtime) GetBestAsk(ticker string) float64 {
	info, ok := rt.lookup(ticker)
	if !ok {
		return -1
	}
	return info.engine.GetBestAsk()
}

// GetOrdersByStatus returns every order on ticker currently in status.
func (rt *Runtime) GetOrdersByStatus(ticker string, status book.Status) []book.Order {
	info, ok := rt.lookup(ticker)
	if !ok {
		return nil
	}
	return info.engine.GetOrdersByStatus(status)
}

// GetMarketDepth returns up to depth price/quantity rungs on side for
// ticker.
func (rt *Runtime) GetMarketDepth(ticker string, side book.Side, depth int) []book.DepthLevel {
	info, ok := rt.lookup(ticker)
	if !ok {
		return nil
	}
	return info.engine.GetMarketDepth(side, depth)
}

// ListTickers returns every currently registered instrument.
func (rt *Runtime) ListTickers() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]string, 0, len(rt.stocks))
	for ticker := range rt.stocks {
		out = append(out, ticker)
	}
	return out
}

// GetEngine returns the underlying Engine for ticker, for callers (such
// as strategy callbacks) that need a book.View.
func (rt *Runtime) GetEngine(ticker string) (*book.Engine, bool) {
	info, ok := rt.lookup(ticker)
	if !ok {
		return nil, false
	}
	return info.engine, true
}

// SetAutoMatch toggles ticker's engine's auto-match setting.
func (rt *Runtime) SetAutoMatch(ticker string, on bool) bool {
	info, ok := rt.lookup(ticker)
	if !ok {
		return false
	}
	info.engine.SetAutoMatch(on)
	return true
}

// GetAutoMatch reports ticker's engine's current auto-match setting.
func (rt *Runtime) GetAutoMatch(ticker string) bool {
	info, ok := rt.lookup(ticker)
	if !ok {
		return false
	}
	return info.engine.GetAutoMatch()
}

// ExecuteBatch flushes every worker's pending jobs, blocking until they
// drain if the runtime is in blocking mode, and then publishes each
// worker's queue-depth gauge.
func (rt *Runtime) ExecuteBatch() {
	if rt.cfg.Blocking {
		rt.sched.ProcessJobs()
	} else {
		rt.sched.ProcessJobsAsync()
	}
	rt.publishQueueDepth()
}

// ExecuteBatchOn flushes only workerID's pending jobs.
func (rt *Runtime) ExecuteBatchOn(workerID scheduler.WorkerID) {
	if rt.cfg.Blocking {
		rt.sched.ProcessJobsOn(workerID)
	} else {
		rt.sched.ProcessJobsOnAsync(workerID)
	}
	rt.publishQueueDepth()
}

func (rt *Runtime) publishQueueDepth() {
	for i := 0; i < rt.sched.WorkerCount(); i++ {
		pending, _ := rt.sched.QueueDepth(scheduler.WorkerID(i))
		rt.queueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(pending))
	}
}

// WaitForCompletion blocks until every worker's queue has drained.
func (rt *Runtime) WaitForCompletion() {
	rt.sched.ProcessJobs()
}

// AllJobsCompleted reports whether every worker's queue is empty.
func (rt *Runtime) AllJobsCompleted() bool {
	return rt.sched.IsComplete()
}

// IsEngineCompleted reports whether ticker's shard has drained.
func (rt *Runtime) IsEngineCompleted(ticker string) bool {
	info, ok := rt.lookup(ticker)
	if !ok {
		return false
	}
	return rt.sched.IsWorkerComplete(rt.workerFor(info.engineID))
}

// SetBlockingMode toggles whether ExecuteBatch/order submission waits
// for job completion.
func (rt *Runtime) SetBlockingMode(blocking bool) { rt.cfg.Blocking = blocking }

// GetBlockingMode reports the current blocking-mode setting.
func (rt *Runtime) GetBlockingMode() bool { return rt.cfg.Blocking }

// SetBatchSize changes the auto-execute threshold and resets the
// pending-job counter.
func (rt *Runtime) SetBatchSize(batchSize int) {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	rt.cfg.BatchSize = batchSize
	rt.batchCounter = 0
}

// GetBatchSize returns the current auto-execute threshold.
func (rt *Runtime) GetBatchSize() int { return rt.cfg.BatchSize }

// Shutdown drains every worker's queue and stops the scheduler.
func (rt *Runtime) Shutdown() {
	rt.sched.Shutdown()
}
