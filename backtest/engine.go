package backtest

import (
	"container/heap"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/0x5487/lob-sim"
	"github.com/0x5487/lob-sim/signals"
)

// ErrNoDataSource is returned by Run when no data source was configured.
var ErrNoDataSource = errors.New("backtest: no data source configured")

// PerfStats profiles one engine run.
type PerfStats struct {
	EventsProcessed uint64
	OrdersSent      uint64
	OrdersFilled    uint64
	StrategyTime    time.Duration
	MatchingTime    time.Duration
	SignalTime      time.Duration
}

// AverageStrategyLatency returns mean strategy time per event in
// nanoseconds.
func (s PerfStats) AverageStrategyLatency() float64 {
	if s.EventsProcessed == 0 {
		return 0
	}
	return float64(s.StrategyTime.Nanoseconds()) / float64(s.EventsProcessed)
}

// parkedOrder is a stop order waiting for its trigger price.
type parkedOrder struct {
	symbol    string
	side      lob.Side
	typ       lob.OrderType
	price     lob.Price
	stopPrice lob.Price
	quantity  lob.Quantity
	clientID  string
}

// SimulationEngine replays a DataSource through per-symbol books and
// strategies, producing a BacktestResult.
//
// The engine is single-threaded: it is the sole mutator of books,
// portfolio and price marks, and strategy callbacks run synchronously
// inside the loop. Stop is the only cross-goroutine entry point.
type SimulationEngine struct {
	runID      string
	dataSource DataSource
	strategies []Strategy
	portfolio  *Portfolio
	books      map[string]*lob.OrderBook
	generator  *signals.Generator

	currentPrices map[string]decimal.Decimal
	currentTime   lob.Timestamp

	// Internal queue for events spawned during processing (strategy
	// orders, synthesized signals). Drained fully before the next
	// source event is pulled.
	queue eventHeap
	seq   uint64

	signalInterval int
	marketEvents   uint64

	history []Snapshot
	trades  []TradeRecord
	parked  []parkedOrder

	stopped atomic.Bool
	perf    PerfStats
	result  BacktestResult
}

// NewEngine creates an engine with a fresh portfolio (1,000,000
// capital, 1 bps commission) and the default signal calculators.
func NewEngine() *SimulationEngine {
	e := &SimulationEngine{
		runID:         xid.New().String(),
		portfolio:     NewPortfolio(decimal.NewFromInt(1000000)),
		books:         make(map[string]*lob.OrderBook),
		generator:     signals.NewGenerator(),
		currentPrices: make(map[string]decimal.Decimal),
	}
	e.generator.Add(signals.NewImbalanceCalculator(5, 0.3))
	e.generator.Add(signals.MicropriceCalculator{})
	e.generator.Add(signals.NewSpreadZScore(50))
	return e
}

// RunID identifies this engine instance in logs and results.
func (e *SimulationEngine) RunID() string { return e.runID }

// SetDataSource installs the event feed.
func (e *SimulationEngine) SetDataSource(ds DataSource) { e.dataSource = ds }

// AddStrategy registers a strategy and hands it its parameters.
func (e *SimulationEngine) AddStrategy(s Strategy, params Params) {
	s.Initialize(params)
	e.strategies = append(e.strategies, s)
}

// SetInitialCapital resets the portfolio to the given capital. Call
// before Run.
func (e *SimulationEngine) SetInitialCapital(capital decimal.Decimal) {
	rate := e.portfolio.commissionRate
	e.portfolio = NewPortfolio(capital)
	e.portfolio.SetCommissionRate(rate)
}

// SetCommissionRate sets the proportional commission on traded notional.
func (e *SimulationEngine) SetCommissionRate(rate decimal.Decimal) {
	e.portfolio.SetCommissionRate(rate)
}

// SetSlippageModel installs a slippage model on the portfolio.
func (e *SimulationEngine) SetSlippageModel(model SlippageModel) {
	e.portfolio.SetSlippageModel(model)
}

// SetSignalInterval makes the engine synthesize a Signal event every n
// market events. 0 disables synthesis.
func (e *SimulationEngine) SetSignalInterval(n int) { e.signalInterval = n }

// Generator exposes the signal generator for registering calculators.
func (e *SimulationEngine) Generator() *signals.Generator { return e.generator }

// Portfolio returns the engine's portfolio.
func (e *SimulationEngine) Portfolio() *Portfolio { return e.portfolio }

// Book returns the symbol's book, creating it on first use.
func (e *SimulationEngine) Book(symbol string) *lob.OrderBook {
	book, ok := e.books[symbol]
	if !ok {
		book = lob.NewOrderBook(symbol, nil)
		e.books[symbol] = book
	}
	return book
}

// History returns the end-of-day portfolio snapshots of the last run.
func (e *SimulationEngine) History() []Snapshot { return e.history }

// Trades returns the fill log of the last run.
func (e *SimulationEngine) Trades() []TradeRecord { return e.trades }

// PerfStats returns the profiling counters of the last run.
func (e *SimulationEngine) PerfStats() PerfStats { return e.perf }

// Result returns the metrics of the last completed run.
func (e *SimulationEngine) Result() BacktestResult { return e.result }

// Stop requests a cooperative stop: the loop drains to a clean state
// after the event currently being processed. Safe to call from another
// goroutine.
func (e *SimulationEngine) Stop() { e.stopped.Store(true) }

// Run replays the data source to exhaustion (or Stop) and computes the
// performance metrics from the end-of-day equity series.
func (e *SimulationEngine) Run() (BacktestResult, error) {
	if e.dataSource == nil {
		return BacktestResult{}, ErrNoDataSource
	}

	e.stopped.Store(false)
	e.history = e.history[:0]
	e.trades = e.trades[:0]

	// A Stop() in a previous run may have stranded queued events and
	// parked stops; they must not replay into this run.
	e.queue = e.queue[:0]
	e.parked = e.parked[:0]

	logger.Info("backtest started", "run_id", e.runID, "strategies", len(e.strategies))
	for _, s := range e.strategies {
		s.OnStart()
	}

	for !e.stopped.Load() {
		var ev *Event
		switch {
		case len(e.queue) > 0:
			ev = heap.Pop(&e.queue).(*Event)
		case e.dataSource.HasNext():
			next := e.dataSource.Next()
			ev = &next
		default:
			ev = nil
		}
		if ev == nil {
			break
		}
		if ev.Timestamp > e.currentTime {
			e.currentTime = ev.Timestamp
		}
		e.processEvent(ev)
	}

	for _, s := range e.strategies {
		s.OnEnd(e.portfolio)
	}

	equity := make([]EquityPoint, 0, len(e.history))
	for _, snap := range e.history {
		eq, _ := snap.Equity.Float64()
		equity = append(equity, EquityPoint{Timestamp: snap.Timestamp, Equity: eq})
	}
	e.result = ComputeMetrics(equity, e.trades, 0, 6.5*3600)

	logger.Info("backtest finished",
		"run_id", e.runID,
		"events", e.perf.EventsProcessed,
		"orders_sent", e.perf.OrdersSent,
		"orders_filled", e.perf.OrdersFilled,
		"total_return", e.result.TotalReturn)
	return e.result, nil
}

// Step feeds a single external event through the engine, for driving
// it outside of Run.
func (e *SimulationEngine) Step(ev Event) {
	if ev.Timestamp > e.currentTime {
		e.currentTime = ev.Timestamp
	}
	e.processEvent(&ev)
}

func (e *SimulationEngine) processEvent(ev *Event) {
	e.perf.EventsProcessed++

	switch ev.Type {
	case EventMarketData:
		e.processMarketData(ev)
	case EventSignal:
		e.processSignal(ev)
	case EventOrder:
		e.processOrder(ev)
	case EventFill:
		e.processFill(ev)
	case EventEndOfDay:
		e.history = append(e.history, e.portfolio.TakeSnapshot(ev.Timestamp, e.currentPrices))
	}
}

func (e *SimulationEngine) processMarketData(ev *Event) {
	u := ev.MarketUpdate
	if u == nil || u.Type == MDNone {
		return
	}

	book := e.Book(ev.Symbol)
	book.SetClock(ev.Timestamp)

	start := time.Now()
	var execs []lob.Execution
	switch u.Type {
	case MDAddOrder:
		var err error
		execs, err = book.ApplyOrder(lob.Order{
			ID:        u.OrderID,
			Side:      u.Side,
			Type:      lob.LimitOrder,
			Price:     u.Price,
			Quantity:  u.Quantity,
			Timestamp: u.Timestamp,
		})
		if err != nil {
			logger.Warn("feed add rejected", "symbol", ev.Symbol, "order_id", u.OrderID, "error", err)
		}
	case MDModifyOrder:
		execs, _ = book.ModifyOrder(u.OrderID, u.NewPrice, u.Quantity)
	case MDCancelOrder:
		book.CancelOrder(u.OrderID)
	case MDClear:
		book.Clear()
	case MDTrade, MDSnapshot:
		// Informational: the feed's own add/cancel stream is
		// authoritative for book state.
	}
	e.perf.MatchingTime += time.Since(start)

	for i := range execs {
		e.dispatchFill(ev.Symbol, execs[i])
	}

	e.markPrice(ev.Symbol, book)

	start = time.Now()
	e.generator.Update(book)
	e.perf.SignalTime += time.Since(start)

	e.checkStops(ev.Symbol, book)

	start = time.Now()
	for _, s := range e.strategies {
		s.OnMarketData(*u, book, e.portfolio)
	}
	e.perf.StrategyTime += time.Since(start)

	e.pollOrders(book)

	e.marketEvents++
	if e.signalInterval > 0 && e.marketEvents%uint64(e.signalInterval) == 0 {
		e.enqueue(&Event{Type: EventSignal, Timestamp: e.currentTime, Symbol: ev.Symbol})
	}
}

func (e *SimulationEngine) processSignal(ev *Event) {
	book := e.Book(ev.Symbol)

	// An event carrying its own signal is delivered as-is; otherwise
	// the calculators are evaluated against the current book.
	var sigs []signals.Signal
	if ev.Signal != nil {
		sigs = []signals.Signal{*ev.Signal}
	} else {
		start := time.Now()
		sigs = e.generator.Generate(book)
		e.perf.SignalTime += time.Since(start)
	}

	start := time.Now()
	for _, sig := range sigs {
		for _, s := range e.strategies {
			s.OnSignal(sig, book, e.portfolio)
		}
	}
	e.perf.StrategyTime += time.Since(start)
}

func (e *SimulationEngine) processOrder(ev *Event) {
	req := ev.Order
	if req == nil || req.Quantity == 0 {
		return
	}

	book := e.Book(ev.Symbol)
	book.SetClock(ev.Timestamp)
	e.perf.OrdersSent++

	start := time.Now()
	var execs []lob.Execution
	switch req.Type {
	case lob.MarketOrder:
		execs = book.ProcessMarketOrder(req.Side, req.Quantity, ev.Timestamp)
	case lob.StopOrder, lob.StopLimitOrder:
		e.parked = append(e.parked, parkedOrder{
			symbol:    ev.Symbol,
			side:      req.Side,
			typ:       req.Type,
			price:     req.Price,
			stopPrice: req.StopPrice,
			quantity:  req.Quantity,
			clientID:  req.ClientID,
		})
	default:
		var err error
		_, execs, err = book.AddOrder(req.Side, req.Price, req.Quantity, lob.LimitOrder, req.ClientID)
		if err != nil {
			logger.Warn("strategy order rejected", "symbol", ev.Symbol, "error", err)
		}
	}
	e.perf.MatchingTime += time.Since(start)

	for i := range execs {
		e.dispatchFill(ev.Symbol, execs[i])
	}
	if len(execs) > 0 {
		e.checkStops(ev.Symbol, book)
	}
}

// dispatchFill processes a fill inline so strategy callbacks observe a
// fully consistent book before the next queued event pops.
func (e *SimulationEngine) dispatchFill(symbol string, exec lob.Execution) {
	ev := Event{Type: EventFill, Timestamp: exec.Timestamp, Symbol: symbol, Execution: &exec}
	e.processFill(&ev)
}

func (e *SimulationEngine) processFill(ev *Event) {
	exec := ev.Execution
	if exec == nil {
		return
	}

	// Position sign follows the aggressor's side: an aggressive buy
	// adds inventory, an aggressive sell removes it.
	dq := int64(exec.Quantity)
	if exec.AggressorSide == lob.Ask {
		dq = -dq
	}
	price := lob.PriceToDecimal(exec.Price)
	e.portfolio.ApplyFill(ev.Symbol, dq, price, exec.AggressorSide)

	priceF, _ := price.Float64()
	e.trades = append(e.trades, TradeRecord{
		Timestamp: exec.Timestamp,
		Symbol:    ev.Symbol,
		Quantity:  dq,
		Price:     priceF,
	})

	e.generator.OnTrade(*exec)

	start := time.Now()
	for _, s := range e.strategies {
		s.OnFill(*exec, e.portfolio)
	}
	e.perf.StrategyTime += time.Since(start)
	e.perf.OrdersFilled++
}

func (e *SimulationEngine) pollOrders(book *lob.OrderBook) {
	for _, s := range e.strategies {
		for _, req := range s.GenerateOrders(book, e.portfolio) {
			r := req
			if r.Symbol == "" {
				r.Symbol = book.Symbol()
			}
			if r.ClientID == "" {
				r.ClientID = xid.New().String()
			}
			e.enqueue(&Event{Type: EventOrder, Timestamp: e.currentTime, Symbol: r.Symbol, Order: &r})
		}
	}
}

func (e *SimulationEngine) markPrice(symbol string, book *lob.OrderBook) {
	if mid := book.MidPrice(); mid > 0 {
		e.currentPrices[symbol] = decimal.NewFromFloat(mid)
	}
}

// checkStops activates parked stop orders whose trigger has been
// touched. The reference price is the last trade, falling back to mid.
// Buy stops trigger at or above the stop price, sell stops at or
// below; a Stop becomes a market order, a StopLimit a limit order.
func (e *SimulationEngine) checkStops(symbol string, book *lob.OrderBook) {
	if len(e.parked) == 0 {
		return
	}

	ref := book.LastTradePrice()
	if ref == 0 {
		if mid := book.MidPrice(); mid > 0 {
			ref = lob.PriceFromFloat(mid)
		}
	}
	if ref == 0 {
		return
	}

	remaining := e.parked[:0]
	for _, p := range e.parked {
		if p.symbol != symbol {
			remaining = append(remaining, p)
			continue
		}
		triggered := (p.side == lob.Bid && ref >= p.stopPrice) ||
			(p.side == lob.Ask && ref <= p.stopPrice)
		if !triggered {
			remaining = append(remaining, p)
			continue
		}

		req := &OrderRequest{
			Symbol:   p.symbol,
			Side:     p.side,
			Type:     lob.MarketOrder,
			Quantity: p.quantity,
			ClientID: p.clientID,
		}
		if p.typ == lob.StopLimitOrder {
			req.Type = lob.LimitOrder
			req.Price = p.price
		}
		e.enqueue(&Event{Type: EventOrder, Timestamp: e.currentTime, Symbol: p.symbol, Order: req})
	}
	e.parked = remaining
}

func (e *SimulationEngine) enqueue(ev *Event) {
	e.seq++
	ev.seq = e.seq
	heap.Push(&e.queue, ev)
}
