package lob

import (
	"time"
)

// Metrics tracks operational counters for one book.
type Metrics struct {
	OrdersAdded    uint64        `json:"orders_added"`
	OrdersModified uint64        `json:"orders_modified"`
	OrdersCanceled uint64        `json:"orders_canceled"`
	OrdersMatched  uint64        `json:"orders_matched"`
	TotalVolume    uint64        `json:"total_volume"`
	TotalLatency   time.Duration `json:"total_latency"`
}

// OrderBook is a single-symbol price-time-priority matching engine.
//
// The book is not safe for concurrent use: the simulation engine is the
// sole mutator, and every reference returned by level or order
// accessors is a borrow valid only until the next mutating call.
type OrderBook struct {
	symbol   string
	tickSize float64

	bids *BookSide
	asks *BookSide

	// O(1) lookup of resting orders. Every live order appears here and
	// in exactly one price level.
	orders map[OrderID]*Order
	nextID OrderID

	trades  []Execution
	metrics Metrics

	cachedBestBid Price
	cachedBestAsk Price
	cacheValid    bool

	publish PublishLog
	seqID   uint64
	tradeID uint64

	now            Timestamp
	lastTradePrice Price
}

// NewOrderBook creates a new order book instance. publish may be nil
// when no downstream consumer needs the book log stream.
func NewOrderBook(symbol string, publish PublishLog) *OrderBook {
	return &OrderBook{
		symbol:   symbol,
		tickSize: 1.0 / ticksPerUnit,
		bids:     NewBidSide(),
		asks:     NewAskSide(),
		orders:   make(map[OrderID]*Order, 10000),
		nextID:   1,
		publish:  publish,
	}
}

// Symbol returns the instrument this book matches.
func (b *OrderBook) Symbol() string { return b.symbol }

// TickSize returns the configured tick size.
func (b *OrderBook) TickSize() float64 { return b.tickSize }

// SetTickSize overrides the tick size used for reporting.
func (b *OrderBook) SetTickSize(ts float64) {
	if ts > 0 {
		b.tickSize = ts
	}
}

// SetClock advances the book's notion of stream time. Locally
// originated orders (AddOrder, ProcessMarketOrder) are stamped with it.
func (b *OrderBook) SetClock(ts Timestamp) {
	if ts > b.now {
		b.now = ts
	}
}

// Now returns the latest timestamp the book has observed.
func (b *OrderBook) Now() Timestamp { return b.now }

// AddOrder creates a new order with a book-assigned monotonic ID.
//
// Limit orders match against the opposite side while they cross and any
// residual rests at their price. Market orders fill against the
// opposite side up to quantity; the unfilled remainder is discarded
// (IOC semantics), nothing rests. Stop and StopLimit orders are not
// accepted here; their activation belongs to the simulation layer.
func (b *OrderBook) AddOrder(side Side, price Price, quantity Quantity, typ OrderType, clientID string) (OrderID, []Execution, error) {
	start := time.Now()
	defer func() { b.metrics.TotalLatency += time.Since(start) }()

	if quantity == 0 {
		return 0, nil, ErrInvalidQuantity
	}

	switch typ {
	case MarketOrder:
		id := b.allocateID()
		aggr := &Order{
			ID:        id,
			Side:      side,
			Type:      MarketOrder,
			TIF:       IOC,
			Quantity:  quantity,
			Remaining: quantity,
			Timestamp: b.now,
			ClientID:  clientID,
			Status:    StatusNew,
		}
		execs := b.sweep(aggr, false)
		if aggr.Remaining > 0 {
			aggr.Status = StatusCancelled
		}
		b.metrics.OrdersAdded++
		b.invalidateCache()
		return id, execs, nil

	case LimitOrder:
		if price <= 0 {
			return 0, nil, ErrInvalidPrice
		}
		id := b.allocateID()
		order := &Order{
			ID:        id,
			Side:      side,
			Type:      LimitOrder,
			TIF:       GTC,
			Price:     price,
			Quantity:  quantity,
			Remaining: quantity,
			Timestamp: b.now,
			ClientID:  clientID,
			Status:    StatusNew,
		}
		execs := b.matchAndRest(order)
		b.metrics.OrdersAdded++
		return id, execs, nil

	default:
		return 0, nil, ErrUnsupportedOrderType
	}
}

// ApplyOrder reconstructs a fully-formed order from a replay stream,
// preserving its external ID and timestamp, and drives matching if it
// crosses. A duplicate ID is rejected with ErrDuplicateOrderID and no
// state change.
func (b *OrderBook) ApplyOrder(o Order) ([]Execution, error) {
	start := time.Now()
	defer func() { b.metrics.TotalLatency += time.Since(start) }()

	if o.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if o.ID == 0 {
		o.ID = b.allocateID()
	} else {
		if _, exists := b.orders[o.ID]; exists {
			return nil, ErrDuplicateOrderID
		}
		if o.ID >= b.nextID {
			b.nextID = o.ID + 1
		}
	}
	if o.Remaining == 0 {
		o.Remaining = o.Quantity
	}
	if o.Type == "" {
		o.Type = LimitOrder
	}
	if o.TIF == "" {
		o.TIF = GTC
	}
	o.Status = StatusNew
	o.next, o.prev, o.level = nil, nil, nil
	b.SetClock(o.Timestamp)

	switch o.Type {
	case MarketOrder:
		execs := b.sweep(&o, false)
		b.metrics.OrdersAdded++
		b.invalidateCache()
		return execs, nil
	case LimitOrder:
		if o.Price <= 0 {
			return nil, ErrInvalidPrice
		}
		execs := b.matchAndRest(&o)
		b.metrics.OrdersAdded++
		return execs, nil
	default:
		return nil, ErrUnsupportedOrderType
	}
}

// ProcessMarketOrder sweeps the opposite side up to quantity at the
// given timestamp. The remainder, if any, is discarded.
func (b *OrderBook) ProcessMarketOrder(side Side, quantity Quantity, ts Timestamp) []Execution {
	if quantity == 0 {
		return nil
	}
	b.SetClock(ts)
	aggr := &Order{
		ID:        b.allocateID(),
		Side:      side,
		Type:      MarketOrder,
		TIF:       IOC,
		Quantity:  quantity,
		Remaining: quantity,
		Timestamp: ts,
		Status:    StatusNew,
	}
	execs := b.sweep(aggr, false)
	b.invalidateCache()
	return execs
}

// CancelOrder removes a resting order. Returns false when the ID is
// unknown; the book is unchanged in that case.
func (b *OrderBook) CancelOrder(id OrderID) bool {
	start := time.Now()
	defer func() { b.metrics.TotalLatency += time.Since(start) }()

	order, ok := b.orders[id]
	if !ok {
		return false
	}

	price := order.Price
	order.level.Remove(order)
	b.sideFor(order.Side).RemoveIfEmpty(price)
	delete(b.orders, id)
	order.Status = StatusCancelled

	b.metrics.OrdersCanceled++
	b.invalidateCache()

	if b.publish != nil {
		b.emit(newCancelLog(b.nextSeq(), b.symbol, order, b.now))
	}
	return true
}

// ModifyOrder changes a resting order's remaining quantity and,
// optionally, its price (newPrice <= 0 keeps the current price).
//
// Shrinking at an unchanged price updates in place and keeps queue
// position. Growing the size or moving the price re-queues the order at
// the tail of its (possibly new) level, losing priority; a re-priced
// order that now crosses matches immediately and the resulting
// executions are returned. newQuantity == 0 degrades to a cancel.
func (b *OrderBook) ModifyOrder(id OrderID, newPrice Price, newQuantity Quantity) ([]Execution, bool) {
	start := time.Now()
	defer func() { b.metrics.TotalLatency += time.Since(start) }()

	order, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	if newQuantity == 0 {
		// Shrinking past the remaining size is a cancel.
		return nil, b.CancelOrder(id)
	}

	oldPrice := order.Price
	oldSize := order.Remaining
	keepPrice := newPrice <= 0 || newPrice == order.Price

	if keepPrice && newQuantity <= order.Remaining {
		order.level.Reduce(order, newQuantity)
		b.metrics.OrdersModified++
		b.invalidateCache()
		if b.publish != nil {
			b.emit(newAmendLog(b.nextSeq(), b.symbol, order, oldPrice, oldSize, b.now))
		}
		return nil, true
	}

	// Priority lost: unlink, rewrite, re-queue at the tail.
	order.level.Remove(order)
	b.sideFor(order.Side).RemoveIfEmpty(oldPrice)
	delete(b.orders, id)

	if !keepPrice {
		order.Price = newPrice
	}
	order.Remaining = newQuantity
	if newQuantity > order.Quantity {
		order.Quantity = newQuantity
	}

	if b.publish != nil {
		b.emit(newAmendLog(b.nextSeq(), b.symbol, order, oldPrice, oldSize, b.now))
	}

	execs := b.matchAndRest(order)
	b.metrics.OrdersModified++
	return execs, true
}

// matchAndRest matches a limit order while it crosses and rests any
// residual at its price level.
func (b *OrderBook) matchAndRest(order *Order) []Execution {
	execs := b.sweep(order, true)

	if order.Remaining > 0 {
		lvl := b.sideFor(order.Side).GetOrCreate(order.Price)
		lvl.Add(order)
		b.orders[order.ID] = order
		if b.publish != nil {
			b.emit(newOpenLog(b.nextSeq(), b.symbol, order))
		}
	}

	b.invalidateCache()
	return execs
}

// sweep matches an aggressor against the opposite side from its best
// level outward. When bounded is true the aggressor's limit price caps
// how deep the sweep goes; market orders cross every level.
//
// Within one level matching is strict FIFO; executions print at the
// resting order's price with the later of the two timestamps.
func (b *OrderBook) sweep(aggr *Order, bounded bool) []Execution {
	opp := b.asks
	if aggr.Side == Ask {
		opp = b.bids
	}

	var execs []Execution
	for aggr.Remaining > 0 {
		lvl := opp.BestLevel()
		if lvl == nil {
			break
		}
		if bounded {
			if aggr.Side == Bid && lvl.Price > aggr.Price {
				break
			}
			if aggr.Side == Ask && lvl.Price < aggr.Price {
				break
			}
		}

		front := lvl.Front()
		matchQty := aggr.Remaining
		if front.Remaining < matchQty {
			matchQty = front.Remaining
		}

		ts := aggr.Timestamp
		if front.Timestamp > ts {
			ts = front.Timestamp
		}

		exec := Execution{
			AggressorID:   aggr.ID,
			PassiveID:     front.ID,
			Symbol:        b.symbol,
			AggressorSide: aggr.Side,
			Price:         lvl.Price,
			Quantity:      matchQty,
			Timestamp:     ts,
		}
		execs = append(execs, exec)
		b.trades = append(b.trades, exec)

		aggr.Remaining -= matchQty
		if aggr.Remaining == 0 {
			aggr.Status = StatusFilled
		} else {
			aggr.Status = StatusPartiallyFilled
		}

		lvl.Reduce(front, front.Remaining-matchQty)
		if front.Remaining == 0 {
			front.Status = StatusFilled
		} else {
			front.Status = StatusPartiallyFilled
		}

		b.metrics.OrdersMatched++
		b.metrics.TotalVolume += uint64(matchQty)
		b.lastTradePrice = lvl.Price
		b.tradeID++
		if b.publish != nil {
			b.emit(newMatchLog(b.nextSeq(), b.tradeID, b.symbol, aggr, front, exec))
		}

		if front.Remaining == 0 {
			lvl.Remove(front)
			delete(b.orders, front.ID)
		}
		if lvl.Empty() {
			opp.RemoveIfEmpty(lvl.Price)
		}
	}

	if len(execs) > 0 {
		b.invalidateCache()
	}
	return execs
}

// GetOrder returns a copy of a resting order.
func (b *OrderBook) GetOrder(id OrderID) (Order, bool) {
	order, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	cpy := *order
	cpy.next, cpy.prev, cpy.level = nil, nil, nil
	return cpy, true
}

// BestBid returns the highest resting bid price, 0 when the side is empty.
func (b *OrderBook) BestBid() Price {
	if !b.cacheValid {
		b.updateCache()
	}
	return b.cachedBestBid
}

// BestAsk returns the lowest resting ask price, 0 when the side is empty.
func (b *OrderBook) BestAsk() Price {
	if !b.cacheValid {
		b.updateCache()
	}
	return b.cachedBestAsk
}

// BestBidQuantity returns the aggregated size at the best bid.
func (b *OrderBook) BestBidQuantity() Quantity {
	lvl := b.bids.BestLevel()
	if lvl == nil {
		return 0
	}
	return lvl.TotalQuantity
}

// BestAskQuantity returns the aggregated size at the best ask.
func (b *OrderBook) BestAskQuantity() Quantity {
	lvl := b.asks.BestLevel()
	if lvl == nil {
		return 0
	}
	return lvl.TotalQuantity
}

// MidPrice returns the arithmetic midpoint in price units, 0 when
// either side is empty.
func (b *OrderBook) MidPrice() float64 {
	bb, ba := b.BestBid(), b.BestAsk()
	if bb == 0 || ba == 0 {
		return 0
	}
	return float64(bb+ba) / (2 * ticksPerUnit)
}

// Spread returns ask minus bid in price units, 0 when either side is empty.
func (b *OrderBook) Spread() float64 {
	bb, ba := b.BestBid(), b.BestAsk()
	if bb == 0 || ba == 0 {
		return 0
	}
	return float64(ba-bb) / ticksPerUnit
}

// BidLevels returns up to n aggregated bid levels from the best outward.
func (b *OrderBook) BidLevels(n int) []LevelView {
	return b.bids.TopLevels(n)
}

// AskLevels returns up to n aggregated ask levels from the best outward.
func (b *OrderBook) AskLevels(n int) []LevelView {
	return b.asks.TopLevels(n)
}

// OrdersAt returns copies of the orders resting at one price in time
// priority.
func (b *OrderBook) OrdersAt(price Price, side Side) []Order {
	lvl := b.sideFor(side).Level(price)
	if lvl == nil {
		return nil
	}
	return lvl.Orders()
}

// IsCrossed reports whether the best bid is at or through the best ask.
// Public operations never return with a crossed book; this exists for
// invariant checks.
func (b *OrderBook) IsCrossed() bool {
	bb, ba := b.BestBid(), b.BestAsk()
	return bb != 0 && ba != 0 && bb >= ba
}

// OrderCount returns the number of resting orders.
func (b *OrderBook) OrderCount() int {
	return len(b.orders)
}

// QueuePosition returns the resting quantity ahead of an order at its
// own price level, 0 for unknown IDs.
func (b *OrderBook) QueuePosition(id OrderID) Quantity {
	order, ok := b.orders[id]
	if !ok || order.level == nil {
		return 0
	}

	var ahead Quantity
	for cur := order.level.Front(); cur != nil && cur != order; cur = cur.next {
		ahead += cur.Remaining
	}
	return ahead
}

// MicroPrice returns the depth-weighted microprice over the top n
// levels per side, in price units. Falls back to mid when aggregate
// size is zero, and to 0 when either side is empty.
func (b *OrderBook) MicroPrice(levels int) float64 {
	bids := b.bids.TopLevels(levels)
	asks := b.asks.TopLevels(levels)
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}

	var bidQty, askQty, weightedBid, weightedAsk float64
	for _, lv := range bids {
		bidQty += float64(lv.Quantity)
		weightedBid += PriceToFloat(lv.Price) * float64(lv.Quantity)
	}
	for _, lv := range asks {
		askQty += float64(lv.Quantity)
		weightedAsk += PriceToFloat(lv.Price) * float64(lv.Quantity)
	}

	if bidQty+askQty == 0 {
		return b.MidPrice()
	}

	// Weighted by the opposite queue size: a thin ask queue pulls the
	// microprice toward the ask.
	bidWeight := askQty / (bidQty + askQty)
	askWeight := bidQty / (bidQty + askQty)
	return bidWeight*(weightedBid/bidQty) + askWeight*(weightedAsk/askQty)
}

// OrderImbalance returns (bidVol-askVol)/(bidVol+askVol) over the top n
// levels per side, 0 when the book is empty.
func (b *OrderBook) OrderImbalance(levels int) float64 {
	bidVol := float64(b.bids.TotalQuantity(levels))
	askVol := float64(b.asks.TotalQuantity(levels))
	if bidVol+askVol == 0 {
		return 0
	}
	return (bidVol - askVol) / (bidVol + askVol)
}

// Stats assembles a point-in-time book summary.
func (b *OrderBook) Stats() BookStats {
	stats := BookStats{
		BestBid:     b.BestBid(),
		BestAsk:     b.BestAsk(),
		BidVolume:   b.bids.TotalQuantity(0),
		AskVolume:   b.asks.TotalQuantity(0),
		Spread:      b.Spread(),
		MidPrice:    b.MidPrice(),
		MicroPrice:  b.MicroPrice(1),
		Imbalance:   b.OrderImbalance(5),
		BidLevels:   b.bids.Len(),
		AskLevels:   b.asks.Len(),
		TotalOrders: len(b.orders),
	}
	return stats
}

// Trades returns a copy of the execution log in emission order.
func (b *OrderBook) Trades() []Execution {
	trades := make([]Execution, len(b.trades))
	copy(trades, b.trades)
	return trades
}

// TradeCount returns the number of executions recorded so far.
func (b *OrderBook) TradeCount() int {
	return len(b.trades)
}

// LastTradePrice returns the price of the most recent execution, 0
// before the first trade.
func (b *OrderBook) LastTradePrice() Price {
	return b.lastTradePrice
}

// Metrics returns the operational counters.
func (b *OrderBook) Metrics() Metrics {
	return b.metrics
}

// ResetMetrics zeroes the operational counters.
func (b *OrderBook) ResetMetrics() {
	b.metrics = Metrics{}
}

// Clear wipes every order, level and trade. IDs and log sequence
// numbers keep advancing so downstream consumers never see reuse.
func (b *OrderBook) Clear() {
	b.orders = make(map[OrderID]*Order, 10000)
	b.bids.clear()
	b.asks.clear()
	b.trades = nil
	b.lastTradePrice = 0
	b.invalidateCache()
}

// Bids exposes the bid side for read-only walks.
func (b *OrderBook) Bids() *BookSide { return b.bids }

// Asks exposes the ask side for read-only walks.
func (b *OrderBook) Asks() *BookSide { return b.asks }

func (b *OrderBook) sideFor(side Side) *BookSide {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) allocateID() OrderID {
	id := b.nextID
	b.nextID++
	return id
}

func (b *OrderBook) nextSeq() uint64 {
	b.seqID++
	return b.seqID
}

func (b *OrderBook) emit(logs ...*BookLog) {
	b.publish.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}

func (b *OrderBook) invalidateCache() {
	b.cacheValid = false
}

func (b *OrderBook) updateCache() {
	if p, ok := b.bids.BestPrice(); ok {
		b.cachedBestBid = p
	} else {
		b.cachedBestBid = 0
	}
	if p, ok := b.asks.BestPrice(); ok {
		b.cachedBestAsk = p
	} else {
		b.cachedBestAsk = 0
	}
	b.cacheValid = true
}
