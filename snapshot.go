package lob

// BookSnapshot contains the full resting state of a single OrderBook.
// Orders are listed best price first, FIFO within each level, so
// restoring by replaying Adds reproduces identical priority.
type BookSnapshot struct {
	Symbol  string  `json:"symbol"`
	SeqID   uint64  `json:"seq_id"`
	TradeID uint64  `json:"trade_id"`
	NextID  OrderID `json:"next_id"`
	Bids    []Order `json:"bids"`
	Asks    []Order `json:"asks"`
}

// Snapshot captures the resting orders and sequence counters. Trades
// and metrics are not part of the snapshot.
func (b *OrderBook) Snapshot() BookSnapshot {
	snap := BookSnapshot{
		Symbol:  b.symbol,
		SeqID:   b.seqID,
		TradeID: b.tradeID,
		NextID:  b.nextID,
	}
	snap.Bids = collectSide(b.bids)
	snap.Asks = collectSide(b.asks)
	return snap
}

// RestoreSnapshot wipes the book and reloads the resting orders and
// counters from a snapshot. No book logs are emitted during a restore.
func (b *OrderBook) RestoreSnapshot(snap BookSnapshot) {
	b.Clear()
	b.symbol = snap.Symbol
	b.seqID = snap.SeqID
	b.tradeID = snap.TradeID
	if snap.NextID > 0 {
		b.nextID = snap.NextID
	}

	restoreSide(b, snap.Bids)
	restoreSide(b, snap.Asks)
	b.invalidateCache()
}

func collectSide(side *BookSide) []Order {
	var orders []Order
	side.Ascend(func(lvl *PriceLevel) bool {
		orders = append(orders, lvl.Orders()...)
		return true
	})
	return orders
}

func restoreSide(b *OrderBook, orders []Order) {
	for i := range orders {
		o := orders[i]
		o.next, o.prev, o.level = nil, nil, nil
		lvl := b.sideFor(o.Side).GetOrCreate(o.Price)
		lvl.Add(&o)
		b.orders[o.ID] = &o
		if o.ID >= b.nextID {
			b.nextID = o.ID + 1
		}
	}
}
