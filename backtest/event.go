// Package backtest is an event-driven simulation loop over the
// matching core: a timestamp-ordered dispatcher that owns per-symbol
// books, routes market-data updates into them, invokes strategy
// callbacks, converts matches into fills, and tracks portfolio
// performance.
package backtest

import (
	"container/heap"

	"github.com/0x5487/lob-sim"
	"github.com/0x5487/lob-sim/signals"
)

// EventType discriminates the event union.
type EventType uint8

const (
	EventMarketData EventType = iota
	EventSignal
	EventOrder
	EventFill
	EventEndOfDay
)

// MarketDataType discriminates market-data payloads. MDNone marks a
// no-op update, produced for unparsable feed rows.
type MarketDataType uint8

const (
	MDNone MarketDataType = iota
	MDAddOrder
	MDModifyOrder
	MDCancelOrder
	MDTrade
	MDClear
	MDSnapshot
)

// MarketDataUpdate is one row of the replayed L3 feed.
type MarketDataUpdate struct {
	Type      MarketDataType
	Side      lob.Side
	Price     lob.Price
	Quantity  lob.Quantity
	OrderID   lob.OrderID
	NewPrice  lob.Price // modify only; 0 keeps the current price
	Timestamp lob.Timestamp
}

// OrderRequest is a strategy-originated order entering the engine's
// dispatch.
type OrderRequest struct {
	Symbol    string
	Side      lob.Side
	Type      lob.OrderType
	Price     lob.Price
	StopPrice lob.Price
	Quantity  lob.Quantity
	ClientID  string
}

// Event is the tagged record flowing through the engine. At most one
// payload pointer is set, matching Type; a Signal event without a
// payload asks the engine to evaluate its registered calculators.
type Event struct {
	Type      EventType
	Timestamp lob.Timestamp
	Symbol    string

	MarketUpdate *MarketDataUpdate
	Signal       *signals.Signal
	Order        *OrderRequest
	Execution    *lob.Execution

	// Engine-assigned tie-break so equal timestamps keep insertion order.
	seq uint64
}

// eventHeap is a min-heap over (Timestamp, seq).
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*eventHeap)(nil)
