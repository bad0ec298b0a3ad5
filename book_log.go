package lob

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LogType represents the type of book event log.
type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeAmend  LogType = "amend"
)

// BookLog represents an event in the order book. SequenceID is a
// per-book increasing ID for every event, used for ordering,
// deduplication and depth rebuilds in downstream consumers such as
// AggregatedBook. TradeID is only set for Match events.
type BookLog struct {
	SequenceID   uint64          `json:"seq_id"`
	TradeID      uint64          `json:"trade_id,omitempty"`
	Type         LogType         `json:"type"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Price        Price           `json:"price"`
	Size         Quantity        `json:"size"`
	Amount       decimal.Decimal `json:"amount,omitempty"` // Price * Size, only set for Match events
	OldPrice     Price           `json:"old_price,omitempty"`
	OldSize      Quantity        `json:"old_size,omitempty"`
	OrderID      OrderID         `json:"order_id"`
	ClientID     string          `json:"client_id,omitempty"`
	OrderType    OrderType       `json:"order_type,omitempty"`
	MakerOrderID OrderID         `json:"maker_order_id,omitempty"`
	Timestamp    Timestamp       `json:"timestamp"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// Reset structure to zero values.
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOpenLog(seqID uint64, symbol string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Symbol = symbol
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.ClientID = order.ClientID
	log.OrderType = order.Type
	log.Timestamp = order.Timestamp
	return log
}

func newMatchLog(seqID, tradeID uint64, symbol string, taker, maker *Order, exec Execution) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.Symbol = symbol
	log.Side = taker.Side
	log.Price = exec.Price
	log.Size = exec.Quantity
	log.Amount = exec.Notional()
	log.OrderID = taker.ID
	log.ClientID = taker.ClientID
	log.OrderType = taker.Type
	log.MakerOrderID = maker.ID
	log.Timestamp = exec.Timestamp
	return log
}

func newCancelLog(seqID uint64, symbol string, order *Order, ts Timestamp) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.Symbol = symbol
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.ClientID = order.ClientID
	log.OrderType = order.Type
	log.Timestamp = ts
	return log
}

func newAmendLog(seqID uint64, symbol string, order *Order, oldPrice Price, oldSize Quantity, ts Timestamp) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeAmend
	log.Symbol = symbol
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OldPrice = oldPrice
	log.OldSize = oldSize
	log.OrderID = order.ID
	log.ClientID = order.ClientID
	log.OrderType = order.Type
	log.Timestamp = ts
	return log
}
