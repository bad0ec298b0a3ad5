// Package signals provides read-only microstructure analytics over an
// order book: imbalance, microprice, book pressure, price impact,
// order-flow toxicity and related measures. All results are finite;
// undefined inputs yield 0 (or 0.5 for ratio-style measures on an
// empty book), never NaN.
package signals

import (
	"github.com/0x5487/lob-sim"
)

// Type classifies a signal.
type Type string

const (
	TypeOrderImbalance Type = "order_imbalance"
	TypeMicroprice     Type = "microprice"
	TypeSpread         Type = "spread"
	TypeTradeFlow      Type = "trade_flow"
	TypeQueuePosition  Type = "queue_position"
	TypeBookPressure   Type = "book_pressure"
	TypeToxicity       Type = "toxicity"
	TypeCustom         Type = "custom"
)

// Signal is one microstructure metric derived from a book at a point
// in time. Confidence is in [0, 1]; Metadata carries auxiliary values
// keyed by name.
type Signal struct {
	Type       Type
	Symbol     string
	Value      float64
	Confidence float64
	Timestamp  lob.Timestamp
	Metadata   map[string]float64
}

func newSignal(typ Type, book *lob.OrderBook, value, confidence float64) Signal {
	return Signal{
		Type:       typ,
		Symbol:     book.Symbol(),
		Value:      value,
		Confidence: confidence,
		Timestamp:  book.Now(),
		Metadata:   make(map[string]float64),
	}
}

// Calculator produces a signal from the current book state.
type Calculator interface {
	Name() string
	Calculate(book *lob.OrderBook) Signal
}

// Updater is implemented by stateful calculators that accumulate book
// history. The engine calls Update after every market event, before
// any Calculate.
type Updater interface {
	Update(book *lob.OrderBook)
}

// TradeObserver is implemented by calculators that consume the
// execution stream.
type TradeObserver interface {
	OnTrade(exec lob.Execution)
}

// Resetter is implemented by calculators with internal state to drop.
type Resetter interface {
	Reset()
}
