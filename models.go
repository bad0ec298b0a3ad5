package lob

import (
	"math"

	"github.com/shopspring/decimal"
)

// OrderID uniquely identifies an order inside one book. IDs are either
// assigned by the book (monotonic, never reused) or carried in from a
// replay stream.
type OrderID uint64

// Price is a fixed-point price in integer ticks. The matching engine is
// unit-agnostic; conversion to and from floating point happens only in
// PriceFromFloat and PriceToFloat.
type Price int64

// Quantity is an unsigned order size in base units.
type Quantity uint64

// Timestamp is nanoseconds since epoch, injected by the event stream.
// The engine never reads the system clock for simulation time.
type Timestamp int64

// Side represents the order side (Bid/Ask).
type Side int8

const (
	Bid Side = 1
	Ask Side = 2
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return "unknown"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderType represents the type of order.
type OrderType string

const (
	LimitOrder     OrderType = "limit"
	MarketOrder    OrderType = "market"
	StopOrder      OrderType = "stop"       // Activated by the simulation layer on touch
	StopLimitOrder OrderType = "stop_limit" // Activated by the simulation layer on touch
)

// TimeInForce represents how long an order stays working.
type TimeInForce string

const (
	GTC TimeInForce = "gtc"
	IOC TimeInForce = "ioc"
	FOK TimeInForce = "fok"
	GTD TimeInForce = "gtd"
)

// OrderStatus is the lifecycle state of an order.
// New -> PartiallyFilled -> {Filled | Cancelled}; terminal states are absorbing.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// Order represents the state of a single order resting in the book.
type Order struct {
	ID        OrderID     `json:"id"`
	Side      Side        `json:"side"`
	Type      OrderType   `json:"type"`
	TIF       TimeInForce `json:"tif"`
	Price     Price       `json:"price"`
	StopPrice Price       `json:"stop_price,omitempty"`
	Quantity  Quantity    `json:"quantity"`  // Original size
	Remaining Quantity    `json:"remaining"` // Resting size
	Timestamp Timestamp   `json:"timestamp"`
	ClientID  string      `json:"client_id,omitempty"`
	Status    OrderStatus `json:"status"`

	// Intrusive linked list pointers (ignored by JSON)
	next  *Order
	prev  *Order
	level *PriceLevel
}

// IsBuy reports whether the order is on the bid side.
func (o *Order) IsBuy() bool { return o.Side == Bid }

// IsSell reports whether the order is on the ask side.
func (o *Order) IsSell() bool { return o.Side == Ask }

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool { return o.Remaining == 0 }

// FilledQuantity returns how much of the order has executed.
func (o *Order) FilledQuantity() Quantity { return o.Quantity - o.Remaining }

// IsActive reports whether the order is still working in the book.
func (o *Order) IsActive() bool {
	return o.Remaining > 0 && (o.Status == StatusNew || o.Status == StatusPartiallyFilled)
}

// Execution is a single match between an aggressing and a passive order.
// Price is always the resting order's price (price improvement goes to
// the aggressor) and Timestamp is the later of the two orders.
type Execution struct {
	AggressorID   OrderID   `json:"aggressor_id"`
	PassiveID     OrderID   `json:"passive_id"`
	Symbol        string    `json:"symbol"`
	AggressorSide Side      `json:"aggressor_side"`
	Price         Price     `json:"price"`
	Quantity      Quantity  `json:"quantity"`
	Timestamp     Timestamp `json:"timestamp"`
}

// Notional returns price*quantity as an exact decimal amount.
func (e Execution) Notional() decimal.Decimal {
	return Notional(e.Price, e.Quantity)
}

// LevelView is an aggregated read-only view of one price level.
type LevelView struct {
	Price    Price    `json:"price"`
	Quantity Quantity `json:"quantity"`
	Orders   uint32   `json:"orders"`
}

// BookStats is a point-in-time summary of the book used for analysis.
type BookStats struct {
	BestBid     Price    `json:"best_bid"`
	BestAsk     Price    `json:"best_ask"`
	BidVolume   Quantity `json:"bid_volume"`
	AskVolume   Quantity `json:"ask_volume"`
	Spread      float64  `json:"spread"`
	MidPrice    float64  `json:"mid_price"`
	MicroPrice  float64  `json:"microprice"`
	Imbalance   float64  `json:"imbalance"`
	BidLevels   int      `json:"bid_levels"`
	AskLevels   int      `json:"ask_levels"`
	TotalOrders int      `json:"total_orders"`
}

// ticksPerUnit is the fixed boundary scale: 1 price unit = 100 ticks.
const ticksPerUnit = 100

// PriceFromFloat converts a floating point price to integer ticks.
func PriceFromFloat(x float64) Price {
	return Price(math.Round(x * ticksPerUnit))
}

// PriceToFloat converts integer ticks back to a floating point price.
func PriceToFloat(p Price) float64 {
	return float64(p) / ticksPerUnit
}

// PriceToDecimal converts integer ticks to an exact decimal price.
func PriceToDecimal(p Price) decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// PriceFromDecimal converts a decimal price to integer ticks, rounding
// half away from zero.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price(d.Mul(decimal.NewFromInt(ticksPerUnit)).Round(0).IntPart())
}

// Notional returns price*quantity as an exact decimal amount.
func Notional(p Price, q Quantity) decimal.Decimal {
	return PriceToDecimal(p).Mul(decimal.NewFromInt(int64(q)))
}
