package backtest

import (
	"math"

	"github.com/0x5487/lob-sim"
)

// MarketMakerStrategy quotes both sides of the book around the mid,
// skewing its quotes against accumulated inventory.
//
// Parameters: spread_bps (half-spread in basis points of mid, default
// 10), size (quote size, default 100), inventory_limit (absolute
// position cap, default 1000).
type MarketMakerStrategy struct {
	BaseStrategy

	spreadBps      float64
	orderSize      lob.Quantity
	inventoryLimit int64
}

// NewMarketMakerStrategy creates the strategy with default parameters;
// Initialize overrides them from config.
func NewMarketMakerStrategy() *MarketMakerStrategy {
	return &MarketMakerStrategy{}
}

// Name implements Strategy.
func (s *MarketMakerStrategy) Name() string { return "market_maker" }

// Initialize implements Strategy.
func (s *MarketMakerStrategy) Initialize(params Params) {
	s.BaseStrategy.Initialize(params)
	s.spreadBps = params.Get("spread_bps", 10)
	s.orderSize = lob.Quantity(params.Get("size", 100))
	s.inventoryLimit = int64(params.Get("inventory_limit", 1000))
}

// GenerateOrders quotes a bid and an ask around the mid. Quotes skew
// away from the side that would grow an already-large inventory, and a
// side is withheld entirely at the inventory limit.
func (s *MarketMakerStrategy) GenerateOrders(book *lob.OrderBook, portfolio *Portfolio) []OrderRequest {
	mid := book.MidPrice()
	if mid == 0 || s.orderSize == 0 {
		return nil
	}

	half := mid * s.spreadBps * 1e-4
	inventory := portfolio.NetPosition(book.Symbol())

	// One tick of skew per 10% of the inventory limit used.
	var skew float64
	if s.inventoryLimit > 0 {
		skew = float64(inventory) / float64(s.inventoryLimit) * mid * 1e-4 * 10
	}

	bidPx := lob.PriceFromFloat(mid - half - skew)
	askPx := lob.PriceFromFloat(mid + half - skew)

	var orders []OrderRequest
	if bidPx > 0 && inventory < s.inventoryLimit {
		orders = append(orders, OrderRequest{
			Symbol:   book.Symbol(),
			Side:     lob.Bid,
			Type:     lob.LimitOrder,
			Price:    bidPx,
			Quantity: s.orderSize,
		})
	}
	if askPx > bidPx && inventory > -s.inventoryLimit {
		orders = append(orders, OrderRequest{
			Symbol:   book.Symbol(),
			Side:     lob.Ask,
			Type:     lob.LimitOrder,
			Price:    askPx,
			Quantity: s.orderSize,
		})
	}
	return orders
}

// MomentumStrategy enters in the direction of a z-score breakout of
// the mid-price over a rolling lookback and exits when the signal
// decays.
//
// Parameters: lookback (periods, default 20), entry_threshold
// (z-score to enter, default 2), exit_threshold (|z| to exit, default
// 0.5), size (order size, default 100).
type MomentumStrategy struct {
	BaseStrategy

	lookback       int
	entryThreshold float64
	exitThreshold  float64
	orderSize      lob.Quantity

	priceHistory []float64
	inPosition   bool
}

// NewMomentumStrategy creates the strategy with default parameters.
func NewMomentumStrategy() *MomentumStrategy {
	return &MomentumStrategy{}
}

// Name implements Strategy.
func (s *MomentumStrategy) Name() string { return "momentum" }

// Initialize implements Strategy.
func (s *MomentumStrategy) Initialize(params Params) {
	s.BaseStrategy.Initialize(params)
	s.lookback = int(params.Get("lookback", 20))
	s.entryThreshold = params.Get("entry_threshold", 2)
	s.exitThreshold = params.Get("exit_threshold", 0.5)
	s.orderSize = lob.Quantity(params.Get("size", 100))
}

// OnMarketData samples the mid into the rolling window.
func (s *MomentumStrategy) OnMarketData(_ MarketDataUpdate, book *lob.OrderBook, _ *Portfolio) {
	if mid := book.MidPrice(); mid > 0 {
		s.priceHistory = append(s.priceHistory, mid)
		if len(s.priceHistory) > s.lookback {
			s.priceHistory = s.priceHistory[len(s.priceHistory)-s.lookback:]
		}
	}
}

// GenerateOrders trades the breakout: market buy above the entry
// threshold, flatten when the z-score decays inside the exit band.
func (s *MomentumStrategy) GenerateOrders(book *lob.OrderBook, portfolio *Portfolio) []OrderRequest {
	z := s.zScore()
	position := portfolio.NetPosition(book.Symbol())

	if !s.inPosition && z > s.entryThreshold {
		s.inPosition = true
		return []OrderRequest{{
			Symbol:   book.Symbol(),
			Side:     lob.Bid,
			Type:     lob.MarketOrder,
			Quantity: s.orderSize,
		}}
	}

	if s.inPosition && math.Abs(z) < s.exitThreshold && position != 0 {
		s.inPosition = false
		side := lob.Ask
		qty := position
		if position < 0 {
			side = lob.Bid
			qty = -position
		}
		return []OrderRequest{{
			Symbol:   book.Symbol(),
			Side:     side,
			Type:     lob.MarketOrder,
			Quantity: lob.Quantity(qty),
		}}
	}
	return nil
}

func (s *MomentumStrategy) zScore() float64 {
	if len(s.priceHistory) < s.lookback || s.lookback < 2 {
		return 0
	}

	var mean float64
	for _, p := range s.priceHistory {
		mean += p
	}
	mean /= float64(len(s.priceHistory))

	var ss float64
	for _, p := range s.priceHistory {
		d := p - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(s.priceHistory)-1))
	if sd == 0 {
		return 0
	}
	return (s.priceHistory[len(s.priceHistory)-1] - mean) / sd
}
