package signals

import (
	"math"

	"github.com/0x5487/lob-sim"
)

// TopImbalance returns bid_qty/(bid_qty+ask_qty) at the touch.
// 0.5 on an empty book; >0.5 means more buying pressure.
func TopImbalance(book *lob.OrderBook) float64 {
	bidQty := float64(book.BestBidQuantity())
	askQty := float64(book.BestAskQuantity())
	if bidQty == 0 && askQty == 0 {
		return 0.5
	}
	return bidQty / (bidQty + askQty)
}

// Imbalance returns the normalized bid/ask volume asymmetry over the
// top n levels: (Σbid-Σask)/(Σbid+Σask), in [-1, 1].
func Imbalance(book *lob.OrderBook, levels int) float64 {
	return book.OrderImbalance(levels)
}

// Microprice returns the Stoikov-style microprice:
//
//	mid + (2/π)·atan(2I−1)·spread/2
//
// where I is the top-of-book imbalance. A better short-horizon price
// predictor than the raw mid.
func Microprice(book *lob.OrderBook) float64 {
	mid := book.MidPrice()
	if mid == 0 {
		return 0
	}

	symmetric := 2*TopImbalance(book) - 1
	adjustment := (2 / math.Pi) * math.Atan(symmetric) * book.Spread() / 2
	return mid + adjustment
}

// WeightedMid returns I·ask + (1−I)·bid using the top-of-book
// imbalance, 0 when either side is empty.
func WeightedMid(book *lob.OrderBook) float64 {
	bid, ask := book.BestBid(), book.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	i := TopImbalance(book)
	return i*lob.PriceToFloat(ask) + (1-i)*lob.PriceToFloat(bid)
}

// BookPressure returns the depth-weighted imbalance over up to
// `levels` levels per side, weighting level k by decay^k. 0.5 on an
// empty book.
func BookPressure(book *lob.OrderBook, levels int, decay float64) float64 {
	bids := book.BidLevels(levels)
	asks := book.AskLevels(levels)

	var weightedBid, weightedAsk float64
	weight := 1.0
	max := len(bids)
	if len(asks) > max {
		max = len(asks)
	}
	for i := 0; i < max; i++ {
		if i < len(bids) {
			weightedBid += float64(bids[i].Quantity) * weight
		}
		if i < len(asks) {
			weightedAsk += float64(asks[i].Quantity) * weight
		}
		weight *= decay
	}

	if weightedBid == 0 && weightedAsk == 0 {
		return 0.5
	}
	return weightedBid / (weightedBid + weightedAsk)
}

// PriceImpact estimates the relative price move a market order of the
// given size would cause, by walking up to 20 opposite levels.
func PriceImpact(book *lob.OrderBook, side lob.Side, size lob.Quantity) float64 {
	var initial lob.Price
	var levels []lob.LevelView
	if side == lob.Bid {
		initial = book.BestAsk()
		levels = book.AskLevels(20)
	} else {
		initial = book.BestBid()
		levels = book.BidLevels(20)
	}
	if initial == 0 {
		return 0
	}

	remaining := size
	last := initial
	for _, lv := range levels {
		// The level absorbing the remainder still counts as touched.
		last = lv.Price
		if remaining <= lv.Quantity {
			break
		}
		remaining -= lv.Quantity
	}

	return math.Abs(float64(last-initial)) / float64(initial)
}

// EffectiveSpread returns the round-trip cost (ask−bid)/mid, 0 when
// either side is empty.
func EffectiveSpread(book *lob.OrderBook) float64 {
	mid := book.MidPrice()
	if mid == 0 {
		return 0
	}
	return book.Spread() / mid
}

// Resilience measures near-touch depth across 3 levels per side
// relative to the current spread. Deeper and tighter is more
// resilient. 0 on a one-sided or locked book.
func Resilience(book *lob.OrderBook) float64 {
	bids := book.BidLevels(3)
	asks := book.AskLevels(3)
	if len(bids) == 0 || len(asks) == 0 {
		return 0
	}

	var depth lob.Quantity
	for _, lv := range bids {
		depth += lv.Quantity
	}
	for _, lv := range asks {
		depth += lv.Quantity
	}

	spread := book.Spread()
	if spread == 0 {
		return 0
	}
	return float64(depth) / spread
}

// FlowToxicity computes VPIN over the last lookback trades:
// |Σbuy − Σsell| / Σqty. Needs at least two trades.
func FlowToxicity(trades []lob.Execution, lookback int) float64 {
	if len(trades) < 2 {
		return 0
	}
	start := 0
	if lookback > 0 && len(trades) > lookback {
		start = len(trades) - lookback
	}

	var buyVolume, sellVolume int64
	for _, t := range trades[start:] {
		if t.AggressorSide == lob.Bid {
			buyVolume += int64(t.Quantity)
		} else {
			sellVolume += int64(t.Quantity)
		}
	}

	total := buyVolume + sellVolume
	if total == 0 {
		return 0
	}
	diff := buyVolume - sellVolume
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(total)
}

// QueuePositionAt returns the 1-based queue position a new order at
// (side, price) would take: 1 when it betters the touch, otherwise one
// past the orders already resting at that level.
func QueuePositionAt(book *lob.OrderBook, side lob.Side, price lob.Price) int {
	if side == lob.Bid {
		if best := book.BestBid(); best == 0 || price > best {
			return 1
		}
	} else {
		if best := book.BestAsk(); best == 0 || price < best {
			return 1
		}
	}
	return len(book.OrdersAt(price, side)) + 1
}

// MarketQuality bundles the headline quality measures of one book
// snapshot.
type MarketQuality struct {
	SpreadBps       float64 // spread in basis points of mid
	Depth           float64 // total size at the touch
	Imbalance       float64
	Microprice      float64
	EffectiveSpread float64
	Resilience      float64
	Pressure        float64
	VolatilityProxy float64
}

// Quality computes the market-quality bundle.
func Quality(book *lob.OrderBook) MarketQuality {
	q := MarketQuality{
		Imbalance:       TopImbalance(book),
		Microprice:      Microprice(book),
		EffectiveSpread: EffectiveSpread(book),
		Resilience:      Resilience(book),
		Pressure:        BookPressure(book, 5, 0.5),
	}

	if mid := book.MidPrice(); mid > 0 {
		q.SpreadBps = book.Spread() / mid * 10000
	}
	q.Depth = float64(book.BestBidQuantity() + book.BestAskQuantity())
	q.VolatilityProxy = q.SpreadBps * (1 - math.Abs(0.5-q.Imbalance))
	return q
}
