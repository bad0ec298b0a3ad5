package signals

import (
	"math"

	"github.com/0x5487/lob-sim"
)

// VPIN tracks order-flow toxicity over a rolling window of the last k
// trades, fed from the execution stream.
type VPIN struct {
	lookback int
	trades   []lob.Execution
}

// NewVPIN creates a VPIN tracker over the last lookback trades.
func NewVPIN(lookback int) *VPIN {
	if lookback <= 0 {
		lookback = 50
	}
	return &VPIN{lookback: lookback}
}

// Name implements Calculator.
func (v *VPIN) Name() string { return "VPIN" }

// OnTrade records one execution into the rolling window.
func (v *VPIN) OnTrade(exec lob.Execution) {
	v.trades = append(v.trades, exec)
	if len(v.trades) > v.lookback {
		v.trades = v.trades[len(v.trades)-v.lookback:]
	}
}

// Value returns the current VPIN estimate.
func (v *VPIN) Value() float64 {
	return FlowToxicity(v.trades, v.lookback)
}

// Calculate implements Calculator.
func (v *VPIN) Calculate(book *lob.OrderBook) Signal {
	val := v.Value()
	s := newSignal(TypeToxicity, book, val, val)
	s.Metadata["trades"] = float64(len(v.trades))
	return s
}

// Reset drops the trade window.
func (v *VPIN) Reset() { v.trades = nil }

// SpreadZScore tracks the z-score of the current spread against a
// rolling window of recent spreads.
type SpreadZScore struct {
	window  int
	history []float64
}

// NewSpreadZScore creates a spread tracker over the given window.
func NewSpreadZScore(window int) *SpreadZScore {
	if window <= 0 {
		window = 20
	}
	return &SpreadZScore{window: window}
}

// Name implements Calculator.
func (s *SpreadZScore) Name() string { return "Spread" }

// Update records the current spread.
func (s *SpreadZScore) Update(book *lob.OrderBook) {
	s.history = append(s.history, book.Spread())
	if len(s.history) > s.window {
		s.history = s.history[len(s.history)-s.window:]
	}
}

// ZScore returns how many standard deviations the latest spread sits
// from the window mean, 0 for degenerate windows.
func (s *SpreadZScore) ZScore() float64 {
	if len(s.history) == 0 {
		return 0
	}
	cur := s.history[len(s.history)-1]
	m := mean(s.history)
	sd := stddev(s.history)
	if sd == 0 {
		return 0
	}
	return (cur - m) / sd
}

// AverageSpread returns the window mean.
func (s *SpreadZScore) AverageSpread() float64 { return mean(s.history) }

// IsWide reports whether the spread is unusually wide (z > 1).
func (s *SpreadZScore) IsWide() bool { return s.ZScore() > 1 }

// Calculate implements Calculator.
func (s *SpreadZScore) Calculate(book *lob.OrderBook) Signal {
	z := s.ZScore()
	conf := math.Abs(z) / 3
	if conf > 1 {
		conf = 1
	}
	sig := newSignal(TypeSpread, book, z, conf)
	sig.Metadata["spread"] = book.Spread()
	sig.Metadata["avg_spread"] = s.AverageSpread()
	return sig
}

// Reset drops the spread history.
func (s *SpreadZScore) Reset() { s.history = nil }

// TradeFlow compares recent aggressive buy and sell volume using a
// decayed sum of trade quantities, emphasising the latest trades.
type TradeFlow struct {
	lookback   int
	decay      float64
	trades     []lob.Execution
	buyVolume  float64
	sellVolume float64
}

// NewTradeFlow creates a trade-flow tracker.
func NewTradeFlow(lookback int, decay float64) *TradeFlow {
	if lookback <= 0 {
		lookback = 50
	}
	if decay <= 0 || decay >= 1 {
		decay = 0.95
	}
	return &TradeFlow{lookback: lookback, decay: decay}
}

// Name implements Calculator.
func (f *TradeFlow) Name() string { return "TradeFlow" }

// OnTrade decays the running volumes and accrues the new trade on the
// aggressor's side.
func (f *TradeFlow) OnTrade(exec lob.Execution) {
	f.trades = append(f.trades, exec)
	if len(f.trades) > f.lookback {
		f.trades = f.trades[len(f.trades)-f.lookback:]
	}

	f.buyVolume *= f.decay
	f.sellVolume *= f.decay
	if exec.AggressorSide == lob.Bid {
		f.buyVolume += float64(exec.Quantity)
	} else {
		f.sellVolume += float64(exec.Quantity)
	}
}

// BuyVolume returns the decayed aggressive buy volume.
func (f *TradeFlow) BuyVolume() float64 { return f.buyVolume }

// SellVolume returns the decayed aggressive sell volume.
func (f *TradeFlow) SellVolume() float64 { return f.sellVolume }

// VWAP returns the volume-weighted average price of the trade window.
func (f *TradeFlow) VWAP() float64 {
	var pv, vol float64
	for _, t := range f.trades {
		pv += lob.PriceToFloat(t.Price) * float64(t.Quantity)
		vol += float64(t.Quantity)
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// Calculate implements Calculator. Value is the normalized net flow in
// [-1, 1].
func (f *TradeFlow) Calculate(book *lob.OrderBook) Signal {
	denom := f.buyVolume + f.sellVolume
	if denom < 1 {
		denom = 1
	}
	sig := newSignal(TypeTradeFlow, book, (f.buyVolume-f.sellVolume)/denom, 1)
	sig.Metadata["vwap"] = f.VWAP()
	sig.Metadata["buy_vol"] = f.buyVolume
	sig.Metadata["sell_vol"] = f.sellVolume
	return sig
}

// Reset drops the window and volumes.
func (f *TradeFlow) Reset() {
	f.trades = nil
	f.buyVolume = 0
	f.sellVolume = 0
}

// PressureAccumulator samples book pressure on every update and keeps
// a rolling lookback of observations.
type PressureAccumulator struct {
	lookback int
	levels   int
	decay    float64
	samples  []float64
}

// NewPressureAccumulator creates a pressure tracker sampling
// BookPressure(levels, decay) over the last lookback market events.
func NewPressureAccumulator(lookback, levels int, decay float64) *PressureAccumulator {
	if lookback <= 0 {
		lookback = 100
	}
	if levels <= 0 {
		levels = 5
	}
	if decay <= 0 || decay >= 1 {
		decay = 0.5
	}
	return &PressureAccumulator{lookback: lookback, levels: levels, decay: decay}
}

// Name implements Calculator.
func (p *PressureAccumulator) Name() string { return "BookPressure" }

// Update samples the current pressure.
func (p *PressureAccumulator) Update(book *lob.OrderBook) {
	p.samples = append(p.samples, BookPressure(book, p.levels, p.decay))
	if len(p.samples) > p.lookback {
		p.samples = p.samples[len(p.samples)-p.lookback:]
	}
}

// Average returns the mean sampled pressure, 0.5 with no samples.
func (p *PressureAccumulator) Average() float64 {
	if len(p.samples) == 0 {
		return 0.5
	}
	return mean(p.samples)
}

// Calculate implements Calculator. Value is the net pressure in
// [-1, 1]: average pressure recentred around balance.
func (p *PressureAccumulator) Calculate(book *lob.OrderBook) Signal {
	avg := p.Average()
	sig := newSignal(TypeBookPressure, book, 2*avg-1, 1)
	sig.Metadata["current"] = BookPressure(book, p.levels, p.decay)
	sig.Metadata["samples"] = float64(len(p.samples))
	return sig
}

// Reset drops the samples.
func (p *PressureAccumulator) Reset() { p.samples = nil }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
