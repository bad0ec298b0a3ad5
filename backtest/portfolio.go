package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/0x5487/lob-sim"
)

// Position tracks one symbol's signed inventory. Quantity is positive
// long, negative short; AveragePrice is zero whenever flat.
type Position struct {
	Symbol       string
	Quantity     int64
	AveragePrice decimal.Decimal
	RealizedPnL  decimal.Decimal
	TotalTraded  uint64
}

// applyFill applies a signed quantity change at a price. Adding in the
// direction of the position re-averages the entry price; reducing or
// flipping realizes PnL on the closed portion.
func (p *Position) applyFill(dq int64, price decimal.Decimal) {
	if dq == 0 {
		return
	}

	sameDirection := (p.Quantity >= 0 && dq > 0) || (p.Quantity <= 0 && dq < 0)
	if sameDirection {
		oldNotional := p.AveragePrice.Mul(decimal.NewFromInt(abs64(p.Quantity)))
		newNotional := price.Mul(decimal.NewFromInt(abs64(dq)))
		size := abs64(p.Quantity + dq)
		if size > 0 {
			p.AveragePrice = oldNotional.Add(newNotional).Div(decimal.NewFromInt(size))
		}
	} else {
		closed := abs64(dq)
		if held := abs64(p.Quantity); held < closed {
			closed = held
		}
		signedClosed := closed
		if p.Quantity < 0 {
			signedClosed = -closed
		}
		p.RealizedPnL = p.RealizedPnL.Add(price.Sub(p.AveragePrice).Mul(decimal.NewFromInt(signedClosed)))
	}

	p.Quantity += dq
	p.TotalTraded += uint64(abs64(dq))
	if p.Quantity == 0 {
		p.AveragePrice = decimal.Zero
	}
}

// UnrealizedPnL marks the open quantity against the given price.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(p.AveragePrice).Mul(decimal.NewFromInt(p.Quantity))
}

// IsFlat reports whether the position holds no inventory.
func (p *Position) IsFlat() bool { return p.Quantity == 0 }

// SlippageModel prices the slippage cost of an actual fill.
type SlippageModel func(side lob.Side, price decimal.Decimal, quantity lob.Quantity) decimal.Decimal

// Portfolio tracks cash, per-symbol positions, transaction costs and
// drawdown over one simulation. Cash moves only through fills and
// their fees.
type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	commissionRate decimal.Decimal
	slippage       SlippageModel

	positions map[string]*Position

	totalCommission decimal.Decimal
	totalSlippage   decimal.Decimal
	maxEquity       decimal.Decimal
	maxDrawdown     float64
}

// NewPortfolio creates a portfolio with the given starting capital.
func NewPortfolio(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		commissionRate: decimal.NewFromFloat(0.0001), // 1 bps default
		positions:      make(map[string]*Position),
	}
}

// SetCommissionRate sets the proportional commission on traded notional.
func (pf *Portfolio) SetCommissionRate(rate decimal.Decimal) {
	pf.commissionRate = rate
}

// SetSlippageModel installs a slippage cost model, nil disables it.
func (pf *Portfolio) SetSlippageModel(model SlippageModel) {
	pf.slippage = model
}

// ApplyFill books a signed fill: dq > 0 buys, dq < 0 sells. Cash moves
// by the fill notional plus commission and slippage.
func (pf *Portfolio) ApplyFill(symbol string, dq int64, price decimal.Decimal, side lob.Side) {
	pos, ok := pf.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		pf.positions[symbol] = pos
	}

	notional := price.Mul(decimal.NewFromInt(abs64(dq)))
	commission := pf.commissionRate.Mul(notional)
	slip := decimal.Zero
	if pf.slippage != nil {
		slip = pf.slippage(side, price, lob.Quantity(abs64(dq)))
	}

	pf.cash = pf.cash.Sub(price.Mul(decimal.NewFromInt(dq))).Sub(commission).Sub(slip)
	pf.totalCommission = pf.totalCommission.Add(commission)
	pf.totalSlippage = pf.totalSlippage.Add(slip)

	pos.applyFill(dq, price)
}

// Position returns a copy of the symbol's position; the zero Position
// when the symbol has never traded.
func (pf *Portfolio) Position(symbol string) Position {
	if pos, ok := pf.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// NetPosition returns the signed inventory for a symbol.
func (pf *Portfolio) NetPosition(symbol string) int64 {
	if pos, ok := pf.positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// RealizedPnL sums realized PnL across all positions.
func (pf *Portfolio) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range pf.positions {
		total = total.Add(pos.RealizedPnL)
	}
	return total
}

// UnrealizedPnL marks every open position against the given prices.
// Symbols without a mark contribute nothing.
func (pf *Portfolio) UnrealizedPnL(marks map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, pos := range pf.positions {
		if mark, ok := marks[symbol]; ok {
			total = total.Add(pos.UnrealizedPnL(mark))
		}
	}
	return total
}

// Equity returns cash + realized + unrealized at the given marks.
func (pf *Portfolio) Equity(marks map[string]decimal.Decimal) decimal.Decimal {
	return pf.cash.Add(pf.RealizedPnL()).Add(pf.UnrealizedPnL(marks))
}

// Cash returns the current cash balance.
func (pf *Portfolio) Cash() decimal.Decimal { return pf.cash }

// InitialCapital returns the starting capital.
func (pf *Portfolio) InitialCapital() decimal.Decimal { return pf.initialCapital }

// TotalCommission returns the commission paid so far.
func (pf *Portfolio) TotalCommission() decimal.Decimal { return pf.totalCommission }

// TotalSlippage returns the slippage cost booked so far.
func (pf *Portfolio) TotalSlippage() decimal.Decimal { return pf.totalSlippage }

// MaxDrawdown returns the worst peak-to-trough equity decline seen by
// TakeSnapshot, as a fraction of the peak.
func (pf *Portfolio) MaxDrawdown() float64 { return pf.maxDrawdown }

// Snapshot is a point-in-time portfolio record.
type Snapshot struct {
	Timestamp     lob.Timestamp
	Equity        decimal.Decimal
	Cash          decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Positions     map[string]Position
}

// TakeSnapshot records the portfolio state at ts marked at the given
// prices, updating the running drawdown.
func (pf *Portfolio) TakeSnapshot(ts lob.Timestamp, marks map[string]decimal.Decimal) Snapshot {
	equity := pf.Equity(marks)
	pf.updateDrawdown(equity)

	positions := make(map[string]Position, len(pf.positions))
	for symbol, pos := range pf.positions {
		positions[symbol] = *pos
	}

	return Snapshot{
		Timestamp:     ts,
		Equity:        equity,
		Cash:          pf.cash,
		RealizedPnL:   pf.RealizedPnL(),
		UnrealizedPnL: pf.UnrealizedPnL(marks),
		Positions:     positions,
	}
}

func (pf *Portfolio) updateDrawdown(equity decimal.Decimal) {
	if equity.GreaterThan(pf.maxEquity) {
		pf.maxEquity = equity
	}
	if pf.maxEquity.IsPositive() {
		dd, _ := pf.maxEquity.Sub(equity).Div(pf.maxEquity).Float64()
		if dd > pf.maxDrawdown {
			pf.maxDrawdown = dd
		}
	}
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
