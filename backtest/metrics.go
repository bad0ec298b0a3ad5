package backtest

import (
	"math"

	"github.com/0x5487/lob-sim"
)

const periodsPerYear = 252.0

// EquityPoint is one sample of the equity series.
type EquityPoint struct {
	Timestamp lob.Timestamp `json:"timestamp"`
	Equity    float64       `json:"equity"`
}

// DrawdownPoint pairs an equity sample with its running peak and
// drawdown.
type DrawdownPoint struct {
	Timestamp lob.Timestamp `json:"timestamp"`
	Equity    float64       `json:"equity"`
	Peak      float64       `json:"peak"`
	Drawdown  float64       `json:"drawdown"`
}

// TradeRecord logs one fill for turnover and capacity estimation.
type TradeRecord struct {
	Timestamp  lob.Timestamp `json:"timestamp"`
	Symbol     string        `json:"symbol"`
	Quantity   int64         `json:"quantity"`
	Price      float64       `json:"price"`
	Commission float64       `json:"commission"`
	Slippage   float64       `json:"slippage"`
}

// BacktestResult aggregates risk and performance metrics of one run.
type BacktestResult struct {
	TotalReturn      float64         `json:"total_return"`
	AnnualizedReturn float64         `json:"annualized_return"`
	Volatility       float64         `json:"volatility"`
	Sharpe           float64         `json:"sharpe"`
	Sortino          float64         `json:"sortino"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	Calmar           float64         `json:"calmar"`
	Turnover         float64         `json:"turnover"`
	CapacityEstimate float64         `json:"capacity_estimate"`
	NumTrades        int             `json:"num_trades"`
	EquityCurve      []DrawdownPoint `json:"equity_curve,omitempty"`
}

func periodReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if math.Abs(prev) < 1e-12 {
			prev = 1e-12
		}
		rets = append(rets, (equity[i].Equity-equity[i-1].Equity)/prev)
	}
	return rets
}

// Sharpe computes the per-period Sharpe ratio of excess returns.
func Sharpe(rets []float64, rfPerPeriod float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	var m float64
	for _, r := range rets {
		m += r - rfPerPeriod
	}
	m /= float64(len(rets))

	var v float64
	for _, r := range rets {
		d := (r - rfPerPeriod) - m
		v += d * d
	}
	s := math.Sqrt(v / float64(len(rets)-1))
	if s == 0 {
		return 0
	}
	return m / s
}

// Sortino computes the per-period Sortino ratio, penalising only
// downside deviation.
func Sortino(rets []float64, rfPerPeriod float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	var m float64
	for _, r := range rets {
		m += r - rfPerPeriod
	}
	m /= float64(len(rets))

	var dd float64
	n := 0
	for _, r := range rets {
		if d := r - rfPerPeriod; d < 0 {
			dd += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	s := math.Sqrt(dd / float64(n))
	if s == 0 {
		return 0
	}
	return m / s
}

// MaxDrawdown returns the worst fractional peak-to-trough decline and
// the full drawdown curve.
func MaxDrawdown(equity []EquityPoint) (float64, []DrawdownPoint) {
	if len(equity) == 0 {
		return 0, nil
	}

	peak := equity[0].Equity
	maxDD := 0.0
	curve := make([]DrawdownPoint, 0, len(equity))
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		denom := peak
		if math.Abs(denom) < 1e-12 {
			denom = 1e-12
		}
		dd := (peak - p.Equity) / denom
		if dd > maxDD {
			maxDD = dd
		}
		curve = append(curve, DrawdownPoint{Timestamp: p.Timestamp, Equity: p.Equity, Peak: peak, Drawdown: dd})
	}
	return maxDD, curve
}

// Turnover sums gross traded notional over the trade log.
func Turnover(trades []TradeRecord) float64 {
	var gross float64
	for _, t := range trades {
		gross += math.Abs(float64(t.Quantity)) * t.Price
	}
	return gross
}

// EstimateCapacity scales capacity down as turnover grows, using a
// linear impact proxy with the given coefficient in basis points.
func EstimateCapacity(trades []TradeRecord, impactCoefBps float64) float64 {
	turnover := Turnover(trades)
	if turnover <= 0 {
		return 1
	}
	c := 1 - impactCoefBps*1e-4*turnover
	if c < 0 {
		return 0
	}
	return c
}

// ComputeMetrics builds a BacktestResult from an equity series and
// trade log. riskFreeAnnual is the annual risk-free rate;
// tradingDaySeconds calibrates annualization from the series' span.
// Degenerate inputs (fewer than two equity points) yield zeros.
func ComputeMetrics(equity []EquityPoint, trades []TradeRecord, riskFreeAnnual, tradingDaySeconds float64) BacktestResult {
	var r BacktestResult
	if len(equity) < 2 {
		return r
	}

	start := equity[0].Equity
	end := equity[len(equity)-1].Equity
	if math.Abs(start) < 1e-12 {
		start = 1e-12
	}
	r.TotalReturn = (end - start) / start

	seconds := float64(equity[len(equity)-1].Timestamp-equity[0].Timestamp) / 1e9
	days := seconds / tradingDaySeconds
	if days < 1 {
		days = 1
	}

	rets := periodReturns(equity)
	var sumSq float64
	for _, ret := range rets {
		sumSq += ret * ret
	}
	if len(rets) > 1 {
		r.Volatility = math.Sqrt(sumSq/float64(len(rets)-1)) * math.Sqrt(periodsPerYear)
	}

	rfPerPeriod := riskFreeAnnual / periodsPerYear
	r.Sharpe = Sharpe(rets, rfPerPeriod) * math.Sqrt(periodsPerYear)
	r.Sortino = Sortino(rets, rfPerPeriod) * math.Sqrt(periodsPerYear)
	r.MaxDrawdown, r.EquityCurve = MaxDrawdown(equity)
	if r.MaxDrawdown > 0 {
		r.Calmar = r.TotalReturn / r.MaxDrawdown
	}
	r.Turnover = Turnover(trades)
	r.CapacityEstimate = EstimateCapacity(trades, 0.1)
	r.AnnualizedReturn = math.Pow(1+r.TotalReturn, periodsPerYear/days) - 1
	r.NumTrades = len(trades)
	return r
}
