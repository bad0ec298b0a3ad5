package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5487/lob-sim"
)

func TestSharpe(t *testing.T) {
	t.Run("degenerate inputs", func(t *testing.T) {
		assert.Equal(t, 0.0, Sharpe(nil, 0))
		assert.Equal(t, 0.0, Sharpe([]float64{0.01}, 0))
		assert.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01, 0.01}, 0)) // zero variance
	})

	t.Run("known series", func(t *testing.T) {
		rets := []float64{0.02, -0.01, 0.03, 0.00}
		// mean 0.01, sample std sqrt(0.001/3)
		want := 0.01 / math.Sqrt(0.001/3)
		assert.InDelta(t, want, Sharpe(rets, 0), 1e-12)
	})

	t.Run("risk free shifts the mean", func(t *testing.T) {
		rets := []float64{0.02, 0.04}
		// excess: 0.01, 0.03 -> mean 0.02, std sqrt(0.0002)
		want := 0.02 / math.Sqrt(0.0002)
		assert.InDelta(t, want, Sharpe(rets, 0.01), 1e-12)
	})
}

func TestSortino(t *testing.T) {
	t.Run("no downside returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Sortino([]float64{0.01, 0.02}, 0))
	})

	t.Run("penalizes only downside", func(t *testing.T) {
		rets := []float64{0.02, -0.01, 0.03, -0.02}
		// mean 0.005, downside dev sqrt((0.0001+0.0004)/2)
		want := 0.005 / math.Sqrt(0.00025)
		assert.InDelta(t, want, Sortino(rets, 0), 1e-12)
	})
}

func TestMaxDrawdown(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		dd, curve := MaxDrawdown(nil)
		assert.Equal(t, 0.0, dd)
		assert.Nil(t, curve)
	})

	t.Run("monotone rise has no drawdown", func(t *testing.T) {
		dd, curve := MaxDrawdown([]EquityPoint{{1, 100}, {2, 110}, {3, 120}})
		assert.Equal(t, 0.0, dd)
		require.Len(t, curve, 3)
		assert.Equal(t, 120.0, curve[2].Peak)
	})

	t.Run("peak to trough", func(t *testing.T) {
		equity := []EquityPoint{{1, 100}, {2, 120}, {3, 90}, {4, 110}}
		dd, curve := MaxDrawdown(equity)
		assert.InDelta(t, 0.25, dd, 1e-12) // (120-90)/120
		assert.InDelta(t, 0.25, curve[2].Drawdown, 1e-12)
		assert.Equal(t, 120.0, curve[3].Peak)
	})
}

func TestTurnoverAndCapacity(t *testing.T) {
	trades := []TradeRecord{
		{Quantity: 10, Price: 100},
		{Quantity: -5, Price: 200},
	}
	assert.InDelta(t, 2000.0, Turnover(trades), 1e-12)

	t.Run("no trades means full capacity", func(t *testing.T) {
		assert.Equal(t, 1.0, EstimateCapacity(nil, 1))
	})

	t.Run("capacity decays linearly and floors at zero", func(t *testing.T) {
		assert.InDelta(t, 1-1e-4*2000, EstimateCapacity(trades, 1), 1e-12)
		assert.Equal(t, 0.0, EstimateCapacity(trades, 1e6))
	})
}

func TestComputeMetrics(t *testing.T) {
	t.Run("fewer than two points yields zeros", func(t *testing.T) {
		r := ComputeMetrics([]EquityPoint{{1, 100}}, nil, 0, 6.5*3600)
		assert.Equal(t, BacktestResult{}, r)
	})

	t.Run("single day series", func(t *testing.T) {
		day := int64(6.5 * 3600 * 1e9)
		equity := []EquityPoint{
			{0, 1000},
			{lob.Timestamp(day / 2), 1100},
			{lob.Timestamp(day), 990},
		}
		trades := []TradeRecord{{Quantity: 10, Price: 100}}

		r := ComputeMetrics(equity, trades, 0, 6.5*3600)
		assert.InDelta(t, -0.01, r.TotalReturn, 1e-12)
		assert.InDelta(t, 0.1, r.MaxDrawdown, 1e-12) // (1100-990)/1100
		assert.InDelta(t, r.TotalReturn/r.MaxDrawdown, r.Calmar, 1e-12)
		assert.InDelta(t, 1000.0, r.Turnover, 1e-12)
		assert.Equal(t, 1, r.NumTrades)
		require.Len(t, r.EquityCurve, 3)

		// Span clamps to one day, so annualization compounds 252x.
		assert.InDelta(t, math.Pow(0.99, 252)-1, r.AnnualizedReturn, 1e-9)
	})

	t.Run("sharpe scales by sqrt of periods per year", func(t *testing.T) {
		equity := []EquityPoint{{0, 1000}, {1, 1020}, {2, 1010}, {3, 1040}}
		rets := periodReturns(equity)
		r := ComputeMetrics(equity, nil, 0, 6.5*3600)
		assert.InDelta(t, Sharpe(rets, 0)*math.Sqrt(252), r.Sharpe, 1e-12)
		assert.InDelta(t, Sortino(rets, 0)*math.Sqrt(252), r.Sortino, 1e-12)
	})
}
