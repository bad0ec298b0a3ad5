package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5487/lob-sim"
)

func quoteBook(t *testing.T) *lob.OrderBook {
	t.Helper()
	book := lob.NewOrderBook("SIM", nil)
	_, _, err := book.AddOrder(lob.Bid, 9900, 10, lob.LimitOrder, "")
	require.NoError(t, err)
	_, _, err = book.AddOrder(lob.Ask, 10100, 10, lob.LimitOrder, "")
	require.NoError(t, err)
	return book
}

func TestMarketMakerQuotes(t *testing.T) {
	s := NewMarketMakerStrategy()
	s.Initialize(Params{"spread_bps": 10, "size": 100, "inventory_limit": 1000})
	pf := NewPortfolio(d("100000"))

	book := quoteBook(t) // mid 100.0

	t.Run("flat inventory quotes symmetrically", func(t *testing.T) {
		orders := s.GenerateOrders(book, pf)
		require.Len(t, orders, 2)

		bid, ask := orders[0], orders[1]
		assert.Equal(t, lob.Bid, bid.Side)
		assert.Equal(t, lob.Ask, ask.Side)
		assert.Equal(t, lob.Quantity(100), bid.Quantity)
		// Half spread of 10 bps on mid 100 is 0.1 -> 10 ticks.
		assert.Equal(t, lob.Price(9990), bid.Price)
		assert.Equal(t, lob.Price(10010), ask.Price)
	})

	t.Run("long inventory skews quotes down", func(t *testing.T) {
		pf.ApplyFill("SIM", 500, d("100"), lob.Bid)
		orders := s.GenerateOrders(book, pf)
		require.Len(t, orders, 2)
		assert.Less(t, orders[0].Price, lob.Price(9990))
		assert.Less(t, orders[1].Price, lob.Price(10010))
	})

	t.Run("withholds the bid at the inventory limit", func(t *testing.T) {
		pf.ApplyFill("SIM", 500, d("100"), lob.Bid) // now at +1000
		orders := s.GenerateOrders(book, pf)
		require.Len(t, orders, 1)
		assert.Equal(t, lob.Ask, orders[0].Side)
	})

	t.Run("no quotes on an empty book", func(t *testing.T) {
		empty := lob.NewOrderBook("SIM", nil)
		assert.Empty(t, s.GenerateOrders(empty, pf))
	})
}

func TestMomentumEntersOnBreakout(t *testing.T) {
	s := NewMomentumStrategy()
	s.Initialize(Params{"lookback": 5, "entry_threshold": 1.5, "exit_threshold": 0.5, "size": 50})
	pf := NewPortfolio(d("100000"))
	book := quoteBook(t)

	// Feed a flat window, then a breakout tick.
	update := MarketDataUpdate{Type: MDAddOrder}
	for i := 0; i < 4; i++ {
		s.OnMarketData(update, book, pf)
	}
	assert.Empty(t, s.GenerateOrders(book, pf), "window not full yet")

	_, _, err := book.AddOrder(lob.Bid, 10090, 5, lob.LimitOrder, "")
	require.NoError(t, err)
	s.OnMarketData(update, book, pf)

	orders := s.GenerateOrders(book, pf)
	require.Len(t, orders, 1)
	assert.Equal(t, lob.Bid, orders[0].Side)
	assert.Equal(t, lob.MarketOrder, orders[0].Type)
	assert.Equal(t, lob.Quantity(50), orders[0].Quantity)
}

func TestParamsGet(t *testing.T) {
	p := Params{"a": 1}
	assert.Equal(t, 1.0, p.Get("a", 9))
	assert.Equal(t, 9.0, p.Get("b", 9))
	assert.Equal(t, 9.0, Params(nil).Get("a", 9))
}
