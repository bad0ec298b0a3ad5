package lob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatedBookReplay(t *testing.T) {
	publish := NewMemoryPublishLog()
	book := NewOrderBook("BTC-USD", publish)

	_, _, err := book.AddOrder(Bid, 100, 30, LimitOrder, "")
	require.NoError(t, err)
	_, _, err = book.AddOrder(Bid, 100, 20, LimitOrder, "")
	require.NoError(t, err)
	_, _, err = book.AddOrder(Ask, 105, 40, LimitOrder, "")
	require.NoError(t, err)
	_, _, err = book.AddOrder(Ask, 103, 25, LimitOrder, "")
	require.NoError(t, err)

	book.ProcessMarketOrder(Bid, 30, 1) // takes 25@103, 5@105
	id, _, err := book.AddOrder(Bid, 99, 10, LimitOrder, "")
	require.NoError(t, err)
	_, ok := book.ModifyOrder(id, 0, 5)
	require.True(t, ok)
	require.True(t, book.CancelOrder(id))

	agg := NewAggregatedBook()
	for _, log := range publish.Logs() {
		require.NoError(t, agg.Replay(log))
	}

	// The rebuilt depth matches the live book level for level.
	assert.Equal(t, book.BestBidQuantity(), agg.Depth(Bid, 100))
	assert.Equal(t, Quantity(35), agg.Depth(Ask, 105))
	assert.Equal(t, Quantity(0), agg.Depth(Ask, 103))
	assert.Equal(t, Quantity(0), agg.Depth(Bid, 99))

	top := agg.TopLevels(Ask, 5)
	require.Len(t, top, 1)
	assert.Equal(t, Price(105), top[0].Price)
}

func TestAggregatedBookSequence(t *testing.T) {
	agg := NewAggregatedBook()

	open := &BookLog{SequenceID: 1, Type: LogTypeOpen, Side: Bid, Price: 100, Size: 30}
	require.NoError(t, agg.Replay(open))
	assert.Equal(t, uint64(1), agg.SequenceID())

	t.Run("duplicate is skipped", func(t *testing.T) {
		require.NoError(t, agg.Replay(open))
		assert.Equal(t, Quantity(30), agg.Depth(Bid, 100))
	})

	t.Run("gap is rejected", func(t *testing.T) {
		gap := &BookLog{SequenceID: 5, Type: LogTypeOpen, Side: Bid, Price: 101, Size: 10}
		assert.ErrorIs(t, agg.Replay(gap), ErrSequenceGap)
		assert.Equal(t, uint64(1), agg.SequenceID())
	})

	t.Run("reset rewinds", func(t *testing.T) {
		agg.Reset()
		assert.Equal(t, uint64(0), agg.SequenceID())
		assert.Equal(t, Quantity(0), agg.Depth(Bid, 100))
	})
}

func TestCalculateDepthChange(t *testing.T) {
	t.Run("match reduces maker side", func(t *testing.T) {
		log := &BookLog{Type: LogTypeMatch, Side: Bid, Price: 100, Size: 10}
		change := CalculateDepthChange(log)
		assert.Equal(t, Ask, change.Side)
		assert.Equal(t, int64(-10), change.SizeDiff)
	})

	t.Run("amend with priority lost removes old size at old price", func(t *testing.T) {
		log := &BookLog{Type: LogTypeAmend, Side: Bid, Price: 101, OldPrice: 100, Size: 10, OldSize: 10}
		change := CalculateDepthChange(log)
		assert.Equal(t, Price(100), change.Price)
		assert.Equal(t, int64(-10), change.SizeDiff)
	})

	t.Run("amend in place applies the difference", func(t *testing.T) {
		log := &BookLog{Type: LogTypeAmend, Side: Bid, Price: 100, OldPrice: 100, Size: 5, OldSize: 20}
		change := CalculateDepthChange(log)
		assert.Equal(t, Price(100), change.Price)
		assert.Equal(t, int64(-15), change.SizeDiff)
	})
}
