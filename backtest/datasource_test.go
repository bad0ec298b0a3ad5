package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5487/lob-sim"
)

func writeFeed(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestCSVDataSource(t *testing.T) {
	path := writeFeed(t, `timestamp_ns,symbol,type,side,price,quantity,order_id
1000,SIM,ADD,BID,10000,50,1
2000,SIM,MODIFY,BID,10100,30,1
3000,SIM,CANCEL,BID,0,0,1
4000,SIM,TRADE,ASK,10000,25,0
5000,SIM,EOD,,,,
6000,SIM,CLEAR,,,,
`)

	ds, err := NewCSVDataSource(path)
	require.NoError(t, err)

	var events []Event
	for ds.HasNext() {
		events = append(events, ds.Next())
	}
	require.Len(t, events, 6)

	t.Run("add", func(t *testing.T) {
		e := events[0]
		assert.Equal(t, EventMarketData, e.Type)
		assert.Equal(t, lob.Timestamp(1000), e.Timestamp)
		assert.Equal(t, "SIM", e.Symbol)
		require.NotNil(t, e.MarketUpdate)
		assert.Equal(t, MDAddOrder, e.MarketUpdate.Type)
		assert.Equal(t, lob.Bid, e.MarketUpdate.Side)
		assert.Equal(t, lob.Price(10000), e.MarketUpdate.Price)
		assert.Equal(t, lob.Quantity(50), e.MarketUpdate.Quantity)
		assert.Equal(t, lob.OrderID(1), e.MarketUpdate.OrderID)
	})

	t.Run("modify carries the new price", func(t *testing.T) {
		u := events[1].MarketUpdate
		require.NotNil(t, u)
		assert.Equal(t, MDModifyOrder, u.Type)
		assert.Equal(t, lob.Price(10100), u.NewPrice)
		assert.Equal(t, lob.Quantity(30), u.Quantity)
	})

	t.Run("cancel", func(t *testing.T) {
		u := events[2].MarketUpdate
		require.NotNil(t, u)
		assert.Equal(t, MDCancelOrder, u.Type)
		assert.Equal(t, lob.OrderID(1), u.OrderID)
	})

	t.Run("trade becomes a fill with explicit aggressor", func(t *testing.T) {
		e := events[3]
		assert.Equal(t, EventFill, e.Type)
		require.NotNil(t, e.Execution)
		assert.Equal(t, lob.Ask, e.Execution.AggressorSide)
		assert.Equal(t, lob.Price(10000), e.Execution.Price)
		assert.Equal(t, lob.Quantity(25), e.Execution.Quantity)
	})

	t.Run("eod and clear", func(t *testing.T) {
		assert.Equal(t, EventEndOfDay, events[4].Type)
		require.NotNil(t, events[5].MarketUpdate)
		assert.Equal(t, MDClear, events[5].MarketUpdate.Type)
	})

	t.Run("reset replays from the start", func(t *testing.T) {
		require.NoError(t, ds.Reset())
		require.True(t, ds.HasNext())
		first := ds.Next()
		assert.Equal(t, lob.Timestamp(1000), first.Timestamp)
	})
}

func TestCSVDataSourceMalformedRows(t *testing.T) {
	path := writeFeed(t, `timestamp_ns,symbol,type,side,price,quantity,order_id
not-a-number,SIM,ADD,BID,100,10,1
1000,SIM,ADD,SIDEWAYS,100,10,1
2000,SIM,TRADE,,100,10,0
3000,SIM,UNKNOWN,BID,100,10,1
4000,SIM,ADD,BID,100,10
5000,SIM,ADD,BID,100,10,7
`)

	ds, err := NewCSVDataSource(path)
	require.NoError(t, err)

	var good, noop int
	for ds.HasNext() {
		e := ds.Next()
		if e.Type == EventMarketData && e.MarketUpdate != nil && e.MarketUpdate.Type == MDNone {
			noop++
			continue
		}
		good++
		assert.Equal(t, lob.OrderID(7), e.MarketUpdate.OrderID)
	}

	// Bad timestamp, bad side, sideless trade, unknown type and a
	// short row all degrade to no-ops; only the last row parses.
	assert.Equal(t, 5, noop)
	assert.Equal(t, 1, good)
}

func TestCSVDataSourceQuotedFields(t *testing.T) {
	path := writeFeed(t, `1000,"SIM,USD",ADD,BID,100,10,1
`)

	ds, err := NewCSVDataSource(path)
	require.NoError(t, err)

	require.True(t, ds.HasNext())
	e := ds.Next()
	assert.Equal(t, "SIM,USD", e.Symbol)
	require.NotNil(t, e.MarketUpdate)
	assert.Equal(t, MDAddOrder, e.MarketUpdate.Type)
}

func TestCSVDataSourceMissingFile(t *testing.T) {
	_, err := NewCSVDataSource(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a,b,c"))
	assert.Equal(t, []string{"a,b", "c"}, splitCSV(`"a,b",c`))
	assert.Equal(t, []string{""}, splitCSV(""))
	assert.Equal(t, []string{"a", "", "c"}, splitCSV("a,,c"))
}
