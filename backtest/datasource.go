package backtest

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/0x5487/lob-sim"
)

// DataSource feeds time-sorted events into the engine. Events must be
// delivered in non-decreasing timestamp order.
type DataSource interface {
	HasNext() bool
	Next() Event
	Reset() error
}

// CSVDataSource replays a CSV feed with columns
//
//	timestamp_ns,symbol,type,side,price,quantity,order_id
//
// type is one of ADD, MODIFY, CANCEL, TRADE, EOD; anything else (and
// any unparsable row) becomes a no-op market-data event. side is BID
// or ASK; prices are signed integer ticks; quantities unsigned. Quoted
// fields may contain commas.
type CSVDataSource struct {
	path   string
	buffer []Event
	pos    int
}

// NewCSVDataSource opens and fully buffers the file at path.
func NewCSVDataSource(path string) (*CSVDataSource, error) {
	ds := &CSVDataSource{path: path}
	if err := ds.Reset(); err != nil {
		return nil, err
	}
	return ds, nil
}

// HasNext implements DataSource.
func (ds *CSVDataSource) HasNext() bool {
	return ds.pos < len(ds.buffer)
}

// Next implements DataSource.
func (ds *CSVDataSource) Next() Event {
	e := ds.buffer[ds.pos]
	ds.pos++
	return e
}

// Reset re-reads the file from the beginning.
func (ds *CSVDataSource) Reset() error {
	file, err := os.Open(ds.path)
	if err != nil {
		return err
	}
	defer file.Close()

	ds.buffer = ds.buffer[:0]
	ds.pos = 0

	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.Contains(line, "timestamp") {
				continue
			}
		}
		ds.buffer = append(ds.buffer, parseLine(line))
	}
	return scanner.Err()
}

// splitCSV splits on commas outside double quotes; the quotes
// themselves are dropped.
func splitCSV(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for _, c := range s {
		switch {
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func parseLine(line string) Event {
	noop := Event{Type: EventMarketData, MarketUpdate: &MarketDataUpdate{Type: MDNone}}

	cols := splitCSV(line)
	if len(cols) < 3 {
		return noop
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(cols[0]), 10, 64)
	if err != nil {
		return noop
	}

	e := Event{
		Timestamp: lob.Timestamp(ts),
		Symbol:    strings.TrimSpace(cols[1]),
	}

	switch strings.TrimSpace(cols[2]) {
	case "ADD":
		u, ok := parseUpdate(cols, e.Timestamp, MDAddOrder)
		if !ok {
			return noop
		}
		e.Type = EventMarketData
		e.MarketUpdate = u

	case "MODIFY":
		u, ok := parseUpdate(cols, e.Timestamp, MDModifyOrder)
		if !ok {
			return noop
		}
		// The price column, when non-zero, re-prices the order.
		u.NewPrice = u.Price
		e.Type = EventMarketData
		e.MarketUpdate = u

	case "CANCEL":
		u, ok := parseUpdate(cols, e.Timestamp, MDCancelOrder)
		if !ok {
			return noop
		}
		e.Type = EventMarketData
		e.MarketUpdate = u

	case "TRADE":
		// A trade row needs an explicit aggressor side to be usable;
		// without one it degrades to a no-op rather than a guess.
		side, ok := parseSide(cols)
		if !ok || len(cols) < 6 {
			return noop
		}
		price, err1 := strconv.ParseInt(strings.TrimSpace(cols[4]), 10, 64)
		qty, err2 := strconv.ParseUint(strings.TrimSpace(cols[5]), 10, 64)
		if err1 != nil || err2 != nil {
			return noop
		}
		e.Type = EventFill
		e.Execution = &lob.Execution{
			Symbol:        e.Symbol,
			AggressorSide: side,
			Price:         lob.Price(price),
			Quantity:      lob.Quantity(qty),
			Timestamp:     e.Timestamp,
		}

	case "EOD":
		e.Type = EventEndOfDay

	case "CLEAR":
		e.Type = EventMarketData
		e.MarketUpdate = &MarketDataUpdate{Type: MDClear, Timestamp: e.Timestamp}

	default:
		e.Type = EventMarketData
		e.MarketUpdate = &MarketDataUpdate{Type: MDNone, Timestamp: e.Timestamp}
	}

	return e
}

func parseUpdate(cols []string, ts lob.Timestamp, typ MarketDataType) (*MarketDataUpdate, bool) {
	if len(cols) < 7 {
		return nil, false
	}
	side, ok := parseSide(cols)
	if !ok {
		return nil, false
	}

	u := &MarketDataUpdate{Type: typ, Side: side, Timestamp: ts}

	if price, err := strconv.ParseInt(strings.TrimSpace(cols[4]), 10, 64); err == nil {
		u.Price = lob.Price(price)
	} else if typ == MDAddOrder {
		return nil, false
	}
	if qty, err := strconv.ParseUint(strings.TrimSpace(cols[5]), 10, 64); err == nil {
		u.Quantity = lob.Quantity(qty)
	} else if typ != MDCancelOrder {
		return nil, false
	}

	id, err := strconv.ParseUint(strings.TrimSpace(cols[6]), 10, 64)
	if err != nil {
		return nil, false
	}
	u.OrderID = lob.OrderID(id)
	return u, true
}

func parseSide(cols []string) (lob.Side, bool) {
	if len(cols) < 4 {
		return 0, false
	}
	switch strings.TrimSpace(cols[3]) {
	case "BID":
		return lob.Bid, true
	case "ASK":
		return lob.Ask, true
	default:
		return 0, false
	}
}
