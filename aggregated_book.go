package lob

import (
	"github.com/igrmk/treemap/v2"
)

// AggregatedBook maintains a simplified view of an order book, tracking
// only price levels and their aggregated sizes. It is designed for
// consumers that rebuild depth from a BookLog stream, such as a signal
// layer running on recorded sessions.
type AggregatedBook struct {
	seqID uint64
	bid   *treemap.TreeMap[Price, int64]
	ask   *treemap.TreeMap[Price, int64]
}

// NewAggregatedBook creates a new AggregatedBook with empty sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		// Bids best-first means descending price.
		bid: treemap.NewWithKeyCompare[Price, int64](func(a, b Price) bool {
			return a > b
		}),
		ask: treemap.NewWithKeyCompare[Price, int64](func(a, b Price) bool {
			return a < b
		}),
	}
}

// SequenceID returns the last applied sequence ID, used for
// synchronization and gap detection during a rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID
}

// Replay applies one BookLog event to the aggregated depth. Events at
// or below the current sequence ID are skipped as duplicates; a gap in
// the sequence returns ErrSequenceGap and leaves the book unchanged.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	if log.SequenceID <= ab.seqID {
		return nil
	}
	if ab.seqID != 0 && log.SequenceID != ab.seqID+1 {
		return ErrSequenceGap
	}
	ab.seqID = log.SequenceID

	change := CalculateDepthChange(log)
	if change.SizeDiff == 0 {
		return nil
	}
	ab.apply(change)
	return nil
}

// Reset drops all depth and rewinds the sequence so a fresh rebuild can
// start from a snapshot.
func (ab *AggregatedBook) Reset() {
	ab.seqID = 0
	ab.bid.Clear()
	ab.ask.Clear()
}

// Depth returns the aggregated size at a price level, 0 when the level
// does not exist.
func (ab *AggregatedBook) Depth(side Side, price Price) Quantity {
	size, ok := ab.sideFor(side).Get(price)
	if !ok || size <= 0 {
		return 0
	}
	return Quantity(size)
}

// TopLevels returns up to n aggregated levels from the best price
// outward for one side.
func (ab *AggregatedBook) TopLevels(side Side, n int) []LevelView {
	tree := ab.sideFor(side)
	result := make([]LevelView, 0, n)
	for it := tree.Iterator(); it.Valid() && len(result) < n; it.Next() {
		if it.Value() <= 0 {
			continue
		}
		result = append(result, LevelView{Price: it.Key(), Quantity: Quantity(it.Value())})
	}
	return result
}

// Levels returns the number of non-empty price levels on one side.
func (ab *AggregatedBook) Levels(side Side) int {
	return ab.sideFor(side).Len()
}

func (ab *AggregatedBook) apply(change DepthChange) {
	tree := ab.sideFor(change.Side)
	size, _ := tree.Get(change.Price)
	size += change.SizeDiff
	if size <= 0 {
		tree.Del(change.Price)
		return
	}
	tree.Set(change.Price, size)
}

func (ab *AggregatedBook) sideFor(side Side) *treemap.TreeMap[Price, int64] {
	if side == Bid {
		return ab.bid
	}
	return ab.ask
}
