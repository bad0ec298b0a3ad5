package lob

// DepthChange describes how one BookLog event moves aggregated depth:
// which side, which price level, and the signed size delta.
type DepthChange struct {
	Side     Side
	Price    Price
	SizeDiff int64
}

// CalculateDepthChange derives the depth update implied by a book log.
// Note: for LogTypeMatch, the side returned is the maker's side
// (opposite of the log's side) since a match removes maker liquidity.
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: int64(log.Size),
		}
	case LogTypeCancel:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: -int64(log.Size),
		}
	case LogTypeMatch:
		// The log.Side is the taker's side, so update the opposite side.
		makerSide := Bid
		if log.Side == Bid {
			makerSide = Ask
		}
		return DepthChange{
			Side:     makerSide,
			Price:    log.Price,
			SizeDiff: -int64(log.Size),
		}
	case LogTypeAmend:
		// Scenario 1: priority lost (price changed or size increased).
		// The order left the book; the re-queued order arrives as a
		// subsequent open or match log, so only remove OldSize at OldPrice.
		if log.OldPrice != log.Price || log.Size > log.OldSize {
			return DepthChange{
				Side:     log.Side,
				Price:    log.OldPrice,
				SizeDiff: -int64(log.OldSize),
			}
		}

		// Scenario 2: priority kept (same price, size decreased).
		// Update in place with the difference.
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: int64(log.Size) - int64(log.OldSize),
		}
	}

	return DepthChange{}
}
