package lob

import (
	"github.com/huandu/skiplist"
)

// BookSide keeps the price levels of one side of the book ordered from
// best price outward: descending for bids, ascending for asks. Levels
// live in a skip list keyed by price, with a side map for O(1) access
// by exact price.
type BookSide struct {
	side    Side
	levels  *skiplist.SkipList
	byPrice map[Price]*skiplist.Element
}

// NewBidSide creates the bid side. Levels are sorted by price in
// descending order (highest price first).
func NewBidSide() *BookSide {
	return &BookSide{
		side: Bid,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(Price)
			p2, _ := rhs.(Price)

			if p1 < p2 {
				return 1
			} else if p1 > p2 {
				return -1
			}

			return 0
		})),
		byPrice: make(map[Price]*skiplist.Element),
	}
}

// NewAskSide creates the ask side. Levels are sorted by price in
// ascending order (lowest price first).
func NewAskSide() *BookSide {
	return &BookSide{
		side: Ask,
		levels: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(Price)
			p2, _ := rhs.(Price)

			if p1 > p2 {
				return 1
			} else if p1 < p2 {
				return -1
			}

			return 0
		})),
		byPrice: make(map[Price]*skiplist.Element),
	}
}

// Side returns which side of the book this is.
func (s *BookSide) Side() Side {
	return s.side
}

// Level returns the level at an exact price, or nil.
func (s *BookSide) Level(price Price) *PriceLevel {
	el, ok := s.byPrice[price]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// GetOrCreate returns the level at price, creating it when absent.
func (s *BookSide) GetOrCreate(price Price) *PriceLevel {
	if lvl := s.Level(price); lvl != nil {
		return lvl
	}

	lvl := newPriceLevel(price, s.side)
	el := s.levels.Set(price, lvl)
	s.byPrice[price] = el
	return lvl
}

// RemoveIfEmpty erases the level at price when its last order has left.
func (s *BookSide) RemoveIfEmpty(price Price) {
	el, ok := s.byPrice[price]
	if !ok {
		return
	}
	lvl, _ := el.Value.(*PriceLevel)
	if !lvl.Empty() {
		return
	}
	s.levels.RemoveElement(el)
	delete(s.byPrice, price)
}

// BestLevel returns the level at the best price, or nil when empty.
func (s *BookSide) BestLevel() *PriceLevel {
	el := s.levels.Front()
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// BestPrice returns the best price on this side. The second return is
// false when the side is empty.
func (s *BookSide) BestPrice() (Price, bool) {
	lvl := s.BestLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Len returns the number of price levels on this side.
func (s *BookSide) Len() int {
	return s.levels.Len()
}

// Ascend walks the levels from the best price outward until fn returns
// false or the side is exhausted.
func (s *BookSide) Ascend(fn func(*PriceLevel) bool) {
	for el := s.levels.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*PriceLevel)
		if !fn(lvl) {
			return
		}
	}
}

// TopLevels returns up to n aggregated level views from the best price
// outward.
func (s *BookSide) TopLevels(n int) []LevelView {
	result := make([]LevelView, 0, n)
	s.Ascend(func(lvl *PriceLevel) bool {
		if len(result) >= n {
			return false
		}
		result = append(result, lvl.View())
		return true
	})
	return result
}

// TotalQuantity sums resting quantity over the top n levels. n <= 0
// sums the whole side.
func (s *BookSide) TotalQuantity(n int) Quantity {
	var total Quantity
	count := 0
	s.Ascend(func(lvl *PriceLevel) bool {
		if n > 0 && count >= n {
			return false
		}
		total += lvl.TotalQuantity
		count++
		return true
	})
	return total
}

// clear drops every level on this side.
func (s *BookSide) clear() {
	s.levels.Init()
	s.byPrice = make(map[Price]*skiplist.Element)
}
