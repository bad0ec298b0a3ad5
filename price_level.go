package lob

// PriceLevel is a FIFO queue of orders resting at one price. Orders are
// threaded through an intrusive doubly-linked list so removal is O(1)
// given the order itself.
type PriceLevel struct {
	Price         Price
	Side          Side
	TotalQuantity Quantity
	OrderCount    uint32

	head *Order
	tail *Order
}

func newPriceLevel(price Price, side Side) *PriceLevel {
	return &PriceLevel{Price: price, Side: side}
}

// Add appends an order to the tail of the level, preserving time priority.
func (l *PriceLevel) Add(order *Order) {
	order.level = l
	order.next = nil
	order.prev = l.tail

	if l.tail != nil {
		l.tail.next = order
	} else {
		l.head = order
	}
	l.tail = order

	l.TotalQuantity += order.Remaining
	l.OrderCount++
}

// Remove unlinks an order from the level.
func (l *PriceLevel) Remove(order *Order) {
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	l.TotalQuantity -= order.Remaining
	l.OrderCount--

	// Clear pointers so a stale handle cannot walk the list
	order.next = nil
	order.prev = nil
	order.level = nil
}

// Reduce writes a new, non-increasing remaining quantity in place. The
// order keeps its position in the queue.
func (l *PriceLevel) Reduce(order *Order, newRemaining Quantity) {
	l.TotalQuantity -= order.Remaining - newRemaining
	order.Remaining = newRemaining
}

// Front returns the oldest resting order at this price.
func (l *PriceLevel) Front() *Order {
	return l.head
}

// Empty reports whether the level holds no orders.
func (l *PriceLevel) Empty() bool {
	return l.head == nil
}

// Orders returns copies of the resting orders in time priority.
func (l *PriceLevel) Orders() []Order {
	result := make([]Order, 0, l.OrderCount)
	for o := l.head; o != nil; o = o.next {
		cpy := *o
		cpy.next, cpy.prev, cpy.level = nil, nil, nil
		result = append(result, cpy)
	}
	return result
}

// View returns the aggregated view of the level.
func (l *PriceLevel) View() LevelView {
	return LevelView{Price: l.Price, Quantity: l.TotalQuantity, Orders: l.OrderCount}
}
