package engine

import (
	. "kestrel/internal/common"
)

// fillFunc is invoked once per execution with the buy and sell order ids
// resolved from the aggressor's side.
type fillFunc func(buyID, sellID OrderID, price Price, quantity Quantity, ts Timestamp)

// PriceLevel holds every resting order at one price in strict arrival
// order, plus the level's volume aggregates. The aggregates are maintained
// incrementally and always equal the per-order sums.
type PriceLevel struct {
	price         Price
	orders        orderQueue
	totalVolume   Quantity // Sum of remaining quantities
	visibleVolume Quantity // Sum of visible quantities
}

func NewPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{price: price}
}

func (l *PriceLevel) Price() Price            { return l.price }
func (l *PriceLevel) TotalVolume() Quantity   { return l.totalVolume }
func (l *PriceLevel) VisibleVolume() Quantity { return l.visibleVolume }
func (l *PriceLevel) OrderCount() int         { return l.orders.Len() }
func (l *PriceLevel) Empty() bool             { return l.orders.Empty() }
func (l *PriceLevel) Front() *Order           { return l.orders.Front() }

// Add appends an order at the tail. The order must carry this level's
// price, must not be linked elsewhere, and must have quantity remaining.
func (l *PriceLevel) Add(o *Order) {
	if o.price != l.price {
		panic("engine: order price does not match level")
	}
	if o.RemainingQuantity() == 0 {
		panic("engine: adding filled order to level")
	}
	l.orders.PushBack(o)
	l.totalVolume += o.RemainingQuantity()
	l.visibleVolume += o.VisibleQuantity()
}

// Remove unlinks an order resting in this level.
func (l *PriceLevel) Remove(o *Order) {
	l.totalVolume -= o.RemainingQuantity()
	l.visibleVolume -= o.VisibleQuantity()
	l.orders.Remove(o)
}

// UpdateAfterFill reconciles the aggregates after the order's quantities
// changed underneath the level (a modify, or a fill applied elsewhere). If
// an iceberg's visible slice grew, the order is moved to the tail: the
// refreshed slice queues behind everything already resting.
func (l *PriceLevel) UpdateAfterFill(o *Order, oldRemaining, oldVisible Quantity) {
	l.totalVolume = l.totalVolume - oldRemaining + o.RemainingQuantity()
	l.visibleVolume = l.visibleVolume - oldVisible + o.VisibleQuantity()

	if o.IsIceberg() && o.VisibleQuantity() > oldVisible {
		l.orders.Remove(o)
		l.orders.PushBack(o)
	}
}

// Match executes the aggressor against this level head-first, filling at
// the passive price, until maxQty is matched or the level drains. Fully
// filled passives are unlinked; the caller destroys them after it has seen
// their fills. A passive iceberg whose visible slice depletes is rotated to
// the tail and its fresh slice re-added to the visible volume.
func (l *PriceLevel) Match(aggressor *Order, maxQty Quantity, onFill fillFunc, now Timestamp) Quantity {
	var matched Quantity

	for matched < maxQty && !l.orders.Empty() {
		passive := l.orders.Front()

		fill := min(maxQty-matched, passive.RemainingQuantity())
		oldVisible := passive.VisibleQuantity()

		aggressor.Fill(fill)
		passive.Fill(fill)

		l.totalVolume -= fill
		l.visibleVolume -= oldVisible

		if aggressor.IsBuy() {
			onFill(aggressor.id, passive.id, l.price, fill, now)
		} else {
			onFill(passive.id, aggressor.id, l.price, fill, now)
		}

		if passive.IsFilled() {
			l.orders.PopFront()
		} else {
			if passive.IsIceberg() && fill >= oldVisible {
				// Visible slice exhausted: expose the next slice at the tail.
				l.orders.Remove(passive)
				l.orders.PushBack(passive)
			}
			l.visibleVolume += passive.VisibleQuantity()
		}

		matched += fill

		if aggressor.IsFilled() {
			break
		}
	}

	return matched
}

// FillsCompletely reports whether the level holds enough total volume for
// the quantity. Hidden quantity counts.
func (l *PriceLevel) FillsCompletely(quantity Quantity) bool {
	return l.totalVolume >= quantity
}

// Each walks the resting orders head-first.
func (l *PriceLevel) Each(fn func(o *Order) bool) {
	l.orders.Each(fn)
}
