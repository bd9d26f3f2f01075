package engine

import (
	"slices"

	"github.com/tidwall/btree"

	. "kestrel/internal/common"
)

// stopSweepLimit bounds cascading stop triggers: each sweep re-scans until
// a pass fires nothing, but never more than this many passes.
const stopSweepLimit = 16

// OrderBook is the per-symbol matching engine. Bids and asks live in btree
// collections whose comparators put the frontier first (highest bid, lowest
// ask), so the matching walk and the best caches both read from Min.
//
// A book is single-threaded: every operation runs to completion on the
// caller's goroutine, callbacks included.
type OrderBook struct {
	symbol string
	ctx    *Context
	pool   *orderPool

	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	stopOrders map[OrderID]*Order

	bestBid Price
	bestAsk Price

	totalTrades uint64
	totalVolume uint64

	sweeping bool // guards reentrancy of the automatic stop sweep
}

func NewOrderBook(ctx *Context, symbol string) *OrderBook {
	cfg := ctx.Config()
	return &OrderBook{
		symbol: symbol,
		ctx:    ctx,
		pool:   newOrderPool(cfg.ExpectedMaxOrders, cfg.MaxOrders),
		// Bids sort descending so the highest price is first.
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.price > b.price
		}),
		// Asks sort ascending so the lowest price is first.
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.price < b.price
		}),
		stopOrders: make(map[OrderID]*Order),
	}
}

func (b *OrderBook) Symbol() string   { return b.symbol }
func (b *OrderBook) Context() *Context { return b.ctx }

/* ---------------------------------------------------------------------------
 * Submission
 * ------------------------------------------------------------------------ */

// AddLimit submits a plain GTC limit order with no flags.
func (b *OrderBook) AddLimit(id OrderID, side Side, price Price, quantity Quantity) Status {
	return b.AddOrder(id, OrderTypeLimit, side, price, 0, quantity, 0, TIFGTC, FlagNone, 0)
}

// AddMarket submits a plain market order.
func (b *OrderBook) AddMarket(id OrderID, side Side, quantity Quantity) Status {
	return b.AddOrder(id, OrderTypeMarket, side, 0, 0, quantity, 0, TIFGTC, FlagNone, 0)
}

// AddOrder is the full submission path. Validation failures leave the book
// untouched and emit no events.
func (b *OrderBook) AddOrder(id OrderID, orderType OrderType, side Side,
	price, stopPrice Price, quantity, displayQty Quantity,
	tif TimeInForce, flags OrderFlags, expireTime Timestamp) Status {

	if status := b.validate(id, orderType, price, stopPrice, quantity, displayQty, expireTime); status != StatusOK {
		return status
	}

	now := b.ctx.Timestamp()
	order, status := b.pool.Create(id, orderType, side, price, stopPrice,
		quantity, displayQty, tif, flags, now, expireTime)
	if status != StatusOK {
		return status
	}

	if order.IsStop() {
		status = b.handleStopOrder(order)
	} else {
		status = b.processNewOrder(order)
	}

	b.afterMutation()
	return status
}

func (b *OrderBook) validate(id OrderID, orderType OrderType,
	price, stopPrice Price, quantity, displayQty Quantity, expireTime Timestamp) Status {

	cfg := b.ctx.Config()

	if id == InvalidOrderID {
		return StatusInvalidParam
	}
	if quantity == 0 {
		return StatusInvalidQuantity
	}
	if displayQty > quantity {
		return StatusInvalidQuantity
	}

	switch orderType {
	case OrderTypeLimit, OrderTypeStopLimit:
		if price == 0 {
			return StatusInvalidPrice
		}
		if price < cfg.MinPrice || (cfg.MaxPrice > 0 && price > cfg.MaxPrice) {
			return StatusInvalidPrice
		}
	}
	switch orderType {
	case OrderTypeStop, OrderTypeStopLimit:
		if stopPrice == 0 {
			return StatusInvalidPrice
		}
		if !cfg.EnableStopOrders {
			return StatusInvalidParam
		}
	}

	if displayQty > 0 && !cfg.EnableIcebergOrders {
		return StatusInvalidParam
	}
	if expireTime > 0 && !cfg.EnableTimeExpiry {
		return StatusInvalidParam
	}

	if b.pool.Has(id) {
		return StatusDuplicateOrder
	}

	return StatusOK
}

/* ---------------------------------------------------------------------------
 * Order processing
 * ------------------------------------------------------------------------ */

func (b *OrderBook) processNewOrder(order *Order) Status {
	if order.IsPostOnly() && b.wouldMatchImmediately(order) {
		order.Reject()
		b.ctx.notifyOrderEvent(order.id, EventRejected, 0, 0)
		b.pool.Destroy(order)
		return StatusWouldMatch
	}

	// AON admits the order only if the full quantity is there right now.
	// An AON order that does not cross at all rests untouched.
	if order.IsAON() && (order.IsMarket() || b.wouldMatchImmediately(order)) {
		if !b.canFillCompletely(order) {
			order.Reject()
			b.ctx.notifyOrderEvent(order.id, EventRejected, 0, 0)
			b.pool.Destroy(order)
			return StatusCannotFill
		}
	}

	if order.IsFOK() {
		return b.handleFOK(order)
	}
	if order.IsIOC() {
		return b.handleIOC(order)
	}

	b.matchOrder(order)

	// Market orders never rest.
	if order.IsMarket() {
		if order.RemainingQuantity() > 0 {
			order.Cancel()
			b.ctx.notifyOrderEvent(order.id, EventCancelled, order.filledQuantity, 0)
		} else {
			b.ctx.notifyOrderEvent(order.id, EventFilled, order.filledQuantity, 0)
		}
		b.pool.Destroy(order)
		return StatusOK
	}

	if order.RemainingQuantity() > 0 {
		if order.IsGTC() || order.IsDay() || order.IsGTD() {
			b.addToBook(order)
			if order.filledQuantity > 0 {
				b.ctx.notifyOrderEvent(order.id, EventPartial, order.filledQuantity, order.RemainingQuantity())
			} else {
				b.ctx.notifyOrderEvent(order.id, EventAccepted, 0, order.RemainingQuantity())
			}
		} else {
			order.Cancel()
			b.ctx.notifyOrderEvent(order.id, EventCancelled, order.filledQuantity, 0)
			b.pool.Destroy(order)
		}
	} else {
		b.ctx.notifyOrderEvent(order.id, EventFilled, order.filledQuantity, 0)
		b.pool.Destroy(order)
	}

	return StatusOK
}

func (b *OrderBook) handleIOC(order *Order) Status {
	b.matchOrder(order)

	if order.RemainingQuantity() > 0 {
		order.Cancel()
		b.ctx.notifyOrderEvent(order.id, EventCancelled, order.filledQuantity, 0)
	} else {
		b.ctx.notifyOrderEvent(order.id, EventFilled, order.filledQuantity, 0)
	}
	b.pool.Destroy(order)
	return StatusOK
}

func (b *OrderBook) handleFOK(order *Order) Status {
	if !b.canFillCompletely(order) {
		order.Reject()
		b.ctx.notifyOrderEvent(order.id, EventRejected, 0, 0)
		b.pool.Destroy(order)
		return StatusCannotFill
	}

	b.matchOrder(order)

	b.ctx.notifyOrderEvent(order.id, EventFilled, order.filledQuantity, 0)
	b.pool.Destroy(order)
	return StatusOK
}

func (b *OrderBook) handleStopOrder(order *Order) Status {
	if b.shouldTriggerStop(order) {
		order.TriggerStop()
		b.ctx.notifyOrderEvent(order.id, EventTriggered, 0, order.RemainingQuantity())
		return b.processNewOrder(order)
	}

	b.stopOrders[order.id] = order
	b.ctx.notifyOrderEvent(order.id, EventAccepted, 0, order.RemainingQuantity())
	return StatusOK
}

// matchOrder walks the opposite side from the frontier, level by level. A
// limit aggressor halts at the first level beyond its price; market orders
// never halt on price.
func (b *OrderBook) matchOrder(order *Order) {
	now := b.ctx.Timestamp()

	levels := b.asks
	if order.IsSell() {
		levels = b.bids
	}

	for order.RemainingQuantity() > 0 {
		level, ok := levels.MinMut()
		if !ok {
			break
		}
		if order.IsLimit() {
			if order.IsBuy() && order.price < level.price {
				break
			}
			if order.IsSell() && order.price > level.price {
				break
			}
		}

		var filled []*Order

		matched := level.Match(order, order.RemainingQuantity(),
			func(buyID, sellID OrderID, price Price, quantity Quantity, ts Timestamp) {
				b.ctx.notifyTrade(buyID, sellID, price, quantity, ts)

				passiveID := sellID
				if order.IsSell() {
					passiveID = buyID
				}
				passive := b.pool.Find(passiveID)
				if passive == nil {
					return
				}
				if passive.IsFilled() {
					filled = append(filled, passive)
				} else if passive.filledQuantity > 0 {
					b.ctx.notifyOrderEvent(passiveID, EventPartial,
						passive.filledQuantity, passive.RemainingQuantity())
				}
			}, now)

		if matched > 0 {
			b.totalTrades++
			b.totalVolume += uint64(matched)
		}

		// Fully filled passives were unlinked by the level; report and free
		// them after their last trade.
		for _, passive := range filled {
			b.ctx.notifyOrderEvent(passive.id, EventFilled, passive.filledQuantity, 0)
			b.pool.Destroy(passive)
		}

		if level.Empty() {
			levels.Delete(level)
			if order.IsBuy() {
				b.updateBestAsk()
			} else {
				b.updateBestBid()
			}
		}

		if matched == 0 {
			break
		}
	}
}

/* ---------------------------------------------------------------------------
 * Book management
 * ------------------------------------------------------------------------ */

func (b *OrderBook) addToBook(order *Order) {
	if order.filledQuantity > 0 {
		order.state = StatePartiallyFilled
	} else {
		order.state = StateActive
	}

	level := b.getOrCreateLevel(order.side, order.price)
	level.Add(order)

	if order.IsBuy() {
		if order.price > b.bestBid {
			b.bestBid = order.price
		}
	} else {
		if b.bestAsk == 0 || order.price < b.bestAsk {
			b.bestAsk = order.price
		}
	}
}

func (b *OrderBook) removeFromBook(order *Order) {
	if !order.IsActive() && !order.IsPartiallyFilled() {
		return
	}

	level := b.getLevel(order.side, order.price)
	if level == nil {
		return
	}

	level.Remove(order)

	if level.Empty() {
		b.sideLevels(order.side).Delete(level)
	}
	if order.IsBuy() && order.price == b.bestBid {
		b.updateBestBid()
	} else if order.IsSell() && order.price == b.bestAsk {
		b.updateBestAsk()
	}
}

func (b *OrderBook) sideLevels(side Side) *btree.BTreeG[*PriceLevel] {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) getOrCreateLevel(side Side, price Price) *PriceLevel {
	levels := b.sideLevels(side)
	if level, ok := levels.GetMut(&PriceLevel{price: price}); ok {
		return level
	}
	level := NewPriceLevel(price)
	levels.Set(level)
	return level
}

func (b *OrderBook) getLevel(side Side, price Price) *PriceLevel {
	if level, ok := b.sideLevels(side).GetMut(&PriceLevel{price: price}); ok {
		return level
	}
	return nil
}

func (b *OrderBook) updateBestBid() {
	if level, ok := b.bids.Min(); ok {
		b.bestBid = level.price
	} else {
		b.bestBid = 0
	}
}

func (b *OrderBook) updateBestAsk() {
	if level, ok := b.asks.Min(); ok {
		b.bestAsk = level.price
	} else {
		b.bestAsk = 0
	}
}

/* ---------------------------------------------------------------------------
 * Cancel / modify / replace
 * ------------------------------------------------------------------------ */

// Cancel removes a live order, reporting its fill count, and destroys it. A
// second cancel of the same id returns StatusOrderNotFound.
func (b *OrderBook) Cancel(id OrderID) Status {
	order := b.pool.Find(id)
	if order == nil {
		return StatusOrderNotFound
	}

	if order.IsStop() && order.state == StatePendingNew {
		delete(b.stopOrders, id)
	} else {
		b.removeFromBook(order)
	}

	order.Cancel()
	b.ctx.notifyOrderEvent(id, EventCancelled, order.filledQuantity, 0)
	b.pool.Destroy(order)

	b.afterMutation()
	return StatusOK
}

// Modify strictly reduces an order's total quantity, keeping time priority.
// The new total must sit strictly between the filled amount and the current
// total.
func (b *OrderBook) Modify(id OrderID, newQuantity Quantity) Status {
	order := b.pool.Find(id)
	if order == nil {
		return StatusOrderNotFound
	}

	if newQuantity >= order.totalQuantity || newQuantity <= order.filledQuantity {
		return StatusInvalidQuantity
	}

	if order.IsActive() || order.IsPartiallyFilled() {
		level := b.getLevel(order.side, order.price)
		if level != nil {
			oldRemaining := order.RemainingQuantity()
			oldVisible := order.VisibleQuantity()
			order.ReduceQuantity(newQuantity)
			level.UpdateAfterFill(order, oldRemaining, oldVisible)
			return StatusOK
		}
	}

	order.ReduceQuantity(newQuantity)
	return StatusOK
}

// Replace cancels the old order and submits a fresh GTC limit on the same
// side at the new price and quantity. Time priority is lost. The side is
// captured before cancellation destroys the original.
func (b *OrderBook) Replace(oldID, newID OrderID, newPrice Price, newQuantity Quantity) Status {
	order := b.pool.Find(oldID)
	if order == nil {
		return StatusOrderNotFound
	}
	side := order.side

	if status := b.Cancel(oldID); status != StatusOK {
		return status
	}

	return b.AddLimit(newID, side, newPrice, newQuantity)
}

/* ---------------------------------------------------------------------------
 * Stops and expiry
 * ------------------------------------------------------------------------ */

func (b *OrderBook) shouldTriggerStop(order *Order) bool {
	if !order.IsStop() {
		return false
	}
	if order.IsBuy() {
		return b.bestAsk > 0 && b.bestAsk >= order.stopPrice
	}
	return b.bestBid > 0 && b.bestBid <= order.stopPrice
}

// ProcessStops fires every pending stop whose trigger condition holds
// against the current best prices, re-running the submission path for each.
// Trigger cascades are followed until a pass fires nothing, bounded by
// stopSweepLimit passes. Returns the number of stops triggered.
func (b *OrderBook) ProcessStops() uint32 {
	var triggered uint32

	for pass := 0; pass < stopSweepLimit; pass++ {
		ids := make([]OrderID, 0, len(b.stopOrders))
		for id, order := range b.stopOrders {
			if b.shouldTriggerStop(order) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			break
		}
		slices.Sort(ids)

		for _, id := range ids {
			order, ok := b.stopOrders[id]
			if !ok {
				continue
			}
			delete(b.stopOrders, id)

			order.TriggerStop()
			b.ctx.notifyOrderEvent(id, EventTriggered, 0, order.RemainingQuantity())

			b.processNewOrder(order)
			triggered++
		}
	}

	return triggered
}

// afterMutation runs the stop sweep when the context asks for it. The
// sweep resubmits triggered orders through processNewOrder, which does not
// call back here; the guard stops a second sweep from starting while one
// is running.
func (b *OrderBook) afterMutation() {
	if !b.ctx.Config().AutoProcessStops || b.sweeping {
		return
	}
	b.sweeping = true
	b.ProcessStops()
	b.sweeping = false
}

// ProcessExpirations expires every live order whose expiry has passed,
// removing it from the book or the stop table. Returns the count expired.
// The caller supplies the clock so DAY orders expire at whatever boundary
// it defines.
func (b *OrderBook) ProcessExpirations(now Timestamp) uint32 {
	if !b.ctx.Config().EnableTimeExpiry {
		return 0
	}

	var expired []OrderID
	b.pool.Each(func(order *Order) {
		if order.IsExpired(now) {
			expired = append(expired, order.id)
		}
	})
	slices.Sort(expired)

	for _, id := range expired {
		order := b.pool.Find(id)
		if order == nil {
			continue
		}
		if order.IsStop() && order.state == StatePendingNew {
			delete(b.stopOrders, id)
		} else {
			b.removeFromBook(order)
		}
		order.Expire()
		b.ctx.notifyOrderEvent(id, EventExpired, order.filledQuantity, 0)
		b.pool.Destroy(order)
	}

	if len(expired) > 0 {
		b.afterMutation()
	}
	return uint32(len(expired))
}

/* ---------------------------------------------------------------------------
 * Policy checks
 * ------------------------------------------------------------------------ */

func (b *OrderBook) wouldMatchImmediately(order *Order) bool {
	if order.IsBuy() {
		return b.bestAsk > 0 && order.price >= b.bestAsk
	}
	return b.bestBid > 0 && order.price <= b.bestBid
}

// canFillCompletely walks the opposite side in frontier order, summing the
// total volume of price-acceptable levels (hidden quantity counts), and
// reports whether the order's full remainder is available.
func (b *OrderBook) canFillCompletely(order *Order) bool {
	levels := b.asks
	if order.IsSell() {
		levels = b.bids
	}

	need := uint64(order.RemainingQuantity())
	var available uint64
	ok := false

	levels.Scan(func(level *PriceLevel) bool {
		if order.IsLimit() {
			if order.IsBuy() && order.price < level.price {
				return false
			}
			if order.IsSell() && order.price > level.price {
				return false
			}
		}
		available += uint64(level.totalVolume)
		if available >= need {
			ok = true
			return false
		}
		return true
	})

	return ok
}

/* ---------------------------------------------------------------------------
 * Queries
 * ------------------------------------------------------------------------ */

func (b *OrderBook) HasOrder(id OrderID) bool { return b.pool.Has(id) }

func (b *OrderBook) OrderInfo(id OrderID) (OrderInfo, Status) {
	order := b.pool.Find(id)
	if order == nil {
		return OrderInfo{}, StatusOrderNotFound
	}
	return order.Info(), StatusOK
}

func (b *OrderBook) BestBid() Price { return b.bestBid }
func (b *OrderBook) BestAsk() Price { return b.bestAsk }

// Spread is ask minus bid, or 0 when either side is empty.
func (b *OrderBook) Spread() Price {
	if b.bestBid > 0 && b.bestAsk > 0 {
		return b.bestAsk - b.bestBid
	}
	return 0
}

// Mid is the midpoint of the best prices, or 0 when either side is empty.
func (b *OrderBook) Mid() Price {
	if b.bestBid > 0 && b.bestAsk > 0 {
		return (b.bestBid + b.bestAsk) / 2
	}
	return 0
}

func (b *OrderBook) VolumeAtPrice(side Side, price Price) Quantity {
	if level := b.getLevel(side, price); level != nil {
		return level.totalVolume
	}
	return 0
}

// Depth sums total volume over the first n levels on a side in frontier
// order.
func (b *OrderBook) Depth(side Side, n int) uint64 {
	var total uint64
	count := 0
	b.sideLevels(side).Scan(func(level *PriceLevel) bool {
		if count >= n {
			return false
		}
		total += uint64(level.totalVolume)
		count++
		return true
	})
	return total
}

func (b *OrderBook) Stats() BookStats {
	stats := BookStats{
		TotalOrders:        uint32(b.pool.Len()),
		BidLevels:          uint32(b.bids.Len()),
		AskLevels:          uint32(b.asks.Len()),
		BestBid:            b.bestBid,
		BestAsk:            b.bestAsk,
		TotalTrades:        b.totalTrades,
		TotalMatchedVolume: b.totalVolume,
	}
	b.bids.Scan(func(level *PriceLevel) bool {
		stats.TotalBidVolume += uint64(level.totalVolume)
		return true
	})
	b.asks.Scan(func(level *PriceLevel) bool {
		stats.TotalAskVolume += uint64(level.totalVolume)
		return true
	})
	return stats
}

/* ---------------------------------------------------------------------------
 * Administrative
 * ------------------------------------------------------------------------ */

// Clear drops every resting and pending order without notifications and
// resets the best caches. Trade counters survive.
func (b *OrderBook) Clear() {
	b.bids = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.price > c.price })
	b.asks = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.price < c.price })
	b.stopOrders = make(map[OrderID]*Order)
	b.pool.Clear()
	b.bestBid = 0
	b.bestAsk = 0
}
