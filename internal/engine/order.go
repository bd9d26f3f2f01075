package engine

import (
	. "kestrel/internal/common"
)

// Order is a single order record. It carries its own FIFO linkage so a
// price level can queue it without allocating, and it is owned exclusively
// by the book's order pool from creation to terminal state.
type Order struct {
	id OrderID

	side      Side
	orderType OrderType
	state     OrderState
	tif       TimeInForce
	flags     OrderFlags

	price     Price // Limit price; 0 for market orders
	stopPrice Price // Stop trigger price; 0 for non-stop orders

	totalQuantity   Quantity
	filledQuantity  Quantity
	displayQuantity Quantity // 0 means show everything
	visibleFilled   Quantity // Fills consumed from the current visible slice

	createdTime Timestamp
	expireTime  Timestamp // 0 means no expiry

	// Intrusive queue linkage, managed by orderQueue.
	prev   *Order
	next   *Order
	linked bool
}

func (o *Order) ID() OrderID               { return o.id }
func (o *Order) Side() Side                { return o.side }
func (o *Order) Type() OrderType           { return o.orderType }
func (o *Order) State() OrderState         { return o.state }
func (o *Order) TimeInForce() TimeInForce  { return o.tif }
func (o *Order) Flags() OrderFlags         { return o.flags }
func (o *Order) Price() Price              { return o.price }
func (o *Order) StopPrice() Price          { return o.stopPrice }
func (o *Order) TotalQuantity() Quantity   { return o.totalQuantity }
func (o *Order) FilledQuantity() Quantity  { return o.filledQuantity }
func (o *Order) DisplayQuantity() Quantity { return o.displayQuantity }
func (o *Order) CreatedTime() Timestamp    { return o.createdTime }
func (o *Order) ExpireTime() Timestamp     { return o.expireTime }

func (o *Order) RemainingQuantity() Quantity { return o.totalQuantity - o.filledQuantity }

// VisibleQuantity is the slice of the order eligible for display: all of the
// remainder for regular orders, the unfilled part of the display slice for
// icebergs.
func (o *Order) VisibleQuantity() Quantity {
	if o.displayQuantity == 0 {
		return o.RemainingQuantity()
	}
	if o.displayQuantity > o.visibleFilled {
		return o.displayQuantity - o.visibleFilled
	}
	return 0
}

func (o *Order) IsBuy() bool    { return o.side == SideBuy }
func (o *Order) IsSell() bool   { return o.side == SideSell }
func (o *Order) IsLimit() bool  { return o.orderType == OrderTypeLimit }
func (o *Order) IsMarket() bool { return o.orderType == OrderTypeMarket }
func (o *Order) IsStop() bool {
	return o.orderType == OrderTypeStop || o.orderType == OrderTypeStopLimit
}

func (o *Order) IsActive() bool          { return o.state == StateActive }
func (o *Order) IsPartiallyFilled() bool { return o.state == StatePartiallyFilled }
func (o *Order) IsFilled() bool          { return o.state == StateFilled }
func (o *Order) IsResting() bool         { return o.linked }

func (o *Order) IsGTC() bool { return o.tif == TIFGTC }
func (o *Order) IsIOC() bool { return o.tif == TIFIOC }
func (o *Order) IsFOK() bool { return o.tif == TIFFOK }
func (o *Order) IsDay() bool { return o.tif == TIFDay }
func (o *Order) IsGTD() bool { return o.tif == TIFGTD }

func (o *Order) IsPostOnly() bool   { return o.flags.Has(FlagPostOnly) }
func (o *Order) IsHidden() bool     { return o.flags.Has(FlagHidden) }
func (o *Order) IsAON() bool        { return o.flags.Has(FlagAON) }
func (o *Order) IsReduceOnly() bool { return o.flags.Has(FlagReduceOnly) }
func (o *Order) IsIceberg() bool    { return o.displayQuantity > 0 }

func (o *Order) HasExpiry() bool { return o.expireTime > 0 }
func (o *Order) IsExpired(now Timestamp) bool {
	return o.HasExpiry() && now >= o.expireTime
}

// Fill consumes up to quantity from the remainder and returns the amount
// actually filled. For icebergs the visible counter resets when the current
// slice depletes with quantity still remaining, exposing the next slice.
func (o *Order) Fill(quantity Quantity) Quantity {
	canFill := min(quantity, o.RemainingQuantity())
	if canFill == 0 {
		return 0
	}

	o.filledQuantity += canFill

	if o.IsIceberg() {
		o.visibleFilled += canFill
		if o.visibleFilled >= o.displayQuantity && o.RemainingQuantity() > 0 {
			o.visibleFilled = 0
		}
	}

	if o.filledQuantity >= o.totalQuantity {
		o.state = StateFilled
	} else {
		o.state = StatePartiallyFilled
	}

	return canFill
}

// ReduceQuantity shrinks the total quantity. Only reductions are allowed and
// the new total must stay above the filled amount; time priority is kept.
func (o *Order) ReduceQuantity(newQuantity Quantity) bool {
	if newQuantity >= o.totalQuantity {
		return false
	}
	if newQuantity <= o.filledQuantity {
		return false
	}
	o.totalQuantity = newQuantity
	return true
}

func (o *Order) Cancel() { o.state = StateCancelled }
func (o *Order) Reject() { o.state = StateRejected }
func (o *Order) Expire() { o.state = StateExpired }

// TriggerStop converts a stop order into its post-trigger form: stop becomes
// market, stop-limit becomes limit. Idempotent once converted.
func (o *Order) TriggerStop() {
	switch o.orderType {
	case OrderTypeStop:
		o.orderType = OrderTypeMarket
	case OrderTypeStopLimit:
		o.orderType = OrderTypeLimit
	default:
		return
	}
	o.state = StateTriggered
	o.stopPrice = 0
}

// Info returns the query-side view of the order.
func (o *Order) Info() OrderInfo {
	return OrderInfo{
		OrderID:           o.id,
		Side:              o.side,
		Type:              o.orderType,
		State:             o.state,
		Price:             o.price,
		StopPrice:         o.stopPrice,
		TotalQuantity:     o.totalQuantity,
		FilledQuantity:    o.filledQuantity,
		RemainingQuantity: o.RemainingQuantity(),
		DisplayQuantity:   o.displayQuantity,
		TimeInForce:       o.tif,
		Flags:             o.flags,
		CreatedTime:       o.createdTime,
		ExpireTime:        o.expireTime,
	}
}
