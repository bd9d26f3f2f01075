package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "kestrel/internal/common"
)

type levelFill struct {
	buy, sell OrderID
	price     Price
	qty       Quantity
}

func collectFills(fills *[]levelFill) fillFunc {
	return func(buyID, sellID OrderID, price Price, quantity Quantity, _ Timestamp) {
		*fills = append(*fills, levelFill{buy: buyID, sell: sellID, price: price, qty: quantity})
	}
}

func restingSell(id OrderID, price Price, qty Quantity) *Order {
	return &Order{id: id, side: SideSell, orderType: OrderTypeLimit, state: StateActive, price: price, totalQuantity: qty}
}

func restingIcebergSell(id OrderID, price Price, qty, display Quantity) *Order {
	o := restingSell(id, price, qty)
	o.displayQuantity = display
	o.flags = FlagHidden
	return o
}

func levelSums(l *PriceLevel) (total, visible Quantity) {
	l.Each(func(o *Order) bool {
		total += o.RemainingQuantity()
		visible += o.VisibleQuantity()
		return true
	})
	return total, visible
}

func TestLevel_AddRemoveAggregates(t *testing.T) {
	l := NewPriceLevel(1000)

	a := restingSell(1, 1000, 100)
	b := restingIcebergSell(2, 1000, 300, 50)
	l.Add(a)
	l.Add(b)

	assert.Equal(t, Quantity(400), l.TotalVolume())
	assert.Equal(t, Quantity(150), l.VisibleVolume())
	assert.Equal(t, 2, l.OrderCount())

	total, visible := levelSums(l)
	assert.Equal(t, l.TotalVolume(), total)
	assert.Equal(t, l.VisibleVolume(), visible)

	l.Remove(a)
	assert.Equal(t, Quantity(300), l.TotalVolume())
	assert.Equal(t, Quantity(50), l.VisibleVolume())

	l.Remove(b)
	assert.True(t, l.Empty())
	assert.Equal(t, Quantity(0), l.TotalVolume())
	assert.Equal(t, Quantity(0), l.VisibleVolume())
}

func TestLevel_AddWrongPricePanics(t *testing.T) {
	l := NewPriceLevel(1000)
	assert.Panics(t, func() { l.Add(restingSell(1, 999, 10)) })
}

func TestLevel_MatchHeadFirst(t *testing.T) {
	l := NewPriceLevel(1000)
	l.Add(restingSell(1, 1000, 50))
	l.Add(restingSell(2, 1000, 50))

	agg := &Order{id: 9, side: SideBuy, orderType: OrderTypeLimit, price: 1000, totalQuantity: 70}

	var fills []levelFill
	matched := l.Match(agg, agg.RemainingQuantity(), collectFills(&fills), 5)

	assert.Equal(t, Quantity(70), matched)
	assert.Equal(t, []levelFill{
		{buy: 9, sell: 1, price: 1000, qty: 50},
		{buy: 9, sell: 2, price: 1000, qty: 20},
	}, fills)

	// Head was consumed and unlinked; the partial stays at the front.
	require.Equal(t, 1, l.OrderCount())
	assert.Equal(t, OrderID(2), l.Front().ID())
	assert.Equal(t, Quantity(30), l.TotalVolume())

	total, visible := levelSums(l)
	assert.Equal(t, l.TotalVolume(), total)
	assert.Equal(t, l.VisibleVolume(), visible)
}

func TestLevel_MatchSellAggressorResolvesSides(t *testing.T) {
	l := NewPriceLevel(1000)
	buy := &Order{id: 3, side: SideBuy, orderType: OrderTypeLimit, state: StateActive, price: 1000, totalQuantity: 40}
	l.Add(buy)

	agg := &Order{id: 8, side: SideSell, orderType: OrderTypeLimit, price: 1000, totalQuantity: 40}

	var fills []levelFill
	l.Match(agg, agg.RemainingQuantity(), collectFills(&fills), 5)

	assert.Equal(t, []levelFill{{buy: 3, sell: 8, price: 1000, qty: 40}}, fills)
}

func TestLevel_IcebergRefreshRotatesToTail(t *testing.T) {
	l := NewPriceLevel(1000)
	ice := restingIcebergSell(1, 1000, 500, 100)
	other := restingSell(2, 1000, 80)
	l.Add(ice)
	l.Add(other)

	assert.Equal(t, Quantity(180), l.VisibleVolume())

	agg := &Order{id: 9, side: SideBuy, orderType: OrderTypeLimit, price: 1000, totalQuantity: 100}
	var fills []levelFill
	l.Match(agg, agg.RemainingQuantity(), collectFills(&fills), 5)

	// The iceberg's slice depleted: it moves behind the other order and the
	// fresh slice is re-added to the visible volume.
	assert.Equal(t, []levelFill{{buy: 9, sell: 1, price: 1000, qty: 100}}, fills)
	assert.Equal(t, OrderID(2), l.Front().ID())
	assert.Equal(t, Quantity(480), l.TotalVolume())
	assert.Equal(t, Quantity(180), l.VisibleVolume())

	total, visible := levelSums(l)
	assert.Equal(t, l.TotalVolume(), total)
	assert.Equal(t, l.VisibleVolume(), visible)

	// The next aggressor hits the order that was resting behind.
	agg2 := &Order{id: 10, side: SideBuy, orderType: OrderTypeLimit, price: 1000, totalQuantity: 80}
	fills = nil
	l.Match(agg2, agg2.RemainingQuantity(), collectFills(&fills), 6)
	assert.Equal(t, []levelFill{{buy: 10, sell: 2, price: 1000, qty: 80}}, fills)
	assert.Equal(t, OrderID(1), l.Front().ID())
}

func TestLevel_UpdateAfterFillReducedOrder(t *testing.T) {
	l := NewPriceLevel(1000)
	a := restingSell(1, 1000, 100)
	b := restingSell(2, 1000, 50)
	l.Add(a)
	l.Add(b)

	oldRemaining := a.RemainingQuantity()
	oldVisible := a.VisibleQuantity()
	require.True(t, a.ReduceQuantity(60))
	l.UpdateAfterFill(a, oldRemaining, oldVisible)

	assert.Equal(t, Quantity(110), l.TotalVolume())
	// A reduction never grows the visible slice, so time priority holds.
	assert.Equal(t, OrderID(1), l.Front().ID())
}

func TestLevel_FillsCompletely(t *testing.T) {
	l := NewPriceLevel(1000)
	l.Add(restingSell(1, 1000, 40))
	l.Add(restingIcebergSell(2, 1000, 200, 10))

	// Hidden quantity counts toward the total.
	assert.True(t, l.FillsCompletely(240))
	assert.False(t, l.FillsCompletely(241))
}
