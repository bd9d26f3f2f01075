package kestrel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel"
)

type capture struct {
	trades []kestrel.Trade
	events []struct {
		id    kestrel.OrderID
		event kestrel.OrderEvent
	}
}

func newHandles(t *testing.T) (*kestrel.Context, *kestrel.OrderBook, *capture) {
	t.Helper()

	ctx := kestrel.NewContext(kestrel.DefaultConfig())
	ctx.SetTimestamp(1)

	rec := &capture{}
	ctx.SetCallbacks(
		func(_ any, buyID, sellID kestrel.OrderID, price kestrel.Price, qty kestrel.Quantity, ts kestrel.Timestamp) {
			rec.trades = append(rec.trades, kestrel.Trade{
				BuyOrderID:  buyID,
				SellOrderID: sellID,
				Price:       price,
				Quantity:    qty,
				Timestamp:   ts,
			})
		},
		func(_ any, id kestrel.OrderID, event kestrel.OrderEvent, _, _ kestrel.Quantity) {
			rec.events = append(rec.events, struct {
				id    kestrel.OrderID
				event kestrel.OrderEvent
			}{id, event})
		},
		nil)

	book, err := kestrel.NewOrderBook(ctx, "AAPL")
	require.NoError(t, err)
	return ctx, book, rec
}

func TestPublicSurface_SimpleCross(t *testing.T) {
	ctx, book, rec := newHandles(t)
	defer ctx.Close()
	defer book.Close()

	assert.Equal(t, "AAPL", book.Symbol())

	require.Equal(t, kestrel.StatusOK, book.AddLimit(1, kestrel.Sell, 15000, 100))
	require.Equal(t, kestrel.StatusOK, book.AddLimit(2, kestrel.Buy, 15000, 100))

	require.Len(t, rec.trades, 1)
	assert.Equal(t, kestrel.OrderID(2), rec.trades[0].BuyOrderID)
	assert.Equal(t, kestrel.OrderID(1), rec.trades[0].SellOrderID)
	assert.Equal(t, kestrel.Price(15000), rec.trades[0].Price)
	assert.Equal(t, kestrel.Quantity(100), rec.trades[0].Quantity)

	assert.Equal(t, kestrel.Price(0), book.BestBid())
	assert.Equal(t, kestrel.Price(0), book.BestAsk())
}

func TestPublicSurface_FullOrderAndQueries(t *testing.T) {
	ctx, book, rec := newHandles(t)
	defer ctx.Close()
	defer book.Close()

	require.Equal(t, kestrel.StatusOK,
		book.AddOrder(1, kestrel.Limit, kestrel.Sell, 10100, 0, 500, 100,
			kestrel.GTC, kestrel.FlagHidden, 0))
	require.Equal(t, kestrel.StatusOK, book.AddLimit(2, kestrel.Buy, 9900, 50))

	assert.Equal(t, kestrel.Price(9900), book.BestBid())
	assert.Equal(t, kestrel.Price(10100), book.BestAsk())
	assert.Equal(t, kestrel.Price(200), book.Spread())
	assert.Equal(t, kestrel.Price(10000), book.Mid())
	assert.Equal(t, kestrel.Quantity(500), book.VolumeAtPrice(kestrel.Sell, 10100))
	assert.Equal(t, uint64(500), book.Depth(kestrel.Sell, 5))

	assert.True(t, book.HasOrder(1))
	info, status := book.OrderInfo(1)
	require.Equal(t, kestrel.StatusOK, status)
	assert.Equal(t, kestrel.Sell, info.Side)
	assert.Equal(t, kestrel.Quantity(500), info.RemainingQuantity)

	stats := book.Stats()
	assert.Equal(t, uint32(2), stats.TotalOrders)
	assert.Equal(t, kestrel.Price(9900), stats.BestBid)

	require.Equal(t, kestrel.StatusOK, book.Cancel(2))
	assert.Equal(t, kestrel.StatusOrderNotFound, book.Cancel(2))

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, kestrel.EventCancelled, last.event)
}

func TestPublicSurface_StatusValues(t *testing.T) {
	// The numeric values are part of the contract.
	assert.EqualValues(t, 0, kestrel.StatusOK)
	assert.EqualValues(t, -1, kestrel.StatusError)
	assert.EqualValues(t, -2, kestrel.StatusInvalidParam)
	assert.EqualValues(t, -3, kestrel.StatusOutOfMemory)
	assert.EqualValues(t, -4, kestrel.StatusOrderNotFound)
	assert.EqualValues(t, -5, kestrel.StatusInvalidPrice)
	assert.EqualValues(t, -6, kestrel.StatusInvalidQuantity)
	assert.EqualValues(t, -7, kestrel.StatusDuplicateOrder)
	assert.EqualValues(t, -8, kestrel.StatusWouldMatch)
	assert.EqualValues(t, -9, kestrel.StatusCannotFill)
	assert.EqualValues(t, -10, kestrel.StatusStopNotTriggered)

	assert.EqualValues(t, 0, kestrel.Buy)
	assert.EqualValues(t, 1, kestrel.Sell)
	assert.EqualValues(t, 0, kestrel.Limit)
	assert.EqualValues(t, 1, kestrel.Market)
	assert.EqualValues(t, 2, kestrel.Stop)
	assert.EqualValues(t, 3, kestrel.StopLimit)
	assert.EqualValues(t, 0, kestrel.GTC)
	assert.EqualValues(t, 1, kestrel.IOC)
	assert.EqualValues(t, 2, kestrel.FOK)
	assert.EqualValues(t, 3, kestrel.Day)
	assert.EqualValues(t, 4, kestrel.GTD)
	assert.EqualValues(t, 1, kestrel.FlagPostOnly)
	assert.EqualValues(t, 2, kestrel.FlagHidden)
	assert.EqualValues(t, 4, kestrel.FlagAON)
	assert.EqualValues(t, 8, kestrel.FlagReduceOnly)

	assert.EqualValues(t, 0, kestrel.EventAccepted)
	assert.EqualValues(t, 1, kestrel.EventRejected)
	assert.EqualValues(t, 2, kestrel.EventFilled)
	assert.EqualValues(t, 3, kestrel.EventPartial)
	assert.EqualValues(t, 4, kestrel.EventCancelled)
	assert.EqualValues(t, 5, kestrel.EventExpired)
	assert.EqualValues(t, 6, kestrel.EventTriggered)
}

func TestPublicSurface_HandleRules(t *testing.T) {
	_, err := kestrel.NewOrderBook(nil, "AAPL")
	assert.ErrorIs(t, err, kestrel.ErrClosed)

	ctx := kestrel.NewContext(kestrel.DefaultConfig())
	_, err = kestrel.NewOrderBook(ctx, "")
	assert.Error(t, err)

	ctx.Close()
	_, err = kestrel.NewOrderBook(ctx, "AAPL")
	assert.ErrorIs(t, err, kestrel.ErrClosed)
}
