package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "kestrel/internal/common"
)

func TestContext_ManualClock(t *testing.T) {
	ctx := NewContext(DefaultConfig())

	ctx.SetTimestamp(42)
	assert.Equal(t, Timestamp(42), ctx.Timestamp())
	assert.Equal(t, Timestamp(42), ctx.Timestamp(), "manual time holds until set again")

	ctx.SetTimestamp(43)
	assert.Equal(t, Timestamp(43), ctx.Timestamp())
}

func TestContext_SystemClockMonotonic(t *testing.T) {
	ctx := NewContext(DefaultConfig())

	a := ctx.Timestamp()
	b := ctx.Timestamp()
	assert.GreaterOrEqual(t, b, a)
}

func TestContext_SwitchBackToSystemTime(t *testing.T) {
	ctx := NewContext(DefaultConfig())

	ctx.SetTimestamp(7)
	require.Equal(t, Timestamp(7), ctx.Timestamp())

	ctx.UseSystemTime(true)
	assert.NotEqual(t, Timestamp(7), ctx.Timestamp())
}

func TestContext_NilCallbacksAreSafe(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	ctx.SetTimestamp(1)
	b := NewOrderBook(ctx, "TEST")

	// A full cross with no callbacks registered must not panic.
	require.Equal(t, StatusOK, b.AddLimit(1, SideSell, 100, 10))
	require.Equal(t, StatusOK, b.AddLimit(2, SideBuy, 100, 10))
	assert.Equal(t, uint32(0), b.Stats().TotalOrders)
}

func TestContext_OpaquePayload(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	ctx.SetTimestamp(1)

	type sink struct{ trades int }
	payload := &sink{}
	ctx.SetCallbacks(
		func(opaque any, _, _ OrderID, _ Price, _ Quantity, _ Timestamp) {
			opaque.(*sink).trades++
		},
		nil, payload)

	b := NewOrderBook(ctx, "TEST")
	require.Equal(t, StatusOK, b.AddLimit(1, SideSell, 100, 10))
	require.Equal(t, StatusOK, b.AddLimit(2, SideBuy, 100, 10))
	assert.Equal(t, 1, payload.trades)
}

func TestContext_SharedAcrossBooks(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	ctx.SetTimestamp(1)

	a := NewOrderBook(ctx, "AAA")
	b := NewOrderBook(ctx, "BBB")

	require.Equal(t, StatusOK, a.AddLimit(1, SideBuy, 100, 10))
	require.Equal(t, StatusOK, b.AddLimit(1, SideBuy, 200, 10))

	// Books are independent; ids only need to be unique per book.
	assert.Equal(t, Price(100), a.BestBid())
	assert.Equal(t, Price(200), b.BestBid())
}
