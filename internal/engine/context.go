package engine

import (
	"math"
	"time"

	. "kestrel/internal/common"
)

// TradeCallback receives one call per execution. The buy/sell ids identify
// the two sides of the fill; which of them was the aggressor is the side of
// the incoming order that produced the trade.
type TradeCallback func(opaque any, buyID, sellID OrderID, price Price, quantity Quantity, ts Timestamp)

// OrderEventCallback receives order lifecycle notifications.
type OrderEventCallback func(opaque any, id OrderID, event OrderEvent, filled, remaining Quantity)

// Config carries per-context engine settings. A zero MaxPrice disables the
// upper price bound; a zero MaxOrders leaves the pool unbounded.
type Config struct {
	MinPrice Price
	MaxPrice Price
	TickSize Price

	ExpectedMaxOrders   uint32
	ExpectedPriceLevels uint32
	MaxOrders           uint32

	EnableStopOrders    bool
	EnableIcebergOrders bool
	EnableTimeExpiry    bool

	// AutoProcessStops makes every mutation that can move the top of book
	// run the stop sweep before returning. When false the embedder calls
	// ProcessStops itself.
	AutoProcessStops bool
}

func DefaultConfig() Config {
	return Config{
		MinPrice:            0,
		MaxPrice:            math.MaxUint32,
		TickSize:            1,
		ExpectedMaxOrders:   10000,
		ExpectedPriceLevels: 1000,
		EnableStopOrders:    true,
		EnableIcebergOrders: true,
		EnableTimeExpiry:    true,
	}
}

// Context holds the callback sinks, configuration and clock shared by the
// books it creates. There is no process-wide state: everything an engine
// needs travels with its context. One context outlives any number of books.
//
// Callbacks run synchronously on the thread driving the book and must not
// reenter the same book.
type Context struct {
	tradeCB TradeCallback
	orderCB OrderEventCallback
	opaque  any

	config Config

	timestamp     Timestamp
	useSystemTime bool
	clockBase     time.Time
}

func NewContext(config Config) *Context {
	return &Context{
		config:        config,
		useSystemTime: true,
		clockBase:     time.Now(),
	}
}

func (c *Context) Config() Config { return c.config }

func (c *Context) SetCallbacks(trade TradeCallback, order OrderEventCallback, opaque any) {
	c.tradeCB = trade
	c.orderCB = order
	c.opaque = opaque
}

func (c *Context) SetPriceBounds(minPrice, maxPrice, tickSize Price) {
	c.config.MinPrice = minPrice
	c.config.MaxPrice = maxPrice
	c.config.TickSize = tickSize
}

func (c *Context) SetCapacityHints(maxOrders, priceLevels uint32) {
	c.config.ExpectedMaxOrders = maxOrders
	c.config.ExpectedPriceLevels = priceLevels
}

// SetTimestamp switches the context to manual time. Every subsequent
// Timestamp call returns the supplied value until it is set again or
// UseSystemTime re-enables the monotonic clock.
func (c *Context) SetTimestamp(ts Timestamp) {
	c.timestamp = ts
	c.useSystemTime = false
}

func (c *Context) UseSystemTime(enable bool) {
	c.useSystemTime = enable
}

// Timestamp returns manual time when set, otherwise nanoseconds from the
// monotonic clock. Values are non-decreasing within one thread of
// submission.
func (c *Context) Timestamp() Timestamp {
	if c.useSystemTime {
		return Timestamp(time.Since(c.clockBase))
	}
	return c.timestamp
}

func (c *Context) notifyTrade(buyID, sellID OrderID, price Price, quantity Quantity, ts Timestamp) {
	if c.tradeCB != nil {
		c.tradeCB(c.opaque, buyID, sellID, price, quantity, ts)
	}
}

func (c *Context) notifyOrderEvent(id OrderID, event OrderEvent, filled, remaining Quantity) {
	if c.orderCB != nil {
		c.orderCB(c.opaque, id, event, filled, remaining)
	}
}
