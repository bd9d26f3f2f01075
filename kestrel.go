// Package kestrel is the public surface of the matching engine. Callers
// hold opaque Context and OrderBook handles; only operations, status codes
// and enums cross the boundary, and every handle is confined to a single
// goroutine. Callbacks run synchronously inside the submitting call and
// must not reenter the same book.
package kestrel

import (
	"errors"

	"kestrel/internal/common"
	"kestrel/internal/engine"
)

// Scalar and record types.
type (
	Price     = common.Price
	Quantity  = common.Quantity
	OrderID   = common.OrderID
	Timestamp = common.Timestamp

	Side        = common.Side
	OrderType   = common.OrderType
	TimeInForce = common.TimeInForce
	OrderFlags  = common.OrderFlags
	Status      = common.Status
	OrderEvent  = common.OrderEvent
	OrderState  = common.OrderState

	OrderInfo = common.OrderInfo
	BookStats = common.BookStats
	Trade     = common.Trade

	Config             = engine.Config
	TradeCallback      = engine.TradeCallback
	OrderEventCallback = engine.OrderEventCallback
)

// Contract values; these never change.
const (
	InvalidOrderID = common.InvalidOrderID

	Buy  = common.SideBuy
	Sell = common.SideSell

	Limit     = common.OrderTypeLimit
	Market    = common.OrderTypeMarket
	Stop      = common.OrderTypeStop
	StopLimit = common.OrderTypeStopLimit

	GTC = common.TIFGTC
	IOC = common.TIFIOC
	FOK = common.TIFFOK
	Day = common.TIFDay
	GTD = common.TIFGTD

	FlagNone       = common.FlagNone
	FlagPostOnly   = common.FlagPostOnly
	FlagHidden     = common.FlagHidden
	FlagAON        = common.FlagAON
	FlagReduceOnly = common.FlagReduceOnly

	StatusOK               = common.StatusOK
	StatusError            = common.StatusError
	StatusInvalidParam     = common.StatusInvalidParam
	StatusOutOfMemory      = common.StatusOutOfMemory
	StatusOrderNotFound    = common.StatusOrderNotFound
	StatusInvalidPrice     = common.StatusInvalidPrice
	StatusInvalidQuantity  = common.StatusInvalidQuantity
	StatusDuplicateOrder   = common.StatusDuplicateOrder
	StatusWouldMatch       = common.StatusWouldMatch
	StatusCannotFill       = common.StatusCannotFill
	StatusStopNotTriggered = common.StatusStopNotTriggered

	EventAccepted  = common.EventAccepted
	EventRejected  = common.EventRejected
	EventFilled    = common.EventFilled
	EventPartial   = common.EventPartial
	EventCancelled = common.EventCancelled
	EventExpired   = common.EventExpired
	EventTriggered = common.EventTriggered
)

var ErrClosed = errors.New("kestrel: handle is closed")

// DefaultConfig returns the engine defaults: unbounded prices, stops,
// icebergs and expiry enabled, caller-driven stop sweeps.
func DefaultConfig() Config { return engine.DefaultConfig() }

// Context owns configuration, the clock, and the callback sinks shared by
// the books created from it. A context outlives its books.
type Context struct {
	inner *engine.Context
}

func NewContext(config Config) *Context {
	return &Context{inner: engine.NewContext(config)}
}

// Close releases the context. Using it afterwards is a caller error.
func (c *Context) Close() {
	c.inner = nil
}

func (c *Context) SetCallbacks(trade TradeCallback, order OrderEventCallback, opaque any) {
	c.inner.SetCallbacks(trade, order, opaque)
}

func (c *Context) SetPriceBounds(minPrice, maxPrice, tickSize Price) {
	c.inner.SetPriceBounds(minPrice, maxPrice, tickSize)
}

func (c *Context) SetTimestamp(ts Timestamp) { c.inner.SetTimestamp(ts) }
func (c *Context) Timestamp() Timestamp     { return c.inner.Timestamp() }
func (c *Context) UseSystemTime(on bool)    { c.inner.UseSystemTime(on) }

// OrderBook is the per-symbol engine handle.
type OrderBook struct {
	inner *engine.OrderBook
}

func NewOrderBook(ctx *Context, symbol string) (*OrderBook, error) {
	if ctx == nil || ctx.inner == nil {
		return nil, ErrClosed
	}
	if symbol == "" {
		return nil, errors.New("kestrel: empty symbol")
	}
	return &OrderBook{inner: engine.NewOrderBook(ctx.inner, symbol)}, nil
}

// Close clears the book and releases the handle.
func (b *OrderBook) Close() {
	if b.inner != nil {
		b.inner.Clear()
		b.inner = nil
	}
}

func (b *OrderBook) Symbol() string { return b.inner.Symbol() }

// Clear drops all resting and pending orders without notifications.
func (b *OrderBook) Clear() { b.inner.Clear() }

/* Submission. */

func (b *OrderBook) AddLimit(id OrderID, side Side, price Price, quantity Quantity) Status {
	return b.inner.AddLimit(id, side, price, quantity)
}

func (b *OrderBook) AddMarket(id OrderID, side Side, quantity Quantity) Status {
	return b.inner.AddMarket(id, side, quantity)
}

func (b *OrderBook) AddOrder(id OrderID, orderType OrderType, side Side,
	price, stopPrice Price, quantity, displayQty Quantity,
	tif TimeInForce, flags OrderFlags, expireTime Timestamp) Status {
	return b.inner.AddOrder(id, orderType, side, price, stopPrice,
		quantity, displayQty, tif, flags, expireTime)
}

func (b *OrderBook) Cancel(id OrderID) Status { return b.inner.Cancel(id) }

func (b *OrderBook) Modify(id OrderID, newQuantity Quantity) Status {
	return b.inner.Modify(id, newQuantity)
}

func (b *OrderBook) Replace(oldID, newID OrderID, newPrice Price, newQuantity Quantity) Status {
	return b.inner.Replace(oldID, newID, newPrice, newQuantity)
}

/* Queries. */

func (b *OrderBook) HasOrder(id OrderID) bool { return b.inner.HasOrder(id) }

func (b *OrderBook) OrderInfo(id OrderID) (OrderInfo, Status) {
	return b.inner.OrderInfo(id)
}

func (b *OrderBook) BestBid() Price { return b.inner.BestBid() }
func (b *OrderBook) BestAsk() Price { return b.inner.BestAsk() }
func (b *OrderBook) Spread() Price  { return b.inner.Spread() }
func (b *OrderBook) Mid() Price     { return b.inner.Mid() }

func (b *OrderBook) VolumeAtPrice(side Side, price Price) Quantity {
	return b.inner.VolumeAtPrice(side, price)
}

func (b *OrderBook) Depth(side Side, levels int) uint64 {
	return b.inner.Depth(side, levels)
}

func (b *OrderBook) Stats() BookStats { return b.inner.Stats() }

/* Admin. */

func (b *OrderBook) ProcessExpirations(now Timestamp) uint32 {
	return b.inner.ProcessExpirations(now)
}

func (b *OrderBook) ProcessStops() uint32 { return b.inner.ProcessStops() }
