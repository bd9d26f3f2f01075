package engine

import (
	. "kestrel/internal/common"
)

// poolBlockSize orders are allocated at a time. Blocks are never freed or
// moved, so order pointers stay stable for the life of the pool.
const poolBlockSize = 256

// orderPool owns every Order a book creates. It hands out records from a
// free list backed by chunked arenas and keeps an OrderID index for O(1)
// lookup. An order's identity is stable from create until destroy.
type orderPool struct {
	blocks [][]Order
	free   []*Order
	index  map[OrderID]*Order
	limit  int // hard cap on live orders; 0 means unbounded
}

func newOrderPool(capacityHint uint32, limit uint32) *orderPool {
	hint := int(capacityHint)
	if hint <= 0 {
		hint = poolBlockSize
	}
	return &orderPool{
		index: make(map[OrderID]*Order, hint),
		limit: int(limit),
	}
}

func (p *orderPool) grow() bool {
	if p.limit > 0 && len(p.index) >= p.limit {
		return false
	}
	block := make([]Order, poolBlockSize)
	p.blocks = append(p.blocks, block)
	for i := range block {
		p.free = append(p.free, &block[i])
	}
	return true
}

// Create initialises a new order. It fails with StatusDuplicateOrder if the
// id is already live and StatusOutOfMemory if the pool cannot admit another
// order. No side effects on failure.
func (p *orderPool) Create(id OrderID, orderType OrderType, side Side,
	price, stopPrice Price, quantity, displayQty Quantity,
	tif TimeInForce, flags OrderFlags, created, expire Timestamp) (*Order, Status) {

	if _, dup := p.index[id]; dup {
		return nil, StatusDuplicateOrder
	}
	if p.limit > 0 && len(p.index) >= p.limit {
		return nil, StatusOutOfMemory
	}
	if len(p.free) == 0 && !p.grow() {
		return nil, StatusOutOfMemory
	}

	o := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	*o = Order{
		id:              id,
		side:            side,
		orderType:       orderType,
		state:           StatePendingNew,
		tif:             tif,
		flags:           flags,
		price:           price,
		stopPrice:       stopPrice,
		totalQuantity:   quantity,
		displayQuantity: displayQty,
		createdTime:     created,
		expireTime:      expire,
	}

	p.index[id] = o
	return o, StatusOK
}

// Destroy unindexes the order and returns its storage to the free list. The
// order must not be linked in any queue.
func (p *orderPool) Destroy(o *Order) {
	if o == nil {
		return
	}
	if o.linked {
		panic("engine: destroying linked order")
	}
	delete(p.index, o.id)
	*o = Order{}
	p.free = append(p.free, o)
}

func (p *orderPool) Find(id OrderID) *Order {
	return p.index[id]
}

func (p *orderPool) Has(id OrderID) bool {
	_, ok := p.index[id]
	return ok
}

func (p *orderPool) Len() int { return len(p.index) }

// Each visits every live order. The callback must not create or destroy
// orders; collect ids first if it needs to.
func (p *orderPool) Each(fn func(o *Order)) {
	for _, o := range p.index {
		fn(o)
	}
}

// Clear destroys every live order still in the pool.
func (p *orderPool) Clear() {
	for id, o := range p.index {
		o.prev = nil
		o.next = nil
		o.linked = false
		delete(p.index, id)
		*o = Order{}
		p.free = append(p.free, o)
	}
}
