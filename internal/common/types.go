package common

// Prices are integer ticks, quantities integer lots. Tick semantics are
// decided by whoever configures the book; the engine only compares and adds.
type (
	Price     = uint32
	Quantity  = uint32
	OrderID   = uint64
	Timestamp = uint64
)

// InvalidOrderID is reserved; no live order may use it.
const InvalidOrderID OrderID = 0

type Side uint8

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType uint8

const (
	OrderTypeLimit     OrderType = 0
	OrderTypeMarket    OrderType = 1
	OrderTypeStop      OrderType = 2
	OrderTypeStopLimit OrderType = 3
)

var orderTypeNames = map[OrderType]string{
	OrderTypeLimit:     "limit",
	OrderTypeMarket:    "market",
	OrderTypeStop:      "stop",
	OrderTypeStopLimit: "stop-limit",
}

func (t OrderType) String() string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

type TimeInForce uint8

const (
	TIFGTC TimeInForce = 0 // Rest until cancelled
	TIFIOC TimeInForce = 1 // Match what is available, cancel the rest
	TIFFOK TimeInForce = 2 // Fill completely now or reject
	TIFDay TimeInForce = 3 // Expires at the day boundary the caller supplies
	TIFGTD TimeInForce = 4 // Expires at a caller-specified timestamp
)

var tifNames = map[TimeInForce]string{
	TIFGTC: "gtc",
	TIFIOC: "ioc",
	TIFFOK: "fok",
	TIFDay: "day",
	TIFGTD: "gtd",
}

func (t TimeInForce) String() string {
	if name, ok := tifNames[t]; ok {
		return name
	}
	return "unknown"
}

// OrderFlags is a bitfield; values are part of the wire contract.
type OrderFlags uint32

const (
	FlagNone       OrderFlags = 0
	FlagPostOnly   OrderFlags = 1
	FlagHidden     OrderFlags = 2
	FlagAON        OrderFlags = 4
	FlagReduceOnly OrderFlags = 8
)

func (f OrderFlags) Has(flag OrderFlags) bool { return f&flag != 0 }

// Status is returned from every fallible engine operation. Values are part
// of the contract and never change.
type Status int32

const (
	StatusOK               Status = 0
	StatusError            Status = -1
	StatusInvalidParam     Status = -2
	StatusOutOfMemory      Status = -3
	StatusOrderNotFound    Status = -4
	StatusInvalidPrice     Status = -5
	StatusInvalidQuantity  Status = -6
	StatusDuplicateOrder   Status = -7
	StatusWouldMatch       Status = -8
	StatusCannotFill       Status = -9
	StatusStopNotTriggered Status = -10
)

var statusNames = map[Status]string{
	StatusOK:               "ok",
	StatusError:            "error",
	StatusInvalidParam:     "invalid parameter",
	StatusOutOfMemory:      "out of memory",
	StatusOrderNotFound:    "order not found",
	StatusInvalidPrice:     "invalid price",
	StatusInvalidQuantity:  "invalid quantity",
	StatusDuplicateOrder:   "duplicate order",
	StatusWouldMatch:       "would match",
	StatusCannotFill:       "cannot fill",
	StatusStopNotTriggered: "stop not triggered",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}

func (s Status) OK() bool { return s == StatusOK }

// OrderEvent identifies a lifecycle notification delivered through the
// order-event callback.
type OrderEvent uint8

const (
	EventAccepted  OrderEvent = 0
	EventRejected  OrderEvent = 1
	EventFilled    OrderEvent = 2
	EventPartial   OrderEvent = 3
	EventCancelled OrderEvent = 4
	EventExpired   OrderEvent = 5
	EventTriggered OrderEvent = 6
)

var eventNames = map[OrderEvent]string{
	EventAccepted:  "accepted",
	EventRejected:  "rejected",
	EventFilled:    "filled",
	EventPartial:   "partial",
	EventCancelled: "cancelled",
	EventExpired:   "expired",
	EventTriggered: "triggered",
}

func (e OrderEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// OrderState tracks where an order is in its lifecycle.
type OrderState uint8

const (
	StatePendingNew      OrderState = 0
	StateActive          OrderState = 1
	StatePartiallyFilled OrderState = 2
	StateFilled          OrderState = 3
	StateCancelled       OrderState = 4
	StateRejected        OrderState = 5
	StateExpired         OrderState = 6
	StateTriggered       OrderState = 7
)

var stateNames = map[OrderState]string{
	StatePendingNew:      "pending-new",
	StateActive:          "active",
	StatePartiallyFilled: "partially-filled",
	StateFilled:          "filled",
	StateCancelled:       "cancelled",
	StateRejected:        "rejected",
	StateExpired:         "expired",
	StateTriggered:       "triggered",
}

func (s OrderState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// OrderInfo is the query-side view of a live order. The engine never hands
// out its internal order records.
type OrderInfo struct {
	OrderID           OrderID
	Side              Side
	Type              OrderType
	State             OrderState
	Price             Price
	StopPrice         Price
	TotalQuantity     Quantity
	FilledQuantity    Quantity
	RemainingQuantity Quantity
	DisplayQuantity   Quantity
	TimeInForce       TimeInForce
	Flags             OrderFlags
	CreatedTime       Timestamp
	ExpireTime        Timestamp
}

// BookStats is a point-in-time summary of one book.
type BookStats struct {
	TotalOrders        uint32
	BidLevels          uint32
	AskLevels          uint32
	TotalBidVolume     uint64
	TotalAskVolume     uint64
	BestBid            Price
	BestAsk            Price
	TotalTrades        uint64
	TotalMatchedVolume uint64
}
