package common

import "fmt"

// Trade records one execution between a buy and a sell order. The execution
// price is the passive order's limit price.
type Trade struct {
	BuyOrderID  OrderID
	SellOrderID OrderID
	Price       Price
	Quantity    Quantity
	Timestamp   Timestamp
}

func (t Trade) String() string {
	return fmt.Sprintf("trade buy=%d sell=%d price=%d qty=%d ts=%d",
		t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity, t.Timestamp)
}
