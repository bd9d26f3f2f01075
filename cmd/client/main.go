package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"kestrel/internal/common"
	kestrelNet "kestrel/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange gateway")
	symbol := flag.String("symbol", "AAPL", "Symbol (max 8 chars)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'replace']")

	// Order parameters.
	idStr := flag.Uint64("id", 0, "Order id (compulsory)")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'stop' or 'stop-limit'")
	price := flag.Uint("price", 0, "Limit price in ticks")
	stopPrice := flag.Uint("stop", 0, "Stop trigger price in ticks")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	display := flag.Uint("display", 0, "Display quantity for iceberg orders")
	tifStr := flag.String("tif", "gtc", "Time in force: 'gtc', 'ioc', 'fok', 'day' or 'gtd'")
	expire := flag.Uint64("expire", 0, "Expiry timestamp (ns) for gtd/day orders")
	postOnly := flag.Bool("post-only", false, "Reject instead of matching immediately")
	aon := flag.Bool("aon", false, "All-or-none")

	// Replace parameters.
	newID := flag.Uint64("new-id", 0, "Replacement order id")

	flag.Parse()

	if *idStr == 0 {
		fmt.Println("Error: -id is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	go readReports(conn)

	side := common.SideBuy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.SideSell
	}

	orderType := parseOrderType(*typeStr)
	tif := parseTIF(*tifStr)

	var flags common.OrderFlags
	if *postOnly {
		flags |= common.FlagPostOnly
	}
	if *aon {
		flags |= common.FlagAON
	}
	if *display > 0 {
		flags |= common.FlagHidden
	}

	var seq uint64
	switch strings.ToLower(*action) {
	case "place":
		quantities := parseQuantities(*qtyStr)
		id := *idStr
		for _, q := range quantities {
			seq++
			msg := kestrelNet.NewOrderMessage{
				Symbol:      *symbol,
				OrderID:     id,
				Price:       uint32(*price),
				StopPrice:   uint32(*stopPrice),
				Quantity:    q,
				DisplayQty:  uint32(*display),
				ExpireTime:  *expire,
				OrderType:   orderType,
				Side:        side,
				TimeInForce: tif,
				Flags:       flags,
			}
			if _, err := conn.Write(msg.Encode(seq)); err != nil {
				log.Printf("Failed to place order %d: %v", id, err)
			} else {
				fmt.Printf("-> Sent %s %s: id=%d qty=%d @ %d\n",
					strings.ToUpper(*sideStr), *typeStr, id, q, *price)
			}
			id++
		}

	case "cancel":
		seq++
		msg := kestrelNet.CancelOrderMessage{Symbol: *symbol, OrderID: *idStr}
		if _, err := conn.Write(msg.Encode(seq)); err != nil {
			log.Printf("Failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> Sent cancel for id=%d\n", *idStr)
		}

	case "replace":
		if *newID == 0 {
			log.Fatal("Error: -new-id is required for replace")
		}
		quantities := parseQuantities(*qtyStr)
		seq++
		msg := kestrelNet.ReplaceOrderMessage{
			Symbol:   *symbol,
			OldID:    *idStr,
			NewID:    *newID,
			Price:    uint32(*price),
			Quantity: quantities[0],
		}
		if _, err := conn.Write(msg.Encode(seq)); err != nil {
			log.Printf("Failed to send replace: %v", err)
		} else {
			fmt.Printf("-> Sent replace %d -> %d qty=%d @ %d\n", *idStr, *newID, quantities[0], *price)
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseOrderType(s string) common.OrderType {
	switch strings.ToLower(s) {
	case "market":
		return common.OrderTypeMarket
	case "stop":
		return common.OrderTypeStop
	case "stop-limit":
		return common.OrderTypeStopLimit
	default:
		return common.OrderTypeLimit
	}
}

func parseTIF(s string) common.TimeInForce {
	switch strings.ToLower(s) {
	case "ioc":
		return common.TIFIOC
	case "fok":
		return common.TIFFOK
	case "day":
		return common.TIFDay
	case "gtd":
		return common.TIFGTD
	default:
		return common.TIFGTC
	}
}

// parseQuantities splits a comma-separated string into quantities.
func parseQuantities(input string) []uint32 {
	parts := strings.Split(input, ",")
	var result []uint32
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 32); err == nil {
			result = append(result, uint32(val))
		} else {
			log.Printf("Warning: invalid quantity %q, skipping.", p)
		}
	}
	if len(result) == 0 {
		result = append(result, 1)
	}
	return result
}

// readReports continuously reads and prints frames from the gateway.
func readReports(conn net.Conn) {
	for {
		header, payload, err := kestrelNet.ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}

		msg, err := kestrelNet.DecodeMessage(header, payload)
		if err != nil {
			log.Printf("Error decoding frame: %v", err)
			continue
		}

		switch m := msg.(type) {
		case kestrelNet.AckMessage:
			if m.Status == common.StatusOK {
				fmt.Printf("\n[ACK] %s id=%d\n", m.Symbol, m.OrderID)
			} else {
				fmt.Printf("\n[REJECT] %s id=%d: %s\n", m.Symbol, m.OrderID, m.Status)
			}
		case kestrelNet.OrderCancelledMessage:
			fmt.Printf("\n[CANCELLED] %s id=%d filled=%d\n", m.Symbol, m.OrderID, m.Filled)
		case kestrelNet.ExecutionMessage:
			fmt.Printf("\n[%s] %s id=%d filled=%d remaining=%d\n",
				strings.ToUpper(m.Event.String()), m.Symbol, m.OrderID, m.Filled, m.Remaining)
		case kestrelNet.TradeMessage:
			fmt.Printf("\n[TRADE] %s buy=%d sell=%d qty=%d price=%d\n",
				m.Symbol, m.BuyID, m.SellID, m.Quantity, m.Price)
		case kestrelNet.QuoteMessage:
			fmt.Printf("[QUOTE] %s bid=%d ask=%d\n", m.Symbol, m.BestBid, m.BestAsk)
		}
	}
}
