package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	. "kestrel/internal/common"
)

var (
	ErrBadVersion         = errors.New("unsupported protocol version")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrShortFrame         = errors.New("frame shorter than declared length")
	ErrBadLength          = errors.New("bad frame length")
)

// Every frame starts with a 16-byte big-endian header: version, type, a
// reserved pad, the total frame length (header included) and a per-session
// sequence number.
const (
	ProtocolVersion = 1
	HeaderLen       = 16
	MaxFrameLen     = 4 * 1024

	SymbolLen = 8
)

type MessageType uint8

const (
	// Client to engine.
	MsgNewOrder     MessageType = 0x01
	MsgCancelOrder  MessageType = 0x02
	MsgReplaceOrder MessageType = 0x03

	// Engine to client.
	MsgOrderAck       MessageType = 0x10
	MsgOrderReject    MessageType = 0x11
	MsgOrderCancelled MessageType = 0x12
	MsgExecution      MessageType = 0x20
	MsgTrade          MessageType = 0x30
	MsgQuote          MessageType = 0x31
)

type Header struct {
	Version  uint8
	Type     MessageType
	Reserved uint16
	Length   uint32 // Total frame length, header included
	Sequence uint64
}

func putHeader(buf []byte, msgType MessageType, length uint32, seq uint64) {
	buf[0] = ProtocolVersion
	buf[1] = byte(msgType)
	binary.BigEndian.PutUint16(buf[2:4], 0)
	binary.BigEndian.PutUint32(buf[4:8], length)
	binary.BigEndian.PutUint64(buf[8:16], seq)
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShortFrame
	}
	h := Header{
		Version:  buf[0],
		Type:     MessageType(buf[1]),
		Reserved: binary.BigEndian.Uint16(buf[2:4]),
		Length:   binary.BigEndian.Uint32(buf[4:8]),
		Sequence: binary.BigEndian.Uint64(buf[8:16]),
	}
	if h.Version != ProtocolVersion {
		return Header{}, ErrBadVersion
	}
	if h.Length < HeaderLen || h.Length > MaxFrameLen {
		return Header{}, ErrBadLength
	}
	return h, nil
}

// ReadFrame reads one complete frame off the wire: header first, then the
// declared remainder.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	var headerBuf [HeaderLen]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return Header{}, nil, err
	}
	header, err := parseHeader(headerBuf[:])
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, header.Length-HeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("reading payload: %w", err)
	}
	return header, payload, nil
}

func packSymbol(symbol string) [SymbolLen]byte {
	var out [SymbolLen]byte
	copy(out[:], symbol)
	return out
}

func unpackSymbol(buf []byte) string {
	end := 0
	for end < SymbolLen && buf[end] != 0 {
		end++
	}
	return string(buf[:end])
}

type Message interface {
	Type() MessageType
	Encode(seq uint64) []byte
}

/* ---------------------------------------------------------------------------
 * Client to engine
 * ------------------------------------------------------------------------ */

type NewOrderMessage struct {
	Symbol      string
	OrderID     OrderID
	Price       Price
	StopPrice   Price
	Quantity    Quantity
	DisplayQty  Quantity
	ExpireTime  Timestamp
	OrderType   OrderType
	Side        Side
	TimeInForce TimeInForce
	Flags       OrderFlags
}

const newOrderPayloadLen = SymbolLen + 8 + 4 + 4 + 4 + 4 + 8 + 1 + 1 + 1 + 1

func (m NewOrderMessage) Type() MessageType { return MsgNewOrder }

func (m NewOrderMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+newOrderPayloadLen)
	putHeader(buf, MsgNewOrder, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OrderID)
	binary.BigEndian.PutUint32(p[16:20], m.Price)
	binary.BigEndian.PutUint32(p[20:24], m.StopPrice)
	binary.BigEndian.PutUint32(p[24:28], m.Quantity)
	binary.BigEndian.PutUint32(p[28:32], m.DisplayQty)
	binary.BigEndian.PutUint64(p[32:40], m.ExpireTime)
	p[40] = byte(m.OrderType)
	p[41] = byte(m.Side)
	p[42] = byte(m.TimeInForce)
	p[43] = byte(m.Flags)
	return buf
}

func parseNewOrder(p []byte) (NewOrderMessage, error) {
	if len(p) < newOrderPayloadLen {
		return NewOrderMessage{}, ErrShortFrame
	}
	return NewOrderMessage{
		Symbol:      unpackSymbol(p[0:8]),
		OrderID:     binary.BigEndian.Uint64(p[8:16]),
		Price:       binary.BigEndian.Uint32(p[16:20]),
		StopPrice:   binary.BigEndian.Uint32(p[20:24]),
		Quantity:    binary.BigEndian.Uint32(p[24:28]),
		DisplayQty:  binary.BigEndian.Uint32(p[28:32]),
		ExpireTime:  binary.BigEndian.Uint64(p[32:40]),
		OrderType:   OrderType(p[40]),
		Side:        Side(p[41]),
		TimeInForce: TimeInForce(p[42]),
		Flags:       OrderFlags(p[43]),
	}, nil
}

type CancelOrderMessage struct {
	Symbol  string
	OrderID OrderID
}

const cancelPayloadLen = SymbolLen + 8

func (m CancelOrderMessage) Type() MessageType { return MsgCancelOrder }

func (m CancelOrderMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+cancelPayloadLen)
	putHeader(buf, MsgCancelOrder, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OrderID)
	return buf
}

func parseCancelOrder(p []byte) (CancelOrderMessage, error) {
	if len(p) < cancelPayloadLen {
		return CancelOrderMessage{}, ErrShortFrame
	}
	return CancelOrderMessage{
		Symbol:  unpackSymbol(p[0:8]),
		OrderID: binary.BigEndian.Uint64(p[8:16]),
	}, nil
}

type ReplaceOrderMessage struct {
	Symbol   string
	OldID    OrderID
	NewID    OrderID
	Price    Price
	Quantity Quantity
}

const replacePayloadLen = SymbolLen + 8 + 8 + 4 + 4

func (m ReplaceOrderMessage) Type() MessageType { return MsgReplaceOrder }

func (m ReplaceOrderMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+replacePayloadLen)
	putHeader(buf, MsgReplaceOrder, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OldID)
	binary.BigEndian.PutUint64(p[16:24], m.NewID)
	binary.BigEndian.PutUint32(p[24:28], m.Price)
	binary.BigEndian.PutUint32(p[28:32], m.Quantity)
	return buf
}

func parseReplaceOrder(p []byte) (ReplaceOrderMessage, error) {
	if len(p) < replacePayloadLen {
		return ReplaceOrderMessage{}, ErrShortFrame
	}
	return ReplaceOrderMessage{
		Symbol:   unpackSymbol(p[0:8]),
		OldID:    binary.BigEndian.Uint64(p[8:16]),
		NewID:    binary.BigEndian.Uint64(p[16:24]),
		Price:    binary.BigEndian.Uint32(p[24:28]),
		Quantity: binary.BigEndian.Uint32(p[28:32]),
	}, nil
}

/* ---------------------------------------------------------------------------
 * Engine to client
 * ------------------------------------------------------------------------ */

// AckMessage acknowledges or rejects a command; the status tells which.
// Encoded as MsgOrderAck when the status is ok, MsgOrderReject otherwise.
type AckMessage struct {
	Symbol  string
	OrderID OrderID
	Status  Status
}

const ackPayloadLen = SymbolLen + 8 + 4

func (m AckMessage) Type() MessageType {
	if m.Status == StatusOK {
		return MsgOrderAck
	}
	return MsgOrderReject
}

func (m AckMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+ackPayloadLen)
	putHeader(buf, m.Type(), uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OrderID)
	binary.BigEndian.PutUint32(p[16:20], uint32(m.Status))
	return buf
}

func parseAck(p []byte) (AckMessage, error) {
	if len(p) < ackPayloadLen {
		return AckMessage{}, ErrShortFrame
	}
	return AckMessage{
		Symbol:  unpackSymbol(p[0:8]),
		OrderID: binary.BigEndian.Uint64(p[8:16]),
		Status:  Status(binary.BigEndian.Uint32(p[16:20])),
	}, nil
}

type OrderCancelledMessage struct {
	Symbol  string
	OrderID OrderID
	Filled  Quantity
}

const cancelledPayloadLen = SymbolLen + 8 + 4

func (m OrderCancelledMessage) Type() MessageType { return MsgOrderCancelled }

func (m OrderCancelledMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+cancelledPayloadLen)
	putHeader(buf, MsgOrderCancelled, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OrderID)
	binary.BigEndian.PutUint32(p[16:20], m.Filled)
	return buf
}

func parseOrderCancelled(p []byte) (OrderCancelledMessage, error) {
	if len(p) < cancelledPayloadLen {
		return OrderCancelledMessage{}, ErrShortFrame
	}
	return OrderCancelledMessage{
		Symbol:  unpackSymbol(p[0:8]),
		OrderID: binary.BigEndian.Uint64(p[8:16]),
		Filled:  binary.BigEndian.Uint32(p[16:20]),
	}, nil
}

// ExecutionMessage carries an order lifecycle event to the owning session.
type ExecutionMessage struct {
	Symbol    string
	OrderID   OrderID
	Filled    Quantity
	Remaining Quantity
	Event     OrderEvent
}

const executionPayloadLen = SymbolLen + 8 + 4 + 4 + 1

func (m ExecutionMessage) Type() MessageType { return MsgExecution }

func (m ExecutionMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+executionPayloadLen)
	putHeader(buf, MsgExecution, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.OrderID)
	binary.BigEndian.PutUint32(p[16:20], m.Filled)
	binary.BigEndian.PutUint32(p[20:24], m.Remaining)
	p[24] = byte(m.Event)
	return buf
}

func parseExecution(p []byte) (ExecutionMessage, error) {
	if len(p) < executionPayloadLen {
		return ExecutionMessage{}, ErrShortFrame
	}
	return ExecutionMessage{
		Symbol:    unpackSymbol(p[0:8]),
		OrderID:   binary.BigEndian.Uint64(p[8:16]),
		Filled:    binary.BigEndian.Uint32(p[16:20]),
		Remaining: binary.BigEndian.Uint32(p[20:24]),
		Event:     OrderEvent(p[24]),
	}, nil
}

type TradeMessage struct {
	Symbol    string
	BuyID     OrderID
	SellID    OrderID
	Price     Price
	Quantity  Quantity
	Timestamp Timestamp
}

const tradePayloadLen = SymbolLen + 8 + 8 + 4 + 4 + 8

func (m TradeMessage) Type() MessageType { return MsgTrade }

func (m TradeMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+tradePayloadLen)
	putHeader(buf, MsgTrade, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint64(p[8:16], m.BuyID)
	binary.BigEndian.PutUint64(p[16:24], m.SellID)
	binary.BigEndian.PutUint32(p[24:28], m.Price)
	binary.BigEndian.PutUint32(p[28:32], m.Quantity)
	binary.BigEndian.PutUint64(p[32:40], m.Timestamp)
	return buf
}

func parseTrade(p []byte) (TradeMessage, error) {
	if len(p) < tradePayloadLen {
		return TradeMessage{}, ErrShortFrame
	}
	return TradeMessage{
		Symbol:    unpackSymbol(p[0:8]),
		BuyID:     binary.BigEndian.Uint64(p[8:16]),
		SellID:    binary.BigEndian.Uint64(p[16:24]),
		Price:     binary.BigEndian.Uint32(p[24:28]),
		Quantity:  binary.BigEndian.Uint32(p[28:32]),
		Timestamp: binary.BigEndian.Uint64(p[32:40]),
	}, nil
}

// QuoteMessage publishes the top of book after a mutation.
type QuoteMessage struct {
	Symbol    string
	BestBid   Price
	BestAsk   Price
	Timestamp Timestamp
}

const quotePayloadLen = SymbolLen + 4 + 4 + 8

func (m QuoteMessage) Type() MessageType { return MsgQuote }

func (m QuoteMessage) Encode(seq uint64) []byte {
	buf := make([]byte, HeaderLen+quotePayloadLen)
	putHeader(buf, MsgQuote, uint32(len(buf)), seq)
	p := buf[HeaderLen:]
	symbol := packSymbol(m.Symbol)
	copy(p[0:8], symbol[:])
	binary.BigEndian.PutUint32(p[8:12], m.BestBid)
	binary.BigEndian.PutUint32(p[12:16], m.BestAsk)
	binary.BigEndian.PutUint64(p[16:24], m.Timestamp)
	return buf
}

func parseQuote(p []byte) (QuoteMessage, error) {
	if len(p) < quotePayloadLen {
		return QuoteMessage{}, ErrShortFrame
	}
	return QuoteMessage{
		Symbol:    unpackSymbol(p[0:8]),
		BestBid:   binary.BigEndian.Uint32(p[8:12]),
		BestAsk:   binary.BigEndian.Uint32(p[12:16]),
		Timestamp: binary.BigEndian.Uint64(p[16:24]),
	}, nil
}

// DecodeMessage turns a parsed header and payload into a typed message.
func DecodeMessage(header Header, payload []byte) (Message, error) {
	switch header.Type {
	case MsgNewOrder:
		return parseAs(parseNewOrder, payload)
	case MsgCancelOrder:
		return parseAs(parseCancelOrder, payload)
	case MsgReplaceOrder:
		return parseAs(parseReplaceOrder, payload)
	case MsgOrderAck, MsgOrderReject:
		return parseAs(parseAck, payload)
	case MsgOrderCancelled:
		return parseAs(parseOrderCancelled, payload)
	case MsgExecution:
		return parseAs(parseExecution, payload)
	case MsgTrade:
		return parseAs(parseTrade, payload)
	case MsgQuote:
		return parseAs(parseQuote, payload)
	default:
		return nil, ErrInvalidMessageType
	}
}

func parseAs[M Message](parse func([]byte) (M, error), payload []byte) (Message, error) {
	m, err := parse(payload)
	if err != nil {
		return nil, err
	}
	return m, nil
}
