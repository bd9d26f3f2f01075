package net

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "kestrel/internal/common"
)

func roundTrip(t *testing.T, m Message, seq uint64) Message {
	t.Helper()
	frame := m.Encode(seq)
	header, payload, err := ReadFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, uint8(ProtocolVersion), header.Version)
	assert.Equal(t, m.Type(), header.Type)
	assert.Equal(t, seq, header.Sequence)
	assert.Equal(t, uint32(len(frame)), header.Length)

	decoded, err := DecodeMessage(header, payload)
	require.NoError(t, err)
	return decoded
}

func TestMessages_NewOrderRoundTrip(t *testing.T) {
	msg := NewOrderMessage{
		Symbol:      "AAPL",
		OrderID:     42,
		Price:       15000,
		StopPrice:   14900,
		Quantity:    500,
		DisplayQty:  100,
		ExpireTime:  123456789,
		OrderType:   OrderTypeStopLimit,
		Side:        SideSell,
		TimeInForce: TIFGTD,
		Flags:       FlagHidden | FlagPostOnly,
	}
	assert.Equal(t, msg, roundTrip(t, msg, 7))
}

func TestMessages_CommandRoundTrips(t *testing.T) {
	cancel := CancelOrderMessage{Symbol: "MSFT", OrderID: 9}
	assert.Equal(t, cancel, roundTrip(t, cancel, 1))

	replace := ReplaceOrderMessage{Symbol: "MSFT", OldID: 9, NewID: 10, Price: 200, Quantity: 30}
	assert.Equal(t, replace, roundTrip(t, replace, 2))
}

func TestMessages_ReportRoundTrips(t *testing.T) {
	ack := AckMessage{Symbol: "AAPL", OrderID: 5, Status: StatusOK}
	assert.Equal(t, MsgOrderAck, ack.Type())
	assert.Equal(t, ack, roundTrip(t, ack, 3))

	reject := AckMessage{Symbol: "AAPL", OrderID: 5, Status: StatusWouldMatch}
	assert.Equal(t, MsgOrderReject, reject.Type())
	assert.Equal(t, reject, roundTrip(t, reject, 4))

	cancelled := OrderCancelledMessage{Symbol: "AAPL", OrderID: 5, Filled: 12}
	assert.Equal(t, cancelled, roundTrip(t, cancelled, 5))

	exec := ExecutionMessage{Symbol: "AAPL", OrderID: 5, Filled: 30, Remaining: 70, Event: EventPartial}
	assert.Equal(t, exec, roundTrip(t, exec, 6))

	trade := TradeMessage{Symbol: "AAPL", BuyID: 1, SellID: 2, Price: 15000, Quantity: 40, Timestamp: 99}
	assert.Equal(t, trade, roundTrip(t, trade, 7))

	quote := QuoteMessage{Symbol: "AAPL", BestBid: 14990, BestAsk: 15010, Timestamp: 100}
	assert.Equal(t, quote, roundTrip(t, quote, 8))
}

func TestMessages_HeaderValidation(t *testing.T) {
	frame := CancelOrderMessage{Symbol: "AAPL", OrderID: 1}.Encode(1)

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[0] = 2
		_, _, err := ReadFrame(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrBadVersion)
	})

	t.Run("length below header", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[4], bad[5], bad[6], bad[7] = 0, 0, 0, 8
		_, _, err := ReadFrame(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrBadLength)
	})

	t.Run("length beyond cap", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[4], bad[5], bad[6], bad[7] = 0xff, 0xff, 0xff, 0xff
		_, _, err := ReadFrame(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrBadLength)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, _, err := ReadFrame(bytes.NewReader(frame[:len(frame)-4]))
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[1] = 0x7f
		header, payload, err := ReadFrame(bytes.NewReader(bad))
		require.NoError(t, err)
		_, err = DecodeMessage(header, payload)
		assert.ErrorIs(t, err, ErrInvalidMessageType)
	})
}

func TestMessages_ShortPayloadRejected(t *testing.T) {
	_, err := DecodeMessage(Header{Type: MsgNewOrder}, make([]byte, 4))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestMessages_SymbolPadding(t *testing.T) {
	// Short symbols pad with NULs on the wire and come back trimmed; long
	// symbols truncate to the field width.
	short := roundTrip(t, CancelOrderMessage{Symbol: "GO", OrderID: 1}, 1).(CancelOrderMessage)
	assert.Equal(t, "GO", short.Symbol)

	long := roundTrip(t, CancelOrderMessage{Symbol: "ABCDEFGHIJ", OrderID: 1}, 1).(CancelOrderMessage)
	assert.Equal(t, "ABCDEFGH", long.Symbol)
}
