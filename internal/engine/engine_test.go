package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "kestrel/internal/common"
)

func TestEngine_Registry(t *testing.T) {
	eng := New(NewContext(DefaultConfig()))

	book, err := eng.CreateBook("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", book.Symbol())

	_, err = eng.CreateBook("AAPL")
	assert.ErrorIs(t, err, ErrSymbolExists)

	_, err = eng.CreateBook("")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = eng.CreateBook("MSFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, eng.Symbols())

	got, ok := eng.Book("AAPL")
	assert.True(t, ok)
	assert.Same(t, book, got)

	_, ok = eng.Book("NVDA")
	assert.False(t, ok)
}

func TestEngine_DropBook(t *testing.T) {
	eng := New(NewContext(DefaultConfig()))
	eng.Context().SetTimestamp(1)

	book, err := eng.CreateBook("AAPL")
	require.NoError(t, err)
	require.Equal(t, StatusOK, book.AddLimit(1, SideBuy, 100, 10))

	require.NoError(t, eng.DropBook("AAPL"))
	_, ok := eng.Book("AAPL")
	assert.False(t, ok)

	assert.ErrorIs(t, eng.DropBook("AAPL"), ErrUnknownSymbol)
}
