package engine

import (
	"errors"
	"sort"
)

var (
	ErrSymbolExists  = errors.New("symbol already has a book")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Engine is a registry of order books keyed by symbol, all sharing one
// context. Like its books it is confined to a single owner goroutine.
type Engine struct {
	ctx   *Context
	books map[string]*OrderBook
}

func New(ctx *Context) *Engine {
	return &Engine{
		ctx:   ctx,
		books: make(map[string]*OrderBook),
	}
}

func (e *Engine) Context() *Context { return e.ctx }

// CreateBook registers a new book for the symbol.
func (e *Engine) CreateBook(symbol string) (*OrderBook, error) {
	if symbol == "" {
		return nil, ErrUnknownSymbol
	}
	if _, ok := e.books[symbol]; ok {
		return nil, ErrSymbolExists
	}
	book := NewOrderBook(e.ctx, symbol)
	e.books[symbol] = book
	return book, nil
}

func (e *Engine) Book(symbol string) (*OrderBook, bool) {
	book, ok := e.books[symbol]
	return book, ok
}

// DropBook clears and removes the symbol's book.
func (e *Engine) DropBook(symbol string) error {
	book, ok := e.books[symbol]
	if !ok {
		return ErrUnknownSymbol
	}
	book.Clear()
	delete(e.books, symbol)
	return nil
}

func (e *Engine) Symbols() []string {
	symbols := make([]string, 0, len(e.books))
	for symbol := range e.books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
