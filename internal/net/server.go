package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	. "kestrel/internal/common"
	"kestrel/internal/engine"
	"kestrel/internal/metrics"
	"kestrel/internal/utils"
)

const (
	defaultNWorkers = 10
	commandChanSize = 256
)

var ErrImproperConversion = errors.New("improper type conversion")

// session is one connected client. Outbound frames carry a per-session
// sequence; writes are serialized so event and quote frames interleave
// cleanly.
type session struct {
	id   string
	conn net.Conn

	mu  sync.Mutex
	seq uint64
}

func (s *session) send(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if _, err := s.conn.Write(m.Encode(s.seq)); err != nil {
		return fmt.Errorf("unable to send frame: %w", err)
	}
	return nil
}

// command is a decoded client frame bound to the session that sent it.
type command struct {
	sess *session
	msg  Message
}

// Server is the TCP front end. Connections are read by a worker pool;
// decoded commands funnel into a single engine goroutine, because a book
// and everything behind it is single-threaded. Callbacks fire inside the
// engine goroutine and are translated to frames for the submitting
// session.
type Server struct {
	address string
	port    int
	eng     *engine.Engine
	mtr     *metrics.Metrics

	pool   *utils.WorkerPool
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]*session

	commands chan command

	// Submission in flight on the engine goroutine; callback routing.
	current       *session
	currentSymbol string
}

func NewServer(address string, port int, eng *engine.Engine, mtr *metrics.Metrics) *Server {
	s := &Server{
		address:  address,
		port:     port,
		eng:      eng,
		mtr:      mtr,
		pool:     utils.NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]*session),
		commands: make(chan command, commandChanSize),
	}
	eng.Context().SetCallbacks(s.onTrade, s.onOrderEvent, s)
	return s
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	s.pool.Start(t, s.handleConnection)

	t.Go(func() error {
		return s.engineLoop(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("gateway running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			s.pool.Submit(conn)
		}
	}
}

// handleConnection owns one client connection for its lifetime: register a
// session, read frames, decode, and hand commands to the engine goroutine.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	sess := &session{
		id:   uuid.New().String(),
		conn: conn,
	}
	s.addSession(sess)
	if s.mtr != nil {
		s.mtr.Sessions.Inc()
	}

	log.Info().
		Str("session", sess.id).
		Str("remote", conn.RemoteAddr().String()).
		Msg("new client session")

	defer func() {
		s.removeSession(sess.id)
		if s.mtr != nil {
			s.mtr.Sessions.Dec()
		}
		if err := conn.Close(); err != nil {
			log.Error().Str("session", sess.id).Err(err).Msg("error closing connection")
		}
	}()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		header, payload, err := ReadFrame(conn)
		if err != nil {
			log.Info().Str("session", sess.id).Err(err).Msg("session closed")
			return nil
		}

		msg, err := DecodeMessage(header, payload)
		if err != nil {
			log.Error().Str("session", sess.id).Err(err).Msg("error parsing frame")
			return nil
		}

		switch msg.(type) {
		case NewOrderMessage, CancelOrderMessage, ReplaceOrderMessage:
			s.commands <- command{sess: sess, msg: msg}
		default:
			log.Warn().
				Str("session", sess.id).
				Uint8("type", uint8(header.Type)).
				Msg("ignoring non-command frame")
		}
	}
}

// engineLoop is the single goroutine allowed to touch the engine.
func (s *Server) engineLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cmd := <-s.commands:
			s.dispatch(cmd)
		}
	}
}

func (s *Server) dispatch(cmd command) {
	s.current = cmd.sess
	defer func() {
		s.current = nil
		s.currentSymbol = ""
	}()

	switch msg := cmd.msg.(type) {
	case NewOrderMessage:
		s.currentSymbol = msg.Symbol
		book, ok := s.eng.Book(msg.Symbol)
		if !ok {
			s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.OrderID, Status: StatusInvalidParam})
			return
		}
		status := book.AddOrder(msg.OrderID, msg.OrderType, msg.Side,
			msg.Price, msg.StopPrice, msg.Quantity, msg.DisplayQty,
			msg.TimeInForce, msg.Flags, msg.ExpireTime)
		if s.mtr != nil {
			if status == StatusOK {
				s.mtr.OrdersAccepted.Inc()
			} else {
				s.mtr.OrdersRejected.Inc()
			}
		}
		s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.OrderID, Status: status})
		s.quote(cmd.sess, book)

	case CancelOrderMessage:
		s.currentSymbol = msg.Symbol
		book, ok := s.eng.Book(msg.Symbol)
		if !ok {
			s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.OrderID, Status: StatusInvalidParam})
			return
		}
		status := book.Cancel(msg.OrderID)
		if status == StatusOK {
			s.reply(cmd.sess, OrderCancelledMessage{Symbol: msg.Symbol, OrderID: msg.OrderID})
		} else {
			s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.OrderID, Status: status})
		}
		s.quote(cmd.sess, book)

	case ReplaceOrderMessage:
		s.currentSymbol = msg.Symbol
		book, ok := s.eng.Book(msg.Symbol)
		if !ok {
			s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.OldID, Status: StatusInvalidParam})
			return
		}
		status := book.Replace(msg.OldID, msg.NewID, msg.Price, msg.Quantity)
		s.reply(cmd.sess, AckMessage{Symbol: msg.Symbol, OrderID: msg.NewID, Status: status})
		s.quote(cmd.sess, book)
	}
}

func (s *Server) reply(sess *session, m Message) {
	if err := sess.send(m); err != nil {
		log.Error().Str("session", sess.id).Err(err).Msg("dropping session reply")
	}
}

func (s *Server) quote(sess *session, book *engine.OrderBook) {
	s.reply(sess, QuoteMessage{
		Symbol:    book.Symbol(),
		BestBid:   book.BestBid(),
		BestAsk:   book.BestAsk(),
		Timestamp: s.eng.Context().Timestamp(),
	})
}

// onTrade runs inside the engine goroutine during a submission.
func (s *Server) onTrade(_ any, buyID, sellID OrderID, price Price, quantity Quantity, ts Timestamp) {
	if s.mtr != nil {
		s.mtr.Trades.Inc()
		s.mtr.MatchedVolume.Add(float64(quantity))
	}
	if s.current == nil {
		return
	}
	s.reply(s.current, TradeMessage{
		Symbol:    s.currentSymbol,
		BuyID:     buyID,
		SellID:    sellID,
		Price:     price,
		Quantity:  quantity,
		Timestamp: ts,
	})
}

func (s *Server) onOrderEvent(_ any, id OrderID, event OrderEvent, filled, remaining Quantity) {
	if s.current == nil {
		return
	}
	s.reply(s.current, ExecutionMessage{
		Symbol:    s.currentSymbol,
		OrderID:   id,
		Filled:    filled,
		Remaining: remaining,
		Event:     event,
	})
}

func (s *Server) addSession(sess *session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[sess.id] = sess
}

func (s *Server) removeSession(id string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, id)
}
