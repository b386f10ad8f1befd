// Package api is the transport boundary of the core: a REST + websocket
// gateway that unwraps inbound event envelopes, drives the matching engine,
// and fans stamped outbound envelopes back out to every participant.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vexlab/vexchange/params"
	"github.com/vexlab/vexchange/pkg/causal"
	"github.com/vexlab/vexchange/pkg/engine"
)

// EventSink receives every outbound envelope in addition to the websocket
// fan-out. Sink failures are logged, never surfaced to participants.
type EventSink interface {
	Publish(ctx context.Context, env Outbound) error
}

// Server handles REST requests and websocket connections.
type Server struct {
	cfg    params.Config
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
	sinks  []EventSink
}

func NewServer(cfg params.Config, eng *engine.Engine, log *zap.SugaredLogger, sinks ...EventSink) *Server {
	s := &Server{
		cfg:   cfg,
		eng:   eng,
		hub:   NewHub(log),
		log:   log,
		sinks: sinks,
	}
	s.router = mux.NewRouter()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/symbols", s.handleGetSymbols).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routing handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, MarketDataPayload{Books: s.eng.AllSnapshots()})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	depth := 0
	if d := r.URL.Query().Get("depth"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			depth = n
		}
	}

	snap, err := s.eng.TopOfBook(symbol, depth)
	if err != nil {
		respondError(w, http.StatusNotFound, "orderbook not found", err.Error())
		return
	}
	respondJSON(w, snap)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := s.cfg.Engine.TradeHistory
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.eng.RecentTrades(symbol, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "symbol not found", err.Error())
		return
	}
	if trades == nil {
		trades = []engine.Trade{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var env Inbound
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid envelope", err.Error())
		return
	}
	if env.EventType != EventPlaceOrder {
		respondError(w, http.StatusBadRequest, "unexpected event type", env.EventType)
		return
	}

	res, err := s.placeOrder(env)
	if err != nil {
		respondError(w, statusFor(err), "order rejected", err.Error())
		return
	}
	respondJSON(w, res)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var env Inbound
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid envelope", err.Error())
		return
	}
	if env.EventType != EventCancelOrder {
		respondError(w, http.StatusBadRequest, "unexpected event type", env.EventType)
		return
	}

	// Cancellation failures are an expected outcome, not a transport error:
	// always 200 with success=false.
	respondJSON(w, s.cancelOrder(env))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Core operations shared by REST and websocket
// ==============================

func (s *Server) placeOrder(env Inbound) (PlaceOrderResult, error) {
	var p PlaceOrderPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return PlaceOrderResult{}, engine.ErrInvalidOrder
	}

	var side engine.Side
	switch p.Side {
	case "BUY":
		side = engine.Buy
	case "SELL":
		side = engine.Sell
	default:
		return PlaceOrderResult{}, engine.ErrInvalidOrder
	}

	res, err := s.eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: env.ParticipantID,
		Symbol:        p.Symbol,
		Side:          side,
		Price:         p.LimitPrice,
		Qty:           p.Quantity,
		Sender:        causal.Stamp{Vector: env.SenderVector},
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}

	for _, t := range res.Trades {
		s.broadcast("trades:"+p.Symbol, EventTradeExecution, t)
	}
	s.broadcast("orderbook:"+p.Symbol, EventOrderBookUpdate, res.Book)

	return PlaceOrderResult{Order: res.Order, Trades: res.Trades, Book: res.Book}, nil
}

func (s *Server) cancelOrder(env Inbound) CancelOrderResult {
	var p CancelOrderPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.OrderID == "" {
		return CancelOrderResult{Success: false, Error: "invalid cancel payload"}
	}

	res, err := s.eng.CancelOrder(p.OrderID, env.ParticipantID, causal.Stamp{Vector: env.SenderVector})
	if err != nil {
		return CancelOrderResult{Success: false, Error: err.Error()}
	}

	symbol := res.Order.Symbol
	book, berr := s.eng.TopOfBook(symbol, 0)
	if berr == nil {
		s.broadcast("orderbook:"+symbol, EventOrderCancelled, OrderCancelledPayload{
			OrderID: res.Order.ID,
			Symbol:  symbol,
			Book:    book,
		})
	}

	return CancelOrderResult{Success: true, Order: res.Order}
}

func (s *Server) marketData() Outbound {
	return s.envelope(EventMarketData, MarketDataPayload{Books: s.eng.AllSnapshots()})
}

// dispatchWS handles inbound event envelopes arriving over a websocket
// connection, replying directly to the sender in addition to any broadcast.
func (s *Server) dispatchWS(c *Client, req WSRequest) {
	switch req.EventType {
	case EventPlaceOrder:
		res, err := s.placeOrder(req.Inbound)
		if err != nil {
			c.Send(ErrorResponse{Error: "order rejected", Message: err.Error()})
			return
		}
		c.Send(res)

	case EventCancelOrder:
		c.Send(s.cancelOrder(req.Inbound))

	case EventMarketDataRequest:
		c.Send(s.marketData())

	default:
		c.Send(ErrorResponse{Error: "unknown event type", Message: req.EventType})
	}
}

// ==============================
// Fan-out
// ==============================

// envelope wraps a payload with a fresh stamp from the engine clock:
// results are stamped again on the way out so receivers can order them
// against everything else the coordinator has emitted.
func (s *Server) envelope(eventType string, payload any) Outbound {
	stamp := s.eng.Clock().Tick()
	return Outbound{
		EventType:        eventType,
		Payload:          payload,
		LogicalTimestamp: stamp.Lamport,
		VectorClock:      stamp.Vector,
	}
}

func (s *Server) broadcast(channel, eventType string, payload any) {
	env := s.envelope(eventType, payload)
	s.hub.BroadcastToChannel(channel, env)
	for _, sink := range s.sinks {
		if err := sink.Publish(context.Background(), env); err != nil {
			s.log.Warnw("event_sink_failed", "event", eventType, "err", err)
		}
	}
}

// ==============================
// Helpers
// ==============================

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidSymbol):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
