// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fundpilot/trading-backend/internal/backtest"
	"github.com/fundpilot/trading-backend/internal/market"
	"github.com/fundpilot/trading-backend/internal/rebalance"
	"github.com/fundpilot/trading-backend/internal/storage"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NavRecorder ingests NAV points. Both the memory and SQLite stores
// implement it.
type NavRecorder interface {
	Upsert(ctx context.Context, points ...types.NavPoint) error
}

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu           sync.RWMutex
	logger       *zap.Logger
	config       *types.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	upgrader     websocket.Upgrader
	clients      map[string]*Client

	market       market.DataPort
	navRecorder  NavRecorder
	simulator    *backtest.Simulator
	strategies   storage.StrategyRepo
	positions    storage.PositionRepo
	transactions storage.TransactionRepo
	planner      *rebalance.Planner
}

// NewServer creates the API server and wires its routes.
func NewServer(
	logger *zap.Logger,
	config *types.ServerConfig,
	data market.DataPort,
	navRecorder NavRecorder,
	simulator *backtest.Simulator,
	strategies storage.StrategyRepo,
	positions storage.PositionRepo,
	transactions storage.TransactionRepo,
	planner *rebalance.Planner,
) *Server {
	server := &Server{
		logger:       logger.Named("api"),
		config:       config,
		router:       mux.NewRouter(),
		clients:      make(map[string]*Client),
		market:       data,
		navRecorder:  navRecorder,
		simulator:    simulator,
		strategies:   strategies,
		positions:    positions,
		transactions: transactions,
		planner:      planner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	// Market data
	s.router.HandleFunc("/api/v1/nav", s.handleUpsertNav).Methods("POST")
	s.router.HandleFunc("/api/v1/nav/{fundCode}", s.handleGetNavHistory).Methods("GET")

	// Strategies
	s.router.HandleFunc("/api/v1/strategies", s.handleCreateStrategy).Methods("POST")
	s.router.HandleFunc("/api/v1/strategies", s.handleListStrategies).Methods("GET")
	s.router.HandleFunc("/api/v1/strategies/{id}", s.handleGetStrategy).Methods("GET")
	s.router.HandleFunc("/api/v1/strategies/{id}/enable", s.handleSetEnabled(true)).Methods("POST")
	s.router.HandleFunc("/api/v1/strategies/{id}/disable", s.handleSetEnabled(false)).Methods("POST")

	// Portfolio
	s.router.HandleFunc("/api/v1/positions", s.handleListPositions).Methods("GET")
	s.router.HandleFunc("/api/v1/transactions", s.handleListTransactions).Methods("GET")

	// Analytics
	s.router.HandleFunc("/api/v1/backtest", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/rebalance/preview", s.handleRebalancePreview).Methods("POST")

	// WebSocket
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server, closing WebSocket clients first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
