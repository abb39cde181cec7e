package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/notify"
	"sudo_thrust/internal/service"
	"sudo_thrust/internal/strategy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PositionRequest is the body of POST /api/positions.
type PositionRequest struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount"`
	Leverage  int     `json:"leverage"`
}

// WalletState is the wallet as shown to the browser.
type WalletState struct {
	Connected bool    `json:"connected"`
	Address   string  `json:"address,omitempty"`
	Balance   float64 `json:"balance"`
	Required  bool    `json:"required"`
}

// State is everything the browser needs to render the terminal.
type State struct {
	Symbol           string                 `json:"symbol"`
	AvailableCapital float64                `json:"available_capital"`
	CommittedCapital float64                `json:"committed_capital"`
	TotalUnrealized  float64                `json:"total_unrealized"`
	Positions        []domain.Position      `json:"positions"`
	Feed             domain.FeedStatus      `json:"feed"`
	Snapshot         *domain.MarketSnapshot `json:"snapshot,omitempty"`
	PriceHistory     []service.PricePoint   `json:"price_history"`
	RecentTrades     []domain.TradePrint    `json:"recent_trades"`
	Flash            *notify.Event          `json:"flash,omitempty"`
	Trend            *strategy.Levels       `json:"trend,omitempty"`
	Remote           *domain.RemoteAccount  `json:"remote,omitempty"`
	Wallet           WalletState            `json:"wallet"`
	Leverage         int                    `json:"leverage"`
	MaxLeverage      int                    `json:"max_leverage"`
}

// Terminal is what the HTTP surface drives.
type Terminal interface {
	Markets() ([]domain.Market, service.MarketOrigin)
	State() State
	SetSymbol(symbol string) (domain.FeedStatus, error)
	ReconnectFeed() domain.FeedStatus
	OpenPosition(ctx context.Context, req PositionRequest) (domain.Execution, error)
	ClosePosition(ctx context.Context, symbol string) (domain.Execution, error)
	Deposit(amount float64) (float64, error)
	QuickAmounts() []domain.QuickAmount
	ConnectWallet(address string) error
	DisconnectWallet()
	Metrics() infra.MetricsSnapshot
}

// Server is the HTTP + WebSocket surface for the browser.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	term       Terminal
	logger     *slog.Logger
}

// New registers all routes. hub may be nil, in which case /ws is not served.
func New(addr string, term Terminal, hub *Hub) *Server {
	s := &Server{
		term:   term,
		logger: slog.Default().With("module", "http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/markets", s.handleMarkets)
		r.Get("/state", s.handleState)
		r.Post("/symbol", s.handleSetSymbol)
		r.Post("/feed/reconnect", s.handleReconnect)
		r.Post("/positions", s.handleOpen)
		r.Delete("/positions/{symbol}", s.handleClose)
		r.Post("/capital/deposit", s.handleDeposit)
		r.Get("/amounts/quick", s.handleQuickAmounts)
		r.Post("/wallet/connect", s.handleWalletConnect)
		r.Post("/wallet/disconnect", s.handleWalletDisconnect)
		r.Get("/metrics", s.handleMetrics)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router (for tests).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, origin := s.term.Markets()
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "origin": origin})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.term.State())
}

func (s *Server) handleSetSymbol(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	status, err := s.term.SetSymbol(body.Symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, s.term.ReconnectFeed())
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	exec, err := s.term.OpenPosition(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exec)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	exec, err := s.term.ClosePosition(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	available, err := s.term.Deposit(body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"available_capital": available})
}

func (s *Server) handleQuickAmounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.term.QuickAmounts())
}

func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.term.ConnectWallet(body.Address); err != nil {
		writeError(w, domain.NewValidationError("address", "%v", err))
		return
	}
	writeJSON(w, http.StatusOK, s.term.State().Wallet)
}

func (s *Server) handleWalletDisconnect(w http.ResponseWriter, r *http.Request) {
	s.term.DisconnectWallet()
	writeJSON(w, http.StatusOK, s.term.State().Wallet)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.term.Metrics())
}

// requestLogger logs every request with slog. The wrapped writer keeps Hijack for /ws.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.DebugContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
