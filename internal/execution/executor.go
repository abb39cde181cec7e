package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/ledger"

	"github.com/google/uuid"
)

// Config bounds what the executor accepts.
type Config struct {
	MaxLeverage    int
	BackendTimeout time.Duration
	RequireWallet  bool
}

// DefaultConfig returns the terminal defaults.
func DefaultConfig() Config {
	return Config{
		MaxLeverage:    domain.MaxLeverage,
		BackendTimeout: 5 * time.Second,
	}
}

// OpenRequest is a user's request to open a position.
type OpenRequest struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"` // up/down, long/short, buy/sell
	Amount    float64 `json:"amount"`
	Leverage  int     `json:"leverage"`
	Price     float64 `json:"price"`
}

// Executor opens and closes positions. A failing or missing backend degrades to a
// simulated fill; the ledger and capital are updated either way.
type Executor struct {
	ledger  *ledger.Ledger
	capital *ledger.Capital
	backend domain.TradingBackend
	wallet  domain.Wallet
	metrics *infra.Metrics
	guard   *Guard
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an executor. backend and wallet may be nil.
func New(l *ledger.Ledger, c *ledger.Capital, backend domain.TradingBackend, wallet domain.Wallet, cfg Config, metrics *infra.Metrics) *Executor {
	if cfg.MaxLeverage < domain.MinLeverage || cfg.MaxLeverage > domain.MaxLeverage {
		cfg.MaxLeverage = domain.MaxLeverage
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = DefaultConfig().BackendTimeout
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Executor{
		ledger:  l,
		capital: c,
		backend: backend,
		wallet:  wallet,
		metrics: metrics,
		guard:   NewGuard(),
		cfg:     cfg,
		logger:  slog.Default().With("module", "executor"),
		now:     time.Now,
	}
}

// Open validates req, commits the amount and opens a position of
// size = amount * leverage / price.
func (e *Executor) Open(ctx context.Context, req OpenRequest) (domain.Execution, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return domain.Execution{}, domain.NewValidationError("symbol", "must not be empty")
	}

	release, err := e.guard.Acquire(symbol)
	if err != nil {
		return domain.Execution{}, err
	}
	defer release()

	side, err := e.validateOpen(symbol, req)
	if err != nil {
		return domain.Execution{}, err
	}

	notional := req.Amount * float64(req.Leverage)
	size := notional / req.Price

	if err := e.capital.Commit(symbol, req.Amount); err != nil {
		return domain.Execution{}, err
	}

	exec := e.place(ctx, "open", domain.OrderRequest{
		Symbol:      symbol,
		Side:        side.OpenOrderSide(),
		Quantity:    size,
		Price:       req.Price,
		OrderType:   domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceIOC,
		Leverage:    req.Leverage,
	})

	pos, err := e.ledger.Open(symbol, side, size, req.Price, req.Leverage)
	if err != nil {
		e.capital.Refund(symbol)
		if exec.Source == domain.FillExchange {
			// The exchange holds a position the ledger does not know about.
			e.logger.Error("Exchange fill not recorded in ledger",
				slog.String("symbol", symbol),
				slog.String("order_id", exec.OrderID),
				slog.Float64("quantity", size),
				slog.Any("error", err))
		}
		return domain.Execution{}, fmt.Errorf("ledger open (order %s): %w", exec.OrderID, err)
	}

	exec.Position = pos
	e.logger.Info("Position opened",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("amount", req.Amount),
		slog.Int("leverage", req.Leverage),
		slog.Float64("entry", req.Price),
		slog.String("source", string(exec.Source)),
		slog.String("order_id", exec.OrderID))
	return exec, nil
}

// Close flattens the position on symbol and credits committed + realized PnL.
func (e *Executor) Close(ctx context.Context, symbol string) (domain.Execution, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	release, err := e.guard.Acquire(symbol)
	if err != nil {
		return domain.Execution{}, err
	}
	defer release()

	pos, ok := e.ledger.Get(symbol)
	if !ok {
		return domain.Execution{}, fmt.Errorf("%s: %w", symbol, domain.ErrNoOpenPosition)
	}

	exec := e.place(ctx, "close", domain.OrderRequest{
		Symbol:      symbol,
		Side:        pos.Side.CloseOrderSide(),
		Quantity:    pos.Size,
		OrderType:   domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceIOC,
		Leverage:    pos.Leverage,
	})

	realized, closed, err := e.ledger.Close(symbol)
	if err != nil {
		return domain.Execution{}, err
	}
	credited := e.capital.Settle(symbol, realized)

	exec.Position = closed
	exec.RealizedPnl = realized
	exec.Credited = credited
	e.logger.Info("Position closed",
		slog.String("symbol", symbol),
		slog.Float64("realized_pnl", realized),
		slog.Float64("credited", credited),
		slog.String("source", string(exec.Source)),
		slog.String("order_id", exec.OrderID))
	return exec, nil
}

// Deposit tops up available capital.
func (e *Executor) Deposit(amount float64) (float64, error) {
	if err := e.capital.Deposit(amount); err != nil {
		return 0, err
	}
	e.logger.Info("Capital deposited", slog.Float64("amount", amount))
	return e.capital.Available(), nil
}

// QuickAmounts returns the shortcut amounts for current available capital.
func (e *Executor) QuickAmounts() []domain.QuickAmount {
	return domain.QuickAmounts(e.capital.Available())
}

// Pending reports whether an open or close is in flight for symbol.
func (e *Executor) Pending(symbol string) bool {
	return e.guard.Pending(strings.ToUpper(symbol))
}

func (e *Executor) validateOpen(symbol string, req OpenRequest) (domain.Side, error) {
	side, ok := domain.ParseSide(req.Direction)
	if !ok {
		return "", domain.NewValidationError("direction", "unknown direction %q", req.Direction)
	}
	if !domain.IsValidPrice(req.Amount) {
		return "", domain.NewValidationError("amount", "must be > 0, got %v", req.Amount)
	}
	if available := e.capital.Available(); req.Amount > available {
		return "", domain.NewValidationError("amount", "%.2f exceeds available capital %.2f", req.Amount, available)
	}
	if !domain.IsValidPrice(req.Price) {
		return "", domain.NewValidationError("price", "no valid price for %s", symbol)
	}
	if req.Leverage < domain.MinLeverage || req.Leverage > e.cfg.MaxLeverage {
		return "", domain.NewValidationError("leverage", "must be within %d..%d, got %d", domain.MinLeverage, e.cfg.MaxLeverage, req.Leverage)
	}
	if e.cfg.RequireWallet {
		if e.wallet == nil || !e.wallet.Connected() {
			return "", domain.NewValidationError("wallet", "not connected")
		}
		if bal := e.wallet.Balance(); bal > 0 && req.Amount > bal {
			return "", domain.NewValidationError("amount", "%.2f exceeds wallet balance %.2f", req.Amount, bal)
		}
	}
	if _, exists := e.ledger.Get(symbol); exists {
		return "", fmt.Errorf("%s: %w", symbol, domain.ErrAlreadyOpen)
	}
	return side, nil
}

// place sends req to the backend and falls back to a simulated fill on any failure.
func (e *Executor) place(ctx context.Context, op string, req domain.OrderRequest) domain.Execution {
	exec := domain.Execution{ExecutedAt: e.now()}

	var backendErr error
	if e.backend == nil || !e.backend.Configured() {
		backendErr = domain.ErrBackendNotConfigured
	} else {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.BackendTimeout)
		res, err := e.backend.PlaceOrder(callCtx, req)
		cancel()
		if err == nil {
			exec.OrderID = res.OrderID
			exec.Status = res.Status
			exec.Source = domain.FillExchange
			e.metrics.RecordOrderFilled(false)
			return exec
		}
		backendErr = &domain.BackendExecutionError{Op: op, Err: err}
		e.metrics.RecordBackendError()
	}

	prefix := "sim_"
	if op == "close" {
		prefix = "close_"
	}
	exec.OrderID = prefix + uuid.NewString()
	exec.Status = domain.OrderStatusFilled
	exec.Source = domain.FillSimulated
	exec.BackendError = backendErr.Error()
	e.metrics.RecordOrderFilled(true)

	level := slog.LevelWarn
	if errors.Is(backendErr, domain.ErrBackendNotConfigured) {
		level = slog.LevelDebug
	}
	e.logger.Log(ctx, level, "Backend order failed, using simulated fill",
		slog.String("op", op),
		slog.String("symbol", req.Symbol),
		slog.Any("error", backendErr))
	return exec
}
