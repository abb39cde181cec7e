package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sudo_thrust/internal/domain"

	"github.com/google/uuid"
)

// Ledger is the single source of truth for open positions.
// At most one position exists per symbol.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
	now       func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
}

// Open records a new position. notional = size * entryPrice.
func (l *Ledger) Open(symbol string, side domain.Side, size, entryPrice float64, leverage int) (domain.Position, error) {
	if symbol == "" {
		return domain.Position{}, domain.ErrInvalidSymbol
	}
	if !side.Valid() {
		return domain.Position{}, domain.NewValidationError("side", "unknown side %q", side)
	}
	if !domain.IsValidPrice(size) {
		return domain.Position{}, domain.NewValidationError("size", "must be > 0, got %v", size)
	}
	if !domain.IsValidPrice(entryPrice) {
		return domain.Position{}, domain.NewValidationError("entry_price", "must be > 0, got %v", entryPrice)
	}
	if leverage < 1 {
		return domain.Position{}, domain.NewValidationError("leverage", "must be >= 1, got %d", leverage)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.positions[symbol]; exists {
		return domain.Position{}, fmt.Errorf("%s: %w", symbol, domain.ErrAlreadyOpen)
	}

	now := l.now()
	p := &domain.Position{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Size:          size,
		EntryPrice:    entryPrice,
		Leverage:      leverage,
		NotionalValue: size * entryPrice,
		OpenedAt:      now,
	}
	p.Reprice(entryPrice, now)
	l.positions[symbol] = p

	return *p, nil
}

// OnPriceTick reprices the position for tick.Symbol, if any, and returns the updated copy.
func (l *Ledger) OnPriceTick(tick domain.PriceTick) (domain.Position, bool) {
	if !tick.Valid() {
		return domain.Position{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[tick.Symbol]
	if !ok {
		return domain.Position{}, false
	}
	at := tick.Timestamp
	if at.IsZero() {
		at = l.now()
	}
	p.Reprice(tick.Price, at)
	return *p, true
}

// Close removes the position for symbol and returns its last unrealized PnL as realized.
func (l *Ledger) Close(symbol string) (float64, domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return 0, domain.Position{}, fmt.Errorf("%s: %w", symbol, domain.ErrNoOpenPosition)
	}
	delete(l.positions, symbol)
	return p.UnrealizedPnl, *p, nil
}

// Get returns a copy of the position for symbol.
func (l *Ledger) Get(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// TotalUnrealized sums unrealized PnL across open positions.
func (l *Ledger) TotalUnrealized() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, p := range l.positions {
		total += p.UnrealizedPnl
	}
	return total
}
