package ledger

import (
	"fmt"
	"math"
	"sync"

	"sudo_thrust/internal/domain"
)

// Capital is the available (uncommitted) balance plus what each open symbol has committed.
// available never goes negative: Commit rejects amounts above it.
type Capital struct {
	mu        sync.RWMutex
	available float64
	committed map[string]float64
}

// NewCapital creates a balance with the given starting capital.
func NewCapital(initial float64) *Capital {
	if initial < 0 || math.IsNaN(initial) {
		initial = 0
	}
	return &Capital{
		available: initial,
		committed: make(map[string]float64),
	}
}

// Available returns uncommitted capital.
func (c *Capital) Available() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// Committed returns the amount committed to symbol.
func (c *Capital) Committed(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.committed[symbol]
}

// TotalCommitted sums all committed amounts.
func (c *Capital) TotalCommitted() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	for _, v := range c.committed {
		total += v
	}
	return total
}

// Commit moves amount out of available capital for symbol.
func (c *Capital) Commit(symbol string, amount float64) error {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return domain.NewValidationError("amount", "must be > 0, got %v", amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.committed[symbol]; exists {
		return fmt.Errorf("%s: %w", symbol, domain.ErrAlreadyOpen)
	}
	if amount > c.available {
		return fmt.Errorf("need %.2f, available %.2f: %w", amount, c.available, domain.ErrInsufficientCapital)
	}
	c.available -= amount
	c.committed[symbol] = amount
	return nil
}

// Refund returns the committed amount for symbol untouched. Used when an open is rolled back.
func (c *Capital) Refund(symbol string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	amount := c.committed[symbol]
	delete(c.committed, symbol)
	c.available += amount
	return amount
}

// Settle releases the commitment for symbol and credits committed + realizedPnl.
// A loss larger than the commitment floors the credit at zero.
func (c *Capital) Settle(symbol string, realizedPnl float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	credit := c.committed[symbol] + realizedPnl
	if credit < 0 {
		credit = 0
	}
	delete(c.committed, symbol)
	c.available += credit
	return credit
}

// Deposit tops up available capital (demo mode).
func (c *Capital) Deposit(amount float64) error {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return domain.NewValidationError("amount", "must be > 0, got %v", amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.available += amount
	return nil
}
