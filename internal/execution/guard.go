package execution

import (
	"fmt"
	"sync"

	"sudo_thrust/internal/domain"
)

// Guard rejects a second open/close for a symbol while one is in flight.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire marks symbol busy. The returned release must be called exactly once.
func (g *Guard) Acquire(symbol string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[symbol]; busy {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrExecutionPending)
	}
	g.inFlight[symbol] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, symbol)
			g.mu.Unlock()
		})
	}, nil
}

// Pending reports whether symbol has an execution in flight.
func (g *Guard) Pending(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[symbol]
	return busy
}
