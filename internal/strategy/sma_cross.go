package strategy

import (
	"fmt"
	"sync"
	"time"

	"sudo_thrust/internal/domain"
)

// SignalKind is the direction of a moving-average cross.
type SignalKind string

const (
	GoldenCross SignalKind = "golden_cross" // short SMA crosses above long
	DeadCross   SignalKind = "dead_cross"   // short SMA crosses below long
)

// Signal is an advisory crossover. It is shown to the user and never traded on.
type Signal struct {
	Kind     SignalKind `json:"kind"`
	Symbol   string     `json:"symbol"`
	Price    float64    `json:"price"`
	ShortSMA float64    `json:"short_sma"`
	LongSMA  float64    `json:"long_sma"`
	At       time.Time  `json:"at"`
}

// Levels are the current moving averages for the chart overlay.
type Levels struct {
	Symbol   string  `json:"symbol"`
	ShortSMA float64 `json:"short_sma"`
	LongSMA  float64 `json:"long_sma"`
}

// SMACross tracks a short and a long simple moving average over one symbol's ticks.
// Uses a ring buffer so the hot path does not allocate.
type SMACross struct {
	mu          sync.Mutex
	symbol      string
	shortPeriod int
	longPeriod  int

	// State (Ring Buffer)
	prices []float64
	head   int     // Current write position
	count  int     // Number of elements filled
	sum    float64 // Running sum over the long period

	prevShort float64
	prevLong  float64
}

// NewSMACross creates a tracker. shortPeriod must be less than longPeriod.
func NewSMACross(shortPeriod, longPeriod int) (*SMACross, error) {
	if shortPeriod < 1 || shortPeriod >= longPeriod {
		return nil, fmt.Errorf("sma cross: need 1 <= short (%d) < long (%d)", shortPeriod, longPeriod)
	}
	return &SMACross{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		prices:      make([]float64, longPeriod), // Fixed size allocation
	}, nil
}

// Reset clears the window and starts tracking symbol.
func (s *SMACross) Reset(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.symbol = symbol
	s.head, s.count, s.sum = 0, 0, 0
	s.prevShort, s.prevLong = 0, 0
	clear(s.prices)
}

// OnTick adds a price and reports a cross, if one happened on this tick.
// Ticks for other symbols are ignored.
func (s *SMACross) OnTick(tick domain.PriceTick) (Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tick.Symbol != s.symbol || !domain.IsValidPrice(tick.Price) {
		return Signal{}, false
	}

	// If full, subtract the oldest value before overwriting
	if s.count == s.longPeriod {
		s.sum -= s.prices[s.head]
	}
	s.prices[s.head] = tick.Price
	s.sum += tick.Price
	s.head = (s.head + 1) % s.longPeriod
	if s.count < s.longPeriod {
		s.count++
	}

	if s.count < s.longPeriod {
		return Signal{}, false
	}

	currLong := s.sum / float64(s.longPeriod)
	currShort := s.shortSMALocked()

	var (
		sig   Signal
		fired bool
	)
	if s.prevShort != 0 && s.prevLong != 0 {
		switch {
		case s.prevShort <= s.prevLong && currShort > currLong:
			sig, fired = s.signal(GoldenCross, tick, currShort, currLong), true
		case s.prevShort >= s.prevLong && currShort < currLong:
			sig, fired = s.signal(DeadCross, tick, currShort, currLong), true
		}
	}

	s.prevShort = currShort
	s.prevLong = currLong
	return sig, fired
}

// Levels returns the latest averages once the long window is full.
func (s *SMACross) Levels() (Levels, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prevLong == 0 {
		return Levels{}, false
	}
	return Levels{Symbol: s.symbol, ShortSMA: s.prevShort, LongSMA: s.prevLong}, true
}

func (s *SMACross) signal(kind SignalKind, tick domain.PriceTick, short, long float64) Signal {
	return Signal{
		Kind:     kind,
		Symbol:   s.symbol,
		Price:    tick.Price,
		ShortSMA: short,
		LongSMA:  long,
		At:       tick.Timestamp,
	}
}

// Must be called with lock held
func (s *SMACross) shortSMALocked() float64 {
	var sum float64
	// head points to the next write slot, so head-1 is the latest
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum += s.prices[idx]
	}
	return sum / float64(s.shortPeriod)
}
