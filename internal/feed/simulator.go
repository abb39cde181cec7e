package feed

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"sudo_thrust/internal/domain"
)

// defaultPrices seeds the simulator when no price was ever seen for a symbol.
var defaultPrices = map[string]float64{
	"BTC":  50000,
	"ETH":  3000,
	"SOL":  100,
	"SUI":  1.5,
	"AVAX": 30,
	"ARB":  1.2,
}

const fallbackPrice = 100.0

// DefaultPrice returns the hard-coded seed price for symbol ("ETH-PERP" -> 3000).
func DefaultPrice(symbol string) float64 {
	base := strings.ToUpper(symbol)
	if i := strings.IndexAny(base, "-/_"); i > 0 {
		base = base[:i]
	}
	if p, ok := defaultPrices[base]; ok {
		return p
	}
	return fallbackPrice
}

// Simulator produces a bounded random walk around a seed price.
type Simulator struct {
	rng         *rand.Rand
	price       float64
	high        float64
	low         float64
	open        float64
	maxStepPct  float64
	minInterval time.Duration
	maxInterval time.Duration
}

// NewSimulator creates a walk starting at seed. maxStepPct is a percentage (0.2 = 0.2%).
func NewSimulator(seed float64, maxStepPct float64, minInterval, maxInterval time.Duration, rngSeed int64) *Simulator {
	if !domain.IsValidPrice(seed) {
		seed = fallbackPrice
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Simulator{
		rng:         rand.New(rand.NewSource(rngSeed)),
		price:       seed,
		high:        seed,
		low:         seed,
		open:        seed,
		maxStepPct:  maxStepPct,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
}

// Next advances the walk by one step of at most ±maxStepPct.
func (s *Simulator) Next() float64 {
	step := (s.rng.Float64()*2 - 1) * s.maxStepPct / 100
	next := s.price * (1 + step)
	if !domain.IsValidPrice(next) {
		next = s.price
	}
	s.price = next
	s.high = math.Max(s.high, next)
	s.low = math.Min(s.low, next)
	return next
}

// Interval returns a random delay in [minInterval, maxInterval].
func (s *Simulator) Interval() time.Duration {
	span := s.maxInterval - s.minInterval
	if span <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(s.rng.Int63n(int64(span)+1))
}

// Price returns the current walk price.
func (s *Simulator) Price() float64 {
	return s.price
}

// Update builds a snapshot update for the current walk state.
func (s *Simulator) Update(symbol string, at time.Time) domain.SnapshotUpdate {
	change := (s.price - s.open) / s.open * 100
	return domain.SnapshotUpdate{
		Symbol:           symbol,
		LastPrice:        domain.Float(s.price),
		MarkPrice:        domain.Float(s.price),
		IndexPrice:       domain.Float(s.price),
		High24h:          domain.Float(s.high),
		Low24h:           domain.Float(s.low),
		ChangePercent24h: domain.Float(change),
		Simulated:        true,
		Timestamp:        at,
	}
}
