package service

import (
	"sort"
	"sync"
	"time"

	"sudo_thrust/internal/domain"
)

const (
	DefaultPriceWindow = 300
	DefaultTradeWindow = 50
)

// PricePoint is one entry of the rolling price window.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketCache holds the latest snapshot per symbol plus bounded price and trade windows.
type MarketCache struct {
	mu          sync.RWMutex
	snapshots   map[string]*domain.MarketSnapshot
	prices      map[string][]PricePoint
	trades      map[string][]domain.TradePrint
	priceWindow int
	tradeWindow int
}

// NewMarketCache creates a cache. Non-positive windows use the defaults.
func NewMarketCache(priceWindow, tradeWindow int) *MarketCache {
	if priceWindow <= 0 {
		priceWindow = DefaultPriceWindow
	}
	if tradeWindow <= 0 {
		tradeWindow = DefaultTradeWindow
	}
	return &MarketCache{
		snapshots:   make(map[string]*domain.MarketSnapshot),
		prices:      make(map[string][]PricePoint),
		trades:      make(map[string][]domain.TradePrint),
		priceWindow: priceWindow,
		tradeWindow: tradeWindow,
	}
}

// ApplyTick records tick as the last price and appends it to the price window.
func (c *MarketCache) ApplyTick(tick domain.PriceTick) domain.MarketSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snapshotLocked(tick.Symbol)
	snap.LastPrice = tick.Price
	snap.Simulated = tick.Simulated
	snap.UpdatedAt = tick.Timestamp

	window := append(c.prices[tick.Symbol], PricePoint{Price: tick.Price, Timestamp: tick.Timestamp})
	if over := len(window) - c.priceWindow; over > 0 {
		window = append(window[:0:0], window[over:]...)
	}
	c.prices[tick.Symbol] = window

	return *snap
}

// Merge applies a partial update. Absent fields keep their previous value.
func (c *MarketCache) Merge(u domain.SnapshotUpdate) domain.MarketSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snapshotLocked(u.Symbol)
	snap.Merge(u)
	return *snap
}

// AddTrades prepends trades (newest first) and trims to the trade window.
func (c *MarketCache) AddTrades(symbol string, trades []domain.TradePrint) []domain.TradePrint {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := make([]domain.TradePrint, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	merged := append(sorted, c.trades[symbol]...)
	if len(merged) > c.tradeWindow {
		merged = merged[:c.tradeWindow]
	}
	c.trades[symbol] = merged

	result := make([]domain.TradePrint, len(merged))
	copy(result, merged)
	return result
}

// Reset drops everything known about symbol. Used on symbol switch.
func (c *MarketCache) Reset(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.snapshots, symbol)
	delete(c.prices, symbol)
	delete(c.trades, symbol)
}

// Snapshot returns the snapshot for symbol.
func (c *MarketCache) Snapshot(symbol string) (domain.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[symbol]
	if !ok {
		return domain.MarketSnapshot{}, false
	}
	return *snap, true
}

// Snapshots returns all snapshots sorted by symbol.
func (c *MarketCache) Snapshots() []domain.MarketSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.MarketSnapshot, 0, len(c.snapshots))
	for _, snap := range c.snapshots {
		result = append(result, *snap)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// LastPrice returns the last known price for symbol.
func (c *MarketCache) LastPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[symbol]
	if !ok || !domain.IsValidPrice(snap.LastPrice) {
		return 0, false
	}
	return snap.LastPrice, true
}

// PriceHistory returns a copy of the rolling price window, oldest first.
func (c *MarketCache) PriceHistory(symbol string) []PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]PricePoint, len(c.prices[symbol]))
	copy(result, c.prices[symbol])
	return result
}

// RecentTrades returns a copy of the trade window, newest first.
func (c *MarketCache) RecentTrades(symbol string) []domain.TradePrint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.TradePrint, len(c.trades[symbol]))
	copy(result, c.trades[symbol])
	return result
}

// Must be called with lock held
func (c *MarketCache) snapshotLocked(symbol string) *domain.MarketSnapshot {
	snap, ok := c.snapshots[symbol]
	if !ok {
		snap = &domain.MarketSnapshot{Symbol: symbol}
		c.snapshots[symbol] = snap
	}
	return snap
}
