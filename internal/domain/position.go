package domain

import (
	"math"
	"strings"
	"time"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for Long and -1 for Short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// OpenOrderSide is the order side that opens a position on s.
func (s Side) OpenOrderSide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// CloseOrderSide is the opposite order side, used to flatten a position on s.
func (s Side) CloseOrderSide() OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// ParseSide accepts "up"/"down", "long"/"short" and "buy"/"sell" in any case.
func ParseSide(direction string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up", "long", "buy":
		return SideLong, true
	case "down", "short", "sell":
		return SideShort, true
	default:
		return "", false
	}
}

// Position is an open leveraged position on one symbol.
type Position struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	Leverage      int       `json:"leverage"`
	NotionalValue float64   `json:"notional_value"`
	MarkPrice     float64   `json:"mark_price"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Reprice recomputes unrealized PnL from scratch against price.
func (p *Position) Reprice(price float64, at time.Time) {
	p.MarkPrice = price
	p.UnrealizedPnl = UnrealizedPnl(p.Side, p.EntryPrice, p.NotionalValue, price)
	p.UpdatedAt = at
}

// Margin is the capital backing the position (notional / leverage).
func (p *Position) Margin() float64 {
	return RequiredMargin(p.NotionalValue, p.Leverage)
}

// UnrealizedPnl computes ((price - entry) / entry) * notional * sign.
// entry must be > 0; callers validate it when the position is opened.
func UnrealizedPnl(side Side, entryPrice, notional, price float64) float64 {
	return ((price - entryPrice) / entryPrice) * notional * side.Sign()
}

// IsValidPrice reports whether p is a positive finite number.
func IsValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
