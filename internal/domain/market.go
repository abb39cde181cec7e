package domain

import "time"

// PriceTick is a single price observation for a symbol.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Simulated bool      `json:"simulated"`
}

// Valid reports whether the tick carries a usable price.
func (t PriceTick) Valid() bool {
	return t.Symbol != "" && IsValidPrice(t.Price)
}

// MarketSnapshot is the latest derived market view for a symbol.
type MarketSnapshot struct {
	Symbol           string    `json:"symbol"`
	LastPrice        float64   `json:"last_price"`
	IndexPrice       float64   `json:"index_price"`
	MarkPrice        float64   `json:"mark_price"`
	High24h          float64   `json:"high_24h"`
	Low24h           float64   `json:"low_24h"`
	Volume24h        float64   `json:"volume_24h"`
	ChangePercent24h float64   `json:"change_percent_24h"`
	Simulated        bool      `json:"simulated"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SnapshotUpdate is a partial snapshot. Nil fields were absent from the source payload.
type SnapshotUpdate struct {
	Symbol           string
	LastPrice        *float64
	IndexPrice       *float64
	MarkPrice        *float64
	High24h          *float64
	Low24h           *float64
	Volume24h        *float64
	ChangePercent24h *float64
	Simulated        bool
	Timestamp        time.Time
}

// Merge applies present fields of u over s; absent fields keep their previous value.
func (s *MarketSnapshot) Merge(u SnapshotUpdate) {
	if s.Symbol == "" {
		s.Symbol = u.Symbol
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.LastPrice, u.LastPrice)
	set(&s.IndexPrice, u.IndexPrice)
	set(&s.MarkPrice, u.MarkPrice)
	set(&s.High24h, u.High24h)
	set(&s.Low24h, u.Low24h)
	set(&s.Volume24h, u.Volume24h)
	set(&s.ChangePercent24h, u.ChangePercent24h)
	s.Simulated = u.Simulated
	if !u.Timestamp.IsZero() {
		s.UpdatedAt = u.Timestamp
	}
}

// Price picks the best available price: last, else mark, else index.
func (u SnapshotUpdate) Price() (float64, bool) {
	for _, p := range []*float64{u.LastPrice, u.MarkPrice, u.IndexPrice} {
		if p != nil && IsValidPrice(*p) {
			return *p, true
		}
	}
	return 0, false
}

// TradePrint is a single public trade from the recent-trades feed.
type TradePrint struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      OrderSide `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Float returns a pointer to v. Used to build partial snapshot updates.
func Float(v float64) *float64 {
	return &v
}
