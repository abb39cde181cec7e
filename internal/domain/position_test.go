package domain

import (
	"math"
	"testing"
	"time"
)

func TestUnrealizedPnl(t *testing.T) {
	tests := []struct {
		name     string
		side     Side
		entry    float64
		notional float64
		price    float64
		want     float64
	}{
		{"long up 1%", SideLong, 50000, 10000, 50500, 100},
		{"long down 1%", SideLong, 50000, 10000, 49500, -100},
		{"short down 1%", SideShort, 50000, 10000, 49500, 100},
		{"short up 1%", SideShort, 50000, 10000, 50500, -100},
		{"flat", SideLong, 3000, 500, 3000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnrealizedPnl(tt.side, tt.entry, tt.notional, tt.price)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestUnrealizedPnlMonotonic(t *testing.T) {
	prev := math.Inf(-1)
	prevShort := math.Inf(1)
	for price := 90.0; price <= 110; price += 0.5 {
		long := UnrealizedPnl(SideLong, 100, 1000, price)
		short := UnrealizedPnl(SideShort, 100, 1000, price)
		if long <= prev {
			t.Fatalf("long PnL not increasing at %v: %v <= %v", price, long, prev)
		}
		if short >= prevShort {
			t.Fatalf("short PnL not decreasing at %v: %v >= %v", price, short, prevShort)
		}
		prev, prevShort = long, short
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in   string
		want Side
		ok   bool
	}{
		{"up", SideLong, true},
		{"LONG", SideLong, true},
		{" buy ", SideLong, true},
		{"down", SideShort, true},
		{"Short", SideShort, true},
		{"sell", SideShort, true},
		{"sideways", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSide(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSide(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSideOrderSides(t *testing.T) {
	if SideLong.OpenOrderSide() != OrderSideBuy || SideLong.CloseOrderSide() != OrderSideSell {
		t.Error("Long should open with BUY and close with SELL")
	}
	if SideShort.OpenOrderSide() != OrderSideSell || SideShort.CloseOrderSide() != OrderSideBuy {
		t.Error("Short should open with SELL and close with BUY")
	}
}

func TestPositionReprice(t *testing.T) {
	p := Position{Side: SideLong, EntryPrice: 100, NotionalValue: 1000, Leverage: 10}
	now := time.Now()

	// Only the latest price matters.
	for _, price := range []float64{100, 105, 103} {
		p.Reprice(price, now)
	}
	direct := Position{Side: SideLong, EntryPrice: 100, NotionalValue: 1000, Leverage: 10}
	direct.Reprice(103, now)

	if p.UnrealizedPnl != direct.UnrealizedPnl {
		t.Errorf("Expected %v, got %v", direct.UnrealizedPnl, p.UnrealizedPnl)
	}
	if p.MarkPrice != 103 {
		t.Errorf("Expected mark 103, got %v", p.MarkPrice)
	}
	if p.Margin() != 100 {
		t.Errorf("Expected margin 100, got %v", p.Margin())
	}
}

func TestIsValidPrice(t *testing.T) {
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if IsValidPrice(p) {
			t.Errorf("IsValidPrice(%v) should be false", p)
		}
	}
	if !IsValidPrice(0.0001) {
		t.Error("IsValidPrice(0.0001) should be true")
	}
}

func TestSnapshotMerge(t *testing.T) {
	var s MarketSnapshot
	s.Merge(SnapshotUpdate{Symbol: "ETH-PERP", LastPrice: Float(3000), High24h: Float(3100)})
	s.Merge(SnapshotUpdate{Symbol: "ETH-PERP", MarkPrice: Float(3001)})

	if s.LastPrice != 3000 || s.High24h != 3100 || s.MarkPrice != 3001 {
		t.Errorf("Absent fields regressed: %+v", s)
	}

	u := SnapshotUpdate{IndexPrice: Float(10), MarkPrice: Float(11)}
	if p, ok := u.Price(); !ok || p != 11 {
		t.Errorf("Expected mark price 11, got %v %v", p, ok)
	}
	if _, ok := (SnapshotUpdate{LastPrice: Float(0)}).Price(); ok {
		t.Error("Zero price should not be usable")
	}
}
