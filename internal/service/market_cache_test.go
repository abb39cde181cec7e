package service

import (
	"testing"
	"time"

	"sudo_thrust/internal/domain"
)

func TestMarketCache_MergeKeepsKnownFields(t *testing.T) {
	c := NewMarketCache(0, 0)

	c.Merge(domain.SnapshotUpdate{
		Symbol:    "ETH-PERP",
		LastPrice: domain.Float(3000),
		High24h:   domain.Float(3100),
		Low24h:    domain.Float(2900),
	})
	snap := c.Merge(domain.SnapshotUpdate{Symbol: "ETH-PERP", Volume24h: domain.Float(12345)})

	if snap.LastPrice != 3000 || snap.High24h != 3100 || snap.Low24h != 2900 {
		t.Errorf("Known fields regressed: %+v", snap)
	}
	if snap.Volume24h != 12345 {
		t.Errorf("Expected volume 12345, got %v", snap.Volume24h)
	}
}

func TestMarketCache_ApplyTickWindow(t *testing.T) {
	c := NewMarketCache(3, 0)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		c.ApplyTick(domain.PriceTick{Symbol: "BTC-PERP", Price: float64(100 + i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	history := c.PriceHistory("BTC-PERP")
	if len(history) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(history))
	}
	if history[0].Price != 102 || history[2].Price != 104 {
		t.Errorf("Unexpected window: %+v", history)
	}

	price, ok := c.LastPrice("BTC-PERP")
	if !ok || price != 104 {
		t.Errorf("Expected last price 104, got %v", price)
	}
}

func TestMarketCache_TradesNewestFirst(t *testing.T) {
	c := NewMarketCache(0, 3)
	base := time.Unix(1700000000, 0)

	c.AddTrades("SOL-PERP", []domain.TradePrint{
		{Price: 100, Timestamp: base},
		{Price: 101, Timestamp: base.Add(time.Second)},
	})
	got := c.AddTrades("SOL-PERP", []domain.TradePrint{
		{Price: 102, Timestamp: base.Add(2 * time.Second)},
		{Price: 103, Timestamp: base.Add(3 * time.Second)},
	})

	want := []float64{103, 102, 101}
	if len(got) != len(want) {
		t.Fatalf("Expected %d trades, got %d", len(want), len(got))
	}
	for i, tr := range got {
		if tr.Price != want[i] {
			t.Errorf("trade %d: expected %v, got %v", i, want[i], tr.Price)
		}
	}
}

func TestMarketCache_Reset(t *testing.T) {
	c := NewMarketCache(0, 0)
	c.ApplyTick(domain.PriceTick{Symbol: "BTC-PERP", Price: 50000, Timestamp: time.Now()})
	c.ApplyTick(domain.PriceTick{Symbol: "ETH-PERP", Price: 3000, Timestamp: time.Now()})

	c.Reset("BTC-PERP")

	if _, ok := c.Snapshot("BTC-PERP"); ok {
		t.Error("BTC-PERP snapshot should be gone")
	}
	if len(c.PriceHistory("BTC-PERP")) != 0 {
		t.Error("BTC-PERP history should be gone")
	}
	if _, ok := c.LastPrice("ETH-PERP"); !ok {
		t.Error("Other symbols should be untouched")
	}
	if all := c.Snapshots(); len(all) != 1 || all[0].Symbol != "ETH-PERP" {
		t.Errorf("Unexpected snapshots: %+v", all)
	}
}
