package strategy_test

import (
	"testing"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/strategy"
)

func TestSMACross(t *testing.T) {
	// Setup: Short=3, Long=5
	sma, err := strategy.NewSMACross(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	sma.Reset("BTC-PERP")

	push := func(price float64) (strategy.Signal, bool) {
		return sma.OnTick(domain.PriceTick{Symbol: "BTC-PERP", Price: price, Timestamp: time.Now()})
	}

	// T1-T5: all 100, window fills, no previous averages yet
	for i := 0; i < 5; i++ {
		if sig, ok := push(100); ok {
			t.Errorf("T%d: Expected no signal, got %v", i, sig)
		}
	}

	// T6: Short(3)=133.3 > Long(5)=120, previously equal => golden cross
	sig, ok := push(200)
	if !ok || sig.Kind != strategy.GoldenCross {
		t.Fatalf("T6: Expected golden cross, got %v (%v)", sig.Kind, ok)
	}
	if sig.Price != 200 {
		t.Errorf("T6: Expected price 200, got %v", sig.Price)
	}

	// T7: Short=116.7, Long=110, still above
	if sig, ok := push(50); ok {
		t.Errorf("T7: Expected no signal, got %v", sig)
	}

	// T8: window [100,100,200,50,1]: Short=83.7 < Long=90.2 => dead cross
	sig, ok = push(1)
	if !ok || sig.Kind != strategy.DeadCross {
		t.Fatalf("T8: Expected dead cross, got %v (%v)", sig.Kind, ok)
	}

	lv, ok := sma.Levels()
	if !ok || lv.LongSMA <= lv.ShortSMA {
		t.Errorf("Expected long above short after dead cross, got %+v", lv)
	}
}

func TestSMACross_IgnoresOtherSymbolsAndResets(t *testing.T) {
	sma, _ := strategy.NewSMACross(2, 3)
	sma.Reset("ETH-PERP")

	for i := 0; i < 5; i++ {
		sma.OnTick(domain.PriceTick{Symbol: "BTC-PERP", Price: 100})
	}
	if _, ok := sma.Levels(); ok {
		t.Error("Ticks for other symbols must not fill the window")
	}

	for i := 0; i < 3; i++ {
		sma.OnTick(domain.PriceTick{Symbol: "ETH-PERP", Price: 10})
	}
	if _, ok := sma.Levels(); !ok {
		t.Fatal("Expected levels after a full window")
	}

	sma.Reset("SOL-PERP")
	if _, ok := sma.Levels(); ok {
		t.Error("Expected levels cleared after Reset")
	}
}

func TestNewSMACross_InvalidPeriods(t *testing.T) {
	tests := []struct{ short, long int }{{0, 5}, {5, 5}, {6, 5}}
	for _, tt := range tests {
		if _, err := strategy.NewSMACross(tt.short, tt.long); err == nil {
			t.Errorf("Expected error for %d/%d", tt.short, tt.long)
		}
	}
}
