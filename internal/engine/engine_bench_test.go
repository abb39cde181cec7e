package engine

import (
	"testing"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/ledger"
	"sudo_thrust/internal/notify"
	"sudo_thrust/internal/service"
)

// BenchmarkEngine_HandleTick measures the tick hot path with an open position.
func BenchmarkEngine_HandleTick(b *testing.B) {
	l := ledger.New()
	l.Open("BTC-PERP", domain.SideLong, 0.2, 50000, 10)
	e := New(16, nil, service.NewMarketCache(0, 0), l, notify.New(10, time.Second), nil, &infra.Metrics{})
	e.SetDisplayed("BTC-PERP")

	tick := domain.PriceTick{Symbol: "BTC-PERP", Timestamp: time.Now()}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		tick.Price = 50000 + float64(i%100)
		e.handleTick(tick)
	}
}
