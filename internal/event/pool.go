package event

import (
	"sync"

	"sudo_thrust/internal/domain"
)

// tickPool reduces allocations on the tick path, which runs every few hundred ms per feed.
//
// Usage:
//
//	ev := AcquireTickEvent()
//	ev.Gen = gen
//	ev.Tick = tick
//	// ... hand off to the engine, which releases it after processing ...
//	ReleaseTickEvent(ev)
var tickPool = sync.Pool{
	New: func() interface{} {
		return &TickEvent{}
	},
}

// AcquireTickEvent gets a TickEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireTickEvent() *TickEvent {
	return tickPool.Get().(*TickEvent)
}

// ReleaseTickEvent returns a TickEvent to the pool.
func ReleaseTickEvent(ev *TickEvent) {
	if ev == nil {
		return
	}
	ev.Gen = 0
	ev.Tick = domain.PriceTick{}

	tickPool.Put(ev)
}

// Warmup pre-allocates tick events to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 256

	evs := make([]*TickEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireTickEvent())
	}
	for _, ev := range evs {
		ReleaseTickEvent(ev)
	}
}
