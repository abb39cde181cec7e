package event

import "sudo_thrust/internal/domain"

// Type identifies an event kind.
type Type string

const (
	TypeTick      Type = "TICK"
	TypeSnapshot  Type = "SNAPSHOT"
	TypeTrades    Type = "TRADES"
	TypeFeedState Type = "FEED_STATE"
)

// Event is anything the engine consumes. Gen is the feed subscription
// generation that produced it; events from an older generation are stale.
type Event interface {
	GetType() Type
	GetGen() uint64
}

// BaseEvent carries the fields every event has.
type BaseEvent struct {
	Gen uint64 `json:"gen"`
}

func (e BaseEvent) GetGen() uint64 { return e.Gen }

// TickEvent carries one price tick. Pooled; see AcquireTickEvent.
type TickEvent struct {
	BaseEvent
	Tick domain.PriceTick
}

func (e *TickEvent) GetType() Type { return TypeTick }

// SnapshotEvent carries a partial market snapshot.
type SnapshotEvent struct {
	BaseEvent
	Update domain.SnapshotUpdate
}

func (e *SnapshotEvent) GetType() Type { return TypeSnapshot }

// TradesEvent carries a batch of recent trade prints.
type TradesEvent struct {
	BaseEvent
	Symbol string
	Trades []domain.TradePrint
}

func (e *TradesEvent) GetType() Type { return TypeTrades }

// FeedStateEvent reports a feed state transition.
type FeedStateEvent struct {
	BaseEvent
	Status domain.FeedStatus
}

func (e *FeedStateEvent) GetType() Type { return TypeFeedState }
