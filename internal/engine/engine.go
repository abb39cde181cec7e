package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/event"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/ledger"
	"sudo_thrust/internal/notify"
	"sudo_thrust/internal/service"
	"sudo_thrust/internal/strategy"
)

// Message types pushed to the browser.
const (
	MsgTick          = "tick"
	MsgSnapshot      = "snapshot"
	MsgTrades        = "trades"
	MsgFeedState     = "feed_state"
	MsgPnl           = "pnl"
	MsgPnlFlash      = "pnl_flash"
	MsgPnlFlashClear = "pnl_flash_clear"
	MsgPosition      = "position"
	MsgSignal        = "signal"
)

// GenerationSource reports the feed's current subscription generation.
type GenerationSource interface {
	Generation() uint64
}

// PositionUpdate is published when a position is opened or closed.
type PositionUpdate struct {
	Action   string          `json:"action"` // opened | closed
	Position domain.Position `json:"position"`
	Capital  float64         `json:"available_capital"`
}

// Engine is the single-threaded market event processor. Events are handled
// strictly in inbox order by the goroutine running Run.
type Engine struct {
	inbox    chan event.Event
	gen      GenerationSource
	cache    *service.MarketCache
	ledger   *ledger.Ledger
	notifier *notify.Notifier
	trend    *strategy.SMACross
	pub      domain.Publisher
	metrics  *infra.Metrics
	dumpPath string
	logger   *slog.Logger

	mu         sync.RWMutex // guards displayed and feedStatus for external reads
	displayed  string
	feedStatus domain.FeedStatus
}

// New creates an engine. pub may be nil.
func New(inboxSize int, gen GenerationSource, cache *service.MarketCache, l *ledger.Ledger, n *notify.Notifier, pub domain.Publisher, metrics *infra.Metrics) *Engine {
	if inboxSize <= 0 {
		inboxSize = 1024
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Engine{
		inbox:    make(chan event.Event, inboxSize),
		gen:      gen,
		cache:    cache,
		ledger:   l,
		notifier: n,
		pub:      pub,
		metrics:  metrics,
		dumpPath: "panic_dump.json",
		logger:   slog.Default().With("module", "engine"),
	}
}

// SetDumpPath sets where DumpState writes on a panic.
func (e *Engine) SetDumpPath(path string) {
	e.dumpPath = path
}

// SetTrend attaches a moving-average tracker for the displayed symbol. Call before Run.
func (e *Engine) SetTrend(trend *strategy.SMACross) {
	e.trend = trend
	if trend != nil {
		trend.Reset(e.Displayed())
	}
}

// Trend returns the current moving averages, if a tracker is attached and warm.
func (e *Engine) Trend() (strategy.Levels, bool) {
	if e.trend == nil {
		return strategy.Levels{}, false
	}
	return e.trend.Levels()
}

// Inbox returns the event channel. The feed sends here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// Run starts the event loop. It MUST be run in a single goroutine.
// A panic while processing dumps state and stops the loop with an error.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.logger.Info("Engine started")

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState(e.dumpPath)
			err = fmt.Errorf("engine halted: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopping...")
			return nil
		case ev := <-e.inbox:
			e.Process(ev)
		}
	}
}

// Process handles one event synchronously. Run calls it; tests may call it directly.
func (e *Engine) Process(ev event.Event) {
	if e.gen != nil && ev.GetGen() != e.gen.Generation() {
		e.metrics.RecordStaleDropped()
		if tick, ok := ev.(*event.TickEvent); ok {
			event.ReleaseTickEvent(tick)
		}
		return
	}

	switch ev := ev.(type) {
	case *event.TickEvent:
		tick := ev.Tick
		event.ReleaseTickEvent(ev)
		e.handleTick(tick)
	case *event.SnapshotEvent:
		snap := e.cache.Merge(ev.Update)
		e.pub.Publish(MsgSnapshot, snap)
	case *event.TradesEvent:
		e.cache.AddTrades(ev.Symbol, ev.Trades)
		e.pub.Publish(MsgTrades, ev.Trades)
	case *event.FeedStateEvent:
		e.mu.Lock()
		e.feedStatus = ev.Status
		e.mu.Unlock()
		e.pub.Publish(MsgFeedState, ev.Status)
	default:
		e.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (e *Engine) handleTick(tick domain.PriceTick) {
	if !tick.Valid() {
		return
	}
	start := time.Now()

	e.cache.ApplyTick(tick)
	e.pub.Publish(MsgTick, tick)

	if e.trend != nil {
		if sig, crossed := e.trend.OnTick(tick); crossed {
			e.pub.Publish(MsgSignal, sig)
		}
	}

	if pos, ok := e.ledger.OnPriceTick(tick); ok {
		e.pub.Publish(MsgPnl, pos)

		if e.notifier != nil && tick.Symbol == e.Displayed() {
			if flash, fired := e.notifier.Observe(pos); fired {
				e.metrics.RecordPnlFlash()
				e.pub.Publish(MsgPnlFlash, flash)
			}
		}
	}

	e.metrics.RecordTick(time.Since(start).Nanoseconds())
}

// SetDisplayed changes the symbol whose position drives PnL flashes.
func (e *Engine) SetDisplayed(symbol string) {
	e.mu.Lock()
	changed := e.displayed != symbol
	e.displayed = symbol
	e.mu.Unlock()

	if !changed {
		return
	}
	if e.notifier != nil {
		e.notifier.Reset()
	}
	if e.trend != nil {
		e.trend.Reset(symbol)
	}
}

// Displayed returns the displayed symbol.
func (e *Engine) Displayed() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.displayed
}

// FeedStatus returns the last feed status the engine processed.
func (e *Engine) FeedStatus() domain.FeedStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feedStatus
}

// PositionChanged publishes an open or close made outside the event loop.
func (e *Engine) PositionChanged(action string, p domain.Position, available float64) {
	if action == "closed" && e.notifier != nil {
		e.notifier.Forget(p.ID)
	}
	e.pub.Publish(MsgPosition, PositionUpdate{Action: action, Position: p, Capital: available})
}

// DumpState writes positions, snapshots and feed status to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	e.logger.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Displayed  string                  `json:"displayed"`
		FeedStatus domain.FeedStatus       `json:"feed_status"`
		Positions  []domain.Position       `json:"positions"`
		Snapshots  []domain.MarketSnapshot `json:"snapshots"`
	}{
		Displayed:  e.Displayed(),
		FeedStatus: e.FeedStatus(),
		Positions:  e.ledger.Positions(),
		Snapshots:  e.cache.Snapshots(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		e.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		e.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
