package notify

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"sudo_thrust/internal/domain"
)

const (
	DefaultThreshold = 10.0
	DefaultDisplay   = 2000 * time.Millisecond
)

// Kind is the direction of a PnL change.
type Kind string

const (
	KindProfit Kind = "profit"
	KindLoss   Kind = "loss"
)

// Event is a transient PnL change flash.
type Event struct {
	Seq        uint64    `json:"seq"`
	PositionID string    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Delta      float64   `json:"delta"`
	Kind       Kind      `json:"kind"`
	At         time.Time `json:"at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Notifier emits an Event whenever unrealized PnL of the displayed position moves
// more than threshold away from the last flash baseline. Events clear themselves
// after the display duration.
type Notifier struct {
	mu        sync.Mutex
	threshold float64
	display   time.Duration
	now       func() time.Time

	positionID string
	baseline   float64
	baselines  map[string]float64 // last flash baseline of positions not currently displayed
	active     *Event
	timer      *time.Timer
	seq        uint64

	onClear func(Event)
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithOnClear registers a callback run when an event expires.
func WithOnClear(fn func(Event)) Option {
	return func(n *Notifier) { n.onClear = fn }
}

// New creates a notifier. Non-positive arguments fall back to the defaults.
func New(threshold float64, display time.Duration, opts ...Option) *Notifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if display <= 0 {
		display = DefaultDisplay
	}
	n := &Notifier{
		threshold: threshold,
		display:   display,
		now:       time.Now,
		baselines: make(map[string]float64),
		logger:    slog.Default().With("module", "notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Observe feeds the latest reading of the displayed position.
func (n *Notifier) Observe(p domain.Position) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if p.ID != n.positionID {
		n.resetLocked(p.ID)
	}

	delta := p.UnrealizedPnl - n.baseline
	if math.IsNaN(delta) || math.Abs(delta) <= n.threshold {
		return Event{}, false
	}

	now := n.now()
	n.seq++
	ev := Event{
		Seq:        n.seq,
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Delta:      delta,
		Kind:       KindProfit,
		At:         now,
		ExpiresAt:  now.Add(n.display),
	}
	if delta < 0 {
		ev.Kind = KindLoss
	}
	n.baseline = p.UnrealizedPnl
	n.active = &ev

	if n.timer != nil {
		n.timer.Stop()
	}
	seq := ev.Seq
	n.timer = time.AfterFunc(n.display, func() { n.expire(seq) })

	return ev, true
}

// Reset detaches the displayed position and drops any active event. The position's
// baseline is kept, so displaying it again continues from its last flash.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked("")
}

// Forget discards everything known about a closed position.
func (n *Notifier) Forget(positionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.positionID == positionID {
		n.resetLocked("")
	}
	delete(n.baselines, positionID)
}

// Active returns the current event while it has not expired.
func (n *Notifier) Active() (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == nil || !n.now().Before(n.active.ExpiresAt) {
		return Event{}, false
	}
	return *n.active, true
}

// Baseline returns the PnL value of the last flash.
func (n *Notifier) Baseline() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.baseline
}

func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	if n.active == nil || n.active.Seq != seq {
		n.mu.Unlock()
		return
	}
	ev := *n.active
	n.active = nil
	n.timer = nil
	onClear := n.onClear
	n.mu.Unlock()

	if onClear != nil {
		onClear(ev)
	}
}

// Must be called with lock held
func (n *Notifier) resetLocked(positionID string) {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.active != nil {
		n.logger.Debug("pnl flash dropped", slog.String("position_id", n.active.PositionID))
	}
	if n.positionID != "" {
		n.baselines[n.positionID] = n.baseline
	}
	n.positionID = positionID
	n.baseline = n.baselines[positionID] // 0 for a position never displayed
	delete(n.baselines, positionID)
	n.active = nil
}
