package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/event"
	"sudo_thrust/internal/infra"
)

// Config controls retry and simulation behaviour.
type Config struct {
	MaxAttempts    int
	ReconnectDelay time.Duration
	SimMinInterval time.Duration
	SimMaxInterval time.Duration
	SimMaxStepPct  float64
	Seed           int64 // 0 = seeded from the clock
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		ReconnectDelay: 3 * time.Second,
		SimMinInterval: 2 * time.Second,
		SimMaxInterval: 5 * time.Second,
		SimMaxStepPct:  0.2,
	}
}

// Feed keeps exactly one symbol subscribed at a time. Every subscription gets a new
// generation number and every event it emits is stamped with it, so consumers can
// drop events from a replaced subscription.
//
// Transport failures never escape: they are retried with a fixed delay and, once
// MaxAttempts is reached, the feed switches to a local random walk.
type Feed struct {
	transport domain.FeedTransport
	cfg       Config
	out       chan<- event.Event
	metrics   *infra.Metrics
	logger    *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	subMu  sync.Mutex // serializes Subscribe, Reconnect and Close
	cancel context.CancelFunc
	done   chan struct{}

	gen atomic.Uint64

	mu         sync.RWMutex
	status     domain.FeedStatus
	lastPrices map[string]float64
	simRuns    int64
}

// New creates an idle feed. transport may be nil, in which case every subscription is simulated.
func New(transport domain.FeedTransport, cfg Config, out chan<- event.Event, metrics *infra.Metrics) *Feed {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.SimMinInterval <= 0 {
		cfg.SimMinInterval = def.SimMinInterval
	}
	if cfg.SimMaxInterval <= 0 {
		cfg.SimMaxInterval = def.SimMaxInterval
	}
	if cfg.SimMaxInterval > domain.MaxSimulatedTickInterval {
		cfg.SimMaxInterval = domain.MaxSimulatedTickInterval
	}
	if cfg.SimMinInterval > cfg.SimMaxInterval {
		cfg.SimMinInterval = cfg.SimMaxInterval
	}
	if cfg.SimMaxStepPct <= 0 {
		cfg.SimMaxStepPct = def.SimMaxStepPct
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}

	name := "none"
	if transport != nil {
		name = transport.Name()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		transport:  transport,
		cfg:        cfg,
		out:        out,
		metrics:    metrics,
		logger:     slog.Default().With("module", "feed", "transport", name),
		baseCtx:    ctx,
		baseCancel: cancel,
		status:     domain.FeedStatus{State: domain.FeedIdle, Transport: name},
		lastPrices: make(map[string]float64),
	}
}

// Subscribe replaces the active subscription with one for symbol. The previous
// subscription is fully stopped before Subscribe returns. Returns the new generation.
func (f *Feed) Subscribe(symbol string) (uint64, error) {
	if symbol == "" {
		return 0, domain.ErrInvalidSymbol
	}

	f.subMu.Lock()
	defer f.subMu.Unlock()

	if f.baseCtx.Err() != nil {
		return 0, errors.New("feed closed")
	}
	return f.restartLocked(symbol), nil
}

// Reconnect resets the attempt count and retries the genuine transport for the
// current symbol. Returns false when nothing is subscribed.
func (f *Feed) Reconnect() bool {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	symbol := f.Status().Symbol
	if symbol == "" || f.baseCtx.Err() != nil {
		return false
	}
	f.logger.Info("Manual reconnect", slog.String("symbol", symbol))
	f.restartLocked(symbol)
	return true
}

// Close stops the active subscription and waits for it to exit.
func (f *Feed) Close() {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	f.gen.Add(1)
	f.stopLocked()
	f.baseCancel()

	f.mu.Lock()
	f.status = domain.FeedStatus{State: domain.FeedIdle, Transport: f.status.Transport, Generation: f.gen.Load()}
	f.mu.Unlock()
	f.metrics.SetFeedSimulated(false)
}

// Generation returns the generation of the active subscription.
func (f *Feed) Generation() uint64 {
	return f.gen.Load()
}

// Status returns the advisory feed status.
func (f *Feed) Status() domain.FeedStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// SeedPrice records a known price for symbol, used as the simulator's starting point.
func (f *Feed) SeedPrice(symbol string, price float64) {
	if !domain.IsValidPrice(price) {
		return
	}
	f.mu.Lock()
	f.lastPrices[symbol] = price
	f.mu.Unlock()
}

// Must be called with subMu held
func (f *Feed) restartLocked(symbol string) uint64 {
	gen := f.gen.Add(1) // in-flight events of the old subscription are stale from here on
	f.stopLocked()

	ctx, cancel := context.WithCancel(f.baseCtx)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done

	f.setStatus(ctx, gen, symbol, domain.FeedConnecting, 0, "")
	go f.run(ctx, gen, symbol, done)
	return gen
}

// Must be called with subMu held
func (f *Feed) stopLocked() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
	f.cancel = nil
	f.done = nil
}

func (f *Feed) run(ctx context.Context, gen uint64, symbol string, done chan struct{}) {
	defer close(done)

	if f.transport == nil {
		f.simulate(ctx, gen, symbol, 0, "no transport configured")
		return
	}

	attempt := 0
	for {
		sk := &sink{feed: f, ctx: ctx, gen: gen, symbol: symbol}
		err := f.transport.Run(ctx, symbol, sk)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = domain.ErrFeedUnavailable
		}
		if sk.connected.Load() {
			attempt = 0 // the connection was good for a while; start a fresh retry budget
		}
		attempt++
		f.metrics.RecordReconnectAttempt()

		f.logger.Warn("Feed transport failed",
			slog.String("symbol", symbol),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.cfg.MaxAttempts),
			slog.Any("error", err))

		var netErr *domain.NetworkError
		fatal := errors.As(err, &netErr) && !netErr.IsRetriable()
		if fatal || attempt >= f.cfg.MaxAttempts {
			f.setStatus(ctx, gen, symbol, domain.FeedFailed, attempt, err.Error())
			f.simulate(ctx, gen, symbol, attempt, err.Error())
			return
		}

		f.setStatus(ctx, gen, symbol, domain.FeedReconnecting, attempt, err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

// simulate emits synthetic ticks until ctx is cancelled.
func (f *Feed) simulate(ctx context.Context, gen uint64, symbol string, attempt int, reason string) {
	f.mu.Lock()
	seed, ok := f.lastPrices[symbol]
	f.simRuns++
	rngSeed := f.cfg.Seed + f.simRuns
	f.mu.Unlock()
	if !ok {
		seed = DefaultPrice(symbol)
	}

	sim := NewSimulator(seed, f.cfg.SimMaxStepPct, f.cfg.SimMinInterval, f.cfg.SimMaxInterval, rngSeed)
	f.logger.Warn("Entering simulated mode",
		slog.String("symbol", symbol),
		slog.Float64("seed_price", seed),
		slog.String("reason", reason))
	f.setStatus(ctx, gen, symbol, domain.FeedSimulated, attempt, reason)

	for {
		price := sim.Next()
		now := time.Now()

		f.emit(ctx, &event.SnapshotEvent{BaseEvent: event.BaseEvent{Gen: gen}, Update: sim.Update(symbol, now)})
		f.emitTick(ctx, gen, domain.PriceTick{Symbol: symbol, Price: price, Timestamp: now, Simulated: true})
		f.emit(ctx, &event.TradesEvent{
			BaseEvent: event.BaseEvent{Gen: gen},
			Symbol:    symbol,
			Trades:    []domain.TradePrint{simulatedTrade(sim, symbol, price, now)},
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(sim.Interval()):
		}
	}
}

func simulatedTrade(sim *Simulator, symbol string, price float64, at time.Time) domain.TradePrint {
	side := domain.OrderSideBuy
	if sim.rng.Intn(2) == 0 {
		side = domain.OrderSideSell
	}
	return domain.TradePrint{
		Symbol:    symbol,
		Price:     price,
		Quantity:  (sim.rng.Float64()*10 + 0.1) * fallbackPrice / price,
		Side:      side,
		Timestamp: at,
	}
}

func (f *Feed) setStatus(ctx context.Context, gen uint64, symbol string, state domain.FeedState, attempt int, lastErr string) {
	if f.gen.Load() != gen {
		return
	}

	f.mu.Lock()
	if lastErr == "" && state != domain.FeedConnected {
		lastErr = f.status.LastError
	}
	f.status = domain.FeedStatus{
		Symbol:     symbol,
		State:      state,
		Transport:  f.status.Transport,
		Attempt:    attempt,
		LastError:  lastErr,
		Simulated:  state == domain.FeedSimulated,
		Generation: gen,
	}
	status := f.status
	f.mu.Unlock()

	f.metrics.SetFeedSimulated(status.Simulated)
	f.emit(ctx, &event.FeedStateEvent{BaseEvent: event.BaseEvent{Gen: gen}, Status: status})
}

func (f *Feed) emitTick(ctx context.Context, gen uint64, tick domain.PriceTick) {
	f.mu.Lock()
	f.lastPrices[tick.Symbol] = tick.Price
	f.mu.Unlock()

	ev := event.AcquireTickEvent()
	ev.Gen = gen
	ev.Tick = tick
	if !f.emit(ctx, ev) {
		event.ReleaseTickEvent(ev)
	}
}

func (f *Feed) emit(ctx context.Context, ev event.Event) bool {
	if f.out == nil {
		return false
	}
	select {
	case f.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// sink adapts transport callbacks to stamped events.
type sink struct {
	feed      *Feed
	ctx       context.Context
	gen       uint64
	symbol    string
	connected atomic.Bool
}

func (s *sink) OnConnected() {
	s.connected.Store(true)
	s.feed.logger.Info("Feed connected", slog.String("symbol", s.symbol))
	s.feed.setStatus(s.ctx, s.gen, s.symbol, domain.FeedConnected, 0, "")
}

func (s *sink) OnSnapshot(u domain.SnapshotUpdate) {
	if s.ctx.Err() != nil {
		return
	}
	if u.Symbol == "" {
		u.Symbol = s.symbol
	}
	if u.Symbol != s.symbol {
		return
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}

	s.feed.emit(s.ctx, &event.SnapshotEvent{BaseEvent: event.BaseEvent{Gen: s.gen}, Update: u})
	if price, ok := u.Price(); ok {
		s.feed.emitTick(s.ctx, s.gen, domain.PriceTick{Symbol: s.symbol, Price: price, Timestamp: u.Timestamp})
	}
}

func (s *sink) OnTrades(trades []domain.TradePrint) {
	if s.ctx.Err() != nil || len(trades) == 0 {
		return
	}
	s.feed.emit(s.ctx, &event.TradesEvent{BaseEvent: event.BaseEvent{Gen: s.gen}, Symbol: s.symbol, Trades: trades})
}
