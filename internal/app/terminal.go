package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/engine"
	"sudo_thrust/internal/event"
	"sudo_thrust/internal/execution"
	"sudo_thrust/internal/feed"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/infra/bluefin"
	"sudo_thrust/internal/infra/storage"
	"sudo_thrust/internal/ledger"
	"sudo_thrust/internal/notify"
	"sudo_thrust/internal/server"
	"sudo_thrust/internal/service"
	"sudo_thrust/internal/strategy"

	"golang.org/x/sync/errgroup"
)

const (
	inboxSize       = 1024
	defaultLeverage = 10
)

// generationFunc lets the engine read the feed generation before the feed exists.
type generationFunc func() uint64

func (f generationFunc) Generation() uint64 { return f() }

// Terminal wires the feed, engine, executor and browser surface together.
// It implements server.Terminal.
type Terminal struct {
	cfg     *infra.Config
	store   *storage.Storage
	metrics *infra.Metrics
	logger  *slog.Logger

	client   *bluefin.Client
	cache    *service.MarketCache
	ledger   *ledger.Ledger
	capital  *ledger.Capital
	notifier *notify.Notifier
	hub      *server.Hub
	engine   *engine.Engine
	feed     *feed.Feed
	executor *execution.Executor
	wallet   *infra.DemoWallet
	markets  *service.MarketService
	account  *service.AccountSync
	server   *server.Server

	symMu    sync.Mutex // serializes symbol switches
	mu       sync.RWMutex
	symbol   string
	leverage int
}

// NewTerminal builds every component from cfg. store and icons may be nil.
func NewTerminal(cfg *infra.Config, store *storage.Storage, icons *infra.IconDownloader, metrics *infra.Metrics) *Terminal {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	t := &Terminal{
		cfg:      cfg,
		store:    store,
		metrics:  metrics,
		logger:   slog.Default().With("module", "terminal"),
		client:   bluefin.NewClient(cfg),
		cache:    service.NewMarketCache(cfg.Feed.PriceWindow, cfg.Feed.TradeWindow),
		ledger:   ledger.New(),
		capital:  ledger.NewCapital(cfg.Trading.InitialCapital),
		wallet:   infra.NewDemoWallet(cfg.Trading.InitialCapital),
		leverage: defaultLeverage,
	}

	t.hub = server.NewHub(func() any { return t.State() }, metrics)
	t.notifier = notify.New(cfg.Notify.Threshold, cfg.FlashDisplay(),
		notify.WithOnClear(func(ev notify.Event) { t.hub.Publish(engine.MsgPnlFlashClear, ev) }))

	var fd *feed.Feed
	t.engine = engine.New(inboxSize, generationFunc(func() uint64 { return fd.Generation() }),
		t.cache, t.ledger, t.notifier, t.hub, metrics)
	if sma, err := strategy.NewSMACross(cfg.Trend.ShortPeriod, cfg.Trend.LongPeriod); err != nil {
		t.logger.Warn("Trend tracker disabled", slog.Any("error", err))
	} else {
		t.engine.SetTrend(sma)
	}
	fd = feed.New(newTransport(cfg, t.client), feed.Config{
		MaxAttempts:    cfg.Feed.MaxAttempts,
		ReconnectDelay: cfg.ReconnectDelay(),
		SimMinInterval: cfg.SimMinInterval(),
		SimMaxInterval: cfg.SimMaxInterval(),
		SimMaxStepPct:  cfg.Feed.SimMaxStepPct,
	}, t.engine.Inbox(), metrics)
	t.feed = fd

	t.executor = execution.New(t.ledger, t.capital, t.client, t.wallet, execution.Config{
		MaxLeverage:    cfg.Trading.MaxLeverage,
		BackendTimeout: cfg.BackendTimeout(),
		RequireWallet:  cfg.Trading.RequireWallet,
	}, metrics)

	// Typed nils must not reach the interface parameters.
	var marketStore service.MarketStore
	if store != nil {
		marketStore = store
	}
	var iconFetcher service.IconFetcher
	if icons != nil {
		iconFetcher = icons
	}
	t.markets = service.NewMarketService(t.client, marketStore, iconFetcher)
	t.account = service.NewAccountSync(t.client, t.ledger, cfg.Trading.AccountSyncSpec, cfg.BackendTimeout())
	t.server = server.New(cfg.Server.Addr, t, t.hub)

	if addr := cfg.Trading.WalletAddress; addr != "" {
		if err := t.wallet.Connect(addr); err != nil {
			t.logger.Warn("Configured wallet address rejected", slog.Any("error", err))
		}
	}
	t.restorePreferences()
	return t
}

func newTransport(cfg *infra.Config, client *bluefin.Client) domain.FeedTransport {
	switch cfg.Feed.Transport {
	case "ws":
		return bluefin.NewStreamTransport(cfg.API.Bluefin.WSURL, cfg.API.Bluefin.Channel)
	case "poll":
		return bluefin.NewPollTransport(client, cfg.PollInterval(), 3)
	default:
		return nil
	}
}

func (t *Terminal) restorePreferences() {
	t.symbol = strings.ToUpper(t.cfg.Trading.DefaultSymbol)
	if t.store == nil {
		return
	}
	prefs, err := t.store.LoadConfigMap()
	if err != nil {
		t.logger.Warn("Failed to load preferences", slog.Any("error", err))
		return
	}
	if s := prefs[domain.ConfigKeyLastSymbol]; s != "" {
		t.symbol = s
	}
	if v, err := strconv.Atoi(prefs[domain.ConfigKeyLastLeverage]); err == nil {
		t.leverage = domain.ClampLeverage(v, t.cfg.Trading.MaxLeverage)
	}
}

// Run starts every component and blocks until ctx is cancelled or one of them fails.
func (t *Terminal) Run(ctx context.Context) error {
	event.Warmup()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return t.engine.Run(ctx) })
	g.Go(func() error { return t.hub.Run(ctx) })
	g.Go(func() error { return t.server.Run(ctx) })
	g.Go(func() error { return t.account.Run(ctx) })

	t.markets.StartBackground(ctx)
	if _, err := t.SetSymbol(t.Symbol()); err != nil {
		t.logger.Warn("Initial subscription failed", slog.Any("error", err))
	}

	g.Go(func() error {
		<-ctx.Done()
		t.Shutdown()
		return nil
	})

	t.logger.Info("Terminal running", slog.String("addr", t.cfg.Server.Addr), slog.String("symbol", t.Symbol()))
	return g.Wait()
}

// Shutdown stops the feed and records the last price of the displayed market.
func (t *Terminal) Shutdown() {
	t.feed.Close()
	t.persistLastPrice(t.Symbol())
}

// Symbol returns the displayed market.
func (t *Terminal) Symbol() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.symbol
}

// Markets returns the loaded market list, or the static list before the first load.
func (t *Terminal) Markets() ([]domain.Market, service.MarketOrigin) {
	markets, origin := t.markets.Markets()
	if len(markets) == 0 {
		return service.FallbackMarkets(), service.OriginFallback
	}
	return markets, origin
}

// State assembles the full browser view.
func (t *Terminal) State() server.State {
	t.mu.RLock()
	symbol, leverage := t.symbol, t.leverage
	t.mu.RUnlock()

	st := server.State{
		Symbol:           symbol,
		AvailableCapital: t.capital.Available(),
		CommittedCapital: t.capital.TotalCommitted(),
		TotalUnrealized:  t.ledger.TotalUnrealized(),
		Positions:        t.ledger.Positions(),
		Feed:             t.feed.Status(),
		PriceHistory:     t.cache.PriceHistory(symbol),
		RecentTrades:     t.cache.RecentTrades(symbol),
		Wallet: server.WalletState{
			Connected: t.wallet.Connected(),
			Address:   t.wallet.Address(),
			Balance:   t.wallet.Balance(),
			Required:  t.cfg.Trading.RequireWallet,
		},
		Leverage:    leverage,
		MaxLeverage: t.cfg.Trading.MaxLeverage,
	}
	if snap, ok := t.cache.Snapshot(symbol); ok {
		st.Snapshot = &snap
	}
	if levels, ok := t.engine.Trend(); ok && levels.Symbol == symbol {
		st.Trend = &levels
	}
	if flash, ok := t.notifier.Active(); ok {
		st.Flash = &flash
	}
	if remote, synced := t.account.Snapshot(); synced || remote.LastError != "" {
		st.Remote = &remote
	}
	return st
}

// SetSymbol switches the displayed market and resubscribes the feed.
func (t *Terminal) SetSymbol(symbol string) (domain.FeedStatus, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.FeedStatus{}, domain.ErrInvalidSymbol
	}

	var seed float64
	if _, origin := t.markets.Markets(); origin == service.OriginExchange || origin == service.OriginStorage {
		m, ok := t.markets.Find(symbol)
		if !ok {
			return domain.FeedStatus{}, fmt.Errorf("%s: %w", symbol, domain.ErrInvalidSymbol)
		}
		seed = m.LastPrice
	}

	t.symMu.Lock()
	defer t.symMu.Unlock()

	previous := t.Symbol()
	if previous != symbol {
		t.persistLastPrice(previous)
	}

	if p, ok := t.cache.LastPrice(symbol); ok {
		seed = p
	}
	t.feed.SeedPrice(symbol, seed)
	t.cache.Reset(symbol)

	if _, err := t.feed.Subscribe(symbol); err != nil {
		return domain.FeedStatus{}, err
	}
	t.engine.SetDisplayed(symbol)

	t.mu.Lock()
	t.symbol = symbol
	t.mu.Unlock()
	t.savePreference(domain.ConfigKeyLastSymbol, symbol)

	t.logger.Info("Symbol selected", slog.String("symbol", symbol), slog.String("previous", previous))
	return t.feed.Status(), nil
}

// ReconnectFeed retries the genuine transport for the displayed market.
func (t *Terminal) ReconnectFeed() domain.FeedStatus {
	t.feed.Reconnect()
	return t.feed.Status()
}

// OpenPosition opens a position on the displayed market at its last price.
func (t *Terminal) OpenPosition(ctx context.Context, req server.PositionRequest) (domain.Execution, error) {
	displayed := t.Symbol()
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		symbol = displayed
	}
	if symbol != displayed {
		return domain.Execution{}, domain.NewValidationError("symbol", "only the displayed market %s can be opened", displayed)
	}

	price, _ := t.cache.LastPrice(symbol)
	exec, err := t.executor.Open(ctx, execution.OpenRequest{
		Symbol:    symbol,
		Direction: req.Direction,
		Amount:    req.Amount,
		Leverage:  req.Leverage,
		Price:     price,
	})
	if err != nil {
		return domain.Execution{}, err
	}

	t.mu.Lock()
	t.leverage = req.Leverage
	t.mu.Unlock()
	t.savePreference(domain.ConfigKeyLastLeverage, strconv.Itoa(req.Leverage))

	t.engine.PositionChanged("opened", exec.Position, t.capital.Available())
	return exec, nil
}

// ClosePosition closes the position on any symbol.
func (t *Terminal) ClosePosition(ctx context.Context, symbol string) (domain.Execution, error) {
	exec, err := t.executor.Close(ctx, symbol)
	if err != nil {
		return domain.Execution{}, err
	}
	t.engine.PositionChanged("closed", exec.Position, t.capital.Available())
	t.persistLastPrice(exec.Position.Symbol)
	return exec, nil
}

func (t *Terminal) Deposit(amount float64) (float64, error) {
	return t.executor.Deposit(amount)
}

func (t *Terminal) QuickAmounts() []domain.QuickAmount {
	return t.executor.QuickAmounts()
}

func (t *Terminal) ConnectWallet(address string) error {
	return t.wallet.Connect(address)
}

func (t *Terminal) DisconnectWallet() {
	t.wallet.Disconnect()
}

func (t *Terminal) Metrics() infra.MetricsSnapshot {
	return t.metrics.Snapshot()
}

func (t *Terminal) savePreference(key, value string) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveConfig(key, value); err != nil {
		t.logger.Warn("Failed to save preference", slog.String("key", key), slog.Any("error", err))
	}
}

func (t *Terminal) persistLastPrice(symbol string) {
	if t.store == nil || symbol == "" {
		return
	}
	price, ok := t.cache.LastPrice(symbol)
	if !ok {
		return
	}
	if err := t.store.SetLastPrice(symbol, price); err != nil {
		t.logger.Debug("Failed to store last price", slog.String("symbol", symbol), slog.Any("error", err))
	}
}
