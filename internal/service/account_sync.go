package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sudo_thrust/internal/domain"

	"github.com/robfig/cron/v3"
)

// LocalPositions is the part of the ledger reconciliation reads.
type LocalPositions interface {
	Get(symbol string) (domain.Position, bool)
}

// AccountSync periodically pulls the backend account and positions into an advisory
// snapshot. It never mutates the local ledger.
type AccountSync struct {
	backend domain.TradingBackend
	local   LocalPositions
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	logger  *slog.Logger

	mu       sync.RWMutex
	snapshot domain.RemoteAccount
	synced   bool
	now      func() time.Time
}

// NewAccountSync creates a reconciler running on a cron spec such as "@every 10s".
func NewAccountSync(backend domain.TradingBackend, local LocalPositions, spec string, timeout time.Duration) *AccountSync {
	if spec == "" {
		spec = "@every 10s"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccountSync{
		backend: backend,
		local:   local,
		spec:    spec,
		timeout: timeout,
		cron:    cron.New(),
		logger:  slog.Default().With("module", "account_sync"),
		now:     time.Now,
	}
}

// Run schedules reconciliation and blocks until ctx is done.
// Without a configured backend it returns immediately.
func (a *AccountSync) Run(ctx context.Context) error {
	if a.backend == nil || !a.backend.Configured() {
		a.logger.Info("Trading backend not configured, account sync disabled")
		return nil
	}

	if _, err := a.cron.AddFunc(a.spec, func() { a.SyncOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid account sync spec %q: %w", a.spec, err)
	}

	a.cron.Start()
	a.logger.Info("Account sync started", slog.String("spec", a.spec))
	a.SyncOnce(ctx)

	<-ctx.Done()
	stopped := a.cron.Stop()
	<-stopped.Done()
	a.logger.Info("Account sync stopped")
	return nil
}

// SyncOnce fetches account and positions. On failure the previous snapshot is kept
// and only LastError changes.
func (a *AccountSync) SyncOnce(ctx context.Context) domain.RemoteAccount {
	if ctx.Err() != nil {
		return a.current()
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	account, err := a.backend.Account(callCtx)
	var positions []domain.RemotePosition
	if err == nil {
		positions, err = a.backend.Positions(callCtx)
	}

	a.mu.Lock()
	if err != nil {
		a.snapshot.LastError = err.Error()
		snap := a.snapshot
		a.mu.Unlock()
		a.logger.Warn("Account sync failed", slog.Any("error", err))
		return snap
	}
	a.snapshot = domain.RemoteAccount{
		Account:   account,
		Positions: positions,
		SyncedAt:  a.now(),
	}
	a.synced = true
	snap := a.snapshot
	a.mu.Unlock()

	a.reportDrift(positions)
	return snap
}

func (a *AccountSync) reportDrift(remote []domain.RemotePosition) {
	if a.local == nil {
		return
	}
	for _, rp := range remote {
		lp, ok := a.local.Get(rp.Symbol)
		switch {
		case !ok:
			a.logger.Info("Remote position not tracked locally",
				slog.String("symbol", rp.Symbol),
				slog.String("side", string(rp.Side)),
				slog.Float64("quantity", rp.Quantity))
		case lp.Side != rp.Side:
			a.logger.Warn("Remote position side differs",
				slog.String("symbol", rp.Symbol),
				slog.String("local", string(lp.Side)),
				slog.String("remote", string(rp.Side)))
		}
	}
}

// Snapshot returns the last reconciled snapshot and whether any sync has succeeded.
func (a *AccountSync) Snapshot() (domain.RemoteAccount, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot, a.synced
}

func (a *AccountSync) current() domain.RemoteAccount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}
