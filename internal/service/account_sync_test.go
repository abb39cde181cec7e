package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/ledger"
)

type fakeAccountBackend struct {
	mu         sync.Mutex
	configured bool
	accountErr error
	calls      int
}

func (b *fakeAccountBackend) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, errors.New("not used")
}

func (b *fakeAccountBackend) Account(ctx context.Context) (domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.accountErr != nil {
		return domain.Account{}, b.accountErr
	}
	return domain.Account{WalletBalance: 1500, FreeCollateral: 1200}, nil
}

func (b *fakeAccountBackend) Positions(ctx context.Context) ([]domain.RemotePosition, error) {
	return []domain.RemotePosition{
		{Symbol: "ETH-PERP", Side: domain.SideShort, Quantity: 2, AvgEntryPrice: 3000},
		{Symbol: "BTC-PERP", Side: domain.SideLong, Quantity: 0.1, AvgEntryPrice: 50000},
	}, nil
}

func (b *fakeAccountBackend) Configured() bool { return b.configured }

func (b *fakeAccountBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestAccountSync_SyncOnce(t *testing.T) {
	l := ledger.New()
	l.Open("ETH-PERP", domain.SideLong, 1, 3000, 1)
	before, _ := l.Get("ETH-PERP")

	backend := &fakeAccountBackend{configured: true}
	as := NewAccountSync(backend, l, "", time.Second)

	if _, ok := as.Snapshot(); ok {
		t.Error("Snapshot should be empty before the first sync")
	}

	snap := as.SyncOnce(context.Background())
	if snap.Account.WalletBalance != 1500 || len(snap.Positions) != 2 || snap.LastError != "" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}

	// Reconciliation is advisory only.
	after, _ := l.Get("ETH-PERP")
	if after != before || len(l.Positions()) != 1 {
		t.Error("Local ledger must not be modified")
	}

	backend.accountErr = errors.New("503")
	failed := as.SyncOnce(context.Background())
	if failed.LastError != "503" || failed.Account.WalletBalance != 1500 {
		t.Errorf("Expected previous snapshot with error text, got %+v", failed)
	}
	if _, ok := as.Snapshot(); !ok {
		t.Error("Snapshot should remain available after a failed sync")
	}
}

func TestAccountSync_RunWithoutBackend(t *testing.T) {
	as := NewAccountSync(&fakeAccountBackend{}, nil, "@every 1s", time.Second)
	done := make(chan error, 1)
	go func() { done <- as.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately without a configured backend")
	}
}

func TestAccountSync_RunSchedules(t *testing.T) {
	backend := &fakeAccountBackend{configured: true}
	as := NewAccountSync(backend, nil, "@every 1s", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- as.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for backend.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if backend.callCount() < 2 {
		t.Errorf("Expected initial and scheduled sync, got %d calls", backend.callCount())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected nil after cancel, got %v", err)
	}
}

func TestAccountSync_InvalidSpec(t *testing.T) {
	as := NewAccountSync(&fakeAccountBackend{configured: true}, nil, "not a spec", time.Second)
	if err := as.Run(context.Background()); err == nil {
		t.Error("Expected error for invalid cron spec")
	}
}
