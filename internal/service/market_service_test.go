package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra/storage"
)

type fakeSource struct {
	markets []domain.Market
	err     error
}

func (f *fakeSource) ExchangeInfo(ctx context.Context) ([]domain.Market, error) {
	return f.markets, f.err
}

type fakeIcons struct {
	mu       sync.Mutex
	assets   []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fail     map[string]bool
}

func (f *fakeIcons) DownloadIcon(ctx context.Context, asset string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.assets = append(f.assets, asset)
	f.mu.Unlock()
	if f.fail[asset] {
		return "", errors.New("404")
	}
	return "/icons/" + asset + ".png", nil
}

func newStore(t *testing.T) *storage.Storage {
	s, err := storage.NewStorage(filepath.Join(t.TempDir(), "markets.db"))
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarketService_ExchangeFirstAndPersisted(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{markets: []domain.Market{
		{Symbol: "SOL-PERP", BaseAsset: "SOL", QuoteAsset: "USDC", Status: "ACTIVE"},
		{Symbol: "ETH-PERP", BaseAsset: "ETH", QuoteAsset: "USDC", Status: "ACTIVE"},
	}}
	svc := NewMarketService(src, store, nil)

	markets, origin := svc.Load(context.Background())
	if origin != OriginExchange {
		t.Fatalf("Expected exchange origin, got %s", origin)
	}
	if len(markets) != 2 || markets[0].Symbol != "ETH-PERP" {
		t.Errorf("Expected sorted markets, got %+v", markets)
	}

	stored, err := store.GetAllMarkets()
	if err != nil || len(stored) != 2 {
		t.Fatalf("Expected 2 stored markets, got %d (%v)", len(stored), err)
	}
}

func TestMarketService_FallsBackToStorage(t *testing.T) {
	store := newStore(t)
	if err := store.UpsertMarkets([]domain.Market{{Symbol: "AVAX-PERP", BaseAsset: "AVAX", Status: "ACTIVE"}}); err != nil {
		t.Fatalf("UpsertMarkets failed: %v", err)
	}

	svc := NewMarketService(&fakeSource{err: errors.New("timeout")}, store, nil)
	markets, origin := svc.Load(context.Background())
	if origin != OriginStorage || len(markets) != 1 || markets[0].Symbol != "AVAX-PERP" {
		t.Errorf("Expected stored market, got %s %+v", origin, markets)
	}
}

func TestMarketService_StaticFallback(t *testing.T) {
	svc := NewMarketService(&fakeSource{err: errors.New("timeout")}, nil, nil)

	markets, origin := svc.Load(context.Background())
	if origin != OriginFallback {
		t.Fatalf("Expected fallback origin, got %s", origin)
	}
	if len(markets) != 6 {
		t.Fatalf("Expected 6 fallback markets, got %d", len(markets))
	}
	if m, ok := svc.Find("eth-perp"); !ok || m.BaseAsset != "ETH" || m.QuoteAsset != "USDC" {
		t.Errorf("Expected ETH-PERP in fallback, got %+v", m)
	}
	if _, ok := svc.Find("DOGE-PERP"); ok {
		t.Error("DOGE-PERP should not be listed")
	}
}

func TestMarketService_EmptyExchangeListFallsThrough(t *testing.T) {
	svc := NewMarketService(&fakeSource{}, nil, nil)
	if _, origin := svc.Load(context.Background()); origin != OriginFallback {
		t.Errorf("Expected fallback for empty exchange list, got %s", origin)
	}
}

func TestMarketService_SyncIcons(t *testing.T) {
	store := newStore(t)
	var markets []domain.Market
	for _, b := range []string{"BTC", "ETH", "SOL", "SUI", "AVAX", "ARB", "DOGE", "APT"} {
		markets = append(markets, domain.Market{Symbol: b + "-PERP", BaseAsset: b, Status: "ACTIVE"})
	}
	icons := &fakeIcons{fail: map[string]bool{"APT": true}}
	svc := NewMarketService(&fakeSource{markets: markets}, store, icons)
	svc.Load(context.Background())

	if n := svc.SyncIcons(context.Background()); n != 7 {
		t.Errorf("Expected 7 icons downloaded, got %d", n)
	}
	if max := icons.maxSeen.Load(); max > 5 {
		t.Errorf("Expected at most 5 concurrent downloads, saw %d", max)
	}

	m, _ := svc.Find("ETH-PERP")
	if m.IconPath != "/icons/ETH.png" {
		t.Errorf("Expected icon path set, got %q", m.IconPath)
	}
	stored, _ := store.GetMarket("ETH-PERP")
	if stored == nil || stored.IconPath != "/icons/ETH.png" {
		t.Errorf("Expected icon path stored, got %+v", stored)
	}

	// A reload keeps stored icon paths, so only the failed one is retried.
	svc.Load(context.Background())
	icons.mu.Lock()
	icons.assets = nil
	icons.mu.Unlock()
	svc.SyncIcons(context.Background())
	icons.mu.Lock()
	defer icons.mu.Unlock()
	if len(icons.assets) != 1 || icons.assets[0] != "APT" {
		t.Errorf("Expected only APT retried, got %v", icons.assets)
	}
}
