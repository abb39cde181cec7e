package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"sudo_thrust/internal/domain"
)

// MarketOrigin tells where the current market list came from.
type MarketOrigin string

const (
	OriginExchange MarketOrigin = "exchange"
	OriginStorage  MarketOrigin = "storage"
	OriginFallback MarketOrigin = "fallback"
)

const iconConcurrency = 5

// MarketSource lists markets from the exchange.
type MarketSource interface {
	ExchangeInfo(ctx context.Context) ([]domain.Market, error)
}

// MarketStore persists the market list.
type MarketStore interface {
	UpsertMarkets(markets []domain.Market) error
	GetAllMarkets() ([]domain.Market, error)
	SetIconPath(symbol, path string) error
}

// IconFetcher downloads a base-asset icon and returns its local path.
type IconFetcher interface {
	DownloadIcon(ctx context.Context, asset string) (string, error)
}

// FallbackMarkets is the static list used when neither the exchange nor storage has markets.
func FallbackMarkets() []domain.Market {
	bases := []string{"BTC", "ETH", "SOL", "SUI", "AVAX", "ARB"}
	out := make([]domain.Market, 0, len(bases))
	for _, b := range bases {
		out = append(out, domain.Market{
			Symbol:     b + "-PERP",
			BaseAsset:  b,
			QuoteAsset: "USDC",
			Status:     "DELISTED",
		})
	}
	return out
}

// MarketService loads the market list: exchange first, then the stored copy, then the static list.
type MarketService struct {
	source MarketSource
	store  MarketStore
	icons  IconFetcher
	logger *slog.Logger

	mu      sync.RWMutex
	markets []domain.Market
	origin  MarketOrigin
}

// NewMarketService creates a market service. store and icons may be nil.
func NewMarketService(source MarketSource, store MarketStore, icons IconFetcher) *MarketService {
	return &MarketService{
		source: source,
		store:  store,
		icons:  icons,
		logger: slog.Default().With("module", "market_service"),
	}
}

// Load refreshes the market list. It never fails; the origin says which tier answered.
func (s *MarketService) Load(ctx context.Context) ([]domain.Market, MarketOrigin) {
	markets, origin := s.load(ctx)
	markets = cloneMarkets(markets)
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })

	s.mu.Lock()
	s.markets = markets
	s.origin = origin
	s.mu.Unlock()

	s.logger.Info("Markets loaded", slog.Int("count", len(markets)), slog.String("origin", string(origin)))
	return cloneMarkets(markets), origin
}

func (s *MarketService) load(ctx context.Context) ([]domain.Market, MarketOrigin) {
	if s.source != nil {
		markets, err := s.source.ExchangeInfo(ctx)
		if err == nil && len(markets) > 0 {
			if s.store != nil {
				if err := s.store.UpsertMarkets(markets); err != nil {
					s.logger.Warn("Failed to persist markets", slog.Any("error", err))
				} else if stored, err := s.store.GetAllMarkets(); err == nil {
					// Keep icon paths and last prices already on record.
					markets = mergeStored(markets, stored)
				}
			}
			return markets, OriginExchange
		}
		s.logger.Warn("Exchange market list unavailable", slog.Any("error", err))
	}

	if s.store != nil {
		stored, err := s.store.GetAllMarkets()
		if err != nil {
			s.logger.Warn("Failed to read stored markets", slog.Any("error", err))
		} else if len(stored) > 0 {
			return stored, OriginStorage
		}
	}

	return FallbackMarkets(), OriginFallback
}

// Markets returns the last loaded list.
func (s *MarketService) Markets() ([]domain.Market, MarketOrigin) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMarkets(s.markets), s.origin
}

// Find returns the market for symbol (case-insensitive).
func (s *MarketService) Find(symbol string) (domain.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.markets {
		if strings.EqualFold(m.Symbol, symbol) {
			return m, true
		}
	}
	return domain.Market{}, false
}

// SyncIcons downloads missing icons for the loaded markets, at most 5 at a time.
func (s *MarketService) SyncIcons(ctx context.Context) int {
	if s.icons == nil {
		return 0
	}
	markets, _ := s.Markets()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		downloaded int
	)
	semaphore := make(chan struct{}, iconConcurrency)
	seen := make(map[string]bool)

	for _, m := range markets {
		if m.IconPath != "" || m.BaseAsset == "" || seen[m.BaseAsset] {
			continue
		}
		seen[m.BaseAsset] = true

		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			path, err := s.icons.DownloadIcon(ctx, asset)
			if err != nil {
				s.logger.Warn("Failed to download icon", slog.String("asset", asset), slog.Any("error", err))
				return
			}
			s.setIcon(asset, path)

			mu.Lock()
			downloaded++
			mu.Unlock()
		}(m.BaseAsset)
	}

	wg.Wait()
	s.logger.Info("Icon sync completed", slog.Int("downloaded", downloaded))
	return downloaded
}

func (s *MarketService) setIcon(asset, path string) {
	s.mu.Lock()
	var symbols []string
	for i := range s.markets {
		if s.markets[i].BaseAsset == asset {
			s.markets[i].IconPath = path
			symbols = append(symbols, s.markets[i].Symbol)
		}
	}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	for _, sym := range symbols {
		if err := s.store.SetIconPath(sym, path); err != nil {
			s.logger.Warn("Failed to store icon path", slog.String("symbol", sym), slog.Any("error", err))
		}
	}
}

// StartBackground loads markets and then syncs icons without blocking the caller.
func (s *MarketService) StartBackground(ctx context.Context) {
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		s.Load(loadCtx)
		s.SyncIcons(ctx)
	}()
}

func mergeStored(fetched, stored []domain.Market) []domain.Market {
	bySymbol := make(map[string]domain.Market, len(stored))
	for _, m := range stored {
		bySymbol[m.Symbol] = m
	}
	out := cloneMarkets(fetched)
	for i := range out {
		if prev, ok := bySymbol[out[i].Symbol]; ok {
			out[i].IconPath = prev.IconPath
			out[i].LastPrice = prev.LastPrice
		}
	}
	return out
}

func cloneMarkets(in []domain.Market) []domain.Market {
	return append([]domain.Market(nil), in...)
}
