package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra"
	"sudo_thrust/internal/infra/bluefin"
	"sudo_thrust/internal/infra/storage"
	"sudo_thrust/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, installs the logger and opens storage.
// Storage and the icon downloader are optional: failures are logged and the
// terminal runs without them.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping", slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))

	dbPath, iconDir := "", ""
	if cfg.App.DataDir != "" {
		dbPath = filepath.Join(cfg.App.DataDir, "thrust.db")
		iconDir = filepath.Join(cfg.App.DataDir, "icons")
	}

	store, err := storage.NewStorage(dbPath)
	if err != nil {
		slog.Warn("Storage unavailable, running without persistence", slog.Any("error", err))
	} else {
		b.Storage = store
		slog.Info("Database initialized")
	}

	downloader, err := infra.NewIconDownloader(iconDir, "")
	if err != nil {
		slog.Warn("Icon downloader unavailable", slog.Any("error", err))
	} else {
		b.Downloader = downloader
	}

	return nil
}

// Close releases storage.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	if err := b.Storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

// FetchMarkets loads the market list once, without starting the terminal.
func (b *Bootstrap) FetchMarkets(ctx context.Context) ([]domain.Market, service.MarketOrigin) {
	var store service.MarketStore
	if b.Storage != nil {
		store = b.Storage
	}
	svc := service.NewMarketService(bluefin.NewClient(b.Config), store, nil)
	return svc.Load(ctx)
}
