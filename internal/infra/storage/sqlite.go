package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"sudo_thrust/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage persists the market list and user preferences. Trade history is not stored.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance. An empty path uses the per-user data dir.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.Market{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "Thrust", "data", "thrust.db"), nil
}

// ======================================================================================
// Market Operations
// ======================================================================================

// UpsertMarkets stores fetched market descriptors. Icon path and last price already
// on record are kept.
func (s *Storage) UpsertMarkets(markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_asset", "quote_asset", "status", "tick_size", "step_size", "min_qty", "max_qty", "updated_at",
		}),
	}).Create(&markets).Error
}

// GetMarket retrieves a market by symbol
func (s *Storage) GetMarket(symbol string) (*domain.Market, error) {
	var m domain.Market
	err := s.db.First(&m, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &m, err
}

// GetAllMarkets retrieves all stored markets ordered by symbol
func (s *Storage) GetAllMarkets() ([]domain.Market, error) {
	var markets []domain.Market
	err := s.db.Order("symbol").Find(&markets).Error
	return markets, err
}

// SetIconPath records the local icon file for a market
func (s *Storage) SetIconPath(symbol, path string) error {
	return s.db.Model(&domain.Market{}).
		Where("symbol = ?", symbol).
		Updates(map[string]any{"icon_path": path, "updated_at": time.Now()}).Error
}

// SetLastPrice records the last price seen for a market
func (s *Storage) SetLastPrice(symbol string, price float64) error {
	return s.db.Model(&domain.Market{}).
		Where("symbol = ?", symbol).
		Update("last_price", price).Error
}

// DeleteMarket deletes a market from the database
func (s *Storage) DeleteMarket(symbol string) error {
	return s.db.Where("symbol = ?", symbol).Delete(&domain.Market{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// GetConfig loads one user configuration value
func (s *Storage) GetConfig(key string) (string, error) {
	var cfg domain.AppConfig
	err := s.db.First(&cfg, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrConfigNotFound
	}
	return cfg.Value, err
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
