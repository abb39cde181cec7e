package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is a tradable perpetual market as listed by the exchange.
type Market struct {
	Symbol     string          `gorm:"primaryKey" json:"symbol"`
	BaseAsset  string          `json:"base_asset"`
	QuoteAsset string          `json:"quote_asset"`
	Status     string          `json:"status" gorm:"index"`
	TickSize   decimal.Decimal `json:"tick_size" gorm:"type:text"`
	StepSize   decimal.Decimal `json:"step_size" gorm:"type:text"`
	MinQty     decimal.Decimal `json:"min_qty" gorm:"type:text"`
	MaxQty     decimal.Decimal `json:"max_qty" gorm:"type:text"`
	IconPath   string          `json:"icon_path"`
	LastPrice  float64         `json:"last_price"` // Last price seen by the terminal
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

const MarketStatusActive = "ACTIVE"

// IsActive reports whether the market is open for trading.
func (m Market) IsActive() bool {
	return m.Status == MarketStatusActive
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Keys stored in AppConfig.
const (
	ConfigKeyLastSymbol   = "last_symbol"
	ConfigKeyLastLeverage = "last_leverage"
)
