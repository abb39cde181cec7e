package domain

import (
	"context"
	"time"
)

// FeedSink receives normalized market data from a transport.
// Calls arrive on the transport's goroutine.
type FeedSink interface {
	// OnConnected is called once the transport is subscribed and receiving.
	OnConnected()
	OnSnapshot(u SnapshotUpdate)
	OnTrades(trades []TradePrint)
}

// FeedTransport streams market data for one symbol until ctx is cancelled or the transport fails.
// Run returns nil only when ctx was cancelled.
type FeedTransport interface {
	Name() string
	Run(ctx context.Context, symbol string, sink FeedSink) error
}

// TradingBackend is the external exchange client. Every call is fallible.
type TradingBackend interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	Account(ctx context.Context) (Account, error)
	Positions(ctx context.Context) ([]RemotePosition, error)
	Configured() bool
}

// Wallet is the user's wallet. The terminal only reads its state.
type Wallet interface {
	Connected() bool
	Address() string
	Balance() float64
	Connect(address string) error
	Disconnect()
}

// Account is the backend's view of the user's margin account.
type Account struct {
	WalletBalance    float64 `json:"wallet_balance"`
	FreeCollateral   float64 `json:"free_collateral"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
}

// RemotePosition is a position as reported by the backend.
type RemotePosition struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	Leverage      int     `json:"leverage"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// RemoteAccount is the last reconciled backend snapshot. Advisory only.
type RemoteAccount struct {
	Account   Account          `json:"account"`
	Positions []RemotePosition `json:"positions"`
	SyncedAt  time.Time        `json:"synced_at"`
	LastError string           `json:"last_error,omitempty"`
}

// Publisher pushes typed messages to connected browsers.
type Publisher interface {
	Publish(msgType string, payload any)
}
