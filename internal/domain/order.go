package domain

import "time"

// OrderSide is the side of an order sent to the backend.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"

	TimeInForceIOC = "IOC"

	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
)

// OrderRequest is what the executor asks the trading backend to do.
type OrderRequest struct {
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"` // 0 for a market close
	OrderType   string    `json:"orderType"`
	TimeInForce string    `json:"timeInForce"`
	Leverage    int       `json:"leverage,omitempty"`
}

// OrderResult is the backend's answer to an order.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// IsOpen checks if the order is still active.
func (o OrderResult) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// FillSource tells which path produced a fill.
type FillSource string

const (
	FillExchange  FillSource = "exchange"
	FillSimulated FillSource = "simulated"
)

// Execution is the outcome of an open or close request.
type Execution struct {
	OrderID      string     `json:"order_id"`
	Status       string     `json:"status"`
	Source       FillSource `json:"source"`
	BackendError string     `json:"backend_error,omitempty"`
	Position     Position   `json:"position"`
	RealizedPnl  float64    `json:"realized_pnl"`
	Credited     float64    `json:"credited"`
	ExecutedAt   time.Time  `json:"executed_at"`
}

// Simulated reports whether the fill came from the local fallback.
func (e Execution) Simulated() bool {
	return e.Source == FillSimulated
}
