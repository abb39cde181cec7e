package bluefin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the fixed decimal exponent of on-chain integer values (1e18).
const Scale = 18

// ScaledValue decodes the three shapes prices arrive in:
// a JSON number (already human scale), a decimal string ("3012.5", human scale)
// and an integer string ("3012500000000000000000", scaled by 1e18).
type ScaledValue struct {
	decimal.Decimal
	Valid bool
}

func (v *ScaledValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*v = ScaledValue{}
		return nil
	}

	if b[0] != '"' {
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return fmt.Errorf("scaled value %s: %w", b, err)
		}
		*v = ScaledValue{Decimal: d, Valid: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*v = ScaledValue{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("scaled value %q: %w", s, err)
	}
	if !strings.ContainsAny(s, ".eE") {
		d = d.Shift(-Scale)
	}
	*v = ScaledValue{Decimal: d, Valid: true}
	return nil
}

// Ptr returns the value as *float64, nil when absent.
func (v ScaledValue) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f, _ := v.Float64()
	return &f
}

// Float returns the value or 0 when absent.
func (v ScaledValue) Float() float64 {
	if !v.Valid {
		return 0
	}
	f, _ := v.Decimal.Float64()
	return f
}

// subscribeMessage renders ["SUBSCRIBE",[{"e":channel,"p":symbol}]].
func subscribeMessage(channel, symbol string) ([]byte, error) {
	return json.Marshal([]any{
		"SUBSCRIBE",
		[]map[string]string{{"e": channel, "p": symbol}},
	})
}

// wsEnvelope is every push message from the notifications socket.
type wsEnvelope struct {
	EventName string          `json:"eventName"`
	Data      json.RawMessage `json:"data"`
}

// Push event names.
const (
	EventMarketData     = "MarketDataUpdate"
	EventRecentTrades   = "RecentTrades"
	EventOrderbook      = "OrderbookUpdate"
	EventOrderbookDepth = "OrderbookDepthUpdate"
)

// marketData is the per-symbol market data payload (push and REST).
type marketData struct {
	Symbol             string      `json:"symbol"`
	CurrentPrice       ScaledValue `json:"currentPrice"`
	LastPrice          ScaledValue `json:"lastPrice"`
	MarkPrice          ScaledValue `json:"markPrice"`
	MarketPrice        ScaledValue `json:"marketPrice"`
	IndexPrice         ScaledValue `json:"indexPrice"`
	High24h            ScaledValue `json:"_24hrHighPrice"`
	Low24h             ScaledValue `json:"_24hrLowPrice"`
	Volume24h          ScaledValue `json:"_24hrVolume"`
	PriceChangePercent ScaledValue `json:"_24hrPriceChangePercent"`
}

// recentTrades is the RecentTrades payload.
type recentTrades struct {
	Trades []tradeData `json:"trades"`
}

type tradeData struct {
	Symbol   string      `json:"symbol"`
	Price    ScaledValue `json:"price"`
	Quantity ScaledValue `json:"quantity"`
	Side     string      `json:"side"`
	Time     int64       `json:"time"` // unix millis
}

// exchangeInfo is one entry of GET /exchangeInfo.
type exchangeInfo struct {
	Symbol            string      `json:"symbol"`
	BaseAssetSymbol   string      `json:"baseAssetSymbol"`
	QuoteAssetSymbol  string      `json:"quoteAssetSymbol"`
	Status            string      `json:"status"`
	TickSize          ScaledValue `json:"tickSize"`
	StepSize          ScaledValue `json:"stepSize"`
	MinOrderSize      ScaledValue `json:"minOrderSize"`
	MaxLimitOrderSize ScaledValue `json:"maxLimitOrderSize"`
}

// orderRequest is the body of POST /orders.
type orderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	OrderType   string `json:"orderType"`
	TimeInForce string `json:"timeInForce"`
	Leverage    string `json:"leverage,omitempty"`
	ClientID    string `json:"clientId,omitempty"`
}

type orderResponse struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	OrderStatus string `json:"orderStatus"`
}

// accountResponse is GET /account.
type accountResponse struct {
	AccountValue     ScaledValue `json:"accountValue"`
	FreeCollateral   ScaledValue `json:"freeCollateral"`
	MarginBalance    ScaledValue `json:"marginBalance"`
	UnrealizedProfit ScaledValue `json:"totalUnrealizedProfit"`
}

// positionResponse is one entry of GET /userPosition. Size is signed: > 0 long.
type positionResponse struct {
	Symbol        string      `json:"symbol"`
	Size          ScaledValue `json:"size"`
	AvgEntryPrice ScaledValue `json:"avgEntryPrice"`
	Leverage      ScaledValue `json:"leverage"`
	UnrealizedPnl ScaledValue `json:"unrealizedProfit"`
}

// apiError is the error body returned with non-2xx responses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}
