package bluefin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sudo_thrust/internal/domain"
	"sudo_thrust/internal/infra"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is the Bluefin REST API client. It serves the market list, polled market data
// and, when credentials are configured, the trading backend.
type Client struct {
	endpoints  []string
	httpClient *http.Client
	signer     *Signer
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client from config.
func NewClient(cfg *infra.Config) *Client {
	b := cfg.API.Bluefin
	rps := b.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	endpoints := make([]string, 0, len(b.RestURLs))
	for _, u := range b.RestURLs {
		endpoints = append(endpoints, strings.TrimRight(u, "/"))
	}

	return &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer:  NewSigner(b.APIKey, b.APISecret),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  slog.Default().With("module", "bluefin_client"),
	}
}

// Configured reports whether trading credentials are present.
func (c *Client) Configured() bool {
	return c.signer.Configured()
}

// ExchangeInfo fetches the market list, trying each endpoint in order. The first
// success wins. Only ACTIVE markets are returned unless none are active.
func (c *Client) ExchangeInfo(ctx context.Context) ([]domain.Market, error) {
	var lastErr error
	for _, base := range c.endpoints {
		var infos []exchangeInfo
		if err := c.getJSON(ctx, base, "/exchangeInfo", nil, false, &infos); err != nil {
			c.logger.Warn("exchangeInfo failed", slog.String("endpoint", base), slog.Any("error", err))
			lastErr = err
			continue
		}

		markets := make([]domain.Market, 0, len(infos))
		active := make([]domain.Market, 0, len(infos))
		for _, info := range infos {
			if info.Symbol == "" {
				continue
			}
			m := domain.Market{
				Symbol:     info.Symbol,
				BaseAsset:  info.BaseAssetSymbol,
				QuoteAsset: info.QuoteAssetSymbol,
				Status:     info.Status,
				TickSize:   info.TickSize.Decimal,
				StepSize:   info.StepSize.Decimal,
				MinQty:     info.MinOrderSize.Decimal,
				MaxQty:     info.MaxLimitOrderSize.Decimal,
			}
			markets = append(markets, m)
			if m.IsActive() {
				active = append(active, m)
			}
		}
		if len(markets) == 0 {
			lastErr = fmt.Errorf("%s: empty market list", base)
			continue
		}

		c.logger.Info("Markets fetched",
			slog.String("endpoint", base),
			slog.Int("total", len(markets)),
			slog.Int("active", len(active)))
		if len(active) > 0 {
			return active, nil
		}
		return markets, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	return nil, domain.NewNetworkError("exchangeInfo", lastErr)
}

// MarketData fetches the current market data for symbol from the first endpoint that answers.
func (c *Client) MarketData(ctx context.Context, symbol string) (domain.SnapshotUpdate, error) {
	query := url.Values{"symbol": {symbol}}
	var lastErr error
	for _, base := range c.endpoints {
		var md marketData
		if err := c.getJSON(ctx, base, "/marketData", query, false, &md); err != nil {
			lastErr = err
			continue
		}
		if md.Symbol == "" {
			md.Symbol = symbol
		}
		return md.toUpdate(time.Now()), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	return domain.SnapshotUpdate{}, domain.NewNetworkError("marketData", lastErr)
}

// PlaceOrder posts a market/IOC order.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if !c.Configured() {
		return domain.OrderResult{}, domain.ErrBackendNotConfigured
	}

	body := orderRequest{
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		Quantity:    strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		Price:       strconv.FormatFloat(req.Price, 'f', -1, 64),
		OrderType:   req.OrderType,
		TimeInForce: req.TimeInForce,
		ClientID:    uuid.NewString(),
	}
	if body.OrderType == "" {
		body.OrderType = domain.OrderTypeMarket
	}
	if body.TimeInForce == "" {
		body.TimeInForce = domain.TimeInForceIOC
	}
	if req.Leverage > 0 {
		body.Leverage = strconv.Itoa(req.Leverage)
	}

	var resp orderResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("place order failed: %w", err)
	}

	id := resp.ID
	if id == "" {
		id = resp.Hash
	}
	if id == "" {
		return domain.OrderResult{}, errors.New("place order failed: response without order id")
	}
	status := resp.OrderStatus
	if status == "" {
		status = domain.OrderStatusNew
	}
	if status == domain.OrderStatusRejected || status == domain.OrderStatusCanceled {
		return domain.OrderResult{}, fmt.Errorf("order %s %s", id, strings.ToLower(status))
	}

	c.logger.Info("Order Placed Successfully", "oid", id, "symbol", req.Symbol, "status", status)
	return domain.OrderResult{OrderID: id, Status: status}, nil
}

// Account fetches the margin account.
func (c *Client) Account(ctx context.Context) (domain.Account, error) {
	if !c.Configured() {
		return domain.Account{}, domain.ErrBackendNotConfigured
	}

	var resp accountResponse
	if err := c.getJSON(ctx, c.endpoints[0], "/account", nil, true, &resp); err != nil {
		return domain.Account{}, fmt.Errorf("account failed: %w", err)
	}

	balance := resp.AccountValue.Float()
	if !resp.AccountValue.Valid {
		balance = resp.MarginBalance.Float()
	}
	return domain.Account{
		WalletBalance:    balance,
		FreeCollateral:   resp.FreeCollateral.Float(),
		UnrealizedProfit: resp.UnrealizedProfit.Float(),
	}, nil
}

// Positions fetches open positions. Zero-size entries are skipped.
func (c *Client) Positions(ctx context.Context) ([]domain.RemotePosition, error) {
	if !c.Configured() {
		return nil, domain.ErrBackendNotConfigured
	}

	var resp []positionResponse
	if err := c.getJSON(ctx, c.endpoints[0], "/userPosition", nil, true, &resp); err != nil {
		return nil, fmt.Errorf("positions failed: %w", err)
	}

	result := make([]domain.RemotePosition, 0, len(resp))
	for _, p := range resp {
		size := p.Size.Float()
		if size == 0 {
			continue
		}
		side := domain.SideLong
		if size < 0 {
			side = domain.SideShort
			size = -size
		}
		result = append(result, domain.RemotePosition{
			Symbol:        p.Symbol,
			Side:          side,
			Quantity:      size,
			AvgEntryPrice: p.AvgEntryPrice.Float(),
			Leverage:      int(p.Leverage.IntPart()),
			UnrealizedPnl: p.UnrealizedPnl.Float(),
		})
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, base, path string, query url.Values, signed bool, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, base, path, query, nil, signed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.doRequest(ctx, method, c.endpoints[0], path, nil, body, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// doRequest handles throttling, auth headers and serialization
func (c *Client) doRequest(ctx context.Context, method, base, path string, query url.Values, body any, signed bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBytes)
		bodyStr = string(jsonBytes)
	}

	rawQuery := query.Encode()
	reqURL := base + path
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		for k, v := range c.signer.GenerateHeaders(method, path, rawQuery, bodyStr) {
			req.Header.Set(k, v)
		}
	}

	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, out any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr apiError
		msg := strings.TrimSpace(string(bodyBytes))
		if json.Unmarshal(bodyBytes, &apiErr) == nil {
			if apiErr.Error.Message != "" {
				msg = apiErr.Error.Message
			} else if apiErr.Message != "" {
				msg = apiErr.Message
			}
		}
		return fmt.Errorf("bluefin api error: status=%d msg=%s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// toUpdate normalizes market data. currentPrice wins over lastPrice, then mark/market price, then index.
func (m marketData) toUpdate(at time.Time) domain.SnapshotUpdate {
	last := m.CurrentPrice
	if !last.Valid || !last.IsPositive() {
		last = m.LastPrice
	}
	mark := m.MarkPrice
	if !mark.Valid {
		mark = m.MarketPrice
	}

	return domain.SnapshotUpdate{
		Symbol:           m.Symbol,
		LastPrice:        positive(last),
		MarkPrice:        positive(mark),
		IndexPrice:       positive(m.IndexPrice),
		High24h:          m.High24h.Ptr(),
		Low24h:           m.Low24h.Ptr(),
		Volume24h:        m.Volume24h.Ptr(),
		ChangePercent24h: m.PriceChangePercent.Ptr(),
		Timestamp:        at,
	}
}

// positive drops zero/negative prices so they never overwrite a known value.
func positive(v ScaledValue) *float64 {
	if !v.Valid || !v.IsPositive() {
		return nil
	}
	return v.Ptr()
}
