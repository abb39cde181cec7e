package bluefin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"sudo_thrust/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 20 * time.Second
	readTimeout      = 60 * time.Second
	handshakeTimeout = 10 * time.Second
)

// StreamTransport subscribes to the notifications socket for one symbol.
type StreamTransport struct {
	url          string
	channel      string
	pingInterval time.Duration
	readTimeout  time.Duration
	logger       *slog.Logger
}

// NewStreamTransport creates a WebSocket transport.
func NewStreamTransport(wsURL, channel string) *StreamTransport {
	if channel == "" {
		channel = "globalUpdates"
	}
	return &StreamTransport{
		url:          wsURL,
		channel:      channel,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
		logger:       slog.Default().With("module", "bluefin_stream"),
	}
}

func (t *StreamTransport) Name() string { return "ws" }

// Run connects, subscribes and pumps messages into sink until ctx is cancelled
// or the connection fails.
func (t *StreamTransport) Run(ctx context.Context, symbol string, sink domain.FeedSink) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return domain.NewFatalNetworkError("dial", fmt.Errorf("%w (status %d)", err, resp.StatusCode))
		}
		return domain.NewNetworkError("dial", err)
	}

	sc := &streamConn{conn: conn}
	defer sc.close()

	msg, err := subscribeMessage(t.channel, symbol)
	if err != nil {
		return domain.NewFatalNetworkError("subscribe", err)
	}
	if err := sc.write(websocket.TextMessage, msg); err != nil {
		return domain.NewNetworkError("subscribe", err)
	}

	t.logger.Info("Bluefin stream subscribed", slog.String("symbol", symbol), slog.String("channel", t.channel))
	sink.OnConnected()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.pingLoop(runCtx, sc)
	}()
	go func() {
		// Unblocks ReadMessage on cancellation.
		defer wg.Done()
		<-runCtx.Done()
		sc.close()
	}()

	err = t.readLoop(runCtx, sc, symbol, sink)
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *StreamTransport) pingLoop(ctx context.Context, sc *streamConn) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *StreamTransport) readLoop(ctx context.Context, sc *streamConn, symbol string, sink domain.FeedSink) error {
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	})

	for {
		if ctx.Err() != nil {
			return nil
		}
		sc.conn.SetReadDeadline(time.Now().Add(t.readTimeout))

		_, msg, err := sc.conn.ReadMessage()
		if err != nil {
			return domain.NewNetworkError("read", err)
		}
		t.handleMessage(msg, symbol, sink)
	}
}

func (t *StreamTransport) handleMessage(msg []byte, symbol string, sink domain.FeedSink) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil || env.EventName == "" {
		return // acks and keepalives are not envelopes
	}

	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		payload = msg
	}

	switch env.EventName {
	case EventMarketData:
		var md marketData
		if err := json.Unmarshal(payload, &md); err != nil {
			t.logger.Debug("bad market data payload", slog.Any("error", err))
			return
		}
		if md.Symbol != "" && !strings.EqualFold(md.Symbol, symbol) {
			return
		}
		md.Symbol = symbol
		sink.OnSnapshot(md.toUpdate(time.Now()))

	case EventRecentTrades:
		var rt recentTrades
		if err := json.Unmarshal(payload, &rt); err != nil {
			t.logger.Debug("bad trades payload", slog.Any("error", err))
			return
		}
		if trades := toTradePrints(rt.Trades, symbol); len(trades) > 0 {
			sink.OnTrades(trades)
		}

	case EventOrderbook, EventOrderbookDepth:
		// Not used by the terminal.
	}
}

func toTradePrints(in []tradeData, symbol string) []domain.TradePrint {
	out := make([]domain.TradePrint, 0, len(in))
	for _, tr := range in {
		if tr.Symbol != "" && !strings.EqualFold(tr.Symbol, symbol) {
			continue
		}
		price := tr.Price.Float()
		if !domain.IsValidPrice(price) {
			continue
		}
		side := domain.OrderSideBuy
		if strings.EqualFold(tr.Side, "SELL") {
			side = domain.OrderSideSell
		}
		ts := time.Now()
		if tr.Time > 0 {
			ts = time.UnixMilli(tr.Time)
		}
		out = append(out, domain.TradePrint{
			Symbol:    symbol,
			Price:     price,
			Quantity:  tr.Quantity.Float(),
			Side:      side,
			Timestamp: ts,
		})
	}
	return out
}

// streamConn serializes writes and makes close idempotent.
type streamConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (s *streamConn) write(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	return s.conn.WriteMessage(msgType, data)
}

func (s *streamConn) close() {
	s.once.Do(func() {
		s.conn.Close()
	})
}
