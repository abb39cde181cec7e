package bluefin

import (
	"context"
	"log/slog"
	"time"

	"sudo_thrust/internal/domain"
)

// marketDataSource is the part of Client the poller needs.
type marketDataSource interface {
	MarketData(ctx context.Context, symbol string) (domain.SnapshotUpdate, error)
}

// PollTransport polls GET /marketData on a fixed interval.
type PollTransport struct {
	source      marketDataSource
	interval    time.Duration
	maxFailures int
	logger      *slog.Logger
}

// NewPollTransport creates a polling transport. After maxFailures consecutive errors
// Run returns and the feed's retry policy takes over.
func NewPollTransport(source marketDataSource, interval time.Duration, maxFailures int) *PollTransport {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &PollTransport{
		source:      source,
		interval:    interval,
		maxFailures: maxFailures,
		logger:      slog.Default().With("module", "bluefin_poller"),
	}
}

func (p *PollTransport) Name() string { return "poll" }

func (p *PollTransport) Run(ctx context.Context, symbol string, sink domain.FeedSink) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	connected := false
	failures := 0
	for {
		u, err := p.source.MarketData(ctx, symbol)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			failures++
			p.logger.Debug("poll failed", slog.String("symbol", symbol), slog.Int("failures", failures), slog.Any("error", err))
			if failures >= p.maxFailures {
				return err
			}
		} else {
			failures = 0
			if !connected {
				connected = true
				sink.OnConnected()
			}
			u.Symbol = symbol
			sink.OnSnapshot(u)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
