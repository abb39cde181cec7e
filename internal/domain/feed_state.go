package domain

import "time"

// MaxSimulatedTickInterval bounds the gap between simulated ticks.
const MaxSimulatedTickInterval = 5 * time.Second

// FeedState is the connection state of the price feed.
type FeedState int

const (
	FeedIdle FeedState = iota
	FeedConnecting
	FeedConnected
	FeedReconnecting
	FeedSimulated
	FeedFailed
)

func (s FeedState) String() string {
	switch s {
	case FeedIdle:
		return "idle"
	case FeedConnecting:
		return "connecting"
	case FeedConnected:
		return "connected"
	case FeedReconnecting:
		return "reconnecting"
	case FeedSimulated:
		return "simulated"
	case FeedFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s FeedState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Live reports whether data comes from the genuine transport.
func (s FeedState) Live() bool {
	return s == FeedConnected
}

// FeedStatus is the advisory status of the price feed.
type FeedStatus struct {
	Symbol     string    `json:"symbol"`
	State      FeedState `json:"state"`
	Transport  string    `json:"transport"`
	Attempt    int       `json:"attempt"`
	LastError  string    `json:"last_error,omitempty"`
	Simulated  bool      `json:"simulated"`
	Generation uint64    `json:"generation"`
}
