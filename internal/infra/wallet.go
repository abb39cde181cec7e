package infra

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// DemoWallet is an in-process wallet for demo mode. It holds an address and a
// balance figure; no signing happens here.
type DemoWallet struct {
	mu        sync.RWMutex
	connected bool
	address   string
	balance   float64
}

// NewDemoWallet creates a disconnected wallet reporting balance once connected.
func NewDemoWallet(balance float64) *DemoWallet {
	return &DemoWallet{balance: balance}
}

func (w *DemoWallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *DemoWallet) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// Balance is 0 while disconnected.
func (w *DemoWallet) Balance() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return 0
	}
	return w.balance
}

// Connect accepts a 0x-prefixed hex address.
func (w *DemoWallet) Connect(address string) error {
	address = strings.TrimSpace(address)
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("invalid wallet address %q", address)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	w.address = strings.ToLower(address)
	return nil
}

func (w *DemoWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	w.address = ""
}

// SetBalance replaces the reported balance.
func (w *DemoWallet) SetBalance(balance float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = balance
}
