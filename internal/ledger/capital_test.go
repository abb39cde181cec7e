package ledger

import (
	"errors"
	"math"
	"testing"

	"sudo_thrust/internal/domain"
)

func TestCapital_CommitAndSettle(t *testing.T) {
	c := NewCapital(5000)

	if err := c.Commit("BTC-PERP", 1000); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if c.Available() != 4000 {
		t.Errorf("Expected 4000 available, got %v", c.Available())
	}
	if c.Committed("BTC-PERP") != 1000 {
		t.Errorf("Expected 1000 committed, got %v", c.Committed("BTC-PERP"))
	}

	credited := c.Settle("BTC-PERP", 100)
	if credited != 1100 {
		t.Errorf("Expected 1100 credited, got %v", credited)
	}
	if c.Available() != 5100 {
		t.Errorf("Expected 5100 available, got %v", c.Available())
	}
	if c.TotalCommitted() != 0 {
		t.Errorf("Expected nothing committed, got %v", c.TotalCommitted())
	}
}

func TestCapital_Rejections(t *testing.T) {
	c := NewCapital(100)

	if err := c.Commit("BTC-PERP", 0); !domain.IsValidation(err) {
		t.Errorf("Expected validation error for zero amount, got %v", err)
	}
	if err := c.Commit("BTC-PERP", 150); !errors.Is(err, domain.ErrInsufficientCapital) {
		t.Errorf("Expected ErrInsufficientCapital, got %v", err)
	}
	if c.Available() != 100 {
		t.Errorf("Rejected commit changed capital: %v", c.Available())
	}

	c.Commit("BTC-PERP", 50)
	if err := c.Commit("BTC-PERP", 10); !errors.Is(err, domain.ErrAlreadyOpen) {
		t.Errorf("Expected ErrAlreadyOpen for second commit, got %v", err)
	}
}

func TestCapital_RefundAndFloor(t *testing.T) {
	c := NewCapital(100)
	c.Commit("ETH-PERP", 60)
	if got := c.Refund("ETH-PERP"); got != 60 || c.Available() != 100 {
		t.Errorf("Refund: got %v, available %v", got, c.Available())
	}

	c.Commit("ETH-PERP", 60)
	if credited := c.Settle("ETH-PERP", -500); credited != 0 {
		t.Errorf("Loss beyond commitment should credit 0, got %v", credited)
	}
	if c.Available() != 40 {
		t.Errorf("Expected 40 available, got %v", c.Available())
	}
}

func TestCapital_Deposit(t *testing.T) {
	c := NewCapital(0)
	if err := c.Deposit(-1); !domain.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if err := c.Deposit(250); err != nil || c.Available() != 250 {
		t.Errorf("Deposit failed: %v, available %v", err, c.Available())
	}
}

func TestRoundTripRestoresCapital(t *testing.T) {
	amounts := []float64{1, 33.33, 1000, 12345.678}
	leverages := []int{1, 3, 10, 50}
	prices := []float64{0.37, 1.5, 3000, 50000}

	for _, amount := range amounts {
		for _, lev := range leverages {
			for _, price := range prices {
				c := NewCapital(20000)
				l := New()
				before := c.Available()

				if err := c.Commit("X-PERP", amount); err != nil {
					t.Fatalf("Commit failed: %v", err)
				}
				size := amount * float64(lev) / price
				if _, err := l.Open("X-PERP", domain.SideLong, size, price, lev); err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				realized, _, err := l.Close("X-PERP")
				if err != nil {
					t.Fatalf("Close failed: %v", err)
				}
				if realized != 0 {
					t.Errorf("Expected realized 0, got %v", realized)
				}
				c.Settle("X-PERP", realized)
				if math.Abs(c.Available()-before) > eps {
					t.Errorf("amount=%v lev=%d price=%v: expected %v, got %v",
						amount, lev, price, before, c.Available())
				}
			}
		}
	}
}
