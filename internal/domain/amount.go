package domain

import "math"

const (
	MaxTradeFraction = 0.95
	MinLeverage      = 1
	MaxLeverage      = 50
)

// QuickAmount is a shortcut button value.
type QuickAmount struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// MaxTradeSize is the largest amount a single trade may commit.
func MaxTradeSize(available float64) float64 {
	if available <= 0 {
		return 0
	}
	return available * MaxTradeFraction
}

// RequiredMargin is the capital that backs notional at the given leverage.
func RequiredMargin(notional float64, leverage int) float64 {
	if leverage < 1 {
		return notional
	}
	return notional / float64(leverage)
}

// ClampAmount bounds amount to [0, MaxTradeSize(available)].
func ClampAmount(amount, available float64) float64 {
	if math.IsNaN(amount) || amount < 0 {
		return 0
	}
	return math.Min(amount, MaxTradeSize(available))
}

// QuickAmounts returns the 25/50/75/MAX shortcuts for available capital.
func QuickAmounts(available float64) []QuickAmount {
	maxSize := MaxTradeSize(available)
	return []QuickAmount{
		{Label: "25%", Amount: ClampAmount(available*0.25, available)},
		{Label: "50%", Amount: ClampAmount(available*0.50, available)},
		{Label: "75%", Amount: ClampAmount(available*0.75, available)},
		{Label: "MAX", Amount: maxSize},
	}
}

// ClampLeverage bounds leverage to [MinLeverage, max].
func ClampLeverage(leverage, max int) int {
	if max < MinLeverage {
		max = MaxLeverage
	}
	if leverage < MinLeverage {
		return MinLeverage
	}
	if leverage > max {
		return max
	}
	return leverage
}
