package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// roundWon applies the single rounding policy of the engine: half-up to a
// whole won, once per formula. Inputs are never negative.
func roundWon(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// seconds returns a duration as whole seconds.
func seconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second))
}

// payForDuration computes round(hours × rate × multiplier). The division by
// 3600 happens last so repeating decimals never reach the rounding step early.
func payForDuration(d time.Duration, rate, multiplier decimal.Decimal) int64 {
	if d <= 0 || !rate.IsPositive() || !multiplier.IsPositive() {
		return 0
	}
	return roundWon(seconds(d).Mul(rate).Mul(multiplier).Div(secondsPerHour))
}
