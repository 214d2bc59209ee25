// Package refund holds the refund policies. Both are pure functions of their
// inputs; callers supply the clock.
package refund

import (
	"math"
	"time"
)

const (
	PolicyTieredName      = "TIERED"
	PolicyFullPartialName = "FULL_PARTIAL"
)

// Decision describes a computed refund.
type Decision struct {
	Policy         string `json:"policy"`
	Percentage     int    `json:"percentage"`
	DaysUntilStart int    `json:"days_until_start"`
	AmountCents    int64  `json:"amount_cents"`
}

// PolicyTieredRefund applies the cancellation schedule: more than 30 days out
// refunds 100%, 15-30 days 75%, 7-14 days 50%, 3-6 days 25%, anything closer 10%.
// Nothing is refunded once the tour has started.
func PolicyTieredRefund(now, start time.Time, paidCents int64) Decision {
	d := Decision{Policy: PolicyTieredName}

	if !now.Before(start) || paidCents <= 0 {
		return d
	}

	d.DaysUntilStart = int(math.Ceil(start.Sub(now).Hours() / 24))
	d.Percentage = tierPercentage(d.DaysUntilStart)
	d.AmountCents = percentOf(paidCents, d.Percentage)

	return d
}

// PolicyFullPartialRefund returns everything that was paid. It applies when a
// tour starts before the booking was paid in full.
func PolicyFullPartialRefund(paidCents int64) Decision {
	return Decision{
		Policy:      PolicyFullPartialName,
		Percentage:  100,
		AmountCents: max(paidCents, 0),
	}
}

func tierPercentage(days int) int {
	switch {
	case days > 30:
		return 100
	case days >= 15:
		return 75
	case days >= 7:
		return 50
	case days >= 3:
		return 25
	default:
		return 10
	}
}

// percentOf rounds half up to the nearest minor unit.
func percentOf(amount int64, pct int) int64 {
	return (amount*int64(pct) + 50) / 100
}
