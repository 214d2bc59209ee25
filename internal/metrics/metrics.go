package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts committed bookings by type.
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tourgo",
			Name:      "bookings_created_total",
			Help:      "The total number of bookings created",
		},
		[]string{"type"},
	)

	// BookingTransitions counts committed status changes.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tourgo",
			Name:      "booking_transitions_total",
			Help:      "The total number of booking status transitions",
		},
		[]string{"to"},
	)

	// ReservationsRejected counts seat reservations refused by capacity checks.
	ReservationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tourgo",
			Name:      "reservations_rejected_total",
			Help:      "The total number of seat reservations rejected",
		},
		[]string{"reason"},
	)

	// RefundsIssued sums refund amounts in minor units by policy.
	RefundsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tourgo",
			Name:      "refund_cents_total",
			Help:      "Refund amounts decided, in minor currency units",
		},
		[]string{"policy"},
	)

	DateChangesReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tourgo",
			Name:      "date_changes_reviewed_total",
			Help:      "The total number of date change requests reviewed",
		},
		[]string{"outcome"},
	)

	// SweepDuration observes how long each unpaid-expiry sweep takes.
	SweepDuration = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "tourgo",
			Name:       "sweep_duration_seconds",
			Help:       "Time spent in the unpaid-expiry sweep",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)
)
