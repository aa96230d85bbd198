// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reservation outcomes.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeReplayed         = "replayed"
	OutcomeConflict         = "conflict"
	OutcomeInvalid          = "invalid"
	OutcomePriceMismatch    = "price_mismatch"
	OutcomeStoreUnavailable = "store_unavailable"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	reserveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seat_reserve_duration_seconds",
			Help:    "Time spent in Reserve, including lock waits",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"outcome"},
	)

	seatsBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seats_booked_total",
			Help: "Seats committed in confirmed bookings",
		},
		[]string{"event_id"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_status_transitions_total",
			Help: "Booking status changes after creation",
		},
		[]string{"status"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_events_published_total",
			Help: "Booking events handed to the broker",
		},
		[]string{"type", "result"},
	)

	availabilityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_cache_lookups_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)
)

// ObserveReservation records one Reserve call.
func ObserveReservation(outcome string, took time.Duration) {
	reservations.WithLabelValues(outcome).Inc()
	reserveDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// SeatsBooked adds n seats to the event's booked counter.
func SeatsBooked(eventID string, n int) {
	seatsBooked.WithLabelValues(eventID).Add(float64(n))
}

// StatusTransition counts a booking moving into status.
func StatusTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

// EventPublished counts a publish attempt.
func EventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// AvailabilityLookup counts a cache hit, miss or error.
func AvailabilityLookup(result string) {
	availabilityLookups.WithLabelValues(result).Inc()
}
