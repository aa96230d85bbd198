// Package queue defines the booking lifecycle messages exchanged over
// RabbitMQ together with the publisher and the audit consumer.
package queue

import (
	"time"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// Event types double as routing keys and queue names.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingAttended  = "booking.attended"
)

// BookingEvent is published whenever a booking is confirmed or changes
// status.  It carries enough for ticket rendering, confirmation e-mail and
// analytics consumers to act without querying the booking store.
type BookingEvent struct {
	Type             string          `json:"type"`
	BookingID        string          `json:"booking_id"`
	EventID          string          `json:"event_id"`
	UserID           string          `json:"user_id"`
	Status           string          `json:"status"`
	Seats            []string        `json:"seats"`
	Ranges           []string        `json:"ranges"`
	TotalSeats       int             `json:"total_seats"`
	TotalPrice       string          `json:"total_price"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Items            []EventLineItem `json:"items"`
}

// EventLineItem is the wire form of a booked line item.
type EventLineItem struct {
	Category  string `json:"category"`
	BlockName string `json:"block_name"`
	FromSeat  int    `json:"from_seat"`
	ToSeat    int    `json:"to_seat"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// NewBookingEvent builds the message for b.
func NewBookingEvent(eventType string, b model.Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		Type:             eventType,
		BookingID:        b.ID,
		EventID:          b.EventID,
		UserID:           b.UserID,
		Status:           string(b.Status),
		TotalSeats:       b.TotalSeats,
		TotalPrice:       b.TotalPrice.StringFixed(2),
		PaymentReference: b.PaymentReference,
		OccurredAt:       at.UTC(),
	}
	for _, li := range b.Items {
		ev.Seats = append(ev.Seats, li.Seats()...)
		ev.Ranges = append(ev.Ranges, model.SeatRange{BlockName: li.BlockName, FromSeat: li.FromSeat, ToSeat: li.ToSeat}.Label())
		ev.Items = append(ev.Items, EventLineItem{
			Category:  li.Category,
			BlockName: li.BlockName,
			FromSeat:  li.FromSeat,
			ToSeat:    li.ToSeat,
			UnitPrice: li.UnitPrice.StringFixed(2),
			LineTotal: li.LineTotal.StringFixed(2),
		})
	}
	return ev
}
