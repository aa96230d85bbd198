package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusAttended  BookingStatus = "ATTENDED"
)

// Active reports whether a booking in this state still occupies its seats.
func (s BookingStatus) Active() bool { return s != StatusCancelled }

// Booking records a user's confirmed purchase of one or more seat ranges
// for a single event.  Bookings are only ever created CONFIRMED; there is
// no draft state.  TotalSeats and TotalPrice are always derived from the
// line items on the server.
//
// Fields:
//
//	ID               - UUID assigned at commit.
//	UserID           - caller identity (phone number).
//	EventID          - event being booked.
//	Items            - ordered, non-empty line items.
//	TotalSeats       - sum of line item quantities.
//	TotalPrice       - sum of line totals.
//	Status           - CONFIRMED, CANCELLED or ATTENDED.
//	PaymentReference - opaque payment confirmation token, may be empty.
//	CreatedAt        - commit timestamp (UTC).
//	UpdatedAt        - last status change (UTC).
type Booking struct {
	ID               string            `json:"id"`                          // bookings.id
	UserID           string            `json:"user_id"`                     // bookings.user_id
	EventID          string            `json:"event_id"`                    // bookings.event_id
	Items            []BookingLineItem `json:"items"`                       // booking_line_items rows
	TotalSeats       int               `json:"total_seats"`                 // bookings.total_seats
	TotalPrice       decimal.Decimal   `json:"total_price"`                 // bookings.total_price
	Status           BookingStatus     `json:"status"`                      // bookings.status
	PaymentReference string            `json:"payment_reference,omitempty"` // bookings.payment_reference (nullable)
	CreatedAt        time.Time         `json:"created_at"`                  // bookings.created_at
	UpdatedAt        time.Time         `json:"updated_at"`                  // bookings.updated_at
}

// BookingLineItem is one category/block/range selection within a booking.
type BookingLineItem struct {
	Category  string          `json:"category"`   // booking_line_items.category
	BlockName string          `json:"block_name"` // booking_line_items.block_name
	FromSeat  int             `json:"from_seat"`  // booking_line_items.from_seat
	ToSeat    int             `json:"to_seat"`    // booking_line_items.to_seat
	Quantity  int             `json:"quantity"`   // booking_line_items.quantity
	UnitPrice decimal.Decimal `json:"unit_price"` // booking_line_items.unit_price
	LineTotal decimal.Decimal `json:"line_total"` // booking_line_items.line_total
}

// Overlaps reports whether two inclusive ranges in the same block share a seat.
func (li BookingLineItem) Overlaps(other BookingLineItem) bool {
	return li.BlockName == other.BlockName && li.FromSeat <= other.ToSeat && li.ToSeat >= other.FromSeat
}

// Seats lists the printable seat labels covered by the line item.
func (li BookingLineItem) Seats() []string {
	out := make([]string, 0, li.Quantity)
	for s := li.FromSeat; s <= li.ToSeat; s++ {
		out = append(out, SeatLabel(li.BlockName, s))
	}
	return out
}

// SeatRange is an inclusive run of seats inside one block.
type SeatRange struct {
	BlockName string `json:"block_name"`
	FromSeat  int    `json:"from_seat"`
	ToSeat    int    `json:"to_seat"`
}

// Label renders the range like "A12-A14", or "A7" for a single seat.
func (r SeatRange) Label() string {
	if r.FromSeat == r.ToSeat {
		return SeatLabel(r.BlockName, r.FromSeat)
	}
	return SeatLabel(r.BlockName, r.FromSeat) + "-" + SeatLabel(r.BlockName, r.ToSeat)
}

// Len returns the number of seats in the range.
func (r SeatRange) Len() int { return r.ToSeat - r.FromSeat + 1 }
