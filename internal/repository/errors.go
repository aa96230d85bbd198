// Package repository holds the persistence layer: the MySQL repositories
// for venues, events and bookings, and an in-process booking store used in
// tests and single-node development.  The sentinel values below are shared
// by every implementation so callers can tell failure scenarios apart
// without knowing which backend served them.
package repository

import "errors"

// ErrVenueNotFound is returned when a venue lookup fails.
var ErrVenueNotFound = errors.New("venue not found")

// ErrEventNotFound is returned when an event lookup fails.
var ErrEventNotFound = errors.New("event not found")

// ErrBookingNotFound is returned when a booking lookup fails.
var ErrBookingNotFound = errors.New("booking not found")

// ErrStatusConflict is returned by UpdateStatus when the booking is no
// longer in the expected state, for example a second cancel racing the
// first.  Handlers should translate this into an HTTP 409 response.
var ErrStatusConflict = errors.New("booking status changed")

// ErrDuplicatePaymentReference signals that a payment reference has already
// been used for another booking of the same event.
var ErrDuplicatePaymentReference = errors.New("payment reference already used")
