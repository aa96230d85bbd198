package service

import (
	"context"
	"time"

	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
)

// BookingStore is what a reservation attempt needs from persistence.
//
// WithBlockLocks runs fn while holding exclusive access to every
// (eventID, block) pair in blocks.  Reads and the commit issued from fn
// through the ctx it receives are atomic with respect to any other fn
// holding one of the same pairs.  Pairs must be acquired in the given
// (sorted) order.
type BookingStore interface {
	WithBlockLocks(ctx context.Context, eventID string, blocks []string, fn func(ctx context.Context) error) error
	FindActiveLineItems(ctx context.Context, eventID, blockName string) ([]model.BookingLineItem, error)
	CommitBooking(ctx context.Context, b model.Booking) (model.Booking, error)
}

// BookingLedger adds the lookups and status transitions that sit around a
// reservation.
type BookingLedger interface {
	BookingStore

	// FindByPaymentReference returns nil, nil when the reference is unused.
	FindByPaymentReference(ctx context.Context, eventID, ref string) (*model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error)
	// UpdateStatus moves a booking from one status to another and fails
	// with repository.ErrStatusConflict if it is not currently in from.
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error
}

// CatalogSource reads the venue and event inputs owned by other teams.
type CatalogSource interface {
	Venue(ctx context.Context, venueID string) (model.Venue, error)
	EventCatalog(ctx context.Context, eventID string) (model.EventCatalog, error)
}

// EventPublisher delivers booking lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}
