package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/clock"
	"github.com/iliyamo/block-seat-reservation/internal/metrics"
	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
)

// publishTimeout bounds how long a committed request waits on the broker.
const publishTimeout = 3 * time.Second

// ReserveRequest is a booking attempt for one event by one user.
// ExpectedTotal, when set, is the total the client displayed; a mismatch
// with the server total rejects the attempt.
type ReserveRequest struct {
	EventID          string
	UserID           string
	Selections       []Selection
	PaymentReference string
	ExpectedTotal    *decimal.Decimal
}

// ReserveResult carries the persisted booking.  Replayed is set when the
// payment reference matched an identical earlier booking and nothing new
// was written.
type ReserveResult struct {
	Booking  model.Booking
	Replayed bool
}

// Manager is the single writer of bookings.  It validates selections
// against the event's categories and commits a booking only when none of
// its seats overlap a non-cancelled booking of the same event and block.
type Manager struct {
	catalog   CatalogSource
	store     BookingLedger
	publisher EventPublisher
	avail     *AvailabilityCache
	clock     clock.Clock
	log       logrus.FieldLogger
	newID     func() string
}

// NewManager wires a Manager.  publisher and avail may be nil; a nil clock
// uses the system clock and a nil logger the logrus standard logger.
func NewManager(catalog CatalogSource, store BookingLedger, publisher EventPublisher, avail *AvailabilityCache, clk clock.Clock, log logrus.FieldLogger) *Manager {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		catalog:   catalog,
		store:     store,
		publisher: publisher,
		avail:     avail,
		clock:     clk,
		log:       log,
		newID:     func() string { return uuid.NewString() },
	}
}

// Reserve validates the request and, if every requested seat is free,
// commits a CONFIRMED booking.  The overlap check and the commit run inside
// the store's per-(event, block) critical section, so of two conflicting
// concurrent attempts exactly one succeeds.
//
// Errors: *ValidationError, *ConflictError, *PriceMismatchError or
// *StoreUnavailableError.  Nothing is committed on any error.
func (m *Manager) Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	start := time.Now()
	res, err := m.reserve(ctx, req)
	outcome := reserveOutcome(res, err)
	metrics.ObserveReservation(outcome, time.Since(start))

	entry := m.log.WithFields(logrus.Fields{
		"event_id": req.EventID,
		"user_id":  req.UserID,
		"outcome":  outcome,
	})
	switch {
	case err == nil:
		entry.WithFields(logrus.Fields{
			"booking_id":  res.Booking.ID,
			"total_seats": res.Booking.TotalSeats,
			"total_price": res.Booking.TotalPrice.StringFixed(2),
		}).Info("reservation confirmed")
	case errors.Is(err, ErrStoreUnavailable):
		var se *StoreUnavailableError
		if errors.As(err, &se) {
			entry = entry.WithField("transient", se.Transient)
		}
		entry.WithError(err).Error("reservation failed")
	default:
		entry.WithError(err).Info("reservation rejected")
	}
	return res, err
}

func (m *Manager) reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return ReserveResult{}, invalid(ReasonMissingUser, "user id is required")
	}

	cat, err := m.catalog.EventCatalog(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return ReserveResult{}, invalid(ReasonUnknownEvent, "event %q does not exist", req.EventID)
		}
		return ReserveResult{}, unavailable("load event catalog", err)
	}

	categories := NewCategoryIndex(ResolveCategories(cat.Definitions), &cat.Venue)
	items, err := validateSelections(categories, req.Selections)
	if err != nil {
		return ReserveResult{}, err
	}

	seats, total := totals(items)
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(total) {
		return ReserveResult{}, &PriceMismatchError{Expected: *req.ExpectedTotal, Actual: total}
	}

	now := m.clock.Now()
	booking := model.Booking{
		ID:               m.newID(),
		UserID:           userID,
		EventID:          cat.Event.ID,
		Items:            items,
		TotalSeats:       seats,
		TotalPrice:       total,
		Status:           model.StatusConfirmed,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var res ReserveResult
	err = m.store.WithBlockLocks(ctx, booking.EventID, blocksOf(items), func(ctx context.Context) error {
		if booking.PaymentReference != "" {
			prev, err := m.store.FindByPaymentReference(ctx, booking.EventID, booking.PaymentReference)
			if err != nil {
				return err
			}
			if prev != nil {
				if prev.UserID != booking.UserID || !sameItems(prev.Items, booking.Items) {
					return invalid(ReasonPaymentRefReused, "payment reference %q belongs to another booking", booking.PaymentReference)
				}
				res = ReserveResult{Booking: *prev, Replayed: true}
				return nil
			}
		}

		conflicts, err := m.findConflicts(ctx, booking.EventID, items)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{EventID: booking.EventID, Seats: conflicts}
		}

		saved, err := m.store.CommitBooking(ctx, booking)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicatePaymentReference) {
				return invalid(ReasonPaymentRefReused, "payment reference %q belongs to another booking", booking.PaymentReference)
			}
			return err
		}
		res = ReserveResult{Booking: saved}
		return nil
	})
	if err != nil {
		return ReserveResult{}, unavailable("reserve", err)
	}

	if !res.Replayed {
		metrics.SeatsBooked(res.Booking.EventID, res.Booking.TotalSeats)
		m.afterChange(ctx, queue.TypeBookingConfirmed, res.Booking)
	}
	return res, nil
}

// findConflicts reads the active line items of every block in items and
// returns the merged overlapping seat ranges.
func (m *Manager) findConflicts(ctx context.Context, eventID string, items []model.BookingLineItem) ([]model.SeatRange, error) {
	var overlaps []model.SeatRange
	for _, block := range blocksOf(items) {
		existing, err := m.store.FindActiveLineItems(ctx, eventID, block)
		if err != nil {
			return nil, err
		}
		for _, li := range items {
			if li.BlockName != block {
				continue
			}
			for _, ex := range existing {
				if !li.Overlaps(ex) {
					continue
				}
				overlaps = append(overlaps, model.SeatRange{
					BlockName: block,
					FromSeat:  max(li.FromSeat, ex.FromSeat),
					ToSeat:    min(li.ToSeat, ex.ToSeat),
				})
			}
		}
	}
	return MergeRanges(overlaps), nil
}

func sameItems(a, b []model.BookingLineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Category != b[i].Category || a[i].BlockName != b[i].BlockName ||
			a[i].FromSeat != b[i].FromSeat || a[i].ToSeat != b[i].ToSeat {
			return false
		}
	}
	return true
}

func reserveOutcome(res ReserveResult, err error) string {
	switch {
	case err == nil && res.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomeConfirmed
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrPriceMismatch):
		return metrics.OutcomePriceMismatch
	case errors.Is(err, ErrStoreUnavailable):
		return metrics.OutcomeStoreUnavailable
	default:
		return metrics.OutcomeInvalid
	}
}

// Cancel releases a CONFIRMED booking owned by userID.  Its seats are
// available to the next Reserve as soon as Cancel returns.
func (m *Manager) Cancel(ctx context.Context, bookingID, userID string) (model.Booking, error) {
	b, err := m.GetBooking(ctx, bookingID, userID)
	if err != nil {
		return model.Booking{}, err
	}
	return m.transition(ctx, b, model.StatusCancelled, queue.TypeBookingCancelled)
}

// MarkAttended records that the attendee showed up.  The seats stay taken.
func (m *Manager) MarkAttended(ctx context.Context, bookingID string) (model.Booking, error) {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, unavailable("get booking", err)
	}
	return m.transition(ctx, b, model.StatusAttended, queue.TypeBookingAttended)
}

func (m *Manager) transition(ctx context.Context, b model.Booking, to model.BookingStatus, eventType string) (model.Booking, error) {
	if b.Status != model.StatusConfirmed {
		return model.Booking{}, ErrInvalidTransition
	}
	now := m.clock.Now()
	if err := m.store.UpdateStatus(ctx, b.ID, model.StatusConfirmed, to, now); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return model.Booking{}, ErrInvalidTransition
		}
		return model.Booking{}, unavailable("update status", err)
	}
	b.Status = to
	b.UpdatedAt = now
	metrics.StatusTransition(string(to))
	m.log.WithFields(logrus.Fields{"booking_id": b.ID, "event_id": b.EventID, "status": to}).Info("booking status changed")
	m.afterChange(ctx, eventType, b)
	return b, nil
}

// afterChange drops cached availability and notifies downstream consumers.
// Neither step can undo the change, so failures are only logged.
func (m *Manager) afterChange(ctx context.Context, eventType string, b model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := m.avail.Invalidate(ctx, b.EventID, blocksOf(b.Items)...); err != nil {
		m.log.WithError(err).WithField("booking_id", b.ID).Warn("availability cache invalidation failed")
	}
	if m.publisher == nil {
		return
	}
	err := m.publisher.Publish(ctx, queue.NewBookingEvent(eventType, b, m.clock.Now()))
	metrics.EventPublished(eventType, err)
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "type": eventType}).Warn("booking event not published")
	}
}

// GetBooking returns a booking owned by userID.  Bookings of other users
// are reported as not found.
func (m *Manager) GetBooking(ctx context.Context, bookingID, userID string) (model.Booking, error) {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, unavailable("get booking", err)
	}
	if b.UserID != userID {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

// ListBookings returns the user's bookings, newest first.
func (m *Manager) ListBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	bs, err := m.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, unavailable("list bookings", err)
	}
	return bs, nil
}

// Venue returns a venue's published block layout.
func (m *Manager) Venue(ctx context.Context, venueID string) (model.Venue, error) {
	v, err := m.catalog.Venue(ctx, venueID)
	if err != nil {
		return model.Venue{}, unavailable("load venue", err)
	}
	return v, nil
}

// Categories returns the purchasable categories of an event.
func (m *Manager) Categories(ctx context.Context, eventID string) ([]model.TicketCategory, error) {
	cat, err := m.catalog.EventCatalog(ctx, eventID)
	if err != nil {
		return nil, unavailable("load event catalog", err)
	}
	return NewCategoryIndex(ResolveCategories(cat.Definitions), &cat.Venue).All(), nil
}

// Availability returns the booked and free ranges of one block, served from
// the availability cache when possible.
func (m *Manager) Availability(ctx context.Context, eventID, blockName string) (BlockAvailability, error) {
	blockName = NormalizeBlockName(blockName)
	cached, version, cacheErr := m.avail.Get(ctx, eventID, blockName)
	switch {
	case cacheErr != nil:
		metrics.AvailabilityLookup("error")
		m.log.WithError(cacheErr).Warn("availability cache read failed")
	case cached != nil:
		metrics.AvailabilityLookup("hit")
		return *cached, nil
	case m.avail != nil:
		metrics.AvailabilityLookup("miss")
	}

	cat, err := m.catalog.EventCatalog(ctx, eventID)
	if err != nil {
		return BlockAvailability{}, unavailable("load event catalog", err)
	}
	block, ok := cat.Venue.Block(blockName)
	if !ok {
		return BlockAvailability{}, ErrBlockNotFound
	}
	active, err := m.store.FindActiveLineItems(ctx, eventID, blockName)
	if err != nil {
		return BlockAvailability{}, unavailable("find active line items", err)
	}
	a := buildAvailability(eventID, block, active)
	if cacheErr == nil {
		if err := m.avail.Set(ctx, a, version); err != nil {
			m.log.WithError(err).Warn("availability cache write failed")
		}
	}
	return a, nil
}
