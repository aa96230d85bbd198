package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
)

// Sentinels for errors.Is checks at the API boundary.  The concrete error
// types below carry the details.
var (
	ErrValidation        = errors.New("invalid selection")
	ErrConflict          = errors.New("seats already booked")
	ErrStoreUnavailable  = errors.New("booking store unavailable")
	ErrPriceMismatch     = errors.New("price mismatch")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrBlockNotFound     = errors.New("block not found")

	ErrBookingNotFound = repository.ErrBookingNotFound
	ErrEventNotFound   = repository.ErrEventNotFound
	ErrVenueNotFound   = repository.ErrVenueNotFound
)

// ValidationReason names the constraint a selection failed.
type ValidationReason string

const (
	ReasonUnknownEvent     ValidationReason = "unknown_event"
	ReasonUnknownCategory  ValidationReason = "unknown_category"
	ReasonUnknownBlock     ValidationReason = "unknown_block"
	ReasonRangeInverted    ValidationReason = "range_inverted"
	ReasonSeatOutOfRange   ValidationReason = "seat_out_of_range"
	ReasonEmptyBooking     ValidationReason = "empty_booking"
	ReasonOverlapping      ValidationReason = "overlapping_selection"
	ReasonMissingUser      ValidationReason = "missing_user"
	ReasonPaymentRefReused ValidationReason = "payment_reference_reused"
)

// ValidationError rejects a single booking attempt.  The caller must
// resubmit a corrected selection; retrying as-is fails the same way.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(reason ValidationReason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ConflictError lists the seats that are already held by other non-cancelled
// bookings.  Seats are merged per block and sorted.
type ConflictError struct {
	EventID string
	Seats   []model.SeatRange
}

func (e *ConflictError) Error() string {
	labels := make([]string, 0, len(e.Seats))
	for _, r := range e.Seats {
		labels = append(labels, r.Label())
	}
	return strings.Join(labels, ", ") + " already booked"
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StoreUnavailableError wraps an infrastructure failure of the booking
// store.  Nothing was committed, so the whole Reserve call may be retried.
type StoreUnavailableError struct {
	Op  string
	Err error
	// Transient marks lock wait timeouts and deadlocks, which usually
	// succeed on an immediate retry.
	Transient bool
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("booking store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// PriceMismatchError is returned when the caller's expected total differs
// from the total computed on the server.
type PriceMismatchError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("expected total %s does not match computed total %s", e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *PriceMismatchError) Is(target error) bool { return target == ErrPriceMismatch }

// unavailable wraps err unless it is already one of the domain errors.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		ce *ConflictError
		se *StoreUnavailableError
	)
	if errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &se) ||
		errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrVenueNotFound) ||
		errors.Is(err, ErrBlockNotFound) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err, Transient: repository.IsRetryable(err)}
}
