package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
)

func TestReserve_OverlapThenDisjointRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.reserve(t, "+911111111111", sel("Normal", "A", 10, 14))
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, first.Booking.Status)
	assert.Equal(t, 5, first.Booking.TotalSeats)
	assert.True(t, decimal.NewFromInt(2500).Equal(first.Booking.TotalPrice))
	assert.False(t, first.Replayed)

	_, err = f.reserve(t, "+922222222222", sel("Normal", "A", 12, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []model.SeatRange{{BlockName: "A", FromSeat: 12, ToSeat: 14}}, ce.Seats)
	assert.Equal(t, "A12-A14 already booked", ce.Error())

	second, err := f.reserve(t, "+922222222222", sel("Normal", "A", 15, 19))
	require.NoError(t, err)
	assert.Equal(t, 5, second.Booking.TotalSeats)
	assert.True(t, decimal.NewFromInt(2500).Equal(second.Booking.TotalPrice))

	active, err := f.store.FindActiveLineItems(ctx, testEvent, "A")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, [2]int{10, 14}, [2]int{active[0].FromSeat, active[0].ToSeat})
	assert.Equal(t, [2]int{15, 19}, [2]int{active[1].FromSeat, active[1].ToSeat})
}

func TestReserve_AdjacentRangesDoNotConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.reserve(t, "u1", sel("Normal", "A", 1, 5))
	require.NoError(t, err)
	_, err = f.reserve(t, "u2", sel("Normal", "A", 6, 10))
	require.NoError(t, err)
	_, err = f.reserve(t, "u3", sel("Normal", "A", 5, 6))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReserve_SameSeatsInOtherBlockOrEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveEvent(ctx, model.Event{ID: "concert-2", VenueID: "arena", Title: "Second Night", StartsAt: testNow},
		[]model.TicketDefinition{{Name: "Normal", BlockName: "A", Price: "500", Quantity: "100"}}))

	_, err := f.reserve(t, "u1", sel("Normal", "A", 1, 5))
	require.NoError(t, err)
	_, err = f.reserve(t, "u1", sel("VIP", "B", 1, 5))
	require.NoError(t, err)
	_, err = f.manager.Reserve(ctx, ReserveRequest{EventID: "concert-2", UserID: "u2", Selections: []Selection{sel("Normal", "A", 1, 5)}})
	require.NoError(t, err)
}

func TestReserve_AllOrNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.reserve(t, "u1", sel("VIP", "B", 1, 2))
	require.NoError(t, err)

	_, err = f.reserve(t, "u2", sel("Normal", "A", 20, 22), sel("VIP", "B", 2, 3))
	require.ErrorIs(t, err, ErrConflict)

	active, err := f.store.FindActiveLineItems(context.Background(), testEvent, "A")
	require.NoError(t, err)
	assert.Empty(t, active, "no line item of a rejected booking may be stored")

	_, err = f.reserve(t, "u3", sel("Normal", "A", 20, 22))
	assert.NoError(t, err)
}

func TestReserve_MultiBlockTotals(t *testing.T) {
	f := newFixture(t)

	res, err := f.reserve(t, "u1", sel("Normal", "A", 1, 2), sel("VIP", "B", 5, 5))
	require.NoError(t, err)
	b := res.Booking
	require.Len(t, b.Items, 2)
	assert.Equal(t, 3, b.TotalSeats)
	assert.True(t, decimal.NewFromInt(2200).Equal(b.TotalPrice), b.TotalPrice.String())
	assert.True(t, decimal.NewFromInt(1200).Equal(b.Items[1].UnitPrice))
	assert.Equal(t, testNow, b.CreatedAt)
}

func TestReserve_ExpectedTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wrong := decimal.NewFromInt(2000)
	_, err := f.manager.Reserve(ctx, ReserveRequest{
		EventID: testEvent, UserID: "u1",
		Selections:    []Selection{sel("Normal", "A", 1, 5)},
		ExpectedTotal: &wrong,
	})
	var pe *PriceMismatchError
	require.ErrorAs(t, err, &pe)
	assert.True(t, decimal.NewFromInt(2500).Equal(pe.Actual))
	assert.ErrorIs(t, err, ErrPriceMismatch)

	right := decimal.RequireFromString("2500.00")
	res, err := f.manager.Reserve(ctx, ReserveRequest{
		EventID: testEvent, UserID: "u1",
		Selections:    []Selection{sel("Normal", "A", 1, 5)},
		ExpectedTotal: &right,
	})
	require.NoError(t, err)
	assert.Equal(t, "2500.00", res.Booking.TotalPrice.StringFixed(2))
}

func TestReserve_ValidationReasons(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		user   string
		sels   []Selection
		reason ValidationReason
	}{
		{"missing user", testEvent, " ", []Selection{sel("Normal", "A", 1, 1)}, ReasonMissingUser},
		{"unknown event", "nope", "u1", []Selection{sel("Normal", "A", 1, 1)}, ReasonUnknownEvent},
		{"empty", testEvent, "u1", nil, ReasonEmptyBooking},
		{"unknown category", testEvent, "u1", []Selection{sel("Gold", "A", 1, 1)}, ReasonUnknownCategory},
		{"category not sold in block", testEvent, "u1", []Selection{sel("Normal", "B", 1, 1)}, ReasonUnknownBlock},
		{"inverted", testEvent, "u1", []Selection{sel("Normal", "A", 5, 3)}, ReasonRangeInverted},
		{"seat zero", testEvent, "u1", []Selection{sel("Normal", "A", 0, 3)}, ReasonSeatOutOfRange},
		{"past block end", testEvent, "u1", []Selection{sel("Normal", "A", 99, 101)}, ReasonSeatOutOfRange},
		{"self overlap", testEvent, "u1", []Selection{sel("Normal", "A", 1, 5), sel("Normal", "A", 5, 8)}, ReasonOverlapping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.manager.Reserve(context.Background(), ReserveRequest{EventID: tt.event, UserID: tt.user, Selections: tt.sels})
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.reason, ve.Reason)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.pub.published())
		})
	}
}

func TestReserve_ConcurrentOverlappingAttempts(t *testing.T) {
	f := newFixture(t)
	const n = 50

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		confirmed atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// every attempt covers seat 50
			from := 41 + i%10
			_, err := f.manager.Reserve(context.Background(), ReserveRequest{
				EventID: testEvent, UserID: "u", Selections: []Selection{sel("Normal", "A", from, from+9)},
			})
			switch {
			case err == nil:
				confirmed.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), confirmed.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())

	active, err := f.store.FindActiveLineItems(context.Background(), testEvent, "A")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestReserve_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	ledger := &failingLedger{BookingLedger: f.store, findErr: errors.New("connection refused")}
	f.manager.store = ledger

	_, err := f.reserve(t, "u1", sel("Normal", "A", 1, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	var se *StoreUnavailableError
	require.ErrorAs(t, err, &se)
	assert.EqualError(t, se.Err, "connection refused")
	assert.Zero(t, ledger.commits.Load())

	ledger.findErr = nil
	ledger.commitErr = errors.New("lock wait timeout")
	_, err = f.reserve(t, "u1", sel("Normal", "A", 1, 2))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	active, err := f.store.FindActiveLineItems(context.Background(), testEvent, "A")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestReserve_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Reserve(ctx, ReserveRequest{EventID: testEvent, UserID: "u1", Selections: []Selection{sel("Normal", "A", 1, 1)}})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReserve_PaymentReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := ReserveRequest{EventID: testEvent, UserID: "u1", Selections: []Selection{sel("Normal", "A", 1, 2)}, PaymentReference: "pay_123"}

	first, err := f.manager.Reserve(ctx, req)
	require.NoError(t, err)

	again, err := f.manager.Reserve(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)

	bs, err := f.store.ListBookingsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, bs, 1)
	assert.Len(t, f.pub.published(), 1, "a replay publishes nothing")

	other := req
	other.Selections = []Selection{sel("Normal", "A", 3, 4)}
	_, err = f.manager.Reserve(ctx, other)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonPaymentRefReused, ve.Reason)

	thief := req
	thief.UserID = "u2"
	_, err = f.manager.Reserve(ctx, thief)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonPaymentRefReused, ve.Reason)
}

func TestReserve_PublishesConfirmedEvent(t *testing.T) {
	f := newFixture(t)

	res, err := f.reserve(t, "u1", sel("Normal", "A", 7, 8))
	require.NoError(t, err)

	evs := f.pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.TypeBookingConfirmed, evs[0].Type)
	assert.Equal(t, res.Booking.ID, evs[0].BookingID)
	assert.Equal(t, []string{"A7", "A8"}, evs[0].Seats)
	assert.Equal(t, "1000.00", evs[0].TotalPrice)
}

func TestReserve_PublishFailureKeepsBooking(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f.manager.publisher = pub

	res, err := f.reserve(t, "u1", sel("Normal", "A", 1, 1))
	require.NoError(t, err)
	pub.AssertNumberOfCalls(t, "Publish", 1)

	got, err := f.store.GetBooking(context.Background(), res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestCancel_FreesSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserve(t, "u1", sel("Normal", "A", 10, 14))
	require.NoError(t, err)
	_, err = f.reserve(t, "u2", sel("Normal", "A", 12, 12))
	require.ErrorIs(t, err, ErrConflict)

	cancelled, err := f.manager.Cancel(ctx, res.Booking.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = f.reserve(t, "u2", sel("Normal", "A", 12, 12))
	require.NoError(t, err)

	evs := f.pub.published()
	require.Len(t, evs, 3)
	assert.Equal(t, queue.TypeBookingCancelled, evs[1].Type)
}

func TestCancel_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserve(t, "u1", sel("Normal", "A", 1, 1))
	require.NoError(t, err)

	_, err = f.manager.Cancel(ctx, res.Booking.ID, "someone-else")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.manager.Cancel(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.manager.Cancel(ctx, res.Booking.ID, "u1")
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, res.Booking.ID, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkAttended_KeepsSeatsTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserve(t, "u1", sel("VIP", "B", 1, 4))
	require.NoError(t, err)

	b, err := f.manager.MarkAttended(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAttended, b.Status)

	_, err = f.reserve(t, "u2", sel("VIP", "B", 4, 6))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.manager.Cancel(ctx, res.Booking.ID, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.reserve(t, "u1", sel("Normal", "A", 1, 1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, invalidCount atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.manager.Cancel(ctx, res.Booking.ID, "u1")
			} else {
				_, err = f.manager.MarkAttended(ctx, res.Booking.ID)
			}
			if err == nil {
				ok.Add(1)
			} else if errors.Is(err, ErrInvalidTransition) {
				invalidCount.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(9), invalidCount.Load())
}

func TestBookingsReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.reserve(t, "u1", sel("Normal", "A", 1, 1))
	require.NoError(t, err)
	b, err := f.reserve(t, "u1", sel("Normal", "A", 2, 2))
	require.NoError(t, err)

	list, err := f.manager.ListBookings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.Booking.ID, list[0].ID)
	assert.Equal(t, a.Booking.ID, list[1].ID)

	none, err := f.manager.ListBookings(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	got, err := f.manager.GetBooking(ctx, a.Booking.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, a.Booking.Items, got.Items)

	_, err = f.manager.GetBooking(ctx, a.Booking.ID, "u2")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCategoriesAndAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cats, err := f.manager.Categories(ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "VIP", cats[1].Name)
	assert.Equal(t, 20, cats[1].EndSeat)
	assert.True(t, decimal.NewFromInt(1200).Equal(cats[1].UnitPrice))

	_, err = f.reserve(t, "u1", sel("Normal", "A", 1, 5))
	require.NoError(t, err)
	_, err = f.reserve(t, "u2", sel("Normal", "A", 6, 10), sel("Normal", "A", 50, 50))
	require.NoError(t, err)

	av, err := f.manager.Availability(ctx, testEvent, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", av.BlockName)
	assert.Equal(t, 11, av.BookedSeats)
	assert.Equal(t, 89, av.FreeSeats)
	assert.Equal(t, []model.SeatRange{{BlockName: "A", FromSeat: 1, ToSeat: 10}, {BlockName: "A", FromSeat: 50, ToSeat: 50}}, av.Booked)
	assert.Equal(t, []model.SeatRange{{BlockName: "A", FromSeat: 11, ToSeat: 49}, {BlockName: "A", FromSeat: 51, ToSeat: 100}}, av.Free)

	_, err = f.manager.Availability(ctx, testEvent, "Z")
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = f.manager.Categories(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
}

func TestUnavailablePassesDomainErrorsThrough(t *testing.T) {
	ve := invalid(ReasonEmptyBooking, "x")
	assert.Same(t, ve, unavailable("op", ve))
	assert.ErrorIs(t, unavailable("op", repository.ErrBookingNotFound), ErrBookingNotFound)
	assert.Nil(t, unavailable("op", nil))

	err := unavailable("op", errors.New("boom"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "during op: boom")
	var se *StoreUnavailableError
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Transient)

	err = unavailable("commit", fmt.Errorf("lock blocks: %w", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Transient)
	assert.Equal(t, "commit", se.Op)
}
