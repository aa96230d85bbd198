package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/block-seat-reservation/internal/clock"
	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
)

const testEvent = "concert-1"

var testNow = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

// mockPublisher records published booking events.
type mockPublisher struct {
	mock.Mock
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *mockPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return p.Called(ctx, ev).Error(0)
}

func (p *mockPublisher) published() []queue.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingEvent(nil), p.events...)
}

type fixture struct {
	manager *Manager
	store   *repository.MemoryStore
	pub     *mockPublisher
}

// newFixture seeds one venue (A: 100 NORMAL seats, B: 20 VIP seats) and one
// event selling A1-A100 at ₹500 and B1-B20 at 1,200.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.SaveVenue(ctx, model.Venue{
		ID:   "arena",
		Name: "City Arena",
		Blocks: []model.Block{
			{Name: "A", Category: model.BlockNormal, TotalSeats: 100},
			{Name: "B", Category: model.BlockVIP, TotalSeats: 20},
		},
	}))
	require.NoError(t, store.SaveEvent(ctx, model.Event{ID: testEvent, VenueID: "arena", Title: "Opening Night", StartsAt: testNow.Add(48 * time.Hour)},
		[]model.TicketDefinition{
			{Name: "Normal", BlockName: "A", Price: "₹500", PriceType: "per_seat", StartSeat: "1", EndSeat: "100"},
			{Name: "VIP", BlockName: "B", Price: "1,200", Quantity: "20"},
		}))

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	log, _ := test.NewNullLogger()
	m := NewManager(store, store, pub, nil, clock.NewFixed(testNow), log)
	var n atomic.Int64
	m.newID = func() string { return fmt.Sprintf("bk-%d", n.Add(1)) }
	return &fixture{manager: m, store: store, pub: pub}
}

func sel(category, block string, from, to int) Selection {
	return Selection{Category: category, BlockName: block, FromSeat: from, ToSeat: to}
}

func (f *fixture) reserve(t *testing.T, user string, sels ...Selection) (ReserveResult, error) {
	t.Helper()
	return f.manager.Reserve(context.Background(), ReserveRequest{EventID: testEvent, UserID: user, Selections: sels})
}

// failingLedger injects errors into a working store.
type failingLedger struct {
	BookingLedger
	findErr   error
	commitErr error
	commits   atomic.Int32
}

func (l *failingLedger) FindActiveLineItems(ctx context.Context, eventID, block string) ([]model.BookingLineItem, error) {
	if l.findErr != nil {
		return nil, l.findErr
	}
	return l.BookingLedger.FindActiveLineItems(ctx, eventID, block)
}

func (l *failingLedger) CommitBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	l.commits.Add(1)
	if l.commitErr != nil {
		return model.Booking{}, l.commitErr
	}
	return l.BookingLedger.CommitBooking(ctx, b)
}
