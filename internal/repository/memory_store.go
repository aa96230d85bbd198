package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// MemoryStore keeps venues, events and bookings in process.  It serves
// tests and single-node development (STORE_DRIVER=memory).  Block locks are
// one-slot channels so waiting for a lock honours context cancellation.
type MemoryStore struct {
	lockMu sync.Mutex
	locks  map[string]chan struct{}

	mu       sync.RWMutex
	venues   map[string]model.Venue
	events   map[string]model.EventCatalog
	bookings map[string]model.Booking
	seq      map[string]int // insertion order for stable listing
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    make(map[string]chan struct{}),
		venues:   make(map[string]model.Venue),
		events:   make(map[string]model.EventCatalog),
		bookings: make(map[string]model.Booking),
		seq:      make(map[string]int),
	}
}

// SaveVenue creates or replaces a venue.
func (s *MemoryStore) SaveVenue(_ context.Context, v model.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Blocks = append([]model.Block(nil), v.Blocks...)
	s.venues[v.ID] = v
	return nil
}

// SaveEvent creates or replaces an event with its ticket definitions.  The
// venue must already exist.
func (s *MemoryStore) SaveEvent(_ context.Context, e model.Event, defs []model.TicketDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[e.VenueID]; !ok {
		return ErrVenueNotFound
	}
	s.events[e.ID] = model.EventCatalog{Event: e, Definitions: append([]model.TicketDefinition(nil), defs...)}
	return nil
}

// Venue implements the catalog read of a venue layout.
func (s *MemoryStore) Venue(_ context.Context, venueID string) (model.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[venueID]
	if !ok {
		return model.Venue{}, ErrVenueNotFound
	}
	v.Blocks = append([]model.Block(nil), v.Blocks...)
	return v, nil
}

// EventCatalog returns the event, its venue and its ticket definitions.
func (s *MemoryStore) EventCatalog(_ context.Context, eventID string) (model.EventCatalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ec, ok := s.events[eventID]
	if !ok {
		return model.EventCatalog{}, ErrEventNotFound
	}
	v, ok := s.venues[ec.Event.VenueID]
	if !ok {
		return model.EventCatalog{}, ErrVenueNotFound
	}
	ec.Venue = v
	ec.Venue.Blocks = append([]model.Block(nil), v.Blocks...)
	ec.Definitions = append([]model.TicketDefinition(nil), ec.Definitions...)
	return ec, nil
}

func (s *MemoryStore) blockLock(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	return l
}

// WithBlockLocks acquires the (event, block) locks in sorted order, runs fn
// and releases them.
func (s *MemoryStore) WithBlockLocks(ctx context.Context, eventID string, blocks []string, fn func(ctx context.Context) error) error {
	keys := sortedUnique(blocks)
	held := make([]chan struct{}, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}()
	for _, b := range keys {
		l := s.blockLock(eventID + "\x00" + b)
		select {
		case l <- struct{}{}:
			held = append(held, l)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fn(ctx)
}

// FindActiveLineItems returns the line items of non-cancelled bookings for
// the event and block.
func (s *MemoryStore) FindActiveLineItems(ctx context.Context, eventID, blockName string) ([]model.BookingLineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BookingLineItem
	for _, b := range s.bookings {
		if b.EventID != eventID || !b.Status.Active() {
			continue
		}
		for _, li := range b.Items {
			if li.BlockName == blockName {
				out = append(out, li)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromSeat < out[j].FromSeat })
	return out, nil
}

// CommitBooking stores b.  A payment reference may be used once per event.
func (s *MemoryStore) CommitBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.PaymentReference != "" {
		for _, other := range s.bookings {
			if other.EventID == b.EventID && other.PaymentReference == b.PaymentReference {
				return model.Booking{}, ErrDuplicatePaymentReference
			}
		}
	}
	b.Items = append([]model.BookingLineItem(nil), b.Items...)
	s.bookings[b.ID] = b
	s.seq[b.ID] = len(s.seq)
	return copyBooking(b), nil
}

// FindByPaymentReference returns nil, nil when ref is unused for the event.
func (s *MemoryStore) FindByPaymentReference(_ context.Context, eventID, ref string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.EventID == eventID && b.PaymentReference == ref {
			c := copyBooking(b)
			return &c, nil
		}
	}
	return nil, nil
}

// GetBooking returns a booking by id.
func (s *MemoryStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	return copyBooking(b), nil
}

// ListBookingsByUser returns the user's bookings, newest first.
func (s *MemoryStore) ListBookingsByUser(_ context.Context, userID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// UpdateStatus moves a booking from one status to another.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	if b.Status != from {
		return ErrStatusConflict
	}
	b.Status = to
	b.UpdatedAt = at
	s.bookings[id] = b
	return nil
}

func copyBooking(b model.Booking) model.Booking {
	b.Items = append([]model.BookingLineItem(nil), b.Items...)
	return b
}

func sortedUnique(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	j := 0
	for i, s := range out {
		if i == 0 || s != out[j-1] {
			out[j] = s
			j++
		}
	}
	return out[:j]
}
