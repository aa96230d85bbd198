package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// EventRepo persists events and their raw ticket definitions.  It embeds a
// VenueRepo so that together they serve as the reservation catalog.
type EventRepo struct {
	*VenueRepo
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{VenueRepo: NewVenueRepo(db), db: db}
}

// SaveEvent creates or replaces an event and its ticket definitions.  The
// definitions are stored as published, without normalization.
func (r *EventRepo) SaveEvent(ctx context.Context, e model.Event, defs []model.TicketDefinition) error {
	return withTx(ctx, r.db, nil, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		if _, err := q.ExecContext(ctx,
			`INSERT INTO events (id, venue_id, title, starts_at) VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE venue_id = VALUES(venue_id), title = VALUES(title), starts_at = VALUES(starts_at)`,
			e.ID, e.VenueID, e.Title, e.StartsAt.UTC()); err != nil {
			if isMissingParent(err) {
				return ErrVenueNotFound
			}
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM ticket_definitions WHERE event_id = ?`, e.ID); err != nil {
			return err
		}
		if len(defs) == 0 {
			return nil
		}
		query := `INSERT INTO ticket_definitions (event_id, position, name, block_name, price, price_type, start_seat, end_seat, quantity) VALUES `
		args := make([]any, 0, len(defs)*9)
		for i, d := range defs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
			args = append(args, e.ID, i, d.Name, d.BlockName, d.Price.String(), d.PriceType,
				d.StartSeat.String(), d.EndSeat.String(), d.Quantity.String())
		}
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
}

// Event returns a single event.  It returns ErrEventNotFound when no row
// matches.
func (r *EventRepo) Event(ctx context.Context, eventID string) (model.Event, error) {
	var e model.Event
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, venue_id, title, starts_at FROM events WHERE id = ?`, eventID).
		Scan(&e.ID, &e.VenueID, &e.Title, &e.StartsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrEventNotFound
		}
		return model.Event{}, err
	}
	return e, nil
}

// EventCatalog loads the event, its venue layout and its ticket definitions.
func (r *EventRepo) EventCatalog(ctx context.Context, eventID string) (model.EventCatalog, error) {
	e, err := r.Event(ctx, eventID)
	if err != nil {
		return model.EventCatalog{}, err
	}
	v, err := r.Venue(ctx, e.VenueID)
	if err != nil {
		return model.EventCatalog{}, err
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT name, block_name, price, price_type, start_seat, end_seat, quantity
		 FROM ticket_definitions WHERE event_id = ? ORDER BY position`, eventID)
	if err != nil {
		return model.EventCatalog{}, err
	}
	defer rows.Close()
	var defs []model.TicketDefinition
	for rows.Next() {
		var (
			d                      model.TicketDefinition
			price, start, end, qty string
		)
		if err := rows.Scan(&d.Name, &d.BlockName, &price, &d.PriceType, &start, &end, &qty); err != nil {
			return model.EventCatalog{}, err
		}
		d.Price, d.StartSeat, d.EndSeat, d.Quantity = model.FlexValue(price), model.FlexValue(start), model.FlexValue(end), model.FlexValue(qty)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return model.EventCatalog{}, err
	}
	return model.EventCatalog{Event: e, Venue: v, Definitions: defs}, nil
}
