package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// VenueRepo persists venue layouts.  Layouts are owned by venue management
// and only read by the reservation engine; SaveVenue exists for seeding.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the given DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// SaveVenue creates or replaces a venue and its blocks in one transaction.
// Block positions follow the slice order.
func (r *VenueRepo) SaveVenue(ctx context.Context, v model.Venue) error {
	return withTx(ctx, r.db, nil, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		if _, err := q.ExecContext(ctx,
			`INSERT INTO venues (id, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)`,
			v.ID, v.Name); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM venue_blocks WHERE venue_id = ?`, v.ID); err != nil {
			return err
		}
		if len(v.Blocks) == 0 {
			return nil
		}
		query := `INSERT INTO venue_blocks (venue_id, position, name, category, total_seats) VALUES `
		args := make([]any, 0, len(v.Blocks)*5)
		for i, b := range v.Blocks {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, v.ID, i, b.Name, string(b.Category), b.TotalSeats)
		}
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
}

// Venue returns a venue with its blocks in position order.  It returns
// ErrVenueNotFound when no row is found.
func (r *VenueRepo) Venue(ctx context.Context, venueID string) (model.Venue, error) {
	var v model.Venue
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, name FROM venues WHERE id = ?`, venueID).Scan(&v.ID, &v.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Venue{}, ErrVenueNotFound
		}
		return model.Venue{}, err
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT name, category, total_seats FROM venue_blocks WHERE venue_id = ? ORDER BY position`, venueID)
	if err != nil {
		return model.Venue{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			b   model.Block
			cat string
		)
		if err := rows.Scan(&b.Name, &cat, &b.TotalSeats); err != nil {
			return model.Venue{}, err
		}
		b.Category = model.BlockCategory(cat)
		v.Blocks = append(v.Blocks, b)
	}
	return v, rows.Err()
}
