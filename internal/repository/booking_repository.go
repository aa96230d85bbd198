package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// BookingRepo is the MySQL booking store.  Reservations for an (event,
// block) pair are serialized by locking that pair's block_locks row FOR
// UPDATE inside a READ COMMITTED transaction; the overlap check and the
// insert both run in that transaction.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// WithBlockLocks opens the reservation transaction, locks the block rows in
// sorted order and runs fn with the transaction in its context.  fn's
// error rolls everything back.
func (r *BookingRepo) WithBlockLocks(ctx context.Context, eventID string, blocks []string, fn func(ctx context.Context) error) error {
	keys := sortedUnique(blocks)
	if txFromContext(ctx) == nil && len(keys) > 0 {
		// Lock rows are created outside the transaction: INSERT IGNORE takes a
		// shared lock on an existing row, and upgrading it to the FOR UPDATE
		// lock below would deadlock two concurrent reservations.
		if err := r.ensureLockRows(ctx, eventID, keys); err != nil {
			return fmt.Errorf("ensure block lock rows: %w", err)
		}
	}
	return withTx(ctx, r.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context) error {
		if len(keys) > 0 {
			if err := r.lockRows(ctx, eventID, keys); err != nil {
				return err
			}
		}
		return fn(ctx)
	})
}

func (r *BookingRepo) ensureLockRows(ctx context.Context, eventID string, blocks []string) error {
	query := `INSERT IGNORE INTO block_locks (event_id, block_name) VALUES `
	args := make([]any, 0, len(blocks)*2)
	for i, b := range blocks {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, eventID, b)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *BookingRepo) lockRows(ctx context.Context, eventID string, blocks []string) error {
	q := `SELECT block_name FROM block_locks
	      WHERE event_id = ? AND block_name IN (` + placeholders(len(blocks)) + `)
	      ORDER BY block_name FOR UPDATE`
	args := make([]any, 0, len(blocks)+1)
	args = append(args, eventID)
	for _, b := range blocks {
		args = append(args, b)
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("lock blocks: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock blocks: %w", err)
	}
	if n != len(blocks) {
		return fmt.Errorf("lock blocks: locked %d of %d rows", n, len(blocks))
	}
	return nil
}

// FindActiveLineItems returns the line items of non-cancelled bookings for
// the event and block, ordered by first seat.
func (r *BookingRepo) FindActiveLineItems(ctx context.Context, eventID, blockName string) ([]model.BookingLineItem, error) {
	const q = `SELECT li.category, li.block_name, li.from_seat, li.to_seat, li.quantity, li.unit_price, li.line_total
	           FROM booking_line_items li
	           JOIN bookings b ON b.id = li.booking_id
	           WHERE li.event_id = ? AND li.block_name = ? AND b.status <> ?
	           ORDER BY li.from_seat`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, eventID, blockName, string(model.StatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingLineItem
	for rows.Next() {
		var li model.BookingLineItem
		if err := rows.Scan(&li.Category, &li.BlockName, &li.FromSeat, &li.ToSeat, &li.Quantity, &li.UnitPrice, &li.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// CommitBooking inserts the booking and its line items.  Inside
// WithBlockLocks it joins the reservation transaction; otherwise it opens
// its own.
func (r *BookingRepo) CommitBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	err := withTx(ctx, r.db, nil, func(ctx context.Context) error {
		const q = `INSERT INTO bookings (id, user_id, event_id, status, total_seats, total_price, payment_reference, created_at, updated_at)
		           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		var ref sql.NullString
		if b.PaymentReference != "" {
			ref = sql.NullString{String: b.PaymentReference, Valid: true}
		}
		if _, err := conn(ctx, r.db).ExecContext(ctx, q,
			b.ID, b.UserID, b.EventID, string(b.Status), b.TotalSeats, b.TotalPrice, ref, b.CreatedAt, b.UpdatedAt,
		); err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicatePaymentReference
			}
			return err
		}
		return r.insertLineItems(ctx, b)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// insertLineItems writes all line items in a single statement.
func (r *BookingRepo) insertLineItems(ctx context.Context, b model.Booking) error {
	if len(b.Items) == 0 {
		return nil
	}
	query := `INSERT INTO booking_line_items (booking_id, position, event_id, block_name, category, from_seat, to_seat, quantity, unit_price, line_total) VALUES `
	args := make([]any, 0, len(b.Items)*10)
	for i, li := range b.Items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, b.ID, i, b.EventID, li.BlockName, li.Category, li.FromSeat, li.ToSeat, li.Quantity, li.UnitPrice, li.LineTotal)
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

const bookingColumns = `id, user_id, event_id, status, total_seats, total_price, payment_reference, created_at, updated_at`

func scanBooking(sc interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b      model.Booking
		status string
		ref    sql.NullString
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.EventID, &status, &b.TotalSeats, &b.TotalPrice, &ref, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentReference = ref.String
	return b, nil
}

// GetBooking returns a booking with its line items.
func (r *BookingRepo) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, err
	}
	items, err := r.lineItems(ctx, []string{b.ID})
	if err != nil {
		return model.Booking{}, err
	}
	b.Items = items[b.ID]
	return b, nil
}

// FindByPaymentReference returns nil, nil when ref is unused for the event.
func (r *BookingRepo) FindByPaymentReference(ctx context.Context, eventID, ref string) (*model.Booking, error) {
	const q = `SELECT id FROM bookings WHERE event_id = ? AND payment_reference = ?`
	var id string
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, eventID, ref).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b, err := r.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookingsByUser returns the user's bookings, newest first.  An empty
// slice is returned when there are none.
func (r *BookingRepo) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	out := []model.Booking{}
	ids := []string{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	items, err := r.lineItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// lineItems loads the line items of the given bookings keyed by booking id.
func (r *BookingRepo) lineItems(ctx context.Context, bookingIDs []string) (map[string][]model.BookingLineItem, error) {
	out := make(map[string][]model.BookingLineItem, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	q := `SELECT booking_id, category, block_name, from_seat, to_seat, quantity, unit_price, line_total
	      FROM booking_line_items
	      WHERE booking_id IN (` + placeholders(len(bookingIDs)) + `)
	      ORDER BY booking_id, position`
	args := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			li model.BookingLineItem
		)
		if err := rows.Scan(&id, &li.Category, &li.BlockName, &li.FromSeat, &li.ToSeat, &li.Quantity, &li.UnitPrice, &li.LineTotal); err != nil {
			return nil, err
		}
		out[id] = append(out[id], li)
	}
	return out, rows.Err()
}

// UpdateStatus performs a conditional status change.  It returns
// ErrBookingNotFound for unknown ids and ErrStatusConflict when the booking
// is not currently in from.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, string(to), at, id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = conn(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return ErrStatusConflict
}

// DB exposes the underlying handle for callers that need a health check.
func (r *BookingRepo) DB() *sql.DB { return r.db }
