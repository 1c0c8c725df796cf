package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"namelis/internal/models"
)

// CreateBookingWithLock inserts a booking after verifying, inside the
// same transaction, that no live booking holds the slot. On success the
// booking's ID, timestamps and version are filled in.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var taken int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE cabin_id = ? AND date = ? AND time = ? AND status != ?`
	err = tx.QueryRowContext(ctx, queryCount,
		booking.CabinID, booking.Date, booking.Time, models.StatusCancelled).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	queryInsert := `INSERT INTO bookings (
				cabin_id, cabin_name, date, time, user_id, user_email,
				full_name, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.CabinID,
		booking.CabinName,
		booking.Date,
		booking.Time,
		booking.UserID,
		booking.UserEmail,
		booking.FullName,
		booking.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

// GetBookedTimes returns the slot labels held by live bookings for a
// cabin on a date.
func (db *DB) GetBookedTimes(ctx context.Context, cabinID, date string) (map[string]bool, error) {
	query := `SELECT time FROM bookings WHERE cabin_id = ? AND date = ? AND status != ?`
	rows, err := db.QueryContext(ctx, query, cabinID, date, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked times: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan booked time: %w", err)
		}
		booked[t] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booked times: %w", err)
	}
	return booked, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT id, cabin_id, cabin_name, date, time, user_id, user_email,
	                 full_name, status, created_at, updated_at, version
	          FROM bookings WHERE id = ?`

	var b models.Booking
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.CabinID, &b.CabinName, &b.Date, &b.Time, &b.UserID,
		&b.UserEmail, &b.FullName, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListBookings returns bookings matching the filter, newest first.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT id, cabin_id, cabin_name, date, time, user_id, user_email,
	                 full_name, status, created_at, updated_at, version
	          FROM bookings`

	var conds []string
	var args []any
	if filter.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.CabinID != "" {
		conds = append(conds, "cabin_id = ?")
		args = append(args, filter.CabinID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, time DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		err := rows.Scan(
			&b.ID, &b.CabinID, &b.CabinName, &b.Date, &b.Time, &b.UserID,
			&b.UserEmail, &b.FullName, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}
