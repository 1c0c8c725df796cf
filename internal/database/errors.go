package database

import "errors"

var (
	// ErrSlotTaken is returned when a non-cancelled booking already
	// holds the requested cabin, date and time.
	ErrSlotTaken = errors.New("slot is already booked")

	// ErrPastDate rejects bookings for dates before today.
	ErrPastDate = errors.New("date is in the past")

	// ErrDateTooFar rejects dates beyond the selectable window.
	ErrDateTooFar = errors.New("date is beyond the booking window")

	ErrBookingNotFound        = errors.New("booking not found")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
