package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	// TimeLayout is the wire format for slot labels.
	TimeLayout = "15:04"
)

const (
	// DefaultSessionTTL is how long an idle widget session lives, in seconds.
	DefaultSessionTTL = 30 * 60

	// DefaultBookingWindowDays is the rolling selectable date window,
	// including today.
	DefaultBookingWindowDays = 7

	// DefaultSlotMinutes is the slot grid step when a cabin does not
	// declare its own.
	DefaultSlotMinutes = 60

	// DefaultOpen and DefaultClose bound the default slot grid.
	DefaultOpen  = "09:00"
	DefaultClose = "21:00"

	// RateLimitRequests is the public endpoint budget per window.
	RateLimitRequests = 30

	// RateLimitWindow is the public rate-limit window in seconds.
	RateLimitWindow = 60
)
