package domain

import (
	"context"
	"time"

	"namelis/internal/models"
)

// BookingRepository is the persistence surface for booking records.
type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) error
	GetBookedTimes(ctx context.Context, cabinID, date string) (map[string]bool, error)
}

// SessionRepository stores widget sessions with a TTL. A missing
// session is reported as (nil, nil).
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*models.WidgetSession, error)
	SaveSession(ctx context.Context, session *models.WidgetSession) error
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SlotProvider produces the slot grid for a cabin and date.
type SlotProvider interface {
	Load(ctx context.Context, cabinID, date string) ([]models.Slot, error)
}

// CabinCatalog resolves cabins for selection and display.
type CabinCatalog interface {
	All() []models.Cabin
	Get(id string) (models.Cabin, bool)
}

// BookingNotifier delivers the fire-and-forget webhook notification.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, n models.BookingNotification) error
}

// EventPublisher fans booking lifecycle events out to subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingService validates and persists booking requests.
type BookingService interface {
	ValidateBookingDate(date string) error
	CreateBooking(ctx context.Context, booking *models.Booking) error
	CancelBooking(ctx context.Context, id, version int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}
