package service

import (
	"context"
	"fmt"
	"time"

	"namelis/internal/database"
	"namelis/internal/domain"
	"namelis/internal/events"
	"namelis/internal/models"

	"github.com/rs/zerolog"
)

// BookingService enforces the booking window and owns the write path for
// booking records. Every successful state change is published on the
// event bus.
type BookingService struct {
	repo           domain.BookingRepository
	eventBus       domain.EventPublisher
	loc            *time.Location
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, loc *time.Location, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if loc == nil {
		loc = time.Local
	}
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultBookingWindowDays
	}

	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		loc:            loc,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

// ValidateBookingDate accepts dates from today up to maxBookingDays-1
// days ahead, evaluated on the venue clock.
func (s *BookingService) ValidateBookingDate(date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, s.loc)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", date, err)
	}

	now := time.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	if day.Before(today) {
		return database.ErrPastDate
	}
	if !day.Before(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}

	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.ValidateBookingDate(booking.Date); err != nil {
		return err
	}

	// Slot occupancy is checked inside the insert transaction.
	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingCreated, *booking, "widget")

	return nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id, version int64) error {
	err := s.repo.UpdateBookingStatusWithVersion(ctx, id, version, models.StatusCancelled)
	if err != nil {
		return err
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err == nil {
		s.publishEvent(events.EventBookingCancelled, *booking, "manager")
	}

	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	return s.repo.ListBookings(ctx, filter)
}

func (s *BookingService) publishEvent(eventType string, booking models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		CabinID:   booking.CabinID,
		CabinName: booking.CabinName,
		Date:      booking.Date,
		Time:      booking.Time,
		FullName:  booking.FullName,
		Email:     booking.UserEmail,
		Status:    booking.Status,
		ChangedBy: changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
