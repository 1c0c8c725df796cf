package service

import (
	"context"
	"io"
	"testing"
	"time"

	"namelis/internal/database"
	"namelis/internal/events"
	"namelis/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockRepo) GetBookedTimes(ctx context.Context, cabinID, date string) (map[string]bool, error) {
	args := m.Called(ctx, cabinID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

func vilnius(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vilnius")
	require.NoError(t, err)
	return loc
}

func dateFromToday(t *testing.T, days int) string {
	t.Helper()
	return time.Now().In(vilnius(t)).AddDate(0, 0, days).Format(models.DateLayout)
}

func TestBookingService(t *testing.T) {
	repo := new(mockRepo)
	bus := new(mockEventBus)
	logger := zerolog.New(io.Discard)
	svc := NewBookingService(repo, bus, vilnius(t), 7, &logger)
	ctx := context.Background()

	t.Run("ValidateBookingDate", func(t *testing.T) {
		assert.NoError(t, svc.ValidateBookingDate(dateFromToday(t, 0)))
		assert.NoError(t, svc.ValidateBookingDate(dateFromToday(t, 6)))

		assert.ErrorIs(t, svc.ValidateBookingDate(dateFromToday(t, -1)), database.ErrPastDate)
		assert.ErrorIs(t, svc.ValidateBookingDate(dateFromToday(t, 7)), database.ErrDateTooFar)
		assert.Error(t, svc.ValidateBookingDate("tomorrow"))
	})

	t.Run("CreateBooking", func(t *testing.T) {
		booking := &models.Booking{
			CabinID:   "sauna-a",
			CabinName: "Sauna A",
			Date:      dateFromToday(t, 2),
			Time:      "14:30",
			FullName:  "Jonas Jonaitis",
			UserEmail: "jonas@example.lt",
			Status:    models.StatusConfirmed,
		}

		repo.On("CreateBookingWithLock", ctx, booking).Return(nil).Once()
		bus.On("PublishJSON", events.EventBookingCreated, mock.MatchedBy(func(p interface{}) bool {
			payload, ok := p.(events.BookingEventPayload)
			return ok && payload.CabinID == "sauna-a" && payload.Time == "14:30"
		})).Return(nil).Once()

		err := svc.CreateBooking(ctx, booking)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("CreateBookingPastDate", func(t *testing.T) {
		booking := &models.Booking{CabinID: "sauna-a", Date: dateFromToday(t, -2), Time: "10:00"}

		err := svc.CreateBooking(ctx, booking)
		assert.ErrorIs(t, err, database.ErrPastDate)
		repo.AssertNotCalled(t, "CreateBookingWithLock", ctx, booking)
	})

	t.Run("CreateBookingSlotTaken", func(t *testing.T) {
		booking := &models.Booking{CabinID: "sauna-a", Date: dateFromToday(t, 1), Time: "10:00"}

		repo.On("CreateBookingWithLock", ctx, booking).Return(database.ErrSlotTaken).Once()

		err := svc.CreateBooking(ctx, booking)
		assert.ErrorIs(t, err, database.ErrSlotTaken)
		bus.AssertNotCalled(t, "PublishJSON", events.EventBookingCreated, mock.MatchedBy(func(p interface{}) bool {
			payload, ok := p.(events.BookingEventPayload)
			return ok && payload.Date == booking.Date
		}))
	})

	t.Run("CancelBooking", func(t *testing.T) {
		booking := &models.Booking{ID: 10, CabinID: "sauna-a", Status: models.StatusCancelled}

		repo.On("UpdateBookingStatusWithVersion", ctx, int64(10), int64(1), models.StatusCancelled).Return(nil).Once()
		repo.On("GetBooking", ctx, int64(10)).Return(booking, nil).Once()
		bus.On("PublishJSON", events.EventBookingCancelled, mock.Anything).Return(nil).Once()

		err := svc.CancelBooking(ctx, 10, 1)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("CancelBookingStaleVersion", func(t *testing.T) {
		repo.On("UpdateBookingStatusWithVersion", ctx, int64(11), int64(3), models.StatusCancelled).
			Return(database.ErrConcurrentModification).Once()

		err := svc.CancelBooking(ctx, 11, 3)
		assert.ErrorIs(t, err, database.ErrConcurrentModification)
		repo.AssertNotCalled(t, "GetBooking", ctx, int64(11))
	})

	t.Run("GetBooking", func(t *testing.T) {
		booking := &models.Booking{ID: 16}
		repo.On("GetBooking", ctx, int64(16)).Return(booking, nil).Once()

		result, err := svc.GetBooking(ctx, 16)
		assert.NoError(t, err)
		assert.Equal(t, booking, result)
	})

	t.Run("ListBookings", func(t *testing.T) {
		filter := models.BookingFilter{CabinID: "sauna-a"}
		bookings := []*models.Booking{{ID: 1}, {ID: 2}}
		repo.On("ListBookings", ctx, filter).Return(bookings, nil).Once()

		result, err := svc.ListBookings(ctx, filter)
		assert.NoError(t, err)
		assert.Equal(t, bookings, result)
	})
}

func TestNewBookingServiceDefaults(t *testing.T) {
	logger := zerolog.New(io.Discard)
	svc := NewBookingService(new(mockRepo), nil, nil, 0, &logger)

	assert.Equal(t, time.Local, svc.loc)
	assert.Equal(t, models.DefaultBookingWindowDays, svc.maxBookingDays)

	// Nil bus should be skipped silently.
	svc.publishEvent(events.EventBookingCreated, models.Booking{ID: 1}, "widget")
}
