package availability

import (
	"context"
	"fmt"
	"time"

	"namelis/internal/domain"
	"namelis/internal/models"

	"github.com/rs/zerolog"
)

// BookedTimesSource reports occupied slot starts for a cabin on a date.
// The booking database implements it.
type BookedTimesSource interface {
	GetBookedTimes(ctx context.Context, cabinID, date string) (map[string]bool, error)
}

// Provider computes the bookable slot grid for one cabin and one date.
// The grid is derived from the cabin's opening hours stepped by its slot
// length; a slot is unavailable when a non-cancelled booking occupies it
// or when its start is already in the past on the venue clock.
type Provider struct {
	catalog  domain.CabinCatalog
	bookings BookedTimesSource
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewProvider(catalog domain.CabinCatalog, bookings BookedTimesSource, loc *time.Location, logger *zerolog.Logger) *Provider {
	if loc == nil {
		loc = time.Local
	}

	return &Provider{
		catalog:  catalog,
		bookings: bookings,
		loc:      loc,
		logger:   logger,
	}
}

func (p *Provider) Load(ctx context.Context, cabinID, date string) ([]models.Slot, error) {
	cabin, ok := p.catalog.Get(cabinID)
	if !ok {
		return nil, fmt.Errorf("unknown cabin %q", cabinID)
	}

	day, err := time.ParseInLocation(models.DateLayout, date, p.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}

	open, err := time.Parse(models.TimeLayout, cabin.Open)
	if err != nil {
		return nil, fmt.Errorf("cabin %q open time: %w", cabinID, err)
	}
	closeAt, err := time.Parse(models.TimeLayout, cabin.Close)
	if err != nil {
		return nil, fmt.Errorf("cabin %q close time: %w", cabinID, err)
	}

	booked, err := p.bookings.GetBookedTimes(ctx, cabinID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	step := time.Duration(cabin.SlotMinutes) * time.Minute
	now := time.Now().In(p.loc)

	slots := make([]models.Slot, 0, 16)
	for t := open; t.Before(closeAt); t = t.Add(step) {
		label := t.Format(models.TimeLayout)
		start := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, p.loc)
		slots = append(slots, models.Slot{
			Time:      label,
			Available: !booked[label] && start.After(now),
		})
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("cabin_id", cabinID).
			Str("date", date).
			Int("slots", len(slots)).
			Int("booked", len(booked)).
			Msg("availability grid built")
	}

	return slots, nil
}
