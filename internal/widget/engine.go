package widget

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"namelis/internal/config"
	"namelis/internal/domain"
	"namelis/internal/metrics"
	"namelis/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// User-facing messages shown inside the booking widget.
const (
	MsgFillAllFields   = "Prašome užpildyti visus laukus"
	MsgSlotsLoadFailed = "Nepavyko užkrauti laisvų laikų"
	MsgSubmitFailed    = "Nepavyko pateikti rezervacijos"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownCabin    = errors.New("unknown cabin")
	ErrSlotUnavailable = errors.New("slot is not selectable")
	ErrBusy            = errors.New("another operation is in flight")
	ErrValidation      = errors.New("required fields missing")
	ErrSubmitFailed    = errors.New("booking submission failed")
)

const (
	lockStripes = 64

	// slotJoinWindow is how long a selection request waits for its
	// availability load before answering with loading=true.
	slotJoinWindow = 350 * time.Millisecond

	// loadTimeout bounds a background availability load; applyTimeout
	// bounds writing its outcome back to the session store.
	loadTimeout  = 10 * time.Second
	applyTimeout = 5 * time.Second
)

// Engine owns widget sessions: cabin/date/time selection, reactive
// availability loading and the submit flow. All mutations of one session
// are serialized by a striped mutex; availability loads run in the
// background tagged with (load_seq, cabin, date) so superseded responses
// are discarded instead of overwriting a newer selection.
type Engine struct {
	sessions domain.SessionRepository
	provider domain.SlotProvider
	bookings domain.BookingService
	notifier domain.BookingNotifier
	catalog  domain.CabinCatalog

	loc         *time.Location
	timezone    string
	utcOffset   string
	anonymousID string
	joinWindow  time.Duration

	logger *zerolog.Logger
	locks  [lockStripes]sync.Mutex
}

func NewEngine(
	sessions domain.SessionRepository,
	provider domain.SlotProvider,
	bookings domain.BookingService,
	notifier domain.BookingNotifier,
	catalog domain.CabinCatalog,
	cfg config.WidgetConfig,
	loc *time.Location,
	logger *zerolog.Logger,
) *Engine {
	if loc == nil {
		loc = time.Local
	}

	anonymousID := cfg.AnonymousUserID
	if anonymousID == "" {
		anonymousID = "anonymous"
	}

	return &Engine{
		sessions:    sessions,
		provider:    provider,
		bookings:    bookings,
		notifier:    notifier,
		catalog:     catalog,
		loc:         loc,
		timezone:    cfg.Timezone,
		utcOffset:   cfg.UTCOffset,
		anonymousID: anonymousID,
		joinWindow:  slotJoinWindow,
		logger:      logger,
	}
}

// CreateSession starts a fresh session: date preset to today on the
// venue clock, everything else empty.
func (e *Engine) CreateSession(ctx context.Context, userID string) (*models.WidgetSession, error) {
	now := time.Now()
	session := &models.WidgetSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      now.In(e.loc).Format(models.DateLayout),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	e.logger.Debug().Str("session_id", session.ID).Msg("widget session created")
	return session, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*models.WidgetSession, error) {
	return e.load(ctx, id)
}

// SelectCabin sets the cabin (empty deselects). Changing the cabin
// always clears the selected time; a non-empty cabin triggers a slot
// reload, an empty one just drops the slot list.
func (e *Engine) SelectCabin(ctx context.Context, id, cabinID string) (*models.WidgetSession, error) {
	if cabinID != "" {
		if _, ok := e.catalog.Get(cabinID); !ok {
			return nil, ErrUnknownCabin
		}
	}

	return e.applySelection(ctx, id, func(session *models.WidgetSession) error {
		if session.CabinID == cabinID {
			return nil
		}
		session.CabinID = cabinID
		session.Time = ""
		return nil
	})
}

// SelectDate sets the date within the rolling booking window. A selected
// time survives the date change; the reload may mark it unavailable.
func (e *Engine) SelectDate(ctx context.Context, id, date string) (*models.WidgetSession, error) {
	if err := e.bookings.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	return e.applySelection(ctx, id, func(session *models.WidgetSession) error {
		session.Date = date
		return nil
	})
}

// SelectTime picks a slot from the loaded list (empty deselects).
func (e *Engine) SelectTime(ctx context.Context, id, slotTime string) (*models.WidgetSession, error) {
	return e.applySelection(ctx, id, func(session *models.WidgetSession) error {
		if slotTime == "" {
			session.Time = ""
			return nil
		}
		if session.CabinID == "" {
			return ErrSlotUnavailable
		}
		if session.Loading {
			return ErrBusy
		}
		slot, ok := session.SlotByTime(slotTime)
		if !ok || !slot.Available {
			return ErrSlotUnavailable
		}
		session.Time = slotTime
		return nil
	})
}

// SetContact stores the visitor's name and email. Free text; the only
// check is the non-empty validation at submit time.
func (e *Engine) SetContact(ctx context.Context, id, fullName, email string) (*models.WidgetSession, error) {
	return e.applySelection(ctx, id, func(session *models.WidgetSession) error {
		session.FullName = fullName
		session.Email = email
		return nil
	})
}

// ResetSession returns the session to its initial state.
func (e *Engine) ResetSession(ctx context.Context, id string) (*models.WidgetSession, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Reset(time.Now().In(e.loc).Format(models.DateLayout))
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := e.sessions.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Submit runs the booking flow: validate, webhook, persist, reset.
// The webhook is fire-and-forget (any HTTP status counts as delivered)
// and is not rolled back when persistence fails afterwards.
func (e *Engine) Submit(ctx context.Context, id string) (*models.WidgetSession, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Loading {
		return session, ErrBusy
	}

	// Required fields are checked before any network hop.
	if session.CabinID == "" || session.Time == "" || session.FullName == "" || session.Email == "" {
		metrics.IncBooking("validation_failed")
		session.Error = MsgFillAllFields
		if err := e.save(ctx, session); err != nil {
			return nil, err
		}
		return session, ErrValidation
	}

	cabin, ok := e.catalog.Get(session.CabinID)
	if !ok {
		return nil, ErrUnknownCabin
	}

	session.Loading = true
	session.Error = ""
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}

	notification := models.BookingNotification{
		FullName:  session.FullName,
		Email:     session.Email,
		DateTime:  fmt.Sprintf("%sT%s:00%s", session.Date, session.Time, e.utcOffset),
		TimeZone:  e.timezone,
		Cabin:     session.CabinID,
		CabinName: cabin.Name,
	}

	if err := e.notifier.NotifyBooking(ctx, notification); err != nil {
		return e.failSubmit(ctx, session, err)
	}

	userID := session.UserID
	if userID == "" {
		userID = e.anonymousID
	}

	booking := &models.Booking{
		CabinID:   session.CabinID,
		CabinName: cabin.Name,
		Date:      session.Date,
		Time:      session.Time,
		UserID:    userID,
		UserEmail: session.Email,
		FullName:  session.FullName,
		Status:    models.StatusConfirmed,
	}

	if err := e.bookings.CreateBooking(ctx, booking); err != nil {
		// The webhook already fired; no rollback by contract.
		return e.failSubmit(ctx, session, err)
	}

	metrics.IncBooking("created")
	e.logger.Info().
		Str("session_id", session.ID).
		Int64("booking_id", booking.ID).
		Str("cabin_id", booking.CabinID).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Msg("booking submitted")

	session.Reset(time.Now().In(e.loc).Format(models.DateLayout))
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (e *Engine) failSubmit(ctx context.Context, session *models.WidgetSession, cause error) (*models.WidgetSession, error) {
	metrics.IncBooking("failed")
	e.logger.Error().Err(cause).
		Str("session_id", session.ID).
		Str("cabin_id", session.CabinID).
		Msg("booking submit failed")

	message := cause.Error()
	if message == "" {
		message = MsgSubmitFailed
	}

	session.Loading = false
	session.Error = message
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	return session, ErrSubmitFailed
}

// applySelection mutates the session under its lock and fires the
// selection-change observer: when (cabin, date) changed and a cabin is
// selected, a tagged availability load starts. The caller gets either
// the joined post-load view or the loading snapshot when the load
// overruns the join window.
func (e *Engine) applySelection(ctx context.Context, id string, fn func(*models.WidgetSession) error) (*models.WidgetSession, error) {
	mu := e.lockFor(id)
	mu.Lock()

	session, err := e.load(ctx, id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	prevCabin, prevDate := session.CabinID, session.Date

	if err := fn(session); err != nil {
		mu.Unlock()
		return nil, err
	}

	var done <-chan struct{}
	if session.CabinID != prevCabin || session.Date != prevDate {
		if session.CabinID != "" {
			done = e.startLoadLocked(session)
		} else {
			session.Slots = nil
			session.Loading = false
		}
	}

	if err := e.save(ctx, session); err != nil {
		mu.Unlock()
		return nil, err
	}

	view := session.Clone()
	mu.Unlock()

	if done == nil {
		return view, nil
	}

	select {
	case <-done:
	case <-time.After(e.joinWindow):
	case <-ctx.Done():
		return view, nil
	}

	return e.load(ctx, id)
}

// startLoadLocked tags and launches a background availability load.
// Caller holds the session lock; the goroutine blocks on the same lock
// until the mutated session is saved and released.
func (e *Engine) startLoadLocked(session *models.WidgetSession) <-chan struct{} {
	session.LoadSeq++
	session.Loading = true
	session.Error = ""

	seq := session.LoadSeq
	sessionID, cabinID, date := session.ID, session.CabinID, session.Date

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.runLoad(sessionID, cabinID, date, seq)
	}()
	return done
}

func (e *Engine) runLoad(sessionID, cabinID, date string, seq uint64) {
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), loadTimeout)
	slots, loadErr := e.provider.Load(loadCtx, cabinID, date)
	cancelLoad()

	// A fresh context so the outcome is stored even after a slow load.
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	mu := e.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		e.logger.Error().Err(err).Str("session_id", sessionID).Msg("availability load: session fetch failed")
		return
	}
	if session == nil {
		return
	}

	// The selection may have moved on while this load was in flight;
	// a mismatched tag means a newer load owns the slot list now.
	if session.LoadSeq != seq || session.CabinID != cabinID || session.Date != date {
		metrics.IncAvailabilityLoad("stale")
		e.logger.Debug().
			Str("session_id", sessionID).
			Uint64("seq", seq).
			Str("cabin_id", cabinID).
			Str("date", date).
			Msg("stale availability load discarded")
		return
	}

	session.Loading = false
	if loadErr != nil {
		metrics.IncAvailabilityLoad("error")
		session.Slots = nil
		session.Error = MsgSlotsLoadFailed
		e.logger.Error().Err(loadErr).
			Str("session_id", sessionID).
			Str("cabin_id", cabinID).
			Str("date", date).
			Msg("availability load failed")
	} else {
		metrics.IncAvailabilityLoad("ok")
		session.Slots = slots
	}

	if err := e.save(ctx, session); err != nil {
		e.logger.Error().Err(err).Str("session_id", sessionID).Msg("availability load: session save failed")
	}
}

func (e *Engine) load(ctx context.Context, id string) (*models.WidgetSession, error) {
	session, err := e.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (e *Engine) save(ctx context.Context, session *models.WidgetSession) error {
	session.UpdatedAt = time.Now()
	if err := e.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &e.locks[h.Sum32()%lockStripes]
}
