package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"namelis/internal/config"
	"namelis/internal/database"
	"namelis/internal/domain"
	"namelis/internal/metrics"
	"namelis/internal/models"
	"namelis/internal/widget"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "x-request-id"

// Server is the HTTP face of the booking widget: the public session and
// catalog endpoints the embedded widget talks to, plus API-key protected
// admin endpoints for booking review and export.
type Server struct {
	cfg      *config.Config
	engine   *widget.Engine
	bookings domain.BookingService
	provider domain.SlotProvider
	catalog  domain.CabinCatalog
	sessions domain.SessionRepository
	db       *database.DB
	logger   *zerolog.Logger

	auth   *Auth
	server *http.Server
}

func NewServer(
	cfg *config.Config,
	engine *widget.Engine,
	bookings domain.BookingService,
	provider domain.SlotProvider,
	catalog domain.CabinCatalog,
	sessions domain.SessionRepository,
	db *database.DB,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		bookings: bookings,
		provider: provider,
		catalog:  catalog,
		sessions: sessions,
		db:       db,
		logger:   logger,
		auth:     NewAuth(cfg.API),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/v1/cabins", s.handleCabins)
	mux.HandleFunc("/api/v1/cabins/", s.handleCabinSlots)
	mux.HandleFunc("/api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("/api/v1/sessions/", s.handleSession)
	mux.HandleFunc("/api/v1/bookings", s.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", s.handleBookingCancel)
	mux.HandleFunc("/api/v1/bookings/export", s.handleBookingsExport)

	handler := s.auth.Wrap(s.rateLimitMiddleware(mux))
	handler = s.corsMiddleware(handler)
	handler = loggingMiddleware(logger, handler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCabins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("cabins")

	writeJSON(w, http.StatusOK, map[string]any{"cabins": s.catalog.All()})
}

// handleCabinSlots serves GET /api/v1/cabins/{id}/slots?date=YYYY-MM-DD,
// the same grid the widget loads on selection change.
func (s *Server) handleCabinSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/cabins/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "slots" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	metrics.IncHTTP("cabin_slots")

	cabinID := parts[0]
	if _, ok := s.catalog.Get(cabinID); !ok {
		writeError(w, http.StatusNotFound, "cabin not found")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.provider.Load(r.Context(), cabinID, date)
	if err != nil {
		s.logger.Error().Err(err).Str("cabin_id", cabinID).Str("date", date).Msg("slots query failed")
		writeError(w, http.StatusInternalServerError, "failed to load slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cabin_id": cabinID,
		"date":     date,
		"slots":    slots,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("session_create")

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := s.engine.CreateSession(r.Context(), req.UserID)
	if err != nil {
		s.writeEngineError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleSessionByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "selection":
		s.handleSelection(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "submit":
		s.handleSubmit(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("session_get")
		session, err := s.engine.GetSession(r.Context(), id)
		if err != nil {
			s.writeEngineError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, session)

	case http.MethodDelete:
		metrics.IncHTTP("session_delete")
		if err := s.engine.DeleteSession(r.Context(), id); err != nil {
			s.writeEngineError(w, nil, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type selectionRequest struct {
	CabinID  *string `json:"cabin_id"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

// handleSelection applies the submitted fields in widget order: cabin,
// date, time, contact. The first failing step answers; the response is
// the session after the last applied step, including the reloaded slot
// list or the in-flight loading flag.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("session_selection")

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req selectionRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	session, err := s.engine.GetSession(ctx, id)
	if err != nil {
		s.writeEngineError(w, nil, err)
		return
	}

	if req.CabinID != nil {
		session, err = s.engine.SelectCabin(ctx, id, *req.CabinID)
		if err != nil {
			s.writeEngineError(w, session, err)
			return
		}
	}
	if req.Date != nil {
		session, err = s.engine.SelectDate(ctx, id, *req.Date)
		if err != nil {
			s.writeEngineError(w, session, err)
			return
		}
	}
	if req.Time != nil {
		session, err = s.engine.SelectTime(ctx, id, *req.Time)
		if err != nil {
			s.writeEngineError(w, session, err)
			return
		}
	}
	if req.FullName != nil || req.Email != nil {
		fullName, email := session.FullName, session.Email
		if req.FullName != nil {
			fullName = *req.FullName
		}
		if req.Email != nil {
			email = *req.Email
		}
		session, err = s.engine.SetContact(ctx, id, fullName, email)
		if err != nil {
			s.writeEngineError(w, session, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("session_submit")

	session, err := s.engine.Submit(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, session, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("bookings_list")

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("list bookings failed")
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleBookingCancel serves POST /api/v1/bookings/{id}/cancel. The
// caller sends the version it last saw; a stale version is refused so
// two managers cannot cancel over each other blindly.
func (s *Server) handleBookingCancel(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "cancel" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("booking_cancel")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}

	err = s.bookings.CancelBooking(r.Context(), id, req.Version)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrConcurrentModification):
		// A missing row and a stale version both update zero rows.
		if _, getErr := s.bookings.GetBooking(r.Context(), id); errors.Is(getErr, database.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusConflict, "booking version is stale")
		return
	default:
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("cancel booking failed")
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleBookingsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("bookings_export")

	filter, err := bookingFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("export bookings failed")
		writeError(w, http.StatusInternalServerError, "failed to export bookings")
		return
	}

	buf, err := bookingsWorkbook(bookings)
	if err != nil {
		s.logger.Error().Err(err).Msg("build export workbook failed")
		writeError(w, http.StatusInternalServerError, "failed to export bookings")
		return
	}

	fileName := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format(models.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func bookingFilterFromQuery(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		From:    strings.TrimSpace(q.Get("from")),
		To:      strings.TrimSpace(q.Get("to")),
		CabinID: strings.TrimSpace(q.Get("cabin")),
		Status:  strings.TrimSpace(q.Get("status")),
	}

	for _, date := range []string{filter.From, filter.To} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return models.BookingFilter{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", date)
		}
	}
	return filter, nil
}

// writeEngineError maps widget engine sentinels onto HTTP statuses. When
// the engine handed back a session view (submit refusals do), the view is
// the body so the widget can render the localized error field.
func (s *Server) writeEngineError(w http.ResponseWriter, session *models.WidgetSession, err error) {
	var parseErr *time.ParseError

	switch {
	case errors.Is(err, widget.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, widget.ErrUnknownCabin):
		writeError(w, http.StatusBadRequest, "unknown cabin")
	case errors.Is(err, database.ErrPastDate) || errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
	case errors.Is(err, widget.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot is not selectable")
	case errors.Is(err, widget.ErrBusy):
		if session != nil {
			writeJSON(w, http.StatusConflict, session)
			return
		}
		writeError(w, http.StatusConflict, "availability load in progress")
	case errors.Is(err, widget.ErrValidation) || errors.Is(err, widget.ErrSubmitFailed):
		writeJSON(w, http.StatusUnprocessableEntity, session)
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rateLimitMiddleware throttles the public widget endpoints per client IP
// through the session store, so the budget is shared across instances
// when Redis backs it. Admin endpoints carry their own per-key limiter.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	window := time.Duration(models.RateLimitWindow) * time.Second

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || requiredPermission(r) != "" {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || host == "" {
			host = r.RemoteAddr
		}

		allowed, err := s.sessions.CheckRateLimit(r.Context(), "ip:"+host, models.RateLimitRequests, window)
		if err != nil {
			s.logger.Warn().Err(err).Str("ip", host).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.corsOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsOrigin(origin string) string {
	allowed := s.cfg.HTTP.AllowedOrigins
	if len(allowed) == 0 {
		return "*"
	}
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		base.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
