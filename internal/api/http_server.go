package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carrental/internal/config"
	"carrental/internal/domain"
	"carrental/internal/export"
	"carrental/internal/logging"
	"carrental/internal/models"

	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer exposes the booking lifecycle over JSON.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		auth:     NewHTTPAuth(cfg),
		logger:   logger,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/search", srv.handleSearchBookings)
	mux.HandleFunc("GET /api/v1/bookings/export.xlsx", srv.handleExportBookings)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/extend", srv.handleExtendBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/close", srv.handleCloseBooking)
	mux.HandleFunc("GET /api/v1/cars/{id}/bookings", srv.handleListCarBookings)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           observe(logger, srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type bookingResponse struct {
	ID         string    `json:"id"`
	CustomerID int64     `json:"customer_id"`
	CarID      int64     `json:"car_id"`
	StartDate  time.Time `json:"rental_start_date"`
	EndDate    time.Time `json:"rental_end_date"`
	Days       int       `json:"days"`
	Status     string    `json:"status"`
	TotalPrice string    `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		CustomerID: b.CustomerID,
		CarID:      b.CarID,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Days:       b.Range().Days(),
		Status:     string(b.Status),
		TotalPrice: b.TotalPrice.StringFixed(2),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toResponses(bs []*models.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toResponse(b))
	}
	return out
}

type createBookingBody struct {
	CarID int64  `json:"car_id"`
	Start string `json:"rental_start_date"`
	End   string `json:"rental_end_date"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorEmail(w, r)
	if !ok {
		return
	}

	var body createBookingBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.CarID <= 0 {
		writeError(w, http.StatusBadRequest, "car_id is required")
		return
	}
	start, err := parseInstant(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rental_start_date: "+err.Error())
		return
	}
	end, err := parseInstant(body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rental_end_date: "+err.Error())
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), domain.CreateBookingRequest{Start: start, End: end, CarID: body.CarID}, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(booking))
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(bookings))
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(booking))
}

func (s *HTTPServer) handleListCarBookings(w http.ResponseWriter, r *http.Request) {
	carID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || carID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid car id")
		return
	}
	bookings, err := s.bookings.ListBookingsByCar(r.Context(), carID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(bookings))
}

func (s *HTTPServer) handleSearchBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.BookingFilter
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &filter.Start}, {"end", &filter.End}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := parseInstant(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %v", p.name, err))
			return
		}
		*p.dst = &t
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := models.ParseBookingStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &status
	}

	bookings, err := s.bookings.ListBookingsByDateOrStatus(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(bookings))
}

type extendBookingBody struct {
	NewEnd string `json:"new_end_date"`
}

func (s *HTTPServer) handleExtendBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorEmail(w, r)
	if !ok {
		return
	}
	var body extendBookingBody
	if !decodeBody(w, r, &body) {
		return
	}
	newEnd, err := parseInstant(body.NewEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new_end_date: "+err.Error())
		return
	}

	booking, err := s.bookings.ExtendBooking(r.Context(), r.PathValue("id"), actor, newEnd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(booking))
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorEmail(w, r)
	if !ok {
		return
	}
	booking, err := s.bookings.CancelBooking(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(booking))
}

func (s *HTTPServer) handleCloseBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorEmail(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.bookings.CloseBooking(r.Context(), id, actor); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(models.StatusClosedByAdmin)})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	now := s.now()
	var buf bytes.Buffer
	if err := export.WriteBookingsWorkbook(&buf, bookings, now); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, now.Format(models.DateLayout)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) actorEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := s.cfg.Auth.HeaderActor
	if header == "" {
		header = "x-customer-email"
	}
	email := strings.TrimSpace(r.Header.Get(header))
	if email == "" {
		writeError(w, http.StatusUnauthorized, header+" header is required")
		return "", false
	}
	return email, true
}

// parseInstant accepts RFC 3339 timestamps and plain dates, which mean midnight UTC.
func parseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("expected YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type errorResponse struct {
	Error    string        `json:"error"`
	Conflict *conflictBody `json:"conflict,omitempty"`
}

type conflictBody struct {
	CarID          int64     `json:"car_id"`
	BookingID      string    `json:"booking_id"`
	ExistingStart  time.Time `json:"existing_start"`
	ExistingEnd    time.Time `json:"existing_end"`
	RequestedStart time.Time `json:"requested_start"`
	RequestedEnd   time.Time `json:"requested_end"`
}

// statusFor maps lifecycle errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidExtension),
		errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrCarNotFound),
		errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCarNotAvailable),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("Request failed")
		resp.Error = "internal error"
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		resp.Conflict = &conflictBody{
			CarID:          conflict.CarID,
			BookingID:      conflict.BookingID,
			ExistingStart:  conflict.Existing.Start,
			ExistingEnd:    conflict.Existing.End,
			RequestedStart: conflict.Requested.Start,
			RequestedEnd:   conflict.Requested.End,
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
