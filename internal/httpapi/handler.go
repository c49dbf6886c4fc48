package httpapi

import (
	"context"
	"encoding/json"
	"expvar"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hauntq/internal/callstate"
	"hauntq/internal/hub"
	"hauntq/internal/mailto"
	"hauntq/internal/models"
	"hauntq/internal/store"
	"hauntq/internal/tickets"

	"github.com/sirupsen/logrus"
)

const (
	defaultUpcoming = 5
	maxUpcoming     = 50
)

// Publisher pushes reservation change notifications to live displays.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

type Handler struct {
	reservations store.ReservationStore
	calls        *callstate.Service
	auth         *Authenticator
	publisher    Publisher
	mail         mailto.Template
	realtime     http.Handler
	logger       *logrus.Logger
	now          func() time.Time
}

type Options struct {
	Publisher    Publisher
	MailTemplate mailto.Template
	// Realtime is mounted under /realtime/ when set.
	Realtime http.Handler
	Logger   *logrus.Logger
	Now      func() time.Time
}

type envelope struct {
	OK    bool           `json:"ok"`
	Data  interface{}    `json:"data,omitempty"`
	Error *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createReservationRequest struct {
	Email   string `json:"email"`
	Count   int    `json:"count"`
	Age     string `json:"age"`
	Channel string `json:"channel"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateCurrentRequest struct {
	CurrentNumber *int   `json:"currentNumber"`
	SystemPaused  *bool  `json:"systemPaused"`
	Version       *int64 `json:"version"`
}

type stepRequest struct {
	Delta int `json:"delta"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	OK        bool           `json:"ok"`
	Success   bool           `json:"success"`
	Token     string         `json:"token,omitempty"`
	ExpiresIn int64          `json:"expiresIn,omitempty"`
	Error     *responseError `json:"error,omitempty"`
}

type statusResponse struct {
	CurrentNumber int       `json:"currentNumber"`
	SystemPaused  bool      `json:"systemPaused"`
	Timestamp     time.Time `json:"timestamp"`
	Version       int64     `json:"version"`
	LastResetDate string    `json:"lastResetDate"`
}

type counterResponse struct {
	Counter       int `json:"counter"`
	CurrentNumber int `json:"currentNumber"`
}

type clearAllResponse struct {
	OK      bool   `json:"ok"`
	Deleted string `json:"deleted"`
}

type upcomingResponse struct {
	CurrentNumber int                  `json:"currentNumber"`
	Reservations  []models.Reservation `json:"reservations"`
	Links         []mailto.Link        `json:"links"`
}

type reservationsChanged struct {
	Action   string `json:"action"`
	ID       int64  `json:"id,omitempty"`
	TicketNo int    `json:"ticketNo,omitempty"`
}

func NewHandler(reservations store.ReservationStore, calls *callstate.Service, auth *Authenticator, options Options) *Handler {
	logger := options.Logger
	if logger == nil {
		logger = logrus.New()
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	mail := options.MailTemplate
	if mail.Subject == "" && mail.Body == "" {
		mail = mailto.DefaultTemplate()
	}
	return &Handler{
		reservations: reservations,
		calls:        calls,
		auth:         auth,
		publisher:    options.Publisher,
		mail:         mail,
		realtime:     options.Realtime,
		logger:       logger,
		now:          now,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", expvar.Handler())
	mux.HandleFunc("POST /reservations", h.handleCreate)
	mux.HandleFunc("GET /reservations", h.handleList)
	mux.HandleFunc("GET /reservations/status", h.handleStatus)
	mux.HandleFunc("GET /reservations/counter", h.handleCounter)
	mux.HandleFunc("PUT /reservations/current-number", h.handleUpdateCurrent)
	mux.HandleFunc("POST /reservations/current-number/step", h.handleStep)
	mux.HandleFunc("POST /reservations/reset-counter", h.handleReset)
	mux.HandleFunc("POST /reservations/clear-all", h.handleClearAll)
	mux.HandleFunc("GET /reservations/export", h.handleExport)
	mux.HandleFunc("GET /reservations/upcoming", h.handleUpcoming)
	mux.HandleFunc("PUT /reservations/{id}/status", h.handleUpdateStatus)
	mux.HandleFunc("DELETE /reservations/{id}", h.handleDelete)
	mux.HandleFunc("POST /admin/login", h.handleLogin)
	if h.realtime != nil {
		mux.Handle("/realtime/", h.realtime)
	}
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	input := store.NormalizeCreate(store.CreateReservationInput{
		Email:       req.Email,
		Count:       req.Count,
		Age:         req.Age,
		Channel:     req.Channel,
		UserAgent:   r.UserAgent(),
		BusinessDay: h.calls.Today(),
		CreatedAt:   h.now().UTC(),
	})
	if err := store.ValidateCreate(input); err != nil {
		h.fail(w, r, err)
		return
	}

	reservation, err := h.reservations.CreateReservation(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), reservationsChanged{Action: "created", ID: reservation.ID, TicketNo: reservation.TicketNo})
	writeData(w, http.StatusCreated, reservation)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.reservations.ListReservations(r.Context(), h.calls.Today())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filtered := tickets.Apply(reservations, tickets.FilterFromQuery(r.URL.Query()))
	if filtered == nil {
		filtered = []models.Reservation{}
	}
	writeData(w, http.StatusOK, filtered)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	key, lookup, ok := parseTarget(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	status := strings.TrimSpace(req.Status)
	if err := store.ValidateStatus(status); err != nil {
		h.fail(w, r, err)
		return
	}

	reservation, err := h.reservations.UpdateStatus(r.Context(), store.UpdateStatusInput{
		Key:         key,
		Lookup:      lookup,
		Status:      status,
		BusinessDay: h.calls.Today(),
		OccurredAt:  h.now().UTC(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), reservationsChanged{Action: "status", ID: reservation.ID, TicketNo: reservation.TicketNo})
	writeData(w, http.StatusOK, reservation)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, lookup, ok := parseTarget(w, r)
	if !ok {
		return
	}
	reservation, err := h.reservations.DeleteReservation(r.Context(), store.DeleteInput{
		Key:         key,
		Lookup:      lookup,
		BusinessDay: h.calls.Today(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), reservationsChanged{Action: "deleted", ID: reservation.ID, TicketNo: reservation.TicketNo})
	writeData(w, http.StatusOK, reservation)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.calls.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusOK, h.statusPayload(state))
}

func (h *Handler) handleCounter(w http.ResponseWriter, r *http.Request) {
	state, err := h.calls.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	counter, err := h.reservations.MaxTicketNo(r.Context(), state.LastResetDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusOK, counterResponse{Counter: counter, CurrentNumber: state.CurrentNumber})
}

func (h *Handler) handleUpdateCurrent(w http.ResponseWriter, r *http.Request) {
	var req updateCurrentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.CurrentNumber == nil && req.SystemPaused == nil {
		writeError(w, http.StatusBadRequest, "validation_error", "currentNumber or systemPaused is required")
		return
	}
	state, err := h.calls.Update(r.Context(), callstate.Update{
		CurrentNumber:   req.CurrentNumber,
		SystemPaused:    req.SystemPaused,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.statusPayload(state))
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "delta must be non-zero")
		return
	}
	state, err := h.calls.Advance(r.Context(), req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.statusPayload(state))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := h.calls.Reset(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.statusPayload(state))
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.reservations.ClearAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.calls.Reset(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"deleted":    deleted,
		"request_id": requestIDFromRequest(r),
	}).Warn("all reservations cleared")
	h.publish(r.Context(), reservationsChanged{Action: "cleared"})
	writeJSON(w, http.StatusOK, clearAllResponse{OK: true, Deleted: "ALL"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "validation_error", "format must be csv or xlsx")
		return
	}

	day := h.calls.Today()
	reservations, err := h.reservations.ListReservations(r.Context(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reservations = tickets.Apply(reservations, tickets.FilterFromQuery(r.URL.Query()))

	filename := "reservations-" + day + "." + format
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Cache-Control", "no-store")
	if format == "xlsx" {
		w.Header().Set("Content-Type", tickets.ContentTypeXLSX)
		err = tickets.WriteXLSX(w, reservations, h.calls.Location())
	} else {
		w.Header().Set("Content-Type", tickets.ContentTypeCSV)
		err = tickets.WriteCSV(w, reservations, h.calls.Location())
	}
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"format":     format,
			"error":      err.Error(),
			"request_id": requestIDFromRequest(r),
		}).Error("export failed")
	}
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	count := defaultUpcoming
	if raw := r.URL.Query().Get("count"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 || value > maxUpcoming {
			writeError(w, http.StatusBadRequest, "validation_error", "count must be between 1 and 50")
			return
		}
		count = value
	}

	state, err := h.calls.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reservations, err := h.reservations.ListUpcoming(r.Context(), state.LastResetDate, state.CurrentNumber, count)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	writeData(w, http.StatusOK, upcomingResponse{
		CurrentNumber: state.CurrentNumber,
		Reservations:  reservations,
		Links:         h.mail.BuildAll(reservations, state.CurrentNumber),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !h.auth.CheckPassword(req.Password) {
		h.logger.WithField("request_id", requestIDFromRequest(r)).Warn("admin login rejected")
		writeJSON(w, http.StatusUnauthorized, loginResponse{
			Error: &responseError{Code: "invalid_credentials", Message: "invalid password"},
		})
		return
	}
	token, expiresAt, err := h.auth.Issue()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		OK:        true,
		Success:   true,
		Token:     token,
		ExpiresIn: int64(expiresAt.Sub(h.now()).Seconds()),
	})
}

func (h *Handler) statusPayload(state models.CallState) statusResponse {
	return statusResponse{
		CurrentNumber: state.CurrentNumber,
		SystemPaused:  state.SystemPaused,
		Timestamp:     h.now().UTC(),
		Version:       state.Version,
		LastResetDate: state.LastResetDate,
	}
}

func (h *Handler) publish(ctx context.Context, change reservationsChanged) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, hub.EventReservations, change); err != nil {
		h.logger.WithField("error", err.Error()).Warn("publish reservation change failed")
	}
}

// parseTarget reads the {id} path value and the ?by lookup mode.
func parseTarget(w http.ResponseWriter, r *http.Request) (int64, store.LookupMode, bool) {
	lookup := store.LookupMode(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by"))))
	if lookup == "" {
		lookup = store.LookupByID
	}
	if err := store.ValidateLookup(lookup); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return 0, "", false
	}
	key, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || key < 1 {
		writeError(w, http.StatusBadRequest, "validation_error", "id must be a positive integer")
		return 0, "", false
	}
	return key, lookup, true
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		OK: false,
		Error: &responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
