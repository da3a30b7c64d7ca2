package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/archive"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/workflow"
)

// reasonUnknownSession is the agent-layer reason for requests against a
// session that does not exist or has expired. Rendered as 404.
const reasonUnknownSession = "unknown_session"

// The gateway callback body is untrusted input from a browser context, so it
// is schema-checked before anything reads it.
var callbackSchema = mustSchema(`{
	"type": "object",
	"required": ["orderRef", "paymentId", "signature"],
	"properties": {
		"orderRef":  {"type": "string", "minLength": 1},
		"paymentId": {"type": "string", "minLength": 1},
		"signature": {"type": "string", "minLength": 1}
	}
}`)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(err)
	}
	return schema
}

// Handler contains the HTTP handlers for the agent API.
type Handler struct {
	service BookingService
	log     *logrus.Logger
}

func NewHandler(service BookingService, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{service: service, log: log}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

type errorResponse struct {
	Error              string             `json:"error"`
	Code               string             `json:"code,omitempty"`
	FundsMayBeCaptured bool               `json:"fundsMayBeCaptured,omitempty"`
	UnavailableSeats   []string           `json:"unavailableSeats,omitempty"`
	Guidance           string             `json:"guidance,omitempty"`
	State              *workflow.Snapshot `json:"state,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondFault maps an error to its HTTP status and ships the fault details
// plus, when known, the workflow state the caller should render.
func (h *Handler) respondFault(w http.ResponseWriter, err error, snap *workflow.Snapshot) {
	body := errorResponse{Error: err.Error()}
	if snap != nil && snap.Stage != "" {
		body.State = snap
	}

	var fe *fault.Error
	if errors.As(err, &fe) {
		body.Code = fe.Reason
		body.FundsMayBeCaptured = fe.FundsMayBeCaptured
		body.UnavailableSeats = fe.Units
		if fe.Class == fault.ClassConfirmationAmbiguous {
			body.Guidance = "payment may already be captured; retry to finish the confirmation, do not pay again"
		}
	}

	respondJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	if fault.ReasonOf(err) == reasonUnknownSession {
		return http.StatusNotFound
	}
	switch fault.ClassOf(err) {
	case fault.ClassCaller:
		return http.StatusBadRequest
	case fault.ClassRejected:
		return http.StatusConflict
	case fault.ClassTransient:
		return http.StatusBadGateway
	case fault.ClassPaymentNotCompleted:
		return http.StatusPaymentRequired
	case fault.ClassConfirmationAmbiguous:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// CreateSession handles POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile models.UserProfile `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := h.service.CreateSession(r.Context(), req.Profile)
	if err != nil {
		h.respondFault(w, err, nil)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

// GetState handles GET /api/sessions/{id}
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.State(mux.Vars(r)["id"])
	if err != nil {
		h.respondFault(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Search handles POST /api/sessions/{id}/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Date        string `json:"date"` // YYYY-MM-DD
		Passengers  int    `json:"passengers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Travel date must be YYYY-MM-DD")
		return
	}

	snap, err := h.service.Search(r.Context(), mux.Vars(r)["id"], models.SearchCriteria{
		Origin:      req.Origin,
		Destination: req.Destination,
		Date:        date,
		Passengers:  req.Passengers,
	})
	if err != nil {
		h.respondFault(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// SelectTrip handles POST /api/sessions/{id}/trip
func (h *Handler) SelectTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TripID string `json:"tripId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TripID == "" {
		respondError(w, http.StatusBadRequest, "Trip ID is required")
		return
	}

	snap, err := h.service.SelectTrip(r.Context(), mux.Vars(r)["id"], req.TripID)
	if err != nil {
		h.respondFault(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Back handles POST /api/sessions/{id}/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Back(mux.Vars(r)["id"])
	if err != nil {
		h.respondFault(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// SelectSeats handles POST /api/sessions/{id}/seats
func (h *Handler) SelectSeats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeatIDs    []string           `json:"seatIds"`
		Passengers []models.Passenger `json:"passengers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.SeatIDs) == 0 {
		respondError(w, http.StatusBadRequest, "At least one seat must be selected")
		return
	}

	snap, err := h.service.SelectSeats(r.Context(), mux.Vars(r)["id"], req.SeatIDs, req.Passengers)
	if err != nil {
		h.respondFault(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// StartPayment handles POST /api/sessions/{id}/payment
func (h *Handler) StartPayment(w http.ResponseWriter, r *http.Request) {
	launch, err := h.service.StartPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFault(w, err, nil)
		return
	}
	if launch.Completed {
		respondJSON(w, http.StatusOK, launch)
		return
	}
	respondJSON(w, http.StatusAccepted, launch)
}

// PaymentCallback handles POST /api/sessions/{id}/payment/callback
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := callbackSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		respondError(w, http.StatusBadRequest, "Invalid callback payload: "+strings.Join(issues, "; "))
		return
	}

	var payload struct {
		OrderRef  string `json:"orderRef"`
		PaymentID string `json:"paymentId"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.service.PaymentCallback(mux.Vars(r)["id"], payment.CheckoutEvent{
		OrderRef:  payload.OrderRef,
		PaymentID: payload.PaymentID,
		Signature: payload.Signature,
	})
	if err != nil {
		h.respondFault(w, err, nil)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// DismissPayment handles POST /api/sessions/{id}/payment/dismiss
func (h *Handler) DismissPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderRef string `json:"orderRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderRef == "" {
		respondError(w, http.StatusBadRequest, "Order reference is required")
		return
	}

	if err := h.service.DismissPayment(mux.Vars(r)["id"], req.OrderRef); err != nil {
		h.respondFault(w, err, nil)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "dismissed"})
}

// Reset handles POST /api/sessions/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Reset(mux.Vars(r)["id"])
	if err != nil {
		h.respondFault(w, err, &snap)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// ListBookings handles GET /api/bookings
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.service.Bookings(r.Context(), limit)
	if err != nil {
		h.respondFault(w, err, nil)
		return
	}
	if records == nil {
		records = []models.BookingRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// Ticket handles GET /api/bookings/{code}/ticket
func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	pdf, filename, err := h.service.Ticket(r.Context(), code)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No booking with code "+code)
			return
		}
		h.respondFault(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// SessionStream handles GET /api/sessions/{id}/ws
func (h *Handler) SessionStream(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ServeWS(w, r, mux.Vars(r)["id"]); err != nil {
		h.respondFault(w, err, nil)
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
