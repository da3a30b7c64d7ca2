package simulator

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// NewRouter exposes the platform over HTTP: the inventory API under /api/v1,
// the payment gateway under /gateway and a health probe. All responses use
// the shared envelope {success, data, message, code}.
func NewRouter(p *Platform, rps float64, burst int, log *logrus.Logger) *mux.Router {
	if log == nil {
		log = logrus.New()
	}
	h := &handler{platform: p, log: log, limiter: newIPLimiter(rps, burst)}

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.rateLimit)
	api.HandleFunc("/trips", h.searchTrips).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/promotions", h.promotions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/trips/{id}/seatmap", h.seatMap).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/holds", h.placeHold).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/bookings/confirm", h.confirmBooking).Methods(http.MethodPost, http.MethodOptions)

	gw := r.PathPrefix("/gateway").Subrouter()
	gw.Use(h.rateLimit)
	gw.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost, http.MethodOptions)
	gw.HandleFunc("/checkout/{ref}/complete", h.completeCheckout).Methods(http.MethodPost, http.MethodOptions)
	gw.HandleFunc("/checkout/{ref}/dismiss", h.dismissCheckout).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)

	return r
}

type handler struct {
	platform *Platform
	log      *logrus.Logger
	limiter  *ipLimiter
}

func (h *handler) searchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, destination := q.Get("origin"), q.Get("destination")
	if origin == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "invalid_query", "origin and destination are required")
		return
	}
	var date time.Time
	if raw := q.Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	trips := h.platform.SearchTrips(origin, destination, date)
	writeData(w, http.StatusOK, trips)
}

func (h *handler) promotions(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.platform.Promotions())
}

func (h *handler) seatMap(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["id"]
	seats, ok := h.platform.SeatMap(tripID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_trip", "trip "+tripID+" does not exist")
		return
	}
	writeData(w, http.StatusOK, seats)
}

type holdRequest struct {
	TripID     string             `json:"tripId"`
	SeatIDs    []string           `json:"seatIds"`
	Passengers []models.Passenger `json:"passengers"`
}

func (h *handler) placeHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed hold request")
		return
	}
	result := h.platform.PlaceHold(req.TripID, req.SeatIDs, req.Passengers)
	switch result.Code {
	case "":
		writeData(w, http.StatusCreated, result.Hold)
	case "units_unavailable":
		writeEnvelope(w, http.StatusConflict, envelope{
			Code:    result.Code,
			Message: result.Message,
			Data:    map[string][]string{"unavailable": result.Unavailable},
		})
	default:
		writeError(w, http.StatusConflict, result.Code, result.Message)
	}
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	keyID, keySecret, ok := r.BasicAuth()
	if !ok || !h.platform.VerifyGatewayAuth(keyID, keySecret) {
		writeError(w, http.StatusUnauthorized, "auth_failed", "invalid gateway credentials")
		return
	}
	var req struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed order request")
		return
	}
	order, problem := h.platform.CreateOrder(req.Amount, req.Currency, req.Receipt)
	if problem != "" {
		writeError(w, http.StatusBadRequest, "invalid_order", problem)
		return
	}
	writeData(w, http.StatusCreated, order)
}

type checkoutData struct {
	OrderRef  string `json:"orderRef"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

func (h *handler) completeCheckout(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	result := h.platform.CompleteCheckout(ref)
	if !result.OK {
		writeError(w, http.StatusPaymentRequired, "payment_failed", result.Message)
		return
	}
	writeData(w, http.StatusOK, checkoutData{OrderRef: ref, PaymentID: result.PaymentID, Signature: result.Signature})
}

func (h *handler) dismissCheckout(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if !h.platform.DismissCheckout(ref) {
		writeError(w, http.StatusConflict, "not_dismissable", "order is unknown or already paid")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"orderRef": ref, "status": "dismissed"})
}

func (h *handler) confirmBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HoldID          string `json:"holdId"`
		PaymentID       string `json:"paymentId"`
		GatewayOrderRef string `json:"gatewayOrderRef"`
		Signature       string `json:"signature"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed confirmation request")
		return
	}
	result := h.platform.ConfirmBooking(ConfirmInput{
		HoldID:          req.HoldID,
		PaymentID:       req.PaymentID,
		GatewayOrderRef: req.GatewayOrderRef,
		Signature:       req.Signature,
		Amount:          req.Amount,
		Currency:        req.Currency,
	})
	switch {
	case result.Transient:
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", result.Message)
	case result.Code != "":
		writeError(w, http.StatusConflict, result.Code, result.Message)
	default:
		writeData(w, http.StatusOK, result.Record)
	}
}

// rateLimit rejects callers that exceed the per-address budget with a 429,
// which clients treat as retryable.
func (h *handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(r.RemoteAddr) {
			h.log.WithField("remote", r.RemoteAddr).Warn("Request rate limited")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &ipLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (l *ipLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, envelope{Code: code, Message: message})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
