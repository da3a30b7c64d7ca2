package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the agent API router.
func SetupRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// CORS middleware
	r.Use(corsMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Sessions and workflow operations
	api.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}", h.GetState).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/search", h.Search).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/trip", h.SelectTrip).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/back", h.Back).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/seats", h.SelectSeats).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/payment", h.StartPayment).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/payment/callback", h.PaymentCallback).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/payment/dismiss", h.DismissPayment).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/reset", h.Reset).Methods(http.MethodPost, http.MethodOptions)

	// Booking archive
	api.HandleFunc("/bookings", h.ListBookings).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/bookings/{code}/ticket", h.Ticket).Methods(http.MethodGet, http.MethodOptions)

	// WebSocket for per-session state updates
	api.HandleFunc("/sessions/{id}/ws", h.SessionStream)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
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
