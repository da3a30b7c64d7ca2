package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/archive"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/cache"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/config"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/events"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/server"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/transit"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/websocket"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("APP_CONFIG"), "path to YAML config file")
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("APP_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Booking archive: Postgres when reachable, in-memory otherwise.
	var store archive.Store
	var pool *pgxpool.Pool
	if pool, err = pgxpool.New(rootCtx, cfg.Database.DSN()); err == nil {
		pg := archive.NewPG(pool)
		schemaCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		err = pg.EnsureSchema(schemaCtx)
		cancel()
		if err == nil {
			store = pg
			log.WithField("db", cfg.Database.Name).Info("Booking archive backed by Postgres")
		} else {
			pool.Close()
			pool = nil
		}
	}
	if store == nil {
		log.WithError(err).Warn("Postgres unavailable, using in-memory booking archive")
		store = archive.NewMemory()
	}

	// Seat-map cache is optional; a nil cache means every layout request
	// goes to the transit operator.
	var layouts transit.LayoutCache
	if cfg.Redis.Addr != "" {
		seatCache := cache.NewSeatMapCache(cfg.Redis, time.Duration(cfg.Booking.SeatMapCacheTTLSeconds)*time.Second, log)
		defer seatCache.Close()
		layouts = seatCache
		log.WithField("addr", cfg.Redis.Addr).Info("Seat-map cache enabled")
	}

	// Lifecycle events are optional as well.
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.EventsTopic
		if topic == "" {
			topic = "booking-lifecycle"
		}
		producer = events.NewProducer(cfg.Kafka.Brokers, topic, log)
		defer producer.Close()
		log.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": topic}).Info("Lifecycle events enabled")
	}

	// Upstream clients
	transitClient := transit.NewClient(cfg.Transit.BaseURL, time.Duration(cfg.Transit.TimeoutSeconds)*time.Second, layouts, log)
	holds := transit.NewHoldManager(transitClient, cfg.Booking.MaxSeatsPerHold, log)
	gateway := payment.NewGateway(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second, log)
	tickets := ticketing.NewClient(cfg.Ticketing.BaseURL, time.Duration(cfg.Ticketing.TimeoutSeconds)*time.Second, cfg.Ticketing.ConfirmRetries, log)

	hub := websocket.NewHub(log)
	go hub.Run()

	// Initialize service
	bookingService := server.NewBookingService(server.Collaborators{
		Search:  transitClient,
		Layouts: transitClient,
		Holds:   holds,
		Gateway: gateway,
		Tickets: tickets,
		Archive: store,
	}, hub, producer, server.Options{
		Currency:     cfg.Booking.Currency,
		GatewayKeyID: cfg.Gateway.KeyID,
		SessionTTL:   time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute,
		Logger:       log,
	})
	go bookingService.Janitor(rootCtx, time.Minute)

	// Initialize handlers and router
	h := server.NewHandler(bookingService, log)
	r := server.SetupRouter(h)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Booking agent starting on %s", cfg.Server.Address)
		log.Infof("Transit operator at %s, payment gateway at %s", cfg.Transit.BaseURL, cfg.Gateway.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	rootCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if pool != nil {
		pool.Close()
	}

	log.Info("Server stopped")
}
