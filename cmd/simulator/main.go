package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/config"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/simulator"
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

	platform := simulator.New(simulator.Config{
		HoldTTL:            time.Duration(cfg.Simulator.HoldTTLSeconds) * time.Second,
		KeyID:              cfg.Gateway.KeyID,
		KeySecret:          cfg.Gateway.KeySecret,
		PaymentFailureRate: cfg.Simulator.PaymentFailureRate,
		Logger:             log,
	})
	platform.SeedDemoData()

	r := simulator.NewRouter(platform, cfg.Simulator.RequestsPerSecond, cfg.Simulator.Burst, log)

	srv := &http.Server{
		Addr:         cfg.Simulator.Address,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Upstream simulator starting on %s", cfg.Simulator.Address)
		log.Infof("Gateway key %s, hold TTL %ds", cfg.Gateway.KeyID, cfg.Simulator.HoldTTLSeconds)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down simulator...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Simulator stopped")
}
