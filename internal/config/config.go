package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transit   TransitConfig   `yaml:"transit"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Ticketing TicketingConfig `yaml:"ticketing"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Booking   BookingConfig   `yaml:"booking"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type ServerConfig struct {
	Address           string `yaml:"address"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

type TransitConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	KeySecret      string `yaml:"key_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TicketingConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ConfirmRetries int    `yaml:"confirm_retries"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig with an empty Addr disables the seat-map cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig with no brokers disables lifecycle events.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"events_topic"`
}

type BookingConfig struct {
	MaxSeatsPerHold        int    `yaml:"max_seats_per_hold"`
	Currency               string `yaml:"currency"`
	SeatMapCacheTTLSeconds int    `yaml:"seatmap_cache_ttl_seconds"`
	ConfirmRetries         int    `yaml:"confirm_retries"`
}

type SimulatorConfig struct {
	Address            string  `yaml:"address"`
	HoldTTLSeconds     int     `yaml:"hold_ttl_seconds"`
	PaymentFailureRate float64 `yaml:"payment_failure_rate"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	Burst              int     `yaml:"burst"`
}

// Default returns a configuration that runs everything locally against the
// simulator with no external infrastructure.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Address: ":8080", SessionTTLMinutes: 30},
		Transit:   TransitConfig{BaseURL: "http://localhost:9090", TimeoutSeconds: 10},
		Gateway:   GatewayConfig{BaseURL: "http://localhost:9090/gateway", KeyID: "rzp_test_local", KeySecret: "rzp_test_secret", TimeoutSeconds: 10},
		Ticketing: TicketingConfig{BaseURL: "http://localhost:9090", TimeoutSeconds: 10, ConfirmRetries: 3},
		Database:  DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "postgres", Name: "bookings", SSLMode: "disable"},
		Booking:   BookingConfig{MaxSeatsPerHold: 6, Currency: "INR", SeatMapCacheTTLSeconds: 20, ConfirmRetries: 3},
		Simulator: SimulatorConfig{Address: ":9090", HoldTTLSeconds: 300, PaymentFailureRate: 0, RequestsPerSecond: 50, Burst: 100},
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("APP_SERVER_ADDR", c.Server.Address)
	c.Transit.BaseURL = getEnv("APP_TRANSIT_URL", c.Transit.BaseURL)
	c.Gateway.BaseURL = getEnv("APP_GATEWAY_URL", c.Gateway.BaseURL)
	c.Gateway.KeyID = getEnv("APP_GATEWAY_KEY_ID", c.Gateway.KeyID)
	c.Gateway.KeySecret = getEnv("APP_GATEWAY_KEY_SECRET", c.Gateway.KeySecret)
	c.Ticketing.BaseURL = getEnv("APP_TICKETING_URL", c.Ticketing.BaseURL)
	c.Database.Host = getEnv("APP_DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("APP_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("APP_DB_USER", c.Database.User)
	c.Database.Password = getEnv("APP_DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("APP_DB_NAME", c.Database.Name)
	c.Redis.Addr = getEnv("APP_REDIS_ADDR", c.Redis.Addr)
	c.Kafka.EventsTopic = getEnv("APP_KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	c.Simulator.Address = getEnv("APP_SIM_ADDR", c.Simulator.Address)

	if v := os.Getenv("APP_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
