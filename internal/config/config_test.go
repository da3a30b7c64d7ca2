package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 6, cfg.Booking.MaxSeatsPerHold)
	assert.Equal(t, "INR", cfg.Booking.Currency)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":7070"
booking:
  max_seats_per_hold: 4
kafka:
  brokers: ["localhost:9092"]
  events_topic: booking-events
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 4, cfg.Booking.MaxSeatsPerHold)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	// Untouched sections keep defaults
	assert.Equal(t, "INR", cfg.Booking.Currency)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("APP_SERVER_ADDR", ":6060")
	t.Setenv("APP_DB_PORT", "5544")
	t.Setenv("APP_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Address)
	assert.Equal(t, 5544, cfg.Database.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestDSN_Format(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "bookings", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=bookings sslmode=disable", d.DSN())
}
