// Package transit talks to the upstream inventory service: trip search, seat
// layouts and seat holds. Layouts are best-effort snapshots; only a hold
// settles availability.
package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

var validate = validator.New()

// envelope is the wire format shared by all upstream services.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// LayoutCache is an optional read-through cache for seat-map snapshots.
// Snapshot staleness is acceptable by contract, so cache errors are ignored.
// Invalidate drops an entry known to be stale, such as after a hold loses an
// availability race.
type LayoutCache interface {
	GetSeatMap(ctx context.Context, tripID string) ([]models.Seat, bool)
	SetSeatMap(ctx context.Context, tripID string, seats []models.Seat)
	Invalidate(ctx context.Context, tripID string)
}

// Client is the HTTP client for the inventory service.
type Client struct {
	baseURL string
	http    *http.Client
	cache   LayoutCache
	log     *logrus.Logger
	now     func() time.Time
}

// NewClient creates an inventory client. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache LayoutCache, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// SearchTrips queries the inventory service for trips matching the criteria.
// An empty result is not an error; transport and upstream failures are.
func (c *Client) SearchTrips(ctx context.Context, criteria models.SearchCriteria) ([]models.Trip, error) {
	if err := validate.Struct(criteria); err != nil {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "invalid search criteria: %v", err)
	}
	today := c.now().Truncate(24 * time.Hour)
	if criteria.Date.Truncate(24 * time.Hour).Before(today) {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "travel date %s is in the past", criteria.Date.Format("2006-01-02"))
	}

	q := url.Values{}
	q.Set("origin", criteria.Origin)
	q.Set("destination", criteria.Destination)
	q.Set("date", criteria.Date.Format("2006-01-02"))
	q.Set("passengers", strconv.Itoa(criteria.Passengers))

	var trips []models.Trip
	if err := c.get(ctx, "/api/v1/trips?"+q.Encode(), fault.ReasonSearchFailed, &trips); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"origin":      criteria.Origin,
		"destination": criteria.Destination,
		"date":        criteria.Date.Format("2006-01-02"),
		"results":     len(trips),
	}).Info("Trip search completed")

	return trips, nil
}

// FetchPromotions returns display-only promotional content. Callers treat a
// failure as "no promotions".
func (c *Client) FetchPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := c.get(ctx, "/api/v1/promotions", fault.ReasonSearchFailed, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

// SeatMap fetches the seat layout snapshot for a trip.
func (c *Client) SeatMap(ctx context.Context, tripID string) ([]models.Seat, error) {
	if tripID == "" {
		return nil, fault.Callerf(fault.ReasonInvalidInput, "trip id is required")
	}

	if c.cache != nil {
		if seats, ok := c.cache.GetSeatMap(ctx, tripID); ok {
			return seats, nil
		}
	}

	var seats []models.Seat
	if err := c.get(ctx, "/api/v1/trips/"+tripID+"/seatmap", fault.ReasonLayoutUnavailable, &seats); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.SetSeatMap(ctx, tripID, seats)
	}
	return seats, nil
}

// dropCachedSeatMap removes a layout known to be stale so the next read
// fetches a fresh snapshot.
func (c *Client) dropCachedSeatMap(ctx context.Context, tripID string) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, tripID)
	}
}

// get performs a GET, unwraps the envelope and decodes data into out.
func (c *Client) get(ctx context.Context, path, failReason string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fault.Transientf(failReason, "build request").WithCause(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Transientf(failReason, "inventory service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fault.Transientf(failReason, "malformed response (status %d)", resp.StatusCode).WithCause(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fault.Rejectedf(failReason, "not found: %s", env.Message)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return fault.Transientf(failReason, "inventory service returned %d: %s", resp.StatusCode, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fault.Transientf(failReason, "malformed payload").WithCause(err)
		}
	}
	return nil
}

// postJSON performs a POST with a JSON body and returns the parsed envelope
// plus HTTP status for the caller to interpret.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}, failReason string) (*envelope, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fault.Callerf(fault.ReasonInvalidInput, "encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fault.Transientf(failReason, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fault.Transientf(failReason, "inventory service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fault.Transientf(failReason, "malformed response (status %d)", resp.StatusCode).WithCause(err)
	}
	return &env, resp.StatusCode, nil
}
